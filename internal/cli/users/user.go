package users

import (
	"fmt"

	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/cli/prompt"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/render"
)

var (
	profileForm = prompt.Profile
	confirm     = prompt.Confirm
)

type UserAddCmd struct {
	ID          string   `help:"User id. Generated when empty."`
	First       string   `help:"First name."`
	Last        string   `help:"Last name."`
	Email       string   `help:"Email address."`
	Dairy       int      `help:"Dairy preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
	Meat        int      `help:"Meat preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
	Nuts        int      `help:"Nuts preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
	Condition   []string `short:"c" help:"Dietary condition (vegan, vegetarian, gluten_free, diabetes). Repeatable."`
	Interactive bool     `short:"i" help:"Fill in the profile with an interactive form."`
}

func (c *UserAddCmd) Run(ctx *cli.Context) error {
	u := models.User{
		ID:                c.ID,
		FirstName:         c.First,
		LastName:          c.Last,
		Email:             c.Email,
		Preferences:       models.NumericalPreferences{Dairy: c.Dairy, Meat: c.Meat, Nuts: c.Nuts},
		DietaryConditions: cli.ParseConditions(c.Condition),
	}
	if c.Interactive {
		if err := profileForm(&u); err != nil {
			return err
		}
	}
	added, err := ctx.Service.AddUser(u)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Added user %s\n", added.ID)
	return nil
}

type UserListCmd struct{}

func (c *UserListCmd) Run(ctx *cli.Context) error {
	all, err := ctx.Store.GetAllUsers()
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No users. Add one with 'platewise user add'.")
		return nil
	}
	for _, u := range all {
		fmt.Printf("%s  %s %s  (%d day plans)\n", u.ID, u.FirstName, u.LastName, len(u.DayPlans))
	}
	return nil
}

type UserShowCmd struct {
	ID string `arg:"" help:"User id."`
}

func (c *UserShowCmd) Run(ctx *cli.Context) error {
	u, err := ctx.Store.GetUser(c.ID)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Print(render.User(u, snap))
	return nil
}

type UserPrefsCmd struct {
	ID    string `arg:"" help:"User id."`
	Dairy int    `help:"Dairy preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
	Meat  int    `help:"Meat preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
	Nuts  int    `help:"Nuts preference (-1 avoid, 0 neutral, 1 prefer)." default:"0"`
}

func (c *UserPrefsCmd) Run(ctx *cli.Context) error {
	prefs := models.NumericalPreferences{Dairy: c.Dairy, Meat: c.Meat, Nuts: c.Nuts}
	if err := ctx.Service.SetPreferences(c.ID, prefs); err != nil {
		return err
	}
	fmt.Printf("✓ Preferences updated for %s\n", c.ID)
	return nil
}

type UserConditionsCmd struct {
	ID        string   `arg:"" help:"User id."`
	Condition []string `arg:"" optional:"" help:"Dietary conditions to enable. Omit to clear them all."`
}

func (c *UserConditionsCmd) Run(ctx *cli.Context) error {
	if err := ctx.Service.SetConditions(c.ID, cli.ParseConditions(c.Condition)); err != nil {
		return err
	}
	if len(c.Condition) == 0 {
		fmt.Printf("✓ Dietary conditions cleared for %s\n", c.ID)
		return nil
	}
	fmt.Printf("✓ Dietary conditions updated for %s\n", c.ID)
	return nil
}

type UserUnfavoriteCmd struct {
	ID   string `arg:"" help:"User id."`
	Role string `arg:"" help:"Role key (beverage, main_course, side, dessert)."`
	Item string `arg:"" help:"Catalog item id."`
}

func (c *UserUnfavoriteCmd) Run(ctx *cli.Context) error {
	fav, err := ctx.Service.UnfavoriteItem(c.ID, c.Role, c.Item)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Removed %s from permanent favorites\n", c.Item)
	fmt.Print(render.Favorites(fav, snap))
	return nil
}

type UserDeleteCmd struct {
	ID  string `arg:"" help:"User id."`
	Yes bool   `short:"y" help:"Delete without asking for confirmation."`
}

func (c *UserDeleteCmd) Run(ctx *cli.Context) error {
	if _, err := ctx.Store.GetUser(c.ID); err != nil {
		return err
	}
	if !c.Yes {
		ok, err := confirm(fmt.Sprintf("Delete user %s?", c.ID), "Their day plans and meal plans are deleted too.")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Delete cancelled.")
			return nil
		}
	}
	ctx.PerformAutomaticBackup()
	if err := ctx.Store.DeleteUser(c.ID); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted user %s\n", c.ID)
	return nil
}
