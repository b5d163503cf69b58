package meals

import (
	"fmt"

	"github.com/julianstephens/platewise/internal/cli"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/render"
)

// MealRef names one meal of a stored day plan.
type MealRef struct {
	User string `arg:"" help:"User id."`
	Date string `arg:"" help:"Plan date (YYYY-MM-DD, 'today' or 'tomorrow')."`
	Meal string `arg:"" help:"Meal name (e.g. breakfast) or meal id."`
}

// resolve returns the parsed date and the meal, matched by id first and then
// by name.
func (r MealRef) resolve(ctx *cli.Context) (string, models.Meal, error) {
	date, err := cli.ParseDate(r.Date)
	if err != nil {
		return "", models.Meal{}, err
	}
	day, err := ctx.Store.GetDayPlan(r.User, date)
	if err != nil {
		return "", models.Meal{}, err
	}
	if m, ok := day.FindMealByID(r.Meal); ok {
		return date, *m, nil
	}
	if m, ok := day.FindMeal(r.Meal); ok {
		return date, *m, nil
	}
	return "", models.Meal{}, apperrors.NotFound("meal", fmt.Sprintf("%s on %s", r.Meal, date))
}

type MealEditCmd struct {
	MealRef
	Assignments []string `arg:"" help:"role=id pairs (beverage, main_course, side, dessert). An empty id removes a role the meal plan config does not request."`
}

func (c *MealEditCmd) Run(ctx *cli.Context) error {
	updates, err := cli.ParseAssignments(c.Assignments)
	if err != nil {
		return err
	}
	date, meal, err := c.resolve(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := ctx.RunContext()
	defer cancel()
	day, err := ctx.Service.EditMeal(runCtx, c.User, date, meal.MealName, updates)
	if err != nil {
		return err
	}
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Print(render.DayPlan(day, snap))
	return nil
}

type MealSaveCmd struct {
	MealRef
	Notes string `short:"n" help:"Notes to keep with the meal."`
}

func (c *MealSaveCmd) Run(ctx *cli.Context) error {
	date, meal, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	meal, err = ctx.Service.SaveMeal(runCtx, c.User, date, meal.ID, c.Notes)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Saved %s on %s\n", meal.MealName, date)
	return nil
}

type MealDeleteCmd struct {
	MealRef
}

func (c *MealDeleteCmd) Run(ctx *cli.Context) error {
	date, meal, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	if err := ctx.Service.DeleteMeal(runCtx, c.User, date, meal.ID); err != nil {
		return err
	}
	fmt.Printf("✓ Deleted %s on %s\n", meal.MealName, date)
	return nil
}

type MealFavoriteCmd struct {
	MealRef
}

func (c *MealFavoriteCmd) Run(ctx *cli.Context) error {
	date, meal, err := c.resolve(ctx)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	fav, err := ctx.Service.FavoriteMeal(runCtx, c.User, date, meal.ID)
	if err != nil {
		return err
	}
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Favorited %s on %s. Permanent favorites:\n", meal.MealName, date)
	fmt.Print(render.Favorites(fav, snap))
	return nil
}
