package plans

import (
	"fmt"
	"time"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/constants"
	"github.com/julianstephens/platewise/internal/recommender"
	"github.com/julianstephens/platewise/internal/render"
)

type RecommendCmd struct {
	User      string   `arg:"" help:"User id."`
	Plan      string   `short:"p" help:"Meal plan config file (YAML or JSON)." type:"existingfile" required:""`
	Start     string   `short:"s" help:"First planned date (YYYY-MM-DD, 'today' or 'tomorrow')." default:"today"`
	Condition []string `short:"c" help:"Dietary conditions for this plan. Defaults to the user's stored conditions."`
	Random    bool     `help:"Draw from the whole catalog instead of the learned favorites."`
}

func (c *RecommendCmd) Run(ctx *cli.Context) error {
	cfg, err := cli.LoadPlanConfig(c.Plan)
	if err != nil {
		return err
	}
	start, err := cli.ParseDate(c.Start)
	if err != nil {
		return err
	}
	startDate, _ := time.Parse(constants.DateFormat, start)

	user, err := ctx.Store.GetUser(c.User)
	if err != nil {
		return err
	}
	conditions := user.DietaryConditions
	if len(c.Condition) > 0 {
		conditions = cli.ParseConditions(c.Condition)
	}

	ctx.PerformAutomaticBackup()

	req := recommender.Request{
		UserID:      user.ID,
		Preferences: user.Preferences,
		Conditions:  conditions,
		Config:      cfg,
		Start:       startDate,
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()

	var res *recommender.Result
	if c.Random {
		res, err = ctx.Service.RecommendRandom(runCtx, req)
	} else {
		res, err = ctx.Service.Recommend(runCtx, req)
	}
	if err != nil {
		return err
	}

	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	printResult(res, snap)
	return nil
}

func printResult(res *recommender.Result, snap *catalog.Snapshot) {
	fmt.Print(render.MealPlan(res.Plan, snap))
	fmt.Println()
	if res.Retrained {
		fmt.Printf("Favorites retrained (run %d)\n", res.Counter)
	} else {
		fmt.Printf("Favorites reused (run %d)\n", res.Counter)
	}
	fmt.Print(render.Favorites(res.Favorites, snap))
	fmt.Print(render.Warnings(res.Warnings))
}

type RegenerateCmd struct {
	User  string   `arg:"" help:"User id."`
	Dates []string `arg:"" help:"Dates to regenerate (YYYY-MM-DD, 'today' or 'tomorrow')."`
}

func (c *RegenerateCmd) Run(ctx *cli.Context) error {
	dates, err := cli.ParseDates(c.Dates)
	if err != nil {
		return err
	}
	ctx.PerformAutomaticBackup()

	runCtx, cancel := ctx.RunContext()
	defer cancel()
	res, err := ctx.Service.Regenerate(runCtx, c.User, dates)
	if err != nil {
		return err
	}
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	printResult(res, snap)
	return nil
}
