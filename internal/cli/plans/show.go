package plans

import (
	"fmt"

	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/render"
)

type PlanShowCmd struct {
	User  string   `arg:"" help:"User id."`
	Dates []string `arg:"" optional:"" help:"Dates to show. Omit to show every stored day."`
}

func (c *PlanShowCmd) Run(ctx *cli.Context) error {
	dates, err := cli.ParseDates(c.Dates)
	if err != nil {
		return err
	}
	runCtx, cancel := ctx.RunContext()
	defer cancel()

	days, err := ctx.Service.DayPlans(runCtx, c.User, dates)
	if err != nil {
		return err
	}
	if len(days) == 0 {
		fmt.Printf("No day plans for %s. Generate some with 'platewise recommend'.\n", c.User)
		return nil
	}
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Print(render.DayPlans(days, snap))
	return nil
}

type ScoreCmd struct {
	PlanID string `arg:"" name:"plan-id" help:"Meal plan id."`
}

func (c *ScoreCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := ctx.RunContext()
	defer cancel()

	plan, err := ctx.Service.Rescore(runCtx, c.PlanID)
	if err != nil {
		return err
	}
	if plan.Scores == nil {
		return fmt.Errorf("plan %s could not be scored", c.PlanID)
	}
	fmt.Print(render.Scores(*plan.Scores))
	return nil
}
