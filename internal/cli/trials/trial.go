package trials

import (
	"fmt"

	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/render"
)

type TrialListCmd struct{}

func (c *TrialListCmd) Run(ctx *cli.Context) error {
	trials, err := ctx.Workspaces.List()
	if err != nil {
		return err
	}
	fmt.Print(render.Trials(trials))
	return nil
}

type TrialPruneCmd struct {
	Keep int `short:"k" help:"Number of most recent trials to keep. Defaults to bandit.keep_trials." default:"-1"`
}

func (c *TrialPruneCmd) Run(ctx *cli.Context) error {
	keep := c.Keep
	if keep < 0 {
		keep = ctx.Config.Bandit.KeepTrials
	}
	if keep == 0 {
		fmt.Println("Keeping every trial (keep is 0).")
		return nil
	}
	removed, err := ctx.Workspaces.Prune(keep)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Removed %d trial(s), kept up to %d\n", removed, keep)
	return nil
}

type BanditTrainCmd struct {
	User string `arg:"" help:"User id."`
}

func (c *BanditTrainCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := ctx.RunContext()
	defer cancel()

	fav, warnings, err := ctx.Service.Retrain(runCtx, c.User)
	if err != nil {
		return err
	}
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Favorites retrained for %s\n", c.User)
	fmt.Print(render.Favorites(fav, snap))
	fmt.Print(render.Warnings(warnings))
	return nil
}
