package catalogs

import (
	"fmt"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/render"
)

type CatalogImportCmd struct {
	File     string `arg:"" help:"Catalog file (YAML or JSON) with foods and beverages." type:"existingfile"`
	Annotate bool   `help:"Derive dietary flags from ingredient lists."`
}

func (c *CatalogImportCmd) Run(ctx *cli.Context) error {
	f, err := catalog.ReadFile(c.File)
	if err != nil {
		return err
	}

	ctx.PerformAutomaticBackup()

	var annotator *catalog.Annotator
	if c.Annotate {
		annotator = catalog.NewAnnotator(catalog.DefaultRules)
	}
	result, err := catalog.Import(ctx.Store, f, annotator)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	runCtx, cancel := ctx.RunContext()
	defer cancel()
	if _, err := ctx.Catalog.Reload(runCtx); err != nil {
		return err
	}

	fmt.Printf("✓ Imported %d food items and %d beverages\n", result.Foods, result.Beverages)
	if c.Annotate {
		fmt.Printf("  Updated dietary flags on %d items\n", result.Annotated)
	}
	return nil
}

type CatalogListCmd struct {
	Beverages bool `short:"b" help:"List beverages instead of foods."`
}

func (c *CatalogListCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	snap, err := ctx.Catalog.Snapshot(runCtx)
	if err != nil {
		return err
	}
	fmt.Print(render.Catalog(snap, c.Beverages))
	return nil
}

type CatalogReloadCmd struct{}

func (c *CatalogReloadCmd) Run(ctx *cli.Context) error {
	runCtx, cancel := ctx.RunContext()
	defer cancel()
	snap, err := ctx.Catalog.Reload(runCtx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Catalog loaded: %d food items, %d beverages\n", len(snap.FoodIDs()), len(snap.BeverageIDs()))
	return nil
}
