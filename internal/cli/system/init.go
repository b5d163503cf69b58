package system

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/julianstephens/platewise/internal/cli"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/keyring"
	"github.com/julianstephens/platewise/internal/storage"
)

type InitCmd struct {
	Force  bool   `help:"Delete the existing database before initializing."`
	Source string `help:"Database path or connection string to copy the catalog, users and plans from."`
}

func (c *InitCmd) Run(ctx *cli.Context) error {
	if c.Force {
		if err := c.reset(ctx); err != nil {
			return err
		}
	}

	if err := ctx.Store.Init(); err != nil {
		return err
	}
	fmt.Printf("Initialized platewise storage at: %s\n", ctx.Store.GetConfigPath())

	if c.Source != "" {
		fmt.Printf("Copying data from: %s\n", c.Source)
		if err := c.copyData(ctx); err != nil {
			return fmt.Errorf("copy failed: %w", err)
		}
		fmt.Println("Copy completed successfully!")
	}
	return nil
}

// reset removes a file-backed database. Connection-string stores are left alone.
func (c *InitCmd) reset(ctx *cli.Context) error {
	dbPath := ctx.Store.GetConfigPath()
	if c.Source != "" {
		absDB, err := filepath.Abs(dbPath)
		if err == nil {
			dbPath = absDB
		}
		if absSource, err := filepath.Abs(c.Source); err == nil && absSource == dbPath {
			return fmt.Errorf("cannot use --force when source and destination are the same: %s", dbPath)
		}
	}

	_, err := os.Stat(dbPath)
	switch {
	case os.IsNotExist(err):
		return nil
	case err != nil:
		return fmt.Errorf("failed to access existing database: %w", err)
	}
	if err := ctx.Store.Close(); err != nil {
		return fmt.Errorf("failed to close existing database: %w", err)
	}
	if err := os.Remove(dbPath); err != nil {
		return fmt.Errorf("failed to delete existing database: %w", err)
	}
	fmt.Printf("Deleted existing database at: %s\n", dbPath)
	return nil
}

func (c *InitCmd) copyData(ctx *cli.Context) error {
	src, err := cli.OpenStore(c.Source, keyring.SourceFlag)
	if err != nil {
		return err
	}
	if err := src.Load(); err != nil {
		return fmt.Errorf("failed to load source database: %w", err)
	}
	defer src.Close()

	return CopyStore(src, ctx.Store)
}

// CopyStore copies the catalog, every user with their day plans, and each
// user's latest meal plan from src into dst.
func CopyStore(src, dst storage.Provider) error {
	fmt.Println("  Copying catalog...")
	foods, err := src.GetFoodItems()
	if err != nil {
		return fmt.Errorf("failed to get food items from source: %w", err)
	}
	for _, f := range foods {
		if err := dst.SaveFoodItem(f); err != nil {
			return fmt.Errorf("failed to save food item %s: %w", f.ID, err)
		}
	}
	bevs, err := src.GetBeverages()
	if err != nil {
		return fmt.Errorf("failed to get beverages from source: %w", err)
	}
	for _, b := range bevs {
		if err := dst.SaveBeverage(b); err != nil {
			return fmt.Errorf("failed to save beverage %s: %w", b.ID, err)
		}
	}
	fmt.Printf("    Copied %d food items and %d beverages\n", len(foods), len(bevs))

	fmt.Println("  Copying users...")
	users, err := src.GetAllUsers()
	if err != nil {
		return fmt.Errorf("failed to get users from source: %w", err)
	}
	days := 0
	for _, u := range users {
		if err := dst.AddUser(u); err != nil {
			return fmt.Errorf("failed to add user %s: %w", u.ID, err)
		}
		plans, err := src.GetDayPlans(u.ID, nil)
		if err != nil {
			return fmt.Errorf("failed to get day plans for %s: %w", u.ID, err)
		}
		for _, p := range plans {
			if err := dst.SaveDayPlan(u.ID, p); err != nil {
				return fmt.Errorf("failed to save day plan %s for %s: %w", p.Date, u.ID, err)
			}
		}
		days += len(plans)

		latest, err := src.GetLatestMealPlan(u.ID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to get meal plan for %s: %w", u.ID, err)
		}
		if err := dst.SaveMealPlan(latest); err != nil {
			return fmt.Errorf("failed to save meal plan %s: %w", latest.ID, err)
		}
	}
	fmt.Printf("    Copied %d users and %d day plans\n", len(users), days)
	return nil
}
