package system

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/config"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/storage"
	"github.com/julianstephens/platewise/internal/storage/sqlite"
)

func setupTestInitDB(t *testing.T) (*cli.Context, string, func()) {
	tempDir := t.TempDir()
	dbPath := filepath.Join(tempDir, "test.db")

	store := sqlite.NewStore(dbPath)
	ctx := cli.NewContext(store, config.Default(tempDir))

	cleanup := func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	}
	return ctx, dbPath, cleanup
}

func TestInitCmd_Success(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Errorf("init command failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("database file was not created at %s", dbPath)
	}
}

func TestInitCmd_Idempotent(t *testing.T) {
	ctx, _, cleanup := setupTestInitDB(t)
	defer cleanup()

	cmd := &InitCmd{}
	if err := cmd.Run(ctx); err != nil {
		t.Fatalf("first init failed: %v", err)
	}
	if err := cmd.Run(ctx); err != nil {
		t.Errorf("second init failed (should be idempotent): %v", err)
	}
}

func TestInitCmd_ForceDeletesExisting(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{}).Run(ctx); err != nil {
		t.Fatalf("initial init failed: %v", err)
	}
	if err := ctx.Store.AddUser(models.User{ID: "u1", FirstName: "Ada"}); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	if err := (&InitCmd{Force: true}).Run(ctx); err != nil {
		t.Fatalf("init with force failed: %v", err)
	}
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not recreated after force")
	}

	users, err := ctx.Store.GetAllUsers()
	if err != nil {
		t.Fatalf("GetAllUsers() error = %v", err)
	}
	if len(users) != 0 {
		t.Errorf("GetAllUsers() = %d users after force, want 0", len(users))
	}
}

func TestInitCmd_ForceRefusesSameSource(t *testing.T) {
	ctx, dbPath, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{Force: true, Source: dbPath}).Run(ctx); err == nil {
		t.Error("init --force with source == destination should fail")
	}
}

func TestInitCmd_CopiesFromSource(t *testing.T) {
	srcPath := filepath.Join(t.TempDir(), "source.json")
	src := storage.NewJSONStore(srcPath)
	if err := src.Init(); err != nil {
		t.Fatalf("source Init() error = %v", err)
	}
	if err := src.SaveFoodItem(models.FoodItem{ID: "1", Roles: []models.Role{models.RoleSide}}); err != nil {
		t.Fatalf("SaveFoodItem() error = %v", err)
	}
	if err := src.SaveBeverage(models.Beverage{ID: "2"}); err != nil {
		t.Fatalf("SaveBeverage() error = %v", err)
	}
	if err := src.AddUser(models.User{ID: "u1", FirstName: "Ada"}); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := src.SaveDayPlan("u1", models.DayPlan{ID: "d1", Date: "2026-05-01"}); err != nil {
		t.Fatalf("SaveDayPlan() error = %v", err)
	}
	if err := src.SaveMealPlan(models.MealPlan{ID: "p1", UserID: "u1", Days: map[string]models.DayPlan{}}); err != nil {
		t.Fatalf("SaveMealPlan() error = %v", err)
	}

	ctx, _, cleanup := setupTestInitDB(t)
	defer cleanup()

	if err := (&InitCmd{Source: srcPath}).Run(ctx); err != nil {
		t.Fatalf("init with source failed: %v", err)
	}

	if _, err := ctx.Store.GetFoodItem("1"); err != nil {
		t.Errorf("GetFoodItem() error = %v", err)
	}
	if _, err := ctx.Store.GetBeverage("2"); err != nil {
		t.Errorf("GetBeverage() error = %v", err)
	}
	if _, err := ctx.Store.GetDayPlan("u1", "2026-05-01"); err != nil {
		t.Errorf("GetDayPlan() error = %v", err)
	}
	if plan, err := ctx.Store.GetLatestMealPlan("u1"); err != nil || plan.ID != "p1" {
		t.Errorf("GetLatestMealPlan() = %+v, %v", plan, err)
	}
}
