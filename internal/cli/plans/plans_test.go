package plans

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/julianstephens/platewise/internal/bandit/bandittest"
	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/config"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/storage"
)

const planYAML = `meal_plan_name: long weekend
num_days: 2
num_meals: 2
meal_configs:
  - meal_name: breakfast
    meal_time: "08:00"
    meal_types: {beverage: true, main_course: true, side: false, dessert: false}
  - meal_name: dinner
    meal_time: "19:00"
    meal_types: {beverage: true, main_course: true, side: true, dessert: true}
`

type fixture struct {
	ctx    *cli.Context
	oracle *bandittest.Oracle
	plan   string
}

func newFixture(t *testing.T) *fixture {
	dir := t.TempDir()
	store := storage.NewMemoryStore()
	for _, f := range []models.FoodItem{
		{ID: "10", Name: "Omelette", Roles: []models.Role{models.RoleMainCourse}},
		{ID: "11", Name: "Curry", Roles: []models.Role{models.RoleMainCourse}},
		{ID: "20", Name: "Rice", Roles: []models.Role{models.RoleSide}},
		{ID: "30", Name: "Sorbet", Roles: []models.Role{models.RoleDessert}},
	} {
		if err := store.SaveFoodItem(f); err != nil {
			t.Fatalf("SaveFoodItem() error = %v", err)
		}
	}
	if err := store.SaveBeverage(models.Beverage{ID: "40", Name: "Tea"}); err != nil {
		t.Fatalf("SaveBeverage() error = %v", err)
	}
	if err := store.AddUser(models.User{ID: "u1", FirstName: "Ada"}); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	cfg := config.Default(dir)
	cfg.Recommend.Seed = 7
	if err := os.MkdirAll(cfg.Bandit.Template, 0o755); err != nil {
		t.Fatalf("failed to create trial template: %v", err)
	}
	oracle := &bandittest.Oracle{Foods: []string{"10", "11", "20", "30"}, Beverages: []string{"40"}}

	plan := filepath.Join(dir, "plan.yaml")
	if err := os.WriteFile(plan, []byte(planYAML), 0o644); err != nil {
		t.Fatalf("failed to write plan config: %v", err)
	}
	return &fixture{ctx: cli.NewContextWithOracle(store, cfg, oracle), oracle: oracle, plan: plan}
}

func TestRecommendCmd(t *testing.T) {
	f := newFixture(t)

	cmd := &RecommendCmd{User: "u1", Plan: f.plan, Start: "2026-05-01"}
	if err := cmd.Run(f.ctx); err != nil {
		t.Fatalf("RecommendCmd.Run() error = %v", err)
	}
	if f.oracle.Trains() != 1 {
		t.Errorf("Trains() = %d, want 1", f.oracle.Trains())
	}

	plan, err := f.ctx.Store.GetLatestMealPlan("u1")
	if err != nil {
		t.Fatalf("GetLatestMealPlan() error = %v", err)
	}
	if plan.Mode != models.PlanModeBandit || len(plan.Days) != 2 || plan.Scores == nil {
		t.Errorf("GetLatestMealPlan() = mode %s, %d days, scores %v", plan.Mode, len(plan.Days), plan.Scores)
	}
	if _, ok := plan.Days["2026-05-02"]; !ok {
		t.Errorf("Days = %v, want 2026-05-02", plan.Dates())
	}

	if err := (&PlanShowCmd{User: "u1", Dates: []string{"2026-05-01"}}).Run(f.ctx); err != nil {
		t.Errorf("PlanShowCmd.Run() error = %v", err)
	}
	if err := (&PlanShowCmd{User: "u1"}).Run(f.ctx); err != nil {
		t.Errorf("PlanShowCmd.Run() all dates error = %v", err)
	}
	if err := (&ScoreCmd{PlanID: plan.ID}).Run(f.ctx); err != nil {
		t.Errorf("ScoreCmd.Run() error = %v", err)
	}
}

func TestRecommendCmd_Random(t *testing.T) {
	f := newFixture(t)

	cmd := &RecommendCmd{User: "u1", Plan: f.plan, Start: "2026-05-01", Random: true}
	if err := cmd.Run(f.ctx); err != nil {
		t.Fatalf("RecommendCmd.Run() error = %v", err)
	}
	if f.oracle.Trains() != 0 {
		t.Errorf("Trains() = %d, want 0 in random mode", f.oracle.Trains())
	}
	plan, err := f.ctx.Store.GetLatestMealPlan("u1")
	if err != nil {
		t.Fatalf("GetLatestMealPlan() error = %v", err)
	}
	if plan.Mode != models.PlanModeRandom {
		t.Errorf("Mode = %s, want %s", plan.Mode, models.PlanModeRandom)
	}
}

func TestRecommendCmd_Errors(t *testing.T) {
	tests := []struct {
		name string
		cmd  func(f *fixture) *RecommendCmd
	}{
		{"unknown user", func(f *fixture) *RecommendCmd {
			return &RecommendCmd{User: "nobody", Plan: f.plan, Start: "today"}
		}},
		{"bad start date", func(f *fixture) *RecommendCmd {
			return &RecommendCmd{User: "u1", Plan: f.plan, Start: "05/01/2026"}
		}},
		{"unknown condition", func(f *fixture) *RecommendCmd {
			return &RecommendCmd{User: "u1", Plan: f.plan, Start: "today", Condition: []string{"paleo"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			if err := tt.cmd(f).Run(f.ctx); err == nil {
				t.Error("RecommendCmd.Run() = nil, want error")
			}
		})
	}
}

func TestRegenerateCmd(t *testing.T) {
	f := newFixture(t)

	if err := (&RegenerateCmd{User: "u1", Dates: []string{"2026-05-01"}}).Run(f.ctx); err == nil {
		t.Error("RegenerateCmd.Run() = nil, want error before any recommendation")
	}

	if err := (&RecommendCmd{User: "u1", Plan: f.plan, Start: "2026-05-01"}).Run(f.ctx); err != nil {
		t.Fatalf("RecommendCmd.Run() error = %v", err)
	}
	before, err := f.ctx.Store.GetDayPlan("u1", "2026-05-02")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}

	if err := (&RegenerateCmd{User: "u1", Dates: []string{"2026-05-02"}}).Run(f.ctx); err != nil {
		t.Fatalf("RegenerateCmd.Run() error = %v", err)
	}
	after, err := f.ctx.Store.GetDayPlan("u1", "2026-05-02")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	if after.ID == before.ID {
		t.Errorf("GetDayPlan().ID = %s, want a regenerated plan", after.ID)
	}
}

func TestPlanShowCmd_NoPlans(t *testing.T) {
	f := newFixture(t)
	if err := (&PlanShowCmd{User: "u1"}).Run(f.ctx); err != nil {
		t.Errorf("PlanShowCmd.Run() error = %v", err)
	}
	if err := (&PlanShowCmd{User: "nobody"}).Run(f.ctx); err == nil {
		t.Error("PlanShowCmd.Run() = nil, want error for an unknown user")
	}
}
