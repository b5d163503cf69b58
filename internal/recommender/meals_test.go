package recommender

import (
	"context"
	"errors"
	"testing"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

// planned returns a fixture that already holds a generated plan.
func planned(t *testing.T) (*fixture, *Result) {
	t.Helper()
	f := newFixture(t)
	res, err := f.svc.Recommend(context.Background(), request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	return f, res
}

func TestEditMeal(t *testing.T) {
	f, _ := planned(t)
	ctx := context.Background()

	day, err := f.svc.EditMeal(ctx, "u1", "2026-05-01", "Dinner", map[string]string{
		"main_course": "11",
	})
	if err != nil {
		t.Fatalf("EditMeal() error = %v", err)
	}
	meal, _ := day.FindMeal("dinner")
	if meal.MealTypes["main_course"] != "11" {
		t.Errorf("main_course = %q, want 11", meal.MealTypes["main_course"])
	}
	if meal.MealTypes["dessert"] == "" {
		t.Error("dessert dropped by an unrelated edit")
	}

	stored, err := f.store.GetDayPlan("u1", "2026-05-01")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	storedMeal, _ := stored.FindMeal("dinner")
	if storedMeal.MealTypes["main_course"] != "11" {
		t.Errorf("stored main_course = %q, want 11", storedMeal.MealTypes["main_course"])
	}

	latest, err := f.store.GetLatestMealPlan("u1")
	if err != nil {
		t.Fatalf("GetLatestMealPlan() error = %v", err)
	}
	planDay := latest.Days["2026-05-01"]
	planMeal, _ := planDay.FindMeal("dinner")
	if planMeal.MealTypes["main_course"] != "11" {
		t.Error("latest meal plan was not updated with the edit")
	}
}

func TestEditMeal_ExtraRole(t *testing.T) {
	f, _ := planned(t)
	ctx := context.Background()

	day, err := f.svc.EditMeal(ctx, "u1", "2026-05-01", "breakfast", map[string]string{"dessert": "30"})
	if err != nil {
		t.Fatalf("EditMeal() add error = %v", err)
	}
	meal, _ := day.FindMeal("breakfast")
	if meal.MealTypes["dessert"] != "30" {
		t.Fatalf("dessert = %q, want 30", meal.MealTypes["dessert"])
	}

	day, err = f.svc.EditMeal(ctx, "u1", "2026-05-01", "breakfast", map[string]string{"dessert": ""})
	if err != nil {
		t.Fatalf("EditMeal() remove error = %v", err)
	}
	meal, _ = day.FindMeal("breakfast")
	if _, ok := meal.MealTypes["dessert"]; ok {
		t.Error("dessert still present after removal")
	}
	if meal.MealTypes["main_course"] == "" || meal.MealTypes["beverage"] == "" {
		t.Errorf("requested roles lost: %v", meal.MealTypes)
	}
}

func TestEditMeal_Errors(t *testing.T) {
	f, _ := planned(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		date    string
		meal    string
		updates map[string]string
		want    error
	}{
		{"invalid role", "2026-05-01", "dinner", map[string]string{"snack": "10"}, apperrors.ErrConfiguration},
		{"unknown food", "2026-05-01", "dinner", map[string]string{"side": "999"}, apperrors.ErrConfiguration},
		{"food id as beverage", "2026-05-01", "dinner", map[string]string{"beverage": "10"}, apperrors.ErrConfiguration},
		{"no updates", "2026-05-01", "dinner", nil, apperrors.ErrConfiguration},
		{"unknown meal", "2026-05-01", "brunch", map[string]string{"side": "20"}, apperrors.ErrNotFound},
		{"unknown date", "2027-01-01", "dinner", map[string]string{"side": "20"}, apperrors.ErrNotFound},
		{"remove requested role", "2026-05-01", "dinner", map[string]string{"dessert": ""}, apperrors.ErrConfiguration},
		{"remove requested role with other edits", "2026-05-01", "Breakfast", map[string]string{"main_course": "11", "beverage": ""}, apperrors.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.EditMeal(ctx, "u1", tt.date, tt.meal, tt.updates)
			if !errors.Is(err, tt.want) {
				t.Errorf("EditMeal() error = %v, want %v", err, tt.want)
			}
		})
	}

	day, err := f.store.GetDayPlan("u1", "2026-05-01")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	for _, name := range []string{"breakfast", "dinner"} {
		meal, _ := day.FindMeal(name)
		if meal.MealTypes["beverage"] == "" || meal.MealTypes["main_course"] == "" {
			t.Errorf("%s changed by a rejected edit: %v", name, meal.MealTypes)
		}
	}
}

func TestSaveMeal(t *testing.T) {
	f, res := planned(t)
	mealID := res.Plan.Days["2026-05-02"].Meals[0].ID

	meal, err := f.svc.SaveMeal(context.Background(), "u1", "2026-05-02", mealID, "less salt")
	if err != nil {
		t.Fatalf("SaveMeal() error = %v", err)
	}
	if !meal.Saved || meal.Notes != "less salt" {
		t.Errorf("SaveMeal() = %+v, want saved with notes", meal)
	}

	day, err := f.store.GetDayPlan("u1", "2026-05-02")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	stored, ok := day.FindMealByID(mealID)
	if !ok || !stored.Saved || stored.Notes != "less salt" {
		t.Errorf("stored meal = %+v", stored)
	}

	if _, err := f.svc.SaveMeal(context.Background(), "u1", "2026-05-02", "missing", ""); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("SaveMeal() unknown meal error = %v, want not found", err)
	}
}

func TestDeleteMeal(t *testing.T) {
	f, res := planned(t)
	mealID := res.Plan.Days["2026-05-03"].Meals[1].ID

	if err := f.svc.DeleteMeal(context.Background(), "u1", "2026-05-03", mealID); err != nil {
		t.Fatalf("DeleteMeal() error = %v", err)
	}
	day, err := f.store.GetDayPlan("u1", "2026-05-03")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	if len(day.Meals) != 1 {
		t.Errorf("day has %d meals after delete, want 1", len(day.Meals))
	}
	if err := f.svc.DeleteMeal(context.Background(), "u1", "2026-05-03", mealID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second DeleteMeal() error = %v, want not found", err)
	}
}

func TestFavoriteMeal(t *testing.T) {
	f, res := planned(t)
	ctx := context.Background()
	meal := res.Plan.Days["2026-05-01"].Meals[0]

	perm, err := f.svc.FavoriteMeal(ctx, "u1", "2026-05-01", meal.ID)
	if err != nil {
		t.Fatalf("FavoriteMeal() error = %v", err)
	}
	for key, id := range meal.MealTypes {
		role, _ := models.RoleForKey(key)
		found := false
		for _, got := range perm[role] {
			if got == id {
				found = true
			}
		}
		if !found {
			t.Errorf("permanent favorites[%s] = %v, want %s", role, perm[role], id)
		}
	}

	user, err := f.store.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	mainID := meal.MealTypes["main_course"]
	if len(user.PermanentFavoriteItems[models.RoleMainCourse]) != 1 {
		t.Errorf("stored permanent favorites = %v", user.PermanentFavoriteItems)
	}

	day, _ := f.store.GetDayPlan("u1", "2026-05-01")
	if stored, _ := day.FindMealByID(meal.ID); !stored.Favorited {
		t.Error("meal not flagged as favorited")
	}

	after, err := f.svc.UnfavoriteItem("u1", "main_course", mainID)
	if err != nil {
		t.Fatalf("UnfavoriteItem() error = %v", err)
	}
	if len(after[models.RoleMainCourse]) != 0 {
		t.Errorf("UnfavoriteItem() left %v", after[models.RoleMainCourse])
	}
	if _, err := f.svc.UnfavoriteItem("u1", "main_course", mainID); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("second UnfavoriteItem() error = %v, want not found", err)
	}
	if _, err := f.svc.UnfavoriteItem("u1", "snack", mainID); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("UnfavoriteItem() bad role error = %v, want configuration error", err)
	}
}

func TestAddUserAndProfile(t *testing.T) {
	f := newFixture(t)

	u, err := f.svc.AddUser(models.User{FirstName: "Lin", Preferences: models.NumericalPreferences{Dairy: -1}})
	if err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if u.ID == "" || !u.CreatedAt.Equal(f.svc.now()) {
		t.Errorf("AddUser() = %+v, want generated id and timestamps", u)
	}
	if _, err := f.svc.AddUser(models.User{Preferences: models.NumericalPreferences{Nuts: 3}}); !errors.Is(err, apperrors.ErrUnknownOpinion) {
		t.Errorf("AddUser() bad preferences error = %v, want unknown opinion", err)
	}

	if err := f.svc.SetConditions(u.ID, models.DietaryConditions{"keto": true}); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("SetConditions() unknown condition error = %v, want configuration error", err)
	}
	if err := f.svc.SetConditions(u.ID, models.DietaryConditions{"vegan": true}); err != nil {
		t.Fatalf("SetConditions() error = %v", err)
	}
	if err := f.svc.SetPreferences(u.ID, models.NumericalPreferences{Meat: 1}); err != nil {
		t.Fatalf("SetPreferences() error = %v", err)
	}

	got, err := f.store.GetUser(u.ID)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if !got.DietaryConditions["vegan"] || got.Preferences.Meat != 1 {
		t.Errorf("GetUser() = %+v", got)
	}
}

func TestRescoreAndDayPlans(t *testing.T) {
	f, res := planned(t)
	ctx := context.Background()

	plan, err := f.svc.Rescore(ctx, res.Plan.ID)
	if err != nil {
		t.Fatalf("Rescore() error = %v", err)
	}
	if plan.Scores == nil || plan.Scores.Average != res.Plan.Scores.Average {
		t.Errorf("Rescore() average = %+v, want %+v", plan.Scores, res.Plan.Scores.Average)
	}

	days, err := f.svc.DayPlans(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("DayPlans() error = %v", err)
	}
	if len(days) != 3 {
		t.Errorf("DayPlans() = %d days, want 3", len(days))
	}
	if _, err := f.svc.DayPlans(ctx, "nobody", nil); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("DayPlans() unknown user error = %v, want not found", err)
	}
}
