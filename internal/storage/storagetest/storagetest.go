// Package storagetest holds the behaviour every storage.Provider must show.
// Backend packages call Run from their own tests.
package storagetest

import (
	"errors"
	"testing"
	"time"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/storage"
)

// Run exercises a freshly initialized, empty store returned by newStore.
func Run(t *testing.T, newStore func(t *testing.T) storage.Provider) {
	t.Helper()
	t.Run("Catalog", func(t *testing.T) { testCatalog(t, newStore(t)) })
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Patches", func(t *testing.T) { testPatches(t, newStore(t)) })
	t.Run("DayPlans", func(t *testing.T) { testDayPlans(t, newStore(t)) })
	t.Run("MealPlans", func(t *testing.T) { testMealPlans(t, newStore(t)) })
	t.Run("DeleteUser", func(t *testing.T) { testDeleteUser(t, newStore(t)) })
}

func testUser(id string) models.User {
	return models.User{
		ID:                id,
		FirstName:         "Ada",
		LastName:          "Lovelace",
		Email:             id + "@example.com",
		Preferences:       models.NumericalPreferences{Dairy: 1, Meat: -1},
		DietaryConditions: models.DietaryConditions{"vegan": true},
		FavoriteItems:     models.NewFavoriteItems(),
		CreatedAt:         time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func wantNotFound(t *testing.T, op string, err error) {
	t.Helper()
	if !errors.Is(err, apperrors.ErrNotFound) || !errors.Is(err, apperrors.ErrStore) {
		t.Errorf("%s error = %v, want not found store error", op, err)
	}
}

func testCatalog(t *testing.T, s storage.Provider) {
	food := models.FoodItem{
		ID:           "12",
		Name:         "Lentil soup",
		Roles:        []models.Role{models.RoleMainCourse, models.RoleSide},
		DietaryFlags: models.DietaryFlags{IsVegan: true, IsGlutenFree: true},
		Ingredients:  []string{"lentils", "onion"},
		Nutrition:    models.Nutrition{Calories: 320, Protein: 18},
	}
	bev := models.Beverage{ID: "3", Name: "Oat latte", DietaryFlags: models.DietaryFlags{HasNuts: true}}

	if err := s.SaveFoodItem(food); err != nil {
		t.Fatalf("SaveFoodItem() error = %v", err)
	}
	if err := s.SaveBeverage(bev); err != nil {
		t.Fatalf("SaveBeverage() error = %v", err)
	}

	got, err := s.GetFoodItem("12")
	if err != nil {
		t.Fatalf("GetFoodItem() error = %v", err)
	}
	if got.Name != food.Name || len(got.Roles) != 2 || !got.IsVegan || got.Nutrition.Calories != 320 {
		t.Errorf("GetFoodItem() = %+v, want %+v", got, food)
	}

	food.Name = "Red lentil soup"
	if err := s.SaveFoodItem(food); err != nil {
		t.Fatalf("SaveFoodItem() overwrite error = %v", err)
	}
	foods, err := s.GetFoodItems()
	if err != nil {
		t.Fatalf("GetFoodItems() error = %v", err)
	}
	if len(foods) != 1 || foods["12"].Name != "Red lentil soup" {
		t.Errorf("GetFoodItems() = %+v, want the overwritten item only", foods)
	}

	bevs, err := s.GetBeverages()
	if err != nil {
		t.Fatalf("GetBeverages() error = %v", err)
	}
	if b, ok := bevs["3"]; !ok || !b.HasNuts {
		t.Errorf("GetBeverages() = %+v, want beverage 3 with nuts", bevs)
	}

	_, err = s.GetBeverage("missing")
	wantNotFound(t, "GetBeverage()", err)
	_, err = s.GetFoodItem("missing")
	wantNotFound(t, "GetFoodItem()", err)
}

func testUsers(t *testing.T, s storage.Provider) {
	if err := s.AddUser(testUser("u1")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := s.AddUser(testUser("u2")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := s.AddUser(models.User{}); err == nil {
		t.Error("AddUser() without id should fail")
	}

	u, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Email != "u1@example.com" || u.Preferences.Dairy != 1 || u.Preferences.Meat != -1 {
		t.Errorf("GetUser() = %+v", u)
	}
	if !u.DietaryConditions["vegan"] {
		t.Errorf("GetUser().DietaryConditions = %v, want vegan", u.DietaryConditions)
	}
	if !u.CreatedAt.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Errorf("GetUser().CreatedAt = %v", u.CreatedAt)
	}
	if u.MealPlanConfig != nil {
		t.Errorf("GetUser().MealPlanConfig = %+v, want nil", u.MealPlanConfig)
	}

	users, err := s.GetAllUsers()
	if err != nil {
		t.Fatalf("GetAllUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Errorf("GetAllUsers() returned %d users, want 2", len(users))
	}

	_, err = s.GetUser("nobody")
	wantNotFound(t, "GetUser()", err)
}

func testPatches(t *testing.T, s storage.Provider) {
	if err := s.AddUser(testUser("u1")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	prefs := models.NumericalPreferences{Dairy: -1, Meat: 0, Nuts: 1}
	if err := s.SetNumericalPreferences("u1", prefs); err != nil {
		t.Fatalf("SetNumericalPreferences() error = %v", err)
	}
	if err := s.SetDietaryConditions("u1", models.DietaryConditions{"diabetes": true}); err != nil {
		t.Fatalf("SetDietaryConditions() error = %v", err)
	}
	fav := models.FavoriteItems{models.RoleMainCourse: {"1", "2"}, models.RoleBeverage: {"b1"}}
	if err := s.SetFavoriteItems("u1", fav); err != nil {
		t.Fatalf("SetFavoriteItems() error = %v", err)
	}
	if err := s.SetPermanentFavoriteItems("u1", models.FavoriteItems{models.RoleDessert: {"9"}}); err != nil {
		t.Fatalf("SetPermanentFavoriteItems() error = %v", err)
	}
	cfg := models.MealPlanConfig{
		MealPlanName: "week",
		NumDays:      7,
		NumMeals:     1,
		MealConfigs: []models.MealSlotConfig{{
			MealName:  "breakfast",
			MealTypes: map[string]bool{"beverage": true, "main_course": true, "side": false, "dessert": false},
		}},
	}
	if err := s.SetMealPlanConfig("u1", cfg); err != nil {
		t.Fatalf("SetMealPlanConfig() error = %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := s.IncrementBanditCounter("u1")
		if err != nil {
			t.Fatalf("IncrementBanditCounter() error = %v", err)
		}
		if got != want {
			t.Errorf("IncrementBanditCounter() = %d, want %d", got, want)
		}
	}

	u, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Preferences != prefs {
		t.Errorf("Preferences = %+v, want %+v", u.Preferences, prefs)
	}
	if u.DietaryConditions["vegan"] || !u.DietaryConditions["diabetes"] {
		t.Errorf("DietaryConditions = %v, want diabetes only", u.DietaryConditions)
	}
	if got := u.FavoriteItems[models.RoleMainCourse]; len(got) != 2 || got[0] != "1" {
		t.Errorf("FavoriteItems[Main Course] = %v, want [1 2]", got)
	}
	if got := u.PermanentFavoriteItems[models.RoleDessert]; len(got) != 1 || got[0] != "9" {
		t.Errorf("PermanentFavoriteItems[Dessert] = %v, want [9]", got)
	}
	if u.BanditCounter != 3 {
		t.Errorf("BanditCounter = %d, want 3", u.BanditCounter)
	}
	if u.MealPlanConfig == nil || u.MealPlanConfig.NumDays != 7 || !u.MealPlanConfig.MealConfigs[0].MealTypes["main_course"] {
		t.Errorf("MealPlanConfig = %+v, want the saved config", u.MealPlanConfig)
	}
	if u.Email != "u1@example.com" {
		t.Errorf("Email = %q, patches must leave other fields alone", u.Email)
	}

	wantNotFound(t, "SetNumericalPreferences()", s.SetNumericalPreferences("nobody", prefs))
	_, err = s.IncrementBanditCounter("nobody")
	wantNotFound(t, "IncrementBanditCounter()", err)
}

func dayPlan(id, date, item string) models.DayPlan {
	return models.DayPlan{
		ID:   id,
		Date: date,
		Meals: []models.Meal{{
			ID:        id + "-m1",
			MealName:  "lunch",
			MealTypes: map[string]string{"main_course": item},
		}},
	}
}

func testDayPlans(t *testing.T, s storage.Provider) {
	if err := s.AddUser(testUser("u1")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	for _, p := range []models.DayPlan{
		dayPlan("d1", "2026-03-01", "10"),
		dayPlan("d2", "2026-03-02", "11"),
		dayPlan("d3", "2026-03-03", "12"),
	} {
		if err := s.SaveDayPlan("u1", p); err != nil {
			t.Fatalf("SaveDayPlan() error = %v", err)
		}
	}

	// Same date again replaces the stored plan.
	if err := s.SaveDayPlan("u1", dayPlan("d2b", "2026-03-02", "20")); err != nil {
		t.Fatalf("SaveDayPlan() overwrite error = %v", err)
	}

	got, err := s.GetDayPlan("u1", "2026-03-02")
	if err != nil {
		t.Fatalf("GetDayPlan() error = %v", err)
	}
	if got.ID != "d2b" || got.UserID != "u1" || got.Meals[0].MealTypes["main_course"] != "20" {
		t.Errorf("GetDayPlan() = %+v, want the replacement plan", got)
	}

	plans, err := s.GetDayPlans("u1", []string{"2026-03-01", "2026-03-03", "2026-04-01"})
	if err != nil {
		t.Fatalf("GetDayPlans() error = %v", err)
	}
	if len(plans) != 2 || plans["2026-03-03"].ID != "d3" {
		t.Errorf("GetDayPlans() = %+v, want the two stored dates", plans)
	}

	all, err := s.GetDayPlans("u1", nil)
	if err != nil {
		t.Fatalf("GetDayPlans(nil) error = %v", err)
	}
	if len(all) != 3 {
		t.Errorf("GetDayPlans(nil) returned %d plans, want 3", len(all))
	}

	u, err := s.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if len(u.DayPlans) != 3 || u.DayPlans["2026-03-02"] != "d2b" {
		t.Errorf("GetUser().DayPlans = %v, want 3 dates with d2b on 2026-03-02", u.DayPlans)
	}

	_, err = s.GetDayPlan("u1", "2030-01-01")
	wantNotFound(t, "GetDayPlan()", err)
}

func testMealPlans(t *testing.T, s storage.Provider) {
	if err := s.AddUser(testUser("u1")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	first := models.MealPlan{
		ID:        "p1",
		UserID:    "u1",
		Name:      "week one",
		Mode:      models.PlanModeRandom,
		Days:      map[string]models.DayPlan{"2026-03-01": dayPlan("d1", "2026-03-01", "10")},
		CreatedAt: time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
	}
	second := first
	second.ID = "p2"
	second.Mode = models.PlanModeBandit
	second.CreatedAt = first.CreatedAt.Add(time.Hour)
	second.Scores = &models.PlanScores{Average: models.Score{Variety: 1, Coverage: 0.5, Nutritional: 0.75}}

	for _, p := range []models.MealPlan{first, second} {
		if err := s.SaveMealPlan(p); err != nil {
			t.Fatalf("SaveMealPlan() error = %v", err)
		}
	}

	got, err := s.GetMealPlan("p1")
	if err != nil {
		t.Fatalf("GetMealPlan() error = %v", err)
	}
	if got.Mode != models.PlanModeRandom || got.Scores != nil || got.Days["2026-03-01"].Meals[0].MealTypes["main_course"] != "10" {
		t.Errorf("GetMealPlan() = %+v", got)
	}

	latest, err := s.GetLatestMealPlan("u1")
	if err != nil {
		t.Fatalf("GetLatestMealPlan() error = %v", err)
	}
	if latest.ID != "p2" || latest.Scores == nil || latest.Scores.Average.Coverage != 0.5 {
		t.Errorf("GetLatestMealPlan() = %+v, want p2 with scores", latest)
	}

	_, err = s.GetMealPlan("missing")
	wantNotFound(t, "GetMealPlan()", err)
	_, err = s.GetLatestMealPlan("nobody")
	wantNotFound(t, "GetLatestMealPlan()", err)
}

func testDeleteUser(t *testing.T, s storage.Provider) {
	if err := s.AddUser(testUser("u1")); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}
	if err := s.SaveDayPlan("u1", dayPlan("d1", "2026-03-01", "10")); err != nil {
		t.Fatalf("SaveDayPlan() error = %v", err)
	}
	if err := s.SaveMealPlan(models.MealPlan{ID: "p1", UserID: "u1", Mode: models.PlanModeRandom}); err != nil {
		t.Fatalf("SaveMealPlan() error = %v", err)
	}

	if err := s.DeleteUser("u1"); err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	_, err := s.GetUser("u1")
	wantNotFound(t, "GetUser() after delete", err)
	_, err = s.GetDayPlan("u1", "2026-03-01")
	wantNotFound(t, "GetDayPlan() after delete", err)
	_, err = s.GetMealPlan("p1")
	wantNotFound(t, "GetMealPlan() after delete", err)

	wantNotFound(t, "DeleteUser() twice", s.DeleteUser("u1"))
}
