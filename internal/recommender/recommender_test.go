package recommender

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/platewise/internal/bandit"
	"github.com/julianstephens/platewise/internal/catalog"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
	"github.com/julianstephens/platewise/internal/storage"
)

var (
	foods = []models.FoodItem{
		{ID: "10", Name: "Chili", Roles: []models.Role{models.RoleMainCourse}, DietaryFlags: models.DietaryFlags{HasMeat: true}},
		{ID: "11", Name: "Lentil stew", Roles: []models.Role{models.RoleMainCourse}},
		{ID: "20", Name: "Rice", Roles: []models.Role{models.RoleSide}},
		{ID: "30", Name: "Sorbet", Roles: []models.Role{models.RoleDessert}},
		{ID: "31", Name: "Pecan pie", Roles: []models.Role{models.RoleDessert}, DietaryFlags: models.DietaryFlags{HasNuts: true}},
	}
	beverages = []models.Beverage{
		{ID: "40", Name: "Water"},
	}
)

// allItemsOracle predicts every catalog item for every synthetic user.
// With foodsOnly set it leaves beverages out, as a sparse test split does.
type allItemsOracle struct {
	trains    int
	tests     int
	failErr   error
	foodsOnly bool
}

func (o *allItemsOracle) Train(ctx context.Context, trial *bandit.Trial) error {
	o.trains++
	return o.failErr
}

func (o *allItemsOracle) Test(ctx context.Context, trial *bandit.Trial) error {
	o.tests++
	return nil
}

func (o *allItemsOracle) Parse(trial *bandit.Trial) ([]models.Prediction, []apperrors.ParseWarning, error) {
	var preds []models.Prediction
	for u := 1; u <= opinion.NumUsers; u++ {
		for _, f := range foods {
			preds = append(preds, models.Prediction{User: u, Kind: models.KindFood, ItemID: f.ID, Probability: 0.8})
		}
		for _, b := range beverages {
			if o.foodsOnly {
				break
			}
			preds = append(preds, models.Prediction{User: u, Kind: models.KindBeverage, ItemID: b.ID, Probability: 0.7})
		}
	}
	return preds, nil, nil
}

type fixture struct {
	svc    *Service
	store  storage.Provider
	oracle *allItemsOracle
	ws     *bandit.Workspaces
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := storage.NewMemoryStore()
	for _, f := range foods {
		if err := store.SaveFoodItem(f); err != nil {
			t.Fatalf("SaveFoodItem() error = %v", err)
		}
	}
	for _, b := range beverages {
		if err := store.SaveBeverage(b); err != nil {
			t.Fatalf("SaveBeverage() error = %v", err)
		}
	}
	if err := store.AddUser(models.User{ID: "u1", FirstName: "Ada"}); err != nil {
		t.Fatalf("AddUser() error = %v", err)
	}

	root := filepath.Join(t.TempDir(), "trials")
	template := filepath.Join(root, "trial0")
	if err := os.MkdirAll(template, 0755); err != nil {
		t.Fatalf("failed to create template: %v", err)
	}
	ws := bandit.NewWorkspaces(root, template)
	oracle := &allItemsOracle{}
	pipeline := &bandit.Pipeline{Workspaces: ws, Oracle: oracle, TrainFraction: 0.8}

	svc := New(store, catalog.New(store), pipeline, Options{RetrainEvery: 5, KeepTrials: 2, Seed: 42})
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return &fixture{svc: svc, store: store, oracle: oracle, ws: ws}
}

func planConfig() models.MealPlanConfig {
	return models.MealPlanConfig{
		MealPlanName: "week",
		NumDays:      3,
		NumMeals:     2,
		MealConfigs: []models.MealSlotConfig{
			{MealName: "breakfast", MealTime: "08:00", MealTypes: map[string]bool{
				"beverage": true, "main_course": true, "side": false, "dessert": false,
			}},
			{MealName: "dinner", MealTime: "19:00", MealTypes: map[string]bool{
				"beverage": true, "main_course": true, "side": true, "dessert": true,
			}},
		},
	}
}

func request() Request {
	return Request{
		UserID:     "u1",
		Conditions: models.DietaryConditions{},
		Config:     planConfig(),
	}
}

func TestNeedsRetrain(t *testing.T) {
	complete := models.FavoriteItems{
		models.RoleMainCourse: {"10"}, models.RoleSide: {"20"},
		models.RoleDessert: {"30"}, models.RoleBeverage: {"40"},
	}
	vegan := models.DietaryConditions{"vegan": true}

	tests := []struct {
		name       string
		user       models.User
		conditions models.DietaryConditions
		want       bool
	}{
		{"first request", models.User{FavoriteItems: complete}, nil, true},
		{"counter between retrains", models.User{BanditCounter: 3, FavoriteItems: complete}, nil, false},
		{"counter on interval", models.User{BanditCounter: 10, FavoriteItems: complete}, nil, true},
		{"conditions changed", models.User{BanditCounter: 3, FavoriteItems: complete}, vegan, true},
		{"false condition equals missing", models.User{BanditCounter: 3, FavoriteItems: complete}, models.DietaryConditions{"vegan": false}, false},
		{"no favorites", models.User{BanditCounter: 3}, nil, true},
		{"missing role", models.User{BanditCounter: 3, FavoriteItems: models.FavoriteItems{models.RoleSide: {"20"}}}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NeedsRetrain(tt.user, tt.conditions, 5); got != tt.want {
				t.Errorf("NeedsRetrain() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRecommend_NoBeveragePredictions(t *testing.T) {
	f := newFixture(t)
	f.oracle.foodsOnly = true

	res, err := f.svc.Recommend(context.Background(), request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if len(res.Favorites[models.RoleBeverage]) != 0 {
		t.Errorf("Favorites[Beverage] = %v, want none learned", res.Favorites[models.RoleBeverage])
	}
	for date, day := range res.Plan.Days {
		for _, meal := range day.Meals {
			if got := meal.MealTypes["beverage"]; got != "40" {
				t.Errorf("%s %s beverage = %q, want catalog beverage 40", date, meal.MealName, got)
			}
		}
	}
}

func TestRecommend(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.svc.Recommend(ctx, request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if !res.Retrained || f.oracle.trains != 1 {
		t.Errorf("first Recommend() retrained = %v with %d trains, want one retrain", res.Retrained, f.oracle.trains)
	}
	if res.Counter != 1 {
		t.Errorf("Counter = %d, want 1", res.Counter)
	}

	wantDates := []string{"2026-05-01", "2026-05-02", "2026-05-03"}
	dates := res.Plan.Dates()
	if len(dates) != len(wantDates) {
		t.Fatalf("plan dates = %v, want %v", dates, wantDates)
	}
	for i, d := range wantDates {
		if dates[i] != d {
			t.Errorf("plan dates[%d] = %s, want %s", i, dates[i], d)
		}
		day := res.Plan.Days[d]
		if len(day.Meals) != 2 {
			t.Fatalf("day %s has %d meals, want 2", d, len(day.Meals))
		}
		if got := len(day.Meals[0].MealTypes); got != 2 {
			t.Errorf("breakfast roles = %d, want 2", got)
		}
		if got := len(day.Meals[1].MealTypes); got != 4 {
			t.Errorf("dinner roles = %d, want 4", got)
		}
	}
	if res.Plan.Scores == nil || len(res.Plan.Scores.Days) != 3 {
		t.Errorf("plan scores = %+v, want one entry per day", res.Plan.Scores)
	}
	if res.Plan.Mode != models.PlanModeBandit {
		t.Errorf("Mode = %s, want bandit", res.Plan.Mode)
	}

	user, err := f.store.GetUser("u1")
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if user.BanditCounter != 1 {
		t.Errorf("stored BanditCounter = %d, want 1", user.BanditCounter)
	}
	if !user.FavoriteItems.Complete() {
		t.Errorf("stored favorites = %v, want every role filled", user.FavoriteItems)
	}
	if user.MealPlanConfig == nil || user.MealPlanConfig.MealPlanName != "week" {
		t.Errorf("stored MealPlanConfig = %+v", user.MealPlanConfig)
	}
	if len(user.DayPlans) != 3 {
		t.Errorf("stored DayPlans = %v, want 3 dates", user.DayPlans)
	}

	latest, err := f.store.GetLatestMealPlan("u1")
	if err != nil {
		t.Fatalf("GetLatestMealPlan() error = %v", err)
	}
	if latest.ID != res.Plan.ID {
		t.Errorf("latest plan = %s, want %s", latest.ID, res.Plan.ID)
	}
}

func TestRecommend_CachedFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := f.svc.Recommend(ctx, request()); err != nil {
			t.Fatalf("Recommend() #%d error = %v", i+1, err)
		}
	}
	if f.oracle.trains != 1 {
		t.Errorf("trains = %d after three requests, want 1", f.oracle.trains)
	}

	req := request()
	req.Conditions = models.DietaryConditions{"vegan": true}
	res, err := f.svc.Recommend(ctx, req)
	if err != nil {
		t.Fatalf("Recommend() with new conditions error = %v", err)
	}
	if !res.Retrained || f.oracle.trains != 2 {
		t.Errorf("condition change retrained = %v with %d trains, want retrain", res.Retrained, f.oracle.trains)
	}
}

// interleavedStore lets another request bump the bandit counter after the
// service has read the user.
type interleavedStore struct {
	storage.Provider
	bumped bool
}

func (s *interleavedStore) GetUser(id string) (models.User, error) {
	u, err := s.Provider.GetUser(id)
	if err != nil || s.bumped {
		return u, err
	}
	s.bumped = true
	_, err = s.Provider.IncrementBanditCounter(id)
	return u, err
}

func TestRecommend_RetrainUsesIncrementedCounter(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, err := f.svc.Recommend(ctx, request()); err != nil {
			t.Fatalf("Recommend() #%d error = %v", i+1, err)
		}
	}
	if f.oracle.trains != 1 {
		t.Fatalf("trains = %d after four requests, want 1", f.oracle.trains)
	}

	// The user is read with counter 4, another request takes 4 -> 5, so this
	// one increments 5 -> 6 and lands on the retrain interval.
	f.svc.store = &interleavedStore{Provider: f.store}
	res, err := f.svc.Recommend(ctx, request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	if res.Counter != 6 {
		t.Errorf("Counter = %d, want 6", res.Counter)
	}
	if !res.Retrained || f.oracle.trains != 2 {
		t.Errorf("Retrained = %v with %d trains, want retrain on counter 5", res.Retrained, f.oracle.trains)
	}
}

func TestRecommend_PermanentFavoritesMerged(t *testing.T) {
	f := newFixture(t)
	perm := models.NewFavoriteItems()
	perm.Add(models.RoleMainCourse, "extra")
	if err := f.store.SetPermanentFavoriteItems("u1", perm); err != nil {
		t.Fatalf("SetPermanentFavoriteItems() error = %v", err)
	}

	res, err := f.svc.Recommend(context.Background(), request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	found := false
	for _, id := range res.Favorites[models.RoleMainCourse] {
		if id == "extra" {
			found = true
		}
	}
	if !found {
		t.Errorf("Favorites[main] = %v, want permanent favorite merged", res.Favorites[models.RoleMainCourse])
	}
}

func TestRecommend_InvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Request)
		want   error
	}{
		{"meal count mismatch", func(r *Request) { r.Config.NumMeals = 3 }, apperrors.ErrConfiguration},
		{"no days", func(r *Request) { r.Config.NumDays = 0 }, apperrors.ErrConfiguration},
		{"unknown role key", func(r *Request) {
			r.Config.MealConfigs[0].MealTypes = map[string]bool{"beverage": true, "main_course": true, "side": false, "snack": true}
		}, apperrors.ErrConfiguration},
		{"preference out of range", func(r *Request) { r.Preferences.Dairy = 2 }, apperrors.ErrUnknownOpinion},
		{"unknown condition", func(r *Request) { r.Conditions = models.DietaryConditions{"paleo": true} }, apperrors.ErrConfiguration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := request()
			tt.modify(&req)

			_, err := f.svc.Recommend(context.Background(), req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Recommend() error = %v, want %v", err, tt.want)
			}
			if f.oracle.trains != 0 {
				t.Errorf("classifier ran %d times for an invalid request", f.oracle.trains)
			}
			user, _ := f.store.GetUser("u1")
			if user.BanditCounter != 0 {
				t.Errorf("BanditCounter = %d, want 0", user.BanditCounter)
			}
		})
	}
}

func TestRecommend_ClassifierFailure(t *testing.T) {
	f := newFixture(t)
	f.oracle.failErr = &apperrors.ProcessError{Stage: "train", ExitCode: 1, Stderr: "boom"}

	_, err := f.svc.Recommend(context.Background(), request())
	if !errors.Is(err, apperrors.ErrExternalProcess) {
		t.Fatalf("Recommend() error = %v, want external process error", err)
	}
	if _, err := f.store.GetLatestMealPlan("u1"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("GetLatestMealPlan() error = %v, want not found", err)
	}
	plans, err := f.store.GetDayPlans("u1", nil)
	if err != nil {
		t.Fatalf("GetDayPlans() error = %v", err)
	}
	if len(plans) != 0 {
		t.Errorf("GetDayPlans() = %d plans, want none after failure", len(plans))
	}
}

func TestRecommendRandom(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.RecommendRandom(context.Background(), request())
	if err != nil {
		t.Fatalf("RecommendRandom() error = %v", err)
	}
	if f.oracle.trains != 0 {
		t.Errorf("trains = %d, want 0", f.oracle.trains)
	}
	if res.Plan.Mode != models.PlanModeRandom {
		t.Errorf("Mode = %s, want random", res.Plan.Mode)
	}
	if len(res.Plan.Days) != 3 {
		t.Errorf("plan has %d days, want 3", len(res.Plan.Days))
	}
}

func TestRegenerate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Regenerate(ctx, "u1", []string{"2026-05-02"}); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("Regenerate() without config error = %v, want configuration error", err)
	}

	first, err := f.svc.Recommend(ctx, request())
	if err != nil {
		t.Fatalf("Recommend() error = %v", err)
	}
	res, err := f.svc.Regenerate(ctx, "u1", []string{"2026-05-02"})
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if res.Plan.ID != first.Plan.ID {
		t.Errorf("Regenerate() plan = %s, want latest plan %s", res.Plan.ID, first.Plan.ID)
	}

	stored, err := f.store.GetDayPlans("u1", []string{"2026-05-01", "2026-05-02"})
	if err != nil {
		t.Fatalf("GetDayPlans() error = %v", err)
	}
	if stored["2026-05-01"].ID != first.Plan.Days["2026-05-01"].ID {
		t.Error("Regenerate() touched a date it was not asked to")
	}
	if stored["2026-05-02"].ID == first.Plan.Days["2026-05-02"].ID {
		t.Error("Regenerate() did not replace the requested date")
	}
	if res.Counter != 2 {
		t.Errorf("Counter = %d, want 2", res.Counter)
	}

	if _, err := f.svc.Regenerate(ctx, "u1", []string{"05/02/2026"}); !errors.Is(err, apperrors.ErrConfiguration) {
		t.Errorf("Regenerate() bad date error = %v, want configuration error", err)
	}
}

func TestTrialsPruned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		if _, _, err := f.svc.Retrain(ctx, "u1"); err != nil {
			t.Fatalf("Retrain() error = %v", err)
		}
	}
	trials, err := f.ws.List()
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(trials) != 2 {
		t.Errorf("List() = %d trials, want 2 kept", len(trials))
	}
}
