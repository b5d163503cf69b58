package recommender

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/platewise/internal/bandit"
	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/goodness"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
	"github.com/julianstephens/platewise/internal/reducer"
	"github.com/julianstephens/platewise/internal/scheduler"
	"github.com/julianstephens/platewise/internal/storage"
)

type Options struct {
	// RetrainEvery forces a retrain when the bandit counter is a multiple of it.
	RetrainEvery int
	// KeepTrials is how many trial workspaces survive a retrain. 0 keeps all.
	KeepTrials int
	// Seed fixes the random source. 0 seeds from the clock.
	Seed uint64
}

// Service ties the store, the catalog cache and the bandit pipeline together.
// It is safe for concurrent use.
type Service struct {
	store    storage.Provider
	catalog  *catalog.Cache
	pipeline *bandit.Pipeline
	opts     Options

	mu  sync.Mutex // guards rng
	rng *rand.Rand

	trainings singleflight.Group
	now       func() time.Time
}

func New(store storage.Provider, cache *catalog.Cache, pipeline *bandit.Pipeline, opts Options) *Service {
	if opts.RetrainEvery < 1 {
		opts.RetrainEvery = constants.DefaultRetrainEvery
	}
	seed := opts.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Service{
		store:    store,
		catalog:  cache,
		pipeline: pipeline,
		opts:     opts,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		now:      time.Now,
	}
}

// source derives an independent generator for one operation.
func (s *Service) source() *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	return rand.New(rand.NewPCG(s.rng.Uint64(), s.rng.Uint64()))
}

// Request asks for a fresh meal plan.
type Request struct {
	UserID      string
	Preferences models.NumericalPreferences
	Conditions  models.DietaryConditions
	Config      models.MealPlanConfig
	// Start is the first planned date. Zero means today.
	Start time.Time
}

// Result is a generated or updated meal plan and how its favorites were obtained.
type Result struct {
	Plan models.MealPlan
	// Favorites are the items generation drew from, permanent favorites included.
	Favorites models.FavoriteItems
	Retrained bool
	Counter   int
	Warnings  []apperrors.ParseWarning
}

// NeedsRetrain reports whether favorites must be relearned before generating.
// user.BanditCounter is the value before the current request increments it.
func NeedsRetrain(user models.User, conditions models.DietaryConditions, every int) bool {
	switch {
	case !user.DietaryConditions.Equal(conditions):
		return true
	case every > 0 && user.BanditCounter%every == 0:
		return true
	case !user.FavoriteItems.Complete():
		return true
	}
	return false
}

// Recommend generates a bandit-mode meal plan and stores it along with the
// request's config, preferences and conditions.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	synthetic, err := s.checkRequest(req)
	if err != nil {
		return nil, err
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(req.UserID)
	if err != nil {
		return nil, err
	}

	res, err := s.favorites(ctx, snap, user, synthetic, req.Conditions)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(snap, s.source())
	days, err := sched.Generate(res.Favorites, req.Config.NumDays, req.Config.MealConfigs, s.start(req.Start), req.Conditions)
	if err != nil {
		return nil, err
	}

	res.Plan, err = s.newPlan(user.ID, req.Config, models.PlanModeBandit, days, req.Preferences, snap)
	if err != nil {
		return nil, err
	}
	if err := s.persist(res.Plan); err != nil {
		return nil, err
	}
	if err := s.saveProfile(user.ID, req); err != nil {
		return nil, err
	}

	logger.Info("Meal plan generated", "user", user.ID, "plan", res.Plan.ID, "days", len(days),
		"retrained", res.Retrained, "counter", res.Counter)
	return res, nil
}

// RecommendRandom generates a plan from the whole catalog without consulting
// or training the bandit.
func (s *Service) RecommendRandom(ctx context.Context, req Request) (*Result, error) {
	if _, err := s.checkRequest(req); err != nil {
		return nil, err
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(req.UserID)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(snap, s.source())
	days, err := sched.GenerateRandom(req.Config.NumDays, req.Config.MealConfigs, s.start(req.Start), req.Conditions)
	if err != nil {
		return nil, err
	}

	res := &Result{Favorites: sched.CatalogFavorites(), Counter: user.BanditCounter}
	res.Plan, err = s.newPlan(user.ID, req.Config, models.PlanModeRandom, days, req.Preferences, snap)
	if err != nil {
		return nil, err
	}
	if err := s.persist(res.Plan); err != nil {
		return nil, err
	}
	if err := s.saveProfile(user.ID, req); err != nil {
		return nil, err
	}
	logger.Info("Random meal plan generated", "user", user.ID, "plan", res.Plan.ID, "days", len(days))
	return res, nil
}

// Regenerate replaces the day plans for dates using the user's stored config,
// preferences and conditions. The latest meal plan is updated to hold them.
func (s *Service) Regenerate(ctx context.Context, userID string, dates []string) (*Result, error) {
	if len(dates) == 0 {
		return nil, apperrors.Configuration("at least one date is required")
	}
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	if user.MealPlanConfig == nil {
		return nil, apperrors.Configuration("user %s has no meal plan config, run a recommendation first", userID)
	}
	cfg := *user.MealPlanConfig
	synthetic, err := opinion.SyntheticUser(user.Preferences)
	if err != nil {
		return nil, err
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.favorites(ctx, snap, user, synthetic, user.DietaryConditions)
	if err != nil {
		return nil, err
	}

	sched := scheduler.New(snap, s.source())
	days, err := sched.GenerateDates(res.Favorites, dates, cfg.MealConfigs, user.DietaryConditions)
	if err != nil {
		return nil, err
	}

	plan, err := s.store.GetLatestMealPlan(userID)
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		plan = models.MealPlan{ID: uuid.NewString(), UserID: userID, Name: cfg.MealPlanName,
			Mode: models.PlanModeBandit, CreatedAt: s.now()}
	case err != nil:
		return nil, err
	}
	if plan.Days == nil {
		plan.Days = make(map[string]models.DayPlan, len(days))
	}
	for date, day := range days {
		day.UserID = userID
		plan.Days[date] = day
	}
	if err := s.score(&plan, cfg, user.Preferences, snap); err != nil {
		return nil, err
	}
	for _, date := range dates {
		if err := s.store.SaveDayPlan(userID, plan.Days[date]); err != nil {
			return nil, err
		}
	}
	if err := s.store.SaveMealPlan(plan); err != nil {
		return nil, err
	}

	res.Plan = plan
	logger.Info("Day plans regenerated", "user", userID, "dates", dates, "retrained", res.Retrained)
	return res, nil
}

// Retrain runs a trial for the user regardless of the counter and stores the
// learned favorites.
func (s *Service) Retrain(ctx context.Context, userID string) (models.FavoriteItems, []apperrors.ParseWarning, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, nil, err
	}
	synthetic, err := opinion.SyntheticUser(user.Preferences)
	if err != nil {
		return nil, nil, err
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return nil, nil, err
	}
	trained, err := s.train(ctx, snap, synthetic)
	if err != nil {
		return nil, nil, err
	}
	if err := s.store.SetFavoriteItems(userID, trained.favorites); err != nil {
		return nil, nil, err
	}
	return trained.favorites, trained.warnings, nil
}

func (s *Service) checkRequest(req Request) (int, error) {
	if req.UserID == "" {
		return 0, apperrors.Configuration("user id is required")
	}
	if err := CheckConfig(req.Config); err != nil {
		return 0, err
	}
	if err := checkConditions(req.Conditions); err != nil {
		return 0, err
	}
	return opinion.SyntheticUser(req.Preferences)
}

func (s *Service) start(t time.Time) time.Time {
	if t.IsZero() {
		return s.now()
	}
	return t
}

// favorites bumps the bandit counter and returns the items to generate from,
// retraining first when NeedsRetrain says so. The retrain interval is judged
// on the counter the store handed back, so concurrent requests each see a
// distinct value.
func (s *Service) favorites(ctx context.Context, snap *catalog.Snapshot, user models.User, synthetic int, conditions models.DietaryConditions) (*Result, error) {
	counter, err := s.store.IncrementBanditCounter(user.ID)
	if err != nil {
		return nil, err
	}
	user.BanditCounter = counter - 1
	retrain := NeedsRetrain(user, conditions, s.opts.RetrainEvery)

	res := &Result{Retrained: retrain, Counter: counter}
	fav := user.FavoriteItems
	if retrain {
		logger.Debug("Retraining favorites", "user", user.ID, "synthetic_user", synthetic, "counter", counter)
		trained, err := s.train(ctx, snap, synthetic)
		if err != nil {
			return nil, err
		}
		if err := s.store.SetFavoriteItems(user.ID, trained.favorites); err != nil {
			return nil, err
		}
		fav, res.Warnings = trained.favorites, trained.warnings
	}
	res.Favorites = fav.Merge(user.PermanentFavoriteItems)
	return res, nil
}

type training struct {
	favorites models.FavoriteItems
	warnings  []apperrors.ParseWarning
}

// train runs one trial and reduces its predictions to the favorites of a
// synthetic user. Concurrent calls for the same synthetic user share a trial.
func (s *Service) train(ctx context.Context, snap *catalog.Snapshot, synthetic int) (training, error) {
	if s.pipeline == nil {
		return training{}, apperrors.Configuration("no classifier configured")
	}
	v, err, shared := s.trainings.Do(fmt.Sprintf("user_%d", synthetic), func() (interface{}, error) {
		rng := s.source()
		run, err := s.pipeline.Run(ctx, snap, rng)
		if err != nil {
			return nil, err
		}
		foods, err := reducer.ReduceFoods(run.Predictions, opinion.NumUsers, snap, rng)
		if err != nil {
			return nil, err
		}
		bevs, err := reducer.ReduceBeverages(run.Predictions, opinion.NumUsers, snap)
		if err != nil {
			return nil, err
		}
		s.prune()
		return training{favorites: reducer.Favorites(foods, bevs, synthetic), warnings: run.Warnings}, nil
	})
	if err != nil {
		return training{}, err
	}
	t := v.(training)
	if shared {
		t.favorites = t.favorites.Clone()
	}
	return t, nil
}

func (s *Service) prune() {
	if s.opts.KeepTrials < 1 {
		return
	}
	removed, err := s.pipeline.Workspaces.Prune(s.opts.KeepTrials)
	if err != nil {
		logger.Warn("Failed to prune trial workspaces", "error", err)
		return
	}
	if removed > 0 {
		logger.Debug("Pruned trial workspaces", "removed", removed)
	}
}

func (s *Service) newPlan(userID string, cfg models.MealPlanConfig, mode models.PlanMode, days map[string]models.DayPlan, prefs models.NumericalPreferences, snap *catalog.Snapshot) (models.MealPlan, error) {
	plan := models.MealPlan{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      cfg.MealPlanName,
		Mode:      mode,
		Days:      days,
		CreatedAt: s.now(),
	}
	for date, day := range plan.Days {
		day.UserID = userID
		plan.Days[date] = day
	}
	if err := s.score(&plan, cfg, prefs, snap); err != nil {
		return models.MealPlan{}, err
	}
	return plan, nil
}

func (s *Service) score(plan *models.MealPlan, cfg models.MealPlanConfig, prefs models.NumericalPreferences, snap *catalog.Snapshot) error {
	scores, err := goodness.ScorePlan(plan.Days, cfg.MealConfigs, prefs, snap)
	if err != nil {
		return fmt.Errorf("failed to score meal plan: %w", err)
	}
	plan.Scores = &scores
	return nil
}

// persist writes every day plan, then the meal plan that groups them.
func (s *Service) persist(plan models.MealPlan) error {
	for _, date := range plan.Dates() {
		if err := s.store.SaveDayPlan(plan.UserID, plan.Days[date]); err != nil {
			return err
		}
	}
	return s.store.SaveMealPlan(plan)
}

func (s *Service) saveProfile(userID string, req Request) error {
	if err := s.store.SetMealPlanConfig(userID, req.Config); err != nil {
		return err
	}
	if err := s.store.SetNumericalPreferences(userID, req.Preferences); err != nil {
		return err
	}
	conditions := req.Conditions
	if conditions == nil {
		conditions = models.DietaryConditions{}
	}
	return s.store.SetDietaryConditions(userID, conditions)
}
