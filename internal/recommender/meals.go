package recommender

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/opinion"
	"github.com/julianstephens/platewise/internal/validation"
)

// AddUser stores a new profile. A missing id is generated.
func (s *Service) AddUser(u models.User) (models.User, error) {
	if _, err := opinion.FromPreferences(u.Preferences); err != nil {
		return models.User{}, err
	}
	if err := checkConditions(u.DietaryConditions); err != nil {
		return models.User{}, err
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.DietaryConditions == nil {
		u.DietaryConditions = models.DietaryConditions{}
	}
	if u.FavoriteItems == nil {
		u.FavoriteItems = models.NewFavoriteItems()
	}
	if u.PermanentFavoriteItems == nil {
		u.PermanentFavoriteItems = models.NewFavoriteItems()
	}
	now := s.now()
	u.CreatedAt, u.UpdatedAt = now, now
	u.BanditCounter = 0
	u.DayPlans = nil

	if err := s.store.AddUser(u); err != nil {
		return models.User{}, err
	}
	logger.Info("User added", "user", u.ID)
	return u, nil
}

func (s *Service) SetPreferences(userID string, prefs models.NumericalPreferences) error {
	if _, err := opinion.FromPreferences(prefs); err != nil {
		return err
	}
	return s.store.SetNumericalPreferences(userID, prefs)
}

// SetConditions replaces the user's dietary conditions. Unknown condition
// names are rejected.
func (s *Service) SetConditions(userID string, conditions models.DietaryConditions) error {
	if err := checkConditions(conditions); err != nil {
		return err
	}
	return s.store.SetDietaryConditions(userID, conditions)
}

func checkConditions(conditions models.DietaryConditions) error {
	for name := range conditions {
		if !slices.Contains(constants.Conditions, name) {
			return apperrors.Configuration("unknown dietary condition %q", name)
		}
	}
	return nil
}

// DayPlans returns the user's day plans for dates, or all of them when dates
// is empty.
func (s *Service) DayPlans(ctx context.Context, userID string, dates []string) (map[string]models.DayPlan, error) {
	if _, err := s.store.GetUser(userID); err != nil {
		return nil, err
	}
	return s.store.GetDayPlans(userID, dates)
}

// EditMeal changes the items of the named meal on date. updates maps a role
// key to the new item id; an empty id removes the role from the meal. Roles
// the user's meal-plan config requests for the slot cannot be removed, and a
// meal must keep at least one item.
func (s *Service) EditMeal(ctx context.Context, userID, date, mealName string, updates map[string]string) (models.DayPlan, error) {
	if len(updates) == 0 {
		return models.DayPlan{}, apperrors.Configuration("no meal updates given")
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return models.DayPlan{}, err
	}
	for key, id := range updates {
		if _, ok := models.RoleForKey(key); !ok {
			return models.DayPlan{}, apperrors.Configuration("invalid meal type %q", key)
		}
		if id == "" {
			continue
		}
		if _, ok := snap.RoleFlags(key, id); !ok {
			kind := "food item"
			if key == models.RoleBeverage.Key() {
				kind = "beverage"
			}
			return models.DayPlan{}, apperrors.Configuration("invalid %s id %q", kind, id)
		}
	}

	day, err := s.store.GetDayPlan(userID, date)
	if err != nil {
		return models.DayPlan{}, err
	}
	meal, ok := day.FindMeal(mealName)
	if !ok {
		return models.DayPlan{}, apperrors.NotFound("meal", fmt.Sprintf("%s on %s", mealName, date))
	}
	user, err := s.store.GetUser(userID)
	if err != nil {
		return models.DayPlan{}, err
	}
	required := requiredRoles(user.MealPlanConfig, meal.MealName)
	if meal.MealTypes == nil {
		meal.MealTypes = make(map[string]string)
	}
	for key, id := range updates {
		if id != "" {
			meal.MealTypes[key] = id
			continue
		}
		if required[key] {
			return models.DayPlan{}, apperrors.Configuration("meal %q requires a %s item", meal.MealName, key)
		}
		delete(meal.MealTypes, key)
	}
	if len(meal.MealTypes) == 0 {
		return models.DayPlan{}, apperrors.Configuration("meal %q would have no items; delete it instead", meal.MealName)
	}

	if err := s.saveDay(ctx, userID, day); err != nil {
		return models.DayPlan{}, err
	}
	logger.Info("Meal edited", "user", userID, "date", date, "meal", meal.MealName)
	return day, nil
}

// requiredRoles returns the role keys cfg requests for the named slot.
func requiredRoles(cfg *models.MealPlanConfig, mealName string) map[string]bool {
	if cfg == nil {
		return nil
	}
	for _, slot := range cfg.MealConfigs {
		if !strings.EqualFold(slot.MealName, mealName) {
			continue
		}
		out := make(map[string]bool)
		for _, key := range slot.Roles() {
			out[key] = true
		}
		return out
	}
	return nil
}

// SaveMeal marks a meal as kept and attaches notes to it.
func (s *Service) SaveMeal(ctx context.Context, userID, date, mealID, notes string) (models.Meal, error) {
	var saved models.Meal
	err := s.updateMeal(ctx, userID, date, mealID, func(m *models.Meal) {
		m.Saved = true
		m.Notes = notes
		saved = *m
	})
	return saved, err
}

// DeleteMeal removes a meal from the day plan for date.
func (s *Service) DeleteMeal(ctx context.Context, userID, date, mealID string) error {
	day, err := s.store.GetDayPlan(userID, date)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(day.Meals, func(m models.Meal) bool { return m.ID == mealID })
	if i < 0 {
		return apperrors.NotFound("meal", mealID)
	}
	day.Meals = slices.Delete(day.Meals, i, i+1)
	return s.saveDay(ctx, userID, day)
}

// FavoriteMeal flags a meal and adds its items to the user's permanent
// favorites, which are merged into every later generation.
func (s *Service) FavoriteMeal(ctx context.Context, userID, date, mealID string) (models.FavoriteItems, error) {
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}

	var items map[string]string
	err = s.updateMeal(ctx, userID, date, mealID, func(m *models.Meal) {
		m.Favorited = true
		items = m.MealTypes
	})
	if err != nil {
		return nil, err
	}

	perm := user.PermanentFavoriteItems.Clone()
	if perm == nil {
		perm = models.NewFavoriteItems()
	}
	for key, id := range items {
		if role, ok := models.RoleForKey(key); ok {
			perm.Add(role, id)
		}
	}
	if err := s.store.SetPermanentFavoriteItems(userID, perm); err != nil {
		return nil, err
	}
	logger.Info("Meal favorited", "user", userID, "meal", mealID, "items", len(items))
	return perm, nil
}

// UnfavoriteItem drops one item from the user's permanent favorites.
func (s *Service) UnfavoriteItem(userID, roleKey, itemID string) (models.FavoriteItems, error) {
	role, ok := models.RoleForKey(roleKey)
	if !ok {
		return nil, apperrors.Configuration("invalid meal type %q", roleKey)
	}
	user, err := s.store.GetUser(userID)
	if err != nil {
		return nil, err
	}
	perm := user.PermanentFavoriteItems.Clone()
	if !perm.Remove(role, itemID) {
		return nil, apperrors.NotFound("permanent favorite", roleKey+"/"+itemID)
	}
	if err := s.store.SetPermanentFavoriteItems(userID, perm); err != nil {
		return nil, err
	}
	return perm, nil
}

// Rescore recomputes a stored meal plan's scores against the current catalog
// and the owner's preferences.
func (s *Service) Rescore(ctx context.Context, planID string) (models.MealPlan, error) {
	plan, err := s.store.GetMealPlan(planID)
	if err != nil {
		return models.MealPlan{}, err
	}
	user, err := s.store.GetUser(plan.UserID)
	if err != nil {
		return models.MealPlan{}, err
	}
	if user.MealPlanConfig == nil {
		return models.MealPlan{}, apperrors.Configuration("user %s has no meal plan config", user.ID)
	}
	snap, err := s.catalog.Snapshot(ctx)
	if err != nil {
		return models.MealPlan{}, err
	}
	if err := s.score(&plan, *user.MealPlanConfig, user.Preferences, snap); err != nil {
		return models.MealPlan{}, err
	}
	if err := s.store.SaveMealPlan(plan); err != nil {
		return models.MealPlan{}, err
	}
	return plan, nil
}

// CheckConfig validates a meal-plan config without generating anything.
func CheckConfig(cfg models.MealPlanConfig) error {
	result := validation.ValidateMealPlanConfig(cfg)
	return result.Err()
}

func (s *Service) updateMeal(ctx context.Context, userID, date, mealID string, fn func(*models.Meal)) error {
	day, err := s.store.GetDayPlan(userID, date)
	if err != nil {
		return err
	}
	meal, ok := day.FindMealByID(mealID)
	if !ok {
		return apperrors.NotFound("meal", mealID)
	}
	fn(meal)
	return s.saveDay(ctx, userID, day)
}

// saveDay stores a changed day plan and mirrors it into the user's latest
// meal plan when that plan covers the date.
func (s *Service) saveDay(ctx context.Context, userID string, day models.DayPlan) error {
	day.UserID = userID
	if err := s.store.SaveDayPlan(userID, day); err != nil {
		return err
	}

	plan, err := s.store.GetLatestMealPlan(userID)
	if errors.Is(err, apperrors.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if _, ok := plan.Days[day.Date]; !ok {
		return nil
	}
	plan.Days[day.Date] = day

	user, err := s.store.GetUser(userID)
	if err != nil {
		return err
	}
	if user.MealPlanConfig != nil {
		snap, err := s.catalog.Snapshot(ctx)
		if err != nil {
			return err
		}
		if err := s.score(&plan, *user.MealPlanConfig, user.Preferences, snap); err != nil {
			logger.Warn("Could not rescore meal plan after edit", "plan", plan.ID, "error", err)
			plan.Scores = nil
		}
	}
	return s.store.SaveMealPlan(plan)
}
