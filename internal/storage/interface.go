package storage

import "github.com/julianstephens/platewise/internal/models"

// Provider is the document store behind the catalog, user profiles and
// generated plans. Missing records are reported with errors matching
// apperrors.ErrNotFound; every other failure matches apperrors.ErrStore.
type Provider interface {
	// Lifecycle
	Init() error
	Load() error
	Close() error

	// Catalog
	GetFoodItems() (map[string]models.FoodItem, error)
	GetBeverages() (map[string]models.Beverage, error)
	GetFoodItem(id string) (models.FoodItem, error)
	GetBeverage(id string) (models.Beverage, error)
	SaveFoodItem(models.FoodItem) error
	SaveBeverage(models.Beverage) error

	// Users
	AddUser(models.User) error
	// GetUser returns the profile with DayPlans filled in (date -> day plan id).
	GetUser(id string) (models.User, error)
	GetAllUsers() ([]models.User, error)
	// DeleteUser removes the profile together with its day plans and meal plans.
	DeleteUser(id string) error

	// Single-field patches. Each is independent of the others.
	SetNumericalPreferences(userID string, prefs models.NumericalPreferences) error
	SetDietaryConditions(userID string, conditions models.DietaryConditions) error
	SetFavoriteItems(userID string, fav models.FavoriteItems) error
	SetPermanentFavoriteItems(userID string, fav models.FavoriteItems) error
	SetMealPlanConfig(userID string, cfg models.MealPlanConfig) error
	// IncrementBanditCounter atomically adds one and returns the new value.
	IncrementBanditCounter(userID string) (int, error)

	// Day plans. SaveDayPlan replaces any plan stored for the same user and date.
	SaveDayPlan(userID string, plan models.DayPlan) error
	GetDayPlan(userID, date string) (models.DayPlan, error)
	// GetDayPlans returns the plans found for dates; missing dates are omitted.
	GetDayPlans(userID string, dates []string) (map[string]models.DayPlan, error)

	// Meal plans
	SaveMealPlan(models.MealPlan) error
	GetMealPlan(id string) (models.MealPlan, error)
	GetLatestMealPlan(userID string) (models.MealPlan, error)

	// Utils
	GetConfigPath() string
}
