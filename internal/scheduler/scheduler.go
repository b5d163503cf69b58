package scheduler

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/utils"
)

// ErrNoCandidates is returned when a slot requires a role that has no usable
// favorite items.
var ErrNoCandidates = fmt.Errorf("%w: no candidate items", apperrors.ErrConfiguration)

// Scheduler builds meal plans from a catalog snapshot. It is not safe for
// concurrent use because it draws from a single random source.
type Scheduler struct {
	snap *catalog.Snapshot
	rng  *rand.Rand
}

func New(snap *catalog.Snapshot, rng *rand.Rand) *Scheduler {
	return &Scheduler{snap: snap, rng: rng}
}

// Generate creates a day plan for each of numDays dates from start, filling
// every configured slot from the favorite items.
func (s *Scheduler) Generate(fav models.FavoriteItems, numDays int, configs []models.MealSlotConfig, start time.Time, conditions models.DietaryConditions) (map[string]models.DayPlan, error) {
	if numDays < 1 {
		return nil, apperrors.Configuration("num_days must be at least 1, got %d", numDays)
	}
	return s.GenerateDates(fav, utils.DateRange(start, numDays), configs, conditions)
}

// GenerateRandom is Generate with every catalog item that can fill a role as
// that role's candidates.
func (s *Scheduler) GenerateRandom(numDays int, configs []models.MealSlotConfig, start time.Time, conditions models.DietaryConditions) (map[string]models.DayPlan, error) {
	return s.Generate(s.CatalogFavorites(), numDays, configs, start, conditions)
}

// CatalogFavorites returns a favorite-items set holding the whole catalog.
func (s *Scheduler) CatalogFavorites() models.FavoriteItems {
	fav := models.NewFavoriteItems()
	for _, r := range models.AllRoles {
		fav[r] = s.snap.IDsForRole(r)
	}
	return fav
}

// GenerateDates creates fresh day plans for the given dates only.
func (s *Scheduler) GenerateDates(fav models.FavoriteItems, dates []string, configs []models.MealSlotConfig, conditions models.DietaryConditions) (map[string]models.DayPlan, error) {
	if len(configs) == 0 {
		return nil, apperrors.Configuration("at least one meal config is required")
	}

	// Candidate lists are resolved once per role key and reused for every meal.
	pools := make(map[string][]string)
	for _, cfg := range configs {
		for _, key := range cfg.Roles() {
			if _, ok := pools[key]; ok {
				continue
			}
			pool, err := s.candidates(fav, key, conditions)
			if err != nil {
				return nil, err
			}
			pools[key] = pool
		}
	}

	days := make(map[string]models.DayPlan, len(dates))
	for _, date := range dates {
		if _, err := time.Parse(constants.DateFormat, date); err != nil {
			return nil, apperrors.Configuration("invalid date %q: %v", date, err)
		}
		plan := models.DayPlan{
			ID:    uuid.NewString(),
			Date:  date,
			Meals: make([]models.Meal, 0, len(configs)),
		}
		for _, cfg := range configs {
			plan.Meals = append(plan.Meals, s.meal(cfg, pools))
		}
		days[date] = plan
	}

	logger.Debug("Generated day plans", "days", len(days), "meals_per_day", len(configs))
	return days, nil
}

// Meal builds a single meal for a slot with a fresh id.
func (s *Scheduler) Meal(fav models.FavoriteItems, cfg models.MealSlotConfig, conditions models.DietaryConditions) (models.Meal, error) {
	pools := make(map[string][]string)
	for _, key := range cfg.Roles() {
		pool, err := s.candidates(fav, key, conditions)
		if err != nil {
			return models.Meal{}, err
		}
		pools[key] = pool
	}
	return s.meal(cfg, pools), nil
}

func (s *Scheduler) meal(cfg models.MealSlotConfig, pools map[string][]string) models.Meal {
	m := models.Meal{
		ID:        uuid.NewString(),
		MealName:  cfg.MealName,
		MealTime:  cfg.MealTime,
		MealTypes: make(map[string]string),
	}
	for _, key := range cfg.Roles() {
		pool := pools[key]
		m.MealTypes[key] = pool[s.rng.IntN(len(pool))]
	}
	return m
}

// candidates returns the favorite items for a role key that exist in the
// catalog and satisfy every active condition. A role with no usable
// favorites draws from every catalog item that can fill it instead.
func (s *Scheduler) candidates(fav models.FavoriteItems, key string, conditions models.DietaryConditions) ([]string, error) {
	role, ok := models.RoleForKey(key)
	if !ok {
		return nil, apperrors.Configuration("unknown meal type %q", key)
	}

	if pool := s.pool(fav[role], role, conditions); len(pool) > 0 {
		return pool, nil
	}
	logger.Warn("No usable favorite items, drawing from the catalog", "role", role)
	if pool := s.pool(s.snap.IDsForRole(role), role, conditions); len(pool) > 0 {
		return pool, nil
	}
	return nil, fmt.Errorf("%w: role %s", ErrNoCandidates, role)
}

// pool keeps the ids present in the catalog, narrowed to those satisfying
// conditions. When none satisfy them the unfiltered ids are returned.
func (s *Scheduler) pool(ids []string, role models.Role, conditions models.DietaryConditions) []string {
	var known, filtered []string
	for _, id := range ids {
		flags, ok := s.snap.RoleFlags(role.Key(), id)
		if !ok {
			continue
		}
		known = append(known, id)
		if flags.Satisfies(conditions) {
			filtered = append(filtered, id)
		}
	}
	if len(filtered) == 0 && len(known) > 0 {
		logger.Warn("No items satisfy dietary conditions, using unfiltered list",
			"role", role, "conditions", conditions.Active())
		return known
	}
	return filtered
}
