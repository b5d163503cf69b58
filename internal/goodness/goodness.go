// Package goodness scores generated meal plans on variety, role coverage and
// adherence to a user's nutritional preferences. All scoring is pure: the same
// plan, configs and preferences always produce the same scores.
package goodness

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

// ErrUnknownItem is returned when a meal references an item missing from the catalog.
var ErrUnknownItem = errors.New("unknown catalog item")

// Variety is 1 - duplicates/n over the meal's selected items, where
// duplicates is n minus the number of distinct items. An empty meal scores 1.
func Variety(meal models.Meal) float64 {
	items := meal.Items()
	n := len(items)
	if n == 0 {
		return 1
	}
	distinct := make(map[string]struct{}, n)
	for _, id := range items {
		distinct[id] = struct{}{}
	}
	return 1 - float64(n-len(distinct))/float64(n)
}

// Coverage measures how well selected items fill a slot's desired roles.
type Coverage struct {
	Desired []string  // role keys, in indicator order
	Weights []float64 // one per desired role
}

// NewCoverage weights every desired role 1.
func NewCoverage(desired []string) *Coverage {
	w := make([]float64, len(desired))
	for i := range w {
		w[i] = 1
	}
	return &Coverage{Desired: slices.Clone(desired), Weights: w}
}

// SetWeights replaces the role weights.
func (c *Coverage) SetWeights(w []float64) error {
	if len(w) != len(c.Desired) {
		return fmt.Errorf("coverage needs %d weights, got %d", len(c.Desired), len(w))
	}
	c.Weights = slices.Clone(w)
	return nil
}

// Indicator maps the roles an item can fill onto the desired-role order.
func (c *Coverage) Indicator(roleKeys []string) []int {
	ind := make([]int, len(c.Desired))
	for i, want := range c.Desired {
		if slices.Contains(roleKeys, want) {
			ind[i] = 1
		}
	}
	return ind
}

// Score returns covered/W - offRole/n, floored at 0. covered is the weight of
// desired roles indicated by at least one item, W the total weight, offRole
// the number of items indicating no desired role and n the number of items.
func (c *Coverage) Score(indicators [][]int) float64 {
	n := len(indicators)
	if n == 0 {
		return 0
	}

	var total, covered float64
	for i, w := range c.Weights {
		total += w
		for _, ind := range indicators {
			if i < len(ind) && ind[i] != 0 {
				covered += w
				break
			}
		}
	}

	offRole := 0
	for _, ind := range indicators {
		if !slices.ContainsFunc(ind, func(v int) bool { return v != 0 }) {
			offRole++
		}
	}

	var score float64
	if total > 0 {
		score = covered / total
	}
	score -= float64(offRole) / float64(n)
	if score < 0 {
		return 0
	}
	return score
}

// Constraints weights item flags by a user's signed preferences.
type Constraints struct {
	weights map[string]float64
}

func NewConstraints() *Constraints {
	return &Constraints{weights: make(map[string]float64)}
}

// Set registers or overwrites the weight for one flag.
func (c *Constraints) Set(flag string, weight float64) {
	c.weights[flag] = weight
}

// Replace drops every existing constraint and installs the given ones.
func (c *Constraints) Replace(weights map[string]float64) {
	c.weights = make(map[string]float64, len(weights))
	for f, w := range weights {
		c.weights[f] = w
	}
}

// Flags returns the constrained flags, sorted.
func (c *Constraints) Flags() []string {
	flags := make([]string, 0, len(c.weights))
	for f := range c.weights {
		flags = append(flags, f)
	}
	slices.Sort(flags)
	return flags
}

// Score returns clamp(1 + sum(w*has)/n, 0, 1) over n items and, per flag, the
// signed total sum(w*has). Liked flags raise the score, disliked ones lower it.
func (c *Constraints) Score(items []models.DietaryFlags) (float64, map[string]float64) {
	totals := make(map[string]float64, len(c.weights))
	var sum float64
	for flag, w := range c.weights {
		totals[flag] = 0
		for _, it := range items {
			if it.Has(flag) {
				totals[flag] += w
				sum += w
			}
		}
	}
	if len(items) == 0 {
		return 1, totals
	}
	score := 1 + sum/float64(len(items))
	return min(max(score, 0), 1), totals
}

// preferenceWeights converts numerical preferences to constraint weights.
func preferenceWeights(prefs models.NumericalPreferences) map[string]float64 {
	out := make(map[string]float64, 3)
	for flag, w := range prefs.Weights() {
		out[flag] = float64(w)
	}
	return out
}

// ScoreMeal scores one meal against its slot config.
func ScoreMeal(meal models.Meal, cfg models.MealSlotConfig, prefs models.NumericalPreferences, snap *catalog.Snapshot) (models.MealScore, error) {
	cov := NewCoverage(cfg.Roles())
	var (
		indicators [][]int
		flags      []models.DietaryFlags
	)
	for _, key := range constants.RoleKeys {
		id, ok := meal.MealTypes[key]
		if !ok {
			continue
		}
		f, ok := snap.RoleFlags(key, id)
		if !ok {
			return models.MealScore{}, fmt.Errorf("%w: %s %q in meal %s", ErrUnknownItem, key, id, meal.MealName)
		}
		flags = append(flags, f)

		var itemRoles []string
		if key == constants.RoleKeyBeverage {
			itemRoles = []string{constants.RoleKeyBeverage}
		} else {
			item, _ := snap.Food(id)
			for _, r := range item.Roles {
				itemRoles = append(itemRoles, r.Key())
			}
		}
		indicators = append(indicators, cov.Indicator(itemRoles))
	}

	// Constraints are rebuilt for every meal so nothing carries over.
	cons := NewConstraints()
	cons.Replace(preferenceWeights(prefs))
	nutritional, totals := cons.Score(flags)

	return models.MealScore{
		MealID:   meal.ID,
		MealName: meal.MealName,
		Score: models.Score{
			Variety:     Variety(meal),
			Coverage:    cov.Score(indicators),
			Nutritional: nutritional,
		},
		Constraints: totals,
	}, nil
}

func findConfig(configs []models.MealSlotConfig, name string) (models.MealSlotConfig, bool) {
	for _, c := range configs {
		if strings.EqualFold(c.MealName, name) {
			return c, true
		}
	}
	return models.MealSlotConfig{}, false
}

func mean(scores []models.Score) models.Score {
	if len(scores) == 0 {
		return models.Score{}
	}
	var out models.Score
	for _, s := range scores {
		out.Variety += s.Variety
		out.Coverage += s.Coverage
		out.Nutritional += s.Nutritional
	}
	n := float64(len(scores))
	return models.Score{Variety: out.Variety / n, Coverage: out.Coverage / n, Nutritional: out.Nutritional / n}
}

// ScoreDay scores every meal of a day plan and averages them.
func ScoreDay(day models.DayPlan, configs []models.MealSlotConfig, prefs models.NumericalPreferences, snap *catalog.Snapshot) (models.DayScore, error) {
	ds := models.DayScore{Date: day.Date, Meals: make([]models.MealScore, 0, len(day.Meals))}
	scores := make([]models.Score, 0, len(day.Meals))
	for _, meal := range day.Meals {
		cfg, ok := findConfig(configs, meal.MealName)
		if !ok {
			return ds, apperrors.Configuration("no meal config named %q for %s", meal.MealName, day.Date)
		}
		ms, err := ScoreMeal(meal, cfg, prefs, snap)
		if err != nil {
			return ds, err
		}
		ds.Meals = append(ds.Meals, ms)
		scores = append(scores, ms.Score)
	}
	ds.Average = mean(scores)
	return ds, nil
}

// ScorePlan scores each day and averages the day averages.
func ScorePlan(days map[string]models.DayPlan, configs []models.MealSlotConfig, prefs models.NumericalPreferences, snap *catalog.Snapshot) (models.PlanScores, error) {
	dates := make([]string, 0, len(days))
	for d := range days {
		dates = append(dates, d)
	}
	slices.Sort(dates)

	ps := models.PlanScores{Days: make(map[string]models.DayScore, len(days))}
	averages := make([]models.Score, 0, len(days))
	for _, date := range dates {
		ds, err := ScoreDay(days[date], configs, prefs, snap)
		if err != nil {
			return models.PlanScores{}, err
		}
		ps.Days[date] = ds
		averages = append(averages, ds.Average)
	}
	ps.Average = mean(averages)
	return ps, nil
}
