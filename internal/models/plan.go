package models

import (
	"sort"
	"strings"
	"time"

	"github.com/julianstephens/platewise/internal/constants"
)

// MealSlotConfig declares one named meal slot and which roles it requires.
type MealSlotConfig struct {
	MealName  string          `json:"meal_name" yaml:"meal_name" validate:"required"`
	MealTime  string          `json:"meal_time" yaml:"meal_time"`
	MealTypes map[string]bool `json:"meal_types" yaml:"meal_types" validate:"required,len=4,dive,keys,oneof=beverage main_course side dessert,endkeys"`
}

// Roles returns the role keys this slot requires, in constants.RoleKeys order.
func (c MealSlotConfig) Roles() []string {
	var roles []string
	for _, key := range constants.RoleKeys {
		if c.MealTypes[key] {
			roles = append(roles, key)
		}
	}
	return roles
}

type MealPlanConfig struct {
	MealPlanName string           `json:"meal_plan_name" yaml:"meal_plan_name"`
	NumDays      int              `json:"num_days" yaml:"num_days" validate:"required,min=1,max=90"`
	NumMeals     int              `json:"num_meals" yaml:"num_meals" validate:"required,min=1"`
	MealConfigs  []MealSlotConfig `json:"meal_configs" yaml:"meal_configs" validate:"required,min=1,dive"`
}

// Meal is one generated slot instance. MealTypes maps role key to item id and
// holds exactly the roles the slot config requested.
type Meal struct {
	ID        string            `json:"_id"`
	MealName  string            `json:"meal_name"`
	MealTime  string            `json:"meal_time"`
	MealTypes map[string]string `json:"meal_types"`
	Saved     bool              `json:"saved,omitempty"`
	Favorited bool              `json:"favorited,omitempty"`
	Notes     string            `json:"nl_recommendations,omitempty"`
}

// Items returns the selected item ids in constants.RoleKeys order.
func (m Meal) Items() []string {
	var items []string
	for _, key := range constants.RoleKeys {
		if id, ok := m.MealTypes[key]; ok {
			items = append(items, id)
		}
	}
	return items
}

type DayPlan struct {
	ID     string `json:"id"`
	UserID string `json:"user_id,omitempty"`
	Date   string `json:"date"` // YYYY-MM-DD
	Meals  []Meal `json:"meals"`
}

// FindMeal returns the meal with the given slot name, compared case-insensitively.
func (d *DayPlan) FindMeal(name string) (*Meal, bool) {
	for i := range d.Meals {
		if strings.EqualFold(d.Meals[i].MealName, name) {
			return &d.Meals[i], true
		}
	}
	return nil, false
}

// FindMealByID returns the meal with the given id.
func (d *DayPlan) FindMealByID(id string) (*Meal, bool) {
	for i := range d.Meals {
		if d.Meals[i].ID == id {
			return &d.Meals[i], true
		}
	}
	return nil, false
}

// PlanMode records how a meal plan was produced.
type PlanMode string

const (
	PlanModeBandit PlanMode = "bandit"
	PlanModeRandom PlanMode = "random"
)

type MealPlan struct {
	ID        string             `json:"_id"`
	UserID    string             `json:"user_id"`
	Name      string             `json:"name"`
	Mode      PlanMode           `json:"mode"`
	Days      map[string]DayPlan `json:"days"`
	Scores    *PlanScores        `json:"scores,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Dates returns the plan's dates in ascending order.
func (p MealPlan) Dates() []string {
	dates := make([]string, 0, len(p.Days))
	for d := range p.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
