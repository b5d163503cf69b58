package models

import (
	"strings"

	"github.com/julianstephens/platewise/internal/constants"
)

// Role is a meal-slot category an item can fulfil.
type Role string

const (
	RoleMainCourse Role = "Main Course"
	RoleSide       Role = "Side"
	RoleDessert    Role = "Dessert"
	RoleBeverage   Role = "Beverage"
)

// FoodRoles are the roles reduced from food predictions.
var FoodRoles = []Role{RoleMainCourse, RoleSide, RoleDessert}

// AllRoles is every role a favorite-items set carries.
var AllRoles = []Role{RoleMainCourse, RoleSide, RoleDessert, RoleBeverage}

// Key returns the slot key for the role, e.g. "Main Course" -> "main_course".
func (r Role) Key() string {
	return strings.ReplaceAll(strings.ToLower(string(r)), " ", "_")
}

// RoleForKey maps a slot key back to its role.
func RoleForKey(key string) (Role, bool) {
	for _, r := range AllRoles {
		if r.Key() == key {
			return r, true
		}
	}
	return "", false
}

type Nutrition struct {
	Calories float64 `json:"calories" yaml:"calories"`
	Carbs    float64 `json:"carbs" yaml:"carbs"`
	Protein  float64 `json:"protein" yaml:"protein"`
	Fiber    float64 `json:"fiber" yaml:"fiber"`
}

// DietaryFlags is the flag shape shared by foods and beverages.
type DietaryFlags struct {
	HasDairy     bool `json:"hasDairy" yaml:"hasDairy"`
	HasMeat      bool `json:"hasMeat" yaml:"hasMeat"`
	HasNuts      bool `json:"hasNuts" yaml:"hasNuts"`
	IsVegan      bool `json:"isVegan" yaml:"isVegan"`
	IsGlutenFree bool `json:"isGlutenFree" yaml:"isGlutenFree"`
	IsLowSugar   bool `json:"isLowSugar" yaml:"isLowSugar"`
}

// Has reports whether the named flag (constants.FlagDairy, FlagMeat, FlagNuts) is set.
func (f DietaryFlags) Has(flag string) bool {
	switch flag {
	case constants.FlagDairy:
		return f.HasDairy
	case constants.FlagMeat:
		return f.HasMeat
	case constants.FlagNuts:
		return f.HasNuts
	}
	return false
}

// Satisfies reports whether the item is compatible with every active condition.
// Unknown conditions are ignored.
func (f DietaryFlags) Satisfies(conditions DietaryConditions) bool {
	for cond, on := range conditions {
		if !on {
			continue
		}
		switch cond {
		case constants.ConditionVegan:
			if !f.IsVegan {
				return false
			}
		case constants.ConditionVegetarian:
			if f.HasMeat {
				return false
			}
		case constants.ConditionGlutenFree:
			if !f.IsGlutenFree {
				return false
			}
		case constants.ConditionDiabetes:
			if !f.IsLowSugar {
				return false
			}
		}
	}
	return true
}

// FoodItem is a recipe from the catalog. An item may hold several roles.
type FoodItem struct {
	ID           string   `json:"recipe-id" yaml:"recipe-id" validate:"required,itemid"`
	Name         string   `json:"name" yaml:"name"`
	Roles        []Role   `json:"food_role" yaml:"food_role" validate:"required,min=1,dive,oneof='Main Course' Side Dessert Beverage"`
	DietaryFlags `yaml:",inline"`
	Ingredients  []string  `json:"ingredients,omitempty" yaml:"ingredients,omitempty"`
	Nutrition    Nutrition `json:"nutrition" yaml:"nutrition"`
}

// HasRole reports whether the item is tagged with r.
func (f FoodItem) HasRole(r Role) bool {
	for _, role := range f.Roles {
		if role == r {
			return true
		}
	}
	return false
}

// Beverage is a catalog drink. Its role is always Beverage.
type Beverage struct {
	ID           string `json:"bev-id" yaml:"bev-id" validate:"required,itemid"`
	Name         string `json:"name" yaml:"name"`
	DietaryFlags `yaml:",inline"`
	Ingredients  []string  `json:"ingredients,omitempty" yaml:"ingredients,omitempty"`
	Nutrition    Nutrition `json:"nutrition" yaml:"nutrition"`
}

// ItemKind distinguishes the two catalog namespaces in classifier facts.
type ItemKind string

const (
	KindFood     ItemKind = "food"
	KindBeverage ItemKind = "bev"
)

// Prediction is one classifier output line: the probability that a synthetic
// user should be recommended an item.
type Prediction struct {
	User        int      `json:"user"`
	Kind        ItemKind `json:"kind"`
	ItemID      string   `json:"item_id"`
	Probability float64  `json:"probability"`
	Negative    bool     `json:"negative,omitempty"` // line carried a leading "!"
}
