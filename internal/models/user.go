package models

import (
	"slices"
	"sort"
	"time"

	"github.com/julianstephens/platewise/internal/constants"
)

// NumericalPreferences are a user's dairy, meat and nuts opinions in {-1, 0, 1}.
type NumericalPreferences struct {
	Dairy int `json:"dairyPreference" yaml:"dairyPreference" validate:"min=-1,max=1"`
	Meat  int `json:"meatPreference" yaml:"meatPreference" validate:"min=-1,max=1"`
	Nuts  int `json:"nutsPreference" yaml:"nutsPreference" validate:"min=-1,max=1"`
}

// Weights keys each preference by the item flag it constrains.
func (p NumericalPreferences) Weights() map[string]int {
	return map[string]int{
		constants.FlagDairy: p.Dairy,
		constants.FlagMeat:  p.Meat,
		constants.FlagNuts:  p.Nuts,
	}
}

// DietaryConditions holds boolean filters such as "vegan" or "diabetes".
type DietaryConditions map[string]bool

// Active returns the enabled conditions, sorted.
func (c DietaryConditions) Active() []string {
	var out []string
	for k, v := range c {
		if v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Equal compares the enabled conditions only; a false entry equals a missing one.
func (c DietaryConditions) Equal(other DietaryConditions) bool {
	return slices.Equal(c.Active(), other.Active())
}

// FavoriteItems maps each role to the item ids favoured for it.
type FavoriteItems map[Role][]string

// NewFavoriteItems returns a set with an empty list for every role.
func NewFavoriteItems() FavoriteItems {
	f := make(FavoriteItems, len(AllRoles))
	for _, r := range AllRoles {
		f[r] = []string{}
	}
	return f
}

// Complete reports whether every role has at least one item.
func (f FavoriteItems) Complete() bool {
	for _, r := range AllRoles {
		if len(f[r]) == 0 {
			return false
		}
	}
	return true
}

func (f FavoriteItems) Clone() FavoriteItems {
	out := make(FavoriteItems, len(f))
	for r, ids := range f {
		out[r] = slices.Clone(ids)
	}
	return out
}

// Merge returns the union of f and other per role. Order follows f, then
// other's new ids; duplicates are dropped.
func (f FavoriteItems) Merge(other FavoriteItems) FavoriteItems {
	out := f.Clone()
	if out == nil {
		out = FavoriteItems{}
	}
	for r, ids := range other {
		for _, id := range ids {
			out.Add(r, id)
		}
	}
	return out
}

// Add appends id to the role's list unless already present.
func (f FavoriteItems) Add(r Role, id string) {
	if !slices.Contains(f[r], id) {
		f[r] = append(f[r], id)
	}
}

// Remove deletes id from the role's list. It reports whether anything changed.
func (f FavoriteItems) Remove(r Role, id string) bool {
	i := slices.Index(f[r], id)
	if i < 0 {
		return false
	}
	f[r] = slices.Delete(f[r], i, i+1)
	return true
}

type User struct {
	ID                     string               `json:"id"`
	FirstName              string               `json:"first_name"`
	LastName               string               `json:"last_name"`
	Email                  string               `json:"email"`
	Preferences            NumericalPreferences `json:"numerical_preferences"`
	DietaryConditions      DietaryConditions    `json:"dietary_conditions"`
	FavoriteItems          FavoriteItems        `json:"favorite_items,omitempty"`
	PermanentFavoriteItems FavoriteItems        `json:"permanent_favorite_items,omitempty"`
	BanditCounter          int                  `json:"bandit_counter"`
	MealPlanConfig         *MealPlanConfig      `json:"meal_plan_config,omitempty"`
	DayPlans               map[string]string    `json:"day_plans,omitempty"` // date -> day plan id
	CreatedAt              time.Time            `json:"created_at"`
	UpdatedAt              time.Time            `json:"updated_at"`
}
