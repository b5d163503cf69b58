package catalog

import (
	"slices"
	"strconv"
	"time"

	"github.com/julianstephens/platewise/internal/models"
)

// Snapshot is an immutable view of the food and beverage catalog.
// It is safe for concurrent use and is never modified after construction.
type Snapshot struct {
	foods       map[string]models.FoodItem
	beverages   map[string]models.Beverage
	foodIDs     []string
	beverageIDs []string
	loadedAt    time.Time
}

// NewSnapshot copies the given maps into a snapshot.
func NewSnapshot(foods map[string]models.FoodItem, beverages map[string]models.Beverage) *Snapshot {
	s := &Snapshot{
		foods:     make(map[string]models.FoodItem, len(foods)),
		beverages: make(map[string]models.Beverage, len(beverages)),
		loadedAt:  time.Now(),
	}
	for id, f := range foods {
		f.Roles = slices.Clone(f.Roles)
		s.foods[id] = f
		s.foodIDs = append(s.foodIDs, id)
	}
	for id, b := range beverages {
		s.beverages[id] = b
		s.beverageIDs = append(s.beverageIDs, id)
	}
	slices.SortFunc(s.foodIDs, compareIDs)
	slices.SortFunc(s.beverageIDs, compareIDs)
	return s
}

// compareIDs orders numeric ids numerically and everything else lexically,
// numbers first.
func compareIDs(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		if na < nb {
			return -1
		} else if na > nb {
			return 1
		}
		return 0
	case errA == nil:
		return -1
	case errB == nil:
		return 1
	}
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func (s *Snapshot) Food(id string) (models.FoodItem, bool) {
	f, ok := s.foods[id]
	return f, ok
}

func (s *Snapshot) Beverage(id string) (models.Beverage, bool) {
	b, ok := s.beverages[id]
	return b, ok
}

// FoodIDs returns food ids in stable order.
func (s *Snapshot) FoodIDs() []string { return slices.Clone(s.foodIDs) }

// BeverageIDs returns beverage ids in stable order.
func (s *Snapshot) BeverageIDs() []string { return slices.Clone(s.beverageIDs) }

// NumItems is the number of foods plus beverages.
func (s *Snapshot) NumItems() int { return len(s.foodIDs) + len(s.beverageIDs) }

func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Flags returns the dietary flags of an item of the given kind.
func (s *Snapshot) Flags(kind models.ItemKind, id string) (models.DietaryFlags, bool) {
	if kind == models.KindBeverage {
		b, ok := s.beverages[id]
		return b.DietaryFlags, ok
	}
	f, ok := s.foods[id]
	return f.DietaryFlags, ok
}

// RoleFlags returns the flags of an item selected for a role key; beverages
// live in their own namespace.
func (s *Snapshot) RoleFlags(roleKey, id string) (models.DietaryFlags, bool) {
	if roleKey == models.RoleBeverage.Key() {
		return s.Flags(models.KindBeverage, id)
	}
	return s.Flags(models.KindFood, id)
}

// IDsForRole returns every catalog item that can fill a role, in stable order.
func (s *Snapshot) IDsForRole(r models.Role) []string {
	if r == models.RoleBeverage {
		return s.BeverageIDs()
	}
	var ids []string
	for _, id := range s.foodIDs {
		if s.foods[id].HasRole(r) {
			ids = append(ids, id)
		}
	}
	return ids
}
