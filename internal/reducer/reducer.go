package reducer

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/models"
)

// ErrInvalidPrediction is returned for predictions naming an unknown item or
// a synthetic user outside 1..numUsers.
var ErrInvalidPrediction = errors.New("invalid prediction")

// FoodFavorites maps a synthetic user to its best items per food role.
type FoodFavorites map[int]map[models.Role][]string

// BeverageFavorites maps a synthetic user to its best beverages.
type BeverageFavorites map[int][]string

type scored struct {
	id   string
	prob float64
}

// best returns every item tied at the highest probability, in order of first
// appearance, without duplicates.
func best(items []scored) []string {
	if len(items) == 0 {
		return []string{}
	}
	top := items[0].prob
	for _, it := range items[1:] {
		if it.prob > top {
			top = it.prob
		}
	}
	out := []string{}
	for _, it := range items {
		if it.prob == top && !slices.Contains(out, it.id) {
			out = append(out, it.id)
		}
	}
	return out
}

func checkUser(p models.Prediction, numUsers int) error {
	if p.User < 1 || p.User > numUsers {
		return fmt.Errorf("%w: user %d outside 1..%d", ErrInvalidPrediction, p.User, numUsers)
	}
	return nil
}

// ReduceFoods keeps, for each synthetic user and food role, the items tied
// at the highest predicted probability. An item with several roles competes
// in each of them; the Beverage role is left to ReduceBeverages.
//
// A role with no candidates is backfilled with a copy of one of the user's
// other non-empty role lists, chosen uniformly with rng. That reuses another
// role's items for this role on purpose, so a sparse test split still yields
// a full favorites set. Users with no food predictions at all stay empty.
func ReduceFoods(preds []models.Prediction, numUsers int, snap *catalog.Snapshot, rng *rand.Rand) (FoodFavorites, error) {
	grouped := make(map[int]map[models.Role][]scored, numUsers)
	for u := 1; u <= numUsers; u++ {
		grouped[u] = make(map[models.Role][]scored, len(models.FoodRoles))
	}

	for _, p := range preds {
		if p.Kind != models.KindFood {
			continue
		}
		if err := checkUser(p, numUsers); err != nil {
			return nil, err
		}
		item, ok := snap.Food(p.ItemID)
		if !ok {
			return nil, fmt.Errorf("%w: unknown food item %q", ErrInvalidPrediction, p.ItemID)
		}
		for _, role := range item.Roles {
			if role == models.RoleBeverage {
				continue
			}
			grouped[p.User][role] = append(grouped[p.User][role], scored{id: p.ItemID, prob: p.Probability})
		}
	}

	out := make(FoodFavorites, numUsers)
	for u := 1; u <= numUsers; u++ {
		roles := make(map[models.Role][]string, len(models.FoodRoles))
		var filled []models.Role
		for _, role := range models.FoodRoles {
			roles[role] = best(grouped[u][role])
			if len(roles[role]) > 0 {
				filled = append(filled, role)
			}
		}

		if len(filled) > 0 {
			for _, role := range models.FoodRoles {
				if len(roles[role]) == 0 {
					donor := filled[rng.IntN(len(filled))]
					roles[role] = slices.Clone(roles[donor])
				}
			}
		}
		out[u] = roles
	}
	return out, nil
}

// ReduceBeverages keeps each synthetic user's beverages tied at the highest
// probability. A nil snapshot skips the item check.
func ReduceBeverages(preds []models.Prediction, numUsers int, snap *catalog.Snapshot) (BeverageFavorites, error) {
	grouped := make(map[int][]scored, numUsers)
	for _, p := range preds {
		if p.Kind != models.KindBeverage {
			continue
		}
		if err := checkUser(p, numUsers); err != nil {
			return nil, err
		}
		if snap != nil {
			if _, ok := snap.Beverage(p.ItemID); !ok {
				return nil, fmt.Errorf("%w: unknown beverage %q", ErrInvalidPrediction, p.ItemID)
			}
		}
		grouped[p.User] = append(grouped[p.User], scored{id: p.ItemID, prob: p.Probability})
	}

	out := make(BeverageFavorites, numUsers)
	for u := 1; u <= numUsers; u++ {
		out[u] = best(grouped[u])
	}
	return out, nil
}

// Favorites assembles the favorite-items set of one synthetic user.
func Favorites(foods FoodFavorites, bevs BeverageFavorites, user int) models.FavoriteItems {
	fav := models.NewFavoriteItems()
	for _, role := range models.FoodRoles {
		fav[role] = slices.Clone(foods[user][role])
		if fav[role] == nil {
			fav[role] = []string{}
		}
	}
	fav[models.RoleBeverage] = slices.Clone(bevs[user])
	if fav[models.RoleBeverage] == nil {
		fav[models.RoleBeverage] = []string{}
	}
	return fav
}
