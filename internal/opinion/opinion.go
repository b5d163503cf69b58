package opinion

import (
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/julianstephens/platewise/internal/catalog"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

// NumUsers is the number of synthetic users, one per opinion vector.
const NumUsers = 27

// levels is the per-attribute enumeration order.
var levels = [3]int{0, 1, -1}

// Vector is a (dairy, meat, nuts) opinion, each -1 dislike, 0 neutral or 1 like.
type Vector struct {
	Dairy int
	Meat  int
	Nuts  int
}

func (v Vector) String() string {
	return fmt.Sprintf("(%d, %d, %d)", v.Dairy, v.Meat, v.Nuts)
}

// attribute pairs an opinion dimension with the item flag it governs.
type attribute struct {
	name string
	flag func(models.DietaryFlags) bool
	of   func(Vector) int
}

// attributes is listed in fact emission order for preferences.
var attributes = []attribute{
	{"dairy", func(f models.DietaryFlags) bool { return f.HasDairy }, func(v Vector) int { return v.Dairy }},
	{"meat", func(f models.DietaryFlags) bool { return f.HasMeat }, func(v Vector) int { return v.Meat }},
	{"nuts", func(f models.DietaryFlags) bool { return f.HasNuts }, func(v Vector) int { return v.Nuts }},
}

// Enumerate returns all 27 opinion vectors, dairy-major over (0, 1, -1).
// The synthetic user for Enumerate()[i] is i+1.
func Enumerate() []Vector {
	out := make([]Vector, 0, NumUsers)
	for _, d := range levels {
		for _, m := range levels {
			for _, n := range levels {
				out = append(out, Vector{Dairy: d, Meat: m, Nuts: n})
			}
		}
	}
	return out
}

// Index returns the zero-based position of v in Enumerate().
func Index(v Vector) (int, error) {
	pos := func(x int) int {
		for i, l := range levels {
			if l == x {
				return i
			}
		}
		return -1
	}
	d, m, n := pos(v.Dairy), pos(v.Meat), pos(v.Nuts)
	if d < 0 || m < 0 || n < 0 {
		return 0, fmt.Errorf("%w: %s", apperrors.ErrUnknownOpinion, v)
	}
	return d*9 + m*3 + n, nil
}

// FromPreferences converts a user's numerical preferences to an opinion vector.
// Values outside [-1, 1] match no vector.
func FromPreferences(p models.NumericalPreferences) (Vector, error) {
	v := Vector{Dairy: p.Dairy, Meat: p.Meat, Nuts: p.Nuts}
	if _, err := Index(v); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// SyntheticUser returns the 1-based synthetic user for the preferences.
func SyntheticUser(p models.NumericalPreferences) (int, error) {
	v, err := FromPreferences(p)
	if err != nil {
		return 0, err
	}
	i, _ := Index(v)
	return i + 1, nil
}

func userAtom(user int) string { return fmt.Sprintf("user_%d", user) }

func itemAtom(kind models.ItemKind, id string) string { return fmt.Sprintf("%s_%s", kind, id) }

// GenerateFacts returns the preference facts for every synthetic user and the
// flag facts for every catalog item. Preference facts are grouped by attribute
// (dairy, meat, nuts), positives before negatives. Item facts cover beverages
// then foods in snapshot order, flags in nuts, meat, dairy order.
func GenerateFacts(opinions []Vector, snap *catalog.Snapshot) (userFacts, itemFacts []string) {
	for _, attr := range attributes {
		for _, sign := range []struct {
			value int
			label string
		}{{1, "positive"}, {-1, "negative"}} {
			for i, v := range opinions {
				if attr.of(v) == sign.value {
					userFacts = append(userFacts, fmt.Sprintf("preference(%s, %s_%s).", userAtom(i+1), sign.label, attr.name))
				}
			}
		}
	}

	emit := func(kind models.ItemKind, id string, f models.DietaryFlags) {
		atom := itemAtom(kind, id)
		if f.HasNuts {
			itemFacts = append(itemFacts, fmt.Sprintf("item(%s, has_nuts).", atom))
		}
		if f.HasMeat {
			itemFacts = append(itemFacts, fmt.Sprintf("item(%s, has_meat).", atom))
		}
		if f.HasDairy {
			itemFacts = append(itemFacts, fmt.Sprintf("item(%s, has_dairy).", atom))
		}
	}
	for _, id := range snap.BeverageIDs() {
		b, _ := snap.Beverage(id)
		emit(models.KindBeverage, id, b.DietaryFlags)
	}
	for _, id := range snap.FoodIDs() {
		f, _ := snap.Food(id)
		emit(models.KindFood, id, f.DietaryFlags)
	}
	return userFacts, itemFacts
}

// Dislikes reports whether an item carries a flag the opinion marks disliked.
func Dislikes(v Vector, f models.DietaryFlags) bool {
	for _, attr := range attributes {
		if attr.of(v) == -1 && attr.flag(f) {
			return true
		}
	}
	return false
}

// GeneratePairs labels every (synthetic user, item) combination. A pair is
// negative when the item has a flag the user dislikes, positive otherwise.
func GeneratePairs(opinions []Vector, snap *catalog.Snapshot) (pos, neg []string) {
	classify := func(user int, v Vector, kind models.ItemKind, id string, f models.DietaryFlags) {
		pair := fmt.Sprintf("recommendation(%s,%s).", userAtom(user), itemAtom(kind, id))
		if Dislikes(v, f) {
			neg = append(neg, pair)
		} else {
			pos = append(pos, pair)
		}
	}

	bevIDs, foodIDs := snap.BeverageIDs(), snap.FoodIDs()
	for i, v := range opinions {
		for _, id := range bevIDs {
			b, _ := snap.Beverage(id)
			classify(i+1, v, models.KindBeverage, id, b.DietaryFlags)
		}
		for _, id := range foodIDs {
			f, _ := snap.Food(id)
			classify(i+1, v, models.KindFood, id, f.DietaryFlags)
		}
	}
	return pos, neg
}

// SplitTrainTest shuffles items in place and splits them at floor(len*fraction).
func SplitTrainTest(items []string, fraction float64, rng *rand.Rand) (train, test []string) {
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
	at := int(float64(len(items)) * fraction)
	if at < 0 {
		at = 0
	} else if at > len(items) {
		at = len(items)
	}
	return slices.Clone(items[:at]), slices.Clone(items[at:])
}
