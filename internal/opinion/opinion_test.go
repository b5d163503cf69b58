package opinion

import (
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/julianstephens/platewise/internal/catalog"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

func testSnapshot() *catalog.Snapshot {
	return catalog.NewSnapshot(
		map[string]models.FoodItem{
			"10": {ID: "10", Roles: []models.Role{models.RoleMainCourse}, DietaryFlags: models.DietaryFlags{HasMeat: true, HasDairy: true}},
			"20": {ID: "20", Roles: []models.Role{models.RoleSide}},
			"30": {ID: "30", Roles: []models.Role{models.RoleDessert}, DietaryFlags: models.DietaryFlags{HasNuts: true}},
		},
		map[string]models.Beverage{
			"40": {ID: "40", DietaryFlags: models.DietaryFlags{HasDairy: true}},
		},
	)
}

func TestEnumerate(t *testing.T) {
	opinions := Enumerate()
	if len(opinions) != NumUsers {
		t.Fatalf("Enumerate() returned %d vectors, want %d", len(opinions), NumUsers)
	}

	want := map[int]Vector{
		0:  {0, 0, 0},
		1:  {0, 0, 1},
		2:  {0, 0, -1},
		3:  {0, 1, 0},
		9:  {1, 0, 0},
		18: {-1, 0, 0},
		26: {-1, -1, -1},
	}
	for i, v := range want {
		if opinions[i] != v {
			t.Errorf("Enumerate()[%d] = %v, want %v", i, opinions[i], v)
		}
	}

	seen := make(map[Vector]bool)
	for _, v := range opinions {
		if seen[v] {
			t.Errorf("duplicate vector %v", v)
		}
		seen[v] = true
	}
}

func TestIndex_RoundTrip(t *testing.T) {
	opinions := Enumerate()
	for i, v := range opinions {
		got, err := Index(v)
		if err != nil {
			t.Fatalf("Index(%v) error = %v", v, err)
		}
		if got != i || opinions[got] != v {
			t.Errorf("Index(%v) = %d, want %d", v, got, i)
		}
	}
}

func TestFromPreferences(t *testing.T) {
	tests := []struct {
		name    string
		prefs   models.NumericalPreferences
		want    int
		wantErr bool
	}{
		{"neutral", models.NumericalPreferences{}, 1, false},
		{"dislikes nuts", models.NumericalPreferences{Nuts: -1}, 3, false},
		{"likes dairy dislikes meat", models.NumericalPreferences{Dairy: 1, Meat: -1}, 16, false},
		{"all dislike", models.NumericalPreferences{Dairy: -1, Meat: -1, Nuts: -1}, 27, false},
		{"out of range", models.NumericalPreferences{Dairy: 2}, 0, true},
		{"negative out of range", models.NumericalPreferences{Meat: -3}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SyntheticUser(tt.prefs)
			if tt.wantErr {
				if !errors.Is(err, apperrors.ErrUnknownOpinion) {
					t.Fatalf("SyntheticUser() error = %v, want ErrUnknownOpinion", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("SyntheticUser() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("SyntheticUser() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGenerateFacts(t *testing.T) {
	userFacts, itemFacts := GenerateFacts(Enumerate(), testSnapshot())

	// Each attribute has 9 likers and 9 dislikers.
	if len(userFacts) != 54 {
		t.Errorf("len(userFacts) = %d, want 54", len(userFacts))
	}
	if userFacts[0] != "preference(user_10, positive_dairy)." {
		t.Errorf("userFacts[0] = %q", userFacts[0])
	}
	if !slices.Contains(userFacts, "preference(user_3, negative_nuts).") {
		t.Error("missing negative nuts fact for user 3")
	}

	wantItems := []string{
		"item(bev_40, has_dairy).",
		"item(food_10, has_meat).",
		"item(food_10, has_dairy).",
		"item(food_30, has_nuts).",
	}
	if !slices.Equal(itemFacts, wantItems) {
		t.Errorf("itemFacts = %v, want %v", itemFacts, wantItems)
	}
}

func TestGeneratePairs_Partition(t *testing.T) {
	snap := testSnapshot()
	opinions := Enumerate()
	pos, neg := GeneratePairs(opinions, snap)

	if got, want := len(pos)+len(neg), len(opinions)*snap.NumItems(); got != want {
		t.Fatalf("len(pos)+len(neg) = %d, want %d", got, want)
	}

	seen := make(map[string]int)
	for _, p := range pos {
		seen[p]++
	}
	for _, n := range neg {
		seen[n]++
	}
	for pair, n := range seen {
		if n != 1 {
			t.Errorf("pair %s appears %d times", pair, n)
		}
	}

	// User 3 dislikes nuts only.
	if !slices.Contains(neg, "recommendation(user_3,food_30).") {
		t.Error("nut dessert should be negative for user 3")
	}
	if !slices.Contains(pos, "recommendation(user_3,bev_40).") {
		t.Error("dairy beverage should be positive for user 3")
	}
	// User 19 dislikes dairy.
	if !slices.Contains(neg, "recommendation(user_19,bev_40).") {
		t.Error("dairy beverage should be negative for user 19")
	}
	if !slices.Contains(pos, "recommendation(user_1,food_10).") {
		t.Error("neutral user should get every pair as positive")
	}
}

func TestSplitTrainTest(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))

	for _, n := range []int{0, 1, 5, 10, 27} {
		items := make([]string, n)
		for i := range items {
			items[i] = string(rune('a' + i))
		}
		original := slices.Clone(items)

		train, test := SplitTrainTest(items, 0.8, rng)
		if len(train) != int(float64(n)*0.8) {
			t.Errorf("n=%d: len(train) = %d, want %d", n, len(train), int(float64(n)*0.8))
		}
		if len(train)+len(test) != n {
			t.Errorf("n=%d: len(train)+len(test) = %d", n, len(train)+len(test))
		}

		all := append(slices.Clone(train), test...)
		slices.Sort(all)
		slices.Sort(original)
		if !slices.Equal(all, original) {
			t.Errorf("n=%d: split lost or duplicated elements: %v", n, all)
		}
	}
}

func TestSplitTrainTest_Deterministic(t *testing.T) {
	items := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	a, _ := SplitTrainTest(slices.Clone(items), 0.8, rand.New(rand.NewPCG(7, 7)))
	b, _ := SplitTrainTest(slices.Clone(items), 0.8, rand.New(rand.NewPCG(7, 7)))
	if !slices.Equal(a, b) {
		t.Errorf("same seed gave %v and %v", a, b)
	}
}
