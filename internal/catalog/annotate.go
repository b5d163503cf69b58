package catalog

import (
	"strings"

	"github.com/julianstephens/platewise/internal/models"
)

// IngredientRules lists ingredient names that disqualify an item from a
// dietary flag. Names are matched case-insensitively.
type IngredientRules struct {
	NotVegan  []string
	Glutenous []string
	HighSugar []string
}

// DefaultRules is the ingredient list the recipe catalog was annotated with.
var DefaultRules = IngredientRules{
	NotVegan: []string{
		"american cheese", "applewood smoked bacon", "bacon", "beef bouillon powder",
		"beef round roast", "boneless skinless chicken breasts", "butter", "buttermilk",
		"canadian bacon", "cheddar & monterey jack cheese", "cheddar cheese", "cheese",
		"chicken", "chicken breast", "chicken broth", "egg", "egg mixture", "egg white",
		"egg whites", "egg yolks", "eggs", "finely shredded cheese", "ground beef",
		"ground beef chuck", "ground chuck", "half and half", "ham", "heavy whipping cream",
		"hidden valley original ranch seasoning and salad dressing mix", "large eggs",
		"mayo", "mayonnaise", "mayyonnaise", "melted butter", "milk", "nacho cheese",
		"nacho cheese sauce", "plain non-fat greek yogurt", "pork sausage", "ranch seasoning",
		"salmon", "sausage", "sausage patties", "shredded cheddar cheese",
		"shredded mexican cheese", "shredded mexican cheese blend", "shrimp",
		"softened butter", "sour cream", "unsalted butter", "whipped cream",
	},
	Glutenous: []string{
		"all purpose flour", "all-purpose flour", "bread", "breadcrumbs",
		"burrito sized flour tortillas", "crescent rolls", "english muffins", "flour",
		"gordita flour tortillas", "graham crackers", "hamburger buns", "kawan parathas",
		"pancake mix", "phyllo dough", "potato hamburger buns", "puff pastry",
		"puff pastry sheet", "quick-cooking oatmeal", "sesame seed hamburger buns",
	},
	HighSugar: []string{
		"applewood smoked bacon", "brown sugar", "caramel ice cream topping", "chocolate",
		"chocolate chips", "craisins", "granulated sugar", "honey", "jell-o", "maple syrup",
		"melted chocolate chips & chopped walnuts", "pancake syrup", "peanut butter candy",
		"powdered sugar", "sprinkle for eyes", "sprinkle for mouth", "sprinkle for nose",
		"sugar", "vanilla", "whipped cream", "white chocolate chips", "white sugar",
		"yellow and green m&m",
	},
}

type ruleSet map[string]struct{}

func newRuleSet(names []string) ruleSet {
	s := make(ruleSet, len(names))
	for _, n := range names {
		s[normalize(n)] = struct{}{}
	}
	return s
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s ruleSet) hits(ingredients []string) bool {
	for _, ing := range ingredients {
		if _, ok := s[normalize(ing)]; ok {
			return true
		}
	}
	return false
}

// Annotator derives isVegan, isGlutenFree and isLowSugar from ingredient lists.
type Annotator struct {
	notVegan, glutenous, highSugar ruleSet
}

func NewAnnotator(rules IngredientRules) *Annotator {
	return &Annotator{
		notVegan:  newRuleSet(rules.NotVegan),
		glutenous: newRuleSet(rules.Glutenous),
		highSugar: newRuleSet(rules.HighSugar),
	}
}

// Annotate sets the derived flags. Items without ingredients keep their
// declared flags. It reports whether any flag changed.
func (a *Annotator) Annotate(flags *models.DietaryFlags, ingredients []string) bool {
	if len(ingredients) == 0 {
		return false
	}
	before := *flags
	flags.IsVegan = !a.notVegan.hits(ingredients) && !flags.HasMeat && !flags.HasDairy
	flags.IsGlutenFree = !a.glutenous.hits(ingredients)
	flags.IsLowSugar = !a.highSugar.hits(ingredients)
	return before != *flags
}
