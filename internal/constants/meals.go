package constants

// Meal slot role keys as they appear in meal-plan configs and generated meals.
const (
	RoleKeyBeverage   = "beverage"
	RoleKeyMainCourse = "main_course"
	RoleKeySide       = "side"
	RoleKeyDessert    = "dessert"
)

// RoleKeys lists the slot role keys in the order meals are materialised.
var RoleKeys = []string{RoleKeyBeverage, RoleKeyMainCourse, RoleKeySide, RoleKeyDessert}

// Dietary conditions accepted on a recommendation request.
const (
	ConditionVegan      = "vegan"
	ConditionVegetarian = "vegetarian"
	ConditionGlutenFree = "gluten_free"
	ConditionDiabetes   = "diabetes"
)

var Conditions = []string{ConditionVegan, ConditionVegetarian, ConditionGlutenFree, ConditionDiabetes}

// Item flags used as classifier facts and nutritional constraints.
const (
	FlagDairy = "hasDairy"
	FlagMeat  = "hasMeat"
	FlagNuts  = "hasNuts"
)
