package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/utils"
)

// ConflictType represents the type of validation conflict
type ConflictType string

const (
	ConflictInvalidField      ConflictType = "invalid_field"
	ConflictMealCountMismatch ConflictType = "meal_count_mismatch"
	ConflictDuplicateMealName ConflictType = "duplicate_meal_name"
	ConflictEmptyMeal         ConflictType = "empty_meal"
	ConflictDuplicateItemID   ConflictType = "duplicate_item_id"
	ConflictUnknownItem       ConflictType = "unknown_item"
)

// Conflict represents one problem found in a config, catalog or favorites set
type Conflict struct {
	Type        ConflictType
	Description string
	Field       string   // struct path, e.g. meal_configs[0].meal_types (if applicable)
	Items       []string // item ids or meal names involved
}

// ValidationResult contains all detected conflicts
type ValidationResult struct {
	Conflicts []Conflict
}

// HasConflicts returns true if there are any conflicts
func (vr *ValidationResult) HasConflicts() bool {
	return len(vr.Conflicts) > 0
}

// FormatReport returns a human-readable report of all conflicts
func (vr *ValidationResult) FormatReport() string {
	if !vr.HasConflicts() {
		return "No conflicts detected."
	}

	var b strings.Builder
	b.WriteString("Conflicts detected:\n")
	for _, c := range vr.Conflicts {
		fmt.Fprintf(&b, "- %s\n", c.Description)
	}
	return b.String()
}

// Err returns nil when there are no conflicts, otherwise a configuration error
// listing every conflict.
func (vr *ValidationResult) Err() error {
	if !vr.HasConflicts() {
		return nil
	}
	msgs := make([]string, len(vr.Conflicts))
	for i, c := range vr.Conflicts {
		msgs[i] = c.Description
	}
	return apperrors.Configuration("%s", strings.Join(msgs, "; "))
}

func (vr *ValidationResult) add(c Conflict) {
	vr.Conflicts = append(vr.Conflicts, c)
}

var (
	validate     *validator.Validate
	validateOnce sync.Once

	itemIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// Validator returns the shared validator instance with custom rules registered.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		// Report fields by their serialized names
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			for _, tag := range []string{"json", "koanf", "yaml"} {
				name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return fld.Name
		})

		// Item ids end up inside classifier facts such as item(food_K, has_nuts),
		// so they must not contain separators.
		_ = validate.RegisterValidation("itemid", func(fl validator.FieldLevel) bool {
			return itemIDPattern.MatchString(fl.Field().String())
		})
	})
	return validate
}

// Struct validates s with struct tags and converts failures into conflicts.
func Struct(s interface{}) []Conflict {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []Conflict{{Type: ConflictInvalidField, Description: err.Error()}}
	}

	conflicts := make([]Conflict, len(fieldErrs))
	for i, fe := range fieldErrs {
		field := fieldPath(fe)
		conflicts[i] = Conflict{
			Type:        ConflictInvalidField,
			Field:       field,
			Description: translate(fe, field),
		}
	}
	return conflicts
}

// fieldPath drops the top-level type name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

var messageTemplates = map[string]string{
	"required": "%s is required",
	"itemid":   "%s must contain only letters, digits, '.', '_' or '-'",
}

var paramTemplates = map[string]string{
	"oneof": "%s must be one of: %s",
	"len":   "%s must have exactly %s entries",
}

func translate(fe validator.FieldError, field string) string {
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if fe.Kind() == reflect.Slice || fe.Kind() == reflect.Map {
			return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
		}
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

// ValidateMealPlanConfig checks a meal-plan config before any generation work.
// Every slot must declare all four role flags and request at least one role,
// slot names must be unique, and num_meals must match the slot count.
func ValidateMealPlanConfig(cfg models.MealPlanConfig) ValidationResult {
	var result ValidationResult
	for _, c := range Struct(cfg) {
		result.add(c)
	}

	if cfg.NumMeals != len(cfg.MealConfigs) {
		result.add(Conflict{
			Type:        ConflictMealCountMismatch,
			Field:       "num_meals",
			Description: fmt.Sprintf("num_meals is %d but %d meal configs were given", cfg.NumMeals, len(cfg.MealConfigs)),
		})
	}

	seen := make(map[string]bool)
	for i, slot := range cfg.MealConfigs {
		name := strings.ToLower(slot.MealName)
		if name != "" && seen[name] {
			result.add(Conflict{
				Type:        ConflictDuplicateMealName,
				Field:       fmt.Sprintf("meal_configs[%d].meal_name", i),
				Description: fmt.Sprintf("meal name %q is used more than once", slot.MealName),
				Items:       []string{slot.MealName},
			})
		}
		seen[name] = true

		if slot.MealTime != "" && !utils.ValidateTimeFormat(slot.MealTime) {
			result.add(Conflict{
				Type:        ConflictInvalidField,
				Field:       fmt.Sprintf("meal_configs[%d].meal_time", i),
				Description: fmt.Sprintf("meal time %q must be HH:MM", slot.MealTime),
				Items:       []string{slot.MealName},
			})
		}

		if len(slot.MealTypes) > 0 && len(slot.Roles()) == 0 {
			result.add(Conflict{
				Type:        ConflictEmptyMeal,
				Field:       fmt.Sprintf("meal_configs[%d].meal_types", i),
				Description: fmt.Sprintf("meal %q requests no roles", slot.MealName),
				Items:       []string{slot.MealName},
			})
		}
	}

	return result
}

// ValidateCatalog checks catalog items for field problems and duplicate ids.
func ValidateCatalog(foods []models.FoodItem, beverages []models.Beverage) ValidationResult {
	var result ValidationResult

	seenFoods := make(map[string]bool)
	for i := range foods {
		for _, c := range Struct(foods[i]) {
			c.Description = fmt.Sprintf("food %d: %s", i, c.Description)
			c.Items = []string{foods[i].ID}
			result.add(c)
		}
		if foods[i].ID != "" && seenFoods[foods[i].ID] {
			result.add(Conflict{
				Type:        ConflictDuplicateItemID,
				Description: fmt.Sprintf("food id %q appears more than once", foods[i].ID),
				Items:       []string{foods[i].ID},
			})
		}
		seenFoods[foods[i].ID] = true
	}

	seenBevs := make(map[string]bool)
	for i := range beverages {
		for _, c := range Struct(beverages[i]) {
			c.Description = fmt.Sprintf("beverage %d: %s", i, c.Description)
			c.Items = []string{beverages[i].ID}
			result.add(c)
		}
		if beverages[i].ID != "" && seenBevs[beverages[i].ID] {
			result.add(Conflict{
				Type:        ConflictDuplicateItemID,
				Description: fmt.Sprintf("beverage id %q appears more than once", beverages[i].ID),
				Items:       []string{beverages[i].ID},
			})
		}
		seenBevs[beverages[i].ID] = true
	}

	return result
}

// ValidateFavorites reports favorite item ids that are missing from the catalog.
func ValidateFavorites(fav models.FavoriteItems, foods map[string]models.FoodItem, beverages map[string]models.Beverage) ValidationResult {
	var result ValidationResult
	for _, role := range models.AllRoles {
		var missing []string
		for _, id := range fav[role] {
			if role == models.RoleBeverage {
				if _, ok := beverages[id]; !ok {
					missing = append(missing, id)
				}
				continue
			}
			if _, ok := foods[id]; !ok {
				missing = append(missing, id)
			}
		}
		if len(missing) > 0 {
			result.add(Conflict{
				Type:        ConflictUnknownItem,
				Description: fmt.Sprintf("%s favorites reference unknown items: %s", role, strings.Join(missing, ", ")),
				Items:       missing,
			})
		}
	}
	return result
}
