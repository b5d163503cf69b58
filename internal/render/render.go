// Package render formats plans, scores and catalog listings for the terminal.
package render

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/platewise/internal/bandit"
	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	mealStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true)

	roleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Width(14)

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")).
			Bold(true)
)

// itemName resolves an id in a meal slot to a display name.
func itemName(snap *catalog.Snapshot, roleKey, id string) string {
	if snap == nil {
		return id
	}
	if roleKey == constants.RoleKeyBeverage {
		if b, ok := snap.Beverage(id); ok && b.Name != "" {
			return fmt.Sprintf("%s (%s)", b.Name, id)
		}
	} else if f, ok := snap.Food(id); ok && f.Name != "" {
		return fmt.Sprintf("%s (%s)", f.Name, id)
	}
	return warningStyle.Render(id + " (not in catalog)")
}

func roleLabel(key string) string {
	if r, ok := models.RoleForKey(key); ok {
		return string(r)
	}
	return key
}

// Meal renders one meal slot with its selections in role order.
func Meal(meal models.Meal, snap *catalog.Snapshot) string {
	var b strings.Builder
	header := meal.MealName
	if meal.MealTime != "" {
		header += " @ " + meal.MealTime
	}
	var marks []string
	if meal.Saved {
		marks = append(marks, "saved")
	}
	if meal.Favorited {
		marks = append(marks, "favorited")
	}
	if len(marks) > 0 {
		header += " " + mutedStyle.Render("["+strings.Join(marks, ", ")+"]")
	}
	b.WriteString(mealStyle.Render(header) + "\n")

	for _, key := range constants.RoleKeys {
		id, ok := meal.MealTypes[key]
		if !ok {
			continue
		}
		b.WriteString("  " + roleStyle.Render(roleLabel(key)) + itemName(snap, key, id) + "\n")
	}
	if meal.Notes != "" {
		b.WriteString("  " + mutedStyle.Render(meal.Notes) + "\n")
	}
	return b.String()
}

// DayPlan renders a day heading followed by its meals.
func DayPlan(plan models.DayPlan, snap *catalog.Snapshot) string {
	var b strings.Builder
	b.WriteString(dateStyle.Render(plan.Date) + "\n")
	if len(plan.Meals) == 0 {
		b.WriteString(mutedStyle.Render("  no meals") + "\n")
	}
	for _, meal := range plan.Meals {
		b.WriteString(Meal(meal, snap))
	}
	return b.String()
}

// DayPlans renders plans in date order.
func DayPlans(plans map[string]models.DayPlan, snap *catalog.Snapshot) string {
	dates := make([]string, 0, len(plans))
	for d := range plans {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	var b strings.Builder
	for i, d := range dates {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(DayPlan(plans[d], snap))
	}
	return b.String()
}

// MealPlan renders a generated plan with its scores when present.
func MealPlan(plan models.MealPlan, snap *catalog.Snapshot) string {
	var b strings.Builder
	title := plan.Name
	if title == "" {
		title = "Meal plan"
	}
	b.WriteString(titleStyle.Render(title) + " " + mutedStyle.Render(fmt.Sprintf("%s, %s mode", plan.ID, plan.Mode)) + "\n\n")
	b.WriteString(DayPlans(plan.Days, snap))
	if plan.Scores != nil {
		b.WriteString("\n" + Scores(*plan.Scores))
	}
	return b.String()
}

func scoreLine(label string, s models.Score) string {
	return fmt.Sprintf("%s variety %.2f  coverage %.2f  nutrition %.2f  mean %.2f",
		roleStyle.Render(label), s.Variety, s.Coverage, s.Nutritional, s.Mean())
}

// Scores renders per-meal, per-day and overall goodness scores.
func Scores(scores models.PlanScores) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Scores") + "\n")

	dates := make([]string, 0, len(scores.Days))
	for d := range scores.Days {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	for _, d := range dates {
		day := scores.Days[d]
		b.WriteString(dateStyle.Render(d) + "\n")
		for _, m := range day.Meals {
			b.WriteString("  " + scoreLine(m.MealName, m.Score) + "\n")
		}
		b.WriteString("  " + scoreLine("day", day.Average) + "\n")
	}
	b.WriteString(scoreLine("overall", scores.Average) + "\n")
	return b.String()
}

// Favorites renders a favorite-items set role by role.
func Favorites(fav models.FavoriteItems, snap *catalog.Snapshot) string {
	var b strings.Builder
	for _, r := range models.AllRoles {
		ids := fav[r]
		names := make([]string, 0, len(ids))
		for _, id := range ids {
			names = append(names, itemName(snap, r.Key(), id))
		}
		line := strings.Join(names, ", ")
		if line == "" {
			line = mutedStyle.Render("none")
		}
		b.WriteString(roleStyle.Render(string(r)) + line + "\n")
	}
	return b.String()
}

func flagList(f models.DietaryFlags) string {
	var flags []string
	for _, p := range []struct {
		on   bool
		name string
	}{
		{f.HasDairy, "dairy"},
		{f.HasMeat, "meat"},
		{f.HasNuts, "nuts"},
		{f.IsVegan, "vegan"},
		{f.IsGlutenFree, "gluten-free"},
		{f.IsLowSugar, "low-sugar"},
	} {
		if p.on {
			flags = append(flags, p.name)
		}
	}
	return strings.Join(flags, " ")
}

// Catalog lists foods, or beverages when beverages is set.
func Catalog(snap *catalog.Snapshot, beverages bool) string {
	var b strings.Builder
	if beverages {
		b.WriteString(titleStyle.Render(fmt.Sprintf("Beverages (%d)", len(snap.BeverageIDs()))) + "\n")
		for _, id := range snap.BeverageIDs() {
			bev, _ := snap.Beverage(id)
			b.WriteString(fmt.Sprintf("%s %s %s\n", roleStyle.Render(id), bev.Name, mutedStyle.Render(flagList(bev.DietaryFlags))))
		}
		return b.String()
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Foods (%d)", len(snap.FoodIDs()))) + "\n")
	for _, id := range snap.FoodIDs() {
		food, _ := snap.Food(id)
		roles := make([]string, len(food.Roles))
		for i, r := range food.Roles {
			roles[i] = string(r)
		}
		b.WriteString(fmt.Sprintf("%s %s [%s] %s\n", roleStyle.Render(id), food.Name,
			strings.Join(roles, ", "), mutedStyle.Render(flagList(food.DietaryFlags))))
	}
	return b.String()
}

// User renders a profile summary.
func User(u models.User, snap *catalog.Snapshot) string {
	var b strings.Builder
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.ID
	}
	b.WriteString(titleStyle.Render(name) + " " + mutedStyle.Render(u.ID) + "\n")
	if u.Email != "" {
		b.WriteString(roleStyle.Render("Email") + u.Email + "\n")
	}
	b.WriteString(roleStyle.Render("Preferences") +
		fmt.Sprintf("dairy %+d  meat %+d  nuts %+d\n", u.Preferences.Dairy, u.Preferences.Meat, u.Preferences.Nuts))
	conditions := strings.Join(u.DietaryConditions.Active(), ", ")
	if conditions == "" {
		conditions = mutedStyle.Render("none")
	}
	b.WriteString(roleStyle.Render("Conditions") + conditions + "\n")
	b.WriteString(roleStyle.Render("Bandit runs") + fmt.Sprintf("%d\n", u.BanditCounter))
	if u.MealPlanConfig != nil {
		b.WriteString(roleStyle.Render("Plan config") + fmt.Sprintf("%s, %d days, %d meals\n",
			u.MealPlanConfig.MealPlanName, u.MealPlanConfig.NumDays, len(u.MealPlanConfig.MealConfigs)))
	}
	b.WriteString(roleStyle.Render("Day plans") + fmt.Sprintf("%d\n", len(u.DayPlans)))
	if len(u.FavoriteItems) > 0 {
		b.WriteString("\n" + mealStyle.Render("Favorites") + "\n" + Favorites(u.FavoriteItems, snap))
	}
	if len(u.PermanentFavoriteItems) > 0 {
		b.WriteString("\n" + mealStyle.Render("Permanent favorites") + "\n" + Favorites(u.PermanentFavoriteItems, snap))
	}
	return b.String()
}

// Trials lists trial workspaces, newest first as given.
func Trials(trials []bandit.TrialInfo) string {
	if len(trials) == 0 {
		return mutedStyle.Render("No trials.") + "\n"
	}
	var b strings.Builder
	for _, t := range trials {
		status := "no results"
		if t.HasResults {
			status = "tested"
		}
		b.WriteString(fmt.Sprintf("%s %s %s\n", t.ModTime.Format("2006-01-02 15:04"), t.ID, mutedStyle.Render(status)))
	}
	return b.String()
}

// Warnings lists classifier output lines that were skipped.
func Warnings(warnings []apperrors.ParseWarning) string {
	if len(warnings) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(warningStyle.Render(fmt.Sprintf("%d classifier line(s) skipped", len(warnings))) + "\n")
	for _, w := range warnings {
		b.WriteString(mutedStyle.Render("  "+w.Error()) + "\n")
	}
	return b.String()
}
