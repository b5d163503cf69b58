// Package prompt holds the interactive forms used by commands.
package prompt

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/julianstephens/platewise/internal/constants"
	"github.com/julianstephens/platewise/internal/models"
)

// Confirm asks a yes/no question. An aborted form counts as "no".
func Confirm(title, description string) (bool, error) {
	var ok bool
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		),
	).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}

func preferenceSelect(title string, value *int) *huh.Select[int] {
	return huh.NewSelect[int]().
		Title(title).
		Options(
			huh.NewOption("Avoid", -1),
			huh.NewOption("No preference", 0),
			huh.NewOption("Prefer", 1),
		).
		Value(value)
}

// Profile collects a user's name, preferences and dietary conditions. Fields
// already set on u are offered as defaults.
func Profile(u *models.User) error {
	conditions := u.DietaryConditions.Active()
	options := make([]huh.Option[string], len(constants.Conditions))
	for i, c := range constants.Conditions {
		options[i] = huh.NewOption(c, c)
	}

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("First name").
				Value(&u.FirstName).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return errors.New("first name is required")
					}
					return nil
				}),
			huh.NewInput().
				Title("Last name").
				Value(&u.LastName),
			huh.NewInput().
				Title("Email").
				Value(&u.Email),
		),
		huh.NewGroup(
			preferenceSelect("Dairy", &u.Preferences.Dairy),
			preferenceSelect("Meat", &u.Preferences.Meat),
			preferenceSelect("Nuts", &u.Preferences.Nuts),
			huh.NewMultiSelect[string]().
				Title("Dietary conditions").
				Options(options...).
				Value(&conditions),
		),
	).Run()
	if err != nil {
		return err
	}

	u.DietaryConditions = models.DietaryConditions{}
	for _, c := range conditions {
		u.DietaryConditions[c] = true
	}
	return nil
}
