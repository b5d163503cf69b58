package models

// Score is the triple of goodness metrics, each in [0, 1].
type Score struct {
	Variety     float64 `json:"variety"`
	Coverage    float64 `json:"coverage"`
	Nutritional float64 `json:"nutritional"`
}

// Mean averages the three metrics.
func (s Score) Mean() float64 {
	return (s.Variety + s.Coverage + s.Nutritional) / 3
}

type MealScore struct {
	MealID   string `json:"meal_id"`
	MealName string `json:"meal_name"`
	Score
	// Constraints holds the signed per-flag totals behind the nutritional score.
	Constraints map[string]float64 `json:"constraints,omitempty"`
}

type DayScore struct {
	Date    string      `json:"date"`
	Meals   []MealScore `json:"meals"`
	Average Score       `json:"average"`
}

type PlanScores struct {
	Days    map[string]DayScore `json:"days"`
	Average Score               `json:"average"`
}
