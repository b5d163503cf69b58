package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

func (s *Store) SaveDayPlan(userID string, plan models.DayPlan) error {
	if err := requireID("day plan", plan.ID); err != nil {
		return err
	}
	db, err := s.conn("save day plan")
	if err != nil {
		return err
	}
	meals := plan.Meals
	if meals == nil {
		meals = []models.Meal{}
	}
	doc, err := encode(meals)
	if err != nil {
		return apperrors.Store("save day plan", err)
	}

	_, err = db.Exec(s.rebind(`INSERT INTO day_plans (id, user_id, date, meals, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			id = excluded.id, meals = excluded.meals, updated_at = excluded.updated_at`),
		plan.ID, userID, plan.Date, doc, timestamp(time.Now()))
	return apperrors.Store("save day plan", err)
}

func (s *Store) GetDayPlan(userID, date string) (models.DayPlan, error) {
	db, err := s.conn("get day plan")
	if err != nil {
		return models.DayPlan{}, err
	}

	plan := models.DayPlan{UserID: userID, Date: date}
	var meals []byte
	err = db.QueryRow(s.rebind("SELECT id, meals FROM day_plans WHERE user_id = ? AND date = ?"), userID, date).
		Scan(&plan.ID, &meals)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DayPlan{}, apperrors.NotFound("day plan", userID+"/"+date)
	}
	if err != nil {
		return models.DayPlan{}, apperrors.Store("get day plan", err)
	}
	if err := decode(meals, &plan.Meals); err != nil {
		return models.DayPlan{}, apperrors.Store("decode day plan", err)
	}
	return plan, nil
}

// GetDayPlans returns the user's plans for dates, or all of them when dates is empty.
func (s *Store) GetDayPlans(userID string, dates []string) (map[string]models.DayPlan, error) {
	db, err := s.conn("get day plans")
	if err != nil {
		return nil, err
	}

	query := "SELECT id, date, meals FROM day_plans WHERE user_id = ?"
	args := []any{userID}
	if len(dates) > 0 {
		query += " AND date IN (" + placeholders(len(dates)) + ")"
		for _, d := range dates {
			args = append(args, d)
		}
	}

	rows, err := db.Query(s.rebind(query+" ORDER BY date"), args...)
	if err != nil {
		return nil, apperrors.Store("get day plans", err)
	}
	defer rows.Close()

	plans := make(map[string]models.DayPlan)
	for rows.Next() {
		plan := models.DayPlan{UserID: userID}
		var meals []byte
		if err := rows.Scan(&plan.ID, &plan.Date, &meals); err != nil {
			return nil, apperrors.Store("get day plans", err)
		}
		if err := decode(meals, &plan.Meals); err != nil {
			return nil, apperrors.Store("decode day plan", err)
		}
		plans[plan.Date] = plan
	}
	return plans, apperrors.Store("get day plans", rows.Err())
}

func (s *Store) SaveMealPlan(plan models.MealPlan) error {
	if err := requireID("meal plan", plan.ID); err != nil {
		return err
	}
	db, err := s.conn("save meal plan")
	if err != nil {
		return err
	}
	if plan.CreatedAt.IsZero() {
		plan.CreatedAt = time.Now()
	}

	days, err := encode(plan.Days)
	if err != nil {
		return apperrors.Store("save meal plan", err)
	}
	var scores sql.NullString
	if plan.Scores != nil {
		doc, err := encode(plan.Scores)
		if err != nil {
			return apperrors.Store("save meal plan", err)
		}
		scores = sql.NullString{String: doc, Valid: true}
	}

	_, err = db.Exec(s.rebind(`INSERT INTO meal_plans (id, user_id, name, mode, days, scores, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name, mode = excluded.mode, days = excluded.days, scores = excluded.scores`),
		plan.ID, plan.UserID, plan.Name, string(plan.Mode), days, scores, timestamp(plan.CreatedAt))
	return apperrors.Store("save meal plan", err)
}

const mealPlanColumns = "id, user_id, name, mode, days, scores, created_at"

func scanMealPlan(row rowScanner) (models.MealPlan, error) {
	var (
		plan         models.MealPlan
		mode         string
		days, scores []byte
		createdAt    string
	)
	if err := row.Scan(&plan.ID, &plan.UserID, &plan.Name, &mode, &days, &scores, &createdAt); err != nil {
		return plan, err
	}
	plan.Mode = models.PlanMode(mode)
	if err := decode(days, &plan.Days); err != nil {
		return plan, err
	}
	if len(scores) > 0 {
		plan.Scores = &models.PlanScores{}
		if err := decode(scores, plan.Scores); err != nil {
			return plan, err
		}
	}
	plan.CreatedAt = parseTimestamp(createdAt)
	return plan, nil
}

func (s *Store) GetMealPlan(id string) (models.MealPlan, error) {
	db, err := s.conn("get meal plan")
	if err != nil {
		return models.MealPlan{}, err
	}
	plan, err := scanMealPlan(db.QueryRow(s.rebind("SELECT "+mealPlanColumns+" FROM meal_plans WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MealPlan{}, apperrors.NotFound("meal plan", id)
	}
	if err != nil {
		return models.MealPlan{}, apperrors.Store("get meal plan", err)
	}
	return plan, nil
}

func (s *Store) GetLatestMealPlan(userID string) (models.MealPlan, error) {
	db, err := s.conn("get latest meal plan")
	if err != nil {
		return models.MealPlan{}, err
	}
	plan, err := scanMealPlan(db.QueryRow(s.rebind("SELECT "+mealPlanColumns+
		" FROM meal_plans WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT 1"), userID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.MealPlan{}, apperrors.NotFound("meal plan for user", userID)
	}
	if err != nil {
		return models.MealPlan{}, apperrors.Store("get latest meal plan", err)
	}
	return plan, nil
}
