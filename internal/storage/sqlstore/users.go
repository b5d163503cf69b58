package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

const userColumns = `id, first_name, last_name, email, preferences, dietary_conditions,
	favorite_items, permanent_favorite_items, bandit_counter, meal_plan_config, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (models.User, error) {
	var (
		u                                 models.User
		prefs, conditions, fav, permanent []byte
		cfg                               []byte
		createdAt, updatedAt              string
	)
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &prefs, &conditions,
		&fav, &permanent, &u.BanditCounter, &cfg, &createdAt, &updatedAt)
	if err != nil {
		return u, err
	}

	if err := decode(prefs, &u.Preferences); err != nil {
		return u, err
	}
	if err := decode(conditions, &u.DietaryConditions); err != nil {
		return u, err
	}
	if err := decode(fav, &u.FavoriteItems); err != nil {
		return u, err
	}
	if err := decode(permanent, &u.PermanentFavoriteItems); err != nil {
		return u, err
	}
	if len(cfg) > 0 {
		u.MealPlanConfig = &models.MealPlanConfig{}
		if err := decode(cfg, u.MealPlanConfig); err != nil {
			return u, err
		}
	}
	u.CreatedAt = parseTimestamp(createdAt)
	u.UpdatedAt = parseTimestamp(updatedAt)
	return u, nil
}

func (s *Store) AddUser(u models.User) error {
	if err := requireID("user", u.ID); err != nil {
		return err
	}
	db, err := s.conn("add user")
	if err != nil {
		return err
	}

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = u.CreatedAt
	}

	var docs [4]string
	for i, v := range []any{u.Preferences, conditionsOrEmpty(u.DietaryConditions), favoritesOrEmpty(u.FavoriteItems), favoritesOrEmpty(u.PermanentFavoriteItems)} {
		if docs[i], err = encode(v); err != nil {
			return apperrors.Store("add user", err)
		}
	}
	var cfg sql.NullString
	if u.MealPlanConfig != nil {
		doc, err := encode(u.MealPlanConfig)
		if err != nil {
			return apperrors.Store("add user", err)
		}
		cfg = sql.NullString{String: doc, Valid: true}
	}

	_, err = db.Exec(s.rebind(`INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		u.ID, u.FirstName, u.LastName, u.Email, docs[0], docs[1], docs[2], docs[3],
		u.BanditCounter, cfg, timestamp(u.CreatedAt), timestamp(u.UpdatedAt))
	return apperrors.Store("add user", err)
}

func (s *Store) GetUser(id string) (models.User, error) {
	db, err := s.conn("get user")
	if err != nil {
		return models.User{}, err
	}

	u, err := scanUser(db.QueryRow(s.rebind("SELECT "+userColumns+" FROM users WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperrors.NotFound("user", id)
	}
	if err != nil {
		return models.User{}, apperrors.Store("get user", err)
	}

	index, err := s.dayPlanIndex(db, id)
	if err != nil {
		return models.User{}, err
	}
	u.DayPlans = index[id]
	return u, nil
}

func (s *Store) GetAllUsers() ([]models.User, error) {
	db, err := s.conn("get users")
	if err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT " + userColumns + " FROM users ORDER BY created_at, id")
	if err != nil {
		return nil, apperrors.Store("get users", err)
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, apperrors.Store("get users", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Store("get users", err)
	}

	index, err := s.dayPlanIndex(db, "")
	if err != nil {
		return nil, err
	}
	for i := range users {
		users[i].DayPlans = index[users[i].ID]
	}
	return users, nil
}

// dayPlanIndex maps user id -> date -> day plan id. An empty userID covers every user.
func (s *Store) dayPlanIndex(db *sql.DB, userID string) (map[string]map[string]string, error) {
	query := "SELECT user_id, date, id FROM day_plans"
	var args []any
	if userID != "" {
		query += " WHERE user_id = ?"
		args = append(args, userID)
	}
	rows, err := db.Query(s.rebind(query), args...)
	if err != nil {
		return nil, apperrors.Store("get day plan index", err)
	}
	defer rows.Close()

	index := make(map[string]map[string]string)
	for rows.Next() {
		var uid, date, id string
		if err := rows.Scan(&uid, &date, &id); err != nil {
			return nil, apperrors.Store("get day plan index", err)
		}
		if index[uid] == nil {
			index[uid] = make(map[string]string)
		}
		index[uid][date] = id
	}
	return index, apperrors.Store("get day plan index", rows.Err())
}

func (s *Store) DeleteUser(id string) error {
	db, err := s.conn("delete user")
	if err != nil {
		return err
	}
	tx, err := db.Begin()
	if err != nil {
		return apperrors.Store("delete user", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"day_plans", "meal_plans"} {
		if _, err := tx.Exec(s.rebind("DELETE FROM "+table+" WHERE user_id = ?"), id); err != nil {
			return apperrors.Store("delete user", err)
		}
	}
	res, err := tx.Exec(s.rebind("DELETE FROM users WHERE id = ?"), id)
	if err != nil {
		return apperrors.Store("delete user", err)
	}
	if err := affected(res, "user", id); err != nil {
		return err
	}
	return apperrors.Store("delete user", tx.Commit())
}

func (s *Store) SetNumericalPreferences(userID string, prefs models.NumericalPreferences) error {
	return s.patchUser(userID, "preferences", prefs)
}

func (s *Store) SetDietaryConditions(userID string, conditions models.DietaryConditions) error {
	return s.patchUser(userID, "dietary_conditions", conditionsOrEmpty(conditions))
}

func (s *Store) SetFavoriteItems(userID string, fav models.FavoriteItems) error {
	return s.patchUser(userID, "favorite_items", favoritesOrEmpty(fav))
}

func (s *Store) SetPermanentFavoriteItems(userID string, fav models.FavoriteItems) error {
	return s.patchUser(userID, "permanent_favorite_items", favoritesOrEmpty(fav))
}

func (s *Store) SetMealPlanConfig(userID string, cfg models.MealPlanConfig) error {
	return s.patchUser(userID, "meal_plan_config", cfg)
}

// patchUser overwrites one JSON column of a user row.
func (s *Store) patchUser(userID, column string, v any) error {
	op := "set " + column
	db, err := s.conn(op)
	if err != nil {
		return err
	}
	doc, err := encode(v)
	if err != nil {
		return apperrors.Store(op, err)
	}
	res, err := db.Exec(s.rebind("UPDATE users SET "+column+" = ?, updated_at = ? WHERE id = ?"),
		doc, timestamp(time.Now()), userID)
	if err != nil {
		return apperrors.Store(op, err)
	}
	return affected(res, "user", userID)
}

func (s *Store) IncrementBanditCounter(userID string) (int, error) {
	db, err := s.conn("increment bandit counter")
	if err != nil {
		return 0, err
	}
	var counter int
	err = db.QueryRow(s.rebind(`UPDATE users SET bandit_counter = bandit_counter + 1, updated_at = ?
		WHERE id = ? RETURNING bandit_counter`), timestamp(time.Now()), userID).Scan(&counter)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperrors.NotFound("user", userID)
	}
	if err != nil {
		return 0, apperrors.Store("increment bandit counter", err)
	}
	return counter, nil
}

func conditionsOrEmpty(c models.DietaryConditions) models.DietaryConditions {
	if c == nil {
		return models.DietaryConditions{}
	}
	return c
}

func favoritesOrEmpty(f models.FavoriteItems) models.FavoriteItems {
	if f == nil {
		return models.FavoriteItems{}
	}
	return f
}
