package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

var errNotLoaded = errors.New("storage not loaded")

type Store struct {
	Version   int                                  `json:"version"`
	Foods     map[string]models.FoodItem           `json:"foods"`
	Beverages map[string]models.Beverage           `json:"beverages"`
	Users     map[string]models.User               `json:"users"`
	DayPlans  map[string]map[string]models.DayPlan `json:"day_plans"` // user id -> date -> plan
	MealPlans map[string]models.MealPlan           `json:"meal_plans"`
}

func newStoreDoc() *Store {
	return &Store{
		Version:   1,
		Foods:     make(map[string]models.FoodItem),
		Beverages: make(map[string]models.Beverage),
		Users:     make(map[string]models.User),
		DayPlans:  make(map[string]map[string]models.DayPlan),
		MealPlans: make(map[string]models.MealPlan),
	}
}

// JSONStore keeps every document in one JSON file. With an empty path it
// never touches disk and serves as an in-memory store.
type JSONStore struct {
	path  string
	mu    sync.Mutex
	store *Store
}

var _ Provider = (*JSONStore)(nil)

func NewJSONStore(configPath string) *JSONStore {
	return &JSONStore{
		path: configPath,
	}
}

// NewMemoryStore returns an initialized store that is never persisted.
func NewMemoryStore() *JSONStore {
	return &JSONStore{store: newStoreDoc()}
}

func (s *JSONStore) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		s.store = newStoreDoc()
		return nil
	}

	// Create config directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Check if file already exists
	if _, err := os.Stat(s.path); err == nil {
		return fmt.Errorf("storage already initialized at %s", s.path)
	}

	s.store = newStoreDoc()
	return s.save()
}

func (s *JSONStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.path == "" {
		if s.store == nil {
			s.store = newStoreDoc()
		}
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage not initialized, run '%s init' first", constants.AppName)
		}
		return fmt.Errorf("failed to read storage: %w", err)
	}

	doc := newStoreDoc()
	if err := json.Unmarshal(data, doc); err != nil {
		return fmt.Errorf("failed to parse storage: %w", err)
	}

	// Ensure maps are initialized
	empty := newStoreDoc()
	if doc.Foods == nil {
		doc.Foods = empty.Foods
	}
	if doc.Beverages == nil {
		doc.Beverages = empty.Beverages
	}
	if doc.Users == nil {
		doc.Users = empty.Users
	}
	if doc.DayPlans == nil {
		doc.DayPlans = empty.DayPlans
	}
	if doc.MealPlans == nil {
		doc.MealPlans = empty.MealPlans
	}
	s.store = doc
	return nil
}

func (s *JSONStore) Close() error {
	return nil
}

func (s *JSONStore) GetConfigPath() string {
	return s.path
}

// save writes the whole document. Callers hold mu.
func (s *JSONStore) save() error {
	if s.path == "" {
		return nil
	}
	data, err := json.MarshalIndent(s.store, "", "  ")
	if err != nil {
		return apperrors.Store("serialize storage", err)
	}

	// Write to a sibling file first so a crash never leaves a torn document.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return apperrors.Store("write storage", err)
	}
	return apperrors.Store("write storage", os.Rename(tmp, s.path))
}

// locked runs fn with the document loaded and the mutex held.
func (s *JSONStore) locked(op string, fn func(doc *Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.store == nil {
		return apperrors.Store(op, errNotLoaded)
	}
	return fn(s.store)
}

// clone deep-copies v so callers never share maps or slices with the store.
func clone[T any](v T) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	err = json.Unmarshal(data, &out)
	return out, err
}

func (s *JSONStore) GetFoodItems() (map[string]models.FoodItem, error) {
	var out map[string]models.FoodItem
	err := s.locked("get food items", func(doc *Store) error {
		var err error
		out, err = clone(doc.Foods)
		return apperrors.Store("get food items", err)
	})
	return out, err
}

func (s *JSONStore) GetBeverages() (map[string]models.Beverage, error) {
	var out map[string]models.Beverage
	err := s.locked("get beverages", func(doc *Store) error {
		var err error
		out, err = clone(doc.Beverages)
		return apperrors.Store("get beverages", err)
	})
	return out, err
}

func (s *JSONStore) GetFoodItem(id string) (models.FoodItem, error) {
	var out models.FoodItem
	err := s.locked("get food item", func(doc *Store) error {
		item, ok := doc.Foods[id]
		if !ok {
			return apperrors.NotFound("food item", id)
		}
		var err error
		out, err = clone(item)
		return apperrors.Store("get food item", err)
	})
	return out, err
}

func (s *JSONStore) GetBeverage(id string) (models.Beverage, error) {
	var out models.Beverage
	err := s.locked("get beverage", func(doc *Store) error {
		bev, ok := doc.Beverages[id]
		if !ok {
			return apperrors.NotFound("beverage", id)
		}
		var err error
		out, err = clone(bev)
		return apperrors.Store("get beverage", err)
	})
	return out, err
}

func (s *JSONStore) SaveFoodItem(item models.FoodItem) error {
	if err := requireID("food item", item.ID); err != nil {
		return err
	}
	return s.locked("save food item", func(doc *Store) error {
		stored, err := clone(item)
		if err != nil {
			return apperrors.Store("save food item", err)
		}
		doc.Foods[item.ID] = stored
		return s.save()
	})
}

func (s *JSONStore) SaveBeverage(bev models.Beverage) error {
	if err := requireID("beverage", bev.ID); err != nil {
		return err
	}
	return s.locked("save beverage", func(doc *Store) error {
		stored, err := clone(bev)
		if err != nil {
			return apperrors.Store("save beverage", err)
		}
		doc.Beverages[bev.ID] = stored
		return s.save()
	})
}

func (s *JSONStore) AddUser(u models.User) error {
	if err := requireID("user", u.ID); err != nil {
		return err
	}
	return s.locked("add user", func(doc *Store) error {
		if _, exists := doc.Users[u.ID]; exists {
			return apperrors.Store("add user", fmt.Errorf("user %q already exists", u.ID))
		}
		if u.CreatedAt.IsZero() {
			u.CreatedAt = time.Now().UTC()
		}
		if u.UpdatedAt.IsZero() {
			u.UpdatedAt = u.CreatedAt
		}
		u.DayPlans = nil
		stored, err := clone(u)
		if err != nil {
			return apperrors.Store("add user", err)
		}
		doc.Users[u.ID] = stored
		return s.save()
	})
}

// userView copies a stored user and fills the derived day-plan index.
func userView(doc *Store, u models.User) (models.User, error) {
	out, err := clone(u)
	if err != nil {
		return out, err
	}
	if plans := doc.DayPlans[u.ID]; len(plans) > 0 {
		out.DayPlans = make(map[string]string, len(plans))
		for date, p := range plans {
			out.DayPlans[date] = p.ID
		}
	}
	return out, nil
}

func (s *JSONStore) GetUser(id string) (models.User, error) {
	var out models.User
	err := s.locked("get user", func(doc *Store) error {
		u, ok := doc.Users[id]
		if !ok {
			return apperrors.NotFound("user", id)
		}
		var err error
		out, err = userView(doc, u)
		return apperrors.Store("get user", err)
	})
	return out, err
}

func (s *JSONStore) GetAllUsers() ([]models.User, error) {
	var out []models.User
	err := s.locked("get users", func(doc *Store) error {
		for _, u := range doc.Users {
			view, err := userView(doc, u)
			if err != nil {
				return apperrors.Store("get users", err)
			}
			out = append(out, view)
		}
		sort.Slice(out, func(i, j int) bool {
			if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
				return out[i].CreatedAt.Before(out[j].CreatedAt)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

func (s *JSONStore) DeleteUser(id string) error {
	return s.locked("delete user", func(doc *Store) error {
		if _, ok := doc.Users[id]; !ok {
			return apperrors.NotFound("user", id)
		}
		delete(doc.Users, id)
		delete(doc.DayPlans, id)
		for pid, p := range doc.MealPlans {
			if p.UserID == id {
				delete(doc.MealPlans, pid)
			}
		}
		return s.save()
	})
}

// patchUser applies fn to the stored user and persists the result.
func (s *JSONStore) patchUser(op, userID string, fn func(u *models.User) error) error {
	return s.locked(op, func(doc *Store) error {
		u, ok := doc.Users[userID]
		if !ok {
			return apperrors.NotFound("user", userID)
		}
		if err := fn(&u); err != nil {
			return apperrors.Store(op, err)
		}
		u.UpdatedAt = time.Now().UTC()
		doc.Users[userID] = u
		return s.save()
	})
}

func (s *JSONStore) SetNumericalPreferences(userID string, prefs models.NumericalPreferences) error {
	return s.patchUser("set preferences", userID, func(u *models.User) error {
		u.Preferences = prefs
		return nil
	})
}

func (s *JSONStore) SetDietaryConditions(userID string, conditions models.DietaryConditions) error {
	return s.patchUser("set dietary conditions", userID, func(u *models.User) (err error) {
		u.DietaryConditions, err = clone(conditions)
		return err
	})
}

func (s *JSONStore) SetFavoriteItems(userID string, fav models.FavoriteItems) error {
	return s.patchUser("set favorite items", userID, func(u *models.User) error {
		u.FavoriteItems = fav.Clone()
		return nil
	})
}

func (s *JSONStore) SetPermanentFavoriteItems(userID string, fav models.FavoriteItems) error {
	return s.patchUser("set permanent favorite items", userID, func(u *models.User) error {
		u.PermanentFavoriteItems = fav.Clone()
		return nil
	})
}

func (s *JSONStore) SetMealPlanConfig(userID string, cfg models.MealPlanConfig) error {
	return s.patchUser("set meal plan config", userID, func(u *models.User) error {
		stored, err := clone(cfg)
		u.MealPlanConfig = &stored
		return err
	})
}

func (s *JSONStore) IncrementBanditCounter(userID string) (int, error) {
	var counter int
	err := s.patchUser("increment bandit counter", userID, func(u *models.User) error {
		u.BanditCounter++
		counter = u.BanditCounter
		return nil
	})
	return counter, err
}

func (s *JSONStore) SaveDayPlan(userID string, plan models.DayPlan) error {
	if err := requireID("day plan", plan.ID); err != nil {
		return err
	}
	return s.locked("save day plan", func(doc *Store) error {
		plan.UserID = userID
		stored, err := clone(plan)
		if err != nil {
			return apperrors.Store("save day plan", err)
		}
		if doc.DayPlans[userID] == nil {
			doc.DayPlans[userID] = make(map[string]models.DayPlan)
		}
		doc.DayPlans[userID][plan.Date] = stored
		return s.save()
	})
}

func (s *JSONStore) GetDayPlan(userID, date string) (models.DayPlan, error) {
	var out models.DayPlan
	err := s.locked("get day plan", func(doc *Store) error {
		plan, ok := doc.DayPlans[userID][date]
		if !ok {
			return apperrors.NotFound("day plan", userID+"/"+date)
		}
		var err error
		out, err = clone(plan)
		return apperrors.Store("get day plan", err)
	})
	return out, err
}

// GetDayPlans returns the user's plans for dates, or all of them when dates is empty.
func (s *JSONStore) GetDayPlans(userID string, dates []string) (map[string]models.DayPlan, error) {
	out := make(map[string]models.DayPlan)
	err := s.locked("get day plans", func(doc *Store) error {
		plans := doc.DayPlans[userID]
		want := dates
		if len(want) == 0 {
			want = make([]string, 0, len(plans))
			for d := range plans {
				want = append(want, d)
			}
		}
		for _, d := range want {
			plan, ok := plans[d]
			if !ok {
				continue
			}
			c, err := clone(plan)
			if err != nil {
				return apperrors.Store("get day plans", err)
			}
			out[d] = c
		}
		return nil
	})
	return out, err
}

func (s *JSONStore) SaveMealPlan(plan models.MealPlan) error {
	if err := requireID("meal plan", plan.ID); err != nil {
		return err
	}
	return s.locked("save meal plan", func(doc *Store) error {
		if plan.CreatedAt.IsZero() {
			plan.CreatedAt = time.Now().UTC()
		}
		if existing, ok := doc.MealPlans[plan.ID]; ok {
			plan.CreatedAt = existing.CreatedAt
		}
		stored, err := clone(plan)
		if err != nil {
			return apperrors.Store("save meal plan", err)
		}
		doc.MealPlans[plan.ID] = stored
		return s.save()
	})
}

func (s *JSONStore) GetMealPlan(id string) (models.MealPlan, error) {
	var out models.MealPlan
	err := s.locked("get meal plan", func(doc *Store) error {
		plan, ok := doc.MealPlans[id]
		if !ok {
			return apperrors.NotFound("meal plan", id)
		}
		var err error
		out, err = clone(plan)
		return apperrors.Store("get meal plan", err)
	})
	return out, err
}

func (s *JSONStore) GetLatestMealPlan(userID string) (models.MealPlan, error) {
	var out models.MealPlan
	err := s.locked("get latest meal plan", func(doc *Store) error {
		var latest *models.MealPlan
		for _, p := range doc.MealPlans {
			if p.UserID != userID {
				continue
			}
			if latest == nil || p.CreatedAt.After(latest.CreatedAt) ||
				(p.CreatedAt.Equal(latest.CreatedAt) && p.ID > latest.ID) {
				p := p
				latest = &p
			}
		}
		if latest == nil {
			return apperrors.NotFound("meal plan for user", userID)
		}
		var err error
		out, err = clone(*latest)
		return apperrors.Store("get latest meal plan", err)
	})
	return out, err
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Store("save "+kind, errors.New("id is required"))
	}
	return nil
}
