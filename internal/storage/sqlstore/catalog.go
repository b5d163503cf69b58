package sqlstore

import (
	"database/sql"
	"errors"
	"time"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/models"
)

const upsertDoc = ` (id, doc, updated_at) VALUES (?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET doc = excluded.doc, updated_at = excluded.updated_at`

func (s *Store) GetFoodItems() (map[string]models.FoodItem, error) {
	items := make(map[string]models.FoodItem)
	err := s.scanDocs("food_items", func(id string, doc []byte) error {
		var item models.FoodItem
		if err := decode(doc, &item); err != nil {
			return err
		}
		item.ID = id
		items[id] = item
		return nil
	})
	if err != nil {
		return nil, apperrors.Store("get food items", err)
	}
	return items, nil
}

func (s *Store) GetBeverages() (map[string]models.Beverage, error) {
	bevs := make(map[string]models.Beverage)
	err := s.scanDocs("beverages", func(id string, doc []byte) error {
		var bev models.Beverage
		if err := decode(doc, &bev); err != nil {
			return err
		}
		bev.ID = id
		bevs[id] = bev
		return nil
	})
	if err != nil {
		return nil, apperrors.Store("get beverages", err)
	}
	return bevs, nil
}

func (s *Store) GetFoodItem(id string) (models.FoodItem, error) {
	var item models.FoodItem
	doc, err := s.getDoc("food_items", "food item", id)
	if err != nil {
		return item, err
	}
	if err := decode(doc, &item); err != nil {
		return item, apperrors.Store("decode food item", err)
	}
	item.ID = id
	return item, nil
}

func (s *Store) GetBeverage(id string) (models.Beverage, error) {
	var bev models.Beverage
	doc, err := s.getDoc("beverages", "beverage", id)
	if err != nil {
		return bev, err
	}
	if err := decode(doc, &bev); err != nil {
		return bev, apperrors.Store("decode beverage", err)
	}
	bev.ID = id
	return bev, nil
}

func (s *Store) SaveFoodItem(item models.FoodItem) error {
	if err := requireID("food item", item.ID); err != nil {
		return err
	}
	return s.putDoc("food_items", "save food item", item.ID, item)
}

func (s *Store) SaveBeverage(bev models.Beverage) error {
	if err := requireID("beverage", bev.ID); err != nil {
		return err
	}
	return s.putDoc("beverages", "save beverage", bev.ID, bev)
}

func (s *Store) scanDocs(table string, fn func(id string, doc []byte) error) error {
	db, err := s.conn("scan " + table)
	if err != nil {
		return err
	}
	rows, err := db.Query("SELECT id, doc FROM " + table + " ORDER BY id")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var doc []byte
		if err := rows.Scan(&id, &doc); err != nil {
			return err
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

func (s *Store) getDoc(table, kind, id string) ([]byte, error) {
	db, err := s.conn("get " + kind)
	if err != nil {
		return nil, err
	}
	var doc []byte
	err = db.QueryRow(s.rebind("SELECT doc FROM "+table+" WHERE id = ?"), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound(kind, id)
	}
	if err != nil {
		return nil, apperrors.Store("get "+kind, err)
	}
	return doc, nil
}

func (s *Store) putDoc(table, op, id string, v any) error {
	db, err := s.conn(op)
	if err != nil {
		return err
	}
	doc, err := encode(v)
	if err != nil {
		return apperrors.Store(op, err)
	}
	_, err = db.Exec(s.rebind("INSERT INTO "+table+upsertDoc), id, doc, timestamp(time.Now()))
	return apperrors.Store(op, err)
}
