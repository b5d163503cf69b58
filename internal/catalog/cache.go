package catalog

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
)

// Source is the part of the store the cache reads from.
type Source interface {
	GetFoodItems() (map[string]models.FoodItem, error)
	GetBeverages() (map[string]models.Beverage, error)
}

// Cache hands out the current catalog snapshot. A reload swaps the snapshot
// atomically; holders of an older snapshot keep a consistent view.
type Cache struct {
	src     Source
	current atomic.Pointer[Snapshot]
	mu      sync.Mutex // serializes reloads
}

func New(src Source) *Cache {
	return &Cache{src: src}
}

// Snapshot returns the loaded snapshot, loading it on first use.
func (c *Cache) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := c.current.Load(); s != nil {
		return s, nil
	}
	return c.Reload(ctx)
}

// Reload fetches foods and beverages concurrently and replaces the snapshot.
// On failure the previous snapshot stays in place.
func (c *Cache) Reload(ctx context.Context) (*Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var (
		foods     map[string]models.FoodItem
		beverages map[string]models.Beverage
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		foods, err = c.src.GetFoodItems()
		return apperrors.Store("get food items", err)
	})
	g.Go(func() error {
		var err error
		beverages, err = c.src.GetBeverages()
		return apperrors.Store("get beverages", err)
	})
	if err := g.Wait(); err != nil {
		logger.Warn("Catalog reload failed", "error", err)
		return nil, err
	}

	s := NewSnapshot(foods, beverages)
	c.current.Store(s)
	logger.Debug("Catalog loaded", "foods", len(foods), "beverages", len(beverages))
	return s, nil
}
