package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/julianstephens/platewise/internal/backup"
	"github.com/julianstephens/platewise/internal/bandit"
	"github.com/julianstephens/platewise/internal/catalog"
	"github.com/julianstephens/platewise/internal/config"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/recommender"
	"github.com/julianstephens/platewise/internal/storage"
	"github.com/julianstephens/platewise/internal/storage/sqlite"
	"github.com/julianstephens/platewise/internal/utils"
)

type Context struct {
	Store      storage.Provider
	Config     *config.Config
	Catalog    *catalog.Cache
	Workspaces *bandit.Workspaces
	Breaker    *bandit.Breaker
	Service    *recommender.Service
	// Timeout bounds classifier runs. Zero means no limit.
	Timeout time.Duration
}

// NewContext wires the catalog cache, the BoostSRL classifier pipeline and
// the recommendation service around a store.
func NewContext(store storage.Provider, cfg *config.Config) *Context {
	return NewContextWithOracle(store, cfg, bandit.NewBoostSRL(cfg.Bandit))
}

// NewContextWithOracle is NewContext with a different classifier behind the
// circuit breaker.
func NewContextWithOracle(store storage.Provider, cfg *config.Config, oracle bandit.Oracle) *Context {
	ws := bandit.NewWorkspaces(cfg.Bandit.Root, cfg.Bandit.Template)
	breaker := bandit.NewBreaker(oracle, cfg.Bandit.Breaker.Failures, cfg.Bandit.Breaker.Cooldown)
	cache := catalog.New(store)
	pipeline := &bandit.Pipeline{
		Workspaces:    ws,
		Oracle:        breaker,
		TrainFraction: cfg.Recommend.TrainFraction,
	}
	svc := recommender.New(store, cache, pipeline, recommender.Options{
		RetrainEvery: cfg.Recommend.RetrainEvery,
		KeepTrials:   cfg.Bandit.KeepTrials,
		Seed:         cfg.Recommend.Seed,
	})
	return &Context{
		Store:      store,
		Config:     cfg,
		Catalog:    cache,
		Workspaces: ws,
		Breaker:    breaker,
		Service:    svc,
		Timeout:    cfg.Bandit.Timeout,
	}
}

// RunContext returns the context commands pass to long-running operations.
func (c *Context) RunContext() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.WithCancel(context.Background())
}

// PerformAutomaticBackup snapshots a SQLite store before a write-heavy
// command. Other backends are skipped and failures are only logged.
func (c *Context) PerformAutomaticBackup() {
	if _, ok := c.Store.(*sqlite.Store); !ok {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(); err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// ParseDate accepts YYYY-MM-DD or the aliases "today", "tomorrow" and
// "yesterday".
func ParseDate(s string) (string, error) {
	return utils.ResolveDate(s, time.Now())
}

// ParseDates applies ParseDate to each argument.
func ParseDates(args []string) ([]string, error) {
	dates := make([]string, 0, len(args))
	for _, a := range args {
		d, err := ParseDate(a)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, nil
}

// ParseAssignments turns role=id arguments into a meal update map. An empty
// id ("dessert=") removes the role.
func ParseAssignments(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		key, id, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (expected role=id)", a)
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.TrimSpace(id)
	}
	return out, nil
}

// ParseConditions builds a condition set from flag values such as "vegan".
func ParseConditions(names []string) models.DietaryConditions {
	out := make(models.DietaryConditions, len(names))
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n != "" {
			out[n] = true
		}
	}
	return out
}

// LoadPlanConfig reads a meal-plan config from YAML (.yaml, .yml) or JSON.
func LoadPlanConfig(path string) (models.MealPlanConfig, error) {
	var cfg models.MealPlanConfig
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read meal plan config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &cfg)
	default:
		err = json.Unmarshal(data, &cfg)
	}
	if err != nil {
		return cfg, apperrors.Configuration("failed to parse meal plan config %s: %v", path, err)
	}
	return cfg, nil
}
