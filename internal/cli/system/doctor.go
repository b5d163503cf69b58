package system

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-ps"

	"github.com/julianstephens/platewise/internal/backup"
	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/models"
	"github.com/julianstephens/platewise/internal/storage/sqlite"
	"github.com/julianstephens/platewise/internal/validation"
)

var (
	listProcesses = ps.Processes
	lookPath      = exec.LookPath
)

type DoctorCmd struct{}

type check struct {
	name    string
	needsDB bool
	warning bool // failures are reported but do not fail the run
	run     func(ctx *cli.Context) error
}

var checks = []check{
	{name: "Schema version", needsDB: true, run: checkSchemaVersion},
	{name: "Migrations complete", needsDB: true, run: checkMigrationsComplete},
	{name: "Backups present", warning: true, run: checkBackupsPresent},
	{name: "Catalog validation", needsDB: true, run: checkCatalog},
	{name: "Favorite items", needsDB: true, warning: true, run: checkFavorites},
	{name: "Classifier template", run: checkClassifierTemplate},
	{name: "Java runtime", run: checkJava},
	{name: "Classifier processes", warning: true, run: checkClassifierProcesses},
	{name: "Clock/timezone", run: func(*cli.Context) error { return checkClockTimezone() }},
}

func (cmd *DoctorCmd) Run(ctx *cli.Context) error {
	fmt.Println("Running diagnostics...")
	fmt.Println()

	hasError := false
	dbReachable := true
	if err := checkDBReachable(ctx); err != nil {
		fmt.Printf("❌ Database reachable: FAIL\n   Error: %v\n", err)
		hasError, dbReachable = true, false
	} else {
		fmt.Printf("✓ Database reachable: OK\n")
	}

	for _, c := range checks {
		if c.needsDB && !dbReachable {
			fmt.Printf("⊘ %s: SKIPPED (database not reachable)\n", c.name)
			continue
		}
		err := c.run(ctx)
		switch {
		case err == nil:
			fmt.Printf("✓ %s: OK\n", c.name)
		case c.warning:
			fmt.Printf("⚠ %s: WARNING\n   %v\n", c.name, err)
		default:
			fmt.Printf("❌ %s: FAIL\n   Error: %v\n", c.name, err)
			hasError = true
		}
	}

	if ctx.Breaker != nil {
		fmt.Printf("ℹ Classifier circuit: %s\n", ctx.Breaker.State())
	}

	fmt.Println()
	if hasError {
		fmt.Println("Diagnostics completed with errors.")
		return errors.New("one or more health checks failed")
	}
	fmt.Println("All diagnostics passed!")
	return nil
}

func checkDBReachable(ctx *cli.Context) error {
	if err := ctx.Store.Load(); err != nil {
		return fmt.Errorf("failed to load database: %w", err)
	}
	if s, ok := ctx.Store.(*sqlite.Store); ok {
		db := s.GetDB()
		if db == nil {
			return errors.New("database connection is nil")
		}
		var result int
		if err := db.QueryRow("SELECT 1").Scan(&result); err != nil {
			return fmt.Errorf("failed to query database: %w", err)
		}
	}
	return nil
}

// schemaVersions returns the current and latest schema versions of a SQLite
// store. ok is false for other backends.
func schemaVersions(ctx *cli.Context) (current, latest int, ok bool, err error) {
	s, isSQLite := ctx.Store.(*sqlite.Store)
	if !isSQLite {
		return 0, 0, false, nil
	}
	runner, err := s.Runner()
	if err != nil {
		return 0, 0, true, err
	}
	st, err := runner.Status()
	if err != nil {
		return 0, 0, true, fmt.Errorf("failed to read schema status: %w", err)
	}
	return st.Current, st.Latest, true, nil
}

func checkSchemaVersion(ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current > latest {
		return fmt.Errorf("database schema version (%d) is newer than supported version (%d)", current, latest)
	}
	return nil
}

func checkMigrationsComplete(ctx *cli.Context) error {
	current, latest, ok, err := schemaVersions(ctx)
	if !ok || err != nil {
		return err
	}
	if current < latest {
		return fmt.Errorf("migrations incomplete: current version %d, latest version %d", current, latest)
	}
	return nil
}

func checkBackupsPresent(ctx *cli.Context) error {
	if _, ok := ctx.Store.(*sqlite.Store); !ok {
		return nil
	}
	mgr := backup.NewManager(ctx.Store.GetConfigPath())
	backups, err := mgr.List()
	if err != nil {
		return fmt.Errorf("failed to list backups: %w", err)
	}
	if len(backups) == 0 {
		return errors.New("no backups found - consider creating one with 'platewise backup create'")
	}
	return nil
}

func catalogItems(ctx *cli.Context) (map[string]models.FoodItem, map[string]models.Beverage, error) {
	foods, err := ctx.Store.GetFoodItems()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get food items: %w", err)
	}
	bevs, err := ctx.Store.GetBeverages()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get beverages: %w", err)
	}
	return foods, bevs, nil
}

func checkCatalog(ctx *cli.Context) error {
	foods, bevs, err := catalogItems(ctx)
	if err != nil {
		return err
	}
	if len(foods) == 0 && len(bevs) == 0 {
		return errors.New("catalog is empty - import one with 'platewise catalog import'")
	}

	foodList := make([]models.FoodItem, 0, len(foods))
	for _, f := range foods {
		foodList = append(foodList, f)
	}
	bevList := make([]models.Beverage, 0, len(bevs))
	for _, b := range bevs {
		bevList = append(bevList, b)
	}
	result := validation.ValidateCatalog(foodList, bevList)
	return result.Err()
}

func checkFavorites(ctx *cli.Context) error {
	foods, bevs, err := catalogItems(ctx)
	if err != nil {
		return err
	}
	users, err := ctx.Store.GetAllUsers()
	if err != nil {
		return fmt.Errorf("failed to get users: %w", err)
	}

	var stale []string
	for _, u := range users {
		for _, fav := range []models.FavoriteItems{u.FavoriteItems, u.PermanentFavoriteItems} {
			result := validation.ValidateFavorites(fav, foods, bevs)
			if result.HasConflicts() {
				stale = append(stale, u.ID)
				break
			}
		}
	}
	if len(stale) > 0 {
		return fmt.Errorf("favorites reference items missing from the catalog for users: %s", strings.Join(stale, ", "))
	}
	return nil
}

func checkClassifierTemplate(ctx *cli.Context) error {
	if ctx.Config == nil {
		return errors.New("no settings loaded")
	}
	info, err := os.Stat(ctx.Config.Bandit.Template)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("trial template %s is missing", ctx.Config.Bandit.Template)
	}
	jar := ctx.Config.Bandit.JarPath(ctx.Config.Bandit.Template)
	if _, err := os.Stat(jar); err != nil {
		return fmt.Errorf("classifier jar not found: %s", jar)
	}
	return nil
}

func checkJava(ctx *cli.Context) error {
	if ctx.Config == nil {
		return errors.New("no settings loaded")
	}
	if _, err := lookPath(ctx.Config.Bandit.Java); err != nil {
		return fmt.Errorf("%s not found on PATH: %w", ctx.Config.Bandit.Java, err)
	}
	return nil
}

// checkClassifierProcesses warns about classifier JVMs left running, which
// usually means a trial was interrupted.
func checkClassifierProcesses(ctx *cli.Context) error {
	java := "java"
	if ctx.Config != nil {
		java = filepath.Base(ctx.Config.Bandit.Java)
	}
	procs, err := listProcesses()
	if err != nil {
		return fmt.Errorf("failed to list processes: %w", err)
	}

	var pids []string
	self := os.Getpid()
	for _, p := range procs {
		if p.Pid() == self {
			continue
		}
		name := strings.TrimSuffix(p.Executable(), ".exe")
		if name == java {
			pids = append(pids, fmt.Sprint(p.Pid()))
		}
	}
	if len(pids) > 0 {
		return fmt.Errorf("%d %s process(es) running (pid %s); an interrupted trial may still hold a workspace",
			len(pids), java, strings.Join(pids, ", "))
	}
	return nil
}

func checkClockTimezone() error {
	now := time.Now()
	if now.Year() < 2020 || now.Year() > 2100 {
		return fmt.Errorf("system time appears incorrect: %s", now.Format(time.RFC3339))
	}
	return nil
}
