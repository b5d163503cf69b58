package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/julianstephens/platewise/internal/cli"
	"github.com/julianstephens/platewise/internal/cli/backups"
	"github.com/julianstephens/platewise/internal/cli/catalogs"
	"github.com/julianstephens/platewise/internal/cli/meals"
	"github.com/julianstephens/platewise/internal/cli/plans"
	"github.com/julianstephens/platewise/internal/cli/system"
	"github.com/julianstephens/platewise/internal/cli/trials"
	"github.com/julianstephens/platewise/internal/cli/users"
	"github.com/julianstephens/platewise/internal/config"
	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
)

var CLI struct {
	Version  kong.VersionFlag
	Config   string        `help:"Database path (.db for SQLite, .json for a JSON file) or PostgreSQL connection string. Credentials must NOT be embedded here; use PLATEWISE_DB_CONNECTION or 'platewise keyring set' instead." type:"string"`
	Settings string        `help:"Settings file (YAML). Defaults to settings.yaml next to the database." type:"string"`
	Debug    bool          `help:"Log at debug level."`
	Timeout  time.Duration `help:"Overall time limit for classifier runs (e.g. 15m). Overrides bandit.timeout."`

	Init    system.InitCmd    `cmd:"" help:"Initialize platewise storage."`
	Migrate system.MigrateCmd `cmd:"" help:"Run database migrations."`
	Doctor  system.DoctorCmd  `cmd:"" help:"Run health checks and diagnostics."`
	Backup  struct {
		Create  backups.BackupCreateCmd  `cmd:"" help:"Create a manual backup." default:"1"`
		List    backups.BackupListCmd    `cmd:"" help:"List available backups."`
		Restore backups.BackupRestoreCmd `cmd:"" help:"Restore from a backup."`
	} `cmd:"" help:"Manage database backups."`
	Keyring struct {
		Set    system.KeyringSetCmd    `cmd:"" help:"Store the PostgreSQL connection string."`
		Get    system.KeyringGetCmd    `cmd:"" help:"Show the stored connection string with the password masked."`
		Delete system.KeyringDeleteCmd `cmd:"" help:"Remove the stored connection string."`
		Status system.KeyringStatusCmd `cmd:"" help:"Check keyring availability." default:"1"`
	} `cmd:"" help:"Manage the connection string in the OS keyring."`

	Catalog struct {
		Import catalogs.CatalogImportCmd `cmd:"" help:"Import foods and beverages from a file."`
		List   catalogs.CatalogListCmd   `cmd:"" help:"List the catalog." default:"1"`
		Reload catalogs.CatalogReloadCmd `cmd:"" help:"Reload the catalog snapshot from storage."`
	} `cmd:"" help:"Manage the food and beverage catalog."`
	User struct {
		Add        users.UserAddCmd        `cmd:"" help:"Add a user."`
		List       users.UserListCmd       `cmd:"" help:"List users." default:"1"`
		Show       users.UserShowCmd       `cmd:"" help:"Show a user's profile and favorites."`
		Prefs      users.UserPrefsCmd      `cmd:"" help:"Set dairy, meat and nuts preferences."`
		Conditions users.UserConditionsCmd `cmd:"" help:"Set dietary conditions."`
		Unfavorite users.UserUnfavoriteCmd `cmd:"" help:"Remove an item from permanent favorites."`
		Delete     users.UserDeleteCmd     `cmd:"" help:"Delete a user and their plans."`
	} `cmd:"" help:"Manage users."`

	Recommend  plans.RecommendCmd  `cmd:"" help:"Generate a meal plan for a user."`
	Regenerate plans.RegenerateCmd `cmd:"" help:"Regenerate the day plans for some dates."`
	Plan       struct {
		Show plans.PlanShowCmd `cmd:"" help:"Show day plans." default:"withargs"`
	} `cmd:"" help:"Show stored day plans."`
	Score plans.ScoreCmd `cmd:"" help:"Rescore a stored meal plan."`
	Meal  struct {
		Edit     meals.MealEditCmd     `cmd:"" help:"Replace or remove items in a meal."`
		Save     meals.MealSaveCmd     `cmd:"" help:"Mark a meal as saved, with optional notes."`
		Delete   meals.MealDeleteCmd   `cmd:"" help:"Delete a meal."`
		Favorite meals.MealFavoriteCmd `cmd:"" help:"Favorite a meal and keep its items."`
	} `cmd:"" help:"Edit generated meals."`

	Trials struct {
		List  trials.TrialListCmd  `cmd:"" help:"List classifier trial workspaces." default:"1"`
		Prune trials.TrialPruneCmd `cmd:"" help:"Remove old trial workspaces."`
	} `cmd:"" help:"Manage classifier trials."`
	Bandit struct {
		Train trials.BanditTrainCmd `cmd:"" help:"Retrain a user's favorites now."`
	} `cmd:"" help:"Run the preference classifier."`
}

// Commands that open or inspect storage themselves.
var noLoad = map[string]bool{
	"init":    true,
	"migrate": true,
	"doctor":  true,
	"keyring": true,
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name(constants.AppName),
		kong.Description("Meal plan recommender driven by a preference classifier"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{"version": constants.Version},
	)

	defaultPath, err := cli.ExpandHome(constants.DefaultConfigPath)
	apperrors.Fatal(err)
	configDir := filepath.Dir(defaultPath)

	cfg, err := config.Load(configDir, CLI.Settings)
	if err != nil {
		fmt.Fprintln(os.Stderr, apperrors.Format(err))
		os.Exit(1)
	}
	if err := logger.Init(logger.Config{Debug: CLI.Debug, ConfigDir: configDir, Level: cfg.Log.Level}); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize logger: %v\n", err)
	}
	if CLI.Timeout > 0 {
		cfg.Bandit.Timeout = CLI.Timeout
	}

	source, from, err := cli.ResolveSource(CLI.Config)
	apperrors.Fatal(err)
	store, err := cli.OpenStore(source, from)
	apperrors.Fatal(err)
	defer store.Close()

	appCtx := cli.NewContext(store, cfg)

	command := strings.Fields(ctx.Command())
	if len(command) > 0 && !noLoad[command[0]] {
		if err := store.Load(); err != nil {
			store.Close()
			apperrors.Fatal(err)
		}
	}

	if err := ctx.Run(appCtx); err != nil {
		store.Close()
		apperrors.Fatal(err)
	}
}
