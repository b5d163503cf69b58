package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/julianstephens/platewise/internal/constants"
	"github.com/julianstephens/platewise/internal/keyring"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/storage"
	"github.com/julianstephens/platewise/internal/storage/postgres"
	"github.com/julianstephens/platewise/internal/storage/sqlite"
)

// IsPostgres reports whether source is a PostgreSQL URI or key=value DSN.
func IsPostgres(source string) bool {
	return strings.HasPrefix(source, "postgres://") ||
		strings.HasPrefix(source, "postgresql://") ||
		strings.Contains(source, "host=")
}

// ResolveSource picks the storage location: the --config flag, then
// PLATEWISE_DB_CONNECTION, then the keyring, then the default SQLite path.
func ResolveSource(flag string) (string, keyring.Source, error) {
	source, from, err := keyring.Default.Resolve(flag)
	switch {
	case err == nil:
		return source, from, nil
	case errors.Is(err, keyring.ErrNotFound), errors.Is(err, keyring.ErrKeyringUnavailable):
		return constants.DefaultConfigPath, keyring.SourceFlag, nil
	}
	return "", "", err
}

// OpenStore builds the backend for source without loading it. Connection
// strings given on the command line must not carry a password; ones read from
// the environment or the keyring may.
func OpenStore(source string, from keyring.Source) (storage.Provider, error) {
	if IsPostgres(source) {
		if _, err := postgres.ValidateConnString(source); err != nil {
			if !errors.Is(err, postgres.ErrEmbeddedCredentials) {
				return nil, err
			}
			if from == keyring.SourceFlag {
				return nil, fmt.Errorf("%w; store the connection string with 'platewise keyring set' or %s instead",
					err, keyring.EnvConnection)
			}
		}
		logger.Debug("Using PostgreSQL storage", "source", from)
		return postgres.New(source), nil
	}

	path, err := ExpandHome(source)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		logger.Debug("Using JSON storage", "path", path)
		return storage.NewJSONStore(path), nil
	}
	logger.Debug("Using SQLite storage", "path", path)
	return sqlite.NewStore(path), nil
}

// ExpandHome replaces a leading "~" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
