package postgres

import (
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	pq "github.com/lib/pq"

	"github.com/julianstephens/platewise/internal/constants"
	apperrors "github.com/julianstephens/platewise/internal/errors"
	"github.com/julianstephens/platewise/internal/logger"
	"github.com/julianstephens/platewise/internal/storage"
	"github.com/julianstephens/platewise/internal/storage/sqlstore"
)

var _ storage.Provider = (*Store)(nil)

type Store struct {
	*sqlstore.Store
	connStr string
	db      *sql.DB
}

var (
	ErrInvalidConnectionString = errors.New("invalid PostgreSQL connection string")
	ErrEmbeddedCredentials     = errors.New("connection string must not contain a password")
)

const (
	maxConns        = 10
	connMaxLifetime = 5 * time.Minute
)

// New returns a store for connStr with search_path pointed at the platewise
// schema unless the caller already chose one.
func New(connStr string) *Store {
	return &Store{
		Store:   sqlstore.New(sqlstore.Postgres),
		connStr: withSearchPath(connStr),
	}
}

func isURL(connStr string) bool {
	return strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://")
}

// dsnPairs splits a key=value connection string into lower-cased keys.
func dsnPairs(connStr string) map[string]string {
	out := make(map[string]string)
	for _, field := range strings.Fields(connStr) {
		k, v, ok := strings.Cut(field, "=")
		if ok {
			out[strings.ToLower(strings.TrimSpace(k))] = v
		}
	}
	return out
}

// hasParam reports whether connStr sets key, matched case-insensitively, in
// either URL query or key=value form.
func hasParam(connStr, key string) bool {
	if u, err := url.Parse(connStr); err == nil && u.Scheme != "" {
		for k := range u.Query() {
			if strings.EqualFold(k, key) {
				return true
			}
		}
		return false
	}
	_, ok := dsnPairs(connStr)[strings.ToLower(key)]
	return ok
}

func withSearchPath(connStr string) string {
	if hasParam(connStr, "search_path") {
		return connStr
	}
	if !isURL(connStr) {
		return strings.TrimSpace(connStr) + " search_path=" + constants.AppName
	}
	u, err := url.Parse(connStr)
	if err != nil {
		logger.Warn("Failed to parse Postgres connection string", "error", err)
		return connStr
	}
	q := u.Query()
	q.Set("search_path", constants.AppName)
	u.RawQuery = q.Encode()
	return u.String()
}

// ValidateConnString checks that connStr parses as a PostgreSQL URI or
// key=value DSN. A password in the string yields ErrEmbeddedCredentials.
func ValidateConnString(connStr string) (bool, error) {
	if strings.TrimSpace(connStr) == "" {
		return false, fmt.Errorf("%w: connection string cannot be empty", ErrInvalidConnectionString)
	}
	if _, err := pq.NewConnector(connStr); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}

	if !isURL(connStr) {
		if _, ok := dsnPairs(connStr)["password"]; ok {
			return false, ErrEmbeddedCredentials
		}
		return true, nil
	}

	u, err := url.Parse(connStr)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidConnectionString, err)
	}
	if _, set := u.User.Password(); set {
		return false, ErrEmbeddedCredentials
	}
	if u.Host == "" && u.User == nil && strings.Trim(u.Path, "/") == "" {
		return false, fmt.Errorf("%w: connection URL is incomplete", ErrInvalidConnectionString)
	}
	return true, nil
}

// connect opens the pool and checks the server is reachable.
func (s *Store) connect() (*sql.DB, error) {
	db, err := sql.Open("postgres", s.connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := db.Ping(); err != nil {
		db.Close()
		if strings.Contains(err.Error(), "SSL is not enabled on the server") && !hasParam(s.connStr, "sslmode") {
			return nil, apperrors.Store("connect", fmt.Errorf("%w (hint: add sslmode=disable to the connection string)", err))
		}
		return nil, apperrors.Store("connect", err)
	}
	return db, nil
}

func (s *Store) Init() error {
	db, err := s.connect()
	if err != nil {
		return err
	}

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + constants.AppName); err != nil {
		db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	// Assign only after schema creation succeeds
	s.db = db
	s.Bind(db)

	return s.ApplySchema("backend", "postgresql")
}

func (s *Store) Load() error {
	if s.db != nil {
		return nil
	}

	db, err := s.connect()
	if err != nil {
		return err
	}
	s.db = db
	s.Bind(db)

	return s.ValidateSchema()
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	s.Bind(nil)
	return err
}

func (s *Store) GetConfigPath() string {
	// Return a non-sensitive identifier instead of the full connection string
	return "postgresql"
}
