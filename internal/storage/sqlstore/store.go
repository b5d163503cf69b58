// Package sqlstore implements storage.Provider's data operations over
// database/sql. The sqlite and postgres packages own connection lifecycle
// and migrations and bind their *sql.DB here.
package sqlstore

import (
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	apperrors "github.com/julianstephens/platewise/internal/errors"
)

// Dialect selects placeholder syntax.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// timestampFormat is fixed-width so stored timestamps sort lexically.
const timestampFormat = "2006-01-02T15:04:05.000000000Z07:00"

var errNotLoaded = errors.New("storage not loaded")

type Store struct {
	db      *sql.DB
	dialect Dialect
}

func New(dialect Dialect) *Store {
	return &Store{dialect: dialect}
}

// Bind attaches an open connection. Passing nil detaches it.
func (s *Store) Bind(db *sql.DB) {
	s.db = db
}

// DB returns the bound connection, nil before Init or Load.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) conn(op string) (*sql.DB, error) {
	if s.db == nil {
		return nil, apperrors.Store(op, errNotLoaded)
	}
	return s.db, nil
}

// rebind rewrites ? placeholders to $1, $2, ... for PostgreSQL.
func (s *Store) rebind(query string) string {
	if s.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// placeholders returns "?, ?, ..." for n values.
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decode(data []byte, v any) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(timestampFormat)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampFormat, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return apperrors.Store("save "+kind, errors.New("id is required"))
	}
	return nil
}

// affected maps a zero-row update to a not-found error.
func affected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return apperrors.Store("update "+kind, err)
	}
	if n == 0 {
		return apperrors.NotFound(kind, id)
	}
	return nil
}
