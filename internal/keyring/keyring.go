// Package keyring keeps the PostgreSQL connection string out of config files
// and shell history by storing it in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/julianstephens/platewise/internal/constants"
)

var (
	// ErrNotFound is returned when no connection string is stored
	ErrNotFound = errors.New("connection string not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be reached
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// EnvConnection overrides the keyring entry when set.
const EnvConnection = constants.EnvPrefix + "DB_CONNECTION"

// Source names where a resolved connection string came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
)

// Entry addresses one secret in the OS keyring.
type Entry struct {
	Service string
	User    string
}

// Default is the entry holding the database connection string.
var Default = Entry{Service: constants.AppName, User: constants.DefaultKeyringUser}

func (e Entry) Get() (string, error) {
	secret, err := keyring.Get(e.Service, e.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return secret, nil
}

func (e Entry) Set(secret string) error {
	if strings.TrimSpace(secret) == "" {
		return errors.New("connection string cannot be empty")
	}
	if err := keyring.Set(e.Service, e.User, secret); err != nil {
		return fmt.Errorf("failed to store connection string in keyring: %w", err)
	}
	return nil
}

func (e Entry) Delete() error {
	err := keyring.Delete(e.Service, e.User)
	if errors.Is(err, keyring.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to delete connection string from keyring: %w", err)
	}
	return nil
}

// IsAvailable probes the keyring with a read of an unused key.
func IsAvailable() bool {
	_, err := keyring.Get(constants.AppName, "availability-probe")
	return err == nil || errors.Is(err, keyring.ErrNotFound)
}

// Resolve picks the PostgreSQL connection string: an explicit value first,
// then PLATEWISE_DB_CONNECTION, then the keyring entry.
func (e Entry) Resolve(explicit string) (string, Source, error) {
	if explicit != "" {
		return explicit, SourceFlag, nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvConnection)); v != "" {
		return v, SourceEnv, nil
	}
	secret, err := e.Get()
	if err != nil {
		return "", "", err
	}
	return secret, SourceKeyring, nil
}
