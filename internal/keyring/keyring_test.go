package keyring

import (
	"errors"
	"testing"

	gokeyring "github.com/zalando/go-keyring"
)

func TestEntryLifecycle(t *testing.T) {
	gokeyring.MockInit()
	e := Entry{Service: "platewise-test", User: "db"}
	dsn := "postgres://chef@localhost:5432/meals?sslmode=disable"

	if _, err := e.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() on empty keyring error = %v, want %v", err, ErrNotFound)
	}
	if err := e.Set("   "); err == nil {
		t.Error("Set() with a blank value should fail")
	}
	if err := e.Set(dsn); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, err := e.Get()
	if err != nil || got != dsn {
		t.Fatalf("Get() = %q, %v, want %q", got, err, dsn)
	}
	if err := e.Delete(); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := e.Delete(); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
}

func TestResolve(t *testing.T) {
	gokeyring.MockInit()
	e := Entry{Service: "platewise-test", User: "resolve"}
	stored := "postgres://stored@localhost/meals"
	if err := e.Set(stored); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	tests := []struct {
		name       string
		explicit   string
		env        string
		want       string
		wantSource Source
	}{
		{"explicit wins", "postgres://flag@localhost/meals", "postgres://env@localhost/meals", "postgres://flag@localhost/meals", SourceFlag},
		{"env before keyring", "", "postgres://env@localhost/meals", "postgres://env@localhost/meals", SourceEnv},
		{"keyring fallback", "", "", stored, SourceKeyring},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConnection, tt.env)
			got, source, err := e.Resolve(tt.explicit)
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got != tt.want || source != tt.wantSource {
				t.Errorf("Resolve() = %q, %q, want %q, %q", got, source, tt.want, tt.wantSource)
			}
		})
	}
}

func TestIsAvailableWithMock(t *testing.T) {
	gokeyring.MockInit()
	if !IsAvailable() {
		t.Error("IsAvailable() = false with the mock keyring")
	}
}
