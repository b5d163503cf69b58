package errors

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/julianstephens/platewise/internal/logger"
)

// Error kinds surfaced by the recommendation core. Match them with errors.Is.
var (
	// ErrConfiguration marks a malformed or missing meal-plan config or setting.
	ErrConfiguration = errors.New("configuration error")
	// ErrExternalProcess marks a failed classifier subprocess.
	ErrExternalProcess = errors.New("external process error")
	// ErrUnknownOpinion is returned when numerical preferences match no opinion vector.
	ErrUnknownOpinion = errors.New("unknown opinion vector")
	// ErrStore marks any failed read or write against a storage backend.
	ErrStore = errors.New("store error")
	// ErrNotFound is returned by stores for missing records. It always comes wrapped in ErrStore.
	ErrNotFound = errors.New("not found")
)

// Configuration builds an error matching ErrConfiguration.
func Configuration(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Store wraps a backend failure for op so it matches ErrStore.
// Errors already tagged as store errors are returned unchanged.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStore) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", ErrStore, op, err)
}

// NotFound reports a missing record of the given kind.
func NotFound(kind, id string) error {
	return fmt.Errorf("%w: %w: %s %q", ErrStore, ErrNotFound, kind, id)
}

// ProcessError describes a classifier invocation that exited unsuccessfully.
type ProcessError struct {
	Stage    string // "train" or "test"
	ExitCode int    // -1 when the process never started or was killed
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "classifier %s stage failed", e.Stage)
	if e.ExitCode >= 0 {
		fmt.Fprintf(&b, " with exit code %d", e.ExitCode)
	}
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		fmt.Fprintf(&b, ": %s", stderr)
	} else if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ProcessError) Unwrap() error { return e.Err }

// Is makes every ProcessError match ErrExternalProcess.
func (e *ProcessError) Is(target error) bool { return target == ErrExternalProcess }

// ParseWarning is a non-fatal problem with one line of classifier output.
type ParseWarning struct {
	Line   int
	Text   string
	Reason string
}

func (w ParseWarning) Error() string {
	return fmt.Sprintf("line %d: %s: %q", w.Line, w.Reason, w.Text)
}

// Format formats an error message with a consistent "Error: " prefix
func Format(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Error: %v", err)
}

// Formatf formats an error message with a consistent "Error: " prefix using a format string
func Formatf(format string, args ...interface{}) string {
	return fmt.Sprintf("Error: "+format, args...)
}

// Fatal logs an error and exits the program with exit code 1
func Fatal(err error) {
	if err != nil {
		logger.Error("Command execution failed", "error", err)
		fmt.Fprintf(os.Stderr, "%s\n", Format(err))
		os.Exit(1)
	}
}

// Fatalf logs and formats an error message, then exits the program with exit code 1
func Fatalf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	logger.Error("Command execution failed", "error", msg)
	fmt.Fprintf(os.Stderr, "%s\n", Formatf(format, args...))
	os.Exit(1)
}
