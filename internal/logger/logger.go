package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/julianstephens/platewise/internal/constants"
)

// Logger is the process-wide logger. It stays nil until Init runs, and the
// package helpers are no-ops until then.
var Logger *log.Logger

// Log file rotation.
const (
	maxSizeMB  = 10
	maxBackups = 3
	maxAgeDays = 28
)

type Config struct {
	Debug     bool
	ConfigDir string
	// Level overrides the default level ("debug", "info", "warn", "error").
	// Ignored when Debug is set.
	Level string
}

func (c Config) level() (log.Level, error) {
	switch {
	case c.Debug:
		return log.DebugLevel, nil
	case c.Level == "":
		return log.WarnLevel, nil
	}
	lvl, err := log.ParseLevel(c.Level)
	if err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	return lvl, nil
}

// Init writes logs to <ConfigDir>/logs/platewise.log, and to stderr as well
// in debug mode.
func Init(cfg Config) error {
	level, err := cfg.level()
	if err != nil {
		return err
	}

	dir := filepath.Join(cfg.ConfigDir, "logs")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	var out io.Writer = &lumberjack.Logger{
		Filename:   filepath.Join(dir, constants.AppName+".log"),
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   true,
	}
	if cfg.Debug {
		out = io.MultiWriter(os.Stderr, out)
	}

	Logger = log.NewWithOptions(out, log.Options{
		ReportCaller:    cfg.Debug,
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Level:           level,
		Prefix:          constants.AppName,
	})
	return nil
}

// With returns a child logger carrying keyvals on every line. Before Init it
// discards everything.
func With(keyvals ...any) *log.Logger {
	if Logger == nil {
		return log.New(io.Discard)
	}
	return Logger.With(keyvals...)
}

// Timed logs msg at debug level with the elapsed time since start.
// Use as: defer logger.Timed("train", time.Now(), "trial", id)
func Timed(msg string, start time.Time, keyvals ...any) {
	Debug(msg, append(keyvals, "elapsed", time.Since(start).Round(time.Millisecond))...)
}

func Debug(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Debug(msg, keyvals...)
	}
}

func Info(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Info(msg, keyvals...)
	}
}

func Warn(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Warn(msg, keyvals...)
	}
}

func Error(msg string, keyvals ...any) {
	if Logger != nil {
		Logger.Error(msg, keyvals...)
	}
}
