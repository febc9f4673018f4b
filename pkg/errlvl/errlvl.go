package errlvl

import (
	"errors"
	"fmt"
	"log/slog"
)

// Lvl is the severity attached to errors returned by the calendar packages.
type Lvl uint8

const (
	DEBUG Lvl = iota + 1
	INFO
	WARN
	ERROR
	FATAL
)

// ErrorLevel is a sentinel marking the severity of a wrapped error.
//
// Packages attach one with Wrap, consumers read it back with Of or errors.Is.
type ErrorLevel error

var (
	ErrDebug ErrorLevel = errors.New("[DEBUG]")
	ErrInfo  ErrorLevel = errors.New("[INFO]")
	ErrWarn  ErrorLevel = errors.New("[WARN]")
	ErrError ErrorLevel = errors.New("[ERROR]")
	ErrFatal ErrorLevel = errors.New("[FATAL]")
)

// sentinels is ordered from the most to the least severe, Of returns the first match.
var sentinels = []struct {
	lvl Lvl
	err ErrorLevel
}{
	{FATAL, ErrFatal},
	{ERROR, ErrError},
	{WARN, ErrWarn},
	{INFO, ErrInfo},
	{DEBUG, ErrDebug},
}

// Wrap wraps the given error with the given level.
// An error that already carries a level is returned untouched.
// Unknown levels are treated as ERROR.
func Wrap(err error, level Lvl) error {
	if hasLevel(err) {
		return err
	}
	return fmt.Errorf("%w %w", level.sentinel(), err)
}

// Of returns the most severe level carried by err, or 0 when it has none.
func Of(err error) Lvl {
	if err == nil {
		return 0
	}
	for _, s := range sentinels {
		if errors.Is(err, s.err) {
			return s.lvl
		}
	}
	return 0
}

// String returns the level name as used in log output.
func (l Lvl) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return fmt.Sprintf("Lvl(%d)", uint8(l))
	}
}

// SlogLevel maps the level onto slog. FATAL and unknown levels log as errors.
func (l Lvl) SlogLevel() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case INFO:
		return slog.LevelInfo
	case WARN:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}

func (l Lvl) sentinel() ErrorLevel {
	for _, s := range sentinels {
		if s.lvl == l {
			return s.err
		}
	}
	return ErrError
}

// hasLevel checks if the given error has a level set already.
func hasLevel(err error) bool {
	return Of(err) != 0
}
