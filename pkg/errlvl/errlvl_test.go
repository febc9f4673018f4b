package errlvl

import (
	"errors"
	"fmt"
	"log/slog"
	"testing"
)

func TestWrap(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		level     Lvl
		wantLevel ErrorLevel
	}{
		{
			name:      "plain error",
			err:       errors.New("feed unavailable"),
			level:     INFO,
			wantLevel: ErrInfo,
		},
		{
			name:      "joined errors",
			err:       errors.Join(errors.New("json-direct"), errors.New("json-discovered")),
			level:     WARN,
			wantLevel: ErrWarn,
		},
		{
			name:      "unknown level falls back to error",
			err:       errors.New("boom"),
			level:     Lvl(42),
			wantLevel: ErrError,
		},
		{
			name:      "existing level is kept",
			err:       fmt.Errorf("%w %w", ErrWarn, errors.New("empty message")),
			level:     FATAL,
			wantLevel: ErrWarn,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Wrap(tt.err, tt.level)
			if !errors.Is(err, tt.wantLevel) {
				t.Errorf("Wrap() wrong error level = %v, want %v", err, tt.wantLevel)
			}
			if !errors.Is(err, tt.err) {
				t.Errorf("Wrap() original error not wrapped = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Lvl
	}{
		{"nil", nil, 0},
		{"no level", errors.New("test"), 0},
		{"debug", Wrap(errors.New("test"), DEBUG), DEBUG},
		{"error", Wrap(errors.New("test"), ERROR), ERROR},
		{"wrapped deeper", fmt.Errorf("calendar: %w", Wrap(errors.New("test"), WARN)), WARN},
		{
			name: "most severe wins",
			err:  errors.Join(Wrap(errors.New("a"), INFO), Wrap(errors.New("b"), FATAL)),
			want: FATAL,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Of(tt.err); got != tt.want {
				t.Errorf("Of() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLvl_SlogLevel(t *testing.T) {
	tests := []struct {
		lvl  Lvl
		want slog.Level
	}{
		{DEBUG, slog.LevelDebug},
		{INFO, slog.LevelInfo},
		{WARN, slog.LevelWarn},
		{ERROR, slog.LevelError},
		{FATAL, slog.LevelError},
		{0, slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.lvl.String(), func(t *testing.T) {
			if got := tt.lvl.SlogLevel(); got != tt.want {
				t.Errorf("SlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func Test_hasLevel(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"info level", fmt.Errorf("%w %w", ErrInfo, errors.New("test")), true},
		{"warn level", fmt.Errorf("%w %w", ErrWarn, errors.New("test")), true},
		{"error level", fmt.Errorf("%w %w", ErrError, errors.New("test")), true},
		{"debug level", fmt.Errorf("%w %w", ErrDebug, errors.New("test")), true},
		{"fatal level", fmt.Errorf("%w %w", ErrFatal, errors.New("test")), true},
		{"without level", errors.New("test"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := hasLevel(tt.err); got != tt.want {
				t.Errorf("hasLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}
