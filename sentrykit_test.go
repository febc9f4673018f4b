package main

import (
	"bytes"
	"errors"
	"testing"

	"github.com/samgozman/fin-calendar/pkg/errlvl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentryKit_CaptureError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantLevel string
	}{
		{"plain error", errors.New("boom"), "level=ERROR"},
		{"warn level", errlvl.Wrap(errors.New("empty message"), errlvl.WARN), "level=WARN"},
		{"info level", errlvl.Wrap(errors.New("nothing to publish"), errlvl.INFO), "level=INFO"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			kit, err := NewSentryKit("", version, newLogger(&buf, "debug", "text"))
			require.NoError(t, err)

			kit.CaptureError("testError", "[test] Capture", tt.err)
			assert.Contains(t, buf.String(), tt.wantLevel)
			assert.Contains(t, buf.String(), "[test] Capture")
		})
	}
}
