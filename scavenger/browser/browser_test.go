package browser

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderer_allocatorOptions(t *testing.T) {
	base := len(chromedp.DefaultExecAllocatorOptions)

	r := NewRenderer("")
	assert.Greater(t, len(r.allocatorOptions()), base)

	withPath := NewRenderer("/usr/bin/chromium")
	assert.Len(t, withPath.allocatorOptions(), len(r.allocatorOptions())+1)
}

func TestRenderer_RenderPage_cancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewRenderer("")
	got, err := r.RenderPage(ctx, "https://example.com", "table", time.Second)
	require.Error(t, err)
	assert.Empty(t, got)
}

func TestRenderer_RenderPage_browserNotStarted(t *testing.T) {
	dir := t.TempDir()
	notBinary := filepath.Join(dir, "not-a-binary")
	require.NoError(t, os.WriteFile(notBinary, []byte("not a binary"), 0o600))
	exitsAtOnce := filepath.Join(dir, "exits-at-once")
	require.NoError(t, os.WriteFile(exitsAtOnce, []byte("#!/bin/sh\nexit 1\n"), 0o700))

	tests := []struct {
		name     string
		execPath string
	}{
		{"exec path is not executable", notBinary},
		{"exec path is not a browser", exitsAtOnce},
		{"exec path does not exist", filepath.Join(dir, "missing")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			type result struct {
				markup string
				err    error
			}
			done := make(chan result, 1)
			go func() {
				markup, err := NewRenderer(tt.execPath).RenderPage(context.Background(), "https://example.com", "table", 2*time.Second)
				done <- result{markup, err}
			}()

			select {
			case got := <-done:
				require.Error(t, got.err)
				assert.Empty(t, got.markup)
			case <-time.After(10 * time.Second):
				t.Fatal("RenderPage() did not return after its timeout")
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "chrome")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o700))

	assert.True(t, Available(bin))
	assert.False(t, Available(filepath.Join(dir, "missing")))

	plain := filepath.Join(t.TempDir(), "chrome")
	require.NoError(t, os.WriteFile(plain, []byte("not a binary"), 0o600))
	assert.False(t, Available(plain))
	assert.False(t, Available(dir))

	t.Setenv("PATH", dir)
	assert.True(t, Available(""))

	t.Setenv("PATH", t.TempDir())
	assert.False(t, Available(""))
}
