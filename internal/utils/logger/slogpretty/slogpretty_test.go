package slogpretty

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"
)

func TestHandler(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := slog.New(Options{Level: slog.LevelInfo}.NewHandler(&buf)).With("component", "sync")

	log.Debug("hidden")
	assert.Empty(t, buf.String())

	log.Warn("change not synced", "seq", 7, "error", errors.New("boom"))
	out := buf.String()
	assert.Contains(t, out, "WARN:")
	assert.Contains(t, out, "change not synced")
	assert.Contains(t, out, `"component": "sync"`)
	assert.Contains(t, out, `"error": "boom"`)
	assert.Contains(t, out, `"seq": 7`)
}

func TestHandler_Group(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	log := slog.New(Options{}.NewHandler(&buf)).WithGroup("http")
	log.Info("request", "status", 200)

	assert.Contains(t, buf.String(), `"http.status": 200`)
}
