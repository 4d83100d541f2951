package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/exp/slog"

	"pharmasync/internal/app/server/config"
	"pharmasync/internal/utils/logger/slogpretty"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		env       string
		debug     bool
		wantPlain bool
	}{
		{env: config.EnvLocal, debug: true},
		{env: "", debug: true},
		{env: config.EnvDev, debug: true, wantPlain: true},
		{env: config.EnvProd, debug: false, wantPlain: true},
		{env: "staging", debug: false, wantPlain: true},
	}

	for _, tt := range tests {
		t.Run("env="+tt.env, func(t *testing.T) {
			log := New(tt.env)
			assert.Equal(t, tt.debug, log.Enabled(ctx, slog.LevelDebug))
			assert.True(t, log.Enabled(ctx, slog.LevelInfo))

			_, pretty := log.Handler().(*slogpretty.Handler)
			assert.Equal(t, !tt.wantPlain, pretty)
		})
	}
}

func TestNewWithLevel(t *testing.T) {
	ctx := context.Background()

	quiet := NewWithLevel(config.EnvLocal, slog.LevelWarn)
	assert.False(t, quiet.Enabled(ctx, slog.LevelInfo))
	assert.True(t, quiet.Enabled(ctx, slog.LevelWarn))

	verbose := NewWithLevel(config.EnvProd, slog.LevelDebug)
	assert.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}
