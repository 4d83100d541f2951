package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
		check   func(t *testing.T, cfg *Config)
	}{
		{
			name: "defaults",
			env:  map[string]string{"DATABASE_URI": "postgres://localhost/pharmasync"},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsLocal())
				assert.Equal(t, ":8080", cfg.Server.RunAddress)
				assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
				assert.Empty(t, cfg.Server.APIToken)
			},
		},
		{
			name: "prod with token",
			env: map[string]string{
				"APP_ENV":          "prod",
				"DATABASE_URI":     "postgres://db/pharmasync",
				"API_TOKEN":        "secret",
				"RUN_ADDRESS":      ":9000",
				"SHUTDOWN_TIMEOUT": "3s",
			},
			check: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.IsProd())
				assert.Equal(t, ":9000", cfg.Server.RunAddress)
				assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
				assert.Equal(t, "secret", cfg.Server.APIToken)
			},
		},
		{
			name:    "missing database",
			env:     map[string]string{},
			wantErr: "database_uri must not be empty",
		},
		{
			name:    "prod without token",
			env:     map[string]string{"APP_ENV": "prod", "DATABASE_URI": "postgres://db/pharmasync"},
			wantErr: "api_token is required in prod",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for _, k := range []string{"APP_ENV", "DATABASE_URI", "API_TOKEN", "RUN_ADDRESS", "SHUTDOWN_TIMEOUT"} {
				t.Setenv(k, "")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}
