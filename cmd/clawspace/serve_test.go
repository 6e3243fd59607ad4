package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateServeConfig(t *testing.T) {
	tests := []struct {
		name          string
		mutate        func(*ServeConfig)
		expectedError string
	}{
		{
			name:   "defaults",
			mutate: func(*ServeConfig) {},
		},
		{
			name:          "zero max age",
			mutate:        func(c *ServeConfig) { c.MaxAge = 0 },
			expectedError: "max age must be positive, got 0s",
		},
		{
			name:          "negative sweep interval",
			mutate:        func(c *ServeConfig) { c.SweepInterval = -time.Minute },
			expectedError: "sweep interval must be positive, got -1m0s",
		},
		{
			name:          "zero metrics interval",
			mutate:        func(c *ServeConfig) { c.MetricsInterval = 0 },
			expectedError: "metrics interval must be positive, got 0s",
		},
		{
			name:          "zero watch delay",
			mutate:        func(c *ServeConfig) { c.WatchDelay = 0 },
			expectedError: "watch delay must be positive, got 0s",
		},
		{
			name: "zero watch delay without watching",
			mutate: func(c *ServeConfig) {
				c.Watch = false
				c.WatchDelay = 0
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewServeConfig()
			tt.mutate(config)

			err := validateServeConfig(config)
			if tt.expectedError != "" {
				assert.EqualError(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetServeConfigFromFlags(t *testing.T) {
	withViper(t, map[string]any{"sweep.interval": "15m"})

	require.NoError(t, serveCmd.Flags().Set("max-age", "48h"))
	require.NoError(t, serveCmd.Flags().Set("watch", "false"))
	t.Cleanup(func() {
		serveCmd.Flags().Set("max-age", "0s")
		serveCmd.Flags().Set("watch", "true")
		serveCmd.Flags().Lookup("max-age").Changed = false
		serveCmd.Flags().Lookup("watch").Changed = false
	})

	config, err := getServeConfigFromFlags(serveCmd)
	require.NoError(t, err)

	assert.Equal(t, 48*time.Hour, config.MaxAge)
	assert.Equal(t, 15*time.Minute, config.SweepInterval)
	assert.Equal(t, time.Minute, config.MetricsInterval)
	assert.False(t, config.Watch)
	assert.Equal(t, 2*time.Second, config.WatchDelay)
}
