package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/config"
)

type sweepConfig struct {
	Interval  string `env:"TEST_SWEEP_INTERVAL" envDefault:"1h"`
	BatchSize int    `env:"TEST_SWEEP_BATCH" envDefault:"500"`
}

type requiredConfig struct {
	Token string `env:"TEST_REQUIRED_TOKEN,required"`
}

func TestLoad(t *testing.T) {
	t.Run("defaults apply when env is unset", func(t *testing.T) {
		config.Reset()
		var cfg sweepConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "1h", cfg.Interval)
		assert.Equal(t, 500, cfg.BatchSize)
	})

	t.Run("env values override defaults", func(t *testing.T) {
		config.Reset()
		t.Setenv("TEST_SWEEP_INTERVAL", "15m")
		t.Setenv("TEST_SWEEP_BATCH", "50")
		var cfg sweepConfig
		require.NoError(t, config.Load(&cfg))
		assert.Equal(t, "15m", cfg.Interval)
		assert.Equal(t, 50, cfg.BatchSize)
	})

	t.Run("cached copy survives later env changes", func(t *testing.T) {
		config.Reset()
		t.Setenv("TEST_SWEEP_INTERVAL", "30m")
		var first sweepConfig
		require.NoError(t, config.Load(&first))

		t.Setenv("TEST_SWEEP_INTERVAL", "5m")
		var second sweepConfig
		require.NoError(t, config.Load(&second))
		assert.Equal(t, "30m", second.Interval)
	})

	t.Run("missing required value fails", func(t *testing.T) {
		config.Reset()
		var cfg requiredConfig
		assert.ErrorIs(t, config.Load(&cfg), config.ErrParsingConfig)
	})

	t.Run("nil pointer is rejected", func(t *testing.T) {
		assert.ErrorIs(t, config.Load[sweepConfig](nil), config.ErrNilPointer)
	})
}
