package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/logger"
)

type ctxKey struct{}

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output carries service name", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New("billing", logger.WithOutput(&buf))
		log.Info("cycle rolled", slog.String("plan", "starter"))

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "billing", rec["service"])
		assert.Equal(t, "starter", rec["plan"])
		assert.Equal(t, "cycle rolled", rec["msg"])
	})

	t.Run("level filters records", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New("billing", logger.WithOutput(&buf), logger.WithLevel(slog.LevelWarn))
		log.Info("dropped")
		log.Warn("kept")
		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("context values are extracted per record", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		log := logger.New("billing",
			logger.WithOutput(&buf),
			logger.WithContextValue("request_id", ctxKey{}))

		ctx := context.WithValue(context.Background(), ctxKey{}, "req-42")
		log.InfoContext(ctx, "handled")

		var rec map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
		assert.Equal(t, "req-42", rec["request_id"])
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()
		assert.Panics(t, func() {
			logger.New("billing", logger.WithFormat(logger.Format("yaml")))
		})
	})
}

func TestAttrs(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.Attr{}, logger.Error(nil))
	assert.Equal(t, "error", logger.Error(errors.New("boom")).Key)
	assert.Equal(t, slog.Attr{}, logger.TenantID(nil))
	assert.Equal(t, "tenant_id", logger.TenantID("t-1").Key)
	assert.Equal(t, "plan", logger.Plan("pro").Key)
	assert.Equal(t, "event_id", logger.EventID("evt_1").Key)
}
