package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/audit"
)

func TestLogger(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	t.Run("records success with options applied", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage, audit.WithClock(clock))

		err := log.Log(context.Background(), "billing.upgrade",
			audit.WithTenant("tenant-1"),
			audit.WithResource("subscription", "sub_123"),
			audit.WithMetadata("from_plan", "starter"),
			audit.WithMetadata("to_plan", "pro"),
		)
		require.NoError(t, err)

		events := storage.Events()
		require.Len(t, events, 1)
		event := events[0]
		assert.NotEmpty(t, event.ID)
		assert.Equal(t, "billing.upgrade", event.Action)
		assert.Equal(t, audit.ResultSuccess, event.Result)
		assert.Equal(t, "tenant-1", event.TenantID)
		assert.Equal(t, "subscription", event.Resource)
		assert.Equal(t, "sub_123", event.ResourceID)
		assert.Equal(t, "starter", event.Metadata["from_plan"])
		assert.Equal(t, "pro", event.Metadata["to_plan"])
		assert.Equal(t, now, event.CreatedAt)
	})

	t.Run("records error with cause message", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage, audit.WithClock(clock))

		err := log.LogError(context.Background(), "billing.upgrade", errors.New("provider unavailable"),
			audit.WithTenant("tenant-1"))
		require.NoError(t, err)

		events := storage.Events()
		require.Len(t, events, 1)
		assert.Equal(t, audit.ResultError, events[0].Result)
		assert.Equal(t, "provider unavailable", events[0].Error)
	})

	t.Run("rejects event without action", func(t *testing.T) {
		t.Parallel()

		storage := audit.NewMemoryStorage()
		log := audit.NewLogger(storage)

		err := log.Log(context.Background(), "")
		assert.ErrorIs(t, err, audit.ErrEventValidation)
		assert.Empty(t, storage.Events())
	})

	t.Run("panics on nil storage", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() { audit.NewLogger(nil) })
	})
}

func TestNop(t *testing.T) {
	t.Parallel()

	nop := audit.Nop()
	assert.NoError(t, nop.Log(context.Background(), "anything"))
	assert.NoError(t, nop.LogError(context.Background(), "anything", errors.New("ignored")))
}
