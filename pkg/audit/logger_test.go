package audit_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/saasbilling/pkg/audit"
)

type ctxKey struct{}

func actorFromCtx(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok
}

func TestLogger_Log(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := audit.NewLogger(storage,
		audit.WithActorExtractor(actorFromCtx),
		audit.WithClock(func() time.Time { return fixed }),
	)

	ctx := context.WithValue(context.Background(), ctxKey{}, "admin-1")
	before := map[string]any{"name": "Pro"}
	after := map[string]any{"name": "Pro Plus"}
	require.NoError(t, l.Log(ctx, "plan.updated",
		audit.WithResource("plan", "p-1"),
		audit.WithChange(before, after),
	))

	events, err := l.Find(context.Background(), audit.Criteria{Resource: "plan"})
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "admin-1", e.ActorID)
	assert.Equal(t, "plan.updated", e.Action)
	assert.Equal(t, "p-1", e.ResourceID)
	assert.Equal(t, audit.ResultSuccess, e.Result)
	assert.Equal(t, fixed, e.CreatedAt)
	assert.Equal(t, before, e.Metadata["before"])
	assert.Equal(t, after, e.Metadata["after"])
}

func TestLogger_LogError(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	l := audit.NewLogger(storage)

	require.NoError(t, l.LogError(context.Background(), "plan.sync", errors.New("stripe down"), audit.WithActor("system")))

	events, err := storage.Query(context.Background(), audit.Criteria{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.ResultError, events[0].Result)
	assert.Equal(t, "stripe down", events[0].Error)
	assert.Equal(t, "system", events[0].ActorID)
}

func TestLogger_Validation(t *testing.T) {
	t.Parallel()

	l := audit.NewLogger(audit.NewMemoryStorage())
	assert.ErrorIs(t, l.Log(context.Background(), ""), audit.ErrEventValidation)
	assert.Panics(t, func() { audit.NewLogger(nil) })
}

func TestMemoryStorage_Query(t *testing.T) {
	t.Parallel()

	storage := audit.NewMemoryStorage()
	for _, action := range []string{"a", "b", "a", "a"} {
		require.NoError(t, storage.Store(context.Background(), audit.Event{Action: action}))
	}

	all, err := storage.Query(context.Background(), audit.Criteria{Action: "a"})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := storage.Query(context.Background(), audit.Criteria{Action: "a", Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, page, 1)

	empty, err := storage.Query(context.Background(), audit.Criteria{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)
}
