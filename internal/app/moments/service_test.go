package moments_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/mirror-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/mirror-agent/internal/app/moments"
	"github.com/PabloGalante/mirror-agent/internal/domain"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T, store *memory.MomentStore, userID domain.UserID, n int) {
	t.Helper()
	for i := range n {
		require.NoError(t, store.SaveMirrorMoment(context.Background(), &domain.MirrorMoment{
			ID:                domain.MomentID(fmt.Sprintf("%s-%02d", userID, i)),
			UserID:            userID,
			TriggeredAt:       base.Add(time.Duration(i) * time.Minute),
			MomentType:        domain.ChangeArchetypeShift,
			SignificanceScore: 0.9,
		}))
	}
}

func TestListDefaultsAndCap(t *testing.T) {
	store := memory.NewMomentStore()
	seed(t, store, "u1", 60)
	svc := moments.NewService(store)

	got, err := svc.List(context.Background(), "u1", 0, false)
	require.NoError(t, err)
	assert.Len(t, got, moments.DefaultLimit)
	assert.Equal(t, domain.MomentID("u1-59"), got[0].ID)

	got, err = svc.List(context.Background(), "u1", 500, false)
	require.NoError(t, err)
	assert.Len(t, got, moments.MaxLimit)
}

func TestListEmpty(t *testing.T) {
	svc := moments.NewService(memory.NewMomentStore())

	got, err := svc.List(context.Background(), "nobody", 5, false)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	_, err = svc.List(context.Background(), "", 5, false)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestAcknowledge(t *testing.T) {
	store := memory.NewMomentStore()
	seed(t, store, "u1", 2)
	seed(t, store, "u2", 1)
	ackAt := base.Add(time.Hour)
	svc := moments.NewService(store).WithClock(func() time.Time { return ackAt })
	ctx := context.Background()

	require.NoError(t, svc.Acknowledge(ctx, "u1", "u1-00"))

	acked, err := svc.List(ctx, "u1", 10, true)
	require.NoError(t, err)
	require.Len(t, acked, 1)
	assert.True(t, acked[0].Acknowledged)
	require.NotNil(t, acked[0].AcknowledgedAt)
	assert.True(t, acked[0].AcknowledgedAt.Equal(ackAt))

	assert.ErrorIs(t, svc.Acknowledge(ctx, "u1", "u1-00"), domain.ErrNotFound, "already acknowledged")
	assert.ErrorIs(t, svc.Acknowledge(ctx, "u1", "u2-00"), domain.ErrNotFound, "other user's moment")
	assert.ErrorIs(t, svc.Acknowledge(ctx, "u1", "missing"), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Acknowledge(ctx, "u1", ""), domain.ErrInvalidInput)
}
