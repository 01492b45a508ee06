package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

var t0 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

func pending(id, user string, bookedAt time.Time) *model.Reservation {
	return &model.Reservation{
		ID:            id,
		UserID:        user,
		SessionID:     "yoga",
		ScheduledDate: "2026-10-21",
		Status:        model.StatusPending,
		BookedAt:      bookedAt,
	}
}

func TestReservationsConfirmTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewReservations()
	require.NoError(t, s.Create(ctx, pending("r1", "u1", t0)))

	require.NoError(t, s.MarkConfirmed(ctx, "r1", t0.Add(time.Minute)))
	assert.ErrorIs(t, s.MarkConfirmed(ctx, "r1", t0.Add(2*time.Minute)), repository.ErrAlreadyConfirmed)
	assert.ErrorIs(t, s.MarkConfirmed(ctx, "missing", t0), repository.ErrReservationNotFound)

	got, err := s.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	require.NotNil(t, got.PaidAt)
	assert.Equal(t, t0.Add(time.Minute), *got.PaidAt)

	ok, err := s.HasConfirmed(ctx, "u1", "yoga", "2026-10-21")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReservationsRejectSecondConfirmed(t *testing.T) {
	ctx := context.Background()
	s := NewReservations()
	require.NoError(t, s.Create(ctx, pending("r1", "u1", t0)))
	require.NoError(t, s.Create(ctx, pending("r2", "u1", t0.Add(time.Second))))

	require.NoError(t, s.MarkConfirmed(ctx, "r1", t0))
	assert.ErrorIs(t, s.MarkConfirmed(ctx, "r2", t0), repository.ErrDuplicateConfirmed)

	got, _ := s.Get(ctx, "r2")
	assert.Equal(t, model.StatusPending, got.Status)
	assert.Nil(t, got.PaidAt)
}

func TestReservationsCancelAndExpire(t *testing.T) {
	ctx := context.Background()
	s := NewReservations()
	require.NoError(t, s.Create(ctx, pending("r1", "u1", t0)))
	require.NoError(t, s.Create(ctx, pending("r2", "u1", t0)))

	require.NoError(t, s.MarkCancelled(ctx, "r1", t0.Add(time.Hour)))
	require.NoError(t, s.MarkCancelled(ctx, "r1", t0.Add(2*time.Hour)))
	got, _ := s.Get(ctx, "r1")
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, t0.Add(time.Hour), *got.CancelledAt, "first cancellation time is kept")
	assert.ErrorIs(t, s.MarkConfirmed(ctx, "r1", t0), repository.ErrReservationCancelled)

	require.NoError(t, s.MarkConfirmed(ctx, "r2", t0))
	assert.ErrorIs(t, s.MarkExpired(ctx, "r2", t0), repository.ErrNotPending)
	assert.ErrorIs(t, s.MarkExpired(ctx, "nope", t0), repository.ErrReservationNotFound)
	assert.ErrorIs(t, s.MarkCancelled(ctx, "nope", t0), repository.ErrReservationNotFound)
}

func TestReservationsListing(t *testing.T) {
	ctx := context.Background()
	s := NewReservations()
	require.NoError(t, s.Create(ctx, pending("old", "u1", t0)))
	require.NoError(t, s.Create(ctx, pending("mid", "u1", t0.Add(10*time.Minute))))
	require.NoError(t, s.Create(ctx, pending("new", "u2", t0.Add(40*time.Minute))))
	require.NoError(t, s.MarkConfirmed(ctx, "mid", t0))

	mine, err := s.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "mid", mine[0].ID)
	assert.Equal(t, "old", mine[1].ID)

	stale, err := s.ListStalePending(ctx, t0.Add(45*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, []string{"old", "new"}, []string{stale[0].ID, stale[1].ID})

	stale, _ = s.ListStalePending(ctx, t0.Add(45*time.Minute), 1)
	assert.Len(t, stale, 1)

	require.NoError(t, s.AttachCheckout(ctx, "old", "cs_test_1"))
	got, _ := s.Get(ctx, "old")
	assert.Equal(t, "cs_test_1", got.CheckoutID)

	require.NoError(t, s.Delete(ctx, "old"))
	assert.ErrorIs(t, s.Delete(ctx, "old"), repository.ErrReservationNotFound)
	_, err = s.Get(ctx, "old")
	assert.ErrorIs(t, err, repository.ErrReservationNotFound)
}
