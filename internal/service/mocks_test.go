package service

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/iliyamo/wellness-session-booking/internal/mail"
	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/payment"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
	"github.com/iliyamo/wellness-session-booking/internal/repository/memory"
)

type mockGateway struct{ mock.Mock }

func (m *mockGateway) CreateCheckout(ctx context.Context, req payment.CheckoutRequest) (payment.Checkout, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(payment.Checkout), args.Error(1)
}

func (m *mockGateway) ExpireCheckout(ctx context.Context, checkoutID string) error {
	return m.Called(ctx, checkoutID).Error(0)
}

type mockSender struct{ mock.Mock }

func (m *mockSender) SendBookingConfirmation(ctx context.Context, address string, d mail.BookingDetails) bool {
	return m.Called(ctx, address, d).Bool(0)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) Verify(payload []byte, signature string) (payment.Event, error) {
	args := m.Called(payload, signature)
	ev, _ := args.Get(0).(payment.Event)
	return ev, args.Error(1)
}

// conflictingLedger fails TryReserve and Release with ErrTxConflict a fixed
// number of times before delegating.
type conflictingLedger struct {
	*memory.Ledger
	mu        sync.Mutex
	conflicts int
	calls     int
}

func (l *conflictingLedger) conflict() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.conflicts > 0 {
		l.conflicts--
		return true
	}
	return false
}

func (l *conflictingLedger) TryReserve(ctx context.Context, sessionID, dateKey, userID, reservationID string) error {
	if l.conflict() {
		return repository.ErrTxConflict
	}
	return l.Ledger.TryReserve(ctx, sessionID, dateKey, userID, reservationID)
}

// failingReservations fails selected writes.
type failingReservations struct {
	*memory.Reservations
	createErr error
	attachErr error
	cancelErr error
}

func (s *failingReservations) Create(ctx context.Context, res *model.Reservation) error {
	if s.createErr != nil {
		return s.createErr
	}
	return s.Reservations.Create(ctx, res)
}

func (s *failingReservations) AttachCheckout(ctx context.Context, id, checkoutID string) error {
	if s.attachErr != nil {
		return s.attachErr
	}
	return s.Reservations.AttachCheckout(ctx, id, checkoutID)
}

func (s *failingReservations) MarkCancelled(ctx context.Context, id string, at time.Time) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	return s.Reservations.MarkCancelled(ctx, id, at)
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}
