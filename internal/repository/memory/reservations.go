package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// Reservations is an in-memory reservation store.
type Reservations struct {
	mu   sync.Mutex
	byID map[string]model.Reservation
}

// NewReservations returns an empty store.
func NewReservations() *Reservations {
	return &Reservations{byID: map[string]model.Reservation{}}
}

func (s *Reservations) Create(_ context.Context, res *model.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[res.ID] = *res
	return nil
}

func (s *Reservations) Get(_ context.Context, id string) (model.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.byID[id]
	if !ok {
		return model.Reservation{}, repository.ErrReservationNotFound
	}
	return res, nil
}

func (s *Reservations) ListByUser(_ context.Context, userID string) ([]model.Reservation, error) {
	return s.filter(func(r model.Reservation) bool { return r.UserID == userID }, func(a, b model.Reservation) int {
		return b.BookedAt.Compare(a.BookedAt)
	}, 0), nil
}

func (s *Reservations) ListStalePending(_ context.Context, before time.Time, limit int) ([]model.Reservation, error) {
	return s.filter(func(r model.Reservation) bool {
		return r.Status == model.StatusPending && r.BookedAt.Before(before)
	}, func(a, b model.Reservation) int {
		return a.BookedAt.Compare(b.BookedAt)
	}, limit), nil
}

func (s *Reservations) HasConfirmed(_ context.Context, userID, sessionID, dateKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.confirmedLocked(userID, sessionID, dateKey, ""), nil
}

func (s *Reservations) AttachCheckout(_ context.Context, id, checkoutID string) error {
	return s.update(id, func(r *model.Reservation) error {
		r.CheckoutID = checkoutID
		return nil
	})
}

func (s *Reservations) MarkConfirmed(_ context.Context, id string, paidAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	switch r.Status {
	case model.StatusConfirmed:
		return repository.ErrAlreadyConfirmed
	case model.StatusCancelled:
		return repository.ErrReservationCancelled
	}
	if s.confirmedLocked(r.UserID, r.SessionID, r.ScheduledDate, r.ID) {
		return repository.ErrDuplicateConfirmed
	}
	r.Status = model.StatusConfirmed
	r.PaidAt = &paidAt
	s.byID[id] = r
	return nil
}

func (s *Reservations) MarkCancelled(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(r *model.Reservation) error {
		r.Status = model.StatusCancelled
		if r.CancelledAt == nil {
			r.CancelledAt = &at
		}
		return nil
	})
}

func (s *Reservations) MarkExpired(_ context.Context, id string, at time.Time) error {
	return s.update(id, func(r *model.Reservation) error {
		if r.Status != model.StatusPending {
			return repository.ErrNotPending
		}
		r.Status = model.StatusCancelled
		r.CancelledAt = &at
		return nil
	})
}

func (s *Reservations) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return repository.ErrReservationNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *Reservations) update(id string, fn func(*model.Reservation) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.byID[id]
	if !ok {
		return repository.ErrReservationNotFound
	}
	if err := fn(&r); err != nil {
		return err
	}
	s.byID[id] = r
	return nil
}

func (s *Reservations) confirmedLocked(userID, sessionID, dateKey, exceptID string) bool {
	for _, r := range s.byID {
		if r.ID != exceptID && r.Status == model.StatusConfirmed &&
			r.UserID == userID && r.SessionID == sessionID && r.ScheduledDate == dateKey {
			return true
		}
	}
	return false
}

func (s *Reservations) filter(keep func(model.Reservation) bool, cmp func(a, b model.Reservation) int, limit int) []model.Reservation {
	s.mu.Lock()
	out := []model.Reservation{}
	for _, r := range s.byID {
		if keep(r) {
			out = append(out, r)
		}
	}
	s.mu.Unlock()

	slices.SortFunc(out, func(a, b model.Reservation) int {
		if c := cmp(a, b); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
