package memory

import (
	"context"
	"sync"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

type slotKey struct {
	sessionID string
	dateKey   string
}

type slot struct {
	capacity  int
	remaining int
	occupants map[string]string // reservation id -> user id
	order     []string          // reservation ids in reservation order
}

// Ledger is an in-memory capacity ledger.
type Ledger struct {
	mu    sync.Mutex
	slots map[slotKey]*slot
}

// NewLedger returns an empty Ledger.
func NewLedger() *Ledger { return &Ledger{slots: map[slotKey]*slot{}} }

func (l *Ledger) Ensure(_ context.Context, sessionID, dateKey string, capacity int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	k := slotKey{sessionID, dateKey}
	if _, ok := l.slots[k]; !ok {
		l.slots[k] = &slot{capacity: capacity, remaining: capacity, occupants: map[string]string{}}
	}
	return nil
}

func (l *Ledger) Remaining(_ context.Context, sessionID, dateKey string) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[slotKey{sessionID, dateKey}]
	if !ok {
		return 0, repository.ErrSlotNotFound
	}
	return s.remaining, nil
}

func (l *Ledger) TryReserve(_ context.Context, sessionID, dateKey, userID, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[slotKey{sessionID, dateKey}]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if _, held := s.occupants[reservationID]; held {
		return nil
	}
	if s.remaining <= 0 {
		return repository.ErrCapacityExhausted
	}
	s.remaining--
	s.occupants[reservationID] = userID
	s.order = append(s.order, reservationID)
	return nil
}

func (l *Ledger) Release(_ context.Context, sessionID, dateKey, reservationID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[slotKey{sessionID, dateKey}]
	if !ok {
		return repository.ErrSlotNotFound
	}
	if _, held := s.occupants[reservationID]; !held {
		return nil
	}
	delete(s.occupants, reservationID)
	for i, id := range s.order {
		if id == reservationID {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.remaining = min(s.capacity, s.remaining+1)
	return nil
}

// Slot returns a copy of the ledger entry, occupants in reservation order.
func (l *Ledger) Slot(sessionID, dateKey string) (model.Slot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[slotKey{sessionID, dateKey}]
	if !ok {
		return model.Slot{}, false
	}
	out := model.Slot{
		SessionID: sessionID,
		DateKey:   dateKey,
		Capacity:  s.capacity,
		Remaining: s.remaining,
		Occupants: make([]model.Occupant, 0, len(s.order)),
	}
	for _, id := range s.order {
		out.Occupants = append(out.Occupants, model.Occupant{UserID: s.occupants[id], ReservationID: id})
	}
	return out, true
}
