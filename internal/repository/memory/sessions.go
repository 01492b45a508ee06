package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// Sessions is an in-memory session catalogue.
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]model.Session
}

// NewSessions returns a catalogue holding the given templates.
func NewSessions(sessions ...model.Session) *Sessions {
	s := &Sessions{byID: map[string]model.Session{}}
	for _, sess := range sessions {
		s.byID[sess.ID] = sess
	}
	return s
}

// Put adds or replaces a template.
func (s *Sessions) Put(sess model.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[sess.ID] = sess
}

func (s *Sessions) Get(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return model.Session{}, repository.ErrSessionNotFound
	}
	return sess, nil
}

func (s *Sessions) List(_ context.Context) ([]model.Session, error) {
	s.mu.RLock()
	out := make([]model.Session, 0, len(s.byID))
	for _, sess := range s.byID {
		out = append(out, sess)
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b model.Session) int {
		if c := strings.Compare(a.Title, b.Title); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out, nil
}
