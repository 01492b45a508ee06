package memory

import (
	"context"
	"sync"

	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// Users maps user ids to contact addresses.
type Users struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewUsers() *Users { return &Users{emails: map[string]string{}} }

// Put stores the contact address of a user.
func (u *Users) Put(userID, email string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.emails[userID] = email
}

func (u *Users) ContactEmail(_ context.Context, userID string) (string, error) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	email, ok := u.emails[userID]
	if !ok || email == "" {
		return "", repository.ErrUserNotFound
	}
	return email, nil
}
