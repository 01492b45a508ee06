package model

import "time"

// User is the local projection of an identity-provider account.  Only the
// contact address is needed here, to send booking confirmations.
type User struct {
	ID          string    // users.id, equal to the JWT subject
	Email       string    // users.email
	DisplayName string    // users.display_name
	CreatedAt   time.Time // users.created_at
}
