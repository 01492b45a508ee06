package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/iliyamo/wellness-session-booking/internal/model"
)

// SessionRepo reads session templates from the sessions table.  Templates
// are managed outside this service so the repository is read-only.
type SessionRepo struct {
	db *sql.DB
}

// NewSessionRepo returns a new SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

const sessionColumns = `id, title, description, price_cents, capacity, start_time, end_time, recurring_days, topic`

// Get returns the session with the given id or ErrSessionNotFound.
func (r *SessionRepo) Get(ctx context.Context, id string) (model.Session, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	return s, err
}

// List returns every session template ordered by title.
func (r *SessionRepo) List(ctx context.Context) ([]model.Session, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY title, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []model.Session{}
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(sc scanner) (model.Session, error) {
	var (
		s     model.Session
		days  string
		topic sql.NullString
	)
	if err := sc.Scan(&s.ID, &s.Title, &s.Description, &s.PriceCents, &s.Capacity,
		&s.StartTime, &s.EndTime, &days, &topic); err != nil {
		return model.Session{}, err
	}
	parsed, err := model.ParseWeekdays(days)
	if err != nil {
		return model.Session{}, fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.RecurringDays = parsed
	if topic.Valid {
		t := topic.String
		s.Topic = &t
	}
	return s, nil
}
