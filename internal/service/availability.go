package service

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/iliyamo/wellness-session-booking/internal/model"
	"github.com/iliyamo/wellness-session-booking/internal/repository"
)

// UpcomingDates yields, in order, every calendar date from today onward on
// which s recurs.  Dates are midnight in loc.  Today is included only while
// now is before the session's start time.  The sequence is unbounded unless
// the session has no recurring days, and each range over it starts again
// from now.
func UpcomingDates(s model.Session, now time.Time, loc *time.Location) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		if len(s.RecurringDays) == 0 {
			return
		}
		local := now.In(loc)
		y, m, d := local.Date()
		day := time.Date(y, m, d, 0, 0, 0, 0, loc)

		if s.RunsOn(day.Weekday()) {
			start, err := s.StartOn(day)
			if err == nil && local.Before(start) {
				if !yield(day) {
					return
				}
			}
		}
		for {
			day = day.AddDate(0, 0, 1)
			if s.RunsOn(day.Weekday()) && !yield(day) {
				return
			}
		}
	}
}

// Projector turns recurring templates into the concrete dates that can be
// booked and makes sure each has a ledger entry.
type Projector struct {
	ledger Ledger
	window int
	loc    *time.Location
	now    func() time.Time
}

// NewProjector returns a projector exposing window upcoming occurrences of
// each session.
func NewProjector(ledger Ledger, window int, loc *time.Location, now func() time.Time) *Projector {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Projector{ledger: ledger, window: window, loc: loc, now: now}
}

// Location is the zone session times are read in.
func (p *Projector) Location() *time.Location { return p.loc }

// Dates returns the bookable dates of s without touching the ledger.
func (p *Projector) Dates(s model.Session) []time.Time {
	dates := make([]time.Time, 0, p.window)
	if p.window <= 0 {
		return dates
	}
	for d := range UpcomingDates(s, p.now(), p.loc) {
		dates = append(dates, d)
		if len(dates) == p.window {
			break
		}
	}
	return dates
}

// Project returns the bookable dates of s and ensures a ledger entry with
// the session's capacity exists for each of them.
func (p *Projector) Project(ctx context.Context, s model.Session) ([]time.Time, error) {
	dates := p.Dates(s)
	for _, d := range dates {
		if err := p.ledger.Ensure(ctx, s.ID, model.DateKey(d), s.Capacity); err != nil {
			return nil, fmt.Errorf("ensure slot %s/%s: %w", s.ID, model.DateKey(d), err)
		}
	}
	return dates, nil
}

// Availability reports remaining seats for every bookable date of s.  A
// slot that has no ledger entry yet counts as fully available.
func (p *Projector) Availability(ctx context.Context, s model.Session) ([]model.SlotAvailability, error) {
	dates, err := p.Project(ctx, s)
	if err != nil {
		return nil, err
	}
	out := make([]model.SlotAvailability, 0, len(dates))
	for _, d := range dates {
		key := model.DateKey(d)
		remaining, err := p.ledger.Remaining(ctx, s.ID, key)
		if errors.Is(err, repository.ErrSlotNotFound) {
			remaining = s.Capacity
		} else if err != nil {
			return nil, fmt.Errorf("remaining for %s/%s: %w", s.ID, key, err)
		}
		startsAt, err := s.StartOn(d)
		if err != nil {
			return nil, err
		}
		out = append(out, model.SlotAvailability{
			DateKey:   key,
			StartsAt:  startsAt,
			Remaining: remaining,
			Capacity:  s.Capacity,
		})
	}
	return out, nil
}

// bookable reports whether dateKey is one of the projected dates.
func bookable(dates []time.Time, dateKey string) bool {
	return slices.ContainsFunc(dates, func(d time.Time) bool { return model.DateKey(d) == dateKey })
}
