// Package calendar integrates LeadPipe with an external calendar for
// availability lookups and meeting creation.
package calendar

import (
	"context"
	"time"
)

// Interval is a busy time range on the calendar.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Event describes a meeting to be created.
type Event struct {
	Title         string
	Description   string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	AttendeePhone string
}

// Confirmation is the provider's record of a created meeting.
type Confirmation struct {
	EventID      string
	MeetLink     string
	CalendarLink string
	Start        time.Time
	End          time.Time
}

// Service exposes the calendar operations the scheduling flow needs.
type Service interface {
	// BusyIntervals lists busy ranges between from and to.
	BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error)
	// Book creates a meeting and returns the provider confirmation.
	Book(ctx context.Context, event Event) (*Confirmation, error)
}

// Overlaps reports whether the interval intersects [start, end).
func (iv Interval) Overlaps(start, end time.Time) bool {
	return start.Before(iv.End) && end.After(iv.Start)
}
