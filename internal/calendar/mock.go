package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Mock is an in-memory Service for tests.
type Mock struct {
	mu      sync.Mutex
	Busy    []Interval
	Booked  []Event
	BusyErr error
	BookErr error
}

func NewMock() *Mock {
	return &Mock{}
}

// BusyIntervals returns the configured busy ranges that fall inside the
// window.
func (m *Mock) BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BusyErr != nil {
		return nil, m.BusyErr
	}
	var out []Interval
	for _, iv := range m.Busy {
		if iv.Overlaps(from, to) {
			out = append(out, iv)
		}
	}
	return out, nil
}

// Book records the event and fabricates a confirmation.
func (m *Mock) Book(ctx context.Context, event Event) (*Confirmation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BookErr != nil {
		return nil, m.BookErr
	}
	m.Booked = append(m.Booked, event)
	return &Confirmation{
		EventID:  fmt.Sprintf("mock-event-%d", len(m.Booked)),
		MeetLink: "https://meet.example/mock",
		Start:    event.Start,
		End:      event.End,
	}, nil
}

// BookedEvents returns a copy of the recorded bookings.
func (m *Mock) BookedEvents() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.Booked))
	copy(out, m.Booked)
	return out
}
