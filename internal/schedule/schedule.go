// Package schedule computes meeting slots from calendar busy data and a
// business-hours policy.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/funnelworks/leadpipe/internal/calendar"
	"github.com/funnelworks/leadpipe/internal/models"
)

// SlotLabelLayout renders a slot as the lead sees it, e.g.
// "03/09/2026 às 14:30".
const SlotLabelLayout = "02/01/2006 às 15:04"

// Defaults for the availability policy.
const (
	DefaultOpenHour    = 9
	DefaultCloseHour   = 18
	DefaultHorizonDays = 7
	DefaultGridStep    = 30 * time.Minute
	DefaultMaxSlots    = 10
)

// BusySource provides busy intervals for a time window. calendar.Service
// satisfies it.
type BusySource interface {
	BusyIntervals(ctx context.Context, from, to time.Time) ([]calendar.Interval, error)
}

// Opts holds the availability policy.
type Opts struct {
	OpenHour    int
	CloseHour   int
	Weekdays    map[time.Weekday]bool
	HorizonDays int
	GridStep    time.Duration
	MaxSlots    int
	Location    *time.Location
}

// Option configures the engine.
type Option func(*Opts)

// WithBusinessHours sets the daily open and close hours (close exclusive).
func WithBusinessHours(open, close int) Option {
	return func(o *Opts) {
		o.OpenHour = open
		o.CloseHour = close
	}
}

// WithWeekdays restricts slot generation to the given weekdays.
func WithWeekdays(days ...time.Weekday) Option {
	return func(o *Opts) {
		o.Weekdays = make(map[time.Weekday]bool, len(days))
		for _, d := range days {
			o.Weekdays[d] = true
		}
	}
}

// WithHorizonDays sets how many days ahead to search.
func WithHorizonDays(days int) Option {
	return func(o *Opts) { o.HorizonDays = days }
}

// WithGridStep sets the slot grid step.
func WithGridStep(step time.Duration) Option {
	return func(o *Opts) { o.GridStep = step }
}

// WithMaxSlots caps the number of returned slots.
func WithMaxSlots(n int) Option {
	return func(o *Opts) { o.MaxSlots = n }
}

// WithLocation sets the timezone the grid is computed in.
func WithLocation(loc *time.Location) Option {
	return func(o *Opts) { o.Location = loc }
}

// Engine generates candidate slots. It is deterministic: the same busy data,
// policy and reference time always yield the same slots.
type Engine struct {
	opts Opts
}

// NewEngine builds an engine with weekday business hours 9-18, a 30 minute
// grid and a 7 day horizon unless configured otherwise.
func NewEngine(opts ...Option) *Engine {
	cfg := Opts{
		OpenHour:    DefaultOpenHour,
		CloseHour:   DefaultCloseHour,
		HorizonDays: DefaultHorizonDays,
		GridStep:    DefaultGridStep,
		MaxSlots:    DefaultMaxSlots,
		Location:    time.Local,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Weekdays == nil {
		cfg.Weekdays = map[time.Weekday]bool{
			time.Monday: true, time.Tuesday: true, time.Wednesday: true,
			time.Thursday: true, time.Friday: true,
		}
	}
	return &Engine{opts: cfg}
}

// FreeSlots walks the horizon starting tomorrow and returns grid slots of the
// given duration that fall inside business hours and do not overlap any busy
// interval. An empty result is a valid outcome, not an error.
func (e *Engine) FreeSlots(ctx context.Context, busy BusySource, now time.Time, duration time.Duration) ([]models.CandidateSlot, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("slot duration must be positive")
	}
	now = now.In(e.opts.Location)

	horizonStart := startOfDay(now.AddDate(0, 0, 1))
	horizonEnd := startOfDay(now.AddDate(0, 0, e.opts.HorizonDays+1))
	intervals, err := busy.BusyIntervals(ctx, horizonStart, horizonEnd)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch busy intervals: %w", err)
	}

	var slots []models.CandidateSlot
	for offset := 1; offset <= e.opts.HorizonDays; offset++ {
		day := startOfDay(now.AddDate(0, 0, offset))
		if !e.opts.Weekdays[day.Weekday()] {
			continue
		}
		cursor := day.Add(time.Duration(e.opts.OpenHour) * time.Hour)
		close := day.Add(time.Duration(e.opts.CloseHour) * time.Hour)
		for !cursor.Add(duration).After(close) {
			if len(slots) >= e.opts.MaxSlots {
				slog.Debug("Engine.FreeSlots: slot cap reached", "count", len(slots))
				return slots, nil
			}
			end := cursor.Add(duration)
			if !overlapsAny(intervals, cursor, end) {
				slots = append(slots, models.CandidateSlot{
					Start:    cursor,
					End:      end,
					Duration: duration,
					Label:    cursor.Format(SlotLabelLayout),
				})
			}
			cursor = cursor.Add(e.opts.GridStep)
		}
	}
	slog.Debug("Engine.FreeSlots: horizon walked", "count", len(slots), "horizonDays", e.opts.HorizonDays)
	return slots, nil
}

func overlapsAny(busy []calendar.Interval, start, end time.Time) bool {
	for _, iv := range busy {
		if start.Before(iv.End) && end.After(iv.Start) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
