package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/funnelworks/leadpipe/internal/calendar"
)

// Wednesday 2026-09-02 10:00 UTC; the horizon starts Thursday.
var refNow = time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)

type staticBusy []calendar.Interval

func (b staticBusy) BusyIntervals(ctx context.Context, from, to time.Time) ([]calendar.Interval, error) {
	return b, nil
}

func newTestEngine(opts ...Option) *Engine {
	base := []Option{WithLocation(time.UTC)}
	return NewEngine(append(base, opts...)...)
}

func TestFreeSlotsEmptyCalendar(t *testing.T) {
	e := newTestEngine()
	slots, err := e.FreeSlots(context.Background(), staticBusy(nil), refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	if len(slots) != DefaultMaxSlots {
		t.Fatalf("got %d slots, want cap of %d", len(slots), DefaultMaxSlots)
	}
	first := slots[0]
	want := time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC)
	if !first.Start.Equal(want) {
		t.Errorf("first slot starts %v, want %v (tomorrow at open)", first.Start, want)
	}
	if first.Label != "03/09/2026 às 09:00" {
		t.Errorf("first slot label = %q", first.Label)
	}
	for i := 1; i < len(slots); i++ {
		if step := slots[i].Start.Sub(slots[i-1].Start); step != DefaultGridStep {
			t.Errorf("slot %d not on grid: step %v", i, step)
		}
	}
}

func TestFreeSlotsRespectBusinessHours(t *testing.T) {
	e := newTestEngine(WithMaxSlots(1000))
	slots, err := e.FreeSlots(context.Background(), staticBusy(nil), refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	for _, s := range slots {
		wd := s.Start.Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			t.Errorf("slot on a weekend: %v", s.Start)
		}
		if s.Start.Hour() < DefaultOpenHour {
			t.Errorf("slot before opening: %v", s.Start)
		}
		if s.End.Hour() > DefaultCloseHour || (s.End.Hour() == DefaultCloseHour && s.End.Minute() > 0) {
			t.Errorf("slot ends after closing: %v", s.End)
		}
	}
}

func TestFreeSlotsNeverOverlapBusy(t *testing.T) {
	busy := staticBusy{
		{Start: time.Date(2026, 9, 3, 9, 0, 0, 0, time.UTC), End: time.Date(2026, 9, 3, 12, 0, 0, 0, time.UTC)},
		{Start: time.Date(2026, 9, 3, 14, 15, 0, 0, time.UTC), End: time.Date(2026, 9, 3, 14, 45, 0, 0, time.UTC)},
	}
	e := newTestEngine(WithMaxSlots(1000))
	slots, err := e.FreeSlots(context.Background(), busy, refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	for _, s := range slots {
		for _, iv := range busy {
			if s.Start.Before(iv.End) && s.End.After(iv.Start) {
				t.Errorf("slot %v-%v overlaps busy %v-%v", s.Start, s.End, iv.Start, iv.End)
			}
		}
	}
	// the 14:15-14:45 event blocks both the 14:00 and 14:30 grid slots
	for _, s := range slots {
		if s.Start.Day() == 3 && (s.Start.Hour() == 14 && (s.Start.Minute() == 0 || s.Start.Minute() == 30)) {
			t.Errorf("slot %v should be blocked by the 14:15 event", s.Start)
		}
	}
}

func TestFreeSlotsFullyBusyDay(t *testing.T) {
	busy := staticBusy{
		{Start: time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 9, 4, 0, 0, 0, 0, time.UTC)},
	}
	e := newTestEngine(WithHorizonDays(1), WithMaxSlots(1000))
	slots, err := e.FreeSlots(context.Background(), busy, refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("fully busy day produced %d slots, want 0", len(slots))
	}
}

func TestFreeSlotsWeekendOnlyHorizon(t *testing.T) {
	// Friday evening; a 2-day horizon covers only Saturday and Sunday.
	friday := time.Date(2026, 9, 4, 19, 0, 0, 0, time.UTC)
	e := newTestEngine(WithHorizonDays(2))
	slots, err := e.FreeSlots(context.Background(), staticBusy(nil), friday, 30*time.Minute)
	if err != nil {
		t.Fatalf("empty horizon must not be an error: %v", err)
	}
	if len(slots) != 0 {
		t.Errorf("weekend-only horizon produced %d slots, want 0", len(slots))
	}
}

func TestFreeSlotsLongerDuration(t *testing.T) {
	e := newTestEngine(WithMaxSlots(1000), WithHorizonDays(1))
	slots, err := e.FreeSlots(context.Background(), staticBusy(nil), refNow, time.Hour)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	// 9:00..17:00 starts on a 30m grid: last start 17:00 ends 18:00.
	last := slots[len(slots)-1]
	if last.Start.Hour() != 17 || last.Start.Minute() != 0 {
		t.Errorf("last 60m slot starts %v, want 17:00", last.Start)
	}
	for _, s := range slots {
		if s.Duration != time.Hour {
			t.Errorf("slot duration = %v, want 1h", s.Duration)
		}
	}
}

func TestFreeSlotsDeterministic(t *testing.T) {
	busy := staticBusy{
		{Start: time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC), End: time.Date(2026, 9, 3, 11, 0, 0, 0, time.UTC)},
	}
	e := newTestEngine()
	a, err := e.FreeSlots(context.Background(), busy, refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	b, err := e.FreeSlots(context.Background(), busy, refNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("FreeSlots failed: %v", err)
	}
	if len(a) != len(b) {
		t.Fatalf("non-deterministic slot count: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !a[i].Start.Equal(b[i].Start) || a[i].Label != b[i].Label {
			t.Errorf("slot %d differs between runs", i)
		}
	}
}

func TestFreeSlotsInvalidDuration(t *testing.T) {
	e := newTestEngine()
	if _, err := e.FreeSlots(context.Background(), staticBusy(nil), refNow, 0); err == nil {
		t.Error("zero duration should be rejected")
	}
}
