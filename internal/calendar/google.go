package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/funnelworks/leadpipe/internal/util"
)

// DefaultTimezone is applied to created events when none is configured.
const DefaultTimezone = "America/Sao_Paulo"

// Opts holds configuration options for the Google Calendar service.
type Opts struct {
	CredentialsFile string
	CalendarID      string
	Timezone        string
}

// Option defines a configuration option for the Google Calendar service.
type Option func(*Opts)

// WithCredentialsFile sets the path to the service account credentials JSON.
func WithCredentialsFile(path string) Option {
	return func(o *Opts) { o.CredentialsFile = path }
}

// WithCalendarID sets the target calendar.
func WithCalendarID(id string) Option {
	return func(o *Opts) { o.CalendarID = id }
}

// WithTimezone sets the timezone attached to created events.
func WithTimezone(tz string) Option {
	return func(o *Opts) { o.Timezone = tz }
}

// GoogleService implements Service against the Google Calendar API.
type GoogleService struct {
	svc        *gcal.Service
	calendarID string
	timezone   string
}

// NewGoogleService creates a Google Calendar client from a credentials file
// and a calendar id.
func NewGoogleService(ctx context.Context, opts ...Option) (*GoogleService, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("calendar credentials file not set")
	}
	if cfg.CalendarID == "" {
		return nil, fmt.Errorf("calendar id not set")
	}
	if cfg.Timezone == "" {
		cfg.Timezone = DefaultTimezone
	}

	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(cfg.CredentialsFile),
		option.WithScopes(gcal.CalendarScope))
	if err != nil {
		slog.Error("GoogleService: failed to create calendar client", "error", err)
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}
	slog.Info("GoogleService: calendar connected", "calendarID", cfg.CalendarID)
	return &GoogleService{svc: svc, calendarID: cfg.CalendarID, timezone: cfg.Timezone}, nil
}

// BusyIntervals lists busy ranges by expanding single events in the window.
func (g *GoogleService) BusyIntervals(ctx context.Context, from, to time.Time) ([]Interval, error) {
	res, err := g.svc.Events.List(g.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("GoogleService.BusyIntervals: events list failed", "error", err)
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var busy []Interval
	for _, ev := range res.Items {
		start, ok := parseEventTime(ev.Start)
		if !ok {
			continue
		}
		end, ok := parseEventTime(ev.End)
		if !ok {
			continue
		}
		busy = append(busy, Interval{Start: start, End: end})
	}
	slog.Debug("GoogleService.BusyIntervals: events listed", "count", len(busy), "from", from, "to", to)
	return busy, nil
}

// parseEventTime handles both timed events (DateTime) and all-day events
// (Date).
func parseEventTime(edt *gcal.EventDateTime) (time.Time, bool) {
	if edt == nil {
		return time.Time{}, false
	}
	if edt.DateTime != "" {
		t, err := time.Parse(time.RFC3339, edt.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	if edt.Date != "" {
		t, err := time.Parse("2006-01-02", edt.Date)
		if err != nil {
			return time.Time{}, false
		}
		return t, true
	}
	return time.Time{}, false
}

// Book creates the meeting with a Meet conference request and reminders, and
// invites the attendee when an email is known.
func (g *GoogleService) Book(ctx context.Context, event Event) (*Confirmation, error) {
	description := event.Description
	if event.AttendeePhone != "" {
		description += fmt.Sprintf("\nTelefone: %s", event.AttendeePhone)
	}
	if event.AttendeeEmail != "" {
		description += fmt.Sprintf("\nEmail: %s", event.AttendeeEmail)
	}

	body := &gcal.Event{
		Summary:     event.Title,
		Description: description,
		Start: &gcal.EventDateTime{
			DateTime: event.Start.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: event.End.Format(time.RFC3339),
			TimeZone: g.timezone,
		},
		Reminders: &gcal.EventReminders{
			UseDefault: false,
			Overrides: []*gcal.EventReminder{
				{Method: "email", Minutes: 24 * 60},
				{Method: "popup", Minutes: 60},
			},
			ForceSendFields: []string{"UseDefault"},
		},
		ConferenceData: &gcal.ConferenceData{
			CreateRequest: &gcal.CreateConferenceRequest{
				RequestId:             util.GenerateRandomID("leadpipe-", 16),
				ConferenceSolutionKey: &gcal.ConferenceSolutionKey{Type: "hangoutsMeet"},
			},
		},
	}
	if event.AttendeeEmail != "" {
		body.Attendees = []*gcal.EventAttendee{{Email: event.AttendeeEmail}}
	}

	created, err := g.svc.Events.Insert(g.calendarID, body).
		ConferenceDataVersion(1).
		Context(ctx).
		Do()
	if err != nil {
		slog.Error("GoogleService.Book: event insert failed", "error", err, "title", event.Title)
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	conf := &Confirmation{
		EventID:      created.Id,
		CalendarLink: created.HtmlLink,
		Start:        event.Start,
		End:          event.End,
	}
	if created.ConferenceData != nil {
		for _, ep := range created.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" {
				conf.MeetLink = ep.Uri
				break
			}
		}
	}
	slog.Info("GoogleService.Book: event created", "eventID", conf.EventID, "start", event.Start)
	return conf, nil
}
