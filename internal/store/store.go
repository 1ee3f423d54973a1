// Package store provides storage backends for LeadPipe.
//
// It persists leads, conversation turns, bookings and ephemeral session
// state behind a single Store interface, with in-memory, SQLite and
// PostgreSQL implementations.
package store

import (
	"strings"
	"time"

	"github.com/funnelworks/leadpipe/internal/models"
)

// Store is the persistence interface used by the dialogue flow and the API.
// Lookup methods return (nil, nil) when the record does not exist.
type Store interface {
	// CreateLead inserts a lead keyed by phone. It is idempotent: if a lead
	// with the same phone exists, the existing record is returned unchanged.
	CreateLead(lead models.Lead) (models.Lead, error)
	GetLead(phone string) (*models.Lead, error)
	// UpdateLeadStatus moves a lead through the funnel. Transitions that
	// regress or leave a terminal status fail with ErrInvalidTransition.
	UpdateLeadStatus(phone string, status models.LeadStatus) error
	UpdateLeadEmail(phone, email string) error
	SetLastIntent(phone string, intent models.Intent) error
	// ListLeadsByStatus returns leads with the given status; an empty status
	// returns all leads, newest first.
	ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error)

	// AppendTurn stores one conversation turn and refreshes the lead's
	// last-interaction timestamp (and last intent, when tagged).
	AppendTurn(turn models.ConversationTurn) error
	// GetRecentTurns returns up to limit most recent turns in chronological
	// order (oldest first).
	GetRecentTurns(phone string, limit int) ([]models.ConversationTurn, error)

	// SaveBooking records a confirmed meeting. A second booking for the same
	// (lead, start) fails with ErrAlreadyScheduled.
	SaveBooking(booking models.BookedMeeting) error
	FindBooking(phone string, start time.Time) (*models.BookedMeeting, error)
	ListBookings() ([]models.BookedMeeting, error)

	// Session state is ephemeral per-lead engine state keyed by (phone,
	// kind). GetSessionState returns (nil, nil) once ExpiresAt has passed.
	SaveSessionState(state models.SessionState) error
	GetSessionState(phone, kind string) (*models.SessionState, error)
	DeleteSessionState(phone, kind string) error

	ConversionStats() (models.ConversionStats, error)
	Close() error
}

// Opts holds configuration for database-backed stores.
type Opts struct {
	DSN string
}

// Option configures a store.
type Option func(*Opts)

// WithPostgresDSN sets a PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets an SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType classifies a DSN as "postgres" or "sqlite3". Anything that
// does not look like a Postgres URL or key=value DSN is treated as an SQLite
// file path.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return "postgres"
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return "postgres"
	}
	return "sqlite3"
}
