// Package store provides storage backends for LeadPipe.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/funnelworks/leadpipe/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) CreateLead(lead models.Lead) (models.Lead, error) {
	if lead.Phone == "" {
		return models.Lead{}, models.ErrEmptyPhone
	}
	if existing, err := s.GetLead(lead.Phone); err != nil {
		return models.Lead{}, err
	} else if existing != nil {
		slog.Debug("PostgresStore CreateLead: lead exists", "phone", lead.Phone)
		return *existing, nil
	}

	now := time.Now()
	lead.ID = uuid.NewString()
	lead.Status = models.StatusNew
	lead.FirstContact = now
	lead.LastInteraction = now
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO leads (`+leadColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (phone) DO NOTHING`,
		lead.ID, lead.Phone, lead.Name, nilIfEmpty(lead.Email), lead.Source, string(lead.Status),
		nilIfEmpty(lead.LastIntent), lead.FirstContact, lead.LastInteraction, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore CreateLead failed", "error", err, "phone", lead.Phone)
		return models.Lead{}, fmt.Errorf("failed to insert lead %s: %w", lead.Phone, err)
	}
	slog.Debug("PostgresStore CreateLead succeeded", "phone", lead.Phone, "name", lead.Name)
	return lead, nil
}

func (s *PostgresStore) GetLead(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = $1`, phone)
	lead, err := scanLeadRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetLead failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query lead %s: %w", phone, err)
	}
	return &lead, nil
}

func (s *PostgresStore) UpdateLeadStatus(phone string, status models.LeadStatus) error {
	if !models.IsValidLeadStatus(status) {
		return models.ErrInvalidStatus
	}
	lead, err := s.GetLead(phone)
	if err != nil {
		return err
	}
	if lead == nil {
		return models.ErrLeadNotFound
	}
	if lead.Status == status {
		return nil
	}
	if !models.CanTransition(lead.Status, status) {
		slog.Warn("PostgresStore UpdateLeadStatus: transition rejected", "phone", phone, "from", lead.Status, "to", status)
		return models.ErrInvalidTransition
	}
	_, err = s.db.Exec(`UPDATE leads SET status = $1, updated_at = $2 WHERE phone = $3`,
		string(status), time.Now(), phone)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadStatus failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update lead status for %s: %w", phone, err)
	}
	slog.Debug("PostgresStore UpdateLeadStatus succeeded", "phone", phone, "status", status)
	return nil
}

func (s *PostgresStore) UpdateLeadEmail(phone, email string) error {
	res, err := s.db.Exec(`UPDATE leads SET email = $1, updated_at = $2 WHERE phone = $3`,
		nilIfEmpty(email), time.Now(), phone)
	if err != nil {
		slog.Error("PostgresStore UpdateLeadEmail failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update lead email for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

func (s *PostgresStore) SetLastIntent(phone string, intent models.Intent) error {
	res, err := s.db.Exec(`UPDATE leads SET last_intent = $1, last_interaction = $2, updated_at = $3 WHERE phone = $4`,
		string(intent), time.Now(), time.Now(), phone)
	if err != nil {
		slog.Error("PostgresStore SetLastIntent failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set last intent for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

func (s *PostgresStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC`
	args := []interface{}{}
	if status != "" {
		query = `SELECT ` + leadColumns + ` FROM leads WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, string(status))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("PostgresStore ListLeadsByStatus query failed", "error", err)
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate lead rows: %w", err)
	}
	return leads, nil
}

func (s *PostgresStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversation_turns (lead_phone, role, text, intent, timestamp) VALUES ($1, $2, $3, $4, $5)`,
		turn.LeadPhone, string(turn.Role), turn.Text, nilIfEmpty(turn.Intent), turn.Timestamp)
	if err != nil {
		slog.Error("PostgresStore AppendTurn failed", "error", err, "phone", turn.LeadPhone)
		return fmt.Errorf("failed to insert turn for %s: %w", turn.LeadPhone, err)
	}
	if turn.Intent != "" {
		_, err = s.db.Exec(`UPDATE leads SET last_intent = $1, last_interaction = $2, updated_at = $3 WHERE phone = $4`,
			turn.Intent, turn.Timestamp, time.Now(), turn.LeadPhone)
	} else {
		_, err = s.db.Exec(`UPDATE leads SET last_interaction = $1, updated_at = $2 WHERE phone = $3`,
			turn.Timestamp, time.Now(), turn.LeadPhone)
	}
	if err != nil {
		slog.Error("PostgresStore AppendTurn lead refresh failed", "error", err, "phone", turn.LeadPhone)
		return fmt.Errorf("failed to refresh lead %s: %w", turn.LeadPhone, err)
	}
	return nil
}

func (s *PostgresStore) GetRecentTurns(phone string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT lead_phone, role, text, intent, timestamp FROM conversation_turns
		WHERE lead_phone = $1 ORDER BY timestamp DESC, id DESC LIMIT $2`, phone, limit)
	if err != nil {
		slog.Error("PostgresStore GetRecentTurns query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query turns for %s: %w", phone, err)
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn rows: %w", err)
	}
	return reverseTurns(turns), nil
}

func (s *PostgresStore) SaveBooking(booking models.BookedMeeting) error {
	if booking.LeadPhone == "" {
		return models.ErrEmptyPhone
	}
	if existing, err := s.FindBooking(booking.LeadPhone, booking.Start); err != nil {
		return err
	} else if existing != nil {
		return models.ErrAlreadyScheduled
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO bookings (id, lead_phone, event_id, title, start_time, end_time, attendee_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		booking.ID, booking.LeadPhone, booking.EventID, booking.Title, booking.Start, booking.End,
		nilIfEmpty(booking.AttendeeEmail), booking.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveBooking failed", "error", err, "phone", booking.LeadPhone)
		return fmt.Errorf("failed to insert booking for %s: %w", booking.LeadPhone, err)
	}
	slog.Debug("PostgresStore SaveBooking succeeded", "phone", booking.LeadPhone, "start", booking.Start)
	return nil
}

func (s *PostgresStore) FindBooking(phone string, start time.Time) (*models.BookedMeeting, error) {
	rows, err := s.db.Query(`SELECT id, lead_phone, event_id, title, start_time, end_time, attendee_email, created_at
		FROM bookings WHERE lead_phone = $1 AND start_time = $2`, phone, start)
	if err != nil {
		slog.Error("PostgresStore FindBooking query failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query booking for %s: %w", phone, err)
	}
	defer rows.Close()
	if !rows.Next() {
		return nil, rows.Err()
	}
	booking, err := scanBooking(rows)
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (s *PostgresStore) ListBookings() ([]models.BookedMeeting, error) {
	rows, err := s.db.Query(`SELECT id, lead_phone, event_id, title, start_time, end_time, attendee_email, created_at
		FROM bookings ORDER BY start_time`)
	if err != nil {
		slog.Error("PostgresStore ListBookings query failed", "error", err)
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.BookedMeeting
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate booking rows: %w", err)
	}
	return bookings, nil
}

func (s *PostgresStore) SaveSessionState(state models.SessionState) error {
	if state.LeadPhone == "" {
		return models.ErrEmptyPhone
	}
	if state.Kind == "" {
		return fmt.Errorf("session state kind cannot be empty")
	}
	_, err := s.db.Exec(`INSERT INTO session_states (lead_phone, kind, data, expires_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lead_phone, kind)
		DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at, updated_at = EXCLUDED.updated_at`,
		state.LeadPhone, state.Kind, state.Data, state.ExpiresAt, time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveSessionState failed", "error", err, "phone", state.LeadPhone, "kind", state.Kind)
		return fmt.Errorf("failed to save session state for %s: %w", state.LeadPhone, err)
	}
	return nil
}

func (s *PostgresStore) GetSessionState(phone, kind string) (*models.SessionState, error) {
	var state models.SessionState
	err := s.db.QueryRow(`SELECT lead_phone, kind, data, expires_at, updated_at FROM session_states
		WHERE lead_phone = $1 AND kind = $2`, phone, kind).Scan(
		&state.LeadPhone, &state.Kind, &state.Data, &state.ExpiresAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetSessionState failed", "error", err, "phone", phone, "kind", kind)
		return nil, fmt.Errorf("failed to query session state for %s: %w", phone, err)
	}
	if !state.ExpiresAt.IsZero() && time.Now().After(state.ExpiresAt) {
		return nil, nil
	}
	return &state, nil
}

func (s *PostgresStore) DeleteSessionState(phone, kind string) error {
	_, err := s.db.Exec(`DELETE FROM session_states WHERE lead_phone = $1 AND kind = $2`, phone, kind)
	if err != nil {
		slog.Error("PostgresStore DeleteSessionState failed", "error", err, "phone", phone, "kind", kind)
		return fmt.Errorf("failed to delete session state for %s: %w", phone, err)
	}
	return nil
}

func (s *PostgresStore) ConversionStats() (models.ConversionStats, error) {
	var stats models.ConversionStats
	err := s.db.QueryRow(`SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status != 'NEW'),
		COUNT(*) FILTER (WHERE status = 'QUALIFIED'),
		COUNT(*) FILTER (WHERE status = 'SCHEDULED')
		FROM leads`).Scan(&stats.TotalLeads, &stats.Contacted, &stats.Qualified, &stats.Scheduled)
	if err != nil {
		slog.Error("PostgresStore ConversionStats failed", "error", err)
		return stats, fmt.Errorf("failed to compute conversion stats: %w", err)
	}
	if stats.TotalLeads > 0 {
		stats.ContactRate = float64(stats.Contacted) / float64(stats.TotalLeads) * 100
		stats.ConversionRate = float64(stats.Scheduled) / float64(stats.TotalLeads) * 100
	}
	return stats, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
