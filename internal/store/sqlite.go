// Package store provides storage backends for LeadPipe.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/funnelworks/leadpipe/internal/models"
)

// Constants for SQLite store configuration
const (
	// DefaultDirPermissions defines the default permissions for database directories
	DefaultDirPermissions = 0755
)

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN.
// The DSN should be a file path to the SQLite database file.
// If the directory doesn't exist, it will be created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}

	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateLead(lead models.Lead) (models.Lead, error) {
	if lead.Phone == "" {
		return models.Lead{}, models.ErrEmptyPhone
	}
	if existing, err := s.GetLead(lead.Phone); err != nil {
		return models.Lead{}, err
	} else if existing != nil {
		slog.Debug("SQLiteStore CreateLead: lead exists", "phone", lead.Phone)
		return *existing, nil
	}

	now := time.Now()
	lead.ID = uuid.NewString()
	lead.Status = models.StatusNew
	lead.FirstContact = now
	lead.LastInteraction = now
	lead.CreatedAt = now
	lead.UpdatedAt = now

	_, err := s.db.Exec(`INSERT INTO leads (`+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.ID, lead.Phone, lead.Name, nilIfEmpty(lead.Email), lead.Source, string(lead.Status),
		nilIfEmpty(lead.LastIntent), lead.FirstContact, lead.LastInteraction, lead.CreatedAt, lead.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore CreateLead failed", "error", err, "phone", lead.Phone)
		return models.Lead{}, fmt.Errorf("failed to insert lead %s: %w", lead.Phone, err)
	}
	slog.Debug("SQLiteStore CreateLead succeeded", "phone", lead.Phone, "name", lead.Name)
	return lead, nil
}

func (s *SQLiteStore) GetLead(phone string) (*models.Lead, error) {
	row := s.db.QueryRow(`SELECT `+leadColumns+` FROM leads WHERE phone = ?`, phone)
	lead, err := scanLeadRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetLead failed", "error", err, "phone", phone)
		return nil, fmt.Errorf("failed to query lead %s: %w", phone, err)
	}
	return &lead, nil
}

func (s *SQLiteStore) UpdateLeadStatus(phone string, status models.LeadStatus) error {
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
		slog.Warn("SQLiteStore UpdateLeadStatus: transition rejected", "phone", phone, "from", lead.Status, "to", status)
		return models.ErrInvalidTransition
	}
	_, err = s.db.Exec(`UPDATE leads SET status = ?, updated_at = ? WHERE phone = ?`,
		string(status), time.Now(), phone)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadStatus failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update lead status for %s: %w", phone, err)
	}
	slog.Debug("SQLiteStore UpdateLeadStatus succeeded", "phone", phone, "status", status)
	return nil
}

func (s *SQLiteStore) UpdateLeadEmail(phone, email string) error {
	res, err := s.db.Exec(`UPDATE leads SET email = ?, updated_at = ? WHERE phone = ?`,
		nilIfEmpty(email), time.Now(), phone)
	if err != nil {
		slog.Error("SQLiteStore UpdateLeadEmail failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to update lead email for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

func (s *SQLiteStore) SetLastIntent(phone string, intent models.Intent) error {
	res, err := s.db.Exec(`UPDATE leads SET last_intent = ?, last_interaction = ?, updated_at = ? WHERE phone = ?`,
		string(intent), time.Now(), time.Now(), phone)
	if err != nil {
		slog.Error("SQLiteStore SetLastIntent failed", "error", err, "phone", phone)
		return fmt.Errorf("failed to set last intent for %s: %w", phone, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrLeadNotFound
	}
	return nil
}

func (s *SQLiteStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC`
	args := []interface{}{}
	if status != "" {
		query = `SELECT ` + leadColumns + ` FROM leads WHERE status = ? ORDER BY created_at DESC`
		args = append(args, string(status))
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		slog.Error("SQLiteStore ListLeadsByStatus query failed", "error", err)
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

func (s *SQLiteStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO conversation_turns (lead_phone, role, text, intent, timestamp) VALUES (?, ?, ?, ?, ?)`,
		turn.LeadPhone, string(turn.Role), turn.Text, nilIfEmpty(turn.Intent), turn.Timestamp)
	if err != nil {
		slog.Error("SQLiteStore AppendTurn failed", "error", err, "phone", turn.LeadPhone)
		return fmt.Errorf("failed to insert turn for %s: %w", turn.LeadPhone, err)
	}
	if turn.Intent != "" {
		_, err = s.db.Exec(`UPDATE leads SET last_intent = ?, last_interaction = ?, updated_at = ? WHERE phone = ?`,
			turn.Intent, turn.Timestamp, time.Now(), turn.LeadPhone)
	} else {
		_, err = s.db.Exec(`UPDATE leads SET last_interaction = ?, updated_at = ? WHERE phone = ?`,
			turn.Timestamp, time.Now(), turn.LeadPhone)
	}
	if err != nil {
		slog.Error("SQLiteStore AppendTurn lead refresh failed", "error", err, "phone", turn.LeadPhone)
		return fmt.Errorf("failed to refresh lead %s: %w", turn.LeadPhone, err)
	}
	return nil
}

func (s *SQLiteStore) GetRecentTurns(phone string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`SELECT lead_phone, role, text, intent, timestamp FROM conversation_turns
		WHERE lead_phone = ? ORDER BY timestamp DESC, id DESC LIMIT ?`, phone, limit)
	if err != nil {
		slog.Error("SQLiteStore GetRecentTurns query failed", "error", err, "phone", phone)
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

func (s *SQLiteStore) SaveBooking(booking models.BookedMeeting) error {
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
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		booking.ID, booking.LeadPhone, booking.EventID, booking.Title, booking.Start, booking.End,
		nilIfEmpty(booking.AttendeeEmail), booking.CreatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveBooking failed", "error", err, "phone", booking.LeadPhone)
		return fmt.Errorf("failed to insert booking for %s: %w", booking.LeadPhone, err)
	}
	slog.Debug("SQLiteStore SaveBooking succeeded", "phone", booking.LeadPhone, "start", booking.Start)
	return nil
}

func (s *SQLiteStore) FindBooking(phone string, start time.Time) (*models.BookedMeeting, error) {
	rows, err := s.db.Query(`SELECT id, lead_phone, event_id, title, start_time, end_time, attendee_email, created_at
		FROM bookings WHERE lead_phone = ? AND start_time = ?`, phone, start)
	if err != nil {
		slog.Error("SQLiteStore FindBooking query failed", "error", err, "phone", phone)
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

func (s *SQLiteStore) ListBookings() ([]models.BookedMeeting, error) {
	rows, err := s.db.Query(`SELECT id, lead_phone, event_id, title, start_time, end_time, attendee_email, created_at
		FROM bookings ORDER BY start_time`)
	if err != nil {
		slog.Error("SQLiteStore ListBookings query failed", "error", err)
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

func (s *SQLiteStore) SaveSessionState(state models.SessionState) error {
	if state.LeadPhone == "" {
		return models.ErrEmptyPhone
	}
	if state.Kind == "" {
		return fmt.Errorf("session state kind cannot be empty")
	}
	_, err := s.db.Exec(`INSERT OR REPLACE INTO session_states (lead_phone, kind, data, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		state.LeadPhone, state.Kind, state.Data, state.ExpiresAt, time.Now())
	if err != nil {
		slog.Error("SQLiteStore SaveSessionState failed", "error", err, "phone", state.LeadPhone, "kind", state.Kind)
		return fmt.Errorf("failed to save session state for %s: %w", state.LeadPhone, err)
	}
	return nil
}

func (s *SQLiteStore) GetSessionState(phone, kind string) (*models.SessionState, error) {
	var state models.SessionState
	err := s.db.QueryRow(`SELECT lead_phone, kind, data, expires_at, updated_at FROM session_states
		WHERE lead_phone = ? AND kind = ?`, phone, kind).Scan(
		&state.LeadPhone, &state.Kind, &state.Data, &state.ExpiresAt, &state.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetSessionState failed", "error", err, "phone", phone, "kind", kind)
		return nil, fmt.Errorf("failed to query session state for %s: %w", phone, err)
	}
	if !state.ExpiresAt.IsZero() && time.Now().After(state.ExpiresAt) {
		return nil, nil
	}
	return &state, nil
}

func (s *SQLiteStore) DeleteSessionState(phone, kind string) error {
	_, err := s.db.Exec(`DELETE FROM session_states WHERE lead_phone = ? AND kind = ?`, phone, kind)
	if err != nil {
		slog.Error("SQLiteStore DeleteSessionState failed", "error", err, "phone", phone, "kind", kind)
		return fmt.Errorf("failed to delete session state for %s: %w", phone, err)
	}
	return nil
}

func (s *SQLiteStore) ConversionStats() (models.ConversionStats, error) {
	var stats models.ConversionStats
	err := s.db.QueryRow(`SELECT
		COUNT(*),
		COUNT(*) FILTER (WHERE status != 'NEW'),
		COUNT(*) FILTER (WHERE status = 'QUALIFIED'),
		COUNT(*) FILTER (WHERE status = 'SCHEDULED')
		FROM leads`).Scan(&stats.TotalLeads, &stats.Contacted, &stats.Qualified, &stats.Scheduled)
	if err != nil {
		slog.Error("SQLiteStore ConversionStats failed", "error", err)
		return stats, fmt.Errorf("failed to compute conversion stats: %w", err)
	}
	if stats.TotalLeads > 0 {
		stats.ContactRate = float64(stats.Contacted) / float64(stats.TotalLeads) * 100
		stats.ConversionRate = float64(stats.Scheduled) / float64(stats.TotalLeads) * 100
	}
	return stats, nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	slog.Debug("Closing SQLite database connection")
	return s.db.Close()
}
