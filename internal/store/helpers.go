package store

import (
	"database/sql"
	"fmt"

	"github.com/funnelworks/leadpipe/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

const leadColumns = `id, phone, name, email, source, status, last_intent, first_contact, last_interaction, created_at, updated_at`

// scanLead scans a Lead from sql.Rows.
func scanLead(rows *sql.Rows) (models.Lead, error) {
	var l models.Lead
	var email, lastIntent sql.NullString
	var status string
	err := rows.Scan(
		&l.ID, &l.Phone, &l.Name, &email, &l.Source, &status, &lastIntent,
		&l.FirstContact, &l.LastInteraction, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, fmt.Errorf("scan lead failed: %w", err)
	}
	l.Email = email.String
	l.LastIntent = lastIntent.String
	l.Status = models.LeadStatus(status)
	return l, nil
}

// scanLeadRow scans a Lead from a single sql.Row.
func scanLeadRow(row *sql.Row) (models.Lead, error) {
	var l models.Lead
	var email, lastIntent sql.NullString
	var status string
	err := row.Scan(
		&l.ID, &l.Phone, &l.Name, &email, &l.Source, &status, &lastIntent,
		&l.FirstContact, &l.LastInteraction, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return l, err
	}
	l.Email = email.String
	l.LastIntent = lastIntent.String
	l.Status = models.LeadStatus(status)
	return l, nil
}

// scanTurn scans a ConversationTurn from sql.Rows.
func scanTurn(rows *sql.Rows) (models.ConversationTurn, error) {
	var t models.ConversationTurn
	var role string
	var intent sql.NullString
	err := rows.Scan(&t.LeadPhone, &role, &t.Text, &intent, &t.Timestamp)
	if err != nil {
		return t, fmt.Errorf("scan conversation turn failed: %w", err)
	}
	t.Role = models.TurnRole(role)
	t.Intent = intent.String
	return t, nil
}

// scanBooking scans a BookedMeeting from sql.Rows.
func scanBooking(rows *sql.Rows) (models.BookedMeeting, error) {
	var b models.BookedMeeting
	var attendeeEmail sql.NullString
	err := rows.Scan(&b.ID, &b.LeadPhone, &b.EventID, &b.Title, &b.Start, &b.End, &attendeeEmail, &b.CreatedAt)
	if err != nil {
		return b, fmt.Errorf("scan booking failed: %w", err)
	}
	b.AttendeeEmail = attendeeEmail.String
	return b, nil
}

// reverseTurns flips a newest-first result set into chronological order.
func reverseTurns(turns []models.ConversationTurn) []models.ConversationTurn {
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns
}
