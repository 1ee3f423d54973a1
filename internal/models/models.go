// Package models defines the core data structures for LeadPipe.
//
// It includes the lead funnel entities (leads, conversation turns, candidate
// slots, booked meetings) and the API response types shared across modules.
package models

import (
	"errors"
	"time"
)

// TurnRole identifies the author of a conversation turn.
type TurnRole string

const (
	// RoleUser marks a turn written by the lead.
	RoleUser TurnRole = "user"
	// RoleAssistant marks a turn written by the agent.
	RoleAssistant TurnRole = "assistant"
	// RoleSystem marks an internal carrier turn. System turns are never
	// rendered to the lead.
	RoleSystem TurnRole = "system"
)

// IsValidTurnRole checks if the given turn role is supported.
func IsValidTurnRole(r TurnRole) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	default:
		return false
	}
}

// LeadStatus represents a lead's position in the sales funnel.
type LeadStatus string

const (
	// StatusNew indicates a lead that has not been contacted yet.
	StatusNew LeadStatus = "NEW"
	// StatusContacted indicates the opening campaign message was delivered.
	StatusContacted LeadStatus = "CONTACTED"
	// StatusInterested indicates the lead gave non-negative feedback.
	StatusInterested LeadStatus = "INTERESTED"
	// StatusQualified indicates the lead expressed interest in the offer.
	StatusQualified LeadStatus = "QUALIFIED"
	// StatusFutureInterest indicates the lead deferred to a later cohort.
	StatusFutureInterest LeadStatus = "FUTURE_INTEREST"
	// StatusLost indicates the lead declined.
	StatusLost LeadStatus = "LOST"
	// StatusTransferredWhatsApp indicates the lead chose to continue over chat.
	StatusTransferredWhatsApp LeadStatus = "TRANSFERRED_WHATSAPP"
	// StatusWaitingEmail indicates the lead was asked for an email address.
	StatusWaitingEmail LeadStatus = "WAITING_EMAIL"
	// StatusFutureMeeting indicates the lead postponed the meeting.
	StatusFutureMeeting LeadStatus = "FUTURE_MEETING"
	// StatusScheduled is the terminal state: a meeting is booked.
	StatusScheduled LeadStatus = "SCHEDULED"
)

// statusRank orders funnel statuses so that transitions never regress.
// Statuses sharing a rank are alternative outcomes of the same step.
var statusRank = map[LeadStatus]int{
	StatusNew:                 0,
	StatusContacted:           1,
	StatusInterested:          2,
	StatusFutureInterest:      3,
	StatusLost:                3,
	StatusQualified:           3,
	StatusTransferredWhatsApp: 4,
	StatusWaitingEmail:        4,
	StatusFutureMeeting:       4,
	StatusScheduled:           5,
}

// IsValidLeadStatus checks if the given funnel status is known.
func IsValidLeadStatus(s LeadStatus) bool {
	_, ok := statusRank[s]
	return ok
}

// CanTransition reports whether moving a lead from one status to another is
// allowed. Transitions form a DAG: a lead only moves forward through the
// funnel, and a scheduled lead never changes status again.
func CanTransition(from, to LeadStatus) bool {
	fromRank, okFrom := statusRank[from]
	toRank, okTo := statusRank[to]
	if !okFrom || !okTo {
		return false
	}
	if from == StatusScheduled {
		return false
	}
	return toRank > fromRank
}

// Lead is a prospective customer tracked by phone number.
type Lead struct {
	ID              string     `json:"id"`
	Phone           string     `json:"phone"`
	Name            string     `json:"name"`
	Email           string     `json:"email,omitempty"`
	Source          string     `json:"source"`
	Status          LeadStatus `json:"status"`
	LastIntent      string     `json:"last_intent,omitempty"`
	FirstContact    time.Time  `json:"first_contact"`
	LastInteraction time.Time  `json:"last_interaction"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ConversationTurn is one message in a lead's conversation log. Turns are
// immutable once written; ordering is by insertion.
type ConversationTurn struct {
	LeadPhone string    `json:"lead_phone"`
	Role      TurnRole  `json:"role"`
	Text      string    `json:"text"`
	Intent    string    `json:"intent,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// CandidateSlot is a computed free meeting window offered to a lead.
type CandidateSlot struct {
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Duration time.Duration `json:"duration"`
	Label    string        `json:"label"`
}

// SlotSnapshot is the persisted list of slots offered in a proposal message,
// so a later reply ("2") resolves against the same numbering.
type SlotSnapshot struct {
	Slots   []CandidateSlot `json:"slots"`
	TakenAt time.Time       `json:"taken_at"`
}

// MaxSnapshotSlots caps how many candidate slots are offered per proposal.
const MaxSnapshotSlots = 5

// BookedMeeting records a confirmed meeting for a lead.
type BookedMeeting struct {
	ID            string    `json:"id"`
	LeadPhone     string    `json:"lead_phone"`
	EventID       string    `json:"event_id"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	AttendeeEmail string    `json:"attendee_email,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// SessionState holds ephemeral per-lead engine state (e.g. the serialized
// slot snapshot) outside the conversation transcript, with explicit expiry.
type SessionState struct {
	LeadPhone string    `json:"lead_phone"`
	Kind      string    `json:"kind"`
	Data      string    `json:"data"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Session state kinds.
const (
	// SessionKindScheduling carries the candidate-slot snapshot between a
	// proposal message and the reply that selects from it.
	SessionKindScheduling = "scheduling"
)

// Response represents an inbound message from a lead, as emitted by a
// messaging transport. Button is set when Body carries a tapped list-row ID
// rather than typed text.
type Response struct {
	From   string `json:"from"`
	Name   string `json:"name,omitempty"`
	Body   string `json:"body"`
	Button bool   `json:"button,omitempty"`
	Time   int64  `json:"time"`
}

// ConversionStats summarizes funnel progress across all leads.
type ConversionStats struct {
	TotalLeads     int     `json:"total_leads"`
	Contacted      int     `json:"contacted"`
	Qualified      int     `json:"qualified"`
	Scheduled      int     `json:"scheduled"`
	ContactRate    float64 `json:"contact_rate"`
	ConversionRate float64 `json:"conversion_rate"`
}

// Validation limits for inbound payloads.
const (
	// MaxMessageLength caps inbound message bodies accepted by the engine.
	MaxMessageLength = 4096
	// MaxNameLength caps lead display names.
	MaxNameLength = 100
)

// Error variables for better error handling and testability.
var (
	ErrEmptyPhone        = errors.New("lead phone cannot be empty")
	ErrEmptyMessage      = errors.New("message text cannot be empty")
	ErrMessageTooLong    = errors.New("message text exceeds maximum length")
	ErrInvalidTurnRole   = errors.New("invalid conversation turn role")
	ErrInvalidStatus     = errors.New("invalid lead status")
	ErrLeadNotFound      = errors.New("lead not found")
	ErrInvalidTransition = errors.New("lead status transition not allowed")
	ErrSnapshotMissing   = errors.New("no slot snapshot available")
	ErrSlotOutOfRange    = errors.New("slot ordinal outside offered snapshot")
	ErrAlreadyScheduled  = errors.New("slot already booked for this lead")
)

// Validate performs validation on a ConversationTurn before persistence.
func (t *ConversationTurn) Validate() error {
	if t.LeadPhone == "" {
		return ErrEmptyPhone
	}
	if !IsValidTurnRole(t.Role) {
		return ErrInvalidTurnRole
	}
	if t.Text == "" {
		return ErrEmptyMessage
	}
	if len(t.Text) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusIgnored indicates an inbound payload was deliberately dropped.
	APIStatusIgnored APIStatus = "ignored"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// SuccessWithMessage creates a successful API response with a message.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Message: message, Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Ignored creates a response for payloads that were deliberately not handled.
func Ignored(reason string) APIResponse {
	return APIResponse{Status: string(APIStatusIgnored), Message: reason}
}
