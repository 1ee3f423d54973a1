// Package messaging defines the message delivery abstraction used by the
// lead dialogue flow.
//
// A Service sends outbound text and single-select choice lists and surfaces
// inbound lead replies on a channel. Two implementations exist: one backed by
// the Whatsmeow client and one backed by the Twilio API.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/funnelworks/leadpipe/internal/models"
)

// Constants for messaging service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines the default timeout for non-blocking channel operations
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when a send is attempted after Stop.
var ErrServiceStopped = errors.New("messaging service is stopped")

// phoneNumberRegex matches everything that is not a digit.
var phoneNumberRegex = regexp.MustCompile(`[^0-9]`)

// ChoiceOption is one selectable row of a choice list. The ID is an intent
// code and comes back verbatim when the lead taps the row.
type ChoiceOption struct {
	ID          string
	Label       string
	Description string
}

// ChoiceList is an interactive single-select message.
type ChoiceList struct {
	Title        string
	Body         string
	ButtonText   string
	SectionTitle string
	Options      []ChoiceOption
}

// Service defines a pluggable message delivery abstraction.
// It supports sending text and choice lists, and provides a channel of
// incoming lead responses.
type Service interface {
	// ValidateAndCanonicalizeRecipient validates and canonicalizes a recipient
	// identifier. Returns the canonicalized recipient and an error if
	// validation fails.
	ValidateAndCanonicalizeRecipient(recipient string) (string, error)

	// SendText sends a plain text message to a recipient.
	SendText(ctx context.Context, to string, body string) error

	// SendChoiceList sends a single-select choice list to a recipient.
	SendChoiceList(ctx context.Context, to string, list ChoiceList) error

	// Start begins any background processing (e.g., event polling).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Responses returns a channel of incoming lead responses.
	Responses() <-chan models.Response
}

// CanonicalizePhone strips all non-digits from a recipient and validates the
// result. Both service implementations share this rule so the same lead always
// maps to the same store key regardless of transport.
func CanonicalizePhone(recipient string) (string, error) {
	if recipient == "" {
		return "", fmt.Errorf("recipient cannot be empty")
	}

	canonical := phoneNumberRegex.ReplaceAllString(recipient, "")
	if canonical == "" {
		return "", fmt.Errorf("invalid phone number: no digits found in recipient %q", recipient)
	}
	if len(canonical) < 6 {
		return "", fmt.Errorf("invalid phone number: %q is too short (minimum 6 digits required)", canonical)
	}

	if canonical != recipient {
		slog.Debug("messaging canonicalized recipient", "original", recipient, "canonical", canonical)
	}
	return canonical, nil
}

// RenderChoiceListAsText renders a choice list as a numbered plain-text
// message for transports without native list support. Leads answer with the
// option number, which the flow resolves back to the row's intent code.
func RenderChoiceListAsText(list ChoiceList) string {
	out := list.Body
	for i, opt := range list.Options {
		out += fmt.Sprintf("\n%d. %s", i+1, opt.Label)
		if opt.Description != "" {
			out += " — " + opt.Description
		}
	}
	return out
}

// ValidateChoiceList checks that a list is sendable.
func ValidateChoiceList(list ChoiceList) error {
	if len(list.Options) == 0 {
		return fmt.Errorf("choice list requires at least one option")
	}
	for _, opt := range list.Options {
		if opt.ID == "" || opt.Label == "" {
			return fmt.Errorf("choice list option requires both an ID and a label")
		}
	}
	return nil
}
