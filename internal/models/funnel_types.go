// Package models defines funnel intent and stage identifiers shared across
// modules, to avoid circular imports between intent matching and flow logic.
package models

import "strings"

// Intent is a canonical classification of what an inbound message means for
// funnel purposes.
type Intent string

// Stage is the funnel position inferred from conversation history.
type Stage string

// Intent catalogue.
const (
	IntentFeedbackPositive Intent = "feedback_positive"
	IntentFeedbackGood     Intent = "feedback_good"
	IntentFeedbackNeutral  Intent = "feedback_neutral"
	IntentFeedbackNegative Intent = "feedback_negative"
	IntentInterestHigh     Intent = "interest_high"
	IntentInterestMedium   Intent = "interest_medium"
	IntentInterestFuture   Intent = "interest_future"
	IntentNoInterest       Intent = "no_interest"
	IntentAcceptMeeting    Intent = "accept_meeting"
	IntentPreferChannel    Intent = "prefer_channel"
	IntentPreferEmail      Intent = "prefer_email"
	IntentNoTime           Intent = "no_time"
	IntentEmailProvided    Intent = "email_provided"

	// IntentSlotPrefix prefixes slot selection intents; slot_3 selects the
	// third offered slot.
	IntentSlotPrefix = "slot_"

	// IntentFeedbackPrompt tags the assistant marker turn recorded when the
	// feedback-elicitation message is sent.
	IntentFeedbackPrompt Intent = "feedback_prompt"
)

// Conversation stages, in classifier priority order.
const (
	StageInitial            Stage = "initial"
	StagePostFeedbackPrompt Stage = "post_feedback_prompt"
	StagePostFeedback       Stage = "post_feedback"
	StagePostInterest       Stage = "post_interest"
	StagePostMeetingPref    Stage = "post_meeting_pref"
	StagePostMeetingAccept  Stage = "post_meeting_accept"
	StageEmailProvided      Stage = "email_provided"
	StagePostEmail          Stage = "post_email"
	StageFreeConversation   Stage = "free_conversation"
)

// IsFeedback reports whether the intent is one of the feedback variants.
func (i Intent) IsFeedback() bool {
	return strings.HasPrefix(string(i), "feedback_") && i != IntentFeedbackPrompt
}

// IsInterest reports whether the intent expresses a level of interest,
// including its negative form.
func (i Intent) IsInterest() bool {
	return strings.HasPrefix(string(i), "interest_") || i == IntentNoInterest
}

// IsMeetingPref reports whether the intent answers the meeting proposal.
func (i Intent) IsMeetingPref() bool {
	switch i {
	case IntentAcceptMeeting, IntentPreferChannel, IntentPreferEmail, IntentNoTime:
		return true
	default:
		return false
	}
}

// IsSlotSelection reports whether the intent selects an offered slot.
func (i Intent) IsSlotSelection() bool {
	return strings.HasPrefix(string(i), IntentSlotPrefix)
}
