package models

import (
	"strings"
	"testing"
	"time"
)

func TestCanTransitionForwardOnly(t *testing.T) {
	cases := []struct {
		from, to LeadStatus
		want     bool
	}{
		{StatusNew, StatusContacted, true},
		{StatusContacted, StatusInterested, true},
		{StatusInterested, StatusQualified, true},
		{StatusInterested, StatusLost, true},
		{StatusInterested, StatusFutureInterest, true},
		{StatusQualified, StatusWaitingEmail, true},
		{StatusQualified, StatusTransferredWhatsApp, true},
		{StatusQualified, StatusFutureMeeting, true},
		{StatusWaitingEmail, StatusScheduled, true},
		{StatusContacted, StatusScheduled, true},
		// regressions
		{StatusInterested, StatusContacted, false},
		{StatusQualified, StatusInterested, false},
		{StatusScheduled, StatusContacted, false},
		// same rank is not a transition
		{StatusLost, StatusQualified, false},
		{StatusWaitingEmail, StatusFutureMeeting, false},
		{StatusNew, StatusNew, false},
		// unknown statuses
		{"BOGUS", StatusContacted, false},
		{StatusNew, "BOGUS", false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestScheduledIsTerminal(t *testing.T) {
	for s := range map[LeadStatus]int{
		StatusNew: 0, StatusContacted: 0, StatusInterested: 0,
		StatusQualified: 0, StatusFutureInterest: 0, StatusLost: 0,
		StatusTransferredWhatsApp: 0, StatusWaitingEmail: 0,
		StatusFutureMeeting: 0, StatusScheduled: 0,
	} {
		if CanTransition(StatusScheduled, s) {
			t.Errorf("CanTransition(SCHEDULED, %s) should be false", s)
		}
	}
}

func TestConversationTurnValidate(t *testing.T) {
	valid := ConversationTurn{
		LeadPhone: "5511999990000",
		Role:      RoleUser,
		Text:      "oi",
		Timestamp: time.Now(),
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid turn rejected: %v", err)
	}

	tests := []struct {
		name    string
		mutate  func(*ConversationTurn)
		wantErr error
	}{
		{"empty phone", func(c *ConversationTurn) { c.LeadPhone = "" }, ErrEmptyPhone},
		{"bad role", func(c *ConversationTurn) { c.Role = "moderator" }, ErrInvalidTurnRole},
		{"empty text", func(c *ConversationTurn) { c.Text = "" }, ErrEmptyMessage},
		{"too long", func(c *ConversationTurn) { c.Text = strings.Repeat("a", MaxMessageLength+1) }, ErrMessageTooLong},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			turn := valid
			tc.mutate(&turn)
			if err := turn.Validate(); err != tc.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestIntentPredicates(t *testing.T) {
	if !IntentFeedbackNegative.IsFeedback() {
		t.Error("feedback_negative should be a feedback intent")
	}
	if IntentFeedbackPrompt.IsFeedback() {
		t.Error("feedback_prompt marker is not lead feedback")
	}
	if !IntentNoInterest.IsInterest() {
		t.Error("no_interest should count as an interest answer")
	}
	if !IntentAcceptMeeting.IsMeetingPref() || IntentInterestHigh.IsMeetingPref() {
		t.Error("meeting preference predicate mismatch")
	}
	if !Intent("slot_4").IsSlotSelection() || IntentAcceptMeeting.IsSlotSelection() {
		t.Error("slot selection predicate mismatch")
	}
}

func TestAPIResponseBuilders(t *testing.T) {
	if r := Success(map[string]int{"n": 1}); r.Status != string(APIStatusOK) || r.Result == nil {
		t.Errorf("Success() = %+v", r)
	}
	if r := Error("boom"); r.Status != string(APIStatusError) || r.Message != "boom" {
		t.Errorf("Error() = %+v", r)
	}
	if r := Ignored("ack event"); r.Status != string(APIStatusIgnored) || r.Message != "ack event" {
		t.Errorf("Ignored() = %+v", r)
	}
}
