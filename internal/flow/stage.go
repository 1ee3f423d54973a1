package flow

import (
	"github.com/funnelworks/leadpipe/internal/intent"
	"github.com/funnelworks/leadpipe/internal/models"
)

// stageMarkerWindow bounds how far back the classifier looks for the
// feedback-prompt marker.
const stageMarkerWindow = 6

// stageUserWindow bounds how many recent user turns are inspected for intent
// tags.
const stageUserWindow = 2

// ClassifyStage infers the funnel position from recent conversation turns and
// the inbound message being handled. It reads the intent tags recorded on
// stored turns:
//
//   - no history at all means the conversation has not started;
//   - an email address in the inbound message is answered as such regardless
//     of history;
//   - an unanswered feedback prompt in the recent window means the next
//     message is probably an evaluation of the seminar;
//   - otherwise the last tagged user turns decide the stage, acceptance and
//     slot picks taking precedence over the generic preference tags;
//   - anything else is free conversation.
func ClassifyStage(turns []models.ConversationTurn, inbound string) models.Stage {
	if len(turns) == 0 {
		return models.StageInitial
	}

	if _, ok := intent.ExtractEmail(inbound); ok {
		return models.StageEmailProvided
	}

	markerIdx := -1
	start := len(turns) - stageMarkerWindow
	if start < 0 {
		start = 0
	}
	for i := start; i < len(turns); i++ {
		if turns[i].Role == models.RoleAssistant && models.Intent(turns[i].Intent) == models.IntentFeedbackPrompt {
			markerIdx = i
		}
	}

	// The marker only wins while it is unanswered: a tagged user turn after
	// it moves the conversation past the prompt.
	if markerIdx >= 0 && !taggedUserTurnAfter(turns, markerIdx) {
		return models.StagePostFeedbackPrompt
	}

	seen := 0
	for i := len(turns) - 1; i >= 0 && seen < stageUserWindow; i-- {
		if turns[i].Role != models.RoleUser {
			continue
		}
		seen++
		it := models.Intent(turns[i].Intent)
		switch {
		case it == models.IntentEmailProvided:
			return models.StagePostEmail
		case it == models.IntentAcceptMeeting, it.IsSlotSelection():
			return models.StagePostMeetingAccept
		case it.IsMeetingPref():
			return models.StagePostMeetingPref
		case it.IsInterest():
			return models.StagePostInterest
		case it.IsFeedback():
			return models.StagePostFeedback
		}
	}
	return models.StageFreeConversation
}

func taggedUserTurnAfter(turns []models.ConversationTurn, idx int) bool {
	for i := idx + 1; i < len(turns); i++ {
		if turns[i].Role == models.RoleUser && turns[i].Intent != "" {
			return true
		}
	}
	return false
}
