package flow

import (
	"testing"
	"time"

	"github.com/funnelworks/leadpipe/internal/models"
)

func turn(role models.TurnRole, text string, tag models.Intent) models.ConversationTurn {
	return models.ConversationTurn{
		LeadPhone: testPhone,
		Role:      role,
		Text:      text,
		Intent:    string(tag),
		Timestamp: time.Now(),
	}
}

func TestClassifyStage(t *testing.T) {
	cases := []struct {
		name  string
		turns []models.ConversationTurn
		want  models.Stage
	}{
		{
			name:  "no history",
			turns: nil,
			want:  models.StageInitial,
		},
		{
			name: "unanswered feedback prompt",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "O que você achou?", models.IntentFeedbackPrompt),
			},
			want: models.StagePostFeedbackPrompt,
		},
		{
			name: "feedback prompt still open after untagged chatter",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "O que você achou?", models.IntentFeedbackPrompt),
				turn(models.RoleUser, "oi", ""),
			},
			want: models.StagePostFeedbackPrompt,
		},
		{
			name: "feedback answered",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "O que você achou?", models.IntentFeedbackPrompt),
				turn(models.RoleUser, "Gostei muito!", models.IntentFeedbackPositive),
			},
			want: models.StagePostFeedback,
		},
		{
			name: "interest expressed",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "Tenho interesse", models.IntentInterestMedium),
			},
			want: models.StagePostInterest,
		},
		{
			name: "meeting preference answered",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "Prefiro e-mail", models.IntentPreferEmail),
			},
			want: models.StagePostMeetingPref,
		},
		{
			name: "meeting accepted",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "Sim, quero uma reunião!", models.IntentAcceptMeeting),
			},
			want: models.StagePostMeetingAccept,
		},
		{
			name: "slot selected",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "slot_2", "slot_2"),
			},
			want: models.StagePostMeetingAccept,
		},
		{
			name: "email provided",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "maria@example.com", models.IntentEmailProvided),
			},
			want: models.StagePostEmail,
		},
		{
			name: "untagged history only",
			turns: []models.ConversationTurn{
				turn(models.RoleUser, "oi", ""),
				turn(models.RoleAssistant, "olá!", ""),
				turn(models.RoleUser, "quanto custa?", ""),
			},
			want: models.StageFreeConversation,
		},
		{
			name: "marker pushed out of the window",
			turns: []models.ConversationTurn{
				turn(models.RoleAssistant, "O que você achou?", models.IntentFeedbackPrompt),
				turn(models.RoleUser, "a", ""),
				turn(models.RoleAssistant, "b", ""),
				turn(models.RoleUser, "c", ""),
				turn(models.RoleAssistant, "d", ""),
				turn(models.RoleUser, "e", ""),
				turn(models.RoleAssistant, "f", ""),
			},
			want: models.StageFreeConversation,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ClassifyStage(c.turns, ""); got != c.want {
				t.Errorf("ClassifyStage = %q, want %q", got, c.want)
			}
		})
	}
}

func TestClassifyStageInboundEmail(t *testing.T) {
	turns := []models.ConversationTurn{
		turn(models.RoleAssistant, "Qual o seu e-mail?", ""),
	}
	if got := ClassifyStage(turns, "meu e-mail é maria@example.com"); got != models.StageEmailProvided {
		t.Errorf("ClassifyStage = %q, want email_provided", got)
	}
	// An empty history still reads as a fresh conversation even when the
	// first message carries an address.
	if got := ClassifyStage(nil, "maria@example.com"); got != models.StageInitial {
		t.Errorf("ClassifyStage = %q, want initial", got)
	}
}

func TestClassifyStageIntentWindow(t *testing.T) {
	// The interest tag is more than two user turns back, so it no longer
	// drives the stage.
	turns := []models.ConversationTurn{
		turn(models.RoleUser, "Tenho interesse", models.IntentInterestMedium),
		turn(models.RoleUser, "oi", ""),
		turn(models.RoleUser, "tudo bem?", ""),
	}
	if got := ClassifyStage(turns, ""); got != models.StageFreeConversation {
		t.Errorf("ClassifyStage = %q, want free_conversation", got)
	}
}
