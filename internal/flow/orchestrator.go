// Package flow implements the lead dialogue orchestration: campaign opening,
// intent handling, stage-aware free conversation and meeting scheduling.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/funnelworks/leadpipe/internal/calendar"
	"github.com/funnelworks/leadpipe/internal/genai"
	"github.com/funnelworks/leadpipe/internal/intent"
	"github.com/funnelworks/leadpipe/internal/messaging"
	"github.com/funnelworks/leadpipe/internal/models"
	"github.com/funnelworks/leadpipe/internal/schedule"
	"github.com/funnelworks/leadpipe/internal/store"
)

// Defaults for the dialogue flow.
const (
	// DefaultMeetingDuration is the length of a booked call.
	DefaultMeetingDuration = 30 * time.Minute
	// DefaultSessionTTL bounds how long an offered slot snapshot stays valid.
	DefaultSessionTTL = 30 * time.Minute
	// SourceCampaign marks leads enrolled by the post-seminar campaign.
	SourceCampaign = "pos_seminario"
	// SourceInbound marks leads who wrote in before any campaign touched them.
	SourceInbound = "inbound"
)

// Opts holds the flow's collaborators and tuning knobs.
type Opts struct {
	GenAI           genai.ClientInterface
	Calendar        calendar.Service
	Engine          *schedule.Engine
	Knowledge       *KnowledgeBase
	Clock           func() time.Time
	MeetingDuration time.Duration
	SessionTTL      time.Duration
}

// Option configures the flow.
type Option func(*Opts)

// WithGenAI enables generated free-conversation replies. Without it the flow
// answers from scripted fallbacks only.
func WithGenAI(client genai.ClientInterface) Option {
	return func(o *Opts) { o.GenAI = client }
}

// WithCalendar enables meeting scheduling against the given calendar.
func WithCalendar(svc calendar.Service) Option {
	return func(o *Opts) { o.Calendar = svc }
}

// WithEngine overrides the availability engine.
func WithEngine(e *schedule.Engine) Option {
	return func(o *Opts) { o.Engine = e }
}

// WithKnowledge grounds generated replies on a knowledge base.
func WithKnowledge(kb *KnowledgeBase) Option {
	return func(o *Opts) { o.Knowledge = kb }
}

// WithClock overrides the time source (for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// WithMeetingDuration overrides the booked call length.
func WithMeetingDuration(d time.Duration) Option {
	return func(o *Opts) { o.MeetingDuration = d }
}

// WithSessionTTL overrides how long an offered slot snapshot stays valid.
func WithSessionTTL(d time.Duration) Option {
	return func(o *Opts) { o.SessionTTL = d }
}

// LeadFlow drives a lead through the post-seminar funnel. All collaborators
// are injected; per-lead handling is serialized by an internal lock map.
type LeadFlow struct {
	store store.Store
	msg   messaging.Service
	opts  Opts
	locks *leadLocks
}

// NewLeadFlow builds the flow around a store and a messaging transport.
func NewLeadFlow(st store.Store, msg messaging.Service, opts ...Option) *LeadFlow {
	cfg := Opts{
		Clock:           time.Now,
		MeetingDuration: DefaultMeetingDuration,
		SessionTTL:      DefaultSessionTTL,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Engine == nil {
		cfg.Engine = schedule.NewEngine()
	}
	return &LeadFlow{
		store: st,
		msg:   msg,
		opts:  cfg,
		locks: newLeadLocks(),
	}
}

// HandleMessage processes one inbound lead message end to end: it records the
// turn, resolves the intent and dispatches to the matching handler, falling
// back to stage-aware free conversation.
func (f *LeadFlow) HandleMessage(ctx context.Context, resp models.Response) error {
	phone, err := f.msg.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	body := strings.TrimSpace(resp.Body)
	if body == "" {
		return models.ErrEmptyMessage
	}
	if len(body) > models.MaxMessageLength {
		return models.ErrMessageTooLong
	}

	unlock := f.locks.lock(phone)
	defer unlock()

	lead, err := f.getOrCreateLead(phone, resp.Name, SourceInbound)
	if err != nil {
		return err
	}

	it, matched := intent.Map(body)
	if !matched {
		// A bare number is a slot choice while a proposal is outstanding.
		if ord, ok := f.bareOrdinal(phone, body); ok {
			it = models.Intent(fmt.Sprintf("%s%d", models.IntentSlotPrefix, ord))
			matched = true
		}
	}

	turn := models.ConversationTurn{
		LeadPhone: phone,
		Role:      models.RoleUser,
		Text:      body,
		Timestamp: f.now(),
	}
	if matched {
		turn.Intent = string(it)
	}
	if err := f.store.AppendTurn(turn); err != nil {
		return fmt.Errorf("failed to record inbound turn: %w", err)
	}

	if matched {
		slog.Info("LeadFlow.HandleMessage: intent matched", "phone", phone, "intent", it)
		return f.handleIntent(ctx, lead, it, body)
	}
	slog.Debug("LeadFlow.HandleMessage: no intent matched, free conversation", "phone", phone)
	return f.freeConversation(ctx, lead, body)
}

// HandleButton processes a tapped choice-list row, whose ID already carries
// the intent code. A code the mapper does not recognize is handled as a
// regular typed message.
func (f *LeadFlow) HandleButton(ctx context.Context, resp models.Response) error {
	code := strings.TrimSpace(resp.Body)
	if code == "" {
		return models.ErrEmptyMessage
	}
	it, matched := intent.Map(code)
	if !matched {
		slog.Debug("LeadFlow.HandleButton: unknown code, handling as message", "code", code)
		return f.HandleMessage(ctx, resp)
	}

	phone, err := f.msg.ValidateAndCanonicalizeRecipient(resp.From)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	unlock := f.locks.lock(phone)
	defer unlock()

	lead, err := f.getOrCreateLead(phone, resp.Name, SourceInbound)
	if err != nil {
		return err
	}
	if err := f.store.AppendTurn(models.ConversationTurn{
		LeadPhone: phone,
		Role:      models.RoleUser,
		Text:      code,
		Intent:    string(it),
		Timestamp: f.now(),
	}); err != nil {
		return fmt.Errorf("failed to record inbound turn: %w", err)
	}

	slog.Info("LeadFlow.HandleButton: intent resolved", "phone", phone, "intent", it)
	return f.handleIntent(ctx, lead, it, code)
}

// handleIntent dispatches a resolved intent to its funnel step.
func (f *LeadFlow) handleIntent(ctx context.Context, lead models.Lead, it models.Intent, body string) error {
	phone := lead.Phone
	switch {
	case it.IsSlotSelection():
		ord, ok := intent.SlotOrdinal(it)
		if !ok {
			return f.reply(ctx, phone, scriptSlotUnavailable)
		}
		return f.selectSlot(ctx, lead, ord)

	case it == models.IntentFeedbackNegative:
		return f.reply(ctx, phone, scriptFeedbackNegative)

	case it.IsFeedback():
		// Any non-negative evaluation moves the lead forward to the offer.
		f.advanceStatus(phone, models.StatusInterested)
		return f.sendList(ctx, phone, interestChoiceList(), "")

	case it == models.IntentInterestHigh, it == models.IntentInterestMedium:
		f.advanceStatus(phone, models.StatusQualified)
		return f.sendList(ctx, phone, meetingChoiceList(), "")

	case it == models.IntentInterestFuture:
		f.advanceStatus(phone, models.StatusFutureInterest)
		return f.reply(ctx, phone, scriptInterestFuture)

	case it == models.IntentNoInterest:
		f.advanceStatus(phone, models.StatusLost)
		return f.reply(ctx, phone, scriptNoInterest)

	case it == models.IntentAcceptMeeting:
		return f.offerSlots(ctx, lead)

	case it == models.IntentPreferChannel:
		f.advanceStatus(phone, models.StatusTransferredWhatsApp)
		return f.reply(ctx, phone, scriptPreferChannel)

	case it == models.IntentPreferEmail:
		f.advanceStatus(phone, models.StatusWaitingEmail)
		return f.reply(ctx, phone, scriptPreferEmail)

	case it == models.IntentNoTime:
		f.advanceStatus(phone, models.StatusFutureMeeting)
		return f.reply(ctx, phone, scriptNoTime)

	case it == models.IntentEmailProvided:
		email, ok := intent.ExtractEmail(body)
		if !ok {
			return f.reply(ctx, phone, scriptPreferEmail)
		}
		if err := f.store.UpdateLeadEmail(phone, email); err != nil {
			return fmt.Errorf("failed to save lead email: %w", err)
		}
		lead.Email = email
		// An email given after the meeting was accepted unblocks scheduling:
		// offer a fresh slot list with the attendee contact in place.
		if f.acceptedMeeting(phone) {
			return f.offerSlots(ctx, lead)
		}
		return f.reply(ctx, phone, scriptEmailThanks)

	default:
		slog.Warn("LeadFlow.handleIntent: unhandled intent", "phone", phone, "intent", it)
		return f.freeConversation(ctx, lead, body)
	}
}

// freeConversation answers an unclassified message: generated when a client
// is configured, scripted fallback otherwise.
func (f *LeadFlow) freeConversation(ctx context.Context, lead models.Lead, body string) error {
	turns, err := f.store.GetRecentTurns(lead.Phone, stageMarkerWindow+1)
	if err != nil {
		slog.Warn("LeadFlow.freeConversation: failed to load history", "phone", lead.Phone, "error", err)
	}
	// The inbound message was already recorded; classification reads only the
	// history that preceded it, so a first message still lands on the initial
	// stage.
	if n := len(turns); n > 0 && turns[n-1].Role == models.RoleUser && turns[n-1].Text == body {
		turns = turns[:n-1]
	}
	stage := ClassifyStage(turns, body)

	if f.opts.GenAI == nil {
		return f.reply(ctx, lead.Phone, fallbackForStage(stage))
	}

	knowledge := f.opts.Knowledge.Lookup(body)
	reply, err := f.opts.GenAI.Generate(ctx, buildSystemPrompt(stage, knowledge), body)
	if err != nil {
		slog.Warn("LeadFlow.freeConversation: generation failed, using fallback", "phone", lead.Phone, "stage", stage, "error", err)
		reply = fallbackForStage(stage)
	}
	return f.reply(ctx, lead.Phone, reply)
}

// reply sends a text message and records the assistant turn.
func (f *LeadFlow) reply(ctx context.Context, phone, text string) error {
	if err := f.msg.SendText(ctx, phone, text); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return f.recordAssistantTurn(phone, text, "")
}

// sendList sends a choice list and records the assistant turn, optionally
// tagged so the stage classifier can recognize the prompt later.
func (f *LeadFlow) sendList(ctx context.Context, phone string, list messaging.ChoiceList, tag models.Intent) error {
	if err := f.msg.SendChoiceList(ctx, phone, list); err != nil {
		return fmt.Errorf("failed to send choice list: %w", err)
	}
	return f.recordAssistantTurn(phone, list.Body, tag)
}

func (f *LeadFlow) recordAssistantTurn(phone, text string, tag models.Intent) error {
	turn := models.ConversationTurn{
		LeadPhone: phone,
		Role:      models.RoleAssistant,
		Text:      text,
		Intent:    string(tag),
		Timestamp: f.now(),
	}
	if err := f.store.AppendTurn(turn); err != nil {
		return fmt.Errorf("failed to record assistant turn: %w", err)
	}
	return nil
}

// advanceStatus moves the lead forward, treating a disallowed transition as a
// no-op: a repeated answer must not fail the conversation.
func (f *LeadFlow) advanceStatus(phone string, status models.LeadStatus) {
	err := f.store.UpdateLeadStatus(phone, status)
	if err == nil {
		slog.Info("LeadFlow: lead status advanced", "phone", phone, "status", status)
		return
	}
	if errors.Is(err, models.ErrInvalidTransition) {
		slog.Debug("LeadFlow: status transition skipped", "phone", phone, "status", status)
		return
	}
	slog.Error("LeadFlow: status update failed", "phone", phone, "status", status, "error", err)
}

// getOrCreateLead loads the lead, creating it with the given source when it
// is not known yet.
func (f *LeadFlow) getOrCreateLead(phone, name, source string) (models.Lead, error) {
	if len(name) > models.MaxNameLength {
		name = name[:models.MaxNameLength]
	}
	lead, err := f.store.CreateLead(models.Lead{
		Phone:  phone,
		Name:   name,
		Source: source,
		Status: models.StatusNew,
	})
	if err != nil {
		return models.Lead{}, fmt.Errorf("failed to get or create lead: %w", err)
	}
	return lead, nil
}

// acceptedMeeting reports whether the lead accepted the meeting proposal
// within the recent window.
func (f *LeadFlow) acceptedMeeting(phone string) bool {
	turns, err := f.store.GetRecentTurns(phone, stageMarkerWindow)
	if err != nil {
		return false
	}
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == models.RoleUser && models.Intent(turns[i].Intent) == models.IntentAcceptMeeting {
			return true
		}
	}
	return false
}

// bareOrdinal interprets a bare number as a slot ordinal while a scheduling
// session is active.
func (f *LeadFlow) bareOrdinal(phone, body string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(body))
	if err != nil || n < 1 || n > models.MaxSnapshotSlots {
		return 0, false
	}
	state, err := f.store.GetSessionState(phone, models.SessionKindScheduling)
	if err != nil || state == nil {
		return 0, false
	}
	return n, true
}

func (f *LeadFlow) now() time.Time {
	return f.opts.Clock()
}
