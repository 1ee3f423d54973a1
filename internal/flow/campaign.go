package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/funnelworks/leadpipe/internal/models"
)

// DefaultSendDelay spaces out batch campaign sends so the transport is not
// flooded.
const DefaultSendDelay = 600 * time.Millisecond

// CampaignTarget is one recipient of a campaign batch.
type CampaignTarget struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// CampaignResult summarizes a batch run.
type CampaignResult struct {
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// StartCampaign opens the post-seminar conversation with one lead: it creates
// the lead record, sends the feedback question and marks the lead contacted.
// The assistant turn is tagged so the stage classifier later recognizes the
// outstanding prompt.
func (f *LeadFlow) StartCampaign(ctx context.Context, phone, name string) error {
	canonical, err := f.msg.ValidateAndCanonicalizeRecipient(phone)
	if err != nil {
		return fmt.Errorf("invalid campaign target: %w", err)
	}

	unlock := f.locks.lock(canonical)
	defer unlock()

	lead, err := f.getOrCreateLead(canonical, name, SourceCampaign)
	if err != nil {
		return err
	}

	list := feedbackChoiceList(lead.Name)
	if err := f.sendList(ctx, canonical, list, models.IntentFeedbackPrompt); err != nil {
		return err
	}
	f.advanceStatus(canonical, models.StatusContacted)

	slog.Info("LeadFlow.StartCampaign: lead contacted", "phone", canonical)
	return nil
}

// StartCampaignBatch runs StartCampaign for each target with a delay between
// sends. A zero or negative delay falls back to DefaultSendDelay. Failures
// are collected, not fatal.
func (f *LeadFlow) StartCampaignBatch(ctx context.Context, targets []CampaignTarget, delay time.Duration) CampaignResult {
	if delay <= 0 {
		delay = DefaultSendDelay
	}

	var result CampaignResult
	for i, target := range targets {
		if err := f.StartCampaign(ctx, target.Phone, target.Name); err != nil {
			slog.Warn("LeadFlow.StartCampaignBatch: send failed", "phone", target.Phone, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", target.Phone, err))
		} else {
			result.Sent++
		}

		if i < len(targets)-1 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				slog.Warn("LeadFlow.StartCampaignBatch: cancelled", "sent", result.Sent, "remaining", len(targets)-i-1)
				return result
			}
		}
	}
	slog.Info("LeadFlow.StartCampaignBatch: batch complete", "sent", result.Sent, "failed", result.Failed)
	return result
}

// followUpCooldown keeps follow-ups from nagging a lead who was already
// pinged recently.
const followUpCooldown = 48 * time.Hour

// SendFollowUps re-engages leads who postponed the meeting. It is meant to
// run on a schedule; leads touched within the cooldown window are skipped.
func (f *LeadFlow) SendFollowUps(ctx context.Context) CampaignResult {
	leads, err := f.store.ListLeadsByStatus(models.StatusFutureMeeting)
	if err != nil {
		slog.Error("LeadFlow.SendFollowUps: listing failed", "error", err)
		return CampaignResult{}
	}

	var result CampaignResult
	cutoff := f.now().Add(-followUpCooldown)
	for _, lead := range leads {
		if lead.LastInteraction.After(cutoff) {
			continue
		}
		unlock := f.locks.lock(lead.Phone)
		err := f.reply(ctx, lead.Phone, scriptFollowUp)
		unlock()
		if err != nil {
			slog.Warn("LeadFlow.SendFollowUps: send failed", "phone", lead.Phone, "error", err)
			result.Failed++
			continue
		}
		result.Sent++
	}
	if result.Sent > 0 || result.Failed > 0 {
		slog.Info("LeadFlow.SendFollowUps: follow-ups sent", "sent", result.Sent, "failed", result.Failed)
	}
	return result
}
