package flow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/funnelworks/leadpipe/internal/calendar"
	"github.com/funnelworks/leadpipe/internal/models"
)

// offerSlots computes free meeting slots, persists them as the lead's
// scheduling snapshot and offers them as a choice list. The snapshot pins the
// numbering so a later "slot_2" (or a bare "2") resolves against exactly what
// was offered.
func (f *LeadFlow) offerSlots(ctx context.Context, lead models.Lead) error {
	phone := lead.Phone
	if f.opts.Calendar == nil {
		slog.Warn("LeadFlow.offerSlots: no calendar configured", "phone", phone)
		return f.reply(ctx, phone, scriptNoSlots)
	}

	slots, err := f.opts.Engine.FreeSlots(ctx, f.opts.Calendar, f.now(), f.opts.MeetingDuration)
	if err != nil {
		slog.Error("LeadFlow.offerSlots: availability lookup failed", "phone", phone, "error", err)
		return f.reply(ctx, phone, scriptNoSlots)
	}
	if len(slots) == 0 {
		return f.reply(ctx, phone, scriptNoSlots)
	}
	if len(slots) > models.MaxSnapshotSlots {
		slots = slots[:models.MaxSnapshotSlots]
	}

	snapshot := models.SlotSnapshot{Slots: slots, TakenAt: f.now()}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode slot snapshot: %w", err)
	}
	err = f.store.SaveSessionState(models.SessionState{
		LeadPhone: phone,
		Kind:      models.SessionKindScheduling,
		Data:      string(data),
		ExpiresAt: f.now().Add(f.opts.SessionTTL),
		UpdatedAt: f.now(),
	})
	if err != nil {
		return fmt.Errorf("failed to save slot snapshot: %w", err)
	}

	// Audit marker in the transcript; the snapshot itself lives in session
	// state.
	labels := make([]string, len(slots))
	for i, s := range slots {
		labels[i] = s.Label
	}
	if err := f.recordSystemTurn(phone, "Horários oferecidos: "+strings.Join(labels, ", ")); err != nil {
		slog.Warn("LeadFlow.offerSlots: failed to record audit turn", "phone", phone, "error", err)
	}

	slog.Info("LeadFlow.offerSlots: slots offered", "phone", phone, "count", len(slots))
	return f.sendList(ctx, phone, slotChoiceList(slots), "")
}

// loadSnapshot returns the lead's outstanding slot snapshot, or
// models.ErrSnapshotMissing when none is active (expired or never offered).
func (f *LeadFlow) loadSnapshot(phone string) (models.SlotSnapshot, error) {
	state, err := f.store.GetSessionState(phone, models.SessionKindScheduling)
	if err != nil {
		return models.SlotSnapshot{}, fmt.Errorf("failed to load scheduling state: %w", err)
	}
	if state == nil {
		return models.SlotSnapshot{}, models.ErrSnapshotMissing
	}
	var snapshot models.SlotSnapshot
	if err := json.Unmarshal([]byte(state.Data), &snapshot); err != nil {
		return models.SlotSnapshot{}, fmt.Errorf("failed to decode slot snapshot: %w", err)
	}
	return snapshot, nil
}

// snapshotSlot resolves a 1-based ordinal against the snapshot, returning
// models.ErrSlotOutOfRange when it points past what was offered.
func snapshotSlot(snapshot models.SlotSnapshot, ordinal int) (models.CandidateSlot, error) {
	if ordinal < 1 || ordinal > len(snapshot.Slots) {
		return models.CandidateSlot{}, models.ErrSlotOutOfRange
	}
	return snapshot.Slots[ordinal-1], nil
}

// selectSlot books the Nth slot of the lead's outstanding snapshot.
func (f *LeadFlow) selectSlot(ctx context.Context, lead models.Lead, ordinal int) error {
	phone := lead.Phone

	snapshot, err := f.loadSnapshot(phone)
	if errors.Is(err, models.ErrSnapshotMissing) {
		// Re-offer rather than guessing against a stale numbering.
		slog.Info("LeadFlow.selectSlot: no snapshot, re-offering", "phone", phone, "ordinal", ordinal)
		if err := f.reply(ctx, phone, scriptSnapshotExpired); err != nil {
			return err
		}
		return f.offerSlots(ctx, lead)
	}
	if err != nil {
		return err
	}

	slot, err := snapshotSlot(snapshot, ordinal)
	if errors.Is(err, models.ErrSlotOutOfRange) {
		slog.Info("LeadFlow.selectSlot: ordinal out of range", "phone", phone, "ordinal", ordinal, "offered", len(snapshot.Slots))
		return f.reply(ctx, phone, scriptSlotUnavailable)
	}
	if err != nil {
		return err
	}

	if existing, err := f.store.FindBooking(phone, slot.Start); err != nil {
		return fmt.Errorf("failed to check existing booking: %w", err)
	} else if existing != nil {
		return f.reply(ctx, phone, scriptAlreadyBooked)
	}

	confirmation, err := f.opts.Calendar.Book(ctx, calendar.Event{
		Title:         meetingTitle(lead),
		Description:   meetingDescription(lead),
		Start:         slot.Start,
		End:           slot.End,
		AttendeeEmail: lead.Email,
		AttendeePhone: phone,
	})
	if err != nil {
		// Booking failed; the lead keeps the snapshot and can pick again.
		slog.Error("LeadFlow.selectSlot: calendar booking failed", "phone", phone, "start", slot.Start, "error", err)
		return f.reply(ctx, phone, scriptBookingFailed)
	}

	booking := models.BookedMeeting{
		LeadPhone:     phone,
		EventID:       confirmation.EventID,
		Title:         meetingTitle(lead),
		Start:         slot.Start,
		End:           slot.End,
		AttendeeEmail: lead.Email,
	}
	if err := f.store.SaveBooking(booking); err != nil {
		if errors.Is(err, models.ErrAlreadyScheduled) {
			return f.reply(ctx, phone, scriptAlreadyBooked)
		}
		return fmt.Errorf("failed to save booking: %w", err)
	}

	if err := f.store.DeleteSessionState(phone, models.SessionKindScheduling); err != nil {
		slog.Warn("LeadFlow.selectSlot: failed to clear scheduling state", "phone", phone, "error", err)
	}
	f.advanceStatus(phone, models.StatusScheduled)

	slog.Info("LeadFlow.selectSlot: meeting booked", "phone", phone, "start", slot.Start, "event_id", confirmation.EventID)
	return f.reply(ctx, phone, scriptBookingConfirmed(slot.Label, confirmation.MeetLink))
}

func (f *LeadFlow) recordSystemTurn(phone, text string) error {
	return f.store.AppendTurn(models.ConversationTurn{
		LeadPhone: phone,
		Role:      models.RoleSystem,
		Text:      text,
		Timestamp: f.now(),
	})
}

func meetingTitle(lead models.Lead) string {
	if lead.Name != "" {
		return "Reunião pós-graduação - " + lead.Name
	}
	return "Reunião pós-graduação"
}

func meetingDescription(lead models.Lead) string {
	desc := "Conversa sobre a pós-graduação com condição especial do seminário.\n\nTelefone: " + lead.Phone
	if lead.Email != "" {
		desc += "\nEmail: " + lead.Email
	}
	return desc
}
