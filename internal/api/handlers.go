// Package api provides HTTP handlers for LeadPipe endpoints.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/funnelworks/leadpipe/internal/flow"
	"github.com/funnelworks/leadpipe/internal/models"
)

// webhookHandler accepts raw WhatsApp bridge payloads. Malformed or
// irrelevant payloads are acknowledged with status "ignored" so the bridge
// does not retry them.
func (s *Server) webhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var payload map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		slog.Warn("Server.webhookHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusOK, models.Ignored("invalid payload"))
		return
	}

	resp, reason := extractInbound(payload)
	if reason != "" {
		slog.Debug("Server.webhookHandler: payload ignored", "reason", reason)
		writeJSONResponse(w, http.StatusOK, models.Ignored(reason))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultHandleTimeout)
	defer cancel()
	if err := s.dispatch(ctx, resp); err != nil {
		slog.Error("Server.webhookHandler: message handling failed", "from", resp.From, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to process message"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(nil))
}

// messageHandler sends a one-off text message, mainly for manual testing of
// the transport.
func (s *Server) messageHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		To   string `json:"to"`
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.messageHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if req.To == "" || req.Body == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required fields: to, body"))
		return
	}

	if err := s.msgService.SendText(r.Context(), req.To, req.Body); err != nil {
		slog.Error("Server.messageHandler: send failed", "to", req.To, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to send message"))
		return
	}
	slog.Info("Server.messageHandler: message sent", "to", req.To)
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Message sent successfully", nil))
}

// campaignStartHandler opens the funnel conversation with one lead.
func (s *Server) campaignStartHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var target flow.CampaignTarget
	if err := json.NewDecoder(r.Body).Decode(&target); err != nil {
		slog.Warn("Server.campaignStartHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if target.Phone == "" {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: phone"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), DefaultHandleTimeout)
	defer cancel()
	if err := s.flow.StartCampaign(ctx, target.Phone, target.Name); err != nil {
		slog.Error("Server.campaignStartHandler: campaign failed", "phone", target.Phone, "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to start campaign"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("Campaign started", nil))
}

// campaignBatchHandler enrolls many leads with a per-send delay. The batch
// runs in the background; the response acknowledges the queue.
func (s *Server) campaignBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		Targets []flow.CampaignTarget `json:"targets"`
		DelayMS int                   `json:"delay_ms,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		slog.Warn("Server.campaignBatchHandler: failed to decode JSON", "error", err)
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid JSON format"))
		return
	}
	if len(req.Targets) == 0 {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Missing required field: targets"))
		return
	}

	delay := time.Duration(req.DelayMS) * time.Millisecond
	go func() {
		result := s.flow.StartCampaignBatch(context.Background(), req.Targets, delay)
		slog.Info("Server.campaignBatchHandler: batch finished", "sent", result.Sent, "failed", result.Failed)
	}()

	writeJSONResponse(w, http.StatusAccepted, models.SuccessWithMessage("Campaign batch queued",
		map[string]int{"queued": len(req.Targets)}))
}

// leadsHandler lists leads, optionally filtered by funnel status.
func (s *Server) leadsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	status := models.LeadStatus(r.URL.Query().Get("status"))
	if status != "" && !models.IsValidLeadStatus(status) {
		writeJSONResponse(w, http.StatusBadRequest, models.Error("Unknown lead status"))
		return
	}

	leads, err := s.store.ListLeadsByStatus(status)
	if err != nil {
		slog.Error("Server.leadsHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list leads"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(leads))
}

// bookingsHandler lists booked meetings.
func (s *Server) bookingsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	bookings, err := s.store.ListBookings()
	if err != nil {
		slog.Error("Server.bookingsHandler: listing failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list bookings"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(bookings))
}

// statsHandler reports funnel conversion figures.
func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	stats, err := s.store.ConversionStats()
	if err != nil {
		slog.Error("Server.statsHandler: stats failed", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to compute stats"))
		return
	}
	writeJSONResponse(w, http.StatusOK, models.Success(stats))
}

// healthHandler is the liveness probe.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, http.StatusOK, models.SuccessWithMessage("ok", nil))
}
