// Package api provides HTTP handlers and the main API server logic for
// LeadPipe.
//
// It exposes endpoints for inbound WhatsApp webhooks, campaign control and
// funnel reporting, and bridges the messaging transport's response channel
// into the dialogue flow.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/funnelworks/leadpipe/internal/flow"
	"github.com/funnelworks/leadpipe/internal/messaging"
	"github.com/funnelworks/leadpipe/internal/models"
	"github.com/funnelworks/leadpipe/internal/store"
)

// Defaults for the API server.
const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = ":8080"
	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second
	// DefaultHandleTimeout bounds processing of one inbound message.
	DefaultHandleTimeout = 30 * time.Second
)

// Opts holds configuration options for the API server.
type Opts struct {
	Addr string
}

// Option defines a configuration option for the API server.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// Server wires the store, the messaging transport and the dialogue flow
// behind the HTTP surface.
type Server struct {
	store      store.Store
	msgService messaging.Service
	flow       *flow.LeadFlow
	addr       string
}

// NewServer builds the API server around its collaborators.
func NewServer(st store.Store, msgService messaging.Service, leadFlow *flow.LeadFlow, opts ...Option) *Server {
	cfg := Opts{Addr: DefaultAddr}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Server{
		store:      st,
		msgService: msgService,
		flow:       leadFlow,
		addr:       cfg.Addr,
	}
}

// Routes builds the HTTP mux. The Twilio webhook is only mounted when the
// transport is Twilio-backed.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", s.webhookHandler)
	mux.HandleFunc("/message", s.messageHandler)
	mux.HandleFunc("/campaign/start", s.campaignStartHandler)
	mux.HandleFunc("/campaign/batch", s.campaignBatchHandler)
	mux.HandleFunc("/leads", s.leadsHandler)
	mux.HandleFunc("/bookings", s.bookingsHandler)
	mux.HandleFunc("/stats", s.statsHandler)
	mux.HandleFunc("/health", s.healthHandler)

	if ts, ok := s.msgService.(*messaging.TwilioService); ok {
		mux.HandleFunc("/webhook/twilio", ts.WebhookHandler)
		slog.Info("Server.Routes: Twilio webhook mounted", "path", "/webhook/twilio")
	}
	return mux
}

// Run starts the messaging transport, the response pump and the HTTP server,
// and blocks until the context is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context) error {
	if err := s.msgService.Start(ctx); err != nil {
		return err
	}
	go s.pumpResponses(ctx)

	srv := &http.Server{Addr: s.addr, Handler: s.Routes()}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("LeadPipe API listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		slog.Info("Server.Run: shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server.Run: shutdown failed", "error", err)
		}
		if err := s.msgService.Stop(); err != nil {
			slog.Error("Server.Run: failed to stop messaging service", "error", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// dispatch routes an inbound response to the flow: tapped list rows go
// through the button path, everything else is handled as typed text.
func (s *Server) dispatch(ctx context.Context, resp models.Response) error {
	if resp.Button {
		return s.flow.HandleButton(ctx, resp)
	}
	return s.flow.HandleMessage(ctx, resp)
}

// pumpResponses feeds transport responses into the dialogue flow.
func (s *Server) pumpResponses(ctx context.Context) {
	responses := s.msgService.Responses()
	if responses == nil {
		slog.Debug("Server.pumpResponses: transport has no response channel")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case resp, ok := <-responses:
			if !ok {
				slog.Debug("Server.pumpResponses: response channel closed")
				return
			}
			handleCtx, cancel := context.WithTimeout(ctx, DefaultHandleTimeout)
			if err := s.dispatch(handleCtx, resp); err != nil {
				slog.Error("Server.pumpResponses: message handling failed", "from", resp.From, "error", err)
			}
			cancel()
		}
	}
}
