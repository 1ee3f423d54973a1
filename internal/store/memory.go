package store

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/funnelworks/leadpipe/internal/models"
)

// InMemoryStore keeps everything in process memory. It backs tests and
// ephemeral deployments; semantics match the database stores.
type InMemoryStore struct {
	mu       sync.RWMutex
	leads    map[string]models.Lead             // phone -> lead
	turns    map[string][]models.ConversationTurn // phone -> turns, oldest first
	bookings []models.BookedMeeting
	sessions map[string]models.SessionState // phone + "\x00" + kind
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		leads:    make(map[string]models.Lead),
		turns:    make(map[string][]models.ConversationTurn),
		sessions: make(map[string]models.SessionState),
	}
}

func sessionKey(phone, kind string) string {
	return phone + "\x00" + kind
}

func (s *InMemoryStore) CreateLead(lead models.Lead) (models.Lead, error) {
	if lead.Phone == "" {
		return models.Lead{}, models.ErrEmptyPhone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.leads[lead.Phone]; ok {
		slog.Debug("InMemoryStore.CreateLead: lead exists", "phone", lead.Phone)
		return existing, nil
	}
	now := time.Now()
	lead.ID = uuid.NewString()
	lead.Status = models.StatusNew
	lead.FirstContact = now
	lead.LastInteraction = now
	lead.CreatedAt = now
	lead.UpdatedAt = now
	s.leads[lead.Phone] = lead
	slog.Debug("InMemoryStore.CreateLead: lead created", "phone", lead.Phone, "name", lead.Name)
	return lead, nil
}

func (s *InMemoryStore) GetLead(phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	lead, ok := s.leads[phone]
	if !ok {
		return nil, nil
	}
	return &lead, nil
}

func (s *InMemoryStore) UpdateLeadStatus(phone string, status models.LeadStatus) error {
	if !models.IsValidLeadStatus(status) {
		return models.ErrInvalidStatus
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	if lead.Status == status {
		return nil
	}
	if !models.CanTransition(lead.Status, status) {
		slog.Warn("InMemoryStore.UpdateLeadStatus: transition rejected", "phone", phone, "from", lead.Status, "to", status)
		return models.ErrInvalidTransition
	}
	lead.Status = status
	lead.UpdatedAt = time.Now()
	s.leads[phone] = lead
	slog.Debug("InMemoryStore.UpdateLeadStatus: status updated", "phone", phone, "status", status)
	return nil
}

func (s *InMemoryStore) UpdateLeadEmail(phone, email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.Email = email
	lead.UpdatedAt = time.Now()
	s.leads[phone] = lead
	return nil
}

func (s *InMemoryStore) SetLastIntent(phone string, intent models.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	lead, ok := s.leads[phone]
	if !ok {
		return models.ErrLeadNotFound
	}
	lead.LastIntent = string(intent)
	lead.LastInteraction = time.Now()
	lead.UpdatedAt = lead.LastInteraction
	s.leads[phone] = lead
	return nil
}

func (s *InMemoryStore) ListLeadsByStatus(status models.LeadStatus) ([]models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var leads []models.Lead
	for _, l := range s.leads {
		if status == "" || l.Status == status {
			leads = append(leads, l)
		}
	}
	sort.Slice(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	return leads, nil
}

func (s *InMemoryStore) AppendTurn(turn models.ConversationTurn) error {
	if err := turn.Validate(); err != nil {
		return err
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[turn.LeadPhone] = append(s.turns[turn.LeadPhone], turn)
	if lead, ok := s.leads[turn.LeadPhone]; ok {
		lead.LastInteraction = turn.Timestamp
		if turn.Intent != "" {
			lead.LastIntent = turn.Intent
		}
		lead.UpdatedAt = time.Now()
		s.leads[turn.LeadPhone] = lead
	}
	return nil
}

func (s *InMemoryStore) GetRecentTurns(phone string, limit int) ([]models.ConversationTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.turns[phone]
	if limit <= 0 || limit > len(all) {
		limit = len(all)
	}
	recent := all[len(all)-limit:]
	out := make([]models.ConversationTurn, len(recent))
	copy(out, recent)
	return out, nil
}

func (s *InMemoryStore) SaveBooking(booking models.BookedMeeting) error {
	if booking.LeadPhone == "" {
		return models.ErrEmptyPhone
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.bookings {
		if b.LeadPhone == booking.LeadPhone && b.Start.Equal(booking.Start) {
			return models.ErrAlreadyScheduled
		}
	}
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = time.Now()
	}
	s.bookings = append(s.bookings, booking)
	slog.Debug("InMemoryStore.SaveBooking: booking saved", "phone", booking.LeadPhone, "start", booking.Start)
	return nil
}

func (s *InMemoryStore) FindBooking(phone string, start time.Time) (*models.BookedMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.bookings {
		if b.LeadPhone == phone && b.Start.Equal(start) {
			found := b
			return &found, nil
		}
	}
	return nil, nil
}

func (s *InMemoryStore) ListBookings() ([]models.BookedMeeting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.BookedMeeting, len(s.bookings))
	copy(out, s.bookings)
	return out, nil
}

func (s *InMemoryStore) SaveSessionState(state models.SessionState) error {
	if state.LeadPhone == "" {
		return models.ErrEmptyPhone
	}
	if state.Kind == "" {
		return fmt.Errorf("session state kind cannot be empty")
	}
	state.UpdatedAt = time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionKey(state.LeadPhone, state.Kind)] = state
	return nil
}

func (s *InMemoryStore) GetSessionState(phone, kind string) (*models.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.sessions[sessionKey(phone, kind)]
	if !ok {
		return nil, nil
	}
	if !state.ExpiresAt.IsZero() && time.Now().After(state.ExpiresAt) {
		return nil, nil
	}
	return &state, nil
}

func (s *InMemoryStore) DeleteSessionState(phone, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionKey(phone, kind))
	return nil
}

func (s *InMemoryStore) ConversionStats() (models.ConversionStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var stats models.ConversionStats
	for _, l := range s.leads {
		stats.TotalLeads++
		if l.Status != models.StatusNew {
			stats.Contacted++
		}
		if l.Status == models.StatusQualified {
			stats.Qualified++
		}
		if l.Status == models.StatusScheduled {
			stats.Scheduled++
		}
	}
	if stats.TotalLeads > 0 {
		stats.ContactRate = float64(stats.Contacted) / float64(stats.TotalLeads) * 100
		stats.ConversionRate = float64(stats.Scheduled) / float64(stats.TotalLeads) * 100
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
