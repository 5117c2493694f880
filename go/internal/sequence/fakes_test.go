package sequence

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/outreach/go/internal/apperrors"
	"github.com/mcdev12/outreach/go/internal/compliance"
	"github.com/mcdev12/outreach/go/internal/delivery"
	"github.com/mcdev12/outreach/go/internal/models"
)

// memStore is an in-memory sequence store that mirrors the conditional
// updates of the SQL repository.
type memStore struct {
	mu          sync.Mutex
	sequences   map[uuid.UUID]*models.Sequence
	steps       map[uuid.UUID][]models.SequenceStep
	enrollments map[uuid.UUID]*models.SequenceEnrollment
	contacts    map[uuid.UUID]*models.Contact
	deliveries  []models.Delivery
	sent        int
	events      []string
	activities  []models.Activity
}

func newMemStore() *memStore {
	return &memStore{
		sequences:   map[uuid.UUID]*models.Sequence{},
		steps:       map[uuid.UUID][]models.SequenceStep{},
		enrollments: map[uuid.UUID]*models.SequenceEnrollment{},
		contacts:    map[uuid.UUID]*models.Contact{},
	}
}

func (s *memStore) addSequence(orgID uuid.UUID, active bool, delays ...int) *models.Sequence {
	seq := &models.Sequence{ID: uuid.New(), OrgID: orgID, Name: "Onboarding", Active: active}
	s.sequences[seq.ID] = seq
	for i, d := range delays {
		s.steps[seq.ID] = append(s.steps[seq.ID], models.SequenceStep{
			ID:           uuid.New(),
			SequenceID:   seq.ID,
			Position:     i + 1,
			Channel:      models.ChannelEmail,
			DelayMinutes: d,
			Subject:      "Step {{first_name}}",
			Body:         "Hello {{first_name}}",
		})
	}
	return seq
}

func (s *memStore) addContact(orgID uuid.UUID) *models.Contact {
	c := &models.Contact{
		ID:           uuid.New(),
		OrgID:        orgID,
		FirstName:    "Grace",
		Email:        "grace@example.com",
		EmailConsent: true,
	}
	s.contacts[c.ID] = c
	return c
}

func (s *memStore) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.enrollments {
		if e.Status == models.EnrollmentStatusActive {
			n++
		}
	}
	return n
}

func (s *memStore) GetSequence(_ context.Context, id uuid.UUID) (*models.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.sequences[id]
	if !ok {
		return nil, apperrors.NotFound("sequence", id)
	}
	cp := *seq
	return &cp, nil
}

func (s *memStore) GetStep(_ context.Context, sequenceID uuid.UUID, position int) (*models.SequenceStep, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range s.steps[sequenceID] {
		if st.Position == position {
			cp := st
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) CreateEnrollment(_ context.Context, e models.SequenceEnrollment) (*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.enrollments {
		if existing.SequenceID == e.SequenceID && existing.ContactID == e.ContactID && existing.Status == models.EnrollmentStatusActive {
			return nil, apperrors.Conflict("duplicate")
		}
	}
	e.ID = uuid.New()
	s.enrollments[e.ID] = &e
	cp := e
	return &cp, nil
}

func (s *memStore) GetEnrollment(_ context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, apperrors.NotFound("enrollment", id)
	}
	cp := *e
	return &cp, nil
}

func (s *memStore) GetActiveEnrollment(_ context.Context, sequenceID, contactID uuid.UUID) (*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.enrollments {
		if e.SequenceID == sequenceID && e.ContactID == contactID && e.Status == models.EnrollmentStatusActive {
			cp := *e
			return &cp, nil
		}
	}
	return nil, nil
}

func (s *memStore) ClaimDue(_ context.Context, now, leaseUntil time.Time, limit int) ([]models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.SequenceEnrollment
	for _, e := range s.enrollments {
		if len(out) == limit {
			break
		}
		if e.Status != models.EnrollmentStatusActive || e.NextStepAt == nil || e.NextStepAt.After(now) {
			continue
		}
		lease := leaseUntil
		e.NextStepAt = &lease
		out = append(out, *e)
	}
	return out, nil
}

func (s *memStore) Advance(_ context.Context, id uuid.UUID, fromStep, toStep int, nextStepAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.enrollments[id]
	if e.Status != models.EnrollmentStatusActive || e.CurrentStep != fromStep {
		return false, nil
	}
	e.CurrentStep = toStep
	e.NextStepAt = &nextStepAt
	return true, nil
}

func (s *memStore) Complete(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.enrollments[id]
	if e.Status != models.EnrollmentStatusActive {
		return false, nil
	}
	e.Status = models.EnrollmentStatusCompleted
	e.CompletedAt = &at
	e.NextStepAt = nil
	return true, nil
}

func (s *memStore) Cancel(_ context.Context, id uuid.UUID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.enrollments[id]
	if e.Status != models.EnrollmentStatusActive {
		return false, nil
	}
	e.Status = models.EnrollmentStatusCancelled
	e.CancelReason = reason
	e.NextStepAt = nil
	return true, nil
}

func (s *memStore) GetContact(_ context.Context, id uuid.UUID) (*models.Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contacts[id]
	if !ok {
		return nil, apperrors.NotFound("contact", id)
	}
	cp := *c
	return &cp, nil
}

func (s *memStore) RecordAdHoc(_ context.Context, d models.Delivery) (*models.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = uuid.New()
	s.deliveries = append(s.deliveries, d)
	return &d, nil
}

func (s *memStore) Increment(_ context.Context, _ uuid.UUID, _ time.Time, column models.StatColumn, n int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if column == models.StatSent {
		s.sent += n
	}
	return nil
}

func (s *memStore) Emit(_ context.Context, _ uuid.UUID, eventType string, _ any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, eventType)
	return nil
}

func (s *memStore) Record(_ context.Context, a models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activities = append(s.activities, a)
}

type registryGuard struct {
	blocked map[uuid.UUID]bool
}

func (g registryGuard) BlockReason(_ context.Context, c models.Contact) (compliance.Reason, error) {
	if c.Merged() {
		return compliance.ReasonMerged, nil
	}
	if c.DoNotContact {
		return compliance.ReasonDoNotContact, nil
	}
	if g.blocked[c.ID] {
		return compliance.ReasonDNCRegistry, nil
	}
	return compliance.ReasonNone, nil
}

type stubSender struct {
	mu   sync.Mutex
	msgs []delivery.Message
	err  string
}

func (s *stubSender) Send(_ context.Context, msg delivery.Message) delivery.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	if s.err != "" {
		return delivery.Result{Error: s.err}
	}
	return delivery.Result{Success: true, ProviderMessageID: uuid.NewString()}
}
