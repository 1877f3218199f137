package repository

import (
	"context"
	"sync"
	"time"

	"cashback_backend/internal/claims/domain"
	"cashback_backend/platform/apperr"

	"github.com/google/uuid"
)

// Memory is an in-process Repository for local development and tests. mu only
// guards the maps; updates to one claim are serialised by that claim's row lock
// so fn never runs under mu.
type Memory struct {
	mu     sync.RWMutex
	claims map[uuid.UUID]*domain.Claim
	rows   map[uuid.UUID]*sync.Mutex
	order  []uuid.UUID
	now    func() time.Time
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *Memory {
	return &Memory{
		claims: make(map[uuid.UUID]*domain.Claim),
		rows:   make(map[uuid.UUID]*sync.Mutex),
		now:    time.Now,
	}
}

func (m *Memory) CreateIfAbsent(_ context.Context, claim domain.Claim) (domain.Claim, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range m.order {
		existing := m.claims[id]
		if existing.Identity == claim.Identity && existing.ProductID == claim.ProductID && existing.Status == domain.StatusActive {
			return cloneClaim(*existing), false, nil
		}
	}

	if claim.ID == uuid.Nil {
		claim.ID = uuid.New()
	}
	stored := cloneClaim(claim)
	m.claims[stored.ID] = &stored
	m.rows[stored.ID] = &sync.Mutex{}
	m.order = append(m.order, stored.ID)
	return cloneClaim(stored), true, nil
}

func (m *Memory) GetByID(_ context.Context, id uuid.UUID) (domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	claim, ok := m.claims[id]
	if !ok {
		return domain.Claim{}, apperr.NotFound("claim not found")
	}
	return cloneClaim(*claim), nil
}

func (m *Memory) ListByIdentity(_ context.Context, identity string, statuses ...domain.Status) ([]domain.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]domain.Claim, 0)
	for _, id := range m.order {
		claim := m.claims[id]
		if claim.Identity == identity && statusAllowed(claim.Status, statuses) {
			out = append(out, cloneClaim(*claim))
		}
	}
	return out, nil
}

func (m *Memory) Update(_ context.Context, id uuid.UUID, fn func(*domain.Claim) error) (domain.Claim, error) {
	m.mu.RLock()
	row, ok := m.rows[id]
	m.mu.RUnlock()
	if !ok {
		return domain.Claim{}, apperr.NotFound("claim not found")
	}
	row.Lock()
	defer row.Unlock()

	m.mu.RLock()
	working := cloneClaim(*m.claims[id])
	m.mu.RUnlock()
	version := working.Version

	if err := fn(&working); err != nil {
		return domain.Claim{}, err
	}
	working.Version = version + 1
	working.UpdatedAt = m.now().UTC()

	m.mu.Lock()
	*m.claims[id] = cloneClaim(working)
	m.mu.Unlock()
	return working, nil
}

func cloneClaim(c domain.Claim) domain.Claim {
	out := c
	out.History.Entries = append([]domain.HistoryEntry(nil), c.History.Entries...)
	if c.Payout.Amount != nil {
		amount := *c.Payout.Amount
		out.Payout.Amount = &amount
	}
	return out
}

var _ Repository = (*Memory)(nil)
