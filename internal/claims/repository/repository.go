// Package repository persists claims. Every mutation goes through Update,
// which performs an atomic read-modify-write on a single claim row.
package repository

import (
	"context"

	"cashback_backend/internal/claims/domain"

	"github.com/google/uuid"
)

// Repository is the claim store contract.
type Repository interface {
	// CreateIfAbsent inserts claim unless an active claim already exists for
	// its (identity, product) pair, in which case the existing row is returned
	// and created is false.
	CreateIfAbsent(ctx context.Context, claim domain.Claim) (existing domain.Claim, created bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Claim, error)
	// ListByIdentity returns claims in creation order, optionally filtered by status.
	ListByIdentity(ctx context.Context, identity string, statuses ...domain.Status) ([]domain.Claim, error)
	// Update loads the claim, applies fn and persists the result atomically.
	// If fn returns an error nothing is written.
	Update(ctx context.Context, id uuid.UUID, fn func(*domain.Claim) error) (domain.Claim, error)
}

func statusAllowed(status domain.Status, statuses []domain.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, s := range statuses {
		if s == status {
			return true
		}
	}
	return false
}
