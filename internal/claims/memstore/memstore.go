// Package memstore provides an in-memory implementation of claims.Store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"claimsflow/internal/claims"
	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/models"
)

// Store holds claims in memory. Suitable for dev/testing.
type Store struct {
	mu     sync.RWMutex
	claims map[string]*models.Claim
}

func New() *Store {
	return &Store{claims: make(map[string]*models.Claim)}
}

// Get returns a copy of the claim.
func (s *Store) Get(_ context.Context, id string) (*models.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return nil, apperrors.NewNotFoundError("claim", id)
	}
	return c.Clone(), nil
}

func (s *Store) Create(_ context.Context, c *models.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.claims[c.ID]; exists {
		return apperrors.NewValidationFailedError("id", "claim "+c.ID+" already exists")
	}
	s.claims[c.ID] = c.Clone()
	return nil
}

func (s *Store) Save(_ context.Context, c *models.Claim, prevUpdatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, exists := s.claims[c.ID]
	if !exists {
		return apperrors.NewNotFoundError("claim", c.ID)
	}
	if !cur.UpdatedAt.Equal(prevUpdatedAt) {
		return apperrors.NewConflictError("claim", c.ID)
	}
	s.claims[c.ID] = c.Clone()
	return nil
}

// List returns matching claims, newest first.
func (s *Store) List(_ context.Context, f claims.Filter) ([]*models.Claim, error) {
	s.mu.RLock()
	out := make([]*models.Claim, 0, len(s.claims))
	for _, c := range s.claims {
		if f.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
