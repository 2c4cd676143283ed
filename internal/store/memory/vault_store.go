// Package memory implements the domain store interfaces in process memory.
// It backs single-instance runs without PostgreSQL and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// VaultStore implements domain.VaultStore with a map.
type VaultStore struct {
	mu     sync.RWMutex
	vaults map[string]domain.VaultRecord
}

// NewVaultStore returns an empty store.
func NewVaultStore() *VaultStore {
	return &VaultStore{vaults: make(map[string]domain.VaultRecord)}
}

// Create inserts v. Ids are unique.
func (s *VaultStore) Create(_ context.Context, v domain.VaultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[v.ID]; ok {
		return fmt.Errorf("memory: create vault %s: %w", v.ID, domain.ErrAlreadyExists)
	}
	s.vaults[v.ID] = v
	return nil
}

// Get returns the vault with the given id.
func (s *VaultStore) Get(_ context.Context, id string) (domain.VaultRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[id]
	if !ok {
		return domain.VaultRecord{}, fmt.Errorf("memory: vault %s: %w", id, domain.ErrNotFound)
	}
	return v, nil
}

// Update replaces an existing vault.
func (s *VaultStore) Update(_ context.Context, v domain.VaultRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[v.ID]; !ok {
		return fmt.Errorf("memory: update vault %s: %w", v.ID, domain.ErrNotFound)
	}
	s.vaults[v.ID] = v
	return nil
}

// ListByStatus returns vaults in status, oldest first. A non-positive limit
// returns all of them.
func (s *VaultStore) ListByStatus(_ context.Context, status domain.VaultStatus, limit int) ([]domain.VaultRecord, error) {
	s.mu.RLock()
	out := make([]domain.VaultRecord, 0, len(s.vaults))
	for _, v := range s.vaults {
		if v.Status == status {
			out = append(out, v)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AuditStore keeps audit entries in memory.
type AuditStore struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	now     domain.Clock
}

// NewAuditStore returns an empty audit log. A nil clock means time.Now.
func NewAuditStore(now domain.Clock) *AuditStore {
	if now == nil {
		now = time.Now
	}
	return &AuditStore{now: now}
}

func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, domain.AuditEntry{
		ID:        int64(len(s.entries) + 1),
		Event:     event,
		Detail:    detail,
		CreatedAt: s.now(),
	})
	return nil
}

// List returns entries newest first, honouring every ListOpts field.
func (s *AuditStore) List(_ context.Context, opts domain.ListOpts) ([]domain.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.AuditEntry
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if opts.Since != nil && e.CreatedAt.Before(*opts.Since) {
			continue
		}
		if opts.Until != nil && e.CreatedAt.After(*opts.Until) {
			continue
		}
		out = append(out, e)
	}
	if opts.Offset > 0 {
		if opts.Offset >= len(out) {
			return nil, nil
		}
		out = out[opts.Offset:]
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

var (
	_ domain.VaultStore = (*VaultStore)(nil)
	_ domain.AuditStore = (*AuditStore)(nil)
)
