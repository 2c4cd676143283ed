package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log of built transactions and
// vault lifecycle events.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// NopAuditStore discards every entry. Services default to it until an audit store is supplied.
type NopAuditStore struct{}

func (NopAuditStore) Log(context.Context, string, map[string]any) error { return nil }

func (NopAuditStore) List(context.Context, ListOpts) ([]AuditEntry, error) { return nil, nil }
