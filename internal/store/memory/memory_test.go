package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

func TestVaultStore(t *testing.T) {
	ctx := context.Background()
	s := NewVaultStore()
	t0 := time.Unix(1_700_000_000, 0)

	require.NoError(t, s.Create(ctx, domain.VaultRecord{ID: "b", Status: domain.VaultStatusCreated, CreatedAt: t0.Add(time.Second)}))
	require.NoError(t, s.Create(ctx, domain.VaultRecord{ID: "a", Status: domain.VaultStatusCreated, CreatedAt: t0}))
	require.ErrorIs(t, s.Create(ctx, domain.VaultRecord{ID: "a"}), domain.ErrAlreadyExists)

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.ErrorIs(t, s.Update(ctx, domain.VaultRecord{ID: "missing"}), domain.ErrNotFound)

	v, err := s.Get(ctx, "b")
	require.NoError(t, err)
	v.Status = domain.VaultStatusExecuted
	require.NoError(t, s.Update(ctx, v))

	created, err := s.ListByStatus(ctx, domain.VaultStatusCreated, 0)
	require.NoError(t, err)
	require.Len(t, created, 1)
	require.Equal(t, "a", created[0].ID)

	require.NoError(t, s.Create(ctx, domain.VaultRecord{ID: "c", Status: domain.VaultStatusCreated, CreatedAt: t0.Add(-time.Second)}))
	limited, err := s.ListByStatus(ctx, domain.VaultStatusCreated, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	require.Equal(t, "c", limited[0].ID)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	s := NewAuditStore(func() time.Time { return now })

	require.NoError(t, s.Log(ctx, domain.EventTxBuilt, map[string]any{"n": 1}))
	now = now.Add(time.Minute)
	require.NoError(t, s.Log(ctx, domain.EventVaultCreated, nil))

	all, err := s.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Equal(t, domain.EventVaultCreated, all[0].Event)

	since := now
	recent, err := s.List(ctx, domain.ListOpts{Since: &since})
	require.NoError(t, err)
	require.Len(t, recent, 1)

	page, err := s.List(ctx, domain.ListOpts{Offset: 1, Limit: 5})
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, domain.EventTxBuilt, page[0].Event)
}
