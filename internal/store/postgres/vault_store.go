package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arbuthnot-eth/Sui-ski-sub000/internal/domain"
)

// VaultStore implements domain.VaultStore using PostgreSQL. Amounts are
// stored as NUMERIC and travel as decimal strings.
type VaultStore struct {
	pool *pgxpool.Pool
}

// NewVaultStore creates a new VaultStore backed by the given connection pool.
func NewVaultStore(pool *pgxpool.Pool) *VaultStore {
	return &VaultStore{pool: pool}
}

const vaultColumns = `id, object_id, initial_shared_version, owner, beneficiary, fee_recipient,
	domain, years, registration_budget::TEXT, executor_reward::TEXT, protocol_fee::TEXT,
	expires_at, status, executed_by, tx_digest, created_at, updated_at`

// Create inserts a new vault record.
func (s *VaultStore) Create(ctx context.Context, v domain.VaultRecord) error {
	const query = `
		INSERT INTO vaults (
			id, object_id, initial_shared_version, owner, beneficiary, fee_recipient,
			domain, years, registration_budget, executor_reward, protocol_fee,
			expires_at, status, executed_by, tx_digest, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9::NUMERIC, $10::NUMERIC, $11::NUMERIC,
			$12, $13, $14, $15, $16, $17
		)
		ON CONFLICT (id) DO NOTHING`

	tag, err := s.pool.Exec(ctx, query,
		v.ID, v.ObjectID, int64(v.InitialSharedVersion), v.Owner, v.Beneficiary, v.FeeRecipient,
		v.Domain, v.Years, v.RegistrationBudget.String(), v.ExecutorReward.String(), v.ProtocolFee.String(),
		v.ExpiresAt, string(v.Status), v.ExecutedBy, v.TxDigest, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create vault %s: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: create vault %s: %w", v.ID, domain.ErrAlreadyExists)
	}
	return nil
}

// Get returns the vault with the given id.
func (s *VaultStore) Get(ctx context.Context, id string) (domain.VaultRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+vaultColumns+` FROM vaults WHERE id = $1`, id)
	v, err := scanVault(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.VaultRecord{}, fmt.Errorf("postgres: vault %s: %w", id, domain.ErrNotFound)
		}
		return domain.VaultRecord{}, fmt.Errorf("postgres: get vault %s: %w", id, err)
	}
	return v, nil
}

// Update overwrites the mutable fields of an existing vault.
func (s *VaultStore) Update(ctx context.Context, v domain.VaultRecord) error {
	const query = `
		UPDATE vaults SET
			object_id = $2, initial_shared_version = $3, status = $4,
			executed_by = $5, tx_digest = $6, updated_at = $7
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		v.ID, v.ObjectID, int64(v.InitialSharedVersion), string(v.Status),
		v.ExecutedBy, v.TxDigest, v.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update vault %s: %w", v.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update vault %s: %w", v.ID, domain.ErrNotFound)
	}
	return nil
}

// ListByStatus returns vaults in status, oldest first. A non-positive limit
// returns all of them.
func (s *VaultStore) ListByStatus(ctx context.Context, status domain.VaultStatus, limit int) ([]domain.VaultRecord, error) {
	query := `SELECT ` + vaultColumns + ` FROM vaults WHERE status = $1 ORDER BY created_at, id`
	args := []any{string(status)}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list vaults %s: %w", status, err)
	}
	defer rows.Close()

	var out []domain.VaultRecord
	for rows.Next() {
		v, err := scanVault(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan vault: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list vaults rows: %w", err)
	}
	return out, nil
}

func scanVault(row pgx.Row) (domain.VaultRecord, error) {
	var (
		v                   domain.VaultRecord
		isv                 int64
		status              string
		budget, reward, fee string
	)
	err := row.Scan(
		&v.ID, &v.ObjectID, &isv, &v.Owner, &v.Beneficiary, &v.FeeRecipient,
		&v.Domain, &v.Years, &budget, &reward, &fee,
		&v.ExpiresAt, &status, &v.ExecutedBy, &v.TxDigest, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return domain.VaultRecord{}, err
	}
	v.InitialSharedVersion = uint64(isv)
	v.Status = domain.VaultStatus(status)
	for _, f := range []struct {
		dst *domain.Amount
		raw string
	}{{&v.RegistrationBudget, budget}, {&v.ExecutorReward, reward}, {&v.ProtocolFee, fee}} {
		if *f.dst, err = domain.ParseAmount(f.raw); err != nil {
			return domain.VaultRecord{}, fmt.Errorf("vault %s: %w", v.ID, err)
		}
	}
	return v, nil
}

var _ domain.VaultStore = (*VaultStore)(nil)
