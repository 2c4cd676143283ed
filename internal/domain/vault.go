package domain

import (
	"context"
	"fmt"
	"time"
)

// VaultStatus tracks the lifecycle of an escrowed registration budget.
type VaultStatus string

const (
	VaultStatusCreated   VaultStatus = "created"
	VaultStatusCancelled VaultStatus = "cancelled"
	VaultStatusExecuted  VaultStatus = "executed"
	VaultStatusExpired   VaultStatus = "expired"
)

// Terminal reports whether no further transition is possible.
func (s VaultStatus) Terminal() bool {
	return s == VaultStatusCancelled || s == VaultStatusExecuted || s == VaultStatusExpired
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s VaultStatus) CanTransition(next VaultStatus) bool {
	return s == VaultStatusCreated && next.Terminal()
}

// VaultRecord is the local mirror of an on-chain vault.
type VaultRecord struct {
	ID                   string      `json:"id"`
	ObjectID             string      `json:"object_id,omitempty"`
	InitialSharedVersion uint64      `json:"initial_shared_version,omitempty"`
	Owner                string      `json:"owner"`
	Beneficiary          string      `json:"beneficiary"`
	FeeRecipient         string      `json:"fee_recipient"`
	Domain               string      `json:"domain"`
	Years                int         `json:"years"`
	RegistrationBudget   Amount      `json:"registration_budget"`
	ExecutorReward       Amount      `json:"executor_reward"`
	ProtocolFee          Amount      `json:"protocol_fee"`
	ExpiresAt            time.Time   `json:"expires_at"`
	Status               VaultStatus `json:"status"`
	ExecutedBy           string      `json:"executed_by,omitempty"`
	TxDigest             string      `json:"tx_digest,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// TotalEscrowed is budget + reward + fee.
func (v VaultRecord) TotalEscrowed() Amount {
	return SumAmounts(v.RegistrationBudget, v.ExecutorReward, v.ProtocolFee)
}

// Transition moves the record to next, or fails when the lifecycle forbids it.
func (v *VaultRecord) Transition(next VaultStatus, at time.Time) error {
	if v.Status.Terminal() {
		return fmt.Errorf("%w: vault %s is %s", ErrVaultTerminal, v.ID, v.Status)
	}
	if !v.Status.CanTransition(next) {
		return fmt.Errorf("vault %s: cannot move from %s to %s", v.ID, v.Status, next)
	}
	v.Status = next
	v.UpdatedAt = at
	return nil
}

// VaultStore persists vault records.
type VaultStore interface {
	Create(ctx context.Context, v VaultRecord) error
	Get(ctx context.Context, id string) (VaultRecord, error)
	Update(ctx context.Context, v VaultRecord) error
	ListByStatus(ctx context.Context, status VaultStatus, limit int) ([]VaultRecord, error)
}
