package domain

import "context"

// Notification event types.
const (
	EventOracleFallback = "oracle_fallback"
	EventTxBuilt        = "tx_built"
	EventBuildFailed    = "build_failed"
	EventVaultCreated   = "vault_created"
	EventVaultExecuted  = "vault_executed"
	EventVaultCancelled = "vault_cancelled"
	EventVaultExpired   = "vault_expired"
)

// Notifier delivers operator alerts.
type Notifier interface {
	Notify(ctx context.Context, event, title, message string) error
}

// NopNotifier drops every notification.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, string, string) error { return nil }
