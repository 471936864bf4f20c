package ports

import "context"

const (
	ActorUser   = "user"
	ActorSystem = "system"
)

const (
	AuditIntegrationCreated      = "integration.created"
	AuditIntegrationDisconnected = "integration.disconnected"
	AuditMappingsReplaced        = "integration.mappings_replaced"
	AuditTokenRefreshed          = "integration.token_refreshed"
	AuditConflictResolved        = "conflict.resolved"
	AuditWebhookTriggered        = "sync.webhook_triggered"
	AuditSyncApplied             = "sync.applied"
	AuditConflictDetected        = "sync.conflict_detected"
	AuditRowUnmatched            = "sync.row_unmatched"
	AuditNotificationFailed      = "sync.notification_failed"
)

type AuditEvent struct {
	ID        uint64
	TenantID  string
	Action    string
	Actor     string
	Metadata  map[string]any
	CreatedAt string
}

// AuditSink is the append-only event log. Every failure path in the sync
// engine leaves a trace here.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent) error
}

type AuditReader interface {
	ListRecent(ctx context.Context, tenantID string, limit int) ([]AuditEvent, error)
}
