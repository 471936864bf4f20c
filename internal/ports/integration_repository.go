package ports

import (
	"context"
	"errors"

	domainsync "ohsync/internal/domain/sync"
)

var ErrIntegrationNotFound = errors.New("integration not found")

type Integration struct {
	ID            string
	TenantID      string
	DevelopmentID string
	Type          domainsync.IntegrationType
	Name          string
	Status        domainsync.IntegrationStatus
	Credentials   []byte
	// SubscriptionKey is a deterministic, non-secret HMAC of the provider
	// subscription id, kept as a plain indexed column so webhook routing is
	// an index lookup instead of a decrypt scan.
	SubscriptionKey string
	SyncDirection   domainsync.Direction
	SyncFrequency   domainsync.Frequency
	ExternalRef     string
	CreatedAt       string
	UpdatedAt       string
}

type IntegrationRepository interface {
	Create(ctx context.Context, integration Integration) error
	// List is tenant scoped; developmentID narrows further when non-empty.
	List(ctx context.Context, tenantID string, developmentID string) ([]Integration, error)
	Get(ctx context.Context, id string, tenantID string) (Integration, error)
	// FindBySubscriptionKey returns connected integrations of the given
	// types matching the derived key. Callers must treat anything other
	// than exactly one row as unroutable.
	FindBySubscriptionKey(ctx context.Context, key string, types []domainsync.IntegrationType) ([]Integration, error)
	// ListScheduled returns connected integrations with scheduled sync
	// frequency, across all tenants, for the periodic sync job.
	ListScheduled(ctx context.Context) ([]Integration, error)
	// ListConnected returns all connected integrations across tenants, for
	// token refresh and subscription renewal jobs.
	ListConnected(ctx context.Context) ([]Integration, error)
	// Disconnect clears credentials and the lookup key and flips status in
	// one write. Returns false when the row is not owned by tenantID.
	Disconnect(ctx context.Context, id string, tenantID string, updatedAt string) (bool, error)
	UpdateCredentials(ctx context.Context, id string, credentials []byte, updatedAt string) error
}

type FieldMapping struct {
	ID            uint64
	IntegrationID string
	ExternalField string
	InternalTable string
	InternalField string
	Transform     string
	// RecordKey marks the identity mapping that selects the internal row.
	RecordKey bool
	Position  int
}

type FieldMappingRepository interface {
	ListByIntegration(ctx context.Context, integrationID string) ([]FieldMapping, error)
	// ReplaceForIntegration swaps the whole mapping version atomically;
	// mappings are never edited in place under an active sync.
	ReplaceForIntegration(ctx context.Context, integrationID string, mappings []FieldMapping) error
}
