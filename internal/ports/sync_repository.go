package ports

import (
	"context"
	"errors"

	domainsync "ohsync/internal/domain/sync"
)

var (
	ErrConflictNotFound        = errors.New("sync conflict not found")
	ErrConflictAlreadyResolved = errors.New("sync conflict already resolved")
	ErrRecordNotFound          = errors.New("internal record not found")
)

// SnapshotStore holds the last value both sides are known to have agreed
// on, keyed per integration/table/field/record. It advances only after a
// clean apply, an independent convergence, or a resolution.
type SnapshotStore interface {
	Get(ctx context.Context, integrationID, table, field, recordID string) (value string, found bool, err error)
	Upsert(ctx context.Context, integrationID, table, field, recordID, value, updatedAt string) error
}

type SyncConflict struct {
	ID            string
	IntegrationID string
	OhTable       string
	OhField       string
	OhRecordID    string
	LocalValue    string
	RemoteValue   string
	BaseValue     string
	Status        domainsync.ConflictStatus
	ResolvedBy    string
	ResolvedAt    string
	CreatedAt     string
}

type ConflictRepository interface {
	Create(ctx context.Context, conflict SyncConflict) (SyncConflict, error)
	// ListPendingByTenant joins through integrations; a conflict id alone
	// is never trusted for tenant scoping.
	ListPendingByTenant(ctx context.Context, tenantID string) ([]SyncConflict, error)
	CountPendingByTenant(ctx context.Context, tenantID string) (int64, error)
	GetByTenant(ctx context.Context, id string, tenantID string) (SyncConflict, error)
	// MarkResolved performs the single conditional write
	// (status='pending' guard). False means another resolution won.
	MarkResolved(ctx context.Context, id string, resolution domainsync.Resolution, resolvedBy, resolvedAt string) (bool, error)
}

// RecordStore is the narrow window onto internal tenant records the sync
// engine is allowed to touch: find a row by a mapped column, read a field,
// write a field.
type RecordStore interface {
	// FindRecordID resolves record identity via the mapping's key column.
	// developmentID scopes the lookup when the integration is bound to one.
	FindRecordID(ctx context.Context, table, field, value, developmentID string) (string, error)
	GetField(ctx context.Context, table, field, recordID string) (string, error)
	SetField(ctx context.Context, table, field, recordID, value string) error
}
