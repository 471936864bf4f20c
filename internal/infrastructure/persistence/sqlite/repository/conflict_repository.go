package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

type ConflictRepository struct {
	db *gorm.DB
}

var _ ports.ConflictRepository = (*ConflictRepository)(nil)

func NewConflictRepository(db *gorm.DB) *ConflictRepository {
	return &ConflictRepository{db: db}
}

func (r *ConflictRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return r.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (r *ConflictRepository) Create(ctx context.Context, conflict ports.SyncConflict) (ports.SyncConflict, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.SyncConflict{}, err
	}

	if conflict.ID == "" {
		conflict.ID = uuid.NewString()
	}
	if conflict.Status == "" {
		conflict.Status = domainsync.ConflictPending
	}

	row := model.SyncConflict{
		ID:            conflict.ID,
		IntegrationID: conflict.IntegrationID,
		OhTable:       conflict.OhTable,
		OhField:       conflict.OhField,
		OhRecordID:    conflict.OhRecordID,
		LocalValue:    conflict.LocalValue,
		RemoteValue:   conflict.RemoteValue,
		BaseValue:     conflict.BaseValue,
		Status:        string(conflict.Status),
		CreatedAt:     conflict.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.SyncConflict{}, errs.Wrap(err, "insert sync conflict")
	}
	return mapConflict(row), nil
}

// tenantScope joins conflicts to their integration so results are always
// filtered by the integration's owner, never by conflict id alone.
func tenantScope(db *gorm.DB, tenantID string) *gorm.DB {
	return db.Model(&model.SyncConflict{}).
		Joins("JOIN integrations ON integrations.id = integration_conflicts.integration_id").
		Where("integrations.tenant_id = ?", tenantID)
}

func (r *ConflictRepository) ListPendingByTenant(ctx context.Context, tenantID string) ([]ports.SyncConflict, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.SyncConflict
	if err := tenantScope(db, tenantID).
		Where("integration_conflicts.status = ?", string(domainsync.ConflictPending)).
		Order("integration_conflicts.created_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query pending conflicts")
	}

	items := make([]ports.SyncConflict, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapConflict(row))
	}
	return items, nil
}

func (r *ConflictRepository) CountPendingByTenant(ctx context.Context, tenantID string) (int64, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := tenantScope(db, tenantID).
		Where("integration_conflicts.status = ?", string(domainsync.ConflictPending)).
		Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count pending conflicts")
	}
	return count, nil
}

func (r *ConflictRepository) GetByTenant(ctx context.Context, id string, tenantID string) (ports.SyncConflict, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.SyncConflict{}, err
	}

	var row model.SyncConflict
	if err := tenantScope(db, tenantID).
		Where("integration_conflicts.id = ?", id).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.SyncConflict{}, ports.ErrConflictNotFound
		}
		return ports.SyncConflict{}, errs.Wrap(err, "query conflict")
	}
	return mapConflict(row), nil
}

// MarkResolved is the sole concurrency-control point for conflicts: a
// single conditional UPDATE guarded on status='pending'. Of two racing
// resolutions exactly one sees RowsAffected > 0.
func (r *ConflictRepository) MarkResolved(ctx context.Context, id string, resolution domainsync.Resolution, resolvedBy, resolvedAt string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	result := db.Model(&model.SyncConflict{}).
		Where("id = ? AND status = ?", id, string(domainsync.ConflictPending)).
		Updates(map[string]any{
			"status":      string(resolution),
			"resolved_by": resolvedBy,
			"resolved_at": resolvedAt,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "resolve conflict")
	}
	return result.RowsAffected > 0, nil
}

func mapConflict(row model.SyncConflict) ports.SyncConflict {
	return ports.SyncConflict{
		ID:            row.ID,
		IntegrationID: row.IntegrationID,
		OhTable:       row.OhTable,
		OhField:       row.OhField,
		OhRecordID:    row.OhRecordID,
		LocalValue:    row.LocalValue,
		RemoteValue:   row.RemoteValue,
		BaseValue:     row.BaseValue,
		Status:        domainsync.ConflictStatus(row.Status),
		ResolvedBy:    row.ResolvedBy,
		ResolvedAt:    row.ResolvedAt,
		CreatedAt:     row.CreatedAt,
	}
}
