package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

// AuditRepository is append-only: Emit inserts, ListRecent reads, nothing
// else touches audit rows.
type AuditRepository struct {
	db *gorm.DB
}

var (
	_ ports.AuditSink   = (*AuditRepository)(nil)
	_ ports.AuditReader = (*AuditRepository)(nil)
)

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *AuditRepository) Emit(ctx context.Context, event ports.AuditEvent) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	metadata := ""
	if len(event.Metadata) > 0 {
		raw, err := json.Marshal(event.Metadata)
		if err != nil {
			return errs.Wrap(err, "encode audit metadata")
		}
		metadata = string(raw)
	}

	row := model.AuditEvent{
		TenantID:  event.TenantID,
		Action:    event.Action,
		Actor:     event.Actor,
		Metadata:  metadata,
		CreatedAt: event.CreatedAt,
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert audit event")
	}
	return nil
}

func (r *AuditRepository) ListRecent(ctx context.Context, tenantID string, limit int) ([]ports.AuditEvent, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []model.AuditEvent
	if err := db.
		Where("tenant_id = ?", tenantID).
		Order("event_id desc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query audit events")
	}

	items := make([]ports.AuditEvent, 0, len(rows))
	for _, row := range rows {
		event := ports.AuditEvent{
			ID:        row.EventID,
			TenantID:  row.TenantID,
			Action:    row.Action,
			Actor:     row.Actor,
			CreatedAt: row.CreatedAt,
		}
		if row.Metadata != "" {
			metadata := map[string]any{}
			if err := json.Unmarshal([]byte(row.Metadata), &metadata); err == nil {
				event.Metadata = metadata
			}
		}
		items = append(items, event)
	}
	return items, nil
}
