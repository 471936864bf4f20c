package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

type SnapshotRepository struct {
	db *gorm.DB
}

var _ ports.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository(db *gorm.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *SnapshotRepository) Get(ctx context.Context, integrationID, table, field, recordID string) (string, bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return "", false, err
	}

	var row model.SyncSnapshot
	if err := db.
		Where("integration_id = ? AND oh_table = ? AND oh_field = ? AND oh_record_id = ?",
			integrationID, table, field, recordID).
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", false, nil
		}
		return "", false, errs.Wrap(err, "query sync snapshot")
	}
	return row.Value, true, nil
}

func (r *SnapshotRepository) Upsert(ctx context.Context, integrationID, table, field, recordID, value, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := model.SyncSnapshot{
		IntegrationID: integrationID,
		OhTable:       table,
		OhField:       field,
		OhRecordID:    recordID,
		Value:         value,
		UpdatedAt:     updatedAt,
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "integration_id"},
			{Name: "oh_table"},
			{Name: "oh_field"},
			{Name: "oh_record_id"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert sync snapshot")
	}
	return nil
}
