package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

type FieldMappingRepository struct {
	db *gorm.DB
}

var _ ports.FieldMappingRepository = (*FieldMappingRepository)(nil)

func NewFieldMappingRepository(db *gorm.DB) *FieldMappingRepository {
	return &FieldMappingRepository{db: db}
}

func (r *FieldMappingRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *FieldMappingRepository) ListByIntegration(ctx context.Context, integrationID string) ([]ports.FieldMapping, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.FieldMapping
	if err := db.
		Where("integration_id = ?", integrationID).
		Order("position asc, mapping_id asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query field mappings")
	}

	items := make([]ports.FieldMapping, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.FieldMapping{
			ID:            row.MappingID,
			IntegrationID: row.IntegrationID,
			ExternalField: row.ExternalField,
			InternalTable: row.InternalTable,
			InternalField: row.InternalField,
			Transform:     row.Transform,
			RecordKey:     row.RecordKey,
			Position:      row.Position,
		})
	}
	return items, nil
}

func (r *FieldMappingRepository) ReplaceForIntegration(ctx context.Context, integrationID string, mappings []ports.FieldMapping) error {
	if ports.TxFromContext(ctx) != nil {
		db, err := r.dbFromContext(ctx)
		if err != nil {
			return err
		}

		if err := db.Where("integration_id = ?", integrationID).Delete(&model.FieldMapping{}).Error; err != nil {
			return errs.Wrap(err, "delete old field mappings")
		}

		if len(mappings) == 0 {
			return nil
		}

		rows := make([]model.FieldMapping, 0, len(mappings))
		for i, m := range mappings {
			rows = append(rows, model.FieldMapping{
				IntegrationID: integrationID,
				ExternalField: m.ExternalField,
				InternalTable: m.InternalTable,
				InternalField: m.InternalField,
				Transform:     m.Transform,
				RecordKey:     m.RecordKey,
				Position:      i,
			})
		}
		if err := db.Create(&rows).Error; err != nil {
			return errs.Wrap(err, "insert field mappings")
		}
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := ports.WithTxContext(ctx, tx)
		return r.ReplaceForIntegration(txCtx, integrationID, mappings)
	})
}
