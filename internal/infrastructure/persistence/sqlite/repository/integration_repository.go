package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	domainsync "ohsync/internal/domain/sync"
	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

type IntegrationRepository struct {
	db *gorm.DB
}

var _ ports.IntegrationRepository = (*IntegrationRepository)(nil)

func NewIntegrationRepository(db *gorm.DB) *IntegrationRepository {
	return &IntegrationRepository{db: db}
}

func (r *IntegrationRepository) dbFromContext(ctx context.Context) (*gorm.DB, error) {
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

func (r *IntegrationRepository) Create(ctx context.Context, integration ports.Integration) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	row := toIntegrationRow(integration)
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert integration")
	}
	return nil
}

func (r *IntegrationRepository) List(ctx context.Context, tenantID string, developmentID string) ([]ports.Integration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.Integration{}).Where("tenant_id = ?", tenantID)
	if developmentID != "" {
		query = query.Where("development_id = ?", developmentID)
	}

	var rows []model.Integration
	if err := query.Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query integrations")
	}

	items := make([]ports.Integration, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIntegration(row))
	}
	return items, nil
}

func (r *IntegrationRepository) Get(ctx context.Context, id string, tenantID string) (ports.Integration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return ports.Integration{}, err
	}

	var row model.Integration
	if err := db.Where("id = ? AND tenant_id = ?", id, tenantID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Integration{}, ports.ErrIntegrationNotFound
		}
		return ports.Integration{}, errs.Wrap(err, "query integration")
	}
	return mapIntegration(row), nil
}

func (r *IntegrationRepository) FindBySubscriptionKey(ctx context.Context, key string, types []domainsync.IntegrationType) ([]ports.Integration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if key == "" || len(types) == 0 {
		return nil, nil
	}

	typeNames := make([]string, 0, len(types))
	for _, t := range types {
		typeNames = append(typeNames, string(t))
	}

	var rows []model.Integration
	if err := db.
		Where("subscription_key = ? AND status = ? AND type IN ?", key, string(domainsync.StatusConnected), typeNames).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query integrations by subscription key")
	}

	items := make([]ports.Integration, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIntegration(row))
	}
	return items, nil
}

func (r *IntegrationRepository) ListScheduled(ctx context.Context) ([]ports.Integration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Integration
	if err := db.
		Where("status = ? AND sync_frequency = ?", string(domainsync.StatusConnected), string(domainsync.FrequencyScheduled)).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query scheduled integrations")
	}

	items := make([]ports.Integration, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIntegration(row))
	}
	return items, nil
}

func (r *IntegrationRepository) ListConnected(ctx context.Context) ([]ports.Integration, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Integration
	if err := db.
		Where("status = ?", string(domainsync.StatusConnected)).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query connected integrations")
	}

	items := make([]ports.Integration, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapIntegration(row))
	}
	return items, nil
}

func (r *IntegrationRepository) Disconnect(ctx context.Context, id string, tenantID string, updatedAt string) (bool, error) {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return false, err
	}

	// Ownership is part of the predicate; a bare id from the request is
	// never enough to mutate.
	result := db.Model(&model.Integration{}).
		Where("id = ? AND tenant_id = ?", id, tenantID).
		Updates(map[string]any{
			"status":           string(domainsync.StatusDisconnected),
			"credentials":      []byte{},
			"subscription_key": "",
			"updated_at":       updatedAt,
		})
	if result.Error != nil {
		return false, errs.Wrap(result.Error, "disconnect integration")
	}
	return result.RowsAffected > 0, nil
}

func (r *IntegrationRepository) UpdateCredentials(ctx context.Context, id string, credentials []byte, updatedAt string) error {
	db, err := r.dbFromContext(ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.Integration{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"credentials": credentials,
			"updated_at":  updatedAt,
		}).Error; err != nil {
		return errs.Wrap(err, "update integration credentials")
	}
	return nil
}

func toIntegrationRow(in ports.Integration) model.Integration {
	return model.Integration{
		ID:              in.ID,
		TenantID:        in.TenantID,
		DevelopmentID:   in.DevelopmentID,
		Type:            string(in.Type),
		Name:            in.Name,
		Status:          string(in.Status),
		Credentials:     in.Credentials,
		SubscriptionKey: in.SubscriptionKey,
		SyncDirection:   string(in.SyncDirection),
		SyncFrequency:   string(in.SyncFrequency),
		ExternalRef:     in.ExternalRef,
		CreatedAt:       in.CreatedAt,
		UpdatedAt:       in.UpdatedAt,
	}
}

func mapIntegration(row model.Integration) ports.Integration {
	return ports.Integration{
		ID:              row.ID,
		TenantID:        row.TenantID,
		DevelopmentID:   row.DevelopmentID,
		Type:            domainsync.IntegrationType(row.Type),
		Name:            row.Name,
		Status:          domainsync.IntegrationStatus(row.Status),
		Credentials:     row.Credentials,
		SubscriptionKey: row.SubscriptionKey,
		SyncDirection:   domainsync.Direction(row.SyncDirection),
		SyncFrequency:   domainsync.Frequency(row.SyncFrequency),
		ExternalRef:     row.ExternalRef,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
}
