package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"ohsync/internal/errs"
	"ohsync/internal/ports"
)

// RecordStore reaches into mapped internal tables by name. Table and field
// names come from stored field mappings (operator-defined), not from
// webhook payloads, so dynamic identifiers stay within admin-controlled
// vocabulary.
type RecordStore struct {
	db *gorm.DB
}

var _ ports.RecordStore = (*RecordStore)(nil)

func NewRecordStore(db *gorm.DB) *RecordStore {
	return &RecordStore{db: db}
}

func (s *RecordStore) dbFromContext(ctx context.Context) (*gorm.DB, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}

	tx := ports.TxFromContext(ctx)
	if tx == nil {
		return s.db.WithContext(ctx), nil
	}

	gormTx, ok := tx.(*gorm.DB)
	if !ok || gormTx == nil {
		return nil, fmt.Errorf("invalid tx in context: %T", tx)
	}
	return gormTx.WithContext(ctx), nil
}

func (s *RecordStore) FindRecordID(ctx context.Context, table, field, value, developmentID string) (string, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	query := db.Table(table).Select("id").Where(fmt.Sprintf("%s = ?", field), value)
	if developmentID != "" {
		query = query.Where("development_id = ?", developmentID)
	}

	var id string
	if err := query.Limit(1).Scan(&id).Error; err != nil {
		return "", errs.Wrapf(err, "find record in %s by %s", table, field)
	}
	if id == "" {
		return "", ports.ErrRecordNotFound
	}
	return id, nil
}

func (s *RecordStore) GetField(ctx context.Context, table, field, recordID string) (string, error) {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return "", err
	}

	var value *string
	if err := db.Table(table).
		Select(field).
		Where("id = ?", recordID).
		Limit(1).
		Scan(&value).Error; err != nil {
		return "", errs.Wrapf(err, "read %s.%s", table, field)
	}
	if value == nil {
		return "", nil
	}
	return *value, nil
}

func (s *RecordStore) SetField(ctx context.Context, table, field, recordID, value string) error {
	db, err := s.dbFromContext(ctx)
	if err != nil {
		return err
	}

	result := db.Table(table).Where("id = ?", recordID).Update(field, value)
	if result.Error != nil {
		return errs.Wrapf(result.Error, "write %s.%s", table, field)
	}
	if result.RowsAffected == 0 {
		return ports.ErrRecordNotFound
	}
	return nil
}
