package cache

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"ohsync/internal/errs"
	"ohsync/internal/infrastructure/persistence/sqlite/model"
	"ohsync/internal/ports"
)

// SQLiteCache is a TTL-aware key-value store on the shared database.
// Expired rows are treated as absent on read and deleted lazily; there is
// no background sweeper.
type SQLiteCache struct {
	db  *gorm.DB
	now func() time.Time
}

var _ ports.Cache = (*SQLiteCache)(nil)

func NewSQLiteCache(db *gorm.DB) *SQLiteCache {
	return &SQLiteCache{db: db, now: time.Now}
}

func (c *SQLiteCache) Get(ctx context.Context, key string) (string, bool, error) {
	var row model.KV
	err := c.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errs.Wrap(err, "query cache entry")
	}

	if row.ExpiresAt != "" {
		expiresAt, err := time.Parse(time.RFC3339, row.ExpiresAt)
		if err != nil || !c.now().Before(expiresAt) {
			_ = c.db.WithContext(ctx).Where("key = ?", key).Delete(&model.KV{}).Error
			return "", false, nil
		}
	}
	return row.Value, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	now := c.now().UTC()

	expiresAt := ""
	if ttl > 0 {
		expiresAt = now.Add(ttl).Format(time.RFC3339)
	}

	row := model.KV{
		Key:       key,
		Value:     value,
		ExpiresAt: expiresAt,
		UpdatedAt: now.Format(time.RFC3339),
	}
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return errs.Wrap(err, "upsert cache entry")
	}
	return nil
}

func (c *SQLiteCache) Delete(ctx context.Context, key string) error {
	if err := c.db.WithContext(ctx).Where("key = ?", key).Delete(&model.KV{}).Error; err != nil {
		return errs.Wrap(err, "delete cache entry")
	}
	return nil
}
