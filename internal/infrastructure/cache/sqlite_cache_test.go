package cache

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ohsync/internal/infrastructure/persistence/sqlite/model"
)

func newTestCache(t *testing.T) *SQLiteCache {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.KV{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewSQLiteCache(db)
}

func TestCacheSetGetDelete(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	if err := c.Set(ctx, "k1", "v1", time.Hour); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	value, found, err := c.Get(ctx, "k1")
	if err != nil || !found || value != "v1" {
		t.Fatalf("Get() = (%q, %v, %v), want (v1, true, nil)", value, found, err)
	}

	if err := c.Set(ctx, "k1", "v2", time.Hour); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	value, found, _ = c.Get(ctx, "k1")
	if !found || value != "v2" {
		t.Fatalf("Get() after overwrite = (%q, %v), want (v2, true)", value, found)
	}

	if err := c.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := c.Get(ctx, "k1"); found {
		t.Fatal("Get() after delete should miss")
	}
}

func TestCacheMissingKey(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	if _, found, err := c.Get(context.Background(), "absent"); err != nil || found {
		t.Fatalf("Get(absent) = (found=%v, err=%v), want miss without error", found, err)
	}
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "ephemeral", "v", 10*time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	if _, found, _ := c.Get(ctx, "ephemeral"); !found {
		t.Fatal("entry should be live before the deadline")
	}

	current = current.Add(11 * time.Minute)
	if _, found, _ := c.Get(ctx, "ephemeral"); found {
		t.Fatal("entry should expire after its ttl")
	}

	// Expired rows are reaped on read.
	var count int64
	if err := c.db.Model(&model.KV{}).Where("key = ?", "ephemeral").Count(&count).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired row still present, count = %d", count)
	}
}

func TestCacheZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()

	c := newTestCache(t)
	ctx := context.Background()

	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	if err := c.Set(ctx, "pinned", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	current = current.Add(1000 * time.Hour)
	if _, found, _ := c.Get(ctx, "pinned"); !found {
		t.Fatal("zero-ttl entry should never expire")
	}
}
