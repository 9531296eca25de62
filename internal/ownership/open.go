package ownership

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/fairyhunter13/sneaker-customizer-service/internal/config"
	"github.com/fairyhunter13/sneaker-customizer-service/internal/obs"
)

// Open builds the Index for cfg.OwnedIndexBackend. db is required only by the
// table backend. The returned func releases backend connections.
func Open(ctx context.Context, cfg config.Config, db *gorm.DB) (*Index, func(), error) {
	noop := func() {}
	switch cfg.OwnedIndexBackend {
	case "", "file":
		obs.Logger.Info("ownership_index_ready", "backend", "file", "path", cfg.OwnedIndexPath)
		return NewIndex(NewFileDocument(cfg.OwnedIndexPath)), noop, nil
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		doc, err := NewRedisDocument(ctx, rdb, cfg.OwnedIndexKey)
		if err != nil {
			_ = rdb.Close()
			return nil, noop, err
		}
		obs.Logger.Info("ownership_index_ready", "backend", "redis", "addr", cfg.RedisAddr, "key", cfg.OwnedIndexKey)
		return NewIndex(doc), func() { _ = rdb.Close() }, nil
	case "table":
		if db == nil {
			return nil, noop, errors.New("ownership: table backend needs a sql DB_DRIVER")
		}
		doc, err := NewTableDocument(db, cfg.OwnedIndexKey)
		if err != nil {
			return nil, noop, err
		}
		obs.Logger.Info("ownership_index_ready", "backend", "table", "name", cfg.OwnedIndexKey)
		return NewIndex(doc), noop, nil
	}
	return nil, noop, fmt.Errorf("ownership: unsupported OWNED_INDEX_BACKEND %q", cfg.OwnedIndexBackend)
}
