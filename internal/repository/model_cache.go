package repository

import (
	"context"
	"errors"
	"time"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/domain/repository"
	pkgcache "RegimeLab/pkg/cache"
)

// ModelCacheStore implements ModelCache over a cache.Service. Detections are
// keyed by input fingerprint so an unchanged series skips refitting.
type ModelCacheStore struct {
	c   pkgcache.Service
	ttl time.Duration
}

func NewModelCacheStore(c pkgcache.Service, ttl time.Duration) repository.ModelCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &ModelCacheStore{c: c, ttl: ttl}
}

// Get returns the cached detection or nil on miss.
func (m *ModelCacheStore) Get(ctx context.Context, key string) (*models.Detection, error) {
	d, err := pkgcache.GetTyped[models.Detection](ctx, m.c, m.key(key))
	if err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, err
	}
	return d, nil
}

func (m *ModelCacheStore) Set(ctx context.Context, key string, d *models.Detection) error {
	return m.c.Set(ctx, m.key(key), d, m.ttl)
}

func (m *ModelCacheStore) key(fingerprint string) string {
	return pkgcache.GenerateKey("model", fingerprint)
}
