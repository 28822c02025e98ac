package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const profileCacheKeyPrefix = "go-vaultrest::profile::v1"

// CachedProfileStore serves GetByName from cache and invalidates the entry
// whenever the profile is saved or deleted.
type CachedProfileStore struct {
	base  ProfileRepository
	cache repositorycache.CacheService
}

func NewCachedProfileStore(base ProfileRepository, cacheService repositorycache.CacheService) (*CachedProfileStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base profile store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: profile cache service is required")
	}
	return &CachedProfileStore{base: base, cache: cacheService}, nil
}

// ProfileCacheKey returns go-vaultrest::profile::v1::<escaped name>.
func ProfileCacheKey(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: profile name is required")
	}
	return profileCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedProfileStore) GetByName(ctx context.Context, name string) (Profile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return Profile{}, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	key, err := ProfileCacheKey(name)
	if err != nil {
		return Profile{}, err
	}
	profile, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (Profile, error) {
		fetched, fetchErr := s.base.GetByName(ctx, name)
		if fetchErr != nil {
			return Profile{}, fetchErr
		}
		return cloneProfile(fetched), nil
	})
	if err != nil {
		return Profile{}, err
	}
	return cloneProfile(profile), nil
}

func (s *CachedProfileStore) Save(ctx context.Context, in SaveProfileInput) (Profile, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return Profile{}, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	saved, err := s.base.Save(ctx, in)
	if err != nil {
		return Profile{}, err
	}
	if err := s.invalidate(ctx, saved.Name); err != nil {
		return Profile{}, err
	}
	return saved, nil
}

func (s *CachedProfileStore) List(ctx context.Context) ([]Profile, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	return s.base.List(ctx)
}

func (s *CachedProfileStore) Delete(ctx context.Context, name string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached profile store is not configured")
	}
	if err := s.base.Delete(ctx, name); err != nil {
		return err
	}
	return s.invalidate(ctx, name)
}

func (s *CachedProfileStore) invalidate(ctx context.Context, name string) error {
	key, err := ProfileCacheKey(name)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, key)
}
