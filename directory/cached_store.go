package directory

import (
	"context"
	"fmt"
	"net/url"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const entryCacheKeyPrefix = "go-idp-services::directory_entry::v1::"

// CachedStore serves Find from a cache and evicts on every write. FindAll and
// Contains always reach the underlying store so that existence checks used by
// branch provisioning never observe stale state.
type CachedStore struct {
	base  Store
	cache repositorycache.CacheService
}

func NewCachedStore(base Store, cacheService repositorycache.CacheService) (*CachedStore, error) {
	if base == nil {
		return nil, fmt.Errorf("directory: base store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("directory: cache service is required")
	}
	return &CachedStore{base: base, cache: cacheService}, nil
}

// EntryCacheKey returns go-idp-services::directory_entry::v1::<escaped normalized dn>.
func EntryCacheKey(dn string) (string, error) {
	normalized := NormalizeDN(dn)
	if normalized == "" {
		return "", fmt.Errorf("directory: dn is required")
	}
	return entryCacheKeyPrefix + url.PathEscape(normalized), nil
}

func (s *CachedStore) Find(ctx context.Context, dn string) (Entry, error) {
	key, err := EntryCacheKey(dn)
	if err != nil {
		return Entry{}, err
	}
	entry, err := repositorycache.GetOrFetch(ctx, s.cache, key, func(ctx context.Context) (Entry, error) {
		fetched, fetchErr := s.base.Find(ctx, dn)
		if fetchErr != nil {
			return Entry{}, fetchErr
		}
		return fetched.Clone(), nil
	})
	if err != nil {
		return Entry{}, err
	}
	return entry.Clone(), nil
}

func (s *CachedStore) FindAll(ctx context.Context, baseDN string, objectClass string, filter Filter) ([]Entry, error) {
	return s.base.FindAll(ctx, baseDN, objectClass, filter)
}

func (s *CachedStore) Persist(ctx context.Context, entry Entry) error {
	if err := s.base.Persist(ctx, entry); err != nil {
		return err
	}
	return s.evict(ctx, entry.DN)
}

func (s *CachedStore) Merge(ctx context.Context, entry Entry) error {
	if err := s.base.Merge(ctx, entry); err != nil {
		return err
	}
	return s.evict(ctx, entry.DN)
}

func (s *CachedStore) Contains(ctx context.Context, dn string, objectClass string) (bool, error) {
	return s.base.Contains(ctx, dn, objectClass)
}

func (s *CachedStore) HasBranchesSupport(baseDN string) bool {
	return s.base.HasBranchesSupport(baseDN)
}

func (s *CachedStore) evict(ctx context.Context, dn string) error {
	key, err := EntryCacheKey(dn)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, key)
}

var _ Store = (*CachedStore)(nil)
