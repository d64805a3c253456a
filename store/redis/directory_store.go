package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/goliatone/go-idp-services/directory"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "idp:directory"

// DirectoryStore keeps each entry as a CBOR value and indexes it under a set
// per ancestor DN so subtree lookups need a single SMEMBERS. Branch entries
// carry no meaning here, so HasBranchesSupport is false.
type DirectoryStore struct {
	rdb    redis.UniversalClient
	prefix string
}

type Option func(*DirectoryStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *DirectoryStore) {
		if trimmed := strings.Trim(strings.TrimSpace(prefix), ":"); trimmed != "" {
			s.prefix = trimmed
		}
	}
}

func NewDirectoryStore(rdb redis.UniversalClient, opts ...Option) (*DirectoryStore, error) {
	if rdb == nil {
		return nil, fmt.Errorf("redisstore: redis client is required")
	}
	s := &DirectoryStore{
		rdb:    rdb,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *DirectoryStore) Find(ctx context.Context, dn string) (directory.Entry, error) {
	key := directory.NormalizeDN(dn)
	if key == "" {
		return directory.Entry{}, fmt.Errorf("redisstore: dn is required")
	}
	raw, err := s.rdb.Get(ctx, s.entryKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return directory.Entry{}, fmt.Errorf("%w: %s", directory.ErrNotFound, dn)
		}
		return directory.Entry{}, err
	}
	return decodeEntry(raw)
}

func (s *DirectoryStore) FindAll(
	ctx context.Context,
	baseDN string,
	objectClass string,
	filter directory.Filter,
) ([]directory.Entry, error) {
	baseKey := directory.NormalizeDN(baseDN)
	if baseKey == "" {
		return nil, fmt.Errorf("redisstore: base dn is required")
	}
	members, err := s.rdb.SMembers(ctx, s.treeKey(baseKey)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []directory.Entry{}, nil
	}
	sort.Strings(members)

	keys := make([]string, len(members))
	for i, member := range members {
		keys[i] = s.entryKey(member)
	}
	values, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]directory.Entry, 0, len(values))
	for i, value := range values {
		raw, ok := rawValue(value)
		if !ok {
			continue
		}
		entry, decodeErr := decodeEntry(raw)
		if decodeErr != nil {
			return nil, fmt.Errorf("redisstore: %s: %w", members[i], decodeErr)
		}
		if objectClass != "" && !strings.EqualFold(entry.ObjectClass, objectClass) {
			continue
		}
		if !directory.Match(filter, entry) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

// persistScript writes KEYS[1] only when absent and indexes ARGV[2] under
// every tree key in the same step. Existing entries are re-indexed so a
// partial write from an older client still becomes visible to FindAll.
var persistScript = redis.NewScript(`
local created = redis.call('SETNX', KEYS[1], ARGV[1])
for i = 2, #KEYS do
	redis.call('SADD', KEYS[i], ARGV[2])
end
return created
`)

// Persist stores and indexes the entry atomically so concurrent writers of
// the same DN see exactly one success.
func (s *DirectoryStore) Persist(ctx context.Context, entry directory.Entry) error {
	key := directory.NormalizeDN(entry.DN)
	if key == "" {
		return fmt.Errorf("redisstore: dn is required")
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	parents := ancestors(key)
	keys := make([]string, 0, len(parents)+1)
	keys = append(keys, s.entryKey(key))
	for _, ancestor := range parents {
		keys = append(keys, s.treeKey(ancestor))
	}
	created, err := persistScript.Run(ctx, s.rdb, keys, raw, key).Int()
	if err != nil {
		return err
	}
	if created == 0 {
		return fmt.Errorf("%w: %s", directory.ErrAlreadyExists, entry.DN)
	}
	return nil
}

func (s *DirectoryStore) Merge(ctx context.Context, entry directory.Entry) error {
	key := directory.NormalizeDN(entry.DN)
	if key == "" {
		return fmt.Errorf("redisstore: dn is required")
	}
	raw, err := encodeEntry(entry)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.entryKey(key), raw, 0)
		for _, ancestor := range ancestors(key) {
			pipe.SAdd(ctx, s.treeKey(ancestor), key)
		}
		return nil
	})
	return err
}

func (s *DirectoryStore) Contains(ctx context.Context, dn string, objectClass string) (bool, error) {
	entry, err := s.Find(ctx, dn)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if objectClass != "" && !strings.EqualFold(entry.ObjectClass, objectClass) {
		return false, nil
	}
	return true, nil
}

func (s *DirectoryStore) HasBranchesSupport(string) bool {
	return false
}

func (s *DirectoryStore) entryKey(normalizedDN string) string {
	return s.prefix + ":entry:" + normalizedDN
}

func (s *DirectoryStore) treeKey(normalizedDN string) string {
	return s.prefix + ":tree:" + normalizedDN
}

// ancestors lists every proper suffix of a normalized DN, nearest first.
func ancestors(normalizedDN string) []string {
	out := make([]string, 0, strings.Count(normalizedDN, ","))
	rest := normalizedDN
	for {
		_, parent, found := strings.Cut(rest, ",")
		if !found || parent == "" {
			return out
		}
		out = append(out, parent)
		rest = parent
	}
}

func rawValue(value any) ([]byte, bool) {
	switch typed := value.(type) {
	case string:
		return []byte(typed), true
	case []byte:
		return typed, true
	default:
		return nil, false
	}
}

var _ directory.Store = (*DirectoryStore)(nil)
