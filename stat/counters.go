package stat

import (
	"sync"
	"sync/atomic"
)

// TokenCounters counts issued tokens per grant type and token kind. Increment
// never blocks beyond a map lookup and an atomic add.
type TokenCounters struct {
	grants sync.Map // grant type -> *sync.Map (token kind -> *atomic.Int64)
}

// NewTokenCounters seeds the table, usually from a record loaded from the
// store after a restart.
func NewTokenCounters(initial map[string]map[string]int64) *TokenCounters {
	t := &TokenCounters{}
	for grantType, kinds := range initial {
		for tokenKind, count := range kinds {
			t.counter(grantType, tokenKind).Store(count)
		}
	}
	return t
}

// Increment adds one to the (grantType, tokenKind) cell and returns the new count.
func (t *TokenCounters) Increment(grantType string, tokenKind string) int64 {
	return t.counter(grantType, tokenKind).Add(1)
}

func (t *TokenCounters) Get(grantType string, tokenKind string) int64 {
	kinds, ok := t.grants.Load(grantType)
	if !ok {
		return 0
	}
	value, ok := kinds.(*sync.Map).Load(tokenKind)
	if !ok {
		return 0
	}
	return value.(*atomic.Int64).Load()
}

// Snapshot returns a detached copy of all counters.
func (t *TokenCounters) Snapshot() map[string]map[string]int64 {
	out := map[string]map[string]int64{}
	t.grants.Range(func(grantKey, kinds any) bool {
		perKind := map[string]int64{}
		kinds.(*sync.Map).Range(func(kindKey, value any) bool {
			perKind[kindKey.(string)] = value.(*atomic.Int64).Load()
			return true
		})
		out[grantKey.(string)] = perKind
		return true
	})
	return out
}

func (t *TokenCounters) counter(grantType string, tokenKind string) *atomic.Int64 {
	kinds, _ := t.grants.LoadOrStore(grantType, &sync.Map{})
	value, _ := kinds.(*sync.Map).LoadOrStore(tokenKind, &atomic.Int64{})
	return value.(*atomic.Int64)
}

func cloneCounts(in map[string]map[string]int64) map[string]map[string]int64 {
	out := make(map[string]map[string]int64, len(in))
	for grantType, kinds := range in {
		perKind := make(map[string]int64, len(kinds))
		for tokenKind, count := range kinds {
			perKind[tokenKind] = count
		}
		out[grantType] = perKind
	}
	return out
}

func equalCounts(a map[string]map[string]int64, b map[string]map[string]int64) bool {
	if len(a) != len(b) {
		return false
	}
	for grantType, kinds := range a {
		other, ok := b[grantType]
		if !ok || len(other) != len(kinds) {
			return false
		}
		for tokenKind, count := range kinds {
			if otherCount, ok := other[tokenKind]; !ok || otherCount != count {
				return false
			}
		}
	}
	return true
}
