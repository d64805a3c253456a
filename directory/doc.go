// Package directory defines the hierarchical entry store consumed by the stat
// and pairwise services. Entries are addressed by distinguished names of the
// form "attr=value,parent" and carry multi-valued string attributes.
//
// Concrete stores live here (MemoryStore, CachedStore) and under store/sql and
// store/redis.
package directory
