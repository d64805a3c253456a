package directory

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("directory: entry not found")
	ErrAlreadyExists = errors.New("directory: entry already exists")
)

// Store is the persistence contract shared by the stat and pairwise services.
// Implementations must report a duplicate Persist with an error matching
// ErrAlreadyExists and a missing Find with an error matching ErrNotFound.
type Store interface {
	Find(ctx context.Context, dn string) (Entry, error)
	// FindAll returns the entries below baseDN with the given object class
	// (any class when empty) that match filter, ordered by DN.
	FindAll(ctx context.Context, baseDN string, objectClass string, filter Filter) ([]Entry, error)
	Persist(ctx context.Context, entry Entry) error
	// Merge creates or replaces the entry.
	Merge(ctx context.Context, entry Entry) error
	Contains(ctx context.Context, dn string, objectClass string) (bool, error)
	HasBranchesSupport(baseDN string) bool
}
