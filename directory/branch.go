package directory

import (
	"context"
	"fmt"
	"strings"
)

const (
	ObjectClassBranch = "organizationalUnit"
	AttrOU            = "ou"
)

func NewBranch(dn string, ou string) Entry {
	entry := NewEntry(dn, ObjectClassBranch)
	entry.Set(AttrOU, strings.TrimSpace(ou))
	return entry
}

// EnsureBranch creates the branch at dn unless it already exists.
func EnsureBranch(ctx context.Context, store Store, dn string, ou string) error {
	if store == nil {
		return fmt.Errorf("directory: store is required")
	}
	exists, err := store.Contains(ctx, dn, ObjectClassBranch)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return CreateBranch(ctx, store, dn, ou)
}

// CreateBranch persists a branch entry. When the write fails the branch is
// looked up again: a branch created concurrently by another writer counts as
// success, otherwise the original persist error is returned.
func CreateBranch(ctx context.Context, store Store, dn string, ou string) error {
	if store == nil {
		return fmt.Errorf("directory: store is required")
	}
	persistErr := store.Persist(ctx, NewBranch(dn, ou))
	if persistErr == nil {
		return nil
	}
	exists, err := store.Contains(ctx, dn, ObjectClassBranch)
	if err == nil && exists {
		return nil
	}
	return fmt.Errorf("directory: create branch %q: %w", dn, persistErr)
}
