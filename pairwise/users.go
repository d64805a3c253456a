package pairwise

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-idp-services/directory"
)

const AttrUserInum = "inum"

// UserService addresses user entries under the people branch.
type UserService struct {
	store        directory.Store
	peopleBaseDN string
}

func NewUserService(store directory.Store, peopleBaseDN string) *UserService {
	return &UserService{store: store, peopleBaseDN: strings.TrimSpace(peopleBaseDN)}
}

func (u *UserService) DNForUser(userID string) string {
	return directory.JoinDN(AttrUserInum, strings.TrimSpace(userID), u.peopleBaseDN)
}

// AddUserAttribute appends value to attr on the user entry. Present values
// are left alone.
func (u *UserService) AddUserAttribute(ctx context.Context, userID string, attr string, value string) error {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(attr) == "" || strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: user id, attribute and value are required", ErrInvalidInput)
	}
	dn := u.DNForUser(userID)
	entry, err := u.store.Find(ctx, dn)
	if err != nil {
		return fmt.Errorf("pairwise: load user %s: %w", dn, err)
	}
	if !entry.Add(attr, value) {
		return nil
	}
	if err := u.store.Merge(ctx, entry); err != nil {
		return fmt.Errorf("pairwise: update user %s: %w", dn, err)
	}
	return nil
}
