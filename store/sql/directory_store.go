package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-idp-services/directory"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DirectoryStore keeps directory entries in a single table. Branch entries
// are regular rows, so branches are supported for every base dn.
type DirectoryStore struct {
	db   *bun.DB
	repo repository.Repository[*directoryEntryRecord]
}

func NewDirectoryStore(db *bun.DB) (*DirectoryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*directoryEntryRecord](db, directoryEntryHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid directory repository wiring: %w", err)
		}
	}
	return &DirectoryStore{
		db:   db,
		repo: repo,
	}, nil
}

func (s *DirectoryStore) Find(ctx context.Context, dn string) (directory.Entry, error) {
	if s == nil || s.db == nil {
		return directory.Entry{}, fmt.Errorf("sqlstore: directory store is not configured")
	}
	key := directory.NormalizeDN(dn)
	if key == "" {
		return directory.Entry{}, fmt.Errorf("sqlstore: dn is required")
	}
	record, err := findDirectoryEntry(ctx, s.db, key)
	if err != nil {
		return directory.Entry{}, err
	}
	if record == nil {
		return directory.Entry{}, fmt.Errorf("%w: %s", directory.ErrNotFound, dn)
	}
	return record.toEntry(), nil
}

// FindAll narrows candidates with a dn suffix match and applies the filter
// in memory.
func (s *DirectoryStore) FindAll(
	ctx context.Context,
	baseDN string,
	objectClass string,
	filter directory.Filter,
) ([]directory.Entry, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: directory store is not configured")
	}
	baseKey := directory.NormalizeDN(baseDN)
	if baseKey == "" {
		return nil, fmt.Errorf("sqlstore: base dn is required")
	}

	records := make([]*directoryEntryRecord, 0)
	query := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.dn LIKE ? ESCAPE '!'", "%,"+escapeLike(baseKey)).
		OrderExpr("?TableAlias.dn ASC")
	if objectClass = strings.TrimSpace(objectClass); objectClass != "" {
		query = query.Where("lower(?TableAlias.object_class) = ?", strings.ToLower(objectClass))
	}
	if err := query.Scan(ctx); err != nil {
		return nil, err
	}

	out := make([]directory.Entry, 0, len(records))
	for _, record := range records {
		if !directory.IsDescendant(record.DN, baseKey) {
			continue
		}
		entry := record.toEntry()
		if !directory.Match(filter, entry) {
			continue
		}
		out = append(out, entry)
	}
	return out, nil
}

func (s *DirectoryStore) Persist(ctx context.Context, entry directory.Entry) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: directory store is not configured")
	}
	if directory.NormalizeDN(entry.DN) == "" {
		return fmt.Errorf("sqlstore: dn is required")
	}
	record := newDirectoryEntryRecord(entry, time.Now().UTC())
	record.ID = uuid.NewString()
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", directory.ErrAlreadyExists, entry.DN)
		}
		return err
	}
	return nil
}

// Merge replaces the stored entry or creates it.
func (s *DirectoryStore) Merge(ctx context.Context, entry directory.Entry) error {
	if s == nil || s.db == nil || s.repo == nil {
		return fmt.Errorf("sqlstore: directory store is not configured")
	}
	key := directory.NormalizeDN(entry.DN)
	if key == "" {
		return fmt.Errorf("sqlstore: dn is required")
	}
	now := time.Now().UTC()
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		current, err := findDirectoryEntry(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			record := newDirectoryEntryRecord(entry, now)
			record.ID = uuid.NewString()
			_, createErr := s.repo.CreateTx(ctx, tx, record)
			return createErr
		}
		record := newDirectoryEntryRecord(entry, now)
		record.ID = current.ID
		record.CreatedAt = current.CreatedAt
		_, updateErr := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx)
		return updateErr
	})
}

func (s *DirectoryStore) Contains(ctx context.Context, dn string, objectClass string) (bool, error) {
	if s == nil || s.db == nil {
		return false, fmt.Errorf("sqlstore: directory store is not configured")
	}
	record, err := findDirectoryEntry(ctx, s.db, directory.NormalizeDN(dn))
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	if objectClass != "" && !strings.EqualFold(record.ObjectClass, objectClass) {
		return false, nil
	}
	return true, nil
}

func (s *DirectoryStore) HasBranchesSupport(string) bool {
	return true
}

// Count returns the number of stored entries.
func (s *DirectoryStore) Count(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: directory store is not configured")
	}
	return s.db.NewSelect().Model((*directoryEntryRecord)(nil)).Count(ctx)
}

func findDirectoryEntry(ctx context.Context, db bun.IDB, key string) (*directoryEntryRecord, error) {
	if key == "" {
		return nil, nil
	}
	record := &directoryEntryRecord{}
	err := db.NewSelect().
		Model(record).
		Where("?TableAlias.dn = ?", key).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return record, nil
}

func escapeLike(value string) string {
	replacer := strings.NewReplacer(`!`, `!!`, `%`, `!%`, `_`, `!_`)
	return replacer.Replace(value)
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}
