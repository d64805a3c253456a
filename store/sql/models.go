package sqlstore

import (
	"time"

	"github.com/goliatone/go-idp-services/directory"
	"github.com/uptrace/bun"
)

// directoryEntryRecord stores one directory entry. dn and parent_dn hold the
// normalized form used for lookups; display_dn keeps the caller's spelling.
type directoryEntryRecord struct {
	bun.BaseModel `bun:"table:directory_entries,alias:de"`

	ID          string              `bun:"id,pk"`
	DN          string              `bun:"dn,notnull"`
	DisplayDN   string              `bun:"display_dn,notnull"`
	ParentDN    string              `bun:"parent_dn,notnull"`
	ObjectClass string              `bun:"object_class,notnull"`
	Attributes  map[string][]string `bun:"attributes,type:jsonb,notnull"`
	CreatedAt   time.Time           `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt   time.Time           `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func newDirectoryEntryRecord(entry directory.Entry, now time.Time) *directoryEntryRecord {
	return &directoryEntryRecord{
		DN:          directory.NormalizeDN(entry.DN),
		DisplayDN:   entry.DN,
		ParentDN:    directory.NormalizeDN(entry.ParentDN()),
		ObjectClass: entry.ObjectClass,
		Attributes:  copyAttributes(entry.Attributes),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *directoryEntryRecord) toEntry() directory.Entry {
	dn := r.DisplayDN
	if dn == "" {
		dn = r.DN
	}
	entry := directory.NewEntry(dn, r.ObjectClass)
	entry.Attributes = copyAttributes(r.Attributes)
	return entry
}

func copyAttributes(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for name, values := range in {
		if len(values) == 0 {
			continue
		}
		out[name] = append([]string(nil), values...)
	}
	return out
}
