package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func directoryEntryHandlers() repository.ModelHandlers[*directoryEntryRecord] {
	return repository.ModelHandlers[*directoryEntryRecord]{
		NewRecord: func() *directoryEntryRecord {
			return &directoryEntryRecord{}
		},
		GetID: func(record *directoryEntryRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *directoryEntryRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "dn"
		},
		GetIdentifierValue: func(record *directoryEntryRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.DN)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
