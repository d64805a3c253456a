package redisstore

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/goliatone/go-idp-services/directory"
)

const entryCodecVersion = 1

type storedEntry struct {
	Version     int                 `cbor:"1,keyasint"`
	DN          string              `cbor:"2,keyasint"`
	ObjectClass string              `cbor:"3,keyasint"`
	Attributes  map[string][]string `cbor:"4,keyasint,omitempty"`
}

func encodeEntry(entry directory.Entry) ([]byte, error) {
	payload := storedEntry{
		Version:     entryCodecVersion,
		DN:          entry.DN,
		ObjectClass: entry.ObjectClass,
		Attributes:  entry.Clone().Attributes,
	}
	raw, err := cbor.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("redisstore: encode %s: %w", entry.DN, err)
	}
	return raw, nil
}

func decodeEntry(raw []byte) (directory.Entry, error) {
	var payload storedEntry
	if err := cbor.Unmarshal(raw, &payload); err != nil {
		return directory.Entry{}, fmt.Errorf("redisstore: decode entry: %w", err)
	}
	if payload.Version != entryCodecVersion {
		return directory.Entry{}, fmt.Errorf("redisstore: unsupported entry version %d", payload.Version)
	}
	entry := directory.NewEntry(payload.DN, payload.ObjectClass)
	for name, values := range payload.Attributes {
		entry.Set(name, values...)
	}
	return entry, nil
}
