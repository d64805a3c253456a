package pairwise

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-idp-services/directory"
)

const (
	ObjectClassIdentifier = "pairwiseIdentifier"

	AttrID               = "oxId"
	AttrSectorIdentifier = "oxSectorIdentifier"
	AttrClientID         = "oxAuthClientId"

	// AttrUserPPID lists the persistent pairwise ids issued to a user.
	AttrUserPPID = "oxPPID"

	branchName = "pairwiseIdentifiers"
)

var (
	ErrNotFound     = errors.New("pairwise: identifier not found")
	ErrModeMismatch = errors.New("pairwise: operation not supported by the configured id type")
	ErrInvalidInput = errors.New("pairwise: invalid input")
)

type IDType string

const (
	IDTypePersistent  IDType = "PERSISTENT"
	IDTypeAlgorithmic IDType = "ALGORITHMIC"
)

// ParseIDType accepts the id type case-insensitively. Blank input selects
// PERSISTENT.
func ParseIDType(raw string) (IDType, error) {
	switch IDType(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", IDTypePersistent:
		return IDTypePersistent, nil
	case IDTypeAlgorithmic:
		return IDTypeAlgorithmic, nil
	default:
		return "", fmt.Errorf("pairwise: unknown id type %q", raw)
	}
}

func (t IDType) String() string {
	return string(t)
}

type Identifier struct {
	DN               string
	ID               string
	SectorIdentifier string
	ClientID         string
	UserID           string
}

// NewIdentifier builds an identifier for the sector host of
// sectorIdentifierURI. The id is assigned on creation.
func NewIdentifier(sectorIdentifierURI string, clientID string, userID string) (Identifier, error) {
	host, err := SectorHost(sectorIdentifierURI)
	if err != nil {
		return Identifier{}, err
	}
	return Identifier{
		SectorIdentifier: host,
		ClientID:         strings.TrimSpace(clientID),
		UserID:           strings.TrimSpace(userID),
	}, nil
}

// SectorHost returns the host portion of a sector identifier URI.
func SectorHost(sectorIdentifierURI string) (string, error) {
	raw := strings.TrimSpace(sectorIdentifierURI)
	if raw == "" {
		return "", fmt.Errorf("%w: sector identifier uri is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: sector identifier uri %q: %v", ErrInvalidInput, raw, err)
	}
	host := parsed.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: sector identifier uri %q has no host", ErrInvalidInput, raw)
	}
	return host, nil
}

// SectorKey returns the host of sectorIdentifierURI or, for an absolute URI
// without a host such as a URN, the URI itself.
func SectorKey(sectorIdentifierURI string) (string, error) {
	raw := strings.TrimSpace(sectorIdentifierURI)
	if raw == "" {
		return "", fmt.Errorf("%w: sector identifier uri is required", ErrInvalidInput)
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: sector identifier uri %q: %v", ErrInvalidInput, raw, err)
	}
	if host := parsed.Hostname(); host != "" {
		return host, nil
	}
	if parsed.Scheme == "" {
		return "", fmt.Errorf("%w: sector identifier uri %q is not absolute", ErrInvalidInput, raw)
	}
	return raw, nil
}

func (i Identifier) ToEntry() directory.Entry {
	entry := directory.NewEntry(i.DN, ObjectClassIdentifier)
	entry.Set(AttrID, i.ID)
	entry.Set(AttrSectorIdentifier, i.SectorIdentifier)
	if i.ClientID != "" {
		entry.Set(AttrClientID, i.ClientID)
	}
	return entry
}

func IdentifierFromEntry(entry directory.Entry, userID string) Identifier {
	return Identifier{
		DN:               entry.DN,
		ID:               entry.Get(AttrID),
		SectorIdentifier: entry.Get(AttrSectorIdentifier),
		ClientID:         entry.Get(AttrClientID),
		UserID:           userID,
	}
}
