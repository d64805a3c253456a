package command

import (
	"strings"

	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

const (
	TypeRecordActiveUser        = "idp.command.stat.active_user.record"
	TypeRecordTokenIssued       = "idp.command.stat.token_issued.record"
	TypeFlushStats              = "idp.command.stat.flush"
	TypeCreatePairwise          = "idp.command.pairwise.create"
	TypeResolveOrCreatePairwise = "idp.command.pairwise.resolve_or_create"
)

type RecordActiveUserMessage struct {
	UserID string
}

func (RecordActiveUserMessage) Type() string { return TypeRecordActiveUser }

func (m RecordActiveUserMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fieldError("user_id", "user id is required")
	}
	return nil
}

type RecordTokenIssuedMessage struct {
	GrantType string
	TokenKind string
}

func (RecordTokenIssuedMessage) Type() string { return TypeRecordTokenIssued }

func (m RecordTokenIssuedMessage) Validate() error {
	if strings.TrimSpace(m.GrantType) == "" {
		return fieldError("grant_type", "grant type is required")
	}
	switch strings.TrimSpace(m.TokenKind) {
	case stat.TokenKindAccess, stat.TokenKindID, stat.TokenKindRefresh, stat.TokenKindUMA:
		return nil
	case "":
		return fieldError("token_kind", "token kind is required")
	default:
		return fieldError("token_kind", "unknown token kind "+m.TokenKind)
	}
}

type FlushStatsMessage struct{}

func (FlushStatsMessage) Type() string { return TypeFlushStats }

func (FlushStatsMessage) Validate() error { return nil }

type CreatePairwiseMessage struct {
	UserID              string
	SectorIdentifierURI string
	ClientID            string
	// ID is generated when empty.
	ID string
}

func (CreatePairwiseMessage) Type() string { return TypeCreatePairwise }

func (m CreatePairwiseMessage) Validate() error {
	if err := validatePairwiseSubject(m.UserID, m.SectorIdentifierURI); err != nil {
		return err
	}
	return nil
}

// Identifier builds the identifier the message asks to persist.
func (m CreatePairwiseMessage) Identifier() (pairwise.Identifier, error) {
	identifier, err := pairwise.NewIdentifier(m.SectorIdentifierURI, m.ClientID, m.UserID)
	if err != nil {
		return pairwise.Identifier{}, invalidSector(err)
	}
	identifier.ID = strings.TrimSpace(m.ID)
	return identifier, nil
}

type ResolveOrCreatePairwiseMessage struct {
	UserID              string
	SectorIdentifierURI string
	ClientID            string
}

func (ResolveOrCreatePairwiseMessage) Type() string { return TypeResolveOrCreatePairwise }

func (m ResolveOrCreatePairwiseMessage) Validate() error {
	return validatePairwiseSubject(m.UserID, m.SectorIdentifierURI)
}

func validatePairwiseSubject(userID string, sectorIdentifierURI string) error {
	if strings.TrimSpace(userID) == "" {
		return fieldError("user_id", "user id is required")
	}
	if strings.TrimSpace(sectorIdentifierURI) == "" {
		return fieldError("sector_identifier_uri", "sector identifier uri is required")
	}
	if _, err := pairwise.SectorHost(sectorIdentifierURI); err != nil {
		return invalidSector(err)
	}
	return nil
}
