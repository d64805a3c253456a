package query

import (
	"strings"
	"time"

	"github.com/goliatone/go-idp-services/pairwise"
)

const (
	TypeResolvePairwise = "idp.query.pairwise.resolve"
	TypeStatReport      = "idp.query.stat.report"
)

type ResolvePairwiseMessage struct {
	UserID              string
	SectorIdentifierURI string
	ClientID            string
}

func (ResolvePairwiseMessage) Type() string { return TypeResolvePairwise }

func (m ResolvePairwiseMessage) Validate() error {
	if strings.TrimSpace(m.UserID) == "" {
		return fieldError("user_id", "user id is required")
	}
	if strings.TrimSpace(m.SectorIdentifierURI) == "" {
		return fieldError("sector_identifier_uri", "sector identifier uri is required")
	}
	if _, err := pairwise.SectorKey(m.SectorIdentifierURI); err != nil {
		return invalidSector(err)
	}
	return nil
}

type StatReportMessage struct {
	// Month uses the YYYYMM form, for example 202601.
	Month string
}

func (StatReportMessage) Type() string { return TypeStatReport }

func (m StatReportMessage) Validate() error {
	month := strings.TrimSpace(m.Month)
	if month == "" {
		return fieldError("month", "month is required")
	}
	if _, err := time.Parse("200601", month); err != nil {
		return malformedMonth(month)
	}
	return nil
}
