package query

import (
	"context"

	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

type PairwiseReader interface {
	ResolvePairwise(
		ctx context.Context,
		userID string,
		sectorIdentifierURI string,
		clientID string,
	) (pairwise.Identifier, error)
}

type StatReportReader interface {
	Report(ctx context.Context, month string) (stat.MonthlyReport, error)
}

type ResolvePairwiseQuery struct {
	reader PairwiseReader
}

func NewResolvePairwiseQuery(reader PairwiseReader) *ResolvePairwiseQuery {
	return &ResolvePairwiseQuery{reader: reader}
}

func (q *ResolvePairwiseQuery) Query(ctx context.Context, msg ResolvePairwiseMessage) (pairwise.Identifier, error) {
	if q == nil || q.reader == nil {
		return pairwise.Identifier{}, missingReader("pairwise reader")
	}
	if err := msg.Validate(); err != nil {
		return pairwise.Identifier{}, err
	}
	identifier, err := q.reader.ResolvePairwise(ctx, msg.UserID, msg.SectorIdentifierURI, msg.ClientID)
	if err != nil {
		return pairwise.Identifier{}, readFailure(err)
	}
	return identifier, nil
}

type StatReportQuery struct {
	reader StatReportReader
}

func NewStatReportQuery(reader StatReportReader) *StatReportQuery {
	return &StatReportQuery{reader: reader}
}

func (q *StatReportQuery) Query(ctx context.Context, msg StatReportMessage) (stat.MonthlyReport, error) {
	if q == nil || q.reader == nil {
		return stat.MonthlyReport{}, missingReader("stat report reader")
	}
	if err := msg.Validate(); err != nil {
		return stat.MonthlyReport{}, err
	}
	report, err := q.reader.Report(ctx, msg.Month)
	if err != nil {
		return stat.MonthlyReport{}, readFailure(err)
	}
	return report, nil
}
