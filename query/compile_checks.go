package query

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-idp-services/core"
	"github.com/goliatone/go-idp-services/pairwise"
	"github.com/goliatone/go-idp-services/stat"
)

var (
	_ gocmd.Querier[ResolvePairwiseMessage, pairwise.Identifier] = (*ResolvePairwiseQuery)(nil)
	_ gocmd.Querier[StatReportMessage, stat.MonthlyReport]       = (*StatReportQuery)(nil)

	_ PairwiseReader   = (*core.Service)(nil)
	_ StatReportReader = (*core.Service)(nil)
	_ StatReportReader = (*stat.Reporter)(nil)
)
