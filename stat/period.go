package stat

import (
	"time"

	"github.com/goliatone/go-idp-services/directory"
)

// Periods are calendar months in UTC, formatted YYYYMM (January 2020 is 202001).
const periodLayout = "200601"

func PeriodKey(t time.Time) string {
	return t.UTC().Format(periodLayout)
}

// MonthlyBranchDN returns ou=<period>,<baseDN>.
func MonthlyBranchDN(period string, baseDN string) string {
	return directory.JoinDN(directory.AttrOU, period, baseDN)
}

// EntryDN returns jansId=<nodeID>,<monthlyDN>.
func EntryDN(nodeID string, monthlyDN string) string {
	return directory.JoinDN(AttrID, nodeID, monthlyDN)
}
