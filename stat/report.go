package stat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/goliatone/go-idp-services/directory"
)

type MonthlyReport struct {
	Month                  string
	MonthlyActiveUsers     uint64
	TokenCountPerGrantType map[string]map[string]int64
	Nodes                  []string
}

// Reporter combines the records every node flushed for a month. The active
// user figure is the estimate of the merged sketches, so users seen on
// several nodes are counted once.
type Reporter struct {
	store  directory.Store
	baseDN string
}

func NewReporter(store directory.Store, baseDN string) *Reporter {
	return &Reporter{store: store, baseDN: strings.TrimSpace(baseDN)}
}

func (r *Reporter) Report(ctx context.Context, month string) (MonthlyReport, error) {
	month = strings.TrimSpace(month)
	if _, err := time.Parse(periodLayout, month); err != nil {
		return MonthlyReport{}, fmt.Errorf("stat: invalid month %q: %w", month, err)
	}
	if r == nil || r.store == nil {
		return MonthlyReport{}, fmt.Errorf("stat: reporter store is required")
	}

	entries, err := r.store.FindAll(ctx, MonthlyBranchDN(month, r.baseDN), ObjectClassStatEntry, nil)
	if err != nil {
		return MonthlyReport{}, fmt.Errorf("stat: load records for %s: %w", month, err)
	}

	report := MonthlyReport{
		Month:                  month,
		TokenCountPerGrantType: map[string]map[string]int64{},
		Nodes:                  []string{},
	}
	merged := NewEstimator()
	for _, entry := range entries {
		record, err := RecordFromEntry(entry)
		if err != nil {
			return MonthlyReport{}, err
		}
		estimator, err := DeserializeEstimator(record.UserHLLData)
		if err != nil {
			return MonthlyReport{}, fmt.Errorf("stat: record %s: %w", record.DN, err)
		}
		if err := merged.Merge(estimator); err != nil {
			return MonthlyReport{}, err
		}
		for grantType, kinds := range record.TokenCountPerGrantType {
			target := report.TokenCountPerGrantType[grantType]
			if target == nil {
				target = map[string]int64{}
				report.TokenCountPerGrantType[grantType] = target
			}
			for kind, count := range kinds {
				target[kind] += count
			}
		}
		if record.NodeID != "" {
			report.Nodes = append(report.Nodes, record.NodeID)
		}
	}
	sort.Strings(report.Nodes)
	report.MonthlyActiveUsers = merged.Estimate()
	return report, nil
}

// Report is a shortcut for NewReporter(s.store, s.BaseDN()).Report.
func (s *Service) Report(ctx context.Context, month string) (MonthlyReport, error) {
	return NewReporter(s.store, s.baseDN).Report(ctx, month)
}
