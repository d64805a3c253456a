package core

import (
	"context"
	"maps"
)

const (
	MetricStatActiveUser  = "idp.stat.active_user.total"
	MetricStatTokenIssued = "idp.stat.token_issued.total"
)

// metricTagKeys are the operation fields promoted to metric tags. User and
// client ids stay out so series cardinality is bounded by configuration.
var metricTagKeys = []string{"id_type", "grant_type", "token_kind", "month"}

// OperationCounter names the per-call counter of an observed operation,
// for example idp.stat_flush.total.
func OperationCounter(operation string) string {
	return "idp." + normalizeOperation(operation) + ".total"
}

func OperationHistogram(operation string) string {
	return "idp." + normalizeOperation(operation) + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	return maps.Clone(tags)
}

var _ MetricsRecorder = NopMetricsRecorder{}
