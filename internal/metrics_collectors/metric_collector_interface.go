package metrics_collectors

import "context"

// MetricCollector collects one device health value for the heartbeat.
type MetricCollector interface {
	Name() string                            // Key of the metric in the heartbeat (e.g. "cpu")
	Collect(ctx context.Context) interface{} // Current value, nil if unavailable
}
