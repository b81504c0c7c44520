package metrics_collectors

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
)

// MetricsConfig selects the device health values reported with each heartbeat.
type MetricsConfig struct {
	CPU      bool   `yaml:"cpu"`
	Memory   bool   `yaml:"memory"`
	Disk     bool   `yaml:"disk"`
	DiskPath string `yaml:"disk_path"` // Filesystem checked by the disk collector, usually the media dir
}

// MetricsRegistry holds the enabled collectors.
type MetricsRegistry struct {
	collectors map[string]MetricCollector
}

// NewMetricsRegistry creates a new MetricsRegistry instance.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		collectors: make(map[string]MetricCollector),
	}
}

// NewMetricsRegistryFromConfig registers a collector for every enabled metric.
func NewMetricsRegistryFromConfig(config MetricsConfig, logger zerolog.Logger) *MetricsRegistry {
	r := NewMetricsRegistry()
	if config.CPU {
		r.Register(&CPUMetricCollector{Logger: logger})
	}
	if config.Memory {
		r.Register(&MemoryMetricCollector{Logger: logger})
	}
	if config.Disk {
		r.Register(&DiskMetricCollector{Path: config.DiskPath, Logger: logger})
	}
	return r
}

// Register adds a new metric collector to the registry.
func (r *MetricsRegistry) Register(collector MetricCollector) {
	r.collectors[collector.Name()] = collector
}

// Names returns the registered metric names, sorted.
func (r *MetricsRegistry) Names() []string {
	names := make([]string, 0, len(r.collectors))
	for name := range r.collectors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CollectAll runs every collector and drops the ones that returned nothing.
// It returns nil when no value was collected.
func (r *MetricsRegistry) CollectAll(ctx context.Context) map[string]interface{} {
	var values map[string]interface{}
	for name, collector := range r.collectors {
		value := collector.Collect(ctx)
		if value == nil {
			continue
		}
		if values == nil {
			values = make(map[string]interface{}, len(r.collectors))
		}
		values[name] = value
	}
	return values
}
