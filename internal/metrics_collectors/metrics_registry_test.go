package metrics_collectors_test

import (
	"context"
	"testing"

	"github.com/benmeehan/signage-agent/internal/metrics_collectors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type staticCollector struct {
	name  string
	value interface{}
}

func (s staticCollector) Name() string                            { return s.name }
func (s staticCollector) Collect(ctx context.Context) interface{} { return s.value }

func TestMetricsRegistry_CollectAll(t *testing.T) {
	r := metrics_collectors.NewMetricsRegistry()
	r.Register(staticCollector{name: "cpu_percent", value: 12.5})
	r.Register(staticCollector{name: "broken", value: nil})

	values := r.CollectAll(context.Background())
	assert.Equal(t, map[string]interface{}{"cpu_percent": 12.5}, values)
	assert.Equal(t, []string{"broken", "cpu_percent"}, r.Names())
}

func TestMetricsRegistry_CollectAllEmpty(t *testing.T) {
	r := metrics_collectors.NewMetricsRegistry()
	r.Register(staticCollector{name: "broken"})

	assert.Nil(t, r.CollectAll(context.Background()))
}

func TestNewMetricsRegistryFromConfig(t *testing.T) {
	r := metrics_collectors.NewMetricsRegistryFromConfig(metrics_collectors.MetricsConfig{
		CPU:  true,
		Disk: true,
	}, zerolog.Nop())

	assert.Equal(t, []string{"cpu_percent", "disk_percent"}, r.Names())
}

func TestDiskMetricCollector_Collect(t *testing.T) {
	c := &metrics_collectors.DiskMetricCollector{Path: t.TempDir(), Logger: zerolog.Nop()}

	value := c.Collect(context.Background())
	if assert.IsType(t, float64(0), value) {
		assert.GreaterOrEqual(t, value.(float64), 0.0)
	}
}
