package publish

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/haskel/raimetrics/internal/aisystem"
)

const DefaultNamespace = "rai"

// PrometheusExporter mirrors scalar metric values into gauges on its own
// registry. Non-scalar and undefined values are not exported.
type PrometheusExporter struct {
	registry     *prometheus.Registry
	values       *prometheus.GaugeVec
	samples      *prometheus.GaugeVec
	certificates *prometheus.GaugeVec
	measurements *prometheus.CounterVec
}

func NewPrometheusExporter(namespace string) *PrometheusExporter {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	e := &PrometheusExporter{
		registry: prometheus.NewRegistry(),
		values: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "metric_value",
				Help:      "Current value of a scalar metric",
			},
			[]string{"system", "group", "metric"},
		),
		samples: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sample_count",
				Help:      "Compute and update calls since the last reset",
			},
			[]string{"system"},
		),
		certificates: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "certificate_passed",
				Help:      "1 when a certificate passes, 0 when it fails",
			},
			[]string{"system", "certificate"},
		),
		measurements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "measurements_total",
				Help:      "Measurements published",
			},
			[]string{"system"},
		),
	}
	e.registry.MustRegister(e.values, e.samples, e.certificates, e.measurements)
	return e
}

func (e *PrometheusExporter) Registry() *prometheus.Registry {
	return e.registry
}

func (e *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// ExportMetadata drops the series of the system so that groups removed by
// a re-initialization disappear.
func (e *PrometheusExporter) ExportMetadata(_ context.Context, snap *aisystem.Snapshot) error {
	e.values.DeletePartialMatch(prometheus.Labels{"system": snap.System})
	e.certificates.DeletePartialMatch(prometheus.Labels{"system": snap.System})
	e.samples.WithLabelValues(snap.System).Set(float64(snap.SampleCount))
	return nil
}

func (e *PrometheusExporter) AddMeasurement(_ context.Context, snap *aisystem.Snapshot, _ string) error {
	for _, v := range snap.Flat {
		f, ok := scalar(v.Value)
		if !ok {
			e.values.DeleteLabelValues(snap.System, v.Group, v.Metric)
			continue
		}
		e.values.WithLabelValues(snap.System, v.Group, v.Metric).Set(f)
	}
	for name, c := range snap.Certificates {
		if c.Value == nil {
			e.certificates.DeleteLabelValues(snap.System, name)
			continue
		}
		passed := 0.0
		if *c.Value {
			passed = 1
		}
		e.certificates.WithLabelValues(snap.System, name).Set(passed)
	}
	e.samples.WithLabelValues(snap.System).Set(float64(snap.SampleCount))
	e.measurements.WithLabelValues(snap.System).Inc()
	return nil
}

func (e *PrometheusExporter) Reset(ctx context.Context, snap *aisystem.Snapshot) error {
	return e.ExportMetadata(ctx, snap)
}

func scalar(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
