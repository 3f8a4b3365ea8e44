package publish

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func snapshot(timestamp string, accuracy any) *aisystem.Snapshot {
	passed := true
	return &aisystem.Snapshot{
		Certificates: map[string]certificate.Value{
			"minimum_accuracy": {Value: &passed, Explanation: "accuracy = 0.75, want accuracy >= 0.7"},
			"balanced_f1":      {Explanation: "f1 is not available"},
		},
		CertificateInfo: map[string]certificate.Info{
			"minimum_accuracy": {DisplayName: "Minimum accuracy", Level: 1, Condition: "accuracy >= 0.7"},
		},
		System:      "credit",
		Task:        metric.TaskBinaryClassification,
		Timestamp:   timestamp,
		SampleCount: 2,
		Values: map[string]metric.Values{
			"perf":  {"accuracy": accuracy},
			"stats": {"feature_mean": map[string]float64{"age": 40}},
		},
		Flat: []aisystem.Value{
			{Group: "perf", Metric: "accuracy", Value: accuracy},
			{Group: "stats", Metric: "feature_mean", Value: map[string]float64{"age": 40}},
		},
		Info: aisystem.MetricInfo{
			Metrics:    map[string]metric.Info{"accuracy": {Name: "accuracy", Group: "perf"}},
			Categories: map[string][]string{"performance": {"accuracy"}},
		},
		Model:   dataset.ModelInfo{ID: "credit", Model: "LogisticRegression"},
		Project: aisystem.ProjectInfo{Name: "credit", Task: "binary_classification", SampleCount: 2},
	}
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *RedisPublisher) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	p, err := NewRedisPublisher("redis://"+mr.Addr(), "", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return mr, p
}

func TestNewRedisPublisher_InvalidURL(t *testing.T) {
	_, err := NewRedisPublisher("://bad", "", testLogger())
	require.Error(t, err)
}

func TestRedisPublisher_Ping(t *testing.T) {
	_, p := setupRedis(t)
	require.NoError(t, p.Ping(context.Background()))
}

func TestRedisPublisher_ExportMetadata(t *testing.T) {
	mr, p := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, p.ExportMetadata(ctx, snapshot("", nil)))

	raw, err := mr.Get("credit|metric_info")
	require.NoError(t, err)
	var info aisystem.MetricInfo
	require.NoError(t, json.Unmarshal([]byte(raw), &info))
	assert.Equal(t, "perf", info.Metrics["accuracy"].Group)
	assert.Equal(t, []string{"accuracy"}, info.Categories["performance"])

	raw, err = mr.Get("credit|model_info")
	require.NoError(t, err)
	assert.Contains(t, raw, `"model":"LogisticRegression"`)

	raw, err = mr.Get("credit|project_info")
	require.NoError(t, err)
	assert.Contains(t, raw, `"task":"binary_classification"`)

	raw, err = mr.Get("credit|certificate_info")
	require.NoError(t, err)
	var certs map[string]certificate.Info
	require.NoError(t, json.Unmarshal([]byte(raw), &certs))
	assert.Equal(t, "accuracy >= 0.7", certs["minimum_accuracy"].Condition)

	projects, err := p.Projects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"credit"}, projects)
}

func TestRedisPublisher_AddMeasurement(t *testing.T) {
	_, p := setupRedis(t)
	ctx := context.Background()

	require.NoError(t, p.AddMeasurement(ctx, snapshot("2024-03-05-14:07:09", 0.75), "baseline"))
	require.NoError(t, p.AddMeasurement(ctx, snapshot("2024-03-05-14:08:00", 0.8), ""))

	ms, err := p.Measurements(ctx, "credit")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "2024-03-05-14:07:09", ms[0].Date)
	assert.Equal(t, "baseline", ms[0].Tag)
	assert.Equal(t, 0.75, ms[0].Values["perf"]["accuracy"])
	assert.Equal(t, 0.8, ms[1].Values["perf"]["accuracy"])
	assert.Equal(t, int64(2), ms[1].SampleCount)

	certs, err := p.CertificateValues(ctx, "credit")
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, "2024-03-05-14:07:09", certs[0].Date)
	assert.True(t, certs[0].Certificates["minimum_accuracy"].Passed())
	assert.Nil(t, certs[0].Certificates["balanced_f1"].Value)
}

func TestRedisPublisher_AddMeasurementPublishes(t *testing.T) {
	mr, p := setupRedis(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	sub := client.Subscribe(ctx, DefaultChannel)
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, p.AddMeasurement(ctx, snapshot("2024-03-05-14:07:09", 0.75), ""))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Equal(t, "New measurement: 2024-03-05-14:07:09", msg.Payload)
}

func TestRedisPublisher_Reset(t *testing.T) {
	mr, p := setupRedis(t)
	ctx := context.Background()
	snap := snapshot("2024-03-05-14:07:09", 0.75)

	require.NoError(t, p.ExportMetadata(ctx, snap))
	require.NoError(t, p.AddMeasurement(ctx, snap, ""))
	require.NoError(t, p.Reset(ctx, snap))

	assert.False(t, mr.Exists("credit|metric_values"))
	assert.False(t, mr.Exists("credit|certificate_values"))
	assert.True(t, mr.Exists("credit|metric_info"), "metadata is re-exported after reset")
	assert.True(t, mr.Exists("credit|certificate_info"))
	assert.True(t, mr.Exists("credit|project_info"))

	ms, err := p.Measurements(ctx, "credit")
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestRedisPublisher_DeleteProject(t *testing.T) {
	mr, p := setupRedis(t)
	ctx := context.Background()
	snap := snapshot("2024-03-05-14:07:09", 0.75)

	require.NoError(t, p.ExportMetadata(ctx, snap))
	require.NoError(t, p.AddMeasurement(ctx, snap, ""))
	require.NoError(t, p.DeleteProject(ctx, "credit"))

	for _, k := range []string{"credit|metric_values", "credit|metric_info", "credit|model_info", "credit|project_info", "credit|certificate_info", "credit|certificate_values"} {
		assert.False(t, mr.Exists(k), k)
	}
	projects, err := p.Projects(ctx)
	require.NoError(t, err)
	assert.Empty(t, projects)
}

func TestRedisPublisher_ServerDown(t *testing.T) {
	mr, p := setupRedis(t)
	mr.Close()

	err := p.AddMeasurement(context.Background(), snapshot("x", 0.5), "")
	require.Error(t, err)
}

func TestPrometheusExporter_AddMeasurement(t *testing.T) {
	e := NewPrometheusExporter("")
	ctx := context.Background()

	require.NoError(t, e.AddMeasurement(ctx, snapshot("2024-03-05-14:07:09", 0.75), ""))

	assert.Equal(t, 0.75, testutil.ToFloat64(e.values.WithLabelValues("credit", "perf", "accuracy")))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.samples.WithLabelValues("credit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.measurements.WithLabelValues("credit")))

	// non-scalar values are not exported
	assert.Equal(t, 1, testutil.CollectAndCount(e.values))

	// an undefined value removes the series
	require.NoError(t, e.AddMeasurement(ctx, snapshot("2024-03-05-14:08:00", nil), ""))
	assert.Equal(t, 0, testutil.CollectAndCount(e.values))
	assert.Equal(t, 2.0, testutil.ToFloat64(e.measurements.WithLabelValues("credit")))
}

func TestPrometheusExporter_Certificates(t *testing.T) {
	e := NewPrometheusExporter("")
	ctx := context.Background()
	snap := snapshot("t", 0.75)

	require.NoError(t, e.AddMeasurement(ctx, snap, ""))
	assert.Equal(t, 1.0, testutil.ToFloat64(e.certificates.WithLabelValues("credit", "minimum_accuracy")))
	// undefined certificates have no series
	assert.Equal(t, 1, testutil.CollectAndCount(e.certificates))

	failed := false
	snap.Certificates["minimum_accuracy"] = certificate.Value{Value: &failed}
	require.NoError(t, e.AddMeasurement(ctx, snap, ""))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.certificates.WithLabelValues("credit", "minimum_accuracy")))

	require.NoError(t, e.ExportMetadata(ctx, snap))
	assert.Equal(t, 0, testutil.CollectAndCount(e.certificates))
}

func TestPrometheusExporter_ExportMetadataDropsSeries(t *testing.T) {
	e := NewPrometheusExporter("rai")
	ctx := context.Background()

	require.NoError(t, e.AddMeasurement(ctx, snapshot("t", 0.75), ""))
	require.NoError(t, e.ExportMetadata(ctx, snapshot("t", 0.75)))

	assert.Equal(t, 0, testutil.CollectAndCount(e.values))
}

func TestPrometheusExporter_Handler(t *testing.T) {
	e := NewPrometheusExporter("rai")
	require.NoError(t, e.AddMeasurement(context.Background(), snapshot("t", 0.5), ""))

	srv := httptest.NewServer(e.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `rai_metric_value{group="perf",metric="accuracy",system="credit"} 0.5`), string(body))
}

type stubPublisher struct {
	metadata, measurements, resets int
	err                            error
}

func (s *stubPublisher) ExportMetadata(context.Context, *aisystem.Snapshot) error {
	s.metadata++
	return s.err
}

func (s *stubPublisher) AddMeasurement(context.Context, *aisystem.Snapshot, string) error {
	s.measurements++
	return s.err
}

type resettingPublisher struct {
	stubPublisher
}

func (s *resettingPublisher) Reset(context.Context, *aisystem.Snapshot) error {
	s.resets++
	return s.err
}

func TestMulti(t *testing.T) {
	ok := &stubPublisher{}
	failing := &resettingPublisher{stubPublisher{err: errors.New("down")}}
	m := Multi{ok, failing}
	ctx := context.Background()
	snap := snapshot("t", 0.5)

	err := m.AddMeasurement(ctx, snap, "")
	require.Error(t, err)
	assert.Equal(t, 1, ok.measurements, "a failing publisher does not stop the others")
	assert.Equal(t, 1, failing.measurements)

	require.Error(t, m.ExportMetadata(ctx, snap))
	assert.Equal(t, 1, ok.metadata)

	require.Error(t, m.Reset(ctx, snap))
	assert.Equal(t, 1, failing.resets)

	require.NoError(t, Multi{}.AddMeasurement(ctx, snap, ""))
}
