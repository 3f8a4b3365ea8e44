package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/metric"
)

const (
	DefaultChannel = "update"
	projectsKey    = "projects"

	keyMetricInfo   = "metric_info"
	keyModelInfo    = "model_info"
	keyProjectInfo  = "project_info"
	keyMetricValues = "metric_values"

	keyCertificateInfo   = "certificate_info"
	keyCertificateValues = "certificate_values"
)

// Keys cleared by Reset. DeleteProject also drops the project and
// certificate info.
var (
	resetKeys  = []string{keyMetricValues, keyModelInfo, keyMetricInfo, keyCertificateValues}
	deleteKeys = []string{keyMetricValues, keyModelInfo, keyMetricInfo, keyProjectInfo, keyCertificateInfo, keyCertificateValues}
)

// Measurement is the JSON document pushed to "<system>|metric_values".
type Measurement struct {
	Date        string                   `json:"date"`
	Tag         string                   `json:"tag,omitempty"`
	SampleCount int64                    `json:"sample_count"`
	Values      map[string]metric.Values `json:"values"`
}

// CertificateMeasurement is the JSON document pushed to
// "<system>|certificate_values".
type CertificateMeasurement struct {
	Date         string                       `json:"date"`
	Certificates map[string]certificate.Value `json:"certificates"`
}

// RedisPublisher stores metadata and measurements under "<system>|<kind>"
// keys and announces changes on a pub/sub channel.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisPublisher connects to the server at url, e.g.
// "redis://localhost:6379/0".
func NewRedisPublisher(url, channel string, logger *slog.Logger) (*RedisPublisher, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return NewRedisPublisherWithClient(redis.NewClient(opts), channel, logger), nil
}

func NewRedisPublisherWithClient(client *redis.Client, channel string, logger *slog.Logger) *RedisPublisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

func key(system, kind string) string {
	return system + "|" + kind
}

func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// ExportMetadata writes metric, model, project and certificate info and
// registers the system in the project set.
func (p *RedisPublisher) ExportMetadata(ctx context.Context, snap *aisystem.Snapshot) error {
	docs := map[string]any{
		keyMetricInfo:      snap.Info,
		keyModelInfo:       snap.Model,
		keyProjectInfo:     snap.Project,
		keyCertificateInfo: snap.CertificateInfo,
	}
	encoded := make(map[string][]byte, len(docs))
	for kind, doc := range docs {
		b, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", kind, err)
		}
		encoded[kind] = b
	}

	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for kind, b := range encoded {
			pipe.Set(ctx, key(snap.System, kind), b, 0)
		}
		pipe.SAdd(ctx, projectsKey, snap.System)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to export metadata: %w", err)
	}

	p.logger.Debug("metadata published", "system", snap.System)
	return nil
}

// AddMeasurement appends the snapshot values and certificate outcomes,
// refreshes project info and announces the new measurement.
func (p *RedisPublisher) AddMeasurement(ctx context.Context, snap *aisystem.Snapshot, tag string) error {
	b, err := json.Marshal(Measurement{
		Date:        snap.Timestamp,
		Tag:         tag,
		SampleCount: snap.SampleCount,
		Values:      snap.Values,
	})
	if err != nil {
		return fmt.Errorf("failed to encode measurement: %w", err)
	}
	certs, err := json.Marshal(CertificateMeasurement{Date: snap.Timestamp, Certificates: snap.Certificates})
	if err != nil {
		return fmt.Errorf("failed to encode certificates: %w", err)
	}
	project, err := json.Marshal(snap.Project)
	if err != nil {
		return fmt.Errorf("failed to encode project info: %w", err)
	}

	_, err = p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key(snap.System, keyMetricValues), b)
		pipe.RPush(ctx, key(snap.System, keyCertificateValues), certs)
		pipe.Set(ctx, key(snap.System, keyProjectInfo), project, 0)
		pipe.Publish(ctx, p.channel, "New measurement: "+snap.Timestamp)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to add measurement: %w", err)
	}

	p.logger.Debug("measurement published", "system", snap.System, "date", snap.Timestamp)
	return nil
}

// Reset clears the stored history of the system and re-exports metadata.
func (p *RedisPublisher) Reset(ctx context.Context, snap *aisystem.Snapshot) error {
	if err := p.client.Del(ctx, keys(snap.System, resetKeys)...).Err(); err != nil {
		return fmt.Errorf("failed to reset %s: %w", snap.System, err)
	}
	if err := p.ExportMetadata(ctx, snap); err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, "cleared").Err()
}

// DeleteProject removes every key of system and unregisters it.
func (p *RedisPublisher) DeleteProject(ctx context.Context, system string) error {
	_, err := p.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys(system, deleteKeys)...)
		pipe.SRem(ctx, projectsKey, system)
		pipe.Publish(ctx, p.channel, "cleared")
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", system, err)
	}
	return nil
}

// Projects lists the registered system names.
func (p *RedisPublisher) Projects(ctx context.Context) ([]string, error) {
	return p.client.SMembers(ctx, projectsKey).Result()
}

// Measurements returns the stored measurements of system, oldest first.
func (p *RedisPublisher) Measurements(ctx context.Context, system string) ([]Measurement, error) {
	raw, err := p.client.LRange(ctx, key(system, keyMetricValues), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]Measurement, 0, len(raw))
	for _, r := range raw {
		var m Measurement
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("failed to decode measurement: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

// CertificateValues returns the stored certificate outcomes of system,
// oldest first.
func (p *RedisPublisher) CertificateValues(ctx context.Context, system string) ([]CertificateMeasurement, error) {
	raw, err := p.client.LRange(ctx, key(system, keyCertificateValues), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]CertificateMeasurement, 0, len(raw))
	for _, r := range raw {
		var m CertificateMeasurement
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("failed to decode certificate values: %w", err)
		}
		out = append(out, m)
	}
	return out, nil
}

func keys(system string, kinds []string) []string {
	out := make([]string, len(kinds))
	for i, k := range kinds {
		out[i] = key(system, k)
	}
	return out
}
