package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/haskel/raimetrics/internal/aisystem"
	"github.com/haskel/raimetrics/internal/config"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
	"github.com/haskel/raimetrics/internal/metric/groups"
	"github.com/haskel/raimetrics/internal/monitor"
	"github.com/haskel/raimetrics/internal/publish"
)

// loadConfig reads the --config file, failing on errors, or returns the
// defaults with environment overrides when no file is given.
func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.FromEnv()
	}
	return config.Load(cfgFile)
}

// newRegistry builds the standard group registry. The system group is
// included only when host monitoring is enabled.
func newRegistry(cfg *config.Config, log *slog.Logger) (*metric.Registry, error) {
	var opts groups.Options
	if cfg.Monitoring.Enabled {
		opts.Sampler = monitor.NewSampler(monitor.Default(), cfg.MonitoringInterval(), log)
	}
	return groups.Default(opts)
}

// newSystem loads the configured dataset splits through loader and builds
// the system described by the session settings. Files read later through
// the same loader share the dataset's category codes. Callers initialize it.
func newSystem(ctx context.Context, cfg *config.Config, loader *dataset.Loader, log *slog.Logger) (*aisystem.System, error) {
	ds, err := loader.LoadAll(ctx, cfg.Sources())
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}
	log.Info("dataset loaded", "splits", ds.Loaded(), "categorical_columns", loader.Dictionary().Columns())

	uc, err := cfg.UserConfig().Resolve(loader.Dictionary(), cfg.Dataset.Label)
	if err != nil {
		return nil, err
	}

	certs, err := cfg.CertificateSet()
	if err != nil {
		return nil, err
	}

	reg, err := newRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	task, err := metric.ParseTaskType(cfg.Session.Task)
	if err != nil {
		return nil, err
	}

	return aisystem.New(cfg.Session.Name, task, cfg.ModelDescriptor(), ds, cfg.MetaDatabase(), reg,
		aisystem.WithLogger(log),
		aisystem.WithUserConfig(uc),
		aisystem.WithCertificates(certs),
		aisystem.WithDescription(cfg.Session.Description),
	)
}

func initOptions(cfg *config.Config) (aisystem.InitOptions, error) {
	ceiling, err := cfg.MaxComplexity()
	if err != nil {
		return aisystem.InitOptions{}, err
	}
	return aisystem.InitOptions{
		Groups:        cfg.Session.MetricGroups,
		Pattern:       cfg.Session.MetricGroupPattern,
		MaxComplexity: ceiling,
	}, nil
}

// publishers holds the publishing collaborators enabled by the config.
type publishers struct {
	multi      publish.Multi
	prometheus *publish.PrometheusExporter
	redis      *publish.RedisPublisher
}

func newPublishers(ctx context.Context, cfg *config.Config, log *slog.Logger) (*publishers, error) {
	p := &publishers{}

	if cfg.Prometheus.Enabled {
		p.prometheus = publish.NewPrometheusExporter(cfg.Prometheus.Namespace)
		p.multi = append(p.multi, p.prometheus)
	}

	if cfg.Redis.Enabled {
		rp, err := publish.NewRedisPublisher(cfg.Redis.URL, cfg.Redis.Channel, log)
		if err != nil {
			return nil, err
		}
		if err := rp.Ping(ctx); err != nil {
			rp.Close()
			return nil, fmt.Errorf("redis unavailable: %w", err)
		}
		p.redis = rp
		p.multi = append(p.multi, rp)
	}

	return p, nil
}

func (p *publishers) Close() error {
	if p.redis != nil {
		return p.redis.Close()
	}
	return nil
}
