package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"

	"github.com/haskel/raimetrics/internal/metric"
)

func (c *Config) Validate() error {
	var errs []error

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}

	if err := c.Auth.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("auth: %w", err))
	}

	if c.Server.Profiling.Enabled && c.Server.Profiling.Token == "" && !c.Auth.Enabled {
		errs = append(errs, fmt.Errorf("server: profiling requires a token or auth to be enabled"))
	}

	if err := c.Logging.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("logging: %w", err))
	}

	if err := c.Session.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("session: %w", err))
	}

	if err := c.ModelDescriptor().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("model: %w", err))
	}

	if err := c.UserConfig().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("fairness: %w", err))
	}

	if _, err := c.CertificateSet(); err != nil {
		errs = append(errs, fmt.Errorf("certificates: %w", err))
	}

	if err := c.Monitoring.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("monitoring: %w", err))
	}

	if err := c.Persistence.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("persistence: %w", err))
	}

	if err := c.Redis.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("redis: %w", err))
	}

	return errors.Join(errs...)
}

func (s *ServerConfig) Validate() error {
	var errs []error

	if s.Port < 1 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port must be between 1 and 65535, got %d", s.Port))
	}
	if s.MaxBodyBytes < 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be non-negative"))
	}
	if s.RateLimit.Enabled {
		if s.RateLimit.RequestsPerSecond <= 0 {
			errs = append(errs, fmt.Errorf("rate_limit.requests_per_second must be positive"))
		}
		if s.RateLimit.Burst < 1 {
			errs = append(errs, fmt.Errorf("rate_limit.burst must be at least 1"))
		}
	}

	return errors.Join(errs...)
}

func (a *AuthConfig) Validate() error {
	if a.Enabled {
		if a.User == "" {
			return fmt.Errorf("user cannot be empty when auth is enabled")
		}
		if a.Password == "" {
			return fmt.Errorf("password cannot be empty when auth is enabled")
		}
	}
	return nil
}

func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", l.Level)
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[l.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text)", l.Format)
	}

	return nil
}

func (s *SessionConfig) Validate() error {
	var errs []error

	if s.Name == "" {
		errs = append(errs, fmt.Errorf("name cannot be empty"))
	}
	if _, err := metric.ParseTaskType(s.Task); err != nil {
		errs = append(errs, err)
	}
	if _, err := metric.ParseComplexity(s.TimeComplexity); err != nil {
		errs = append(errs, fmt.Errorf("time_complexity: %w", err))
	}
	if s.MetricGroupPattern != "" {
		if _, err := regexp.Compile(s.MetricGroupPattern); err != nil {
			errs = append(errs, fmt.Errorf("invalid metric_group_pattern: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (m *MonitoringConfig) Validate() error {
	if m.Enabled && m.IntervalMS < 100 {
		return fmt.Errorf("interval_ms must be at least 100, got %d", m.IntervalMS)
	}
	return nil
}

func (p *PersistenceConfig) Validate() error {
	if p.DataDir == "" {
		return fmt.Errorf("data_dir cannot be empty")
	}
	if p.FlushIntervalSec < 1 {
		return fmt.Errorf("flush_interval_sec must be at least 1")
	}
	if p.MaxMeasurements < 1 {
		return fmt.Errorf("max_measurements must be at least 1")
	}
	return nil
}

func (r *RedisConfig) Validate() error {
	if !r.Enabled {
		return nil
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return fmt.Errorf("url scheme must be redis or rediss, got %q", u.Scheme)
	}
	if r.Channel == "" {
		return fmt.Errorf("channel cannot be empty")
	}
	return nil
}
