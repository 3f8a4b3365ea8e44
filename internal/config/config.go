package config

import (
	"time"

	"github.com/haskel/raimetrics/internal/certificate"
	"github.com/haskel/raimetrics/internal/dataset"
	"github.com/haskel/raimetrics/internal/metric"
)

type Config struct {
	Server   ServerConfig           `yaml:"server" json:"server"`
	Auth     AuthConfig             `yaml:"auth" json:"auth"`
	Logging  LoggingConfig          `yaml:"logging" json:"logging"`
	Session  SessionConfig          `yaml:"session" json:"session"`
	Model    ModelConfig            `yaml:"model" json:"model"`
	Dataset  DatasetConfig          `yaml:"dataset" json:"dataset"`
	Features []FeatureConfig        `yaml:"features" json:"features,omitempty"`
	Fairness *metric.FairnessConfig `yaml:"fairness" json:"fairness,omitempty"`
	// Certificates replace the built-in certificates when set.
	Certificates []certificate.Descriptor `yaml:"certificates" json:"certificates,omitempty"`
	Monitoring   MonitoringConfig         `yaml:"monitoring" json:"monitoring"`
	Export       ExportConfig             `yaml:"export" json:"export"`
	Persistence  PersistenceConfig        `yaml:"persistence" json:"persistence"`
	Redis        RedisConfig              `yaml:"redis" json:"redis"`
	Prometheus   PrometheusConfig         `yaml:"prometheus" json:"prometheus"`
}

type ServerConfig struct {
	Host         string          `yaml:"host" json:"host" env:"HOST"`
	Port         int             `yaml:"port" json:"port" env:"PORT"`
	PIDFile      string          `yaml:"pid_file" json:"pid_file" env:"PID_FILE"`
	MaxBodyBytes int64           `yaml:"max_body_bytes" json:"max_body_bytes" env:"MAX_BODY_BYTES"`
	RateLimit    RateLimitConfig `yaml:"rate_limit" json:"rate_limit" envPrefix:"RATE_LIMIT_"`
	Profiling    ProfilingConfig `yaml:"profiling" json:"profiling" envPrefix:"PROFILING_"`
}

// ProfilingConfig exposes net/http/pprof under /debug/pprof/. Requests need
// the bearer token, or basic auth when no token is set.
type ProfilingConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Token   string `yaml:"token" json:"-" env:"TOKEN"`
}

type RateLimitConfig struct {
	Enabled           bool    `yaml:"enabled" json:"enabled" env:"ENABLED"`
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second" env:"RPS"`
	Burst             int     `yaml:"burst" json:"burst" env:"BURST"`
}

type AuthConfig struct {
	Enabled  bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	User     string `yaml:"user" json:"user" env:"USER"`
	Password string `yaml:"password" json:"-" env:"PASSWORD"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" json:"level" env:"LEVEL"`
	Format string `yaml:"format" json:"format" env:"FORMAT"`
}

// SessionConfig describes the analysis session and which metric groups it
// attempts.
type SessionConfig struct {
	Name               string   `yaml:"name" json:"name" env:"NAME"`
	Task               string   `yaml:"task" json:"task" env:"TASK"`
	Description        string   `yaml:"description" json:"description,omitempty" env:"DESCRIPTION"`
	MetricGroups       []string `yaml:"metric_groups" json:"metric_groups,omitempty" env:"METRIC_GROUPS"`
	MetricGroupPattern string   `yaml:"metric_group_pattern" json:"metric_group_pattern,omitempty" env:"METRIC_GROUP_PATTERN"`
	TimeComplexity     string   `yaml:"time_complexity" json:"time_complexity,omitempty" env:"TIME_COMPLEXITY"`
}

type ModelConfig struct {
	Name        string   `yaml:"name" json:"name" env:"NAME"`
	DisplayName string   `yaml:"display_name" json:"display_name,omitempty" env:"DISPLAY_NAME"`
	ModelClass  string   `yaml:"model_class" json:"model_class,omitempty" env:"CLASS"`
	Description string   `yaml:"description" json:"description,omitempty" env:"DESCRIPTION"`
	Adaptive    bool     `yaml:"adaptive" json:"adaptive" env:"ADAPTIVE"`
	OutputTypes []string `yaml:"output_types" json:"output_types,omitempty" env:"OUTPUT_TYPES"`
}

// DatasetConfig points at one file per split. Splits without a path are
// not loaded.
type DatasetConfig struct {
	Train    string   `yaml:"train" json:"train,omitempty" env:"TRAIN"`
	Val      string   `yaml:"val" json:"val,omitempty" env:"VAL"`
	Test     string   `yaml:"test" json:"test,omitempty" env:"TEST"`
	Label    string   `yaml:"label" json:"label,omitempty" env:"LABEL"`
	Features []string `yaml:"features" json:"features,omitempty" env:"FEATURES"`
}

// FeatureConfig is the metadata of one dataset column.
type FeatureConfig struct {
	Name        string `yaml:"name" json:"name"`
	Categorical bool   `yaml:"categorical" json:"categorical"`
	Protected   bool   `yaml:"protected" json:"protected"`
	Description string `yaml:"description" json:"description,omitempty"`
}

// MonitoringConfig controls the host resource group.
type MonitoringConfig struct {
	Enabled    bool `yaml:"enabled" json:"enabled" env:"ENABLED"`
	IntervalMS int  `yaml:"interval_ms" json:"interval_ms" env:"INTERVAL_MS"`
}

type ExportConfig struct {
	Dir string `yaml:"dir" json:"dir" env:"DIR"`
}

type PersistenceConfig struct {
	DataDir          string `yaml:"data_dir" json:"data_dir" env:"DATA_DIR"`
	FlushIntervalSec int    `yaml:"flush_interval_sec" json:"flush_interval_sec" env:"FLUSH_INTERVAL_SEC"`
	MaxMeasurements  int    `yaml:"max_measurements" json:"max_measurements" env:"MAX_MEASUREMENTS"`
}

type RedisConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	URL     string `yaml:"url" json:"url" env:"URL"`
	Channel string `yaml:"channel" json:"channel" env:"CHANNEL"`
}

type PrometheusConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled" env:"ENABLED"`
	Namespace string `yaml:"namespace" json:"namespace" env:"NAMESPACE"`
}

func (c *Config) MonitoringInterval() time.Duration {
	return time.Duration(c.Monitoring.IntervalMS) * time.Millisecond
}

func (c *Config) FlushInterval() time.Duration {
	return time.Duration(c.Persistence.FlushIntervalSec) * time.Second
}

// UserConfig returns the typed configuration handed to metric groups.
// Named fairness categories still need resolving against the dataset codes.
func (c *Config) UserConfig() *metric.UserConfig {
	return &metric.UserConfig{Fairness: c.Fairness}
}

// CertificateSet returns the configured certificates, or the built-in set
// when none are configured.
func (c *Config) CertificateSet() (*certificate.Set, error) {
	if len(c.Certificates) == 0 {
		return certificate.Default(), nil
	}
	return certificate.NewSet(c.Certificates...)
}

// MaxComplexity parses session.time_complexity.
func (c *Config) MaxComplexity() (metric.Complexity, error) {
	return metric.ParseComplexity(c.Session.TimeComplexity)
}

func (c *Config) ModelDescriptor() *dataset.Model {
	m := &dataset.Model{
		Name:        c.Model.Name,
		DisplayName: c.Model.DisplayName,
		ModelClass:  c.Model.ModelClass,
		Description: c.Model.Description,
		Adaptive:    c.Model.Adaptive,
	}
	for _, o := range c.Model.OutputTypes {
		m.OutputTypes = append(m.OutputTypes, dataset.OutputType(o))
	}
	return m
}

func (c *Config) MetaDatabase() *dataset.MetaDatabase {
	features := make([]dataset.Feature, 0, len(c.Features))
	for _, f := range c.Features {
		features = append(features, dataset.Feature{
			Name:        f.Name,
			Categorical: f.Categorical,
			Protected:   f.Protected,
			Description: f.Description,
		})
	}
	return dataset.NewMetaDatabase(features...)
}

// Sources maps every configured split to a loader source.
func (c *Config) Sources() map[dataset.Split]dataset.Source {
	paths := map[dataset.Split]string{
		dataset.SplitTrain: c.Dataset.Train,
		dataset.SplitVal:   c.Dataset.Val,
		dataset.SplitTest:  c.Dataset.Test,
	}
	out := make(map[dataset.Split]dataset.Source)
	for split, path := range paths {
		if path == "" {
			continue
		}
		out[split] = dataset.Source{Path: path, Label: c.Dataset.Label, Features: c.Dataset.Features}
	}
	return out
}

// PredictionSource reads column of a predictions file with the category
// codes of the dataset label.
func (c *Config) PredictionSource(path, column string) dataset.Source {
	return dataset.Source{Path: path, Label: column, Codebook: c.Dataset.Label}
}
