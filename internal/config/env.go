package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/caarlos0/env/v11"
)

// EnvPrefix prefixes every environment override, e.g. RAI_SERVER_PORT.
const EnvPrefix = "RAI_"

// envRef matches ${NAME} and ${NAME:-fallback}.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// substituteEnvVars expands environment references in a config file. An
// unset variable without a fallback is left as written so validation can
// point at it.
func substituteEnvVars(content []byte) []byte {
	return envRef.ReplaceAllFunc(content, func(ref []byte) []byte {
		m := envRef.FindSubmatchIndex(ref)
		name := string(ref[m[2]:m[3]])
		if value, ok := os.LookupEnv(name); ok {
			return []byte(value)
		}
		if m[4] >= 0 {
			return ref[m[4]:m[5]]
		}
		return ref
	})
}

// ApplyEnv overrides fields of cfg from RAI_* variables. Unset variables
// leave the current values in place.
func ApplyEnv(cfg *Config) error {
	sections := []struct {
		prefix string
		target any
	}{
		{"SERVER_", &cfg.Server},
		{"AUTH_", &cfg.Auth},
		{"LOG_", &cfg.Logging},
		{"SESSION_", &cfg.Session},
		{"MODEL_", &cfg.Model},
		{"DATASET_", &cfg.Dataset},
		{"MONITORING_", &cfg.Monitoring},
		{"EXPORT_", &cfg.Export},
		{"PERSISTENCE_", &cfg.Persistence},
		{"REDIS_", &cfg.Redis},
		{"PROMETHEUS_", &cfg.Prometheus},
	}
	for _, s := range sections {
		if err := env.ParseWithOptions(s.target, env.Options{Prefix: EnvPrefix + s.prefix}); err != nil {
			return fmt.Errorf("failed to apply %s%s* environment: %w", EnvPrefix, s.prefix, err)
		}
	}
	return nil
}
