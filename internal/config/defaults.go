package config

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			PIDFile:      "/var/run/rai.pid",
			MaxBodyBytes: 10 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           false,
				RequestsPerSecond: 100,
				Burst:             200,
			},
		},
		Auth: AuthConfig{
			Enabled:  false,
			User:     "",
			Password: "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Session: SessionConfig{
			Name: "rai",
			Task: "binary_classification",
		},
		Model: ModelConfig{
			Name:        "model",
			OutputTypes: []string{"predict"},
		},
		Monitoring: MonitoringConfig{
			Enabled:    false,
			IntervalMS: 1000,
		},
		Export: ExportConfig{
			Dir: "output",
		},
		Persistence: PersistenceConfig{
			DataDir:          "/var/lib/rai",
			FlushIntervalSec: 600,
			MaxMeasurements:  1000,
		},
		Redis: RedisConfig{
			Enabled: false,
			URL:     "redis://localhost:6379/0",
			Channel: "update",
		},
		Prometheus: PrometheusConfig{
			Enabled:   true,
			Namespace: "rai",
		},
	}
}
