package config

type configDefinition struct {
	Port      int        `koanf:"port"`
	ApiSecret string     `koanf:"api_secret"`
	RawBearer string     `koanf:"raw_bearer"`
	Database  database   `koanf:"database"`
	Logging   logging    `koanf:"logging"`
	Sentry    sentry     `koanf:"sentry"`
	Pyroscope pyroscope  `koanf:"pyroscope"`
	Prom      Prometheus `koanf:"prometheus"`
	Landing   landing    `koanf:"landing"`
}

type database struct {
	Addr     string `koanf:"address"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Db       string `koanf:"db"`
	MaxPool  int    `koanf:"max_pool"`
}

type logging struct {
	Debug      bool `koanf:"debug"`
	SaveLogs   bool `koanf:"save_logs"`
	MaxSize    int  `koanf:"max_size"`
	MaxBackups int  `koanf:"max_backups"`
	MaxAge     int  `koanf:"max_age"`
	Compress   bool `koanf:"compress"`
}

type sentry struct {
	DSN              string  `koanf:"dsn"`
	SampleRate       float64 `koanf:"sample_rate"`
	EnableTracing    bool    `koanf:"enable_tracing"`
	TracesSampleRate float64 `koanf:"traces_sample_rate"`
}

type pyroscope struct {
	ApplicationName      string `koanf:"application_name"`
	ServerAddress        string `koanf:"server_address"`
	ApiKey               string `koanf:"api_key"`
	Logger               bool   `koanf:"logger"`
	MutexProfileFraction int    `koanf:"mutex_profile_fraction"`
	BlockProfileRate     int    `koanf:"block_profile_rate"`
}

type Prometheus struct {
	Enabled    bool      `koanf:"enabled"`
	Token      string    `koanf:"token"`
	BucketSize []float64 `koanf:"bucket_size"`
}

// landing tunes the write-behind engine. Mode presets may be partially
// overridden per mode; omitted fields keep the built-in defaults.
type landing struct {
	RetryCeiling        int                   `koanf:"retry_ceiling"`
	HysteresisWindow    int                   `koanf:"hysteresis_window"`
	RateLimit           int                   `koanf:"rate_limit"`
	BurstCapacity       int                   `koanf:"burst_capacity"`
	StartupDelaySeconds int                   `koanf:"startup_delay_seconds"`
	DroppedTTLMinutes   int                   `koanf:"dropped_ttl_minutes"`
	SourceTTLHours      int                   `koanf:"source_ttl_hours"`
	Modes               map[string]modePreset `koanf:"modes"`
}

type modePreset struct {
	BatchSize        int   `koanf:"batch_size"`
	IntervalMs       int   `koanf:"interval_ms"`
	Adaptive         *bool `koanf:"adaptive"`
	BacklogThreshold *int  `koanf:"backlog_threshold"`
	IdleThreshold    *int  `koanf:"idle_threshold"`
}

var Config = configDefinition{
	Port: 9001,
	Database: database{
		MaxPool: 100,
	},
	Logging: logging{
		SaveLogs:   true,
		MaxSize:    500,
		MaxBackups: 3,
		MaxAge:     28,
	},
	Sentry: sentry{
		SampleRate:       1.0,
		TracesSampleRate: 1.0,
	},
	Pyroscope: pyroscope{
		ApplicationName:      "moorhen",
		MutexProfileFraction: 5,
		BlockProfileRate:     5,
	},
	Landing: landing{
		RetryCeiling:        3,
		HysteresisWindow:    3,
		StartupDelaySeconds: 0,
		DroppedTTLMinutes:   60,
		SourceTTLHours:      24,
	},
}

func (c *configDefinition) GetPrometheus() Prometheus {
	return c.Prom
}
