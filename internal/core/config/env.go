package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// ApplyEnvOverrides applies environment variable overrides to the configuration.
// Pattern: MICROSCOPE_[SECTION]_[KEY] (e.g., MICROSCOPE_CHECK_WORKERS).
func ApplyEnvOverrides(cfg *Config) {
	setEnvInt(&cfg.Check.Workers, "MICROSCOPE_CHECK_WORKERS")
	setEnvBool(&cfg.Check.AutoFix, "MICROSCOPE_CHECK_AUTO_FIX")
	setEnvBool(&cfg.Check.OnlyAbsoluteCallables, "MICROSCOPE_CHECK_ONLY_ABSOLUTE_CALLABLES")

	setEnvString(&cfg.Composer.File, "MICROSCOPE_COMPOSER_FILE")

	setEnvString(&cfg.Oracle.SQLitePath, "MICROSCOPE_ORACLE_SQLITE_PATH")
	setEnvString(&cfg.Oracle.Manifest, "MICROSCOPE_ORACLE_MANIFEST")
	setEnvInt(&cfg.Oracle.CacheSize, "MICROSCOPE_ORACLE_CACHE_SIZE")
	setEnvFloat64(&cfg.Oracle.MaxQueriesPerSecond, "MICROSCOPE_ORACLE_MAX_QUERIES_PER_SECOND")

	setEnvString(&cfg.Output.Format, "MICROSCOPE_OUTPUT_FORMAT")
	setEnvString(&cfg.Output.Path, "MICROSCOPE_OUTPUT_PATH")

	setEnvDuration(&cfg.Watch.Debounce, "MICROSCOPE_WATCH_DEBOUNCE")

	setEnvString(&cfg.Observability.MetricsAddr, "MICROSCOPE_OBSERVABILITY_METRICS_ADDR")
	setEnvString(&cfg.Observability.OTLPEndpoint, "MICROSCOPE_OBSERVABILITY_OTLP_ENDPOINT")
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok {
		slog.Debug("applying env override", "key", key, "value", val)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = i
		}
	}
}

func setEnvBool(target *bool, key string) {
	if val, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(strings.ToLower(val))
		if err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = b
		}
	}
}

func setEnvFloat64(target *float64, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = f
		}
	}
}

func setEnvDuration(target *time.Duration, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", val)
			*target = d
		}
	}
}
