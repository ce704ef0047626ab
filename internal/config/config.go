// Package config reads the environment (spec.md §6) into a typed Config
// once at startup, following the teacher's own env-var-plus-.env
// loader pattern (cmd/agentd/main.go calling godotenv.Load before
// config.Load).
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Cache holds the PREPROCESSING_CACHE_* family of variables.
type Cache struct {
	Backend       string
	TTL           time.Duration
	MaxItems      int
	Compress      bool
	SchemaVersion string
}

// Obs holds the OpenTelemetry bootstrap options. OTLP is empty when
// OTEL_EXPORTER_OTLP_ENDPOINT is unset; InitOTel then returns an error and
// main runs without tracing or metrics.
type Obs struct {
	OTLP           string
	ServiceName    string
	ServiceVersion string
	Environment    string
}

// Config is the process-wide configuration for the focusing manager, loaded
// once in main and passed to the components main constructs instead of
// read from globals (spec.md §9's "replace singletons with explicit
// construction" redesign note).
type Config struct {
	ServerPort int

	FHIREpiURL string
	FHIRIpsURL string
	ProfileURL string

	PreprocessingLabelSelector string
	FocusingLabelSelector      string
	ExternalPreprocessors      []string

	Cache Cache

	LogLevel           string
	LeeLoggingEnabled  bool
	LensLoggingEnabled bool

	Environment string // "standalone" selects container-runtime discovery; else cluster orchestrator.

	RedisAddr string

	Obs Obs
}

// IsStandalone reports whether ENVIRONMENT selects the container-runtime
// discovery back-end (spec.md §4.5) rather than the cluster orchestrator.
func (c Config) IsStandalone() bool {
	return strings.EqualFold(c.Environment, "standalone")
}

// Load reads Config from the environment, first applying a local .env file
// if present (teacher's cmd/agentd pattern: godotenv is best-effort, never
// fatal when the file is absent). Load performs no validation and never
// returns an error; a malformed number or boolean falls back to its default.
func Load() (Config, error) {
	_ = godotenv.Load(".env")

	cfg := Config{
		ServerPort:                 envInt("SERVER_PORT", 3000),
		FHIREpiURL:                 os.Getenv("FHIR_EPI_URL"),
		FHIRIpsURL:                 os.Getenv("FHIR_IPS_URL"),
		ProfileURL:                 os.Getenv("PROFILE_URL"),
		PreprocessingLabelSelector: os.Getenv("PREPROCESSING_LABEL_SELECTOR"),
		FocusingLabelSelector:      os.Getenv("FOCUSING_LABEL_SELECTOR"),
		ExternalPreprocessors:      splitCSV(os.Getenv("PREPROCESSING_EXTERNAL_ENDPOINTS")),
		Cache: Cache{
			Backend:       envOr("PREPROCESSING_CACHE_BACKEND", "memory"),
			TTL:           time.Duration(envInt("PREPROCESSING_CACHE_TTL_MS", 1_200_000)) * time.Millisecond,
			MaxItems:      envInt("PREPROCESSING_CACHE_MAX_ITEMS", 1000),
			Compress:      envBool("PREPROCESSING_CACHE_COMPRESS", false),
			SchemaVersion: envOr("PREPROCESSING_CACHE_SCHEMA_VERSION", "v1"),
		},
		LogLevel:           envOr("LEE_LOG_LEVEL", "info"),
		LeeLoggingEnabled:  envBool("LEE_LOGGING_ENABLED", true),
		LensLoggingEnabled: envBool("LENS_LOGGING_ENABLED", true),
		Environment:        os.Getenv("ENVIRONMENT"),
		// REDIS_ADDR is not in spec.md's table; the distributed back-end
		// needs a connection target whenever PREPROCESSING_CACHE_BACKEND
		// names something other than "none"/"memory", so it is inferred
		// the same way the teacher infers unlisted infra addresses (see
		// DESIGN.md).
		RedisAddr: envOr("REDIS_ADDR", "localhost:6379"),
		Obs: Obs{
			OTLP:           os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
			ServiceName:    envOr("OTEL_SERVICE_NAME", "focusing-manager"),
			ServiceVersion: envOr("OTEL_SERVICE_VERSION", "0.1.0"),
			Environment:    envOr("ENVIRONMENT", "development"),
		},
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func splitCSV(v string) []string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
