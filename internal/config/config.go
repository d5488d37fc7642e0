package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type LookupFunc func(string) (string, bool)

type Profile string

const (
	ProfileDev  Profile = "dev"
	ProfileTest Profile = "test"
	ProfileProd Profile = "prod"
)

type Config struct {
	Profile       Profile
	Service       ServiceConfig
	HTTP          HTTPConfig
	Paths         PathsConfig
	Schema        SchemaConfig
	Database      DatabaseConfig
	Primary       PrimaryConfig
	Fallback      FallbackConfig
	ObjectStore   ObjectStoreConfig
	Observability ObservabilityConfig
	Auth          AuthConfig
}

type ServiceConfig struct {
	Name string
}

type HTTPConfig struct {
	Address      string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// PathsConfig collects every durable artifact the tool writes. Fields
// left empty are derived from DataDir after env application.
type PathsConfig struct {
	DataDir           string
	SchemaPath        string
	DatabasePath      string
	CachePath         string
	InitMarkerPath    string
	TrainedMarkerPath string
}

type SchemaConfig struct {
	SourceURL    string
	FetchTimeout time.Duration
}

// DatabaseConfig selects the SQL engine. Driver is one of "sqlite",
// "duckdb" or "postgres"; DSN is only consulted for postgres, the
// file-backed drivers use Paths.DatabasePath.
type DatabaseConfig struct {
	Driver string
	DSN    string
}

// PrimaryConfig describes the specialized NL-to-SQL service.
type PrimaryConfig struct {
	BaseURL       string
	APIKey        string
	Model         string
	AllowDataPeek bool
	Timeout       time.Duration
}

// FallbackConfig describes the OpenAI-compatible chat-completions
// service used when the primary returns nothing usable.
type FallbackConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

type ObjectStoreConfig struct {
	Enabled          bool
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type ObservabilityConfig struct {
	LogLevel slog.Level
	LogJSON  bool
}

type AuthConfig struct {
	Required   bool
	StaticKeys string
}

func LoadFromEnv(serviceName string) (Config, error) {
	return Load(serviceName, os.LookupEnv)
}

func Load(serviceName string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, fmt.Errorf("lookup function is required")
	}

	profile := ProfileDev
	if raw, ok := lookup("ASKDB_PROFILE"); ok {
		profile = Profile(strings.ToLower(strings.TrimSpace(raw)))
	}
	if !isValidProfile(profile) {
		return Config{}, fmt.Errorf("invalid ASKDB_PROFILE: %q", profile)
	}

	cfg := defaultsForProfile(profile)
	if serviceName != "" {
		cfg.Service.Name = serviceName
	}

	if err := applyString(lookup, "ASKDB_SERVICE_NAME", &cfg.Service.Name); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_HTTP_ADDR", &cfg.HTTP.Address); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_READ_TIMEOUT", &cfg.HTTP.ReadTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_WRITE_TIMEOUT", &cfg.HTTP.WriteTimeout); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_HTTP_IDLE_TIMEOUT", &cfg.HTTP.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DATA_DIR", &cfg.Paths.DataDir); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_SCHEMA_PATH", &cfg.Paths.SchemaPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DATABASE_PATH", &cfg.Paths.DatabasePath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_CACHE_PATH", &cfg.Paths.CachePath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_INIT_MARKER_PATH", &cfg.Paths.InitMarkerPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_TRAINED_MARKER_PATH", &cfg.Paths.TrainedMarkerPath); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_SCHEMA_SOURCE_URL", &cfg.Schema.SourceURL); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_SCHEMA_FETCH_TIMEOUT", &cfg.Schema.FetchTimeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DATABASE_DRIVER", &cfg.Database.Driver); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_DATABASE_DSN", &cfg.Database.DSN); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_PRIMARY_BASE_URL", &cfg.Primary.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_PRIMARY_API_KEY", &cfg.Primary.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_PRIMARY_MODEL", &cfg.Primary.Model); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_PRIMARY_ALLOW_DATA_PEEK", &cfg.Primary.AllowDataPeek); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_PRIMARY_TIMEOUT", &cfg.Primary.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_FALLBACK_BASE_URL", &cfg.Fallback.BaseURL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_FALLBACK_API_KEY", &cfg.Fallback.APIKey); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_FALLBACK_MODEL", &cfg.Fallback.Model); err != nil {
		return Config{}, err
	}
	if err := applyFloat(lookup, "ASKDB_FALLBACK_TEMPERATURE", &cfg.Fallback.Temperature); err != nil {
		return Config{}, err
	}
	if err := applyDuration(lookup, "ASKDB_FALLBACK_TIMEOUT", &cfg.Fallback.Timeout); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_OBJECTSTORE_ENABLED", &cfg.ObjectStore.Enabled); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_ENDPOINT", &cfg.ObjectStore.Endpoint); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_REGION", &cfg.ObjectStore.Region); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_BUCKET", &cfg.ObjectStore.Bucket); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_ACCESS_KEY", &cfg.ObjectStore.AccessKeyID); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_SECRET_KEY", &cfg.ObjectStore.SecretAccessKey); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_OBJECTSTORE_USE_SSL", &cfg.ObjectStore.UseSSL); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_OBJECTSTORE_PREFIX", &cfg.ObjectStore.Prefix); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_OBJECTSTORE_AUTO_CREATE_BUCKET", &cfg.ObjectStore.AutoCreateBucket); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_LOG_JSON", &cfg.Observability.LogJSON); err != nil {
		return Config{}, err
	}
	if err := applyLogLevel(lookup, "ASKDB_LOG_LEVEL", &cfg.Observability.LogLevel); err != nil {
		return Config{}, err
	}
	if err := applyBool(lookup, "ASKDB_AUTH_REQUIRED", &cfg.Auth.Required); err != nil {
		return Config{}, err
	}
	if err := applyString(lookup, "ASKDB_AUTH_STATIC_KEYS", &cfg.Auth.StaticKeys); err != nil {
		return Config{}, err
	}

	cfg.Paths = resolvePaths(cfg.Paths)

	if cfg.Service.Name == "" {
		return Config{}, fmt.Errorf("service name is required")
	}
	if cfg.HTTP.Address == "" {
		return Config{}, fmt.Errorf("http address is required")
	}
	if !isValidDriver(cfg.Database.Driver) {
		return Config{}, fmt.Errorf("invalid ASKDB_DATABASE_DRIVER: %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == "postgres" && strings.TrimSpace(cfg.Database.DSN) == "" {
		return Config{}, fmt.Errorf("ASKDB_DATABASE_DSN is required for the postgres driver")
	}
	return cfg, nil
}

func defaultsForProfile(profile Profile) Config {
	cfg := Config{
		Profile: profile,
		Service: ServiceConfig{Name: "askdb-api"},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Paths: PathsConfig{
			DataDir: "files",
		},
		Schema: SchemaConfig{
			SourceURL:    "https://raw.githubusercontent.com/lerocha/chinook-database/master/ChinookDatabase/DataSources/Chinook_Sqlite.sql",
			FetchTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
		},
		Primary: PrimaryConfig{
			BaseURL:       "https://ask.vanna.ai",
			Model:         "4base",
			AllowDataPeek: true,
			Timeout:       30 * time.Second,
		},
		Fallback: FallbackConfig{
			BaseURL:     "https://api.mistral.ai",
			Model:       "mistral-small",
			Temperature: 0.2,
			Timeout:     30 * time.Second,
		},
		ObjectStore: ObjectStoreConfig{
			Enabled:          false,
			Endpoint:         "localhost:9000",
			Region:           "us-east-1",
			Bucket:           "askdb",
			AccessKeyID:      "minio",
			SecretAccessKey:  "miniostorage",
			UseSSL:           false,
			Prefix:           "",
			AutoCreateBucket: true,
		},
		Observability: ObservabilityConfig{
			LogLevel: slog.LevelDebug,
			LogJSON:  true,
		},
		Auth: AuthConfig{
			Required:   false,
			StaticKeys: "",
		},
	}

	switch profile {
	case ProfileTest:
		cfg.HTTP.Address = ":18080"
		cfg.Observability.LogLevel = slog.LevelWarn
		cfg.Auth.Required = false
	case ProfileProd:
		cfg.Observability.LogLevel = slog.LevelInfo
		cfg.Auth.Required = true
		cfg.ObjectStore.UseSSL = true
		cfg.ObjectStore.AutoCreateBucket = false
	}

	return cfg
}

func resolvePaths(paths PathsConfig) PathsConfig {
	if paths.DataDir == "" {
		paths.DataDir = "files"
	}
	if paths.SchemaPath == "" {
		paths.SchemaPath = filepath.Join(paths.DataDir, "schema.sql")
	}
	if paths.DatabasePath == "" {
		paths.DatabasePath = filepath.Join(paths.DataDir, "askdb.sqlite")
	}
	if paths.CachePath == "" {
		paths.CachePath = filepath.Join(paths.DataDir, "query_cache.json")
	}
	if paths.InitMarkerPath == "" {
		paths.InitMarkerPath = filepath.Join(paths.DataDir, "db_inited.flag")
	}
	if paths.TrainedMarkerPath == "" {
		paths.TrainedMarkerPath = filepath.Join(paths.DataDir, "trained.flag")
	}
	return paths
}

func isValidProfile(profile Profile) bool {
	switch profile {
	case ProfileDev, ProfileTest, ProfileProd:
		return true
	default:
		return false
	}
}

func isValidDriver(driver string) bool {
	switch driver {
	case "sqlite", "duckdb", "postgres":
		return true
	default:
		return false
	}
}

func applyString(lookup LookupFunc, key string, dst *string) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	*dst = strings.TrimSpace(raw)
	return nil
}

func applyDuration(lookup LookupFunc, key string, dst *time.Duration) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyBool(lookup LookupFunc, key string, dst *bool) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyFloat(lookup LookupFunc, key string, dst *float64) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = value
	return nil
}

func applyLogLevel(lookup LookupFunc, key string, dst *slog.Level) error {
	raw, ok := lookup(key)
	if !ok {
		return nil
	}
	level := strings.ToLower(strings.TrimSpace(raw))
	switch level {
	case "debug":
		*dst = slog.LevelDebug
	case "info":
		*dst = slog.LevelInfo
	case "warn", "warning":
		*dst = slog.LevelWarn
	case "error":
		*dst = slog.LevelError
	default:
		return fmt.Errorf("invalid %s: %q", key, raw)
	}
	return nil
}
