package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Web      WebConfig      `yaml:"web"`
	Storage  StorageConfig  `yaml:"storage"`
	Database DatabaseConfig `yaml:"database"`
	MariaDB  MariaDBConfig  `yaml:"mariadb"`
	Redis    RedisConfig    `yaml:"redis"`
	S3       S3Config       `yaml:"s3"`
	Match    MatchConfig    `yaml:"match"`
	Log      LogConfig      `yaml:"log"`
}

type WebConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // localhost is always allowed
	UploadDir      string   `yaml:"upload_dir"`
	MaxBodyBytes   int64    `yaml:"max_body_bytes"`
}

// Addr returns host:port for net/http.
func (c *WebConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type StorageConfig struct {
	Backend  string `yaml:"backend"`   // file, postgres, mariadb, redis, s3
	DataFile string `yaml:"data_file"` // file backend only
}

type DatabaseConfig struct {
	URL          string `yaml:"url"`            // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections (default 25)
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string `yaml:"dsn"` // e.g. registry:registry@tcp(mariadb:3306)/registry
}

type RedisConfig struct {
	URL string `yaml:"url"`
	Key string `yaml:"key"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Key             string `yaml:"key"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"` // MinIO or other S3-compatible service
	AccessKeyID     string `yaml:"-"`
	SecretAccessKey string `yaml:"-"`
}

type MatchConfig struct {
	Threshold float64 `yaml:"threshold"`
	Metric    string  `yaml:"metric"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // console or json
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat is envInt for positive floats.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// envList splits a comma separated variable, dropping empty items.
func envList(key string, defaultVal []string) []string {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// Defaults returns the embedded defaults without applying the environment.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	// PORT is what most hosting platforms set, WEB_PORT wins when both exist.
	cfg.Web.Port = envInt("PORT", cfg.Web.Port)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)
	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.AllowedOrigins = envList("WEB_ALLOWED_ORIGINS", cfg.Web.AllowedOrigins)
	cfg.Web.UploadDir = envString("UPLOAD_DIR", cfg.Web.UploadDir)
	cfg.Web.MaxBodyBytes = int64(envInt("WEB_MAX_BODY_BYTES", int(cfg.Web.MaxBodyBytes)))

	cfg.Storage.Backend = strings.ToLower(envString("STORAGE_BACKEND", cfg.Storage.Backend))
	cfg.Storage.DataFile = envString("DATA_FILE", cfg.Storage.DataFile)

	cfg.Database.URL = envString("DATABASE_URL", cfg.Database.URL)
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.MariaDB.DSN = envString("MARIADB_DSN", cfg.MariaDB.DSN)

	cfg.Redis.URL = envString("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Key = envString("REDIS_KEY", cfg.Redis.Key)

	cfg.S3.Bucket = envString("S3_BUCKET", cfg.S3.Bucket)
	cfg.S3.Key = envString("S3_KEY", cfg.S3.Key)
	cfg.S3.Region = envString("S3_REGION", cfg.S3.Region)
	cfg.S3.Endpoint = envString("S3_ENDPOINT", cfg.S3.Endpoint)
	cfg.S3.AccessKeyID = os.Getenv("AWS_ACCESS_KEY_ID")
	cfg.S3.SecretAccessKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

	cfg.Match.Threshold = envFloat("MATCH_THRESHOLD", cfg.Match.Threshold)
	cfg.Match.Metric = strings.ToLower(envString("MATCH_METRIC", cfg.Match.Metric))

	cfg.Log.Level = envString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = envString("LOG_FORMAT", cfg.Log.Format)

	return cfg
}
