package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Storage backends selectable with STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

type Config struct {
	Store     StoreConfig     `yaml:"store"`
	Matcher   MatcherConfig   `yaml:"matcher"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Database  DatabaseConfig  `yaml:"-"`
	MariaDB   MariaDBConfig   `yaml:"-"`
	Web       WebConfig       `yaml:"web"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`  // file, postgres or mariadb
	DataDir string `yaml:"data_dir"` // directory for identities.json and login_history.json
}

type MatcherConfig struct {
	Metric          string  `yaml:"metric"`           // euclidean or cosine
	AcceptThreshold float64 `yaml:"accept_threshold"` // strict upper bound on accepted distance
	HNSWIndexPath   string  `yaml:"-"`                // optional path to persist the similarity index
}

type EmbeddingConfig struct {
	URL     string `yaml:"url"`      // face embedding server
	Dim     int    `yaml:"dim"`      // 0 means "fixed by the first enrollment"
	MaxSide int    `yaml:"max_side"` // downscale frames larger than this before extraction
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. facelogin:facelogin@tcp(mariadb:3306)/facelogin?parseTime=true
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
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

// envFloat reads an environment variable and parses it as a positive float.
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

// envString returns the env var value, or defaultVal when it is unset or empty.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration embedded in the binary, without environment overrides.
func Defaults() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	cfg.Database = DatabaseConfig{MaxOpenConns: 25, MaxIdleConns: 5}
	return &cfg
}

func Load() *Config {
	cfg := Defaults()

	cfg.Store.Backend = envString("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.DataDir = envString("DATA_DIR", cfg.Store.DataDir)

	cfg.Matcher.Metric = envString("FACE_DISTANCE_METRIC", cfg.Matcher.Metric)
	cfg.Matcher.AcceptThreshold = envFloat("ACCEPT_THRESHOLD", cfg.Matcher.AcceptThreshold)
	cfg.Matcher.HNSWIndexPath = os.Getenv("HNSW_INDEX_PATH")

	cfg.Embedding.URL = envString("EMBEDDING_URL", cfg.Embedding.URL)
	cfg.Embedding.Dim = envInt("EMBEDDING_DIM", cfg.Embedding.Dim)
	cfg.Embedding.MaxSide = envInt("EMBEDDING_MAX_SIDE", cfg.Embedding.MaxSide)

	cfg.Database.URL = os.Getenv("DATABASE_URL")
	cfg.Database.MaxOpenConns = envInt("DATABASE_MAX_OPEN_CONNS", cfg.Database.MaxOpenConns)
	cfg.Database.MaxIdleConns = envInt("DATABASE_MAX_IDLE_CONNS", cfg.Database.MaxIdleConns)

	cfg.MariaDB.DSN = os.Getenv("MARIADB_DSN")

	cfg.Web.Host = envString("WEB_HOST", cfg.Web.Host)
	cfg.Web.Port = envInt("WEB_PORT", cfg.Web.Port)

	return cfg
}
