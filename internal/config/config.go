package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultPort            = 8080
	defaultDataDir         = "data"
	defaultAPIBaseURL      = "http://localhost:9000/api/documents"
	defaultMaxUploadBytes  = 10 << 20 // 10 MiB
	defaultPollIntervalMS  = 1500
	defaultGraceDelayMS    = 1000
	defaultRequestTimeoutS = 30
)

// Config describes runtime configuration for the service.
type Config struct {
	Port              int      `yaml:"port"`
	DataDir           string   `yaml:"data_dir"`
	APIBaseURL        string   `yaml:"api_base_url"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	MaxUploadBytes    int64    `yaml:"max_upload_bytes"`
	AllowMultiple     bool     `yaml:"allow_multiple"`
	PollIntervalMS    int      `yaml:"poll_interval_ms"`
	CompletionGraceMS int      `yaml:"completion_grace_ms"`
	HistoryDB         string   `yaml:"history_db"`
	RequestTimeoutS   int      `yaml:"request_timeout_s"`
}

// Default returns the sane defaults for a local deployment.
func Default() Config {
	return Config{
		Port:              defaultPort,
		DataDir:           defaultDataDir,
		APIBaseURL:        defaultAPIBaseURL,
		AllowedExtensions: []string{".docx", ".pdf", ".txt"},
		MaxUploadBytes:    defaultMaxUploadBytes,
		AllowMultiple:     false,
		PollIntervalMS:    defaultPollIntervalMS,
		CompletionGraceMS: defaultGraceDelayMS,
		RequestTimeoutS:   defaultRequestTimeoutS,
	}
}

// PollInterval returns the poller tick interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// CompletionGrace returns the delay between a completed status and the
// transition to results.
func (c Config) CompletionGrace() time.Duration {
	return time.Duration(c.CompletionGraceMS) * time.Millisecond
}

// RequestTimeout returns the per-request timeout for Document API calls.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutS) * time.Second
}

// Load reads YAML config from the provided path. If the file does not exist
// or is empty, defaults are returned with no error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, errors.New("empty config path")
	}
	fileData, err := os.ReadFile(path) //nolint:gosec // config path is controlled by deployment
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if len(fileData) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(fileData, &cfg); err != nil {
		return cfg, fmt.Errorf("parse yaml: %w", err)
	}
	// basic normalization
	if cfg.Port == 0 {
		cfg.Port = defaultPort
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	cfg.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	if cfg.MaxUploadBytes <= 0 {
		return cfg, fmt.Errorf("invalid max_upload_bytes: %d (must be > 0)", cfg.MaxUploadBytes)
	}
	if cfg.PollIntervalMS <= 0 {
		return cfg, fmt.Errorf("invalid poll_interval_ms: %d (must be > 0)", cfg.PollIntervalMS)
	}
	if cfg.CompletionGraceMS < 0 {
		return cfg, fmt.Errorf("invalid completion_grace_ms: %d (must be >= 0)", cfg.CompletionGraceMS)
	}
	if cfg.RequestTimeoutS <= 0 {
		cfg.RequestTimeoutS = defaultRequestTimeoutS
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = filepath.Join(cfg.DataDir, "history.db")
	}
	cfg.AllowedExtensions = normalizeExtensions(cfg.AllowedExtensions)
	return cfg, nil
}

func normalizeExtensions(in []string) []string {
	if len(in) == 0 {
		return []string{".docx", ".pdf", ".txt"}
	}
	seen := make(map[string]struct{}, len(in))
	normalized := make([]string, 0, len(in))
	for _, ext := range in {
		e := strings.ToLower(strings.TrimSpace(ext))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		if _, ok := seen[e]; ok {
			continue
		}
		seen[e] = struct{}{}
		normalized = append(normalized, e)
	}
	return normalized
}
