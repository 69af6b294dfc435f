package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config represents runtime configuration for the gateway.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Backend     BackendConfig             `json:"backend"`
	Databases   map[string]DatabaseConfig `json:"databases"`
	Redis       RedisConfig               `json:"redis"`
	Upload      UploadConfig              `json:"upload"`
	Log         LogConfig                 `json:"log"`
}

type BasicConfig struct {
	ServerAddress string `json:"server_address"`
	// ChatMode selects how plain chat sends resolve: "plain" answers
	// locally with guidance text, "backend" calls the chat endpoint.
	ChatMode string `json:"chat_mode"`
	// HistoryPath is the JSON file backing contract history when no
	// redis block is configured.
	HistoryPath string `json:"history_path"`
	HistoryCap  int    `json:"history_cap"`
	// Prompt length bounds enforced before a generate request.
	MinPromptLen int `json:"min_prompt_len"`
	MaxPromptLen int `json:"max_prompt_len"`
	// BannerTTLSeconds controls auto-dismiss of error banners.
	BannerTTLSeconds int `json:"banner_ttl_seconds"`
	// PendingUploadTTLMinutes bounds how long an unconsumed upload is
	// held before the cleaner drops it.
	PendingUploadTTLMinutes int `json:"pending_upload_ttl_minutes"`
}

type BackendConfig struct {
	BaseURL        string `json:"base_url"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Username string `json:"username"`
	Password string `json:"password"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type UploadConfig struct {
	MaxBytes          int64    `json:"max_bytes"`
	AllowedExtensions []string `json:"allowed_extensions"`
}

type LogConfig struct {
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// ChatMode values for BasicConfig.ChatMode.
const (
	ChatModePlain   = "plain"
	ChatModeBackend = "backend"
)

// Load reads configuration from the provided path (defaults to config.json).
func Load(path string) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.Backend.BaseURL == "" {
		return nil, fmt.Errorf("backend.base_url must be configured")
	}

	cfg.applyDefaults()

	baseDir := filepath.Dir(absPath)
	if cfg.BasicConfig.HistoryPath != "" && !filepath.IsAbs(cfg.BasicConfig.HistoryPath) {
		cfg.BasicConfig.HistoryPath = filepath.Join(baseDir, cfg.BasicConfig.HistoryPath)
	}
	if db, ok := cfg.Databases["sqlite3"]; ok && db.DSN != "" && db.DSN != ":memory:" && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(baseDir, db.DSN)
		cfg.Databases["sqlite3"] = db
	}

	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.BasicConfig.ServerAddress == "" {
		cfg.BasicConfig.ServerAddress = ":8090"
	}
	if cfg.BasicConfig.ChatMode == "" {
		cfg.BasicConfig.ChatMode = ChatModePlain
	}
	if cfg.BasicConfig.HistoryPath == "" {
		cfg.BasicConfig.HistoryPath = "data/history.json"
	}
	if cfg.BasicConfig.HistoryCap <= 0 {
		cfg.BasicConfig.HistoryCap = 20
	}
	if cfg.BasicConfig.MinPromptLen <= 0 {
		cfg.BasicConfig.MinPromptLen = 10
	}
	if cfg.BasicConfig.MaxPromptLen <= 0 {
		cfg.BasicConfig.MaxPromptLen = 5000
	}
	if cfg.BasicConfig.BannerTTLSeconds <= 0 {
		cfg.BasicConfig.BannerTTLSeconds = 5
	}
	if cfg.BasicConfig.PendingUploadTTLMinutes <= 0 {
		cfg.BasicConfig.PendingUploadTTLMinutes = 30
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 120
	}
	if cfg.Upload.MaxBytes <= 0 {
		cfg.Upload.MaxBytes = 16 << 20
	}
	if len(cfg.Upload.AllowedExtensions) == 0 {
		cfg.Upload.AllowedExtensions = []string{".pdf", ".txt", ".doc", ".docx"}
	}
	if cfg.Databases == nil {
		cfg.Databases = map[string]DatabaseConfig{
			"sqlite3": {DSN: "data/kontrata.db"},
		}
	}
}
