package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	JWTTTLHours int              `json:"jwt_ttl_hours"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	FileStore   FileStoreConfig  `json:"file_store"`
	AI          AIConfig         `json:"ai"`
	Limits      LimitsConfig     `json:"limits"`
	Jobs        JobsConfig       `json:"jobs"`
	CORSOrigins []string         `json:"cors_origins"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIConfig struct {
	Provider   string      `json:"provider"`
	Model      string      `json:"model"`
	EmbedModel string      `json:"embed_model"`
	Data       interface{} `json:"data"`
}

type LimitsConfig struct {
	MaxUploadBytes    int64 `json:"max_upload_bytes"`
	SyncProcessBytes  int64 `json:"sync_process_bytes"`
	BrainStorageBytes int64 `json:"brain_storage_bytes"`
}

type JobsConfig struct {
	CleanupSpec      string `json:"cleanup_spec"`
	CleanupKeepDays  int    `json:"cleanup_keep_days"`
	StorageReconSpec string `json:"storage_recon_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.Limits.MaxUploadBytes == 0 {
		cfg.Limits.MaxUploadBytes = 64 << 20
	}
	if cfg.Limits.SyncProcessBytes == 0 {
		cfg.Limits.SyncProcessBytes = 1 << 20
	}
	if cfg.Limits.BrainStorageBytes == 0 {
		cfg.Limits.BrainStorageBytes = 1 << 30
	}
	if cfg.Jobs.CleanupSpec == "" {
		cfg.Jobs.CleanupSpec = "30 3 * * *"
	}
	if cfg.Jobs.CleanupKeepDays == 0 {
		cfg.Jobs.CleanupKeepDays = 7
	}
	if cfg.Jobs.StorageReconSpec == "" {
		cfg.Jobs.StorageReconSpec = "0 4 * * *"
	}
	return &cfg, nil
}
