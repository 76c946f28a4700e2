package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// Storage backend identifiers.
const (
	BackendDisk  = "disk"
	BackendMinio = "minio"
)

// UploadPolicy bounds a single upload bucket.
type UploadPolicy struct {
	MaxFileBytes int64    `yaml:"maxFileBytes"`
	MaxFiles     int      `yaml:"maxFiles"`
	AllowedTypes []string `yaml:"allowedTypes"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port                    string       `yaml:"port"`
	LogLevel                string       `yaml:"logLevel"`
	DatabaseURL             string       `yaml:"databaseURL"`
	RedisAddr               string       `yaml:"redisAddr"`
	RedisPassword           string       `yaml:"redisPassword"`
	JWTSecret               string       `yaml:"jwtSecret"`
	SessionTTL              string       `yaml:"sessionTTL"`
	UploadDir               string       `yaml:"uploadDir"`
	StorageBackend          string       `yaml:"storageBackend"`
	MinioEndpoint           string       `yaml:"minioEndpoint"`
	MinioAccessKey          string       `yaml:"minioAccessKey"`
	MinioSecretKey          string       `yaml:"minioSecretKey"`
	MinioBucket             string       `yaml:"minioBucket"`
	MinioUseSSL             bool         `yaml:"minioUseSSL"`
	LoginRateLimitPerMinute int          `yaml:"loginRateLimitPerMinute"`
	AdminEmail              string       `yaml:"adminEmail"`
	AdminName               string       `yaml:"adminName"`
	AdminPassword           string       `yaml:"adminPassword"`
	TaskUpload              UploadPolicy `yaml:"taskUpload"`
	SubmissionUpload        UploadPolicy `yaml:"submissionUpload"`
}

// Load reads config from path (defaults to config.yaml) and applies
// environment overrides.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if v := os.Getenv("PORT"); v != "" {
		cfg.Port = strings.TrimSpace(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.TrimSpace(v)
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		cfg.SessionTTL = strings.TrimSpace(v)
	}
	if v := os.Getenv("UPLOAD_DIR"); v != "" {
		cfg.UploadDir = v
	}
	if v := os.Getenv("STORAGE_BACKEND"); v != "" {
		cfg.StorageBackend = strings.TrimSpace(v)
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("MINIO_BUCKET"); v != "" {
		cfg.MinioBucket = v
	}
	if v := os.Getenv("MINIO_USE_SSL"); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			cfg.MinioUseSSL = b
		}
	}
	if v := os.Getenv("LOGIN_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			cfg.LoginRateLimitPerMinute = n
		}
	}
	if v := os.Getenv("ADMIN_EMAIL"); v != "" {
		cfg.AdminEmail = strings.TrimSpace(v)
	}
	if v := os.Getenv("ADMIN_NAME"); v != "" {
		cfg.AdminName = strings.TrimSpace(v)
	}
	if v := os.Getenv("ADMIN_PASSWORD"); v != "" {
		cfg.AdminPassword = v
	}
	applyUploadDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyUploadDefaults(cfg *FileConfig) {
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = BackendDisk
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.TaskUpload.MaxFileBytes <= 0 {
		cfg.TaskUpload.MaxFileBytes = 5 << 20
	}
	if cfg.TaskUpload.MaxFiles <= 0 {
		cfg.TaskUpload.MaxFiles = 1
	}
	if len(cfg.TaskUpload.AllowedTypes) == 0 {
		cfg.TaskUpload.AllowedTypes = []string{
			"image/jpeg",
			"image/png",
			"application/pdf",
		}
	}
	if cfg.SubmissionUpload.MaxFileBytes <= 0 {
		cfg.SubmissionUpload.MaxFileBytes = 7 << 20
	}
	if cfg.SubmissionUpload.MaxFiles <= 0 {
		cfg.SubmissionUpload.MaxFiles = 10
	}
	if len(cfg.SubmissionUpload.AllowedTypes) == 0 {
		cfg.SubmissionUpload.AllowedTypes = []string{
			"application/pdf",
			"application/msword",
			"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			"application/zip",
			"application/x-zip-compressed",
		}
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return errors.New("config: databaseURL is required (set in config.yaml or DATABASE_URL)")
	}
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return errors.New("config: jwtSecret is required (set in config.yaml or JWT_SECRET)")
	}
	switch cfg.StorageBackend {
	case BackendDisk:
	case BackendMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minio backend requires minioEndpoint, minioAccessKey, minioSecretKey, and minioBucket")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	if cfg.LoginRateLimitPerMinute < 0 {
		return errors.New("config: loginRateLimitPerMinute must be >= 0")
	}
	return nil
}

// ParseSessionTTL parses the session TTL string; empty means one hour.
func ParseSessionTTL(ttl string) (time.Duration, error) {
	if ttl == "" {
		return time.Hour, nil
	}
	dur, err := time.ParseDuration(ttl)
	if err != nil {
		return 0, fmt.Errorf("invalid sessionTTL duration: %w", err)
	}
	if dur <= 0 {
		return 0, errors.New("sessionTTL must be positive")
	}
	return dur, nil
}
