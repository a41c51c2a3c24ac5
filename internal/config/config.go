package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates application settings that may be sourced from files or environment variables.
type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MinIO    MinIOConfig    `mapstructure:"minio"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Clamd    ClamdConfig    `mapstructure:"clamd"`
	Limits   LimitsConfig   `mapstructure:"limits"`
}

// APIConfig contains HTTP server settings.
type APIConfig struct {
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	CookieDomain   string   `mapstructure:"cookie_domain"`
}

// DatabaseConfig contains connection options for PostgreSQL.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	SSLMode  string `mapstructure:"sslmode"`
}

// RedisConfig 包含 Redis 连接配置。
type RedisConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// MinIOConfig contains connection options for MinIO/S3-compatible storage.
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	PublicEndpoint  string `mapstructure:"public_endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	AssetBucket     string `mapstructure:"asset_bucket"`
	ResumeBucket    string `mapstructure:"resume_bucket"`
}

// AuthConfig contains JWT signing material and token lifetimes.
type AuthConfig struct {
	PrivateKeyPath  string        `mapstructure:"private_key_path"`
	PublicKeyPath   string        `mapstructure:"public_key_path"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// ClamdConfig 包含病毒扫描服务的连接配置。
type ClamdConfig struct {
	Addr string `mapstructure:"addr"`
}

// LimitsConfig bundles per-tenant quota and rate-limit knobs.
type LimitsConfig struct {
	MaxCompaniesPerUser   int           `mapstructure:"max_companies_per_user"`
	MaxJobsPerCompany     int           `mapstructure:"max_jobs_per_company"`
	ApplicationsPerIPHour int           `mapstructure:"applications_per_ip_hour"`
	CSVImportMaxRows      int           `mapstructure:"csv_import_max_rows"`
	ResumeUploadMaxBytes  int           `mapstructure:"resume_upload_max_bytes"`
	AssetUploadMaxBytes   int           `mapstructure:"asset_upload_max_bytes"`
	LoginPerHour          int           `mapstructure:"login_per_hour"`
	LoginLockThreshold    int           `mapstructure:"login_lock_threshold"`
	LoginLockTTL          time.Duration `mapstructure:"login_lock_ttl"`
}

// DSN builds a lib/pq compatible connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host,
		d.Port,
		d.User,
		d.Password,
		d.Name,
		d.SSLMode,
	)
}

// Addr returns host:port for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Load reads configuration solely from environment variables (with optional defaults).
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if err := bindEnv(v); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// MustLoad wraps Load and panics on failure.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.port", 8080)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "phcareers")
	v.SetDefault("database.user", "phcareers")
	v.SetDefault("database.password", "phcareers")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.public_endpoint", "http://localhost:9000")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.asset_bucket", "career-assets")
	v.SetDefault("minio.resume_bucket", "applicant-resumes")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("clamd.addr", "tcp://localhost:3310")
	v.SetDefault("limits.max_companies_per_user", 5)
	v.SetDefault("limits.max_jobs_per_company", 200)
	v.SetDefault("limits.applications_per_ip_hour", 20)
	v.SetDefault("limits.csv_import_max_rows", 500)
	v.SetDefault("limits.resume_upload_max_bytes", 10<<20)
	v.SetDefault("limits.asset_upload_max_bytes", 20<<20)
	v.SetDefault("limits.login_per_hour", 10)
	v.SetDefault("limits.login_lock_threshold", 5)
	v.SetDefault("limits.login_lock_ttl", 15*time.Minute)
}

func bindEnv(v *viper.Viper) error {
	mappings := map[string]string{
		"api.port":                        "API_PORT",
		"api.allowed_origins":             "API_ALLOWED_ORIGINS",
		"api.cookie_domain":               "API_COOKIE_DOMAIN",
		"database.host":                   "DATABASE_HOST",
		"database.port":                   "DATABASE_PORT",
		"database.name":                   "POSTGRES_DB",
		"database.user":                   "POSTGRES_USER",
		"database.password":               "POSTGRES_PASSWORD",
		"database.sslmode":                "DATABASE_SSLMODE",
		"redis.host":                      "REDIS_HOST",
		"redis.port":                      "REDIS_PORT",
		"minio.endpoint":                  "MINIO_ENDPOINT",
		"minio.public_endpoint":           "MINIO_PUBLIC_ENDPOINT",
		"minio.access_key_id":             "MINIO_ACCESS_KEY_ID",
		"minio.secret_access_key":         "MINIO_SECRET_ACCESS_KEY",
		"minio.use_ssl":                   "MINIO_USE_SSL",
		"minio.asset_bucket":              "MINIO_ASSET_BUCKET",
		"minio.resume_bucket":             "MINIO_RESUME_BUCKET",
		"auth.private_key_path":           "AUTH_PRIVATE_KEY_PATH",
		"auth.public_key_path":            "AUTH_PUBLIC_KEY_PATH",
		"auth.access_token_ttl":           "AUTH_ACCESS_TOKEN_TTL",
		"auth.refresh_token_ttl":          "AUTH_REFRESH_TOKEN_TTL",
		"clamd.addr":                      "CLAMD_ADDR",
		"limits.max_companies_per_user":   "LIMITS_MAX_COMPANIES_PER_USER",
		"limits.max_jobs_per_company":     "LIMITS_MAX_JOBS_PER_COMPANY",
		"limits.applications_per_ip_hour": "LIMITS_APPLICATIONS_PER_IP_HOUR",
		"limits.csv_import_max_rows":      "LIMITS_CSV_IMPORT_MAX_ROWS",
		"limits.resume_upload_max_bytes":  "LIMITS_RESUME_UPLOAD_MAX_BYTES",
		"limits.asset_upload_max_bytes":   "LIMITS_ASSET_UPLOAD_MAX_BYTES",
		"limits.login_per_hour":           "LIMITS_LOGIN_PER_HOUR",
		"limits.login_lock_threshold":     "LIMITS_LOGIN_LOCK_THRESHOLD",
		"limits.login_lock_ttl":           "LIMITS_LOGIN_LOCK_TTL",
	}

	for key, env := range mappings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s to %s: %w", key, env, err)
		}
	}

	return nil
}

func validate(cfg Config) error {
	if cfg.API.Port <= 0 {
		return errors.New("api port must be positive")
	}
	if cfg.Database.Host == "" {
		return errors.New("database host is required")
	}
	if cfg.Database.Port <= 0 {
		return errors.New("database port must be positive")
	}
	if cfg.Database.Name == "" {
		return errors.New("database name is required")
	}
	if cfg.Database.User == "" {
		return errors.New("database user is required")
	}
	if cfg.Database.Password == "" {
		return errors.New("database password is required")
	}
	if cfg.Database.SSLMode == "" {
		return errors.New("database sslmode is required")
	}
	if cfg.Redis.Host == "" {
		return errors.New("redis host is required")
	}
	if cfg.Redis.Port <= 0 {
		return errors.New("redis port must be positive")
	}
	if cfg.MinIO.Endpoint == "" {
		return errors.New("minio endpoint is required")
	}
	if cfg.MinIO.AccessKeyID == "" {
		return errors.New("minio access key id is required")
	}
	if cfg.MinIO.SecretAccessKey == "" {
		return errors.New("minio secret access key is required")
	}
	if cfg.MinIO.AssetBucket == "" {
		return errors.New("minio asset bucket is required")
	}
	if cfg.MinIO.ResumeBucket == "" {
		return errors.New("minio resume bucket is required")
	}
	if cfg.Auth.AccessTokenTTL <= 0 {
		return errors.New("auth access token ttl must be positive")
	}
	if cfg.Auth.RefreshTokenTTL <= 0 {
		return errors.New("auth refresh token ttl must be positive")
	}
	return nil
}
