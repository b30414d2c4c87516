package config

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const defaultSecretKey = "change-this-secret"

type Config struct {
	Host               string
	Port               int
	SecretKey          string
	TokenTTL           time.Duration
	CookieSecure       bool
	AllowRoleSelection bool

	DatabasePath      string
	InstanceDirectory string
	StaticDirectory   string
	UploadDirectory   string
	LogDirectory      string
	LogLevel          string

	ModelPath           string
	ConfigPath          string
	LabelsPath          string
	ConfidenceThreshold float64

	CameraEnabled bool
	CameraDevice  string

	MaxUploadMB    int64
	MetricsEnabled bool
}

// Load reads configuration from .env, an optional crowdwatch.yaml and the
// environment, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetConfigName("crowdwatch")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(filepath.Join(".", "instance"))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	instance := filepath.Join(".", "instance")
	static := filepath.Join(".", "static")

	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 5000)
	v.SetDefault("secret_key", defaultSecretKey)
	v.SetDefault("token_ttl", 8*time.Hour)
	v.SetDefault("cookie_secure", false)
	v.SetDefault("allow_role_selection", false)

	v.SetDefault("instance_dir", instance)
	v.SetDefault("db_path", filepath.Join(instance, "database.db"))
	v.SetDefault("static_dir", static)
	// Empty means STATIC_DIR/uploads.
	v.SetDefault("upload_dir", "")
	v.SetDefault("log_dir", filepath.Join(".", "logs"))
	v.SetDefault("log_level", "info")

	v.SetDefault("model_path", filepath.Join(".", "models", "frozen_inference_graph.pb"))
	v.SetDefault("config_path", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt"))
	v.SetDefault("labels_path", "")
	v.SetDefault("confidence_threshold", 0.5)

	v.SetDefault("camera_enabled", true)
	v.SetDefault("camera_device", "0")

	v.SetDefault("max_upload_mb", 200)
	v.SetDefault("metrics_enabled", true)
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Host:               v.GetString("host"),
		Port:               v.GetInt("port"),
		SecretKey:          v.GetString("secret_key"),
		TokenTTL:           v.GetDuration("token_ttl"),
		CookieSecure:       v.GetBool("cookie_secure"),
		AllowRoleSelection: v.GetBool("allow_role_selection"),

		DatabasePath:      v.GetString("db_path"),
		InstanceDirectory: v.GetString("instance_dir"),
		StaticDirectory:   v.GetString("static_dir"),
		UploadDirectory:   v.GetString("upload_dir"),
		LogDirectory:      v.GetString("log_dir"),
		LogLevel:          v.GetString("log_level"),

		ModelPath:           v.GetString("model_path"),
		ConfigPath:          v.GetString("config_path"),
		LabelsPath:          v.GetString("labels_path"),
		ConfidenceThreshold: v.GetFloat64("confidence_threshold"),

		CameraEnabled: v.GetBool("camera_enabled"),
		CameraDevice:  v.GetString("camera_device"),

		MaxUploadMB:    v.GetInt64("max_upload_mb"),
		MetricsEnabled: v.GetBool("metrics_enabled"),
	}
	if cfg.UploadDirectory == "" {
		cfg.UploadDirectory = filepath.Join(cfg.StaticDirectory, "uploads")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the server cannot start with.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.SecretKey == "" {
		return errors.New("secret key must not be empty")
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("invalid token ttl %s", c.TokenTTL)
	}
	if c.ConfidenceThreshold <= 0 || c.ConfidenceThreshold >= 1 {
		return fmt.Errorf("confidence threshold must be in (0, 1), got %v", c.ConfidenceThreshold)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size %d", c.MaxUploadMB)
	}
	if _, err := c.uploadSubdir(); err != nil {
		return err
	}
	return nil
}

// uploadSubdir returns the upload directory relative to the static
// directory. Uploads must be served from /static, so anything else fails.
func (c *Config) uploadSubdir() (string, error) {
	static, err := filepath.Abs(c.StaticDirectory)
	if err != nil {
		return "", fmt.Errorf("invalid static directory: %w", err)
	}
	upload, err := filepath.Abs(c.UploadDirectory)
	if err != nil {
		return "", fmt.Errorf("invalid upload directory: %w", err)
	}
	rel, err := filepath.Rel(static, upload)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("upload directory %s must be inside static directory %s", c.UploadDirectory, c.StaticDirectory)
	}
	return rel, nil
}

// UploadURLPrefix returns the browser path under which the upload directory
// is served, e.g. /static/uploads.
func (c *Config) UploadURLPrefix() string {
	rel, err := c.uploadSubdir()
	if err != nil {
		return "/static/uploads"
	}
	return path.Join("/static", filepath.ToSlash(rel))
}

// UsesDefaultSecret reports whether tokens are signed with the built-in key.
func (c *Config) UsesDefaultSecret() bool {
	return c.SecretKey == defaultSecretKey
}

// Address returns the listen address for the HTTP server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MaxUploadBytes returns the request body limit for upload endpoints.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// SafeZonesPath returns the file holding the dashboard safe zones.
func (c *Config) SafeZonesPath() string {
	return filepath.Join(c.InstanceDirectory, "safe_zones.json")
}
