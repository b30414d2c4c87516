package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5000, cfg.Port)
	assert.Equal(t, 8*time.Hour, cfg.TokenTTL)
	assert.Equal(t, filepath.Join(".", "instance", "database.db"), cfg.DatabasePath)
	assert.Equal(t, filepath.Join(".", "static", "uploads"), cfg.UploadDirectory)
	assert.Equal(t, "0", cfg.CameraDevice)
	assert.InDelta(t, 0.5, cfg.ConfidenceThreshold, 1e-9)
	assert.False(t, cfg.AllowRoleSelection)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.Equal(t, "0.0.0.0:5000", cfg.Address())
	assert.Equal(t, filepath.Join(".", "instance", "safe_zones.json"), cfg.SafeZonesPath())
	assert.Equal(t, int64(200<<20), cfg.MaxUploadBytes())
	assert.Equal(t, "/static/uploads", cfg.UploadURLPrefix())
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "8081")
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("TOKEN_TTL", "30m")
	t.Setenv("CAMERA_ENABLED", "false")
	t.Setenv("ALLOW_ROLE_SELECTION", "true")
	t.Setenv("MAX_UPLOAD_MB", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, "s3cret", cfg.SecretKey)
	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.False(t, cfg.CameraEnabled)
	assert.True(t, cfg.AllowRoleSelection)
	assert.Equal(t, int64(5<<20), cfg.MaxUploadBytes())
	assert.False(t, cfg.UsesDefaultSecret())
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"port out of range", "PORT", "70000"},
		{"threshold too high", "CONFIDENCE_THRESHOLD", "1.5"},
		{"zero upload limit", "MAX_UPLOAD_MB", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestFromViper_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crowdwatch.yaml")
	content := "port: 9090\ncamera_device: rtsp://cam.local/stream\nconfidence_threshold: 0.35\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	cfg, err := fromViper(v)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "rtsp://cam.local/stream", cfg.CameraDevice)
	assert.InDelta(t, 0.35, cfg.ConfidenceThreshold, 1e-9)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestUploadURLPrefix(t *testing.T) {
	tests := []struct {
		name   string
		static string
		upload string
		want   string
	}{
		{"default layout", "static", filepath.Join("static", "uploads"), "/static/uploads"},
		{"nested directory", "/srv/web", filepath.Join("/srv/web", "media", "in"), "/static/media/in"},
		{"unclean path", "./static", "static/./uploads/", "/static/uploads"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{StaticDirectory: tt.static, UploadDirectory: tt.upload}
			_, err := cfg.uploadSubdir()
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.UploadURLPrefix())
		})
	}
}

func TestLoad_UploadDirFollowsStaticDir(t *testing.T) {
	static := filepath.Join(t.TempDir(), "public")
	t.Setenv("STATIC_DIR", static)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(static, "uploads"), cfg.UploadDirectory)
	assert.Equal(t, "/static/uploads", cfg.UploadURLPrefix())
}

func TestLoad_UploadDirOutsideStatic(t *testing.T) {
	dir := t.TempDir()
	for _, upload := range []string{filepath.Join(dir, "elsewhere"), filepath.Join(".", "static")} {
		t.Run(upload, func(t *testing.T) {
			t.Setenv("UPLOAD_DIR", upload)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
