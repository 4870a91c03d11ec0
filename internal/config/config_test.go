package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("QUEUE_BACKEND", "")
	t.Setenv("APP_ENV", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8081", cfg.HTTPPort)
	assert.Equal(t, "redis", cfg.QueueBackend)
	assert.Equal(t, 10*time.Minute, cfg.TokenMaxAge)
	assert.Equal(t, 5*time.Minute, cfg.TokenMaxFuture)
	assert.Equal(t, 30*time.Second, cfg.TokenRotateEvery)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, time.UTC, cfg.DefaultLocation)
	assert.True(t, cfg.FaceSkip)
	assert.InDelta(t, 0.45, cfg.FaceMinConfidence, 1e-9)
	assert.False(t, cfg.CloudinaryEnabled())
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("QR_TOKEN_MAX_AGE", "2m")
	t.Setenv("QR_TOKEN_MAX_FUTURE", "30s")
	t.Setenv("QUEUE_BACKEND", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("DEFAULT_TIMEZONE", "Europe/Berlin")
	t.Setenv("FACE_SKIP", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.HTTPPort)
	assert.Equal(t, 2*time.Minute, cfg.TokenMaxAge)
	assert.Equal(t, 30*time.Second, cfg.TokenMaxFuture)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokerList())
	assert.Equal(t, "Europe/Berlin", cfg.DefaultLocation.String())
	assert.False(t, cfg.FaceSkip)
}

func TestLoad_Invalid(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"bad duration", map[string]string{"QR_TOKEN_MAX_AGE": "ten minutes"}},
		{"zero max age", map[string]string{"QR_TOKEN_MAX_AGE": "0s"}},
		{"unknown queue", map[string]string{"QUEUE_BACKEND": "sqs"}},
		{"kafka without brokers", map[string]string{"QUEUE_BACKEND": "kafka", "KAFKA_BROKERS": ""}},
		{"bad timezone", map[string]string{"DEFAULT_TIMEZONE": "Mars/Olympus"}},
		{"confidence out of range", map[string]string{"FACE_MIN_CONFIDENCE": "1.5"}},
		{"dev secrets in production", map[string]string{"APP_ENV": "production"}},
		{"staff secret equals device secret", map[string]string{"STAFF_SECRET": "shared", "DEVICE_SECRET": "shared"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
