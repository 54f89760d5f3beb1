package config

import (
	"testing"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "order-notifications", cfg.Kafka.TopicNotifications)
	assert.Equal(t, time.Hour, cfg.Business.AutoConfirmAfter)
	assert.Equal(t, time.Hour, cfg.Business.SweepInterval)
	assert.Equal(t, 100, cfg.Business.SweepBatchSize)
	assert.False(t, cfg.Business.StrictTransitions)
	assert.Equal(t, time.UTC, cfg.Business.Location())
}

func TestParseOverrides(t *testing.T) {
	cfg, err := parse(env.Options{Environment: map[string]string{
		"KAFKA_BROKERS":               "k1:9092,k2:9092",
		"ORDER_TIMEZONE":              "Asia/Jakarta",
		"AUTO_CONFIRM_AFTER":          "72h",
		"AUTO_CONFIRM_SWEEP_INTERVAL": "15m",
		"AUTO_CONFIRM_BATCH_SIZE":     "0",
		"STRICT_TRANSITIONS":          "true",
		"REDIS_DB":                    "3",
	}})
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "Asia/Jakarta", cfg.Business.Location().String())
	assert.Equal(t, 72*time.Hour, cfg.Business.AutoConfirmAfter)
	assert.Equal(t, 15*time.Minute, cfg.Business.SweepInterval)
	assert.Equal(t, 1, cfg.Business.SweepBatchSize)
	assert.True(t, cfg.Business.StrictTransitions)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestParseRejectsBadValues(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown zone":      {"ORDER_TIMEZONE": "Mars/Olympus"},
		"zero interval":     {"AUTO_CONFIRM_SWEEP_INTERVAL": "0s"},
		"negative delay":    {"AUTO_CONFIRM_AFTER": "-1h"},
		"malformed integer": {"REDIS_DB": "one"},
	}

	for name, vars := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := parse(env.Options{Environment: vars})
			assert.Error(t, err)
		})
	}
}
