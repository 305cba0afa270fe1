package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	require.NoError(t, Load())

	assert.Equal(t, "sensor/panel/utama", MQTTTopic())
	assert.Equal(t, 5*time.Second, SamplingInterval())
	assert.Equal(t, 240.0, BatteryCapacityWh())
	assert.Equal(t, 0.5, BatteryInitialFraction())
	assert.Equal(t, "integrated", BatteryStrategy())
	assert.False(t, LowRPMAlertEnabled())
	assert.Nil(t, KafkaBrokers())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("STORE_BACKEND", "Memory")
	t.Setenv("SAMPLING_INTERVAL", "10s")
	t.Setenv("TIMEZONE", "Asia/Jakarta")
	t.Setenv("ALERT_LOW_RPM_ENABLED", "true")
	require.NoError(t, Load())

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, KafkaBrokers())
	assert.Equal(t, "memory", StoreBackend())
	assert.Equal(t, 10*time.Second, SamplingInterval())
	assert.True(t, LowRPMAlertEnabled())

	loc, err := Location()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Jakarta", loc.String())

	t.Setenv("TIMEZONE", "Mars/Olympus")
	_, err = Location()
	assert.Error(t, err)
}
