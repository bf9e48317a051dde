package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"homesafe-telemetry/internal/config"
	"homesafe-telemetry/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *SnapshotCache) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	cfg := &config.Config{}
	cfg.Telemetry.Cache.RealtimeKeyPrefix = "homesafe:device:"
	cfg.Telemetry.Cache.RealtimeSuffix = ":realtime"
	cfg.Telemetry.Cache.AlertKeyPrefix = "homesafe:device:"
	cfg.Telemetry.Cache.AlertSuffix = ":alerts"
	cfg.Telemetry.Cache.TTL = 60

	logger := zap.NewNop()
	return mr, NewSnapshotCache(cfg, redisClient, logger)
}

func floatPtr(f float64) *float64 {
	return &f
}

func TestSnapshotCache_UpdateAndGetSnapshot(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	snapshot := &models.DeviceSnapshot{
		SerialNumber: "SN-1",
		Reading: &models.Reading{
			Gas:         floatPtr(450),
			Temperature: floatPtr(25),
			LastUpdate:  time.Now(),
		},
		Trends: map[string]string{
			models.MetricGas:         "up",
			models.MetricTemperature: "stable",
			models.MetricSmokeLevel:  "none",
		},
		Timestamp: time.Now().Unix(),
	}

	require.NoError(t, c.UpdateSnapshot(ctx, snapshot))

	got, err := c.GetSnapshot(ctx, "SN-1")
	require.NoError(t, err)
	assert.Equal(t, "SN-1", got.SerialNumber)
	require.NotNil(t, got.Reading.Gas)
	assert.Equal(t, 450.0, *got.Reading.Gas)
	assert.Equal(t, "up", got.Trends[models.MetricGas])
}

func TestSnapshotCache_GetSnapshot_NotFound(t *testing.T) {
	_, c := setupTestCache(t)

	_, err := c.GetSnapshot(context.Background(), "SN-missing")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot not found")
}

func TestSnapshotCache_UpdateAlerts(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	now := time.Now()
	alerts := []models.AlertRecord{
		{
			Category:  models.CategoryGas,
			Severity:  "critical",
			Message:   "EMERGENCY: gas",
			CreatedAt: now,
		},
		{
			Category:  models.CategoryTemperature,
			Severity:  "warning",
			Message:   "Temperature elevated",
			CreatedAt: now,
		},
	}

	require.NoError(t, c.UpdateAlerts(ctx, "SN-1", alerts))

	// 验证数据已写入
	val, err := mr.Get("homesafe:device:SN-1:alerts")
	require.NoError(t, err)

	var cached []models.AlertRecord
	require.NoError(t, json.Unmarshal([]byte(val), &cached))
	assert.Len(t, cached, 2)
	assert.Equal(t, models.CategoryGas, cached[0].Category)

	// 验证 TTL 已设置
	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("homesafe:device:SN-1:alerts"))
}

func TestSnapshotCache_UpdateAlerts_EmptySet(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	// 空集合也写入（展示层据此知道报警已清除）
	require.NoError(t, c.UpdateAlerts(ctx, "SN-1", []models.AlertRecord{}))

	val, err := mr.Get("homesafe:device:SN-1:alerts")
	require.NoError(t, err)
	assert.Equal(t, "[]", val)
}

func TestSnapshotCache_ClearDevice(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.UpdateSnapshot(ctx, &models.DeviceSnapshot{SerialNumber: "SN-1"}))
	require.NoError(t, c.UpdateAlerts(ctx, "SN-1", nil))

	require.NoError(t, c.ClearDevice(ctx, "SN-1"))

	assert.False(t, mr.Exists("homesafe:device:SN-1:realtime"))
	assert.False(t, mr.Exists("homesafe:device:SN-1:alerts"))
}
