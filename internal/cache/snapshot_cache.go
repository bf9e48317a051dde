package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"homesafe-telemetry/internal/config"
	"homesafe-telemetry/internal/models"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// SnapshotCache 设备快照缓存管理器
//
// 每次事件处理后把设备快照（读数 + 趋势标记）和活动报警集合写入
// Redis 供展示层读取，带 TTL：会话消失后缓存自然过期。
type SnapshotCache struct {
	config      *config.Config
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewSnapshotCache 创建快照缓存管理器
func NewSnapshotCache(
	cfg *config.Config,
	redisClient *redis.Client,
	logger *zap.Logger,
) *SnapshotCache {
	return &SnapshotCache{
		config:      cfg,
		redisClient: redisClient,
		logger:      logger,
	}
}

// UpdateSnapshot 写入设备实时快照
func (c *SnapshotCache) UpdateSnapshot(ctx context.Context, snapshot *models.DeviceSnapshot) error {
	key := fmt.Sprintf("%s%s%s",
		c.config.Telemetry.Cache.RealtimeKeyPrefix,
		snapshot.SerialNumber,
		c.config.Telemetry.Cache.RealtimeSuffix,
	)

	jsonData, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal device snapshot: %w", err)
	}

	err = c.redisClient.Set(ctx, key, jsonData, c.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set snapshot cache: %w", err)
	}

	c.logger.Debug("Updated snapshot cache",
		zap.String("serial_number", snapshot.SerialNumber),
		zap.String("key", key),
	)
	return nil
}

// UpdateAlerts 写入设备的活动报警集合
func (c *SnapshotCache) UpdateAlerts(ctx context.Context, serial string, alerts []models.AlertRecord) error {
	key := c.alertsKey(serial)

	jsonData, err := json.Marshal(alerts)
	if err != nil {
		return fmt.Errorf("failed to marshal alerts: %w", err)
	}

	err = c.redisClient.Set(ctx, key, jsonData, c.ttl()).Err()
	if err != nil {
		return fmt.Errorf("failed to set alerts cache: %w", err)
	}

	c.logger.Debug("Updated alerts cache",
		zap.String("serial_number", serial),
		zap.String("key", key),
		zap.Int("alert_count", len(alerts)),
	)
	return nil
}

// GetSnapshot 读取设备实时快照
func (c *SnapshotCache) GetSnapshot(ctx context.Context, serial string) (*models.DeviceSnapshot, error) {
	key := fmt.Sprintf("%s%s%s",
		c.config.Telemetry.Cache.RealtimeKeyPrefix,
		serial,
		c.config.Telemetry.Cache.RealtimeSuffix,
	)

	val, err := c.redisClient.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("snapshot not found for device: %s", serial)
		}
		return nil, fmt.Errorf("failed to get snapshot cache: %w", err)
	}

	var snapshot models.DeviceSnapshot
	if err := json.Unmarshal([]byte(val), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}

	return &snapshot, nil
}

// ClearDevice 清除设备的全部缓存键（会话销毁时调用）
func (c *SnapshotCache) ClearDevice(ctx context.Context, serial string) error {
	realtimeKey := fmt.Sprintf("%s%s%s",
		c.config.Telemetry.Cache.RealtimeKeyPrefix,
		serial,
		c.config.Telemetry.Cache.RealtimeSuffix,
	)

	err := c.redisClient.Del(ctx, realtimeKey, c.alertsKey(serial)).Err()
	if err != nil {
		return fmt.Errorf("failed to clear device cache: %w", err)
	}
	return nil
}

func (c *SnapshotCache) alertsKey(serial string) string {
	return fmt.Sprintf("%s%s%s",
		c.config.Telemetry.Cache.AlertKeyPrefix,
		serial,
		c.config.Telemetry.Cache.AlertSuffix,
	)
}

func (c *SnapshotCache) ttl() time.Duration {
	return time.Duration(c.config.Telemetry.Cache.TTL) * time.Second
}
