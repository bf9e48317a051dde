package models

import (
	"time"
)

// 报警类别（每个类别同一时刻最多一条活动报警）
const (
	CategoryGas         = "gas"
	CategoryAirQuality  = "air-quality"
	CategoryTemperature = "temperature"
	CategoryFire        = "fire"
)

// AlertRecord 活动报警记录
//
// 由报警生命周期管理器按类别维护：safe 立即清除；warning/danger 创建后
// 30 秒无刷新自动清除；critical 永不自动清除（ExpiresAt 为 nil），只能
// 由显式关闭或指标恢复清除。
type AlertRecord struct {
	Category  string     `json:"category"`
	Severity  string     `json:"severity"`
	Message   string     `json:"message"`
	Snapshot  *Reading   `json:"snapshot,omitempty"` // 触发时的读数快照
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// AlertEvent 报警事件（对应 alert_events 表，审计用）
type AlertEvent struct {
	EventID      string    `json:"event_id" db:"event_id"`
	SerialNumber string    `json:"serial_number" db:"serial_number"`
	AccountID    string    `json:"account_id" db:"account_id"`
	Category     string    `json:"category" db:"category"`
	Severity     string    `json:"severity" db:"severity"`
	Message      string    `json:"message" db:"message"`
	TriggerData  string    `json:"trigger_data" db:"trigger_data"` // JSONB
	TriggeredAt  time.Time `json:"triggered_at" db:"triggered_at"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// DeviceSnapshot 展示层读取的设备快照（写入 Redis 缓存）
type DeviceSnapshot struct {
	SerialNumber string            `json:"serial_number"`
	Reading      *Reading          `json:"reading"`
	Trends       map[string]string `json:"trends"` // 指标 → up/down/stable/none
	Timestamp    int64             `json:"timestamp"`
}
