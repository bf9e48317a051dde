package models

// ConfigUpdateCommand 下发给设备的阈值/配置更新载荷
type ConfigUpdateCommand struct {
	GasThreshold      float64 `json:"gas_threshold"`
	Sensitivity       int     `json:"sensitivity"`
	HumidityThreshold float64 `json:"humidity_threshold"`
	TempThreshold     float64 `json:"temp_threshold"`
	AlarmEnabled      bool    `json:"alarm_enabled"`
	MonitoringEnabled bool    `json:"monitoring_enabled"`
}

// CommandEnvelope 通用设备命令信封（开关类操作）
type CommandEnvelope struct {
	Action    string `json:"action"`
	State     string `json:"state"`
	Timestamp int64  `json:"timestamp"`
}

// DeviceCapabilities 设备能力/校准载荷（device_capabilities 事件）
//
// 设备上线后可上报自己的设备类别和气体阈值校准基准，用于重建该会话的
// 阈值配置。载荷非法时记录警告并跳过，不影响后续处理。
type DeviceCapabilities struct {
	DeviceClass      string   `json:"device_class"` // "gas_sensor" 或 "smoke_detector"
	GasBaseThreshold *float64 `json:"gas_base_threshold,omitempty"`
}
