package transport

import (
	"homesafe-telemetry/internal/models"
)

// 入站事件通道基础名（每个基础名同时存在广播形式和设备定向形式
// `<base>_<serial>`，两种投递风格统一处理）
const (
	EventSensorData         = "sensor_data"
	EventAlarmTriggered     = "alarm_triggered"
	EventEmergencyAlert     = "emergency_alert"
	EventDeviceCapabilities = "device_capabilities"
)

// SessionEventBases 会话订阅的固定通道基础名集合
var SessionEventBases = []string{
	EventSensorData,
	EventAlarmTriggered,
	EventEmergencyAlert,
	EventDeviceCapabilities,
}

// 出站命令通道基础名
const (
	ChannelDeviceConfig  = "device_config"
	ChannelDeviceCommand = "device_command"
)

// DeviceChannel 推导设备定向通道名：`<base>_<serial>`
func DeviceChannel(base, serial string) string {
	return base + "_" + serial
}

// EventHandler 入站事件处理函数
type EventHandler func(event string, payload []byte)

// HandlerID 单次订阅注册的标识
//
// 同一事件名（尤其是广播通道）会被多个会话各自注册处理器，退订必须
// 按注册标识定位到具体处理器，而不是按事件名整体退订。
type HandlerID uint64

// EventBus 事件总线（核心只依赖此接口，不关心底层实现）
//
// 按设备会话投递命名消息：订阅/退订任意事件名，外加一个按设备的
// 连接/断开调用（返回成功与否）。同一事件名下允许多个处理器并存，
// 投递时全部收到。
type EventBus interface {
	// Subscribe 订阅事件，返回本次注册的标识
	Subscribe(event string, handler EventHandler) (HandlerID, error)
	// Unsubscribe 退订某次注册（不影响同一事件名下的其他处理器）
	Unsubscribe(event string, id HandlerID) error
	// ConnectDevice 建立设备会话连接，返回是否成功（失败不自动重试）
	ConnectDevice(serial, accountID string) bool
	// DisconnectDevice 断开设备会话连接
	DisconnectDevice(serial string) error
}

// CommandSender 设备命令通道（出站，fire-and-forget）
type CommandSender interface {
	// SendConfigUpdate 下发阈值/配置更新
	SendConfigUpdate(serial string, cmd *models.ConfigUpdateCommand) error
	// SendCommand 下发通用命令信封
	SendCommand(serial string, cmd *models.CommandEnvelope) error
}
