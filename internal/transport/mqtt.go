package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"homesafe-telemetry/internal/config"
	"homesafe-telemetry/internal/models"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

// MQTTBus 基于 MQTT 的事件总线实现
//
// 事件名直接映射为 MQTT 主题。同一主题被多个会话订阅时只向 broker
// 订阅一次，收到消息后在本地扇出到该主题的全部处理器；最后一个
// 处理器退订时才向 broker 退订主题。设备连接/断开通过在公告主题上
// 发布会话消息实现，发布失败即视为连接失败。
type MQTTBus struct {
	client mqtt.Client
	config *config.MQTTConfig
	logger *zap.Logger

	// mu 保护处理器注册表（订阅/退订与 broker 回调并发）
	mu       sync.Mutex
	nextID   HandlerID
	handlers map[string]map[HandlerID]EventHandler
}

// NewMQTTBus 创建并连接 MQTT 事件总线
func NewMQTTBus(cfg *config.MQTTConfig, logger *zap.Logger) (*MQTTBus, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)

	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return &MQTTBus{
		client:   client,
		config:   cfg,
		logger:   logger,
		handlers: make(map[string]map[HandlerID]EventHandler),
	}, nil
}

// Subscribe 订阅事件（事件名即主题名），返回本次注册的标识
//
// 该事件名的第一个处理器触发向 broker 的主题订阅，后续处理器只追加
// 进本地注册表。
func (b *MQTTBus) Subscribe(event string, handler EventHandler) (HandlerID, error) {
	b.mu.Lock()
	first := len(b.handlers[event]) == 0
	b.nextID++
	id := b.nextID
	if b.handlers[event] == nil {
		b.handlers[event] = make(map[HandlerID]EventHandler)
	}
	b.handlers[event][id] = handler
	b.mu.Unlock()

	if !first {
		return id, nil
	}

	token := b.client.Subscribe(event, b.config.QoS, func(client mqtt.Client, msg mqtt.Message) {
		b.dispatch(msg.Topic(), msg.Payload())
	})
	if token.Wait() && token.Error() != nil {
		b.mu.Lock()
		delete(b.handlers[event], id)
		if len(b.handlers[event]) == 0 {
			delete(b.handlers, event)
		}
		b.mu.Unlock()
		return 0, fmt.Errorf("failed to subscribe to event %s: %w", event, token.Error())
	}
	return id, nil
}

// Unsubscribe 退订某次注册
//
// 只有该事件名的最后一个处理器被移除时才向 broker 退订主题，其他
// 会话在同一事件名上的投递不受影响。
func (b *MQTTBus) Unsubscribe(event string, id HandlerID) error {
	b.mu.Lock()
	hs, ok := b.handlers[event]
	if ok {
		delete(hs, id)
	}
	last := ok && len(hs) == 0
	if last {
		delete(b.handlers, event)
	}
	b.mu.Unlock()

	if !last {
		return nil
	}

	token := b.client.Unsubscribe(event)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to unsubscribe from event %s: %w", event, token.Error())
	}
	return nil
}

// dispatch 把一条消息扇出到该事件名的全部处理器
func (b *MQTTBus) dispatch(event string, payload []byte) {
	b.mu.Lock()
	hs := make([]EventHandler, 0, len(b.handlers[event]))
	for _, h := range b.handlers[event] {
		hs = append(hs, h)
	}
	b.mu.Unlock()

	for _, h := range hs {
		h(event, payload)
	}
}

// ConnectDevice 建立设备会话连接
func (b *MQTTBus) ConnectDevice(serial, accountID string) bool {
	if !b.client.IsConnected() {
		return false
	}

	payload, err := json.Marshal(map[string]interface{}{
		"serialNumber": serial,
		"accountId":    accountID,
		"timestamp":    time.Now().Unix(),
	})
	if err != nil {
		return false
	}

	token := b.client.Publish("device_session_connect", b.config.QoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		b.logger.Warn("Failed to announce device session connect",
			zap.String("serial_number", serial),
			zap.Error(token.Error()),
		)
		return false
	}
	return true
}

// DisconnectDevice 断开设备会话连接
func (b *MQTTBus) DisconnectDevice(serial string) error {
	payload, err := json.Marshal(map[string]interface{}{
		"serialNumber": serial,
		"timestamp":    time.Now().Unix(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal disconnect payload: %w", err)
	}

	token := b.client.Publish("device_session_disconnect", b.config.QoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to announce device session disconnect: %w", token.Error())
	}
	return nil
}

// SendConfigUpdate 下发阈值/配置更新到设备配置通道
func (b *MQTTBus) SendConfigUpdate(serial string, cmd *models.ConfigUpdateCommand) error {
	return b.publishJSON(DeviceChannel(ChannelDeviceConfig, serial), cmd)
}

// SendCommand 下发通用命令信封到设备命令通道
func (b *MQTTBus) SendCommand(serial string, cmd *models.CommandEnvelope) error {
	if cmd.Timestamp == 0 {
		cmd.Timestamp = time.Now().Unix()
	}
	return b.publishJSON(DeviceChannel(ChannelDeviceCommand, serial), cmd)
}

// Disconnect 断开 MQTT 连接
func (b *MQTTBus) Disconnect() {
	b.client.Disconnect(250) // 250ms 等待时间
}

func (b *MQTTBus) publishJSON(topic string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal command payload: %w", err)
	}

	token := b.client.Publish(topic, b.config.QoS, false, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}
