// Package session 实现按设备隔离的遥测会话
//
// 每个设备一个会话（actor 模型）：传输层回调只负责入队，单个消费
// goroutine 按投递顺序逐条处理（合并 → 历史 → 分类 → 报警），同一
// 会话的状态不存在并行修改。会话之间不共享任何可变结构。
package session

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"homesafe-telemetry/internal/alerts"
	"homesafe-telemetry/internal/models"
	"homesafe-telemetry/internal/severity"
	"homesafe-telemetry/internal/telemetry"
	"homesafe-telemetry/internal/transport"

	"go.uber.org/zap"
)

// ErrConnectFailed 传输层连接失败（调用方可重新发起，本层不自动重试）
var ErrConnectFailed = errors.New("transport connect failed")

// inboxSize 会话收件箱容量（入队满时阻塞以保持投递顺序，不丢弃）
const inboxSize = 256

// AlertSink 报警创建/替换时的会话级回调（落库、刷新缓存）
type AlertSink func(serial string, record *models.AlertRecord)

// Options 会话参数
type Options struct {
	HistoryCapacity int           // 每个指标的历史窗口容量
	AlertExpiry     time.Duration // warning/danger 自动清除窗口
	GasBase         float64       // 气体阈值校准基准
	Profile         *severity.Profile
	AlertSink       AlertSink
}

type inbound struct {
	event   string
	payload []byte
}

// subscription 一次通道注册（退订时按标识定位，不影响其他会话
// 在同一广播通道上的处理器）
type subscription struct {
	event string
	id    transport.HandlerID
}

// Session 设备会话
//
// 独占持有该设备的规范化读数、全部历史窗口和报警记录。
type Session struct {
	serial    string
	accountID string

	bus        transport.EventBus
	normalizer *telemetry.Normalizer
	alerts     *alerts.Manager
	opts       Options
	logger     *zap.Logger

	// mu 保护 reading/windows/profile/connected：消费 goroutine 写入，
	// Snapshot 等读取方法可能从其他 goroutine 调用
	mu        sync.RWMutex
	connected bool
	profile   *severity.Profile
	reading   *models.Reading
	windows   map[string]*telemetry.Window

	subscribed []subscription
	inbox      chan inbound
	done       chan struct{}
	closeOnce  sync.Once
	wg         sync.WaitGroup
}

// NewSession 创建设备会话（尚未连接，需调用 Open）
func NewSession(serial, accountID string, bus transport.EventBus, opts Options, logger *zap.Logger) *Session {
	profile := opts.Profile
	if profile == nil {
		profile = severity.DefaultProfile()
	}

	s := &Session{
		serial:     serial,
		accountID:  accountID,
		bus:        bus,
		normalizer: telemetry.NewNormalizer(logger),
		alerts:     alerts.NewManager(opts.AlertExpiry, logger),
		opts:       opts,
		logger:     logger,
		profile:    profile,
		reading:    &models.Reading{},
		windows:    make(map[string]*telemetry.Window),
		inbox:      make(chan inbound, inboxSize),
		done:       make(chan struct{}),
	}

	if opts.AlertSink != nil {
		sink := opts.AlertSink
		s.alerts.SetRaiseHook(func(record *models.AlertRecord) {
			sink(serial, record)
		})
	}

	return s
}

// Open 建立会话：连接传输层并注册事件处理器
//
// 为每个通道基础名同时注册广播形式和设备定向形式（`<base>_<serial>`），
// 两种投递风格统一处理。连接失败时会话保持未连接状态，不注册任何
// 处理器，也不自动重试。
func (s *Session) Open() error {
	if !s.bus.ConnectDevice(s.serial, s.accountID) {
		s.logger.Warn("Device session connect failed",
			zap.String("serial_number", s.serial),
		)
		return ErrConnectFailed
	}

	handler := func(event string, payload []byte) {
		// 只入队，消费 goroutine 按投递顺序处理
		select {
		case s.inbox <- inbound{event: event, payload: payload}:
		case <-s.done:
		}
	}

	var registered []subscription
	for _, base := range transport.SessionEventBases {
		for _, event := range []string{base, transport.DeviceChannel(base, s.serial)} {
			id, err := s.bus.Subscribe(event, handler)
			if err != nil {
				// 回滚已注册的处理器，保持"要么全部注册要么零注册"
				for _, sub := range registered {
					s.bus.Unsubscribe(sub.event, sub.id)
				}
				return err
			}
			registered = append(registered, subscription{event: event, id: id})
		}
	}

	s.mu.Lock()
	s.subscribed = registered
	s.connected = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.consume()

	s.logger.Info("Device session opened",
		zap.String("serial_number", s.serial),
		zap.String("account_id", s.accountID),
		zap.Int("subscribed_channels", len(s.subscribed)),
	)
	return nil
}

// Close 销毁会话：退订全部通道、取消所有报警定时器、清空会话状态
//
// 销毁后该设备不再有任何已注册的传输层处理器，也没有残留定时器
// 可以修改已消失的会话状态。
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.unsubscribeAll()
		s.wg.Wait()

		s.alerts.Close()

		s.mu.Lock()
		s.connected = false
		for _, w := range s.windows {
			w.Clear()
		}
		s.windows = make(map[string]*telemetry.Window)
		s.reading = &models.Reading{}
		s.mu.Unlock()

		if err := s.bus.DisconnectDevice(s.serial); err != nil {
			s.logger.Warn("Failed to disconnect device session",
				zap.String("serial_number", s.serial),
				zap.Error(err),
			)
		}

		s.logger.Info("Device session closed",
			zap.String("serial_number", s.serial),
		)
	})
}

// Serial 设备序列号
func (s *Session) Serial() string {
	return s.serial
}

// AccountID 所属账户
func (s *Session) AccountID() string {
	return s.accountID
}

// Connected 会话是否已连接
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// SubscribedChannels 当前已注册的通道名集合
func (s *Session) SubscribedChannels() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.subscribed))
	for _, sub := range s.subscribed {
		out = append(out, sub.event)
	}
	return out
}

// Snapshot 返回展示层需要的设备快照（读数 + 趋势标记）
func (s *Session) Snapshot() *models.DeviceSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	trends := make(map[string]string, len(models.NumericMetrics))
	for _, metric := range models.NumericMetrics {
		trends[metric] = telemetry.Trend(s.windows[metric])
	}

	return &models.DeviceSnapshot{
		SerialNumber: s.serial,
		Reading:      s.reading.Clone(),
		Trends:       trends,
		Timestamp:    time.Now().Unix(),
	}
}

// ActiveAlerts 当前活动报警
func (s *Session) ActiveAlerts() []models.AlertRecord {
	return s.alerts.Active()
}

// DismissAlert 手动关闭某个类别的报警（用户"关闭"操作）
func (s *Session) DismissAlert(category string) {
	s.alerts.Dismiss(category)
}

// SendThresholdConfig 会话发起的阈值变更：下发配置并重建本会话的阈值配置
func (s *Session) SendThresholdConfig(sender transport.CommandSender, cmd *models.ConfigUpdateCommand) error {
	if err := sender.SendConfigUpdate(s.serial, cmd); err != nil {
		return err
	}

	s.mu.Lock()
	if cmd.GasThreshold > 0 {
		s.profile = severity.GasSensorProfile(cmd.GasThreshold)
	}
	s.mu.Unlock()
	return nil
}

// consume 会话消费循环（单消费者，保证同设备事件按投递顺序处理）
func (s *Session) consume() {
	defer s.wg.Done()
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.inbox:
			s.process(msg)
		}
	}
}

// process 处理一条入站事件
func (s *Session) process(msg inbound) {
	if isCapabilitiesEvent(msg.event) {
		s.handleCapabilities(msg.payload)
		return
	}

	var raw map[string]interface{}
	if err := json.Unmarshal(msg.payload, &raw); err != nil {
		// 解析失败降级为"无状态变化"
		s.logger.Debug("Dropped malformed event payload",
			zap.String("event", msg.event),
			zap.Error(err),
		)
		return
	}

	// 广播通道上可能携带其他设备的载荷，按标识符过滤
	if serial := telemetry.ExtractSerial(raw); serial != "" && serial != s.serial {
		return
	}

	now := time.Now()

	s.mu.Lock()
	merged, numeric, ok := s.normalizer.Normalize(raw, s.reading, now)
	if !ok {
		s.mu.Unlock()
		return
	}
	s.reading = merged

	// 数值型指标追加进历史窗口
	for metric, value := range numeric {
		w, exists := s.windows[metric]
		if !exists {
			w = telemetry.NewWindow(s.opts.HistoryCapacity)
			s.windows[metric] = w
		}
		w.Append(value, now)
	}

	profile := s.profile
	snapshot := merged.Clone()
	s.mu.Unlock()

	// 对当前读数中的每个可分类指标做一次分类
	for _, metric := range models.NumericMetrics {
		value, present := snapshot.NumericValue(metric)
		if !present {
			continue
		}
		tier := severity.Classify(metric, value, profile)
		category := alerts.CategoryForMetric(metric)
		s.alerts.Apply(category, tier, alerts.MessageFor(metric, tier, value), snapshot)
	}

	// 火焰走独立的 fire 类别
	if snapshot.FlameDetected != nil {
		s.alerts.ApplyFlame(*snapshot.FlameDetected, snapshot)
	}
}

// handleCapabilities 处理设备能力/校准载荷
//
// 载荷非法时记录警告并跳过校准，其余处理不受影响。
func (s *Session) handleCapabilities(payload []byte) {
	var caps models.DeviceCapabilities
	if err := json.Unmarshal(payload, &caps); err != nil {
		s.logger.Warn("Malformed device capabilities payload, skipping calibration",
			zap.String("serial_number", s.serial),
			zap.Error(err),
		)
		return
	}

	base := s.opts.GasBase
	if caps.GasBaseThreshold != nil && *caps.GasBaseThreshold > 0 {
		base = *caps.GasBaseThreshold
	}

	s.mu.Lock()
	s.profile = severity.ProfileForClass(caps.DeviceClass, base)
	s.mu.Unlock()

	s.logger.Info("Threshold profile rebuilt from device capabilities",
		zap.String("serial_number", s.serial),
		zap.String("device_class", caps.DeviceClass),
		zap.Float64("gas_base", base),
	)
}

// unsubscribeAll 退订本会话的全部注册（不触碰其他会话在广播通道上的
// 处理器）
func (s *Session) unsubscribeAll() {
	s.mu.Lock()
	subs := s.subscribed
	s.subscribed = nil
	s.mu.Unlock()

	for _, sub := range subs {
		if err := s.bus.Unsubscribe(sub.event, sub.id); err != nil {
			s.logger.Warn("Failed to unsubscribe",
				zap.String("event", sub.event),
				zap.Error(err),
			)
		}
	}
}

func isCapabilitiesEvent(event string) bool {
	return event == transport.EventDeviceCapabilities ||
		strings.HasPrefix(event, transport.EventDeviceCapabilities+"_")
}
