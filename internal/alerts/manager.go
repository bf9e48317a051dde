package alerts

import (
	"sync"
	"time"

	"homesafe-telemetry/internal/models"
	"homesafe-telemetry/internal/severity"

	"go.uber.org/zap"
)

// DefaultExpiry warning/danger 报警的自动清除窗口
const DefaultExpiry = 30 * time.Second

// RaiseHook 报警创建或分级变化时的回调（审计落库、缓存刷新用）
//
// 同分级的稳态刷新不触发：条件持续期间每条传感器事件都会替换记录，
// 审计只关心状态迁移。
type RaiseHook func(record *models.AlertRecord)

// Manager 报警生命周期管理器
//
// 按类别维护活动报警：每个类别同一时刻最多一条记录，新分类结果替换
// 旧记录。safe 立即清除；warning/danger 调度自动清除定时器，替换时
// 取消旧定时器并重新计时；critical 永不调度自动清除，只能由显式关闭
// 或指标恢复清除。
//
// 定时器回调运行在 runtime 的定时器 goroutine 上，所以内部加锁；
// 每个类别带一个代号计数器，已失效的定时器触发时不会误清新记录。
type Manager struct {
	mu      sync.Mutex
	records map[string]*models.AlertRecord
	timers  map[string]*time.Timer
	gens    map[string]uint64
	expiry  time.Duration
	logger  *zap.Logger
	onRaise RaiseHook
	closed  bool
}

// NewManager 创建报警生命周期管理器（expiry <= 0 时使用默认 30 秒窗口）
func NewManager(expiry time.Duration, logger *zap.Logger) *Manager {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Manager{
		records: make(map[string]*models.AlertRecord),
		timers:  make(map[string]*time.Timer),
		gens:    make(map[string]uint64),
		expiry:  expiry,
		logger:  logger,
	}
}

// SetRaiseHook 设置报警创建/替换回调
func (m *Manager) SetRaiseHook(hook RaiseHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRaise = hook
}

// Apply 应用一次分类结果
//
// tier 为 safe 时立即清除该类别的记录（无宽限期）；warning/danger
// 创建或替换记录并调度自动清除；critical 创建或替换记录且不调度
// 自动清除。同分级的稳态刷新只重置自动清除窗口，不触发回调。
func (m *Manager) Apply(category, tier, message string, snapshot *models.Reading) {
	if tier == severity.TierSafe {
		m.clear(category, "recovered")
		return
	}

	now := time.Now()
	record := &models.AlertRecord{
		Category:  category,
		Severity:  tier,
		Message:   message,
		Snapshot:  snapshot,
		CreatedAt: now,
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	prev := m.records[category]
	transition := prev == nil || prev.Severity != tier

	// 旧定时器作废：替换记录时重新计时，而不是沿用旧窗口
	m.gens[category]++
	gen := m.gens[category]
	if t, ok := m.timers[category]; ok {
		t.Stop()
		delete(m.timers, category)
	}

	if tier == severity.TierCritical {
		// critical 永不自动清除
		m.records[category] = record
	} else {
		expiresAt := now.Add(m.expiry)
		record.ExpiresAt = &expiresAt
		m.records[category] = record
		m.timers[category] = time.AfterFunc(m.expiry, func() {
			m.expire(category, gen)
		})
	}

	hook := m.onRaise
	m.mu.Unlock()

	if !transition {
		m.logger.Debug("Alert refreshed",
			zap.String("category", category),
			zap.String("severity", tier),
		)
		return
	}

	m.logger.Info("Alert raised",
		zap.String("category", category),
		zap.String("severity", tier),
		zap.String("message", message),
	)

	if hook != nil {
		hook(record)
	}
}

// ApplyFlame 应用火焰检测结果
//
// 火焰是独立的 fire 类别：检测到时恒为 critical，布尔量恢复 false
// 的瞬间即清除。
func (m *Manager) ApplyFlame(detected bool, snapshot *models.Reading) {
	if !detected {
		m.clear(models.CategoryFire, "flame cleared")
		return
	}
	m.Apply(models.CategoryFire, severity.TierCritical, FlameMessage(), snapshot)
}

// Dismiss 手动关闭某个类别的报警
//
// 任何分级都可以关闭；条件仍然存在时下一次分类会重新触发。
func (m *Manager) Dismiss(category string) {
	m.clear(category, "dismissed")
}

// Get 返回某个类别的活动报警（没有时返回 nil）
func (m *Manager) Get(category string) *models.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[category]
}

// Active 返回当前所有活动报警的副本
func (m *Manager) Active() []models.AlertRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.AlertRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out
}

// Close 关闭管理器，取消所有未触发的定时器（会话销毁时调用）
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	for category, t := range m.timers {
		t.Stop()
		delete(m.timers, category)
	}
	m.records = make(map[string]*models.AlertRecord)
}

// clear 清除某个类别的记录并作废其定时器
func (m *Manager) clear(category, reason string) {
	m.mu.Lock()
	_, existed := m.records[category]
	delete(m.records, category)
	m.gens[category]++
	if t, ok := m.timers[category]; ok {
		t.Stop()
		delete(m.timers, category)
	}
	m.mu.Unlock()

	if existed {
		m.logger.Info("Alert cleared",
			zap.String("category", category),
			zap.String("reason", reason),
		)
	}
}

// expire 自动清除回调（只有代号仍然有效时才清除）
func (m *Manager) expire(category string, gen uint64) {
	m.mu.Lock()
	if m.closed || m.gens[category] != gen {
		// 记录已被替换或清除，这是个过期定时器
		m.mu.Unlock()
		return
	}
	delete(m.records, category)
	delete(m.timers, category)
	m.mu.Unlock()

	m.logger.Info("Alert expired",
		zap.String("category", category),
	)
}
