package session

import (
	"sync"

	"homesafe-telemetry/internal/transport"

	"go.uber.org/zap"
)

// Registry 设备会话注册表
//
// 按序列号管理多个相互隔离的并发会话，代替单一共享传输单例。
// 只保存连接成功的会话：连接失败的会话没有任何已注册处理器，
// 也就没有销毁义务。
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	bus    transport.EventBus
	opts   Options
	logger *zap.Logger
}

// NewRegistry 创建会话注册表
func NewRegistry(bus transport.EventBus, opts Options, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		bus:      bus,
		opts:     opts,
		logger:   logger,
	}
}

// Connect 建立（或复用）设备会话，返回是否连接成功
//
// 幂等：对已连接的设备调用是空操作，返回现有状态。连接失败时不
// 注册会话也不自动重试，由调用方决定是否重新发起。
func (r *Registry) Connect(serial, accountID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.sessions[serial]; ok {
		return existing.Connected()
	}

	s := NewSession(serial, accountID, r.bus, r.opts, r.logger)
	if err := s.Open(); err != nil {
		r.logger.Warn("Failed to open device session",
			zap.String("serial_number", serial),
			zap.Error(err),
		)
		return false
	}

	r.sessions[serial] = s
	return true
}

// Disconnect 销毁设备会话（对不存在的会话是空操作）
func (r *Registry) Disconnect(serial string) {
	r.mu.Lock()
	s, ok := r.sessions[serial]
	delete(r.sessions, serial)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Get 查找设备会话
func (r *Registry) Get(serial string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[serial]
	return s, ok
}

// Sessions 返回当前全部活动会话
func (r *Registry) Sessions() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Count 当前活动会话数
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// CloseAll 销毁全部会话（服务停止时调用）
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
