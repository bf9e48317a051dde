package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"homesafe-telemetry/internal/cache"
	"homesafe-telemetry/internal/config"
	"homesafe-telemetry/internal/models"
	"homesafe-telemetry/internal/repository"
	"homesafe-telemetry/internal/session"
	"homesafe-telemetry/internal/severity"
	"homesafe-telemetry/internal/transport"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	_ "github.com/lib/pq"
)

// TelemetryService 遥测服务（整合各层）
//
// 持有会话注册表、MQTT 事件总线、报警事件仓库和快照缓存：
// 会话产生的报警经由 sink 落库并刷新缓存，定期刷新循环保证
// 展示层读到的快照不过期。
type TelemetryService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	logger      *zap.Logger

	bus             *transport.MQTTBus
	registry        *session.Registry
	snapshotCache   *cache.SnapshotCache
	alertEventsRepo *repository.AlertEventsRepository
}

// NewTelemetryService 创建遥测服务
func NewTelemetryService(cfg *config.Config, logger *zap.Logger) (*TelemetryService, error) {
	// 1. 连接数据库
	db, err := sql.Open("postgres", cfg.Database.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT 事件总线
	bus, err := transport.NewMQTTBus(&cfg.MQTT, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect event bus: %w", err)
	}

	svc := &TelemetryService{
		config:          cfg,
		db:              db,
		redisClient:     redisClient,
		logger:          logger,
		bus:             bus,
		snapshotCache:   cache.NewSnapshotCache(cfg, redisClient, logger),
		alertEventsRepo: repository.NewAlertEventsRepository(db, logger),
	}

	// 4. 创建会话注册表（报警 sink 指回服务：落库 + 刷新缓存）
	opts := session.Options{
		HistoryCapacity: cfg.Telemetry.History.Capacity,
		AlertExpiry:     time.Duration(cfg.Telemetry.Alert.ExpirySeconds) * time.Second,
		GasBase:         cfg.Telemetry.Threshold.GasBase,
		Profile:         severity.DefaultProfile(),
		AlertSink:       svc.onAlertRaised,
	}
	svc.registry = session.NewRegistry(bus, opts, logger)

	return svc, nil
}

// Start 启动服务（定期刷新循环，阻塞到上下文取消）
func (s *TelemetryService) Start(ctx context.Context) error {
	interval := time.Duration(s.config.Telemetry.Cache.RefreshSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}

	s.logger.Info("Telemetry service started",
		zap.Duration("refresh_interval", interval),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Telemetry service refresh loop stopped")
			return nil
		case <-ticker.C:
			s.refreshAll(ctx)
		}
	}
}

// Stop 停止服务
func (s *TelemetryService) Stop() error {
	s.logger.Info("Stopping telemetry service")

	// 先销毁全部会话（退订、取消定时器），再断开底层连接
	s.registry.CloseAll()
	s.bus.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}
	return nil
}

// ConnectDevice 建立设备会话（幂等），返回是否连接成功
func (s *TelemetryService) ConnectDevice(serial, accountID string) bool {
	return s.registry.Connect(serial, accountID)
}

// DisconnectDevice 销毁设备会话并清除其缓存
func (s *TelemetryService) DisconnectDevice(serial string) {
	s.registry.Disconnect(serial)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.snapshotCache.ClearDevice(ctx, serial); err != nil {
		s.logger.Warn("Failed to clear device cache",
			zap.String("serial_number", serial),
			zap.Error(err),
		)
	}
}

// Snapshot 读取设备当前快照（会话不存在时返回 false）
func (s *TelemetryService) Snapshot(serial string) (*models.DeviceSnapshot, bool) {
	sess, ok := s.registry.Get(serial)
	if !ok {
		return nil, false
	}
	return sess.Snapshot(), true
}

// ActiveAlerts 读取设备当前活动报警（会话不存在时返回 nil）
func (s *TelemetryService) ActiveAlerts(serial string) []models.AlertRecord {
	sess, ok := s.registry.Get(serial)
	if !ok {
		return nil
	}
	return sess.ActiveAlerts()
}

// DismissAlert 手动关闭设备某个类别的报警
func (s *TelemetryService) DismissAlert(serial, category string) error {
	sess, ok := s.registry.Get(serial)
	if !ok {
		return fmt.Errorf("no active session for device: %s", serial)
	}
	sess.DismissAlert(category)

	// 关闭后立即刷新报警缓存
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.snapshotCache.UpdateAlerts(ctx, serial, sess.ActiveAlerts()); err != nil {
		s.logger.Warn("Failed to refresh alerts cache after dismiss",
			zap.String("serial_number", serial),
			zap.Error(err),
		)
	}
	return nil
}

// SendThresholdConfig 会话发起的阈值变更下发
func (s *TelemetryService) SendThresholdConfig(serial string, cmd *models.ConfigUpdateCommand) error {
	sess, ok := s.registry.Get(serial)
	if !ok {
		return fmt.Errorf("no active session for device: %s", serial)
	}
	return sess.SendThresholdConfig(s.bus, cmd)
}

// SendCommand 下发通用命令信封
func (s *TelemetryService) SendCommand(serial string, cmd *models.CommandEnvelope) error {
	return s.bus.SendCommand(serial, cmd)
}

// onAlertRaised 报警创建/替换回调：审计落库 + 刷新缓存
func (s *TelemetryService) onAlertRaised(serial string, record *models.AlertRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	accountID := ""
	var active []models.AlertRecord
	if sess, ok := s.registry.Get(serial); ok {
		accountID = sess.AccountID()
		active = sess.ActiveAlerts()
	} else {
		active = []models.AlertRecord{*record}
	}

	event, err := repository.BuildAlertEvent(serial, accountID, record)
	if err != nil {
		s.logger.Error("Failed to build alert event",
			zap.String("serial_number", serial),
			zap.Error(err),
		)
	} else if err := s.alertEventsRepo.CreateAlertEvent(ctx, event); err != nil {
		// 落库失败不中断报警处理
		s.logger.Error("Failed to create alert event",
			zap.String("event_id", event.EventID),
			zap.String("category", event.Category),
			zap.Error(err),
		)
	} else {
		s.logger.Info("Alert event created",
			zap.String("event_id", event.EventID),
			zap.String("serial_number", serial),
			zap.String("category", event.Category),
			zap.String("severity", event.Severity),
		)
	}

	if err := s.snapshotCache.UpdateAlerts(ctx, serial, active); err != nil {
		s.logger.Warn("Failed to refresh alerts cache",
			zap.String("serial_number", serial),
			zap.Error(err),
		)
	}
}

// refreshAll 刷新全部会话的快照和报警缓存
func (s *TelemetryService) refreshAll(ctx context.Context) {
	for _, sess := range s.registry.Sessions() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		serial := sess.Serial()
		if err := s.snapshotCache.UpdateSnapshot(ctx, sess.Snapshot()); err != nil {
			s.logger.Warn("Failed to refresh snapshot cache",
				zap.String("serial_number", serial),
				zap.Error(err),
			)
		}
		if err := s.snapshotCache.UpdateAlerts(ctx, serial, sess.ActiveAlerts()); err != nil {
			s.logger.Warn("Failed to refresh alerts cache",
				zap.String("serial_number", serial),
				zap.Error(err),
			)
		}
	}
}
