package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"homesafe-telemetry/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertEventsRepository 报警事件仓库（审计落库）
//
// 活动报警集合是会话内存状态；这里只追加每次创建/替换产生的事件，
// 供事后审计和通知服务消费。
type AlertEventsRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertEventsRepository 创建报警事件仓库
func NewAlertEventsRepository(db *sql.DB, logger *zap.Logger) *AlertEventsRepository {
	return &AlertEventsRepository{
		db:     db,
		logger: logger,
	}
}

// BuildAlertEvent 由活动报警记录构建审计事件行
func BuildAlertEvent(serial, accountID string, record *models.AlertRecord) (*models.AlertEvent, error) {
	triggerData := "{}"
	if record.Snapshot != nil {
		data, err := json.Marshal(record.Snapshot)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal trigger data: %w", err)
		}
		triggerData = string(data)
	}

	return &models.AlertEvent{
		EventID:      uuid.New().String(),
		SerialNumber: serial,
		AccountID:    accountID,
		Category:     record.Category,
		Severity:     record.Severity,
		Message:      record.Message,
		TriggerData:  triggerData,
		TriggeredAt:  record.CreatedAt,
		CreatedAt:    time.Now(),
	}, nil
}

// CreateAlertEvent 写入一条报警事件
func (r *AlertEventsRepository) CreateAlertEvent(ctx context.Context, event *models.AlertEvent) error {
	if event.SerialNumber == "" {
		return fmt.Errorf("serial_number is required")
	}
	if event.Category == "" {
		return fmt.Errorf("category is required")
	}

	query := `
		INSERT INTO alert_events (
			event_id,
			serial_number,
			account_id,
			category,
			severity,
			message,
			trigger_data,
			triggered_at,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		event.EventID,
		event.SerialNumber,
		event.AccountID,
		event.Category,
		event.Severity,
		event.Message,
		event.TriggerData,
		event.TriggeredAt,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert event: %w", err)
	}

	r.logger.Debug("Alert event created",
		zap.String("event_id", event.EventID),
		zap.String("serial_number", event.SerialNumber),
		zap.String("category", event.Category),
		zap.String("severity", event.Severity),
	)
	return nil
}

// ListAlertEvents 按设备查询最近的报警事件（triggered_at 倒序）
func (r *AlertEventsRepository) ListAlertEvents(ctx context.Context, serial string, limit int) ([]models.AlertEvent, error) {
	if serial == "" {
		return nil, fmt.Errorf("serial_number is required")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT
			event_id,
			serial_number,
			account_id,
			category,
			severity,
			message,
			trigger_data,
			triggered_at,
			created_at
		FROM alert_events
		WHERE serial_number = $1
		ORDER BY triggered_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, serial, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert events: %w", err)
	}
	defer rows.Close()

	var events []models.AlertEvent
	for rows.Next() {
		var e models.AlertEvent
		if err := rows.Scan(
			&e.EventID,
			&e.SerialNumber,
			&e.AccountID,
			&e.Category,
			&e.Severity,
			&e.Message,
			&e.TriggerData,
			&e.TriggeredAt,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert events: %w", err)
	}

	return events, nil
}
