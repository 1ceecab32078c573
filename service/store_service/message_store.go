package store_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"display-push-service/models"

	"gorm.io/gorm"
)

// CreateMessageWithDeliveries persists the message as pending plus one `sent` row per target.
func (s *Store) CreateMessageWithDeliveries(ctx context.Context, msg *models.Message, now time.Time) ([]models.MessageDelivery, error) {
	msg.Status = models.MessageStatusPending
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = now
	}
	rows := make([]models.MessageDelivery, 0, len(msg.TargetDevices))
	for _, deviceID := range msg.TargetDevices {
		rows = append(rows, models.MessageDelivery{
			MessageID: msg.ID,
			DeviceID:  deviceID,
			Status:    models.DeliveryStatusSent,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("insert message %s: %w", msg.ID, err)
		}
		if len(rows) == 0 {
			return nil
		}
		if err := tx.Create(&rows).Error; err != nil {
			return fmt.Errorf("insert deliveries for %s: %w", msg.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*models.Message, error) {
	var msg models.Message
	if err := s.db.WithContext(ctx).First(&msg, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &msg, nil
}

func (s *Store) ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error) {
	var msgs []models.Message
	q := s.db.WithContext(ctx).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&msgs).Error; err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

func (s *Store) ListDeliveries(ctx context.Context, messageID string) ([]models.MessageDelivery, error) {
	var rows []models.MessageDelivery
	if err := s.db.WithContext(ctx).Where("message_id = ?", messageID).Order("device_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list deliveries for %s: %w", messageID, err)
	}
	return rows, nil
}

// MarkDelivered moves the row to delivered and recomputes the message status in the
// same transaction. A row that is already delivered keeps its first deliveredAt.
func (s *Store) MarkDelivered(ctx context.Context, messageID, deviceID string, at time.Time) (*models.Message, *models.MessageDelivery, error) {
	var (
		msg *models.Message
		row models.MessageDelivery
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&row, "message_id = ? AND device_id = ?", messageID, deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeliveryNotFound
			}
			return fmt.Errorf("load delivery %s/%s: %w", messageID, deviceID, err)
		}
		if row.Status != models.DeliveryStatusDelivered {
			row.Status = models.DeliveryStatusDelivered
			row.DeliveredAt = &at
			row.FailedAt = nil
			row.FailureReason = ""
			row.UpdatedAt = at
			if err := tx.Save(&row).Error; err != nil {
				return fmt.Errorf("update delivery %s/%s: %w", messageID, deviceID, err)
			}
		}
		var err error
		msg, err = recompute(tx, messageID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return msg, &row, nil
}

// MarkFailed records an explicit failure for a row that has not been delivered.
func (s *Store) MarkFailed(ctx context.Context, messageID, deviceID string, at time.Time, reason string) (*models.Message, error) {
	var msg *models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.MessageDelivery{}).
			Where("message_id = ? AND device_id = ? AND status <> ?", messageID, deviceID, models.DeliveryStatusDelivered).
			Updates(map[string]any{
				"status":         models.DeliveryStatusFailed,
				"failed_at":      at,
				"failure_reason": reason,
				"updated_at":     at,
			})
		if res.Error != nil {
			return fmt.Errorf("fail delivery %s/%s: %w", messageID, deviceID, res.Error)
		}
		var err error
		msg, err = recompute(tx, messageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// RecomputeStatus 重新按投递记录计算消息聚合状态
func (s *Store) RecomputeStatus(ctx context.Context, messageID string) (*models.Message, error) {
	var msg *models.Message
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		msg, err = recompute(tx, messageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func recompute(tx *gorm.DB, messageID string) (*models.Message, error) {
	var msg models.Message
	if err := tx.First(&msg, "id = ?", messageID).Error; err != nil {
		return nil, notFound(err)
	}
	var statuses []models.DeliveryStatus
	if err := tx.Model(&models.MessageDelivery{}).
		Where("message_id = ?", messageID).
		Pluck("status", &statuses).Error; err != nil {
		return nil, fmt.Errorf("load delivery statuses for %s: %w", messageID, err)
	}
	status := models.AggregateStatus(statuses)
	if status != msg.Status {
		if err := tx.Model(&models.Message{}).Where("id = ?", messageID).Update("status", status).Error; err != nil {
			return nil, fmt.Errorf("update message %s status: %w", messageID, err)
		}
		msg.Status = status
	}
	return &msg, nil
}

// DeleteMessage 级联删除投递记录
func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("message_id = ?", id).Delete(&models.MessageDelivery{}).Error; err != nil {
			return fmt.Errorf("delete deliveries for %s: %w", id, err)
		}
		res := tx.Delete(&models.Message{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete message %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
