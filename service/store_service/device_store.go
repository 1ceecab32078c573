package store_service

import (
	"context"
	"fmt"
	"time"

	"display-push-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UpsertDevice inserts an unseen device or refreshes name/hostname of a known one,
// marking it online with lastSeen=now in both cases.
func (s *Store) UpsertDevice(ctx context.Context, id, displayName, hostname string, now time.Time) (*models.Device, error) {
	device := models.Device{
		ID:          id,
		DisplayName: displayName,
		Hostname:    hostname,
		Status:      models.DeviceStatusOnline,
		LastSeen:    now,
		CreatedAt:   now,
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"display_name": displayName,
				"hostname":     hostname,
				"status":       models.DeviceStatusOnline,
				"last_seen":    now,
			}),
		}).
		Create(&device).Error
	if err != nil {
		return nil, fmt.Errorf("upsert device %s: %w", id, err)
	}
	return s.GetDevice(ctx, id)
}

// TouchDevice 刷新心跳时间并保持在线
func (s *Store) TouchDevice(ctx context.Context, id string, now time.Time) error {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Updates(map[string]any{"status": models.DeviceStatusOnline, "last_seen": now})
	if res.Error != nil {
		return fmt.Errorf("touch device %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("set device %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkAllOffline 服务启动时没有任何连接绑定，所有设备置为离线
func (s *Store) MarkAllOffline(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Model(&models.Device{}).
		Where("status = ?", models.DeviceStatusOnline).
		Update("status", models.DeviceStatusOffline)
	if res.Error != nil {
		return 0, fmt.Errorf("mark devices offline: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (s *Store) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	if err := s.db.WithContext(ctx).First(&device, "id = ?", id).Error; err != nil {
		return nil, notFound(err)
	}
	return &device, nil
}

func (s *Store) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	if err := s.db.WithContext(ctx).Order("created_at ASC, id ASC").Find(&devices).Error; err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return devices, nil
}

// CreateDevice 管理端预登记设备，初始离线
func (s *Store) CreateDevice(ctx context.Context, device *models.Device) error {
	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}
	if err := s.db.WithContext(ctx).Create(device).Error; err != nil {
		return fmt.Errorf("create device %s: %w", device.ID, err)
	}
	return nil
}

// UpdateDeviceInfo only edits descriptive fields; presence fields stay tracker-owned.
func (s *Store) UpdateDeviceInfo(ctx context.Context, id string, displayName, hostname *string) (*models.Device, error) {
	updates := map[string]any{}
	if displayName != nil {
		updates["display_name"] = *displayName
	}
	if hostname != nil {
		updates["hostname"] = *hostname
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Device{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return nil, fmt.Errorf("update device %s: %w", id, res.Error)
		}
	}
	return s.GetDevice(ctx, id)
}

func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&models.Device{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("delete device %s: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}
