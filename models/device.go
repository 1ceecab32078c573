package models

import "time"

// Device 显示设备。ID 由客户端首次运行时生成，此后不变
type Device struct {
	ID          string       `gorm:"type:varchar(64);primaryKey" json:"id"`
	DisplayName string       `gorm:"type:varchar(255);not null;default:''" json:"displayName"`
	Hostname    string       `gorm:"type:varchar(255);not null;default:''" json:"hostname"`
	Status      DeviceStatus `gorm:"type:varchar(16);not null;default:'offline';index" json:"status"`
	LastSeen    time.Time    `json:"lastSeen"`
	CreatedAt   time.Time    `json:"createdAt"`
}

func (Device) TableName() string { return "devices" }

func (d *Device) IsOnline() bool {
	return d.Status == DeviceStatusOnline
}
