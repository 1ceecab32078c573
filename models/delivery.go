package models

import "time"

// MessageDelivery 每个 (messageId, deviceId) 一条投递记录
type MessageDelivery struct {
	MessageID     string         `gorm:"type:varchar(64);primaryKey" json:"messageId"`
	DeviceID      string         `gorm:"type:varchar(64);primaryKey;index" json:"deviceId"`
	Status        DeliveryStatus `gorm:"type:varchar(16);not null" json:"status"`
	DeliveredAt   *time.Time     `json:"deliveredAt,omitempty"`
	FailedAt      *time.Time     `json:"failedAt,omitempty"`
	FailureReason string         `gorm:"type:varchar(512)" json:"failureReason,omitempty"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
}

func (MessageDelivery) TableName() string { return "message_deliveries" }

// AggregateStatus derives the message-level status from its delivery rows.
//
//	no rows                       -> pending
//	every row delivered           -> delivered
//	some delivered, not all       -> partial
//	anything else                 -> sent
func AggregateStatus(statuses []DeliveryStatus) MessageStatus {
	if len(statuses) == 0 {
		return MessageStatusPending
	}
	delivered := 0
	for _, s := range statuses {
		if s == DeliveryStatusDelivered {
			delivered++
		}
	}
	switch {
	case delivered == len(statuses):
		return MessageStatusDelivered
	case delivered > 0:
		return MessageStatusPartial
	default:
		return MessageStatusSent
	}
}

// DeliveryUpdate 推送给观察者的增量投递状态
type DeliveryUpdate struct {
	MessageID     string         `json:"messageId"`
	DeviceID      string         `json:"deviceId"`
	Status        DeliveryStatus `json:"status"`
	Timestamp     int64          `json:"timestamp"`
	OverallStatus MessageStatus  `json:"overallStatus"`
}
