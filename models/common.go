package models

import "errors"

// DeviceStatus 设备在线状态
type DeviceStatus string

const (
	DeviceStatusOnline  DeviceStatus = "online"
	DeviceStatusOffline DeviceStatus = "offline"
)

// MessageType 消息类型
type MessageType string

const (
	MessageTypeText      MessageType = "TEXT"
	MessageTypeTextImage MessageType = "TEXT_IMAGE"
	MessageTypeVideo     MessageType = "VIDEO"
	MessageTypeAudio     MessageType = "AUDIO"
)

// MessageStatus 消息聚合状态，由投递记录推导，不可直接设置
type MessageStatus string

const (
	MessageStatusPending   MessageStatus = "pending"
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusPartial   MessageStatus = "partial"
	MessageStatusDelivered MessageStatus = "delivered"
)

// DeliveryStatus 单设备投递状态
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusSent      DeliveryStatus = "sent"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
)

var ErrInvalidMessage = errors.New("invalid message")
