package models

// 双工通道上的事件名
const (
	EventRegister          = "register"
	EventHeartbeat         = "heartbeat"
	EventMessageAck        = "message-ack"
	EventObserve           = "observe"
	EventRegistered        = "registered"
	EventReregisterRequest = "reregister-request"
	EventMessagePush       = "message-push"
	EventDevicesSnapshot   = "devices-snapshot"
	EventDeliveryUpdate    = "delivery-update"
	EventMessageUpdated    = "message-updated"
)

type RegisterPayload struct {
	DeviceID    string `json:"deviceId"`
	DisplayName string `json:"displayName"`
	Hostname    string `json:"hostname"`
}

type HeartbeatPayload struct {
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
}

type AckPayload struct {
	MessageID string `json:"messageId"`
	DeviceID  string `json:"deviceId"`
	Timestamp int64  `json:"timestamp"`
}

type RegisteredPayload struct {
	Success bool    `json:"success"`
	Device  *Device `json:"device,omitempty"`
	Error   string  `json:"error,omitempty"`
}

type DevicesSnapshot struct {
	Devices []Device `json:"devices"`
}

type MessageUpdated struct {
	Message *Message `json:"message"`
}
