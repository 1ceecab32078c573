package models

import (
	"encoding/json"
	"time"
)

// QueueItemState 离线发送队列条目状态
type QueueItemState string

const (
	QueueItemPending  QueueItemState = "pending"
	QueueItemInFlight QueueItemState = "in_flight"
	QueueItemDone     QueueItemState = "done"
	QueueItemRequeued QueueItemState = "requeued"
	QueueItemDropped  QueueItemState = "dropped"
)

// QueuedSendRequest 客户端本地持久化的待发送请求
type QueuedSendRequest struct {
	ID         string          `json:"id"`
	Endpoint   string          `json:"endpoint"`
	Payload    json.RawMessage `json:"payload"`
	CreatedAt  time.Time       `json:"createdAt"`
	RetryCount int             `json:"retryCount"`
	State      QueueItemState  `json:"state"`
	LastError  string          `json:"lastError,omitempty"`
}
