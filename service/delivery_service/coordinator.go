package delivery_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"display-push-service/models"
	"display-push-service/service/metrics_service"
	"display-push-service/service/presence_service"
	"display-push-service/service/store_service"
	"display-push-service/tool"

	"github.com/google/uuid"
)

// Store 投递协调器依赖的持久化操作
type Store interface {
	CreateMessageWithDeliveries(ctx context.Context, msg *models.Message, now time.Time) ([]models.MessageDelivery, error)
	MarkDelivered(ctx context.Context, messageID, deviceID string, at time.Time) (*models.Message, *models.MessageDelivery, error)
	MarkFailed(ctx context.Context, messageID, deviceID string, at time.Time, reason string) (*models.Message, error)
	RecomputeStatus(ctx context.Context, messageID string) (*models.Message, error)
}

// ConnLookup 按设备查找当前在线连接，由 presence Tracker 实现
type ConnLookup interface {
	ConnFor(deviceID string) (presence_service.Conn, bool)
}

// SendResult fan-out 结果
type SendResult struct {
	Message *models.Message `json:"message"`
	Pushed  []string        `json:"pushed"`
	Offline []string        `json:"offline"`
	Failed  []string        `json:"failed"`
}

type Coordinator struct {
	store     Store
	conns     ConnLookup
	observers presence_service.Observers
	now       func() time.Time
}

func NewCoordinator(store Store, conns ConnLookup, observers presence_service.Observers) *Coordinator {
	return &Coordinator{
		store:     store,
		conns:     conns,
		observers: observers,
		now:       time.Now,
	}
}

// Send persists the message with one `sent` row per target, pushes it to every
// target that currently has a live connection and republishes the recomputed status.
// Targets without a connection keep their `sent` row; nothing is redelivered later.
func (c *Coordinator) Send(ctx context.Context, msg *models.Message) (*SendResult, error) {
	msg.TargetDevices = models.NewDeviceIDSet(msg.TargetDevices)
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}

	now := c.now()
	if _, err := c.store.CreateMessageWithDeliveries(ctx, msg, now); err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	metrics_service.IncMessageCreated(string(msg.Type))

	result := &SendResult{Pushed: []string{}, Offline: []string{}, Failed: []string{}}
	payload := msg.PushPayload(now)
	for _, deviceID := range msg.TargetDevices {
		conn, ok := c.conns.ConnFor(deviceID)
		if !ok {
			result.Offline = append(result.Offline, deviceID)
			metrics_service.IncPush("offline")
			continue
		}
		if err := c.push(conn, payload); err != nil {
			log.Printf("❌ push message %s to device %s failed: %v", msg.ID, deviceID, err)
			if _, ferr := c.store.MarkFailed(ctx, msg.ID, deviceID, c.now(), err.Error()); ferr != nil {
				return nil, fmt.Errorf("mark delivery failed: %w", ferr)
			}
			result.Failed = append(result.Failed, deviceID)
			metrics_service.IncPush("failed")
			continue
		}
		result.Pushed = append(result.Pushed, deviceID)
		metrics_service.IncPush("sent")
	}

	updated, err := c.store.RecomputeStatus(ctx, msg.ID)
	if err != nil {
		return nil, fmt.Errorf("recompute message status: %w", err)
	}
	result.Message = updated
	c.emit(models.EventMessageUpdated, &models.MessageUpdated{Message: updated})

	log.Printf("📨 message %s (%s) fanned out: pushed=%d offline=%d failed=%d status=%s",
		msg.ID, msg.Type, len(result.Pushed), len(result.Offline), len(result.Failed), updated.Status)
	return result, nil
}

// Acknowledge marks the (message, device) row delivered. An ack for a row that does
// not exist is logged and dropped: the returned update is nil and so is the error.
func (c *Coordinator) Acknowledge(ctx context.Context, ack models.AckPayload) (*models.DeliveryUpdate, error) {
	if ack.MessageID == "" || ack.DeviceID == "" {
		log.Printf("⚠️ message-ack missing ids: %+v", ack)
		metrics_service.IncAck("invalid")
		return nil, nil
	}
	at := tool.MillisOr(ack.Timestamp, c.now())

	msg, row, err := c.store.MarkDelivered(ctx, ack.MessageID, ack.DeviceID, at)
	if err != nil {
		if errors.Is(err, store_service.ErrDeliveryNotFound) {
			log.Printf("⚠️ ack for unknown delivery message=%s device=%s dropped", ack.MessageID, ack.DeviceID)
			metrics_service.IncAck("unknown")
			return nil, nil
		}
		metrics_service.IncAck("error")
		return nil, fmt.Errorf("acknowledge %s/%s: %w", ack.MessageID, ack.DeviceID, err)
	}

	update := &models.DeliveryUpdate{
		MessageID:     row.MessageID,
		DeviceID:      row.DeviceID,
		Status:        row.Status,
		Timestamp:     at.UnixMilli(),
		OverallStatus: msg.Status,
	}
	metrics_service.IncAck("delivered")
	c.emit(models.EventDeliveryUpdate, update)
	c.emit(models.EventMessageUpdated, &models.MessageUpdated{Message: msg})

	log.Printf("✅ message %s delivered to %s, overall=%s", ack.MessageID, ack.DeviceID, msg.Status)
	return update, nil
}

func (c *Coordinator) push(conn presence_service.Conn, payload *models.PushPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("emit panic: %v", r)
		}
	}()
	return conn.Emit(models.EventMessagePush, payload)
}

func (c *Coordinator) emit(event string, payload interface{}) {
	if c.observers == nil {
		return
	}
	c.observers.Emit(event, payload)
}
