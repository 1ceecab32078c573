package socket_server_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"display-push-service/models"
	"display-push-service/service/presence_service"
)

// PresenceTracker 连接事件需要的在线状态操作
type PresenceTracker interface {
	Register(ctx context.Context, conn presence_service.Conn, deviceID, displayName, hostname string) (*models.Device, error)
	Heartbeat(ctx context.Context, connID, deviceID string) (presence_service.HeartbeatResult, error)
	Disconnect(connID string)
	DeviceFor(connID string) (string, bool)
	Snapshot(ctx context.Context) ([]models.Device, error)
}

type Acknowledger interface {
	Acknowledge(ctx context.Context, ack models.AckPayload) (*models.DeliveryUpdate, error)
}

// Dispatcher maps inbound wire events onto the tracker and coordinator.
// It never returns errors to the transport: failures are logged per connection.
type Dispatcher struct {
	tracker PresenceTracker
	acks    Acknowledger
}

func NewDispatcher(tracker PresenceTracker, acks Acknowledger) *Dispatcher {
	return &Dispatcher{tracker: tracker, acks: acks}
}

func (d *Dispatcher) OnRegister(ctx context.Context, conn presence_service.Conn, args ...interface{}) {
	var p models.RegisterPayload
	if err := decodePayload(args, &p); err != nil {
		log.Printf("⚠️ register from conn %s: %v", conn.ID(), err)
		_ = conn.Emit(models.EventRegistered, &models.RegisteredPayload{Success: false, Error: err.Error()})
		return
	}
	device, err := d.tracker.Register(ctx, conn, p.DeviceID, p.DisplayName, p.Hostname)
	if err != nil {
		log.Printf("❌ register device %s on conn %s failed: %v", p.DeviceID, conn.ID(), err)
		_ = conn.Emit(models.EventRegistered, &models.RegisteredPayload{Success: false, Error: err.Error()})
		return
	}
	if err := conn.Emit(models.EventRegistered, &models.RegisteredPayload{Success: true, Device: device}); err != nil {
		log.Printf("⚠️ emit registered to %s failed: %v", conn.ID(), err)
	}
}

func (d *Dispatcher) OnHeartbeat(ctx context.Context, conn presence_service.Conn, args ...interface{}) {
	var p models.HeartbeatPayload
	if err := decodePayload(args, &p); err != nil {
		log.Printf("⚠️ heartbeat from conn %s: %v", conn.ID(), err)
	}
	res, err := d.tracker.Heartbeat(ctx, conn.ID(), p.DeviceID)
	if err != nil {
		log.Printf("❌ heartbeat on conn %s failed: %v", conn.ID(), err)
		return
	}
	if res == presence_service.HeartbeatUnbound {
		if err := conn.Emit(models.EventReregisterRequest, struct{}{}); err != nil {
			log.Printf("⚠️ emit reregister-request to %s failed: %v", conn.ID(), err)
		}
	}
}

func (d *Dispatcher) OnAck(ctx context.Context, conn presence_service.Conn, args ...interface{}) {
	var p models.AckPayload
	if err := decodePayload(args, &p); err != nil {
		log.Printf("⚠️ message-ack from conn %s: %v", conn.ID(), err)
		return
	}
	if p.DeviceID == "" {
		p.DeviceID, _ = d.tracker.DeviceFor(conn.ID())
	}
	if _, err := d.acks.Acknowledge(ctx, p); err != nil {
		log.Printf("❌ ack message=%s device=%s failed: %v", p.MessageID, p.DeviceID, err)
	}
}

// OnObserve 新加入的观察者立刻收到一次完整快照
func (d *Dispatcher) OnObserve(ctx context.Context, conn presence_service.Conn) {
	devices, err := d.tracker.Snapshot(ctx)
	if err != nil {
		log.Printf("❌ snapshot for observer %s failed: %v", conn.ID(), err)
		return
	}
	if err := conn.Emit(models.EventDevicesSnapshot, &models.DevicesSnapshot{Devices: devices}); err != nil {
		log.Printf("⚠️ emit snapshot to observer %s failed: %v", conn.ID(), err)
	}
}

func (d *Dispatcher) OnDisconnect(conn presence_service.Conn) {
	d.tracker.Disconnect(conn.ID())
}

// decodePayload accepts the first event argument as a decoded JSON object, raw bytes or a JSON string.
func decodePayload(args []interface{}, out interface{}) error {
	if len(args) == 0 || args[0] == nil {
		return errors.New("empty payload")
	}
	var raw []byte
	switch v := args[0].(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		raw = b
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
