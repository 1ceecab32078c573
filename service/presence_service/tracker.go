package presence_service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"display-push-service/models"
	"display-push-service/service/metrics_service"
)

var ErrMissingDeviceID = errors.New("deviceId is required")

// Conn 一条已建立的双工连接
type Conn interface {
	ID() string
	Emit(event string, payload interface{}) error
}

// Observers 管理后台观察者广播
type Observers interface {
	Emit(event string, payload interface{})
}

// DeviceStore presence 需要的设备持久化操作
type DeviceStore interface {
	UpsertDevice(ctx context.Context, id, displayName, hostname string, now time.Time) (*models.Device, error)
	TouchDevice(ctx context.Context, id string, now time.Time) error
	SetDeviceStatus(ctx context.Context, id string, status models.DeviceStatus) error
	MarkAllOffline(ctx context.Context) (int64, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
}

// HeartbeatResult 心跳处理结果
type HeartbeatResult int

const (
	// HeartbeatAccepted 已刷新 lastSeen 并重置超时
	HeartbeatAccepted HeartbeatResult = iota
	// HeartbeatOrphaned 连接的绑定已被同一设备的新连接取代，忽略
	HeartbeatOrphaned
	// HeartbeatUnbound 连接没有绑定且设备也不在任何连接上，需要客户端重新注册
	HeartbeatUnbound
	// HeartbeatFailed 写库失败，超时未重置
	HeartbeatFailed
)

func (r HeartbeatResult) String() string {
	switch r {
	case HeartbeatAccepted:
		return "accepted"
	case HeartbeatOrphaned:
		return "orphaned"
	case HeartbeatUnbound:
		return "unbound"
	case HeartbeatFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DefaultExpireRetry 超时置 offline 写库失败后的重试间隔
const DefaultExpireRetry = time.Second

type deviceTimer struct {
	timer *time.Timer
	gen   uint64
}

// Tracker owns the connection↔device binding and the per-device heartbeat timeouts.
// Both tables and every presence write to the store are serialized by mu, so
// cancelling an old timeout and arming a new one is a single step.
type Tracker struct {
	store       DeviceStore
	observers   Observers
	timeout     time.Duration
	expireRetry time.Duration
	now         func() time.Time

	mu           sync.Mutex
	connToDevice map[string]string
	deviceToConn map[string]Conn
	timers       map[string]*deviceTimer
	gen          uint64
	stopped      bool
}

func NewTracker(store DeviceStore, observers Observers, timeout time.Duration) *Tracker {
	return &Tracker{
		store:        store,
		observers:    observers,
		timeout:      timeout,
		expireRetry:  DefaultExpireRetry,
		now:          time.Now,
		connToDevice: make(map[string]string),
		deviceToConn: make(map[string]Conn),
		timers:       make(map[string]*deviceTimer),
	}
}

func (t *Tracker) Timeout() time.Duration { return t.timeout }

// ResetPresence 启动时调用：进程内没有任何绑定，库里残留的 online 全部置为 offline
func (t *Tracker) ResetPresence(ctx context.Context) error {
	t.mu.Lock()
	n, err := t.store.MarkAllOffline(ctx)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	if n > 0 {
		log.Printf("🔄 reset %d stale online devices to offline", n)
	}
	t.BroadcastSnapshot(ctx)
	return nil
}

// Register upserts the device, binds conn to it and re-arms its heartbeat timeout.
// A previous connection of the same device is orphaned; a previous device of the
// same connection is unbound.
func (t *Tracker) Register(ctx context.Context, conn Conn, deviceID, displayName, hostname string) (*models.Device, error) {
	if deviceID == "" {
		return nil, ErrMissingDeviceID
	}

	t.mu.Lock()
	device, err := t.store.UpsertDevice(ctx, deviceID, displayName, hostname, t.now())
	if err != nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("register %s: %w", deviceID, err)
	}
	orphaned := t.bindLocked(conn, deviceID)
	t.armLocked(deviceID)
	t.mu.Unlock()

	if orphaned != "" {
		log.Printf("⚠️ device %s re-registered on conn %s, conn %s orphaned", deviceID, conn.ID(), orphaned)
	}
	log.Printf("✅ device registered: %s (%s) conn=%s", deviceID, displayName, conn.ID())
	t.BroadcastSnapshot(ctx)
	return device, nil
}

// Heartbeat refreshes the device bound to connID. deviceID is only consulted when
// the connection has no binding, to tell an orphaned connection from a lost table.
func (t *Tracker) Heartbeat(ctx context.Context, connID, deviceID string) (HeartbeatResult, error) {
	t.mu.Lock()
	bound, ok := t.connToDevice[connID]
	if !ok {
		_, elsewhere := t.deviceToConn[deviceID]
		t.mu.Unlock()
		if deviceID != "" && !elsewhere {
			log.Printf("⚠️ heartbeat from unbound conn %s for device %s, asking to re-register", connID, deviceID)
			return HeartbeatUnbound, nil
		}
		log.Printf("⚠️ heartbeat from orphaned conn %s ignored (device %s)", connID, deviceID)
		return HeartbeatOrphaned, nil
	}

	if err := t.store.TouchDevice(ctx, bound, t.now()); err != nil {
		t.mu.Unlock()
		return HeartbeatFailed, fmt.Errorf("heartbeat %s: %w", bound, err)
	}
	// 超时已触发过（设备被置为 offline）但连接仍在，心跳恢复后需要重新广播
	_, armed := t.timers[bound]
	t.armLocked(bound)
	t.mu.Unlock()

	if !armed {
		log.Printf("💓 device %s back online via heartbeat", bound)
		t.BroadcastSnapshot(ctx)
	}
	return HeartbeatAccepted, nil
}

// Disconnect drops the binding only; the running timeout decides when the device goes offline.
func (t *Tracker) Disconnect(connID string) {
	t.mu.Lock()
	deviceID, ok := t.connToDevice[connID]
	if ok {
		delete(t.connToDevice, connID)
		if c, bound := t.deviceToConn[deviceID]; bound && c.ID() == connID {
			delete(t.deviceToConn, deviceID)
		}
	}
	t.mu.Unlock()

	if ok {
		log.Printf("🔌 conn %s disconnected, device %s awaiting heartbeat timeout", connID, deviceID)
	}
}

// ConnFor 返回设备当前绑定的连接
func (t *Tracker) ConnFor(deviceID string) (Conn, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.deviceToConn[deviceID]
	return c, ok
}

func (t *Tracker) DeviceFor(connID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	id, ok := t.connToDevice[connID]
	return id, ok
}

func (t *Tracker) BoundCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.deviceToConn)
}

// Stop cancels every pending timeout. Devices keep whatever status they had.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	for id, dt := range t.timers {
		dt.timer.Stop()
		delete(t.timers, id)
	}
}

// Snapshot 当前全部设备
func (t *Tracker) Snapshot(ctx context.Context) ([]models.Device, error) {
	return t.store.ListDevices(ctx)
}

func (t *Tracker) BroadcastSnapshot(ctx context.Context) {
	devices, err := t.store.ListDevices(ctx)
	if err != nil {
		log.Printf("❌ list devices for snapshot failed: %v", err)
		return
	}
	online := 0
	for i := range devices {
		if devices[i].IsOnline() {
			online++
		}
	}
	metrics_service.SetDevicesOnline(online)
	if t.observers == nil {
		return
	}
	t.observers.Emit(models.EventDevicesSnapshot, &models.DevicesSnapshot{Devices: devices})
}

func (t *Tracker) bindLocked(conn Conn, deviceID string) (orphaned string) {
	connID := conn.ID()
	if prevDevice, ok := t.connToDevice[connID]; ok && prevDevice != deviceID {
		if c, bound := t.deviceToConn[prevDevice]; bound && c.ID() == connID {
			delete(t.deviceToConn, prevDevice)
		}
	}
	if prevConn, ok := t.deviceToConn[deviceID]; ok && prevConn.ID() != connID {
		delete(t.connToDevice, prevConn.ID())
		orphaned = prevConn.ID()
	}
	t.connToDevice[connID] = deviceID
	t.deviceToConn[deviceID] = conn
	return orphaned
}

// armLocked cancels any pending timeout for the device and schedules a fresh one.
// The generation guards against a callback that already fired but has not yet
// acquired mu when the timer is replaced.
func (t *Tracker) armLocked(deviceID string) {
	t.scheduleLocked(deviceID, t.timeout)
}

func (t *Tracker) scheduleLocked(deviceID string, after time.Duration) {
	if t.stopped {
		return
	}
	if prev, ok := t.timers[deviceID]; ok {
		prev.timer.Stop()
	}
	t.gen++
	gen := t.gen
	t.timers[deviceID] = &deviceTimer{
		gen:   gen,
		timer: time.AfterFunc(after, func() { t.expire(deviceID, gen) }),
	}
}

func (t *Tracker) expire(deviceID string, gen uint64) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ heartbeat timeout handler panic for %s: %v", deviceID, r)
		}
	}()

	ctx := context.Background()
	t.mu.Lock()
	dt, ok := t.timers[deviceID]
	if t.stopped || !ok || dt.gen != gen {
		t.mu.Unlock()
		return
	}
	// 写库失败时保留计时项，稍后重试
	if err := t.store.SetDeviceStatus(ctx, deviceID, models.DeviceStatusOffline); err != nil {
		t.scheduleLocked(deviceID, t.expireRetry)
		t.mu.Unlock()
		log.Printf("❌ mark device %s offline failed, retry in %s: %v", deviceID, t.expireRetry, err)
		return
	}
	delete(t.timers, deviceID)
	t.mu.Unlock()

	metrics_service.IncHeartbeatTimeout()
	log.Printf("⏰ device %s heartbeat timeout after %s, marked offline", deviceID, t.timeout)
	t.BroadcastSnapshot(ctx)
}
