package socket_client_service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"display-push-service/models"
)

var ErrNotConnected = errors.New("client not connected")

// 通道生命周期事件
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectError     = "connect_error"
	EventReconnectAttempt = "reconnect_attempt"
)

// State 连接状态
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Config 连接管理器配置
type Config struct {
	ServerURL         string        `yaml:"server_url" json:"server_url"`
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval" json:"heartbeat_interval"`
	// ManualReconnect 为 true 时由 Manager 按指数退避重连
	ManualReconnect bool          `yaml:"manual_reconnect" json:"manual_reconnect"`
	BackoffInitial  time.Duration `yaml:"backoff_initial" json:"backoff_initial"`
	BackoffMax      time.Duration `yaml:"backoff_max" json:"backoff_max"`
}

// Identity 设备注册信息。为 nil 时以观察者身份连接
type Identity struct {
	DeviceID    string
	DisplayName string
	Hostname    string
}

// Manager keeps one duplex channel to the server alive. On open it registers the
// device (or subscribes as an observer) and heartbeats; on close it either waits for
// the transport's own reconnection or schedules a backoff reconnect itself.
type Manager struct {
	config   *Config
	dialer   Dialer
	identity *Identity

	mu             sync.Mutex
	state          State
	channel        Channel
	epoch          uint64
	closed         bool
	backoff        *Backoff
	reconnectTimer *time.Timer
	heartbeatStop  chan struct{}
	handlers       map[string]func(args ...interface{})

	onConnected   func()
	onStateChange func(State)
	onPush        func(*models.PushPayload)

	afterFunc func(d time.Duration, f func()) *time.Timer
	now       func() time.Time
}

// NewManager 创建管理器；identity 为 nil 表示观察者模式
func NewManager(config *Config, dialer Dialer, identity *Identity) *Manager {
	if config.HeartbeatInterval <= 0 {
		config.HeartbeatInterval = 30 * time.Second
	}
	if config.BackoffInitial <= 0 {
		config.BackoffInitial = time.Second
	}
	if config.BackoffMax <= 0 {
		config.BackoffMax = 30 * time.Second
	}
	return &Manager{
		config:    config,
		dialer:    dialer,
		identity:  identity,
		backoff:   NewBackoff(config.BackoffInitial, config.BackoffMax),
		handlers:  make(map[string]func(args ...interface{})),
		afterFunc: time.AfterFunc,
		now:       time.Now,
	}
}

// SetConnectHandler 每次进入 connected 后调用（异步）
func (m *Manager) SetConnectHandler(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onConnected = handler
}

func (m *Manager) SetStateHandler(handler func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = handler
}

// SetPushHandler 收到 message-push 后调用，返回后自动发送 message-ack
func (m *Manager) SetPushHandler(handler func(*models.PushPayload)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onPush = handler
}

// SetEventHandler 订阅任意服务端事件，对之后建立的通道生效
func (m *Manager) SetEventHandler(event string, handler func(args ...interface{})) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = handler
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) IsConnected() bool {
	return m.State() == StateConnected
}

func (m *Manager) ServerURL() string {
	return m.config.ServerURL
}

// Connect opens a channel unless one is already open or opening.
func (m *Manager) Connect() error {
	m.mu.Lock()
	m.closed = false
	if m.channel != nil && m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.stopReconnectTimerLocked()
	stale := m.channel
	m.channel = nil
	m.epoch++
	epoch := m.epoch
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	if stale != nil {
		stale.Close()
	}

	ch, err := m.dialer.Dial(m.config.ServerURL)
	if err != nil {
		m.mu.Lock()
		if epoch == m.epoch {
			m.handleClosedLocked(err.Error())
		}
		m.mu.Unlock()
		return fmt.Errorf("dial %s: %w", m.config.ServerURL, err)
	}

	m.mu.Lock()
	if epoch != m.epoch || m.closed {
		m.mu.Unlock()
		ch.Close()
		return nil
	}
	m.channel = ch
	handlers := make(map[string]func(args ...interface{}), len(m.handlers))
	for ev, h := range m.handlers {
		handlers[ev] = h
	}
	m.mu.Unlock()

	m.bind(ch, epoch, handlers)
	return nil
}

// Disconnect closes the channel and cancels any pending reconnect and heartbeat.
// It is the only way to stop automatic reconnection.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.closed = true
	m.stopReconnectTimerLocked()
	m.stopHeartbeatLocked()
	ch := m.channel
	m.channel = nil
	m.epoch++
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if ch != nil {
		ch.Close()
	}
	log.Println("📴 Socket.IO client stopped")
}

// Emit 在已连接的通道上发送事件
func (m *Manager) Emit(event string, payload interface{}) error {
	m.mu.Lock()
	ch := m.channel
	connected := m.state == StateConnected
	m.mu.Unlock()
	if ch == nil || !connected {
		return ErrNotConnected
	}
	return ch.Emit(event, payload)
}

func (m *Manager) bind(ch Channel, epoch uint64, handlers map[string]func(args ...interface{})) {
	ch.On(EventConnect, func(args ...interface{}) {
		m.handleOpen(epoch)
	})
	ch.On(EventDisconnect, func(args ...interface{}) {
		m.handleClose(epoch, fmt.Sprint(args...))
	})
	ch.On(EventConnectError, func(args ...interface{}) {
		m.handleClose(epoch, fmt.Sprint(args...))
	})
	ch.On(EventReconnectAttempt, func(args ...interface{}) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if epoch == m.epoch && !m.closed {
			m.setStateLocked(StateReconnecting)
		}
	})
	ch.On(models.EventReregisterRequest, func(args ...interface{}) {
		log.Printf("🔄 服务端请求重新注册")
		m.announce(epoch)
	})
	ch.On(models.EventMessagePush, func(args ...interface{}) {
		m.handlePush(epoch, args)
	})
	for event, handler := range handlers {
		ch.On(event, handler)
	}
}

func (m *Manager) handleOpen(epoch uint64) {
	m.mu.Lock()
	if epoch != m.epoch || m.closed {
		m.mu.Unlock()
		return
	}
	m.backoff.Reset()
	m.setStateLocked(StateConnected)
	m.stopHeartbeatLocked()
	if m.identity != nil {
		m.startHeartbeatLocked(epoch)
	}
	onConnected := m.onConnected
	m.mu.Unlock()

	log.Printf("✅ Socket.IO connected to %s", m.config.ServerURL)
	m.announce(epoch)
	if onConnected != nil {
		go onConnected()
	}
}

func (m *Manager) handleClose(epoch uint64, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if epoch != m.epoch || m.closed {
		return
	}
	log.Printf("❌ Socket.IO disconnected: %s", reason)
	m.handleClosedLocked(reason)
}

// handleClosedLocked moves to disconnected; in manual mode the dead channel is
// dropped and a reconnect is scheduled with the next backoff delay.
func (m *Manager) handleClosedLocked(reason string) {
	m.stopHeartbeatLocked()
	m.setStateLocked(StateDisconnected)
	if !m.config.ManualReconnect {
		return
	}

	if m.channel != nil {
		ch := m.channel
		m.channel = nil
		go ch.Close()
	}
	m.epoch++
	m.stopReconnectTimerLocked()
	delay := m.backoff.Next()
	log.Printf("⏳ %s 后重连 (%s)", delay, reason)
	m.reconnectTimer = m.afterFunc(delay, func() {
		m.mu.Lock()
		closed := m.closed
		m.mu.Unlock()
		if closed {
			return
		}
		if err := m.Connect(); err != nil {
			log.Printf("🔥 reconnect failed: %v", err)
		}
	})
}

// announce 发送 register，观察者模式下发送 observe
func (m *Manager) announce(epoch uint64) {
	m.mu.Lock()
	ch := m.channel
	current := epoch == m.epoch && m.state == StateConnected
	m.mu.Unlock()
	if ch == nil || !current {
		return
	}

	if m.identity == nil {
		if err := ch.Emit(models.EventObserve, struct{}{}); err != nil {
			log.Printf("⚠️ observe failed: %v", err)
		}
		return
	}
	payload := &models.RegisterPayload{
		DeviceID:    m.identity.DeviceID,
		DisplayName: m.identity.DisplayName,
		Hostname:    m.identity.Hostname,
	}
	if err := ch.Emit(models.EventRegister, payload); err != nil {
		log.Printf("⚠️ register failed: %v", err)
		return
	}
	log.Printf("📤 register sent: device=%s", m.identity.DeviceID)
}

func (m *Manager) startHeartbeatLocked(epoch uint64) {
	stop := make(chan struct{})
	m.heartbeatStop = stop
	interval := m.config.HeartbeatInterval
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in heartbeat loop: %v", r)
			}
		}()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				m.sendHeartbeat(epoch)
			}
		}
	}()
}

func (m *Manager) stopHeartbeatLocked() {
	if m.heartbeatStop != nil {
		close(m.heartbeatStop)
		m.heartbeatStop = nil
	}
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) sendHeartbeat(epoch uint64) {
	m.mu.Lock()
	ch := m.channel
	live := epoch == m.epoch && m.state == StateConnected
	m.mu.Unlock()
	if ch == nil || !live {
		return
	}
	payload := &models.HeartbeatPayload{DeviceID: m.identity.DeviceID, Timestamp: m.now().UnixMilli()}
	if err := ch.Emit(models.EventHeartbeat, payload); err != nil {
		log.Printf("⚠️ heartbeat failed: %v", err)
	}
}

func (m *Manager) handlePush(epoch uint64, args []interface{}) {
	if len(args) == 0 {
		return
	}
	var payload models.PushPayload
	if err := decodeArg(args[0], &payload); err != nil || payload.ID == "" {
		log.Printf("⚠️ 无法解析 message-push: %v", err)
		return
	}
	log.Printf("📨 收到消息 %s (%s)", payload.ID, payload.Type)

	m.mu.Lock()
	onPush := m.onPush
	ch := m.channel
	current := epoch == m.epoch
	m.mu.Unlock()

	if onPush != nil {
		onPush(&payload)
	}
	if ch == nil || !current || m.identity == nil {
		return
	}
	ack := &models.AckPayload{
		MessageID: payload.ID,
		DeviceID:  m.identity.DeviceID,
		Timestamp: m.now().UnixMilli(),
	}
	if err := ch.Emit(models.EventMessageAck, ack); err != nil {
		log.Printf("⚠️ message-ack %s failed: %v", payload.ID, err)
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.onStateChange != nil {
		go m.onStateChange(s)
	}
}

func decodeArg(arg interface{}, out interface{}) error {
	var raw []byte
	switch v := arg.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}
	return json.Unmarshal(raw, out)
}
