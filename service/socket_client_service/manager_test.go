package socket_client_service

import (
	"errors"
	"sync"
	"testing"
	"time"

	"display-push-service/models"
)

type sentEvent struct {
	event   string
	payload interface{}
}

type fakeChannel struct {
	mu       sync.Mutex
	handlers map[string][]func(args ...interface{})
	sent     []sentEvent
	closed   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{handlers: map[string][]func(args ...interface{}){}}
}

func (c *fakeChannel) On(event string, handler func(args ...interface{})) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[event] = append(c.handlers[event], handler)
}

func (c *fakeChannel) Emit(event string, payload interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrNotConnected
	}
	c.sent = append(c.sent, sentEvent{event, payload})
	return nil
}

func (c *fakeChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeChannel) fire(event string, args ...interface{}) {
	c.mu.Lock()
	hs := append([]func(args ...interface{}){}, c.handlers[event]...)
	c.mu.Unlock()
	for _, h := range hs {
		h(args...)
	}
}

func (c *fakeChannel) sentNamed(event string) []sentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []sentEvent
	for _, s := range c.sent {
		if s.event == event {
			out = append(out, s)
		}
	}
	return out
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeDialer struct {
	mu       sync.Mutex
	channels []*fakeChannel
	failNext int
}

func (d *fakeDialer) Dial(string) (Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext > 0 {
		d.failNext--
		return nil, errors.New("dial refused")
	}
	ch := newFakeChannel()
	d.channels = append(d.channels, ch)
	return ch, nil
}

func (d *fakeDialer) last() *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.channels) == 0 {
		return nil
	}
	return d.channels[len(d.channels)-1]
}

func (d *fakeDialer) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels)
}

// manualTimers 记录调度的重连延迟，由测试手动触发
type manualTimers struct {
	mu     sync.Mutex
	delays []time.Duration
	fns    []func()
}

func (m *manualTimers) after(d time.Duration, f func()) *time.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = append(m.delays, d)
	m.fns = append(m.fns, f)
	return time.NewTimer(time.Hour)
}

func (m *manualTimers) fireLast() {
	m.mu.Lock()
	f := m.fns[len(m.fns)-1]
	m.mu.Unlock()
	f()
}

func newTestManager(manual bool, identity *Identity) (*Manager, *fakeDialer, *manualTimers) {
	dialer := &fakeDialer{}
	timers := &manualTimers{}
	m := NewManager(&Config{
		ServerURL:         "http://server:8080",
		HeartbeatInterval: 20 * time.Millisecond,
		ManualReconnect:   manual,
		BackoffInitial:    time.Second,
		BackoffMax:        30 * time.Second,
	}, dialer, identity)
	m.afterFunc = timers.after
	return m, dialer, timers
}

var testIdentity = &Identity{DeviceID: "dev-1", DisplayName: "Lobby", Hostname: "kiosk"}

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff(time.Second, 30*time.Second)
	want := []time.Duration{1, 2, 4, 8, 16, 30, 30}
	for i, w := range want {
		if got := b.Next(); got != w*time.Second {
			t.Fatalf("attempt %d delay = %s, want %s", i, got, w*time.Second)
		}
	}
	b.Reset()
	if got := b.Next(); got != time.Second {
		t.Fatalf("after reset delay = %s, want 1s", got)
	}
}

func TestConnectRegistersAndHeartbeats(t *testing.T) {
	m, dialer, _ := newTestManager(true, testIdentity)
	defer m.Disconnect()

	if err := m.Connect(); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if m.State() != StateConnecting {
		t.Fatalf("state = %s, want connecting", m.State())
	}
	if err := m.Connect(); err != nil || dialer.count() != 1 {
		t.Fatalf("second connect should be a no-op, channels=%d", dialer.count())
	}

	ch := dialer.last()
	ch.fire(EventConnect)
	if !m.IsConnected() {
		t.Fatalf("state = %s, want connected", m.State())
	}
	regs := ch.sentNamed(models.EventRegister)
	if len(regs) != 1 {
		t.Fatalf("expected one register, got %d", len(regs))
	}
	reg := regs[0].payload.(*models.RegisterPayload)
	if reg.DeviceID != "dev-1" || reg.Hostname != "kiosk" {
		t.Fatalf("unexpected register payload %+v", reg)
	}

	deadline := time.Now().Add(time.Second)
	for len(ch.sentNamed(models.EventHeartbeat)) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	hbs := ch.sentNamed(models.EventHeartbeat)
	if len(hbs) < 2 {
		t.Fatalf("expected periodic heartbeats, got %d", len(hbs))
	}
	if hb := hbs[0].payload.(*models.HeartbeatPayload); hb.DeviceID != "dev-1" || hb.Timestamp == 0 {
		t.Fatalf("unexpected heartbeat %+v", hb)
	}
}

func TestManualReconnectBackoffAndReset(t *testing.T) {
	m, dialer, timers := newTestManager(true, testIdentity)
	defer m.Disconnect()

	_ = m.Connect()
	dialer.last().fire(EventConnectError, "refused")
	if m.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", m.State())
	}
	for i := 0; i < 3; i++ {
		timers.fireLast()
		dialer.last().fire(EventConnectError, "refused")
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}
	if len(timers.delays) != len(want) {
		t.Fatalf("delays = %v", timers.delays)
	}
	for i := range want {
		if timers.delays[i] != want[i] {
			t.Fatalf("delays = %v, want %v", timers.delays, want)
		}
	}

	timers.fireLast()
	ch := dialer.last()
	ch.fire(EventConnect)
	if !m.IsConnected() {
		t.Fatal("expected connected after reconnect")
	}
	ch.fire(EventDisconnect, "transport close")
	if last := timers.delays[len(timers.delays)-1]; last != time.Second {
		t.Fatalf("delay after successful connect = %s, want reset to 1s", last)
	}
	deadline := time.Now().Add(time.Second)
	for !ch.isClosed() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if !ch.isClosed() {
		t.Fatal("dead channel not closed in manual mode")
	}
}

func TestDialFailureSchedulesReconnect(t *testing.T) {
	m, dialer, timers := newTestManager(true, testIdentity)
	defer m.Disconnect()
	dialer.failNext = 1

	if err := m.Connect(); err == nil {
		t.Fatal("expected dial error")
	}
	if len(timers.delays) != 1 {
		t.Fatalf("expected reconnect scheduled, got %v", timers.delays)
	}
	timers.fireLast()
	if dialer.count() != 1 {
		t.Fatalf("reconnect did not dial, channels=%d", dialer.count())
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	m, dialer, timers := newTestManager(true, testIdentity)

	_ = m.Connect()
	ch := dialer.last()
	ch.fire(EventConnect)
	ch.fire(EventDisconnect, "ping timeout")
	if len(timers.delays) != 1 {
		t.Fatalf("expected one scheduled reconnect, got %d", len(timers.delays))
	}

	m.Disconnect()
	m.Disconnect()
	timers.fireLast()
	if dialer.count() != 1 {
		t.Fatalf("reconnect ran after Disconnect, channels=%d", dialer.count())
	}
	if m.State() != StateDisconnected {
		t.Fatalf("state = %s", m.State())
	}
	before := len(ch.sentNamed(models.EventHeartbeat))
	time.Sleep(60 * time.Millisecond)
	if after := len(ch.sentNamed(models.EventHeartbeat)); after != before {
		t.Fatalf("heartbeat still running after Disconnect: %d -> %d", before, after)
	}
}

func TestAutoReconnectStates(t *testing.T) {
	m, dialer, timers := newTestManager(false, testIdentity)
	defer m.Disconnect()

	_ = m.Connect()
	ch := dialer.last()
	ch.fire(EventConnect)
	ch.fire(EventDisconnect, "transport error")
	if m.State() != StateDisconnected {
		t.Fatalf("state = %s, want disconnected", m.State())
	}
	if len(timers.delays) != 0 {
		t.Fatal("auto mode must not schedule its own reconnect")
	}
	ch.fire(EventReconnectAttempt, 1)
	if m.State() != StateReconnecting {
		t.Fatalf("state = %s, want reconnecting", m.State())
	}
	ch.fire(EventConnect)
	if !m.IsConnected() {
		t.Fatal("expected connected after transport reconnect")
	}
	if n := len(ch.sentNamed(models.EventRegister)); n != 2 {
		t.Fatalf("expected register on every open, got %d", n)
	}
}

func TestReregisterRequest(t *testing.T) {
	m, dialer, _ := newTestManager(true, testIdentity)
	defer m.Disconnect()

	_ = m.Connect()
	ch := dialer.last()
	ch.fire(EventConnect)
	ch.fire(models.EventReregisterRequest)
	if n := len(ch.sentNamed(models.EventRegister)); n != 2 {
		t.Fatalf("expected register to be re-sent, got %d", n)
	}
	if ch.isClosed() {
		t.Fatal("re-register must not tear down the channel")
	}
}

func TestMessagePushIsAcknowledged(t *testing.T) {
	m, dialer, _ := newTestManager(true, testIdentity)
	defer m.Disconnect()

	var shown []*models.PushPayload
	m.SetPushHandler(func(p *models.PushPayload) { shown = append(shown, p) })
	_ = m.Connect()
	ch := dialer.last()
	ch.fire(EventConnect)

	ch.fire(models.EventMessagePush, map[string]interface{}{
		"id": "m1", "type": "TEXT", "content": "hello", "timestamp": 1700000000000,
	})
	if len(shown) != 1 || shown[0].Content != "hello" {
		t.Fatalf("push handler got %+v", shown)
	}
	acks := ch.sentNamed(models.EventMessageAck)
	if len(acks) != 1 {
		t.Fatalf("expected one ack, got %d", len(acks))
	}
	ack := acks[0].payload.(*models.AckPayload)
	if ack.MessageID != "m1" || ack.DeviceID != "dev-1" {
		t.Fatalf("unexpected ack %+v", ack)
	}

	ch.fire(models.EventMessagePush, "not json")
	if len(ch.sentNamed(models.EventMessageAck)) != 1 {
		t.Fatal("undecodable push must not be acknowledged")
	}
}

func TestObserverModeAndConnectHook(t *testing.T) {
	m, dialer, _ := newTestManager(true, nil)
	defer m.Disconnect()

	connected := make(chan struct{}, 1)
	m.SetConnectHandler(func() { connected <- struct{}{} })
	var snapshots int
	m.SetEventHandler(models.EventDevicesSnapshot, func(args ...interface{}) { snapshots++ })

	_ = m.Connect()
	ch := dialer.last()
	ch.fire(EventConnect)
	select {
	case <-connected:
	case <-time.After(time.Second):
		t.Fatal("connect hook not called")
	}
	if len(ch.sentNamed(models.EventObserve)) != 1 || len(ch.sentNamed(models.EventRegister)) != 0 {
		t.Fatal("observer should send observe instead of register")
	}
	ch.fire(models.EventDevicesSnapshot, map[string]interface{}{"devices": []interface{}{}})
	if snapshots != 1 {
		t.Fatalf("custom handler calls = %d", snapshots)
	}
	time.Sleep(50 * time.Millisecond)
	if len(ch.sentNamed(models.EventHeartbeat)) != 0 {
		t.Fatal("observer must not heartbeat")
	}
}

func TestEmitRequiresConnection(t *testing.T) {
	m, dialer, _ := newTestManager(true, testIdentity)
	defer m.Disconnect()
	if err := m.Emit("x", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("emit before connect = %v", err)
	}
	_ = m.Connect()
	dialer.last().fire(EventConnect)
	if err := m.Emit("x", 1); err != nil {
		t.Fatalf("emit when connected: %v", err)
	}
}

func TestStaleChannelEventsIgnored(t *testing.T) {
	m, dialer, timers := newTestManager(true, testIdentity)
	defer m.Disconnect()

	_ = m.Connect()
	first := dialer.last()
	first.fire(EventConnectError, "refused")
	timers.fireLast()
	second := dialer.last()
	second.fire(EventConnect)

	// 旧通道迟到的事件不能影响新连接
	first.fire(EventDisconnect, "late")
	if !m.IsConnected() {
		t.Fatalf("stale disconnect changed state to %s", m.State())
	}
}
