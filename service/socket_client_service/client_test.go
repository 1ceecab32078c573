package socket_client_service

import (
	"errors"
	"testing"
	"time"
)

func TestNewSocketDialerDefaults(t *testing.T) {
	d := NewSocketDialer("", 0, false)
	if d.Path != "/socket.io/" || d.Timeout != 10*time.Second || d.AutoReconnect {
		t.Fatalf("unexpected dialer %+v", d)
	}
}

func TestClosedChannelIsInert(t *testing.T) {
	c := &socketChannel{}
	c.On("message-push", func(args ...interface{}) { t.Fatal("handler must not be registered") })
	if err := c.Emit("heartbeat", nil); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("emit on closed channel: %v", err)
	}
	c.Close()
}

func TestSocketChannelRegistersHandlers(t *testing.T) {
	d := NewSocketDialer("", 200*time.Millisecond, false)
	ch, err := d.Dial("http://127.0.0.1:1")
	if err != nil {
		t.Skipf("dial: %v", err)
	}
	defer ch.Close()

	// 普通事件挂在 socket 上，重连事件挂在底层 Manager 上
	event := "connect_error"
	ch.On(event, func(args ...interface{}) {})
	ch.On(EventReconnectAttempt, func(args ...interface{}) {})
	if err := ch.Emit("heartbeat", map[string]string{"deviceId": "d1"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("emit before connect: %v", err)
	}
}
