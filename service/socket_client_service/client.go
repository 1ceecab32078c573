package socket_client_service

import (
	"log"
	"sync"
	"time"

	"github.com/zishang520/socket.io/clients/engine/v3/transports"
	socketio "github.com/zishang520/socket.io/clients/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

// Channel 一条到服务端的双工通道
type Channel interface {
	On(event string, handler func(args ...interface{}))
	Emit(event string, payload interface{}) error
	Close()
}

// Dialer 打开新的通道。返回时通道可能仍在连接中，结果通过 connect / connect_error 事件通知
type Dialer interface {
	Dial(serverURL string) (Channel, error)
}

// SocketDialer 基于 Socket.IO 客户端的 Dialer
type SocketDialer struct {
	Path    string
	Timeout time.Duration
	// AutoReconnect 交给 Socket.IO 自带的重连；关闭时由 Manager 负责退避重连
	AutoReconnect bool
}

func NewSocketDialer(path string, timeout time.Duration, autoReconnect bool) *SocketDialer {
	if path == "" {
		path = "/socket.io/"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &SocketDialer{Path: path, Timeout: timeout, AutoReconnect: autoReconnect}
}

func (d *SocketDialer) Dial(serverURL string) (Channel, error) {
	options := socketio.DefaultOptions()
	options.SetTransports(types.NewSet(
		transports.Polling,
		transports.WebSocket,
	))
	options.SetPath(d.Path)
	options.SetTimeout(d.Timeout)
	options.SetReconnection(d.AutoReconnect)

	socket, err := socketio.Connect(serverURL, options)
	if err != nil {
		log.Printf("❌ Failed to connect to Socket.IO server: %v", err)
		return nil, err
	}
	log.Printf("🚀 Socket.IO client connecting to %s", serverURL)
	return &socketChannel{socket: socket}, nil
}

type socketChannel struct {
	mu     sync.Mutex
	socket *socketio.Socket
}

func (c *socketChannel) On(event string, handler func(args ...interface{})) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket == nil {
		return
	}
	wrapped := func(args ...any) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in %s handler: %v", event, r)
			}
		}()
		handler(args...)
	}
	// 重连事件挂在底层 Manager 上
	if event == EventReconnectAttempt {
		c.socket.Io().On(types.EventName(event), wrapped)
		return
	}
	c.socket.On(types.EventName(event), wrapped)
}

func (c *socketChannel) Emit(event string, payload interface{}) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("⚠️ Panic recovered in Emit %s: %v", event, r)
			err = ErrNotConnected
		}
	}()

	c.mu.Lock()
	socket := c.socket
	c.mu.Unlock()
	if socket == nil || !socket.Connected() {
		return ErrNotConnected
	}
	socket.Emit(event, payload)
	return nil
}

func (c *socketChannel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.socket != nil {
		c.socket.Disconnect()
		c.socket = nil
	}
}
