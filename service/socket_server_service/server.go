package socket_server_service

import (
	"context"
	"log"
	"net/http"
	"time"

	"display-push-service/models"

	"github.com/zishang520/socket.io/servers/socket/v3"
	"github.com/zishang520/socket.io/v3/pkg/types"
)

const ObserversRoom socket.Room = "observers"

// Config Socket.IO 服务端配置
type Config struct {
	Path         string        `yaml:"path" json:"path"`
	PingInterval time.Duration `yaml:"ping_interval" json:"ping_interval"`
	PingTimeout  time.Duration `yaml:"ping_timeout" json:"ping_timeout"`
}

// Server 设备与管理后台共用的 Socket.IO 服务端
type Server struct {
	io         *socket.Server
	options    *socket.ServerOptions
	dispatcher *Dispatcher
}

func NewServer(config *Config) *Server {
	if config.Path == "" {
		config.Path = "/socket.io/"
	}
	options := socket.DefaultServerOptions()
	options.SetPath(config.Path)
	options.SetServeClient(false)
	if config.PingInterval > 0 {
		options.SetPingInterval(config.PingInterval)
	}
	if config.PingTimeout > 0 {
		options.SetPingTimeout(config.PingTimeout)
	}
	options.SetCors(&types.Cors{
		Origin:      "*",
		Credentials: true,
	})

	return &Server{
		io:      socket.NewServer(nil, options),
		options: options,
	}
}

// Observers 广播到 observers 房间
func (s *Server) Observers() *RoomBroadcaster {
	return &RoomBroadcaster{io: s.io, room: ObserversRoom}
}

// Attach 绑定事件分发器并开始处理连接，必须在 Handler 对外服务前调用
func (s *Server) Attach(dispatcher *Dispatcher) {
	s.dispatcher = dispatcher
	s.io.On("connection", func(clients ...any) {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("⚠️ Panic recovered in connection handler: %v", r)
			}
		}()
		client, ok := clients[0].(*socket.Socket)
		if !ok {
			return
		}
		s.setupEventHandlers(client)
	})
}

func (s *Server) Handler() http.Handler {
	return s.io.ServeHandler(s.options)
}

func (s *Server) Close() {
	s.io.Close(nil)
}

func (s *Server) setupEventHandlers(client *socket.Socket) {
	conn := &socketConn{socket: client}
	ctx := context.Background()
	log.Printf("🔗 Socket.IO conn %s connected", conn.ID())

	client.On(models.EventRegister, func(args ...any) {
		defer recoverHandler(models.EventRegister, conn)
		s.dispatcher.OnRegister(ctx, conn, args...)
	})

	client.On(models.EventHeartbeat, func(args ...any) {
		defer recoverHandler(models.EventHeartbeat, conn)
		s.dispatcher.OnHeartbeat(ctx, conn, args...)
	})

	client.On(models.EventMessageAck, func(args ...any) {
		defer recoverHandler(models.EventMessageAck, conn)
		s.dispatcher.OnAck(ctx, conn, args...)
	})

	client.On(models.EventObserve, func(args ...any) {
		defer recoverHandler(models.EventObserve, conn)
		client.Join(ObserversRoom)
		log.Printf("👀 conn %s joined observers", conn.ID())
		s.dispatcher.OnObserve(ctx, conn)
	})

	client.On("disconnect", func(args ...any) {
		defer recoverHandler("disconnect", conn)
		s.dispatcher.OnDisconnect(conn)
	})
}

func recoverHandler(event string, conn *socketConn) {
	if r := recover(); r != nil {
		log.Printf("⚠️ Panic recovered in %s handler for conn %s: %v", event, conn.ID(), r)
	}
}

type socketConn struct {
	socket *socket.Socket
}

func (c *socketConn) ID() string {
	return string(c.socket.Id())
}

func (c *socketConn) Emit(event string, payload interface{}) error {
	return c.socket.Emit(event, payload)
}

// RoomBroadcaster implements presence_service.Observers over a Socket.IO room.
type RoomBroadcaster struct {
	io   *socket.Server
	room socket.Room
}

func (b *RoomBroadcaster) Emit(event string, payload interface{}) {
	if err := b.io.To(b.room).Emit(event, payload); err != nil {
		log.Printf("⚠️ broadcast %s to %s failed: %v", event, b.room, err)
	}
}
