package controller

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"display-push-service/conf"
	"display-push-service/models"
	"display-push-service/service/delivery_service"
	"display-push-service/service/metrics_service"

	_ "display-push-service/docs" // 导入生成的 swagger 文档

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// DeviceStore 管理接口用到的设备存储操作
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*models.Device, error)
	ListDevices(ctx context.Context) ([]models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) error
	UpdateDeviceInfo(ctx context.Context, id string, displayName, hostname *string) (*models.Device, error)
	DeleteDevice(ctx context.Context, id string) error
}

// MessageStore 管理接口用到的消息存储操作
type MessageStore interface {
	GetMessage(ctx context.Context, id string) (*models.Message, error)
	ListMessages(ctx context.Context, limit, offset int) ([]models.Message, error)
	ListDeliveries(ctx context.Context, messageID string) ([]models.MessageDelivery, error)
	DeleteMessage(ctx context.Context, id string) error
}

// Sender 创建消息并 fan-out
type Sender interface {
	Send(ctx context.Context, msg *models.Message) (*delivery_service.SendResult, error)
}

// SnapshotBroadcaster 设备列表变更后通知观察者
type SnapshotBroadcaster interface {
	BroadcastSnapshot(ctx context.Context)
}

// Handler 管理端 HTTP 接口
type Handler struct {
	devices  DeviceStore
	messages MessageStore
	sender   Sender
	presence SnapshotBroadcaster
}

func NewHandler(devices DeviceStore, messages MessageStore, sender Sender, presence SnapshotBroadcaster) *Handler {
	return &Handler{devices: devices, messages: messages, sender: sender, presence: presence}
}

// NewRouter 组装路由；socketHandler 为 nil 时不挂载 Socket.IO
func NewRouter(h *Handler, socketHandler http.Handler) *gin.Engine {
	router := gin.Default()
	router.Use(Cors())
	router.Use(Metrics())

	// Swagger 文档路由
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if socketHandler != nil {
		socketPath := conf.SocketServerPath
		if socketPath == "" {
			socketPath = "/socket.io/"
		}
		Handle(router, []string{http.MethodGet, http.MethodPost}, socketPath+"*any", gin.WrapH(socketHandler))
	}

	devices := router.Group("/devices")
	{
		devices.GET("", h.ListDevices)
		devices.POST("", h.CreateDevice)
		devices.GET("/:id", h.GetDevice)
		devices.PATCH("/:id", h.UpdateDevice)
		devices.DELETE("/:id", h.DeleteDevice)
	}

	messages := router.Group("/messages")
	{
		messages.GET("", h.ListMessages)
		messages.POST("", h.CreateMessage)
		messages.GET("/:id", h.GetMessage)
		messages.DELETE("/:id", h.DeleteMessage)
		messages.GET("/:id/deliveries", h.ListDeliveries)
	}
	return router
}

// Run 阻塞监听，直到 server 出错
func Run(router *gin.Engine) error {
	return router.Run(fmt.Sprintf("0.0.0.0:%s", conf.Port))
}

func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, PATCH, DELETE")
		c.Header("Access-Control-Allow-Headers", "Content-Type,AccessToken,X-CSRF-Token, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Set("content-type", "application/json")
		if method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
		}
		c.Next()
	}
}

// Metrics 按路由模板记录请求数与耗时
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics_service.ObserveHTTP(c.Request.Method, path, c.Writer.Status(), time.Since(start).Seconds())
	}
}

func Handle(r *gin.Engine, httpMethods []string, relativePath string, handlers ...gin.HandlerFunc) gin.IRoutes {
	var routes gin.IRoutes
	for _, httpMethod := range httpMethods {
		routes = r.Handle(httpMethod, relativePath, handlers...)
	}
	return routes
}
