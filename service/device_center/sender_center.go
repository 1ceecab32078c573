package devicecenter

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"display-push-service/controller/request"
	"display-push-service/models"
	"display-push-service/service/api_client_service"
	"display-push-service/service/pebble_service"
	"display-push-service/service/send_queue_service"
	"display-push-service/service/socket_client_service"
)

// SenderConfig 发送端配置
type SenderConfig struct {
	SocketConfig *socket_client_service.Config `yaml:"socket" json:"socket"`
	PebbleConfig *pebble_service.Config        `yaml:"pebble" json:"pebble"`
	APIURL       string                        `yaml:"api_url" json:"api_url"`
	Timeout      time.Duration                 `yaml:"timeout" json:"timeout"`
	MaxRetries   int                           `yaml:"max_retries" json:"max_retries"`
}

// SenderCenter runs the sender role. Message creations are queued locally and
// flushed to the HTTP API whenever the observer channel (re)connects.
type SenderCenter struct {
	config  *SenderConfig
	dialer  socket_client_service.Dialer
	local   *pebble_service.LocalStore
	client  *api_client_service.Client
	queue   *send_queue_service.Queue
	manager *socket_client_service.Manager

	onSuccess send_queue_service.SuccessFunc
	onFailure send_queue_service.FailureFunc
	flushed   chan send_queue_service.PassResult
	mu        sync.Mutex
}

func NewSenderCenter(config *SenderConfig, dialer socket_client_service.Dialer) *SenderCenter {
	if config.SocketConfig == nil {
		config.SocketConfig = &socket_client_service.Config{}
	}
	if config.Timeout <= 0 {
		config.Timeout = api_client_service.DefaultTimeout
	}
	return &SenderCenter{
		config:  config,
		dialer:  dialer,
		flushed: make(chan send_queue_service.PassResult, 16),
	}
}

// SetResultHandlers 设置每条请求最终成功 / 失败的回调
func (sc *SenderCenter) SetResultHandlers(onSuccess send_queue_service.SuccessFunc, onFailure send_queue_service.FailureFunc) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.onSuccess = onSuccess
	sc.onFailure = onFailure
}

func (sc *SenderCenter) Initialize() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	log.Printf("🚀 正在初始化发送端...")
	if sc.config.APIURL == "" {
		return fmt.Errorf("未配置 API 地址")
	}

	sc.local = pebble_service.NewLocalStore(sc.config.PebbleConfig)
	sc.client = api_client_service.NewClientWithTimeout(sc.config.APIURL, sc.config.Timeout)
	queue, err := send_queue_service.New(sc.local, sc.client, sc.config.MaxRetries, api_client_service.IsConnectivityError)
	if err != nil {
		log.Printf("❌ 加载离线队列失败: %v", err)
		return fmt.Errorf("加载离线队列失败: %w", err)
	}
	sc.queue = queue
	if n := queue.Len(); n > 0 {
		log.Printf("📦 离线队列中有 %d 条待发送请求", n)
	}

	sc.manager = socket_client_service.NewManager(sc.config.SocketConfig, sc.dialer, nil)
	sc.manager.SetConnectHandler(func() {
		sc.Flush(context.Background())
	})
	sc.manager.SetEventHandler(models.EventDeliveryUpdate, func(args ...interface{}) {
		log.Printf("📬 delivery-update: %v", args)
	})

	log.Printf("✅ 发送端初始化完成")
	return nil
}

// Run 以观察者身份连接服务端，连接成功后自动刷新队列
func (sc *SenderCenter) Run() error {
	if sc.manager == nil {
		return fmt.Errorf("发送端未初始化")
	}
	if err := sc.manager.Connect(); err != nil {
		log.Printf("⚠️ 连接服务端失败，请求将保留在离线队列中: %v", err)
	}
	return nil
}

// Submit 将消息创建请求写入离线队列；已连接时立即尝试发送
func (sc *SenderCenter) Submit(req *request.CreateMessageReq) (*models.QueuedSendRequest, error) {
	if sc.queue == nil {
		return nil, fmt.Errorf("发送端未初始化")
	}
	if err := req.ToMessage().Validate(); err != nil {
		return nil, err
	}
	item, err := sc.queue.Enqueue(api_client_service.MessagesEndpoint, req)
	if err != nil {
		return nil, err
	}
	log.Printf("📝 消息请求已入队: %s (%s)", item.ID, req.Type)
	if sc.manager.IsConnected() {
		go sc.Flush(context.Background())
	}
	return item, nil
}

// Flush 执行一轮队列处理
func (sc *SenderCenter) Flush(ctx context.Context) (send_queue_service.PassResult, error) {
	sc.mu.Lock()
	onSuccess, onFailure := sc.onSuccess, sc.onFailure
	sc.mu.Unlock()

	result, err := sc.queue.Process(ctx, onSuccess, onFailure)
	if err != nil {
		log.Printf("⚠️ 队列处理出错: %v", err)
	} else if result.Attempted > 0 {
		log.Printf("📊 队列处理完成: 尝试=%d 成功=%d 重排=%d 丢弃=%d 剩余=%d",
			result.Attempted, result.Succeeded, result.Requeued, result.Dropped, result.Remaining)
	}
	select {
	case sc.flushed <- result:
	default:
	}
	return result, err
}

// Flushed 每轮处理结束后投递一次结果
func (sc *SenderCenter) Flushed() <-chan send_queue_service.PassResult {
	return sc.flushed
}

func (sc *SenderCenter) Pending() int {
	if sc.queue == nil {
		return 0
	}
	return sc.queue.Len()
}

func (sc *SenderCenter) Stop() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if sc.manager != nil {
		sc.manager.Disconnect()
	}
	if sc.local != nil {
		err := sc.local.Close()
		sc.local = nil
		if err != nil {
			log.Printf("⚠️ 关闭本地存储时出现错误: %v", err)
			return err
		}
	}
	log.Printf("✅ 发送端已停止")
	return nil
}
