package devicecenter

import (
	"fmt"
	"log"
	"os"
	"sync"
	"unicode/utf8"

	"display-push-service/models"
	"display-push-service/service/pebble_service"
	"display-push-service/service/socket_client_service"
)

// DisplayFunc 设备端展示收到的消息
type DisplayFunc func(payload *models.PushPayload)

// Config 设备端配置
type Config struct {
	SocketConfig *socket_client_service.Config `yaml:"socket" json:"socket"`
	PebbleConfig *pebble_service.Config        `yaml:"pebble" json:"pebble"`
	DisplayName  string                        `yaml:"display_name" json:"display_name"`
	Hostname     string                        `yaml:"hostname" json:"hostname"`
}

// DeviceCenter runs the display-device role: a stable local identity, one
// connection manager that registers and heartbeats, and a display hook for pushes.
type DeviceCenter struct {
	config   *Config
	dialer   socket_client_service.Dialer
	local    *pebble_service.LocalStore
	manager  *socket_client_service.Manager
	identity *socket_client_service.Identity
	display  DisplayFunc
	running  bool
	mu       sync.RWMutex
}

func NewDeviceCenter(config *Config, dialer socket_client_service.Dialer) *DeviceCenter {
	if config.SocketConfig == nil {
		config.SocketConfig = &socket_client_service.Config{}
	}
	return &DeviceCenter{
		config:  config,
		dialer:  dialer,
		display: LogDisplay,
	}
}

// SetDisplayHandler 替换默认的日志展示
func (dc *DeviceCenter) SetDisplayHandler(display DisplayFunc) {
	dc.mu.Lock()
	defer dc.mu.Unlock()
	if display != nil {
		dc.display = display
	}
}

// Initialize 打开本地存储、确定设备身份并装配连接管理器
func (dc *DeviceCenter) Initialize() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	log.Printf("🚀 正在初始化设备端...")

	dc.local = pebble_service.NewLocalStore(dc.config.PebbleConfig)
	deviceID, err := dc.local.DeviceID()
	if err != nil {
		log.Printf("❌ 读取设备ID失败: %v", err)
		return fmt.Errorf("读取设备ID失败: %w", err)
	}

	if dc.config.SocketConfig.ServerURL == "" {
		if last, err := dc.local.LastEndpoint(); err == nil && last != "" {
			log.Printf("🔗 未配置服务端地址，使用上次连接的地址: %s", last)
			dc.config.SocketConfig.ServerURL = last
		}
	}
	if dc.config.SocketConfig.ServerURL == "" {
		return fmt.Errorf("未配置服务端地址")
	}

	hostname := dc.config.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	displayName := dc.config.DisplayName
	if displayName == "" {
		displayName = hostname
	}
	dc.identity = &socket_client_service.Identity{
		DeviceID:    deviceID,
		DisplayName: displayName,
		Hostname:    hostname,
	}

	dc.manager = socket_client_service.NewManager(dc.config.SocketConfig, dc.dialer, dc.identity)
	local := dc.local
	dc.manager.SetConnectHandler(func() {
		if err := local.SetLastEndpoint(dc.manager.ServerURL()); err != nil {
			log.Printf("⚠️ 保存服务端地址失败: %v", err)
		}
	})
	dc.manager.SetStateHandler(func(s socket_client_service.State) {
		log.Printf("📶 连接状态: %s", s)
	})
	dc.manager.SetPushHandler(func(payload *models.PushPayload) {
		dc.mu.RLock()
		display := dc.display
		dc.mu.RUnlock()
		display(payload)
	})
	dc.manager.SetEventHandler(models.EventRegistered, func(args ...interface{}) {
		log.Printf("✅ 设备已注册: %s (%s)", dc.identity.DeviceID, dc.identity.DisplayName)
	})

	log.Printf("✅ 设备端初始化完成: id=%s name=%s host=%s", deviceID, displayName, hostname)
	return nil
}

// Run 建立连接。手动重连模式下首次拨号失败会继续按退避重试
func (dc *DeviceCenter) Run() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.manager == nil {
		return fmt.Errorf("设备端未初始化")
	}
	if dc.running {
		return fmt.Errorf("设备端已经在运行中")
	}
	if err := dc.manager.Connect(); err != nil {
		if !dc.config.SocketConfig.ManualReconnect {
			log.Printf("❌ 连接服务端失败: %v", err)
			return fmt.Errorf("连接服务端失败: %w", err)
		}
		log.Printf("⚠️ 首次连接失败，稍后重试: %v", err)
	}
	dc.running = true
	return nil
}

func (dc *DeviceCenter) Stop() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.manager != nil {
		dc.manager.Disconnect()
	}
	dc.running = false
	if dc.local != nil {
		if err := dc.local.Close(); err != nil {
			log.Printf("⚠️ 关闭本地存储时出现错误: %v", err)
			return err
		}
		dc.local = nil
	}
	log.Printf("✅ 设备端已停止")
	return nil
}

func (dc *DeviceCenter) IsRunning() bool {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	return dc.running && dc.manager != nil && dc.manager.IsConnected()
}

func (dc *DeviceCenter) DeviceID() string {
	dc.mu.RLock()
	defer dc.mu.RUnlock()
	if dc.identity == nil {
		return ""
	}
	return dc.identity.DeviceID
}

func (dc *DeviceCenter) Manager() *socket_client_service.Manager {
	return dc.manager
}

// LogDisplay 默认展示：打印一行摘要
func LogDisplay(payload *models.PushPayload) {
	log.Printf("🖥️ [%s] %s", payload.ID, Summary(payload))
}

// Summary 生成消息摘要，正文过长时截断
func Summary(payload *models.PushPayload) string {
	switch payload.Type {
	case models.MessageTypeTextImage:
		return fmt.Sprintf("%s %s", truncate(payload.Content), payload.ImageURL)
	case models.MessageTypeVideo:
		return fmt.Sprintf("▶ %s %s", payload.VideoURL, truncate(payload.Content))
	case models.MessageTypeAudio:
		return fmt.Sprintf("♪ %s %s", payload.AudioURL, truncate(payload.Content))
	default:
		return truncate(payload.Content)
	}
}

func truncate(s string) string {
	const maxLength = 100
	if utf8.RuneCountInString(s) <= maxLength {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLength-3]) + "..."
}
