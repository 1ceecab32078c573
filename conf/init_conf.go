package conf

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

var (
	Net  string = ""
	Port string = ""

	RdsDriver       string = ""
	RdsDsn          string = ""
	RdsMaxOpenConns int    = 0
	RdsMaxIdleConns int    = 0

	// Presence
	HeartbeatInterval time.Duration = 0
	TimeoutFactor     float64       = 0

	// Socket server
	SocketServerPath string = ""

	// Socket client (device / sender roles)
	SocketServerURL       string        = ""
	SocketPath            string        = ""
	SocketTimeout         int           = 0
	SocketManualReconnect bool          = false
	BackoffInitial        time.Duration = 0
	BackoffMax            time.Duration = 0

	// Device identity
	DeviceDisplayName string = ""
	DeviceHostname    string = ""

	// Client-local storage
	LocalStoreDBPath string = ""

	// Offline send queue
	SendQueueMaxRetries int = 0

	// Sender
	SenderAPIURL  string        = ""
	SenderTimeout time.Duration = 0
)

func InitConfig(configPath string) {
	if configPath == "" {
		configPath = GetYaml()
	}
	fmt.Printf("configPath:%s\n", configPath)
	viper.SetConfigFile(configPath)
	setDefaults()
	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	load()
}

func setDefaults() {
	viper.SetDefault("net", "tcp")
	viper.SetDefault("port", "8080")
	viper.SetDefault("rds.driver", "mysql")
	viper.SetDefault("rds.max_open_conns", 20)
	viper.SetDefault("rds.max_idle_conns", 5)
	viper.SetDefault("presence.heartbeat_interval", "30s")
	viper.SetDefault("presence.timeout_factor", 1.5)
	viper.SetDefault("socket_server.path", "/socket.io/")
	viper.SetDefault("socket_client.path", "/socket.io/")
	viper.SetDefault("socket_client.timeout", 10)
	viper.SetDefault("socket_client.manual_reconnect", true)
	viper.SetDefault("socket_client.backoff_initial", "1s")
	viper.SetDefault("socket_client.backoff_max", "30s")
	viper.SetDefault("local_store.db_path", "./data/local_pebble")
	viper.SetDefault("send_queue.max_retries", 5)
	viper.SetDefault("sender.timeout", "10s")
}

func load() {
	Net = viper.GetString("net")
	Port = viper.GetString("port")

	RdsDriver = viper.GetString("rds.driver")
	RdsDsn = viper.GetString("rds.dsn")
	RdsMaxOpenConns = viper.GetInt("rds.max_open_conns")
	RdsMaxIdleConns = viper.GetInt("rds.max_idle_conns")

	// 在线状态配置
	HeartbeatInterval = viper.GetDuration("presence.heartbeat_interval")
	TimeoutFactor = viper.GetFloat64("presence.timeout_factor")

	SocketServerPath = viper.GetString("socket_server.path")

	// Socket 客户端配置
	SocketServerURL = viper.GetString("socket_client.server_url")
	SocketPath = viper.GetString("socket_client.path")
	SocketTimeout = viper.GetInt("socket_client.timeout")
	SocketManualReconnect = viper.GetBool("socket_client.manual_reconnect")
	BackoffInitial = viper.GetDuration("socket_client.backoff_initial")
	BackoffMax = viper.GetDuration("socket_client.backoff_max")

	DeviceDisplayName = viper.GetString("device.display_name")
	DeviceHostname = viper.GetString("device.hostname")

	LocalStoreDBPath = viper.GetString("local_store.db_path")

	SendQueueMaxRetries = viper.GetInt("send_queue.max_retries")

	SenderAPIURL = viper.GetString("sender.api_url")
	SenderTimeout = viper.GetDuration("sender.timeout")
}

// HeartbeatTimeout 心跳超时 = 心跳间隔 × 安全系数，容忍一次心跳丢失
func HeartbeatTimeout() time.Duration {
	factor := TimeoutFactor
	if factor <= 1 {
		factor = 1.5
	}
	return time.Duration(float64(HeartbeatInterval) * factor)
}
