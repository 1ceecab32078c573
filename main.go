package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"display-push-service/conf"
	"display-push-service/controller"
	"display-push-service/controller/request"
	"display-push-service/major"
	"display-push-service/models"
	"display-push-service/service/delivery_service"
	devicecenter "display-push-service/service/device_center"
	"display-push-service/service/metrics_service"
	"display-push-service/service/pebble_service"
	"display-push-service/service/presence_service"
	"display-push-service/service/socket_client_service"
	"display-push-service/service/socket_server_service"
	"display-push-service/service/store_service"
)

const serviceName = "display-push-service"

func runServer() {
	major.InitSqlConfig()
	defer major.CloseSqlDB()
	metrics_service.MustRegister(serviceName)

	store := store_service.New(major.GetSqlDB())
	socketServer := socket_server_service.NewServer(&socket_server_service.Config{Path: conf.SocketServerPath})
	defer socketServer.Close()

	tracker := presence_service.NewTracker(store, socketServer.Observers(), conf.HeartbeatTimeout())
	defer tracker.Stop()
	if err := tracker.ResetPresence(context.Background()); err != nil {
		log.Fatalf("❌ 重置设备在线状态失败: %v", err)
	}
	coordinator := delivery_service.NewCoordinator(store, tracker, socketServer.Observers())
	socketServer.Attach(socket_server_service.NewDispatcher(tracker, coordinator))

	log.Printf("💓 心跳间隔 %s，超时 %s", conf.HeartbeatInterval, tracker.Timeout())
	handler := controller.NewHandler(store, store, coordinator, tracker)
	router := controller.NewRouter(handler, socketServer.Handler())
	if err := controller.Run(router); err != nil {
		log.Printf("❌ HTTP 服务退出: %v", err)
	}
}

func socketConfig() *socket_client_service.Config {
	return &socket_client_service.Config{
		ServerURL:         conf.SocketServerURL,
		HeartbeatInterval: conf.HeartbeatInterval,
		ManualReconnect:   conf.SocketManualReconnect,
		BackoffInitial:    conf.BackoffInitial,
		BackoffMax:        conf.BackoffMax,
	}
}

func socketDialer() *socket_client_service.SocketDialer {
	return socket_client_service.NewSocketDialer(
		getStringWithDefault(conf.SocketPath, "/socket.io/"),
		time.Duration(getIntWithDefault(conf.SocketTimeout, 10))*time.Second,
		!conf.SocketManualReconnect,
	)
}

func runDevice() {
	dc := devicecenter.NewDeviceCenter(&devicecenter.Config{
		SocketConfig: socketConfig(),
		PebbleConfig: &pebble_service.Config{DBPath: conf.LocalStoreDBPath},
		DisplayName:  conf.DeviceDisplayName,
		Hostname:     conf.DeviceHostname,
	}, socketDialer())

	if err := dc.Initialize(); err != nil {
		log.Fatalf("❌ 初始化设备端失败: %v", err)
	}
	if err := dc.Run(); err != nil {
		log.Fatalf("❌ 启动设备端失败: %v", err)
	}
	log.Printf("🔗 Socket 服务器: %s", conf.SocketServerURL)

	waitForSignal()
	_ = dc.Stop()
}

func runSender(req *request.CreateMessageReq) {
	sc := devicecenter.NewSenderCenter(&devicecenter.SenderConfig{
		SocketConfig: socketConfig(),
		PebbleConfig: &pebble_service.Config{DBPath: conf.LocalStoreDBPath},
		APIURL:       conf.SenderAPIURL,
		Timeout:      conf.SenderTimeout,
		MaxRetries:   conf.SendQueueMaxRetries,
	}, socketDialer())

	if err := sc.Initialize(); err != nil {
		log.Fatalf("❌ 初始化发送端失败: %v", err)
	}
	defer sc.Stop()

	if req != nil {
		if _, err := sc.Submit(req); err != nil {
			log.Fatalf("❌ 消息请求无效: %v", err)
		}
	}
	if sc.Pending() == 0 {
		log.Printf("📭 离线队列为空，无需发送")
		return
	}
	_ = sc.Run()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	for {
		select {
		case res := <-sc.Flushed():
			if sc.Pending() == 0 {
				log.Printf("✅ 离线队列已清空 (成功 %d, 丢弃 %d)", res.Succeeded, res.Dropped)
				return
			}
			log.Printf("📦 仍有 %d 条请求等待发送", sc.Pending())
		case <-sig:
			log.Printf("🛑 退出，%d 条请求保留在离线队列中", sc.Pending())
			return
		}
	}
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Printf("🛑 收到退出信号")
}

// 辅助函数：获取字符串配置值，提供默认值
func getStringWithDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}

// 辅助函数：获取整数配置值，提供默认值
func getIntWithDefault(value, defaultValue int) int {
	if value == 0 {
		return defaultValue
	}
	return value
}

func splitTargets(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Package main
// @title 显示终端消息推送服务 API
// @version 1.0
// @description 设备在线状态、消息下发与投递确认
// @BasePath /
func main() {
	var (
		env, role                    string
		msgType, content, targets    string
		imageURL, videoURL, audioURL string
	)
	flag.StringVar(&env, "env", "mainnet", "env config: example, testnet, mainnet")
	flag.StringVar(&role, "role", "server", "role: server, device, sender")
	flag.StringVar(&msgType, "type", "", "sender: message type TEXT, TEXT_IMAGE, VIDEO, AUDIO")
	flag.StringVar(&content, "content", "", "sender: message text")
	flag.StringVar(&imageURL, "image", "", "sender: image url")
	flag.StringVar(&videoURL, "video", "", "sender: video url")
	flag.StringVar(&audioURL, "audio", "", "sender: audio url")
	flag.StringVar(&targets, "targets", "", "sender: comma separated device ids")
	flag.Parse()

	conf.SystemEnvironmentEnum = conf.ParseEnvironment(env)
	conf.InitConfig("")

	fmt.Printf("run %s, env: %s, role: %s\n", serviceName, env, role)

	switch role {
	case "server":
		runServer()
	case "device":
		runDevice()
	case "sender":
		var req *request.CreateMessageReq
		if msgType != "" {
			req = &request.CreateMessageReq{
				Type:          models.MessageType(strings.ToUpper(msgType)),
				Content:       content,
				ImageURL:      imageURL,
				VideoURL:      videoURL,
				AudioURL:      audioURL,
				TargetDevices: splitTargets(targets),
			}
		}
		runSender(req)
	default:
		log.Fatalf("❌ 未知角色: %s", role)
	}
}
