package metrics_service

import "github.com/prometheus/client_golang/prometheus"

var (
	DevicesOnline = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "devices_online",
			Help: "Number of devices currently marked online.",
		},
		[]string{"service"},
	)

	MessagesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_created_total",
			Help: "Total number of messages accepted for fan-out.",
		},
		[]string{"service", "type"},
	)

	MessagePushesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "message_pushes_total",
			Help: "Message pushes per target device.",
		},
		[]string{"service", "result"},
	)

	DeliveryAcksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_acks_total",
			Help: "Delivery acknowledgments received from devices.",
		},
		[]string{"service", "result"},
	)

	HeartbeatTimeoutsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "heartbeat_timeouts_total",
			Help: "Devices flipped offline by heartbeat timeout.",
		},
		[]string{"service"},
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"service", "method", "path", "status"},
	)

	HTTPRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
)

// service 标签在注册前为空，测试里直接使用未注册的 collector 也不会 panic
var serviceName = ""

func MustRegister(name string) {
	serviceName = name
	prometheus.MustRegister(
		DevicesOnline,
		MessagesCreatedTotal,
		MessagePushesTotal,
		DeliveryAcksTotal,
		HeartbeatTimeoutsTotal,
		HTTPRequestsTotal,
		HTTPRequestDurationSeconds,
	)
}

func SetDevicesOnline(n int) {
	DevicesOnline.WithLabelValues(serviceName).Set(float64(n))
}

func IncMessageCreated(msgType string) {
	MessagesCreatedTotal.WithLabelValues(serviceName, msgType).Inc()
}

func IncPush(result string) {
	MessagePushesTotal.WithLabelValues(serviceName, result).Inc()
}

func IncAck(result string) {
	DeliveryAcksTotal.WithLabelValues(serviceName, result).Inc()
}

func IncHeartbeatTimeout() {
	HeartbeatTimeoutsTotal.WithLabelValues(serviceName).Inc()
}

func ObserveHTTP(method, path string, status int, seconds float64) {
	HTTPRequestsTotal.WithLabelValues(serviceName, method, path, statusLabel(status)).Inc()
	HTTPRequestDurationSeconds.WithLabelValues(serviceName, method, path).Observe(seconds)
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
