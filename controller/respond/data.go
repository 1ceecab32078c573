package respond

import (
	"display-push-service/models"
	"display-push-service/service/delivery_service"
)

// DeviceListResp 设备列表
type DeviceListResp struct {
	Total   int             `json:"total"`
	Online  int             `json:"online"`
	Devices []models.Device `json:"devices"`
}

// MessageListResp 消息列表
type MessageListResp struct {
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Messages []models.Message `json:"messages"`
}

// MessageDetailResp 消息详情，附带每台设备的投递记录
type MessageDetailResp struct {
	Message    *models.Message          `json:"message"`
	Deliveries []models.MessageDelivery `json:"deliveries"`
}

// SendMessageResp 创建消息后的 fan-out 结果
type SendMessageResp = delivery_service.SendResult
