package request

import "display-push-service/models"

// CreateMessageReq 创建并下发消息
type CreateMessageReq struct {
	Type          models.MessageType `json:"type" binding:"required"`
	Content       string             `json:"content"`
	ImageURL      string             `json:"imageUrl"`
	VideoURL      string             `json:"videoUrl"`
	AudioURL      string             `json:"audioUrl"`
	TargetDevices []string           `json:"targetDevices"`
}

func (r *CreateMessageReq) ToMessage() *models.Message {
	return &models.Message{
		Type:          r.Type,
		Content:       r.Content,
		ImageURL:      r.ImageURL,
		VideoURL:      r.VideoURL,
		AudioURL:      r.AudioURL,
		TargetDevices: models.NewDeviceIDSet(r.TargetDevices),
	}
}

// ListMessagesReq 分页参数
type ListMessagesReq struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=200"`
}
