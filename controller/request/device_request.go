package request

// CreateDeviceReq 管理端预登记设备
type CreateDeviceReq struct {
	ID          string `json:"id"` // 为空时服务端生成
	DisplayName string `json:"displayName" binding:"required"`
	Hostname    string `json:"hostname"`
}

// UpdateDeviceReq 仅允许修改描述字段，在线状态由心跳维护
type UpdateDeviceReq struct {
	DisplayName *string `json:"displayName"`
	Hostname    *string `json:"hostname"`
}
