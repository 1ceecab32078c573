package controller

import (
	"errors"
	"log"
	"net/http"

	"display-push-service/controller/request"
	"display-push-service/controller/respond"
	"display-push-service/models"
	"display-push-service/service/store_service"
	"display-push-service/tool"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ListDevices godoc
// @Summary 设备列表
// @Description 返回全部已登记设备及在线数量
// @Tags Devices
// @Produce json
// @Success 200 {object} respond.Message{data=respond.DeviceListResp} "成功响应"
// @Failure 500 {object} respond.Message "服务器内部错误"
// @Router /devices [get]
func (h *Handler) ListDevices(c *gin.Context) {
	t := tool.MakeTimestamp()
	devices, err := h.devices.ListDevices(c.Request.Context())
	if err != nil {
		respondError(c, t, err)
		return
	}
	online := 0
	for i := range devices {
		if devices[i].IsOnline() {
			online++
		}
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(&respond.DeviceListResp{
		Total:   len(devices),
		Online:  online,
		Devices: devices,
	}, tool.SinceMillis(t)))
}

// GetDevice godoc
// @Summary 设备详情
// @Tags Devices
// @Produce json
// @Param id path string true "设备ID"
// @Success 200 {object} respond.Message{data=models.Device} "成功响应"
// @Failure 404 {object} respond.Message "设备不存在"
// @Router /devices/{id} [get]
func (h *Handler) GetDevice(c *gin.Context) {
	t := tool.MakeTimestamp()
	device, err := h.devices.GetDevice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(device, tool.SinceMillis(t)))
}

// CreateDevice godoc
// @Summary 预登记设备
// @Description 设备初始为离线，首次注册后上线。id 为空时由服务端生成
// @Tags Devices
// @Accept json
// @Produce json
// @Param request body request.CreateDeviceReq true "设备信息"
// @Success 200 {object} respond.Message{data=models.Device} "成功响应"
// @Failure 400 {object} respond.Message "参数错误"
// @Router /devices [post]
func (h *Handler) CreateDevice(c *gin.Context) {
	var (
		t   = tool.MakeTimestamp()
		req request.CreateDeviceReq
	)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSONP(http.StatusBadRequest, respond.RespErr(errors.New("参数错误: "+err.Error()), tool.SinceMillis(t), respond.HttpsCodeInvalid))
		return
	}
	device := &models.Device{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Hostname:    req.Hostname,
	}
	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if err := h.devices.CreateDevice(c.Request.Context(), device); err != nil {
		respondError(c, t, err)
		return
	}
	log.Printf("🆕 设备已登记: %s (%s)", device.ID, device.DisplayName)
	h.broadcastDevices(c)
	c.JSONP(http.StatusOK, respond.RespSuccess(device, tool.SinceMillis(t)))
}

// UpdateDevice godoc
// @Summary 修改设备描述
// @Description 仅可修改 displayName / hostname，在线状态由心跳维护
// @Tags Devices
// @Accept json
// @Produce json
// @Param id path string true "设备ID"
// @Param request body request.UpdateDeviceReq true "要修改的字段"
// @Success 200 {object} respond.Message{data=models.Device} "成功响应"
// @Failure 404 {object} respond.Message "设备不存在"
// @Router /devices/{id} [patch]
func (h *Handler) UpdateDevice(c *gin.Context) {
	var (
		t   = tool.MakeTimestamp()
		req request.UpdateDeviceReq
	)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSONP(http.StatusBadRequest, respond.RespErr(errors.New("参数错误: "+err.Error()), tool.SinceMillis(t), respond.HttpsCodeInvalid))
		return
	}
	device, err := h.devices.UpdateDeviceInfo(c.Request.Context(), c.Param("id"), req.DisplayName, req.Hostname)
	if err != nil {
		respondError(c, t, err)
		return
	}
	h.broadcastDevices(c)
	c.JSONP(http.StatusOK, respond.RespSuccess(device, tool.SinceMillis(t)))
}

// DeleteDevice godoc
// @Summary 删除设备
// @Tags Devices
// @Produce json
// @Param id path string true "设备ID"
// @Success 200 {object} respond.Message "成功响应"
// @Failure 404 {object} respond.Message "设备不存在"
// @Router /devices/{id} [delete]
func (h *Handler) DeleteDevice(c *gin.Context) {
	t := tool.MakeTimestamp()
	id := c.Param("id")
	if err := h.devices.DeleteDevice(c.Request.Context(), id); err != nil {
		respondError(c, t, err)
		return
	}
	log.Printf("🗑️ 设备已删除: %s", id)
	h.broadcastDevices(c)
	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{"id": id}, tool.SinceMillis(t)))
}

func (h *Handler) broadcastDevices(c *gin.Context) {
	if h.presence != nil {
		h.presence.BroadcastSnapshot(c.Request.Context())
	}
}

// respondError 将领域错误映射为 HTTP 状态与响应码
func respondError(c *gin.Context, t int64, err error) {
	switch {
	case errors.Is(err, store_service.ErrNotFound):
		c.JSONP(http.StatusNotFound, respond.RespErr(err, tool.SinceMillis(t), respond.HttpsCodeNotFound))
	case errors.Is(err, models.ErrInvalidMessage):
		c.JSONP(http.StatusBadRequest, respond.RespErr(err, tool.SinceMillis(t), respond.HttpsCodeInvalid))
	default:
		log.Printf("❌ %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSONP(http.StatusInternalServerError, respond.RespErr(err, tool.SinceMillis(t), respond.HttpsCodeInternal))
	}
}
