package controller

import (
	"errors"
	"net/http"

	"display-push-service/controller/request"
	"display-push-service/controller/respond"
	"display-push-service/tool"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
)

// ListMessages godoc
// @Summary 消息列表
// @Description 按创建时间倒序分页
// @Tags Messages
// @Produce json
// @Param page query int false "页码，从 1 开始"
// @Param pageSize query int false "每页数量，最大 200"
// @Success 200 {object} respond.Message{data=respond.MessageListResp} "成功响应"
// @Failure 400 {object} respond.Message "参数错误"
// @Router /messages [get]
func (h *Handler) ListMessages(c *gin.Context) {
	var (
		t   = tool.MakeTimestamp()
		req request.ListMessagesReq
	)
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSONP(http.StatusBadRequest, respond.RespErr(errors.New("参数错误: "+err.Error()), tool.SinceMillis(t), respond.HttpsCodeInvalid))
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = defaultPageSize
	}
	messages, err := h.messages.ListMessages(c.Request.Context(), req.PageSize, (req.Page-1)*req.PageSize)
	if err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(&respond.MessageListResp{
		Page:     req.Page,
		PageSize: req.PageSize,
		Messages: messages,
	}, tool.SinceMillis(t)))
}

// CreateMessage godoc
// @Summary 创建并下发消息
// @Description 持久化消息和每台目标设备的投递记录，并推送给当前在线的目标设备
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body request.CreateMessageReq true "消息内容与目标设备"
// @Success 200 {object} respond.Message{data=respond.SendMessageResp} "成功响应"
// @Failure 400 {object} respond.Message "参数错误"
// @Failure 500 {object} respond.Message "服务器内部错误"
// @Router /messages [post]
func (h *Handler) CreateMessage(c *gin.Context) {
	var (
		t   = tool.MakeTimestamp()
		req request.CreateMessageReq
	)
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSONP(http.StatusBadRequest, respond.RespErr(errors.New("参数错误: "+err.Error()), tool.SinceMillis(t), respond.HttpsCodeInvalid))
		return
	}
	result, err := h.sender.Send(c.Request.Context(), req.ToMessage())
	if err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(result, tool.SinceMillis(t)))
}

// GetMessage godoc
// @Summary 消息详情
// @Description 返回消息及其全部投递记录
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} respond.Message{data=respond.MessageDetailResp} "成功响应"
// @Failure 404 {object} respond.Message "消息不存在"
// @Router /messages/{id} [get]
func (h *Handler) GetMessage(c *gin.Context) {
	t := tool.MakeTimestamp()
	ctx := c.Request.Context()
	msg, err := h.messages.GetMessage(ctx, c.Param("id"))
	if err != nil {
		respondError(c, t, err)
		return
	}
	deliveries, err := h.messages.ListDeliveries(ctx, msg.ID)
	if err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(&respond.MessageDetailResp{
		Message:    msg,
		Deliveries: deliveries,
	}, tool.SinceMillis(t)))
}

// ListDeliveries godoc
// @Summary 消息投递记录
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} respond.Message{data=[]models.MessageDelivery} "成功响应"
// @Failure 404 {object} respond.Message "消息不存在"
// @Router /messages/{id}/deliveries [get]
func (h *Handler) ListDeliveries(c *gin.Context) {
	t := tool.MakeTimestamp()
	ctx := c.Request.Context()
	id := c.Param("id")
	if _, err := h.messages.GetMessage(ctx, id); err != nil {
		respondError(c, t, err)
		return
	}
	deliveries, err := h.messages.ListDeliveries(ctx, id)
	if err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(deliveries, tool.SinceMillis(t)))
}

// DeleteMessage godoc
// @Summary 删除消息
// @Description 同时删除该消息的全部投递记录
// @Tags Messages
// @Produce json
// @Param id path string true "消息ID"
// @Success 200 {object} respond.Message "成功响应"
// @Failure 404 {object} respond.Message "消息不存在"
// @Router /messages/{id} [delete]
func (h *Handler) DeleteMessage(c *gin.Context) {
	t := tool.MakeTimestamp()
	id := c.Param("id")
	if err := h.messages.DeleteMessage(c.Request.Context(), id); err != nil {
		respondError(c, t, err)
		return
	}
	c.JSONP(http.StatusOK, respond.RespSuccess(gin.H{"id": id}, tool.SinceMillis(t)))
}
