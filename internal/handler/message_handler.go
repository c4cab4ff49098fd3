// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"sms-relay-go/internal/model"
	"sms-relay-go/internal/service"
	"sms-relay-go/pkg/identity"
	"sms-relay-go/pkg/log"
)

// MessageHandler 处理 Twilio 的入站短信 webhook。
type MessageHandler struct {
	messageService service.MessageService
}

// NewMessageHandler 创建一个新的 MessageHandler 实例。
func NewMessageHandler(messageService service.MessageService) *MessageHandler {
	return &MessageHandler{messageService: messageService}
}

// InboundForm 是 Twilio 以表单形式发送的字段。
type InboundForm struct {
	MessageSid string `form:"MessageSid"`
	From       string `form:"From"`
	To         string `form:"To"`
	Body       string `form:"Body"`
}

// Receive 处理 POST /message。
// 回复和 reset 都在后台执行，这里只负责去重、投递任务并尽快返回 200。
func (h *MessageHandler) Receive(c *gin.Context) {
	var form InboundForm
	if err := c.ShouldBind(&form); err != nil {
		log.Warnf("Receive: Invalid webhook payload, error: %v", err)
		c.Status(http.StatusBadRequest)
		return
	}

	// Twilio 断开连接不应中断 reset 或任务投递
	ctx := context.WithoutCancel(c.Request.Context())
	outcome, err := h.messageService.HandleInbound(ctx, model.InboundMessage{
		MessageSID: form.MessageSid,
		From:       form.From,
		To:         form.To,
		Body:       form.Body,
	})
	if err != nil {
		if errors.Is(err, service.ErrMissingAddress) {
			log.Warnw("inbound message rejected", "messageSid", form.MessageSid, "error", err)
			c.Status(http.StatusBadRequest)
			return
		}
		log.Errorw("inbound message not accepted", "sender", identity.Anonymize(form.From), "messageSid", form.MessageSid, "error", err)
		c.Status(http.StatusServiceUnavailable)
		return
	}

	log.Debugw("inbound message accepted", "sender", identity.Anonymize(form.From), "messageSid", form.MessageSid, "outcome", outcome.String())
	c.Status(http.StatusOK)
}

// Healthz 用于存活探测。
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
