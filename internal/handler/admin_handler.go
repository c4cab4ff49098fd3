package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"sms-relay-go/internal/model"
	"sms-relay-go/internal/service"
	"sms-relay-go/pkg/log"
	"sms-relay-go/pkg/token"
)

// AdminHandler 负责处理所有与管理员相关的 API 请求。
type AdminHandler struct {
	adminService service.AdminService
}

// NewAdminHandler 创建一个新的 AdminHandler 实例。
func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// GetConversation 返回某个发送方当前的会话历史。
func (h *AdminHandler) GetConversation(c *gin.Context) {
	sender := c.Param("sender")
	view, err := h.adminService.GetConversation(c.Request.Context(), sender)
	if err != nil {
		log.Error("GetConversation: Failed to load conversation", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取会话失败", "data": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": view})
}

// ClearConversation 清空某个发送方的会话历史，不会给用户发短信。
func (h *AdminHandler) ClearConversation(c *gin.Context) {
	sender := c.Param("sender")
	if err := h.adminService.ClearConversation(c.Request.Context(), sender); err != nil {
		log.Error("ClearConversation: Failed to clear conversation", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "清空会话失败", "data": nil})
		return
	}

	admin := "unknown"
	if v, ok := c.Get("claims"); ok {
		admin = v.(*token.CustomClaims).Subject
	}
	log.Infof("Admin '%s' cleared a conversation", admin)
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": nil})
}

// ListDeliveries 返回某个发送方最近的投递记录。
func (h *AdminHandler) ListDeliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := h.adminService.ListDeliveries(c.Request.Context(), c.Param("sender"), limit)
	if err != nil {
		if errors.Is(err, service.ErrDeliveryLogDisabled) {
			c.JSON(http.StatusNotImplemented, gin.H{"code": http.StatusNotImplemented, "message": "未启用投递日志", "data": nil})
			return
		}
		log.Error("ListDeliveries: Failed to list deliveries", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "message": "获取投递记录失败", "data": nil})
		return
	}
	views := make([]model.DeliveryView, 0, len(records))
	for _, r := range records {
		views = append(views, r.View())
	}
	c.JSON(http.StatusOK, gin.H{"code": http.StatusOK, "message": "success", "data": views})
}
