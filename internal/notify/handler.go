package notify

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/pkg/models"
)

type Handler struct {
	Dispatcher *Dispatcher
}

func NewHandler(d *Dispatcher) *Handler {
	return &Handler{Dispatcher: d}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications/permission", h.get)
	rg.POST("/notifications/permission", h.set)
}

type permissionReq struct {
	Permission models.Permission `json:"permission" binding:"required"`
}

func (h *Handler) get(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"permission": h.Dispatcher.Permission()})
}

func (h *Handler) set(c *gin.Context) {
	var req permissionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Dispatcher.SetPermission(req.Permission); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"permission": req.Permission})
}
