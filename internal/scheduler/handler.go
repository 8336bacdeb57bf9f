package scheduler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	Scheduler *Scheduler
}

func NewHandler(s *Scheduler) *Handler {
	return &Handler{Scheduler: s}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/scheduler", h.status)
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, h.Scheduler.Status())
}
