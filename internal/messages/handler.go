package messages

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/pkg/models"
)

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/messages", h.post)
}

func (h *Handler) post(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.Handle(c.Request.Context(), msg); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

func statusFor(err error) int {
	var cve *models.ConfigValidationError
	var uce *models.UnsupportedChainError
	switch {
	case errors.Is(err, ErrUnknownType), errors.As(err, &cve), errors.As(err, &uce):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
