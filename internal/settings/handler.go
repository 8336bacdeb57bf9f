package settings

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/pkg/models"
)

type Handler struct {
	Manager *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{Manager: m}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/settings", h.getSettings)
	rg.PUT("/settings", h.putSettings)
	rg.GET("/proxy", h.getProxy)
	rg.PUT("/proxy", h.putProxy)
	rg.GET("/products", h.listProducts)
	rg.POST("/products/:chain", h.addProduct)
	rg.DELETE("/products/:chain/:id", h.removeProduct)
	rg.PUT("/selection", h.putSelection)
}

func (h *Handler) getSettings(c *gin.Context) {
	s, err := h.Manager.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load settings failed"})
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *Handler) putSettings(c *gin.Context) {
	var s models.NotificationSettings
	if err := c.ShouldBindJSON(&s); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Manager.Save(c.Request.Context(), s); err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	saved, err := h.Manager.Load(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "fetch saved failed"})
		return
	}
	c.JSON(http.StatusOK, saved)
}

func (h *Handler) getProxy(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"proxyUrl": h.Manager.ProxyURL()})
}

type proxyReq struct {
	ProxyURL string `json:"proxyUrl"`
}

func (h *Handler) putProxy(c *gin.Context) {
	var req proxyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Manager.SetProxyURL(req.ProxyURL); err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"proxyUrl": h.Manager.ProxyURL()})
}

func (h *Handler) listProducts(c *gin.Context) {
	ctx := c.Request.Context()
	tracked, err := h.Manager.Tracked(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load tracked products failed"})
		return
	}
	sel, err := h.Manager.Selection(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load selection failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"trackedProductIds": tracked,
		"selectedChain":     sel.Chain,
		"selectedProducts":  sel.Products,
	})
}

type addProductReq struct {
	// ProductID may also be a product page URL
	ProductID string `json:"productId"`
}

func (h *Handler) addProduct(c *gin.Context) {
	chain, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	var req addProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	id, err := h.Manager.AddProduct(c.Request.Context(), chain, req.ProductID)
	if err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"chain": chain, "productId": id})
}

func (h *Handler) removeProduct(c *gin.Context) {
	chain, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err := h.Manager.RemoveProduct(c.Request.Context(), chain, c.Param("id")); err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

func (h *Handler) putSelection(c *gin.Context) {
	var sel Selection
	if err := c.ShouldBindJSON(&sel); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if err := h.Manager.Select(c.Request.Context(), sel); err != nil {
		c.JSON(StatusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sel)
}

// StatusFor maps settings errors onto HTTP status codes.
func StatusFor(err error) int {
	var (
		verr *models.ConfigValidationError
		uerr *models.UnsupportedChainError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.As(err, &uerr), errors.Is(err, models.ErrProductNotTracked):
		return http.StatusNotFound
	case errors.Is(err, models.ErrDuplicateProduct):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
