package availability

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockwatch/pkg/models"
)

// TrackedSource is the slice of the settings manager the handler needs.
type TrackedSource interface {
	ProxyURL() string
	Tracked(ctx context.Context) (models.TrackedProducts, error)
}

type Handler struct {
	Fetcher  *Fetcher
	Settings TrackedSource
}

func NewHandler(f *Fetcher, settings TrackedSource) *Handler {
	return &Handler{Fetcher: f, Settings: settings}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stores/:chain", h.stores)
	rg.GET("/recommendations/:chain/:id", h.recommendations)
}

func (h *Handler) stores(c *gin.Context) {
	chainID, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	// ?cached=1 skips the proxy round trip
	if c.Query("cached") != "" {
		c.JSON(http.StatusOK, gin.H{"chain": chainID, "stores": nonNil(h.Fetcher.CachedStores(chainID))})
		return
	}

	stores, err := h.Fetcher.Stores(c.Request.Context(), chainID, h.Settings.ProxyURL())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chainID, "stores": stores})
}

func (h *Handler) recommendations(c *gin.Context) {
	chainID, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	tracked, err := h.Settings.Tracked(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load tracked products failed"})
		return
	}

	recs, err := h.Fetcher.Recommendations(c.Request.Context(), chainID, h.Settings.ProxyURL(), c.Param("id"), tracked[chainID])
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"chain": chainID, "products": recs})
}

func statusFor(err error) int {
	var nerr *models.NetworkError
	var normErr *models.NormalizationError
	switch {
	case errors.As(err, &nerr), errors.As(err, &normErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(s []models.Store) []models.Store {
	if s == nil {
		return []models.Store{}
	}
	return s
}
