package engine

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"stockwatch/internal/availability"
	"stockwatch/pkg/models"
)

// ConfigSource builds per-cycle configuration from the current settings.
type ConfigSource interface {
	CycleConfig(ctx context.Context, chain models.ChainID) (models.CycleConfig, error)
	CycleConfigs(ctx context.Context) ([]models.CycleConfig, error)
}

type Handler struct {
	Engine  *Engine
	Configs ConfigSource
}

func NewHandler(e *Engine, configs ConfigSource) *Handler {
	return &Handler{Engine: e, Configs: configs}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/availability/:chain", h.snapshot)
	rg.POST("/availability/check", h.check)
	rg.GET("/cycles", h.status)
}

func (h *Handler) snapshot(c *gin.Context) {
	chain, err := models.ParseChain(c.Param("chain"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	snap, err := h.Engine.Snapshot(c.Request.Context(), chain)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load snapshot failed"})
		return
	}

	products := make([]models.Product, 0, len(snap))
	for _, p := range snap {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b models.Product) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	availability.SortAvailableFirst(products)

	c.JSON(http.StatusOK, gin.H{
		"chain":    chain,
		"state":    h.Engine.State(chain),
		"products": products,
	})
}

// check runs a cycle now. ?chain= limits it to one chain.
func (h *Handler) check(c *gin.Context) {
	ctx := c.Request.Context()

	if raw := c.Query("chain"); raw != "" {
		chain, err := models.ParseChain(raw)
		if err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		cfg, err := h.Configs.CycleConfig(ctx, chain)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "load settings failed"})
			return
		}
		res, err := h.Engine.RunCycle(ctx, cfg)
		if err != nil {
			c.JSON(StatusFor(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, res)
		return
	}

	cfgs, err := h.Configs.CycleConfigs(ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load settings failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": h.Engine.RunAll(ctx, cfgs)})
}

func (h *Handler) status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"chains": h.Engine.Status()})
}

// StatusFor maps cycle errors onto HTTP status codes.
func StatusFor(err error) int {
	var (
		uerr *models.UnsupportedChainError
		verr *models.ConfigValidationError
		perr *models.PersistenceError
	)
	switch {
	case errors.Is(err, ErrCycleInFlight):
		return http.StatusConflict
	case errors.As(err, &uerr):
		return http.StatusNotFound
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, availability.ErrFetchFailed):
		return http.StatusBadGateway
	case errors.As(err, &perr):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
