package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type Handler struct {
	Tokens      TokenService
	Generations *Generations
	Log         *logrus.Entry
}

func NewHandler(tokens TokenService, gens *Generations, log *logrus.Entry) *Handler {
	return &Handler{Tokens: tokens, Generations: gens, Log: log}
}

// RegisterRoutes mounts token routes. They sit behind Middleware, so only a
// control token can mint or revoke.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/auth/whoami", h.whoami)
	rg.POST("/auth/token", h.issue)
	rg.POST("/auth/revoke", h.revoke)
}

type issueReq struct {
	Client string `json:"client"`
	Scope  string `json:"scope"`
}

func (h *Handler) whoami(c *gin.Context) {
	claims := MustGetClaims(c)
	if claims == nil {
		c.JSON(http.StatusOK, gin.H{"auth": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"auth":   true,
		"client": claims.Client,
		"scope":  claims.Scope,
	})
}

func (h *Handler) issue(c *gin.Context) {
	if !h.Tokens.Enabled() {
		c.JSON(http.StatusNotFound, gin.H{"error": "auth disabled"})
		return
	}
	var req issueReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	req.Client = strings.TrimSpace(req.Client)
	if req.Client == "" || len(req.Client) > 64 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client must be 1-64 chars"})
		return
	}
	scope, err := ParseScope(req.Scope)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	gen, err := h.Generations.Current(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	tok, exp, err := h.Tokens.Sign(req.Client, scope, gen)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token error"})
		return
	}
	h.Log.WithFields(logrus.Fields{"client": req.Client, "scope": scope}).Info("token issued")
	c.JSON(http.StatusCreated, gin.H{"token": tok, "expiresAt": exp})
}

// revoke invalidates every token, the caller's included.
func (h *Handler) revoke(c *gin.Context) {
	gen, err := h.Generations.Bump(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	h.Log.WithField("generation", gen).Warn("all control tokens revoked")
	c.JSON(http.StatusOK, gin.H{"generation": gen})
}
