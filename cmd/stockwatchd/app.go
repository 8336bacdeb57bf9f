package main

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"stockwatch/internal/auth"
	"stockwatch/internal/availability"
	"stockwatch/internal/chain"
	"stockwatch/internal/engine"
	"stockwatch/internal/hub"
	"stockwatch/internal/kvstore"
	"stockwatch/internal/messages"
	"stockwatch/internal/notify"
	"stockwatch/internal/proxy"
	"stockwatch/internal/scheduler"
	"stockwatch/internal/settings"
	"stockwatch/pkg/models"
	"stockwatch/pkg/utils"
)

type app struct {
	cfg    utils.Config
	logger *logrus.Logger
	log    *logrus.Entry

	store      kvstore.Store
	hub        *hub.Hub
	tcp        *hub.Server
	udp        *notify.Server
	nats       *notify.NATSSink
	dispatcher *notify.Dispatcher
	fetcher    *availability.Fetcher
	engine     *engine.Engine
	settings   *settings.Manager
	registry   *scheduler.Registry
	scheduler  *scheduler.Scheduler
	messages   *messages.Handler
	tokens     auth.TokenService
	gens       *auth.Generations
}

// newApp wires every component. ctx bounds background loops started later
// by the scheduler.
func newApp(ctx context.Context, cfg utils.Config, logger *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, log: utils.Component(logger, "daemon")}

	store, err := kvstore.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = store

	a.hub = hub.NewHub(utils.Component(logger, "hub"))
	a.tcp = hub.NewServer(cfg.TCPAddr, a.hub)
	a.udp = notify.NewServer(cfg.UDPAddr, notify.NewRegistry(), utils.Component(logger, "udp"))

	a.dispatcher = notify.NewDispatcher(a.hub, a.udp, notify.NewLogSink(utils.Component(logger, "notify")))
	if cfg.NATS.URL != "" {
		sink, err := notify.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, utils.Component(logger, "nats"))
		if err != nil {
			// NATS is optional; the other sinks still deliver
			a.log.WithError(err).Warn("nats sink disabled")
		} else {
			a.nats = sink
			a.dispatcher.AddSink(sink)
		}
	}

	client := proxy.NewClient(proxy.Options{
		Timeout:           cfg.Fetch.Timeout,
		RequestsPerSecond: cfg.Fetch.RequestsPerSecond,
		Burst:             cfg.Fetch.Burst,
	})
	registry := chain.DefaultRegistry(cfg.Chains, cfg.Region.Locale)
	a.fetcher = availability.NewFetcher(client, registry, cfg.Fetch.MaxConcurrency, utils.Component(logger, "fetcher"))
	a.engine = engine.New(a.fetcher, store, a.dispatcher, cfg, utils.Component(logger, "engine"))

	a.settings = settings.NewManager(store, settings.Options{
		Defaults: cfg.Defaults.Settings(),
		Region:   cfg.Region,
		ProxyURL: cfg.ProxyURL,
	}, utils.Component(logger, "settings"))

	job := scheduler.CycleJob(a.settings, a.engine, utils.Component(logger, "cycle"))
	if cfg.Scheduler.Periodic {
		a.registry = scheduler.NewRegistry(store, cfg.Scheduler.Resolution, utils.Component(logger, "registry"))
		if err := a.registry.Load(ctx); err != nil {
			a.log.WithError(err).Warn("periodic registry unavailable, using timer fallback")
			a.registry = nil
		}
	}
	a.scheduler = scheduler.New(a.registry, job, scheduler.Options{BaseContext: ctx}, utils.Component(logger, "scheduler"))

	a.settings.Subscribe(func(ctx context.Context, s models.NotificationSettings) {
		if err := a.scheduler.ApplySettings(ctx, s); err != nil {
			a.log.WithError(err).Error("reschedule after settings change")
		}
		a.hub.SettingsChanged(s)
	})

	a.messages = messages.NewHandler(a.settings, a.dispatcher, utils.Component(logger, "messages"))
	a.tokens = auth.TokenService{
		Secret:   []byte(cfg.Auth.JWTSecret),
		Issuer:   cfg.Auth.JWTIssuer,
		Duration: cfg.Auth.JWTDuration,
	}
	a.gens = auth.NewGenerations(store)
	return a, nil
}

// startSchedule applies the stored settings to the scheduler.
func (a *app) startSchedule(ctx context.Context) error {
	s, err := a.settings.Load(ctx)
	if err != nil {
		return err
	}
	return a.scheduler.Resume(ctx, s)
}

func (a *app) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(utils.Component(a.logger, "http")))
	_ = r.SetTrustedProxies([]string{"127.0.0.1"})

	r.Use(cors.New(corsConfig(a.cfg.CORSOrigins)))

	api := r.Group("", auth.Middleware(a.tokens, a.gens, "/health"))

	api.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "store": a.cfg.Store.Backend})
	})
	api.GET("/ready", a.ready)
	api.GET("/ws", hub.WSHandler(a.hub, a.cfg.CORSOrigins, a.messages.Inbound))

	auth.NewHandler(a.tokens, a.gens, utils.Component(a.logger, "auth")).RegisterRoutes(api)
	settings.NewHandler(a.settings).RegisterRoutes(api)
	availability.NewHandler(a.fetcher, a.settings).RegisterRoutes(api)
	engine.NewHandler(a.engine, a.settings).RegisterRoutes(api)
	scheduler.NewHandler(a.scheduler).RegisterRoutes(api)
	notify.NewHandler(a.dispatcher).RegisterRoutes(api)
	a.messages.RegisterRoutes(api)

	return r
}

func (a *app) ready(c *gin.Context) {
	stats := a.hub.Stats()
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := a.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "not_ready",
			"store_error": err.Error(),
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"store":       "ok",
		"tcp_clients": stats.TCPClients,
		"ws_clients":  stats.WSClients,
		"scheduler":   a.scheduler.Status(),
	})
}

// corsConfig allows the browser UI origins. No origins or "*" means any origin,
// without credentials.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}
	if len(origins) == 0 || slices.Contains(origins, "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("request")
			return
		}
		entry.Debug("request")
	}
}

func (a *app) close() {
	a.hub.CloseAll()
	if a.nats != nil {
		a.nats.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.WithError(err).Warn("close store")
	}
}
