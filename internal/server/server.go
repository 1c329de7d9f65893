// Package server sets up the HTTP server with all routes: the public payment
// page, the merchant and admin consoles, and the supporting JSON APIs.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/payforge/console/internal/auth"
	"github.com/payforge/console/internal/config"
	"github.com/payforge/console/internal/gatewayapi"
	"github.com/payforge/console/internal/idgen"
	"github.com/payforge/console/internal/logging"
	"github.com/payforge/console/internal/metrics"
	"github.com/payforge/console/internal/paysession"
	"github.com/payforge/console/internal/realtime"
	"github.com/payforge/console/internal/security"
	"github.com/payforge/console/internal/validation"
	"github.com/payforge/console/internal/watcher"
)

// -----------------------------------------------------------------------------
// Server
// -----------------------------------------------------------------------------

// Server wraps the HTTP server and dependencies.
type Server struct {
	cfg          *config.Config
	gateway      *gatewayapi.Client
	sessions     *paysession.Manager
	sweeper      *paysession.Sweeper
	watcher      *watcher.Watcher
	hub          *realtime.Hub
	guard        *auth.Guard
	router       *gin.Engine
	httpSrv      *http.Server
	logger       *slog.Logger
	cancelRunCtx context.CancelFunc // cancels background goroutines started in Run

	// Health state
	ready   atomic.Bool
	healthy atomic.Bool
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithGateway sets a custom gateway client (for testing).
func WithGateway(client *gatewayapi.Client) Option {
	return func(s *Server) {
		s.gateway = client
	}
}

// New creates a new server instance.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	s := &Server{
		cfg:    cfg,
		logger: logging.New(cfg.LogLevel, cfg.LogFormat),
	}

	// Apply options first (may set gateway/logger)
	for _, opt := range opts {
		opt(s)
	}

	if s.gateway == nil {
		s.gateway = gatewayapi.New(cfg.GatewayURL, cfg.GatewayAPIKey,
			gatewayapi.WithLogger(s.logger),
			gatewayapi.WithTimeout(cfg.GatewayTimeout),
		)
	}

	// Realtime hub pushes step changes to open payment pages
	s.hub = realtime.NewHub(s.logger)

	// Payment sessions live only in memory; a fresh visit rebuilds from the
	// backend, so losing them on restart is harmless.
	s.sessions = paysession.NewManager(s.gateway, s.logger,
		paysession.WithTTL(cfg.SessionTTL),
		paysession.WithManagerEmitter(realtime.NewStepEmitter(s.hub)),
	)
	s.sweeper = paysession.NewSweeper(s.sessions, cfg.SweepInterval, s.logger)
	s.watcher = watcher.New(s.gateway, s.sessions, cfg.WatchInterval, s.logger)

	// Console auth relays the session cookie to the backend
	s.guard = auth.NewGuard(s.gateway, s.logger)

	// Configure gin
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()
	s.setupMiddleware()
	s.setupRoutes()

	s.healthy.Store(true)

	return s, nil
}

// -----------------------------------------------------------------------------
// Middleware
// -----------------------------------------------------------------------------

func (s *Server) setupMiddleware() {
	// Recovery with logging
	s.router.Use(gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logging.L(c.Request.Context()).Error("panic recovered",
			"error", recovered,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "An unexpected error occurred",
		})
	}))

	// Security headers
	s.router.Use(security.HeadersMiddleware())

	// CORS
	s.router.Use(security.CORSMiddleware(s.cfg.AllowedOrigins))

	// Request size limit (1MB)
	s.router.Use(validation.RequestSizeMiddleware(validation.MaxRequestSize))

	// Prometheus metrics
	s.router.Use(metrics.Middleware())

	// Request ID
	s.router.Use(s.requestIDMiddleware())

	// Logging
	s.router.Use(s.loggingMiddleware())
}

func (s *Server) requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Check for existing request ID (from load balancer, etc.)
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = idgen.New()
		}

		// Add to context
		ctx := logging.WithRequestID(c.Request.Context(), requestID)
		ctx = logging.WithLogger(ctx, s.logger)
		c.Request = c.Request.WithContext(ctx)

		// Set response header
		c.Header("X-Request-ID", requestID)

		c.Next()
	}
}

func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		logger := logging.L(c.Request.Context())

		// Log level based on status code
		switch {
		case status >= 500:
			logger.Error("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
				"client_ip", c.ClientIP(),
			)
		case status >= 400:
			logger.Warn("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		default:
			logger.Info("request completed",
				"method", c.Request.Method,
				"path", path,
				"status", status,
				"latency_ms", latency.Milliseconds(),
			)
		}
	}
}

// -----------------------------------------------------------------------------
// Routes
// -----------------------------------------------------------------------------

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	s.router.GET("/", func(c *gin.Context) {
		c.Redirect(http.StatusFound, "/console")
	})

	// PUBLIC PAYMENT PAGE - what a payer sees after checkout
	pay := s.router.Group("/pay")
	pay.Use(validation.InvoiceParamMiddleware())
	{
		pay.GET("/:invoiceId", s.paymentPageHandler)
	}

	// Payment session API - drives the page's state machine
	payAPI := s.router.Group("/api/pay/:invoiceId")
	payAPI.Use(validation.InvoiceParamMiddleware())
	{
		payAPI.GET("", s.paymentStateHandler)
		payAPI.POST("/network", s.selectNetworkHandler)
		payAPI.POST("/currency", s.selectCurrencyHandler)
		payAPI.POST("/address", s.generateAddressHandler)
		payAPI.POST("/back", s.backToSelectionHandler)
		payAPI.POST("/reset", s.resetSessionHandler)
	}

	// WebSocket for live payment status
	s.router.GET("/ws/:invoiceId", validation.InvoiceParamMiddleware(), func(c *gin.Context) {
		s.hub.HandleWebSocket(c.Writer, c.Request, c.Param("invoiceId"))
	})

	// AUTH - login/logout against the gateway backend
	s.router.GET("/login", s.loginPageHandler)
	s.router.POST("/login", s.loginHandler)
	s.router.POST("/logout", s.logoutHandler)

	// MERCHANT CONSOLE (authenticated pages)
	consolePages := s.router.Group("/console")
	consolePages.Use(s.guard.RequirePage())
	{
		consolePages.GET("", s.consolePageHandler)
	}

	consoleAPI := s.router.Group("/console/api")
	consoleAPI.Use(s.guard.RequireAPI())
	{
		consoleAPI.GET("/me", s.currentUserHandler)
		consoleAPI.GET("/stores", s.listStoresHandler)
		consoleAPI.GET("/invoices", s.listInvoicesHandler)
		consoleAPI.GET("/stores/:storeId/currencies", s.storeCurrenciesHandler)
		consoleAPI.PUT("/stores/:storeId/currencies/:currencyId", s.updateStoreCurrencyHandler)
	}

	// ADMIN CONSOLE (cross-store overview, admin role required)
	adminPages := s.router.Group("/admin")
	adminPages.Use(s.guard.RequirePage(), s.guard.RequireRole(auth.RoleAdmin))
	{
		adminPages.GET("", s.adminPageHandler)
	}

	adminAPI := s.router.Group("/admin/api")
	adminAPI.Use(s.guard.RequireAPI(), s.guard.RequireRole(auth.RoleAdmin))
	{
		adminAPI.GET("/invoices", s.adminInvoicesHandler)
	}
}

// -----------------------------------------------------------------------------
// Health handlers
// -----------------------------------------------------------------------------

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	// Check gateway connectivity
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := s.gateway.Ping(ctx); err != nil {
		checks["gateway"] = "unhealthy"
	} else {
		checks["gateway"] = "healthy"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v != "healthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Run starts the HTTP server with graceful shutdown.
func (s *Server) Run(ctx context.Context) error {
	// Cancellable context for background goroutines so Shutdown() can stop them.
	runCtx, cancel := context.WithCancel(ctx)
	s.cancelRunCtx = cancel

	s.httpSrv = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           s.router,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Channel to catch server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		s.logger.Info("starting server",
			"port", s.cfg.Port,
			"gateway", s.cfg.GatewayURL,
		)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Start realtime hub
	go s.hub.Run(runCtx)

	// Start idle-session sweeper
	go s.sweeper.Start(runCtx)

	// Start invoice status watcher
	go s.watcher.Start(runCtx)

	// Mark as ready after brief delay for startup
	go func() {
		time.Sleep(100 * time.Millisecond)
		s.ready.Store(true)
		s.logger.Info("server ready")
	}()

	// Wait for shutdown signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		s.logger.Info("shutdown signal received", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("context cancelled")
	}

	return s.Shutdown()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	s.ready.Store(false)
	s.logger.Info("starting graceful shutdown")

	// Cancel the context for all background goroutines (hub, sweeper, watcher)
	if s.cancelRunCtx != nil {
		s.cancelRunCtx()
	}

	// Give load balancers time to stop sending traffic
	if s.cfg.IsProduction() {
		time.Sleep(5 * time.Second)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpSrv.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}

	s.sweeper.Stop()
	s.watcher.Stop()
	s.sessions.CloseAll()
	s.logger.Info("payment sessions closed")

	s.logger.Info("server stopped")
	return nil
}

// Router returns the gin router for testing.
func (s *Server) Router() *gin.Engine {
	return s.router
}
