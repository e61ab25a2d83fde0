// Package gateway serves the storefront HTTP API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/discovery"
	"github.com/example/storefront/pkg/middleware"
	"github.com/example/storefront/pkg/orders"
	"github.com/example/storefront/pkg/repository"
)

type Gateway struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger
	router    *gin.Engine
	server    *http.Server

	mu       sync.Mutex
	instance *discovery.ServiceInstance

	db     *repository.Database
	tokens *auth.TokenService
	hasher *auth.PasswordHasher
	orders *orders.Engine

	now   func() time.Time
	newID func() string
}

// NewGateway builds the router. disc may be nil when etcd is not configured.
func NewGateway(cfg *config.Config, logger *zap.Logger, db *repository.Database, disc *discovery.ServiceDiscovery) *Gateway {
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	registerValidation()

	g := &Gateway{
		config:    cfg,
		discovery: disc,
		logger:    logger,
		db:        db,
		tokens:    auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		hasher:    auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		orders:    orders.NewEngine(db, logger.Named("orders")),
		now:       time.Now,
		newID:     uuid.NewString,
	}

	router := gin.New()
	router.Use(gin.CustomRecovery(g.recoverPanic))
	router.Use(loggerMiddleware(logger))
	router.Use(cors.New(corsConfig(cfg.Server.CORSOrigins)))
	g.router = router
	// Built here so Shutdown never races Start for the field.
	g.server = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return g
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	if len(origins) == 0 {
		c.AllowAllOrigins = true
		return c
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/", g.root)
	g.router.GET("/health", g.health)

	requireAuth := middleware.RequireAuth(g.tokens, g.db, g.logger.Named("auth"))
	requireAdmin := middleware.RequireAdmin()
	requireOwner := middleware.RequireOwnership(middleware.OwnerFromRequest)

	api := g.router.Group("/api")
	{
		api.POST("/register", g.register)
		api.POST("/login", g.login)

		users := api.Group("/users", requireAuth)
		{
			users.GET("", requireAdmin, g.listUsers)
			users.GET("/:userId", requireOwner, g.getUser)
			users.PATCH("/:userId", requireOwner, g.updateUser)
		}

		products := api.Group("/products")
		{
			products.GET("", g.listProducts)
			products.GET("/:productId", g.getProduct)
			products.POST("", requireAuth, requireAdmin, g.createProduct)
			products.PUT("/:productId", requireAuth, requireAdmin, g.updateProduct)
			products.DELETE("/:productId", requireAuth, requireAdmin, g.deleteProduct)
		}

		orderRoutes := api.Group("/orders", requireAuth)
		{
			orderRoutes.GET("", requireAdmin, g.listOrders)
			orderRoutes.GET("/user/:userId", requireOwner, g.listUserOrders)
			orderRoutes.POST("/placeOrder", g.placeOrder)
			orderRoutes.GET("/:orderId", g.getOrder)
			orderRoutes.PATCH("/:orderId/status", requireAdmin, g.updateOrderStatus)
		}
	}

	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	g.router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Endpoint not found"})
	})
}

// Handler exposes the router, mostly for tests.
func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves until Shutdown is called. The instance is announced in etcd
// when discovery is configured.
func (g *Gateway) Start(ctx context.Context) error {
	if g.discovery != nil {
		instance := &discovery.ServiceInstance{
			Name: g.config.Server.Name,
			Host: g.config.Server.Host,
			Port: g.config.Server.Port,
		}
		if err := g.discovery.Register(ctx, instance); err != nil {
			g.logger.Warn("Failed to register with etcd, continuing without service discovery", zap.Error(err))
		} else {
			g.mu.Lock()
			g.instance = instance
			g.mu.Unlock()
		}
	}

	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

// Shutdown stops the server. Called before Start, it makes a later Start
// return immediately.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	instance := g.instance
	g.instance = nil
	g.mu.Unlock()

	if g.discovery != nil && instance != nil {
		if err := g.discovery.Deregister(ctx, instance); err != nil {
			g.logger.Warn("Failed to deregister from etcd", zap.Error(err))
		}
	}
	if err := g.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}

func (g *Gateway) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message": "Welcome to the Online Store API",
		"version": "1.0.0",
		"endpoints": gin.H{
			"auth": gin.H{
				"login":    "POST /api/login",
				"register": "POST /api/register",
			},
			"users":    "GET /api/users (admin only)",
			"products": "GET /api/products",
			"orders": gin.H{
				"getAll":        "GET /api/orders (admin only)",
				"getUserOrders": "GET /api/orders/user/:userId",
				"placeOrder":    "POST /api/orders/placeOrder",
			},
		},
	})
}

func (g *Gateway) health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := g.db.Ping(ctx); err != nil {
		g.logger.Warn("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if user, ok := middleware.CurrentUser(c); ok {
			fields = append(fields, zap.String("user_id", user.ID))
		}
		logger.Info("HTTP request", fields...)
	}
}
