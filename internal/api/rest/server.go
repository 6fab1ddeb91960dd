package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/GuiSarIot/backend-iot-agro/internal/api/websocket"
	"github.com/GuiSarIot/backend-iot-agro/internal/auth"
	"github.com/GuiSarIot/backend-iot-agro/internal/config"
	"github.com/GuiSarIot/backend-iot-agro/internal/devices"
	"github.com/GuiSarIot/backend-iot-agro/internal/notify"
	"github.com/GuiSarIot/backend-iot-agro/internal/provisioning"
	"github.com/GuiSarIot/backend-iot-agro/internal/secrets"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Server struct {
	router      *gin.Engine
	logger      *zap.Logger
	server      *http.Server
	cfg         *config.Config
	store       *storage.PostgresClient
	devices     *devices.Manager
	engine      *provisioning.Engine
	codec       *secrets.Codec
	authService *auth.AuthService
	wsHub       *websocket.Hub
	alerts      *notify.Dispatcher
}

func NewServer(cfg *config.Config, store *storage.PostgresClient, dm *devices.Manager,
	engine *provisioning.Engine, codec *secrets.Codec, authService *auth.AuthService,
	wsHub *websocket.Hub, alerts *notify.Dispatcher, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		router:      gin.New(),
		logger:      logger,
		cfg:         cfg,
		store:       store,
		devices:     dm,
		engine:      engine,
		codec:       codec,
		authService: authService,
		wsHub:       wsHub,
		alerts:      alerts,
	}

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST API server", zap.String("address", s.server.Addr))
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Fatal("REST server failed", zap.Error(err))
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down REST API server")
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	// Middleware
	s.router.Use(gin.Recovery())
	s.router.Use(LoggerMiddleware(s.logger))
	s.router.Use(CORSMiddleware())

	// Public routes (no auth required)
	s.router.GET("/health", s.healthCheck)

	// API v1
	v1 := s.router.Group("/api/v1")
	{
		// ==================== AUTH ENDPOINTS (PUBLIC) ====================
		authPublic := v1.Group("/auth")
		{
			authPublic.POST("/login", s.login)
			authPublic.POST("/refresh", s.refreshToken)
		}

		// ==================== AUTH ENDPOINTS (AUTHENTICATED) ====================
		authProtected := v1.Group("/auth")
		authProtected.Use(s.authService.AuthMiddleware())
		{
			authProtected.POST("/logout", s.logout)
			authProtected.GET("/me", s.getCurrentUser)
			authProtected.PATCH("/me/contact", s.updateOwnContact)
		}

		// ==================== USER MANAGEMENT (ADMIN ONLY) ====================
		users := v1.Group("/users")
		users.Use(s.authService.AuthMiddleware())
		users.Use(auth.RequireRole(auth.RoleAdmin))
		{
			users.POST("", s.createUser)
			users.GET("", s.listUsers)
			users.PATCH("/:id", s.updateUser)
			users.DELETE("/:id", s.deleteUser)
		}

		// ==================== DEVICES ====================
		devices := v1.Group("/devices")
		devices.Use(s.authService.AuthMiddleware())
		{
			// Read operations: Operator+
			devices.GET("", auth.RequireRole(auth.RoleOperator), s.listDevices)
			devices.GET("/:id", auth.RequireRole(auth.RoleOperator), s.getDevice)

			// Status reports arrive from edge agents with operator tokens
			devices.POST("/:id/status", auth.RequireRole(auth.RoleOperator), s.reportDeviceStatus)

			// Write operations: Technician+
			devices.POST("", auth.RequireRole(auth.RoleTechnician), s.createDevice)
			devices.PUT("/:id", auth.RequireRole(auth.RoleTechnician), s.updateDevice)
			devices.DELETE("/:id", auth.RequireRole(auth.RoleAdmin), s.deleteDevice)

			// Secret material: Admin only
			devices.GET("/:id/credentials", auth.RequireRole(auth.RoleAdmin), s.getDeviceCredentials)
			devices.POST("/:id/rotate-password", auth.RequireRole(auth.RoleAdmin), s.rotateDevicePassword)
		}

		// ==================== SENSOR REGISTRY ====================
		sensors := v1.Group("/sensors")
		sensors.Use(s.authService.AuthMiddleware())
		{
			sensors.GET("", auth.RequireRole(auth.RoleOperator), s.listSensors)
			sensors.GET("/types", auth.RequireRole(auth.RoleOperator), s.listSensorTypes)
			sensors.GET("/:id", auth.RequireRole(auth.RoleOperator), s.getSensor)

			sensors.POST("", auth.RequireRole(auth.RoleTechnician), s.createSensor)
			sensors.PUT("/:id", auth.RequireRole(auth.RoleTechnician), s.updateSensor)
			sensors.DELETE("/:id", auth.RequireRole(auth.RoleAdmin), s.deleteSensor)
		}

		// ==================== SENSOR READINGS ====================
		readings := v1.Group("/readings")
		readings.Use(s.authService.AuthMiddleware())
		readings.Use(auth.RequireRole(auth.RoleOperator))
		{
			// Ingest arrives from edge agents with operator tokens
			readings.POST("", s.ingestReading)
			readings.POST("/bulk", s.ingestReadingsBulk)

			readings.GET("", s.listReadings)
			readings.GET("/stats", s.getReadingStats)
			readings.GET("/latest", s.getLatestReadings)
		}

		// ==================== BROKER IDENTITIES / ACL (ADMIN ONLY) ====================
		emqx := v1.Group("/emqx")
		emqx.Use(s.authService.AuthMiddleware())
		emqx.Use(auth.RequireRole(auth.RoleAdmin))
		{
			emqx.GET("/users", s.listBrokerIdentities)
			emqx.GET("/users/:username/acl", s.listACLForUsername)
			emqx.GET("/acl", s.listACLRules)
			emqx.POST("/acl", s.createACLRule)
			emqx.DELETE("/acl/:id", s.deleteACLRule)
		}

		// ==================== BROKER ENDPOINTS ====================
		brokers := v1.Group("/brokers")
		brokers.Use(s.authService.AuthMiddleware())
		{
			brokers.GET("", auth.RequireRole(auth.RoleOperator), s.listBrokers)
			brokers.GET("/:id", auth.RequireRole(auth.RoleOperator), s.getBroker)
			brokers.POST("/:id/test-connection", auth.RequireRole(auth.RoleTechnician), s.testBrokerConnection)

			brokers.POST("", auth.RequireRole(auth.RoleAdmin), s.createBroker)
			brokers.PUT("/:id", auth.RequireRole(auth.RoleAdmin), s.updateBroker)
			brokers.DELETE("/:id", auth.RequireRole(auth.RoleAdmin), s.deleteBroker)
			brokers.POST("/:id/activate", auth.RequireRole(auth.RoleAdmin), s.activateBroker)
			brokers.POST("/:id/deactivate", auth.RequireRole(auth.RoleAdmin), s.deactivateBroker)
		}

		// ==================== TOPIC REGISTRY ====================
		topics := v1.Group("/topics")
		topics.Use(s.authService.AuthMiddleware())
		{
			topics.GET("", auth.RequireRole(auth.RoleOperator), s.listTopics)
			topics.GET("/:id", auth.RequireRole(auth.RoleOperator), s.getTopic)

			topics.POST("", auth.RequireRole(auth.RoleAdmin), s.createTopic)
			topics.PUT("/:id", auth.RequireRole(auth.RoleAdmin), s.updateTopic)
			topics.DELETE("/:id", auth.RequireRole(auth.RoleAdmin), s.deleteTopic)
		}

		// ==================== DEVICE MQTT CONFIGS ====================
		configs := v1.Group("/device-configs")
		configs.Use(s.authService.AuthMiddleware())
		{
			configs.GET("", auth.RequireRole(auth.RoleOperator), s.listDeviceConfigs)
			configs.GET("/device/:deviceId", auth.RequireRole(auth.RoleOperator), s.getDeviceConfigByDevice)

			configs.POST("", auth.RequireRole(auth.RoleTechnician), s.createDeviceConfig)
			configs.PUT("/:id", auth.RequireRole(auth.RoleTechnician), s.updateDeviceConfig)
			configs.PUT("/:id/subscriptions", auth.RequireRole(auth.RoleTechnician), s.setDeviceConfigSubscriptions)
		}

		// ==================== SYSTEM (OPERATOR+) ====================
		system := v1.Group("/system")
		system.Use(s.authService.AuthMiddleware())
		system.Use(auth.RequireRole(auth.RoleOperator))
		{
			system.GET("/status", s.getSystemStatus)
		}

		// ==================== WEBSOCKET ====================
		ws := v1.Group("/ws")
		{
			ws.GET("/live", s.wsLiveConnection)
		}
	}
}

// WebSocket handlers
func (s *Server) wsLiveConnection(c *gin.Context) {
	websocket.ServeWS(s.wsHub, c.Writer, c.Request)
}

// Health check (public)
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}
