package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/GuiSarIot/backend-iot-agro/internal/api/rest"
	"github.com/GuiSarIot/backend-iot-agro/internal/api/websocket"
	"github.com/GuiSarIot/backend-iot-agro/internal/auth"
	"github.com/GuiSarIot/backend-iot-agro/internal/config"
	"github.com/GuiSarIot/backend-iot-agro/internal/devices"
	"github.com/GuiSarIot/backend-iot-agro/internal/notify"
	"github.com/GuiSarIot/backend-iot-agro/internal/provisioning"
	"github.com/GuiSarIot/backend-iot-agro/internal/secrets"
	"github.com/GuiSarIot/backend-iot-agro/internal/storage"
	"go.uber.org/zap"
)

func main() {
	// Logger initialisieren
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	// Config laden
	cfg, err := config.Load("configs/config.yaml")
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	logger.Info("Config loaded successfully")

	// PostgreSQL verbinden
	db, err := storage.NewPostgresClient(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	logger.Info("Database connected successfully")

	ctx := context.Background()
	if err := db.EnsureSchema(ctx); err != nil {
		logger.Fatal("Failed to ensure database schema", zap.Error(err))
	}

	// Secret codec for operator-recoverable passwords
	codec, err := secrets.NewCodec(cfg.MQTT.GetEncryptionKey())
	if err != nil {
		logger.Fatal("Failed to initialize secret codec", zap.Error(err))
	}

	// Device manager with the provisioning engine on its lifecycle hooks
	deviceManager, err := devices.NewManager(db, logger)
	if err != nil {
		logger.Fatal("Failed to create device manager", zap.Error(err))
	}

	engine := provisioning.NewEngine(cfg.MQTT.Namespace, codec, logger)
	engine.Register(deviceManager)

	// Startup seeds
	if err := provisioning.SeedTopics(ctx, db, cfg.MQTT.TopicSeedFile, logger); err != nil {
		logger.Fatal("Failed to seed topic registry", zap.Error(err))
	}
	if err := provisioning.EnsureAdminIdentity(ctx, db, cfg.MQTT.AdminUsername, cfg.MQTT.GetAdminPassword(), logger); err != nil {
		logger.Fatal("Failed to bootstrap admin broker identity", zap.Error(err))
	}

	// Console auth
	authService := auth.NewAuthService(db, cfg.Auth)

	// Alert channels
	var telegram, email notify.Notifier
	if token := os.Getenv(cfg.Notify.TelegramTokenEnv); token != "" {
		telegram = notify.NewTelegramNotifier(token, cfg.Notify.SendTimeout)
	}
	if cfg.Notify.SMTPHost != "" {
		email = notify.NewEmailNotifier(
			cfg.Notify.SMTPHost,
			cfg.Notify.SMTPPort,
			cfg.Notify.SMTPUser,
			os.Getenv(cfg.Notify.SMTPPasswordEnv),
			cfg.Notify.FromAddress,
		)
	}
	alerts := notify.NewDispatcher(telegram, email, logger)

	// WebSocket status stream
	wsHub := websocket.NewHub(logger)
	go wsHub.Run()

	// REST API
	server := rest.NewServer(cfg, db, deviceManager, engine, codec, authService, wsHub, alerts, logger)
	if err := server.Start(); err != nil {
		logger.Fatal("Failed to start REST server", zap.Error(err))
	}

	logger.Info("IoT backend started successfully")

	// Graceful Shutdown auf Signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("IoT backend stopped successfully")
}
