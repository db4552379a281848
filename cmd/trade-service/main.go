package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/config"
	"github.com/swapdeck/swapdeck-api/internal/db"
	"github.com/swapdeck/swapdeck-api/internal/guest"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/notifier"
	"github.com/swapdeck/swapdeck-api/internal/offer"
	"github.com/swapdeck/swapdeck-api/internal/services/auth"
	"github.com/swapdeck/swapdeck-api/internal/services/cloudinary"
	"github.com/swapdeck/swapdeck-api/internal/services/favorite"
	"github.com/swapdeck/swapdeck-api/internal/services/listing"
	tradesvc "github.com/swapdeck/swapdeck-api/internal/services/trade"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	"github.com/swapdeck/swapdeck-api/internal/trade"
	"github.com/swapdeck/swapdeck-api/internal/utils"
	"github.com/swapdeck/swapdeck-api/internal/valuation"
	ws "github.com/swapdeck/swapdeck-api/internal/websocket"
)

func main() {
	cfg := config.Load()

	logrus.SetFormatter(&logrus.JSONFormatter{})
	if cfg.AppEnv == "development" {
		logrus.SetFormatter(&logrus.TextFormatter{})
		logrus.SetLevel(logrus.DebugLevel)
	}

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logrus.WithError(err).Fatal("failed to run migrations")
	}

	pool, err := db.Connect(cfg)
	if err != nil {
		logrus.WithError(err).Fatal("failed to connect to database")
	}
	defer pool.Close()

	store := storage.New(pool)
	jwtService := utils.NewJWTService(cfg.JWTSecret)

	wsManager := ws.NewManager()
	defer wsManager.Shutdown()

	events := buildNotifier(cfg, wsManager)

	valuer := valuation.NewEngine(models.Money(cfg.TradeConfig.ServiceHourlyRate), valuation.DefaultFairnessTolerance)
	manager := trade.NewManager(store, valuer, events, cfg.TradeConfig.PendingTTL)

	limits := offer.DefaultLimits()
	limits.CashCeiling = models.Money(cfg.TradeConfig.CashCeiling)

	reconciler := guest.NewService(store)

	authService := auth.NewAuthService(cfg, store, jwtService, reconciler)
	listingService := listing.NewListingService(store, jwtService)
	favoriteService := favorite.NewFavoriteService(store, jwtService)
	tradeService := tradesvc.NewTradeService(store, manager, limits, jwtService)
	cloudinaryService := cloudinary.NewCloudinaryService(cfg, jwtService)

	app := fiber.New(fiber.Config{
		AppName:      "Swapdeck API",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowCredentials: false,
	}))

	authService.SetupRoutes(app)
	listingService.SetupPublicRoutes(app)
	listingService.SetupRoutes(app)
	favoriteService.SetupRoutes(app)
	tradeService.SetupRoutes(app)
	cloudinaryService.SetupRoutes(app)

	// The websocket handshake runs on its own listener because gorilla needs
	// a net/http ResponseWriter.
	wsServer := &http.Server{
		Addr:    ":" + cfg.WebsocketPort,
		Handler: ws.Handler(wsManager, jwtService),
	}
	go func() {
		logrus.WithField("port", cfg.WebsocketPort).Info("websocket listener started")
		if err := wsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithError(err).Fatal("websocket listener failed")
		}
	}()

	go func() {
		logrus.WithField("port", cfg.Port).Info("API listener started")
		if err := app.Listen(":" + cfg.Port); err != nil {
			logrus.WithError(err).Fatal("API listener failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("shutting down")
	_ = wsServer.Shutdown(context.Background())
	_ = app.Shutdown()
}

// buildNotifier assembles the event fan-out: websocket push always, webhook
// delivery when a URL is configured.
func buildNotifier(cfg *config.Config, wsManager *ws.Manager) notifier.Notifier {
	targets := []notifier.Notifier{wsManager}
	if cfg.NotifierConfig.WebhookURL != "" {
		targets = append(targets, notifier.NewWebhookNotifier(cfg.NotifierConfig.WebhookURL, nil))
	}
	if len(targets) == 1 {
		return targets[0]
	}
	return notifier.NewMulti(targets...)
}

func errorHandler(c fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
	}

	return c.Status(code).JSON(fiber.Map{
		"error": err.Error(),
	})
}
