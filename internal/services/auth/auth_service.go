package auth

import (
	"encoding/json"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/swapdeck/swapdeck-api/internal/config"
	"github.com/swapdeck/swapdeck-api/internal/guest"
	"github.com/swapdeck/swapdeck-api/internal/middleware"
	"github.com/swapdeck/swapdeck-api/internal/models"
	"github.com/swapdeck/swapdeck-api/internal/services/respond"
	"github.com/swapdeck/swapdeck-api/internal/storage"
	"github.com/swapdeck/swapdeck-api/internal/utils"
)

// AuthService authenticates Telegram Mini App users and folds pre-login guest
// activity into the account.
type AuthService struct {
	cfg         *config.Config
	store       *storage.Store
	jwtService  *utils.JWTService
	reconciler  *guest.Service
	initDataTTL time.Duration
}

// NewAuthService creates an AuthService.
func NewAuthService(cfg *config.Config, store *storage.Store, jwtService *utils.JWTService, reconciler *guest.Service) *AuthService {
	return &AuthService{
		cfg:         cfg,
		store:       store,
		jwtService:  jwtService,
		reconciler:  reconciler,
		initDataTTL: 24 * time.Hour,
	}
}

// GetJWTService exposes the token service for middleware wiring.
func (s *AuthService) GetJWTService() *utils.JWTService {
	return s.jwtService
}

type telegramAuthRequest struct {
	InitData string                   `json:"init_data"`
	GuestLog *models.GuestActivityLog `json:"guest_log,omitempty"`
}

// TelegramAuthHandler validates the Mini App init data, upserts the account
// and issues a JWT. When the payload carries a guest activity log it is
// merged into the account; guest_log_merged in the response tells the client
// it may clear its local copy.
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload telegramAuthRequest

	if err := c.Bind().Body(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request"})
	}

	if err := initdata.Validate(payload.InitData, s.cfg.TelegramBotToken, s.initDataTTL); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid Telegram data"})
	}

	data, err := initdata.Parse(payload.InitData)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Failed to parse initData"})
	}

	rawUser, _ := json.Marshal(data.User)
	user, err := s.store.UpsertTelegramUser(c.Context(), storage.TelegramProfile{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		PhotoURL:     data.User.PhotoURL,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
		RawData:      rawUser,
	})
	if err != nil {
		return respond.Error(c, err)
	}

	jwtToken, err := s.jwtService.GenerateToken(user.ID)
	if err != nil {
		logrus.WithError(err).Error("failed to sign token")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate JWT"})
	}

	guestLogMerged := false
	if payload.GuestLog != nil {
		if err := s.reconciler.Reconcile(c.Context(), user.ID, payload.GuestLog); err != nil {
			// The client keeps its log and retries on the next login.
			logrus.WithError(err).WithField("user_id", user.ID).Warn("guest log reconciliation failed")
		} else {
			guestLogMerged = true
		}
	}

	return c.JSON(fiber.Map{
		"token":            jwtToken,
		"user":             user,
		"guest_log_merged": guestLogMerged,
	})
}

// Me returns the authenticated user's profile.
func (s *AuthService) Me(c fiber.Ctx) error {
	userID := middleware.UserID(c)

	user, err := s.store.GetUser(c.Context(), userID)
	if err != nil {
		return respond.Error(c, err)
	}

	return c.JSON(fiber.Map{"user": user})
}
