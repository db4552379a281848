package cloudinary

import (
	"fmt"
	"net/url"
	"time"

	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/config"
	"github.com/swapdeck/swapdeck-api/internal/utils"
)

// CloudinaryService issues signed upload parameters so clients can upload
// listing images straight to Cloudinary.
type CloudinaryService struct {
	cfg        *config.Config
	jwtService *utils.JWTService
}

// NewCloudinaryService creates a CloudinaryService.
func NewCloudinaryService(cfg *config.Config, jwtService *utils.JWTService) *CloudinaryService {
	return &CloudinaryService{cfg: cfg, jwtService: jwtService}
}

// GenerateUploadParams returns a signed parameter set for a direct upload.
// The signature covers everything the client is allowed to send, so it cannot
// change the folder or preset without invalidating it.
func (s *CloudinaryService) GenerateUploadParams(c fiber.Ctx) error {
	listingID := c.Query("listing_id")
	if listingID == "" {
		listingID = uuid.New().String()
	}

	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	folder := fmt.Sprintf("%s/%s", s.cfg.CloudinaryConfig.UploadFolder, listingID)

	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", folder)
	params.Set("upload_preset", s.cfg.CloudinaryConfig.UploadPreset)

	signature, err := api.SignParameters(params, s.cfg.CloudinaryConfig.APISecret)
	if err != nil {
		logrus.WithError(err).Error("failed to sign upload parameters")
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to sign upload parameters"})
	}

	return c.JSON(fiber.Map{
		"timestamp":     timestamp,
		"signature":     signature,
		"api_key":       s.cfg.CloudinaryConfig.APIKey,
		"cloud_name":    s.cfg.CloudinaryConfig.CloudName,
		"folder":        folder,
		"upload_preset": s.cfg.CloudinaryConfig.UploadPreset,
		"listing_id":    listingID,
	})
}
