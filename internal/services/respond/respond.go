// Package respond converts internal errors into HTTP responses shared by all
// API services.
package respond

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/swapdeck/swapdeck-api/internal/apperror"
)

// Error writes the error as a JSON response. Typed errors keep their code and
// message; anything else is logged and masked as an internal error.
func Error(c fiber.Ctx, err error) error {
	var appErr *apperror.Error
	if errors.As(err, &appErr) {
		if appErr.Code == apperror.CodeStorage {
			logrus.WithError(err).Error("storage error")
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Internal server error",
			})
		}
		return c.Status(apperror.HTTPStatus(appErr)).JSON(fiber.Map{
			"error": appErr.Message,
			"code":  appErr.Code,
		})
	}

	logrus.WithError(err).Error("unhandled error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Internal server error",
	})
}
