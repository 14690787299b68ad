package handlers

import (
	"errors"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/models"

	"github.com/gofiber/fiber/v3"
)

func errorStatus(err error) int {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return fiber.StatusBadRequest
	}

	switch models.IdentityCode(err) {
	case models.CodeInvalidEmail, models.CodeWeakPassword, models.CodePopupClosedByUser:
		return fiber.StatusBadRequest
	case models.CodeUserNotFound, models.CodeWrongPassword, models.CodeInvalidCredential, models.CodeInvalidToken:
		return fiber.StatusUnauthorized
	case models.CodeEmailAlreadyInUse:
		return fiber.StatusConflict
	case models.CodeTooManyRequests:
		return fiber.StatusTooManyRequests
	case models.CodeProviderError:
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes the form-level message for err. Provider detail stays in the logs.
func respondError(c fiber.Ctx, err error) error {
	return c.Status(errorStatus(err)).JSON(fiber.Map{
		"error": models.UserMessage(err),
	})
}
