package serverutils

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"ai-pdfchat/pkg/apperror"
)

// StatusFor maps an error returned by a handler to its HTTP status and the
// message shown to the client.
func StatusFor(err error) (int, string) {
	var (
		fiberErr *fiber.Error
		valErr   *ValidationError
		extErr   *apperror.ExternalServiceError
	)

	switch {
	case errors.As(err, &fiberErr):
		return fiberErr.Code, fiberErr.Message
	case errors.As(err, &valErr):
		return fiber.StatusBadRequest, valErr.Error()
	case errors.Is(err, apperror.ErrEmptyInput), errors.Is(err, apperror.ErrEmptyQuestion):
		return fiber.StatusBadRequest, err.Error()
	case errors.Is(err, apperror.ErrNotReady), errors.Is(err, apperror.ErrBusy):
		return fiber.StatusConflict, err.Error()
	case errors.As(err, &extErr):
		return fiber.StatusBadGateway, err.Error()
	default:
		return fiber.StatusInternalServerError, "internal server error"
	}
}

func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		code, msg := StatusFor(err)
		return ctx.Status(code).JSON(ErrorResponse(code, msg))
	}
}
