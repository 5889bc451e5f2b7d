package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
)

// WithError maps a typed error from pkg/errors.go to a non-200 unified
// envelope response, matching the teacher's common.WithError dispatch.
func WithError(c *fiber.Ctx, err error) error {
	var notFound pkg.EntityNotFoundError
	if errors.As(err, &notFound) {
		return errEnvelope(c, fiber.StatusNotFound, notFound.Code, notFound.Error())
	}

	var validation pkg.ValidationError
	if errors.As(err, &validation) {
		return errEnvelope(c, fiber.StatusBadRequest, validation.Code, validation.Error())
	}

	var business pkg.BusinessError
	if errors.As(err, &business) {
		status := fiber.StatusUnprocessableEntity
		if business.Code == constant.ErrInsufficientBalance {
			status = fiber.StatusPaymentRequired
		}

		return errEnvelope(c, status, business.Code, business.Message)
	}

	var unauthorized pkg.UnauthorizedError
	if errors.As(err, &unauthorized) {
		return errEnvelope(c, fiber.StatusUnauthorized, unauthorized.Code, unauthorized.Message)
	}

	var forbidden pkg.ForbiddenError
	if errors.As(err, &forbidden) {
		return errEnvelope(c, fiber.StatusForbidden, forbidden.Code, forbidden.Message)
	}

	var transient pkg.TransientError
	if errors.As(err, &transient) {
		return errEnvelope(c, fiber.StatusServiceUnavailable, transient.Code, transient.Message)
	}

	var internal pkg.InternalError
	if errors.As(err, &internal) {
		return errEnvelope(c, fiber.StatusInternalServerError, constant.ErrInternal, "internal error")
	}

	return errEnvelope(c, fiber.StatusInternalServerError, constant.ErrInternal, "internal error")
}

func errEnvelope(c *fiber.Ctx, status int, code, msg string) error {
	return c.Status(status).JSON(Envelope{Code: status, Data: fiber.Map{"errorCode": code}, Msg: msg})
}

// HandleFiberError is installed as fiber.Config.ErrorHandler so handlers
// that simply `return err` still produce the unified envelope.
func HandleFiberError(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return errEnvelope(c, fe.Code, constant.ErrInternal, fe.Message)
	}

	return WithError(c, err)
}
