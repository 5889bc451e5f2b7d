// Package in holds the Fiber-facing HTTP handlers for every endpoint in
// spec.md §6, grounded on the teacher's handler-struct-holding-use-cases
// layout (internal/adapters/http/in/account.go).
package in

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/internal/services/token"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// AuthHandler serves POST /auth/login, POST /auth/refresh, GET /auth/user.
type AuthHandler struct {
	Tokens *token.Service
}

// LoginInput is the POST /auth/login request body.
type LoginInput struct {
	PlatformCode string `json:"platformCode" validate:"required"`
}

// Login exchanges a platform auth code for a token pair and user info.
func (h *AuthHandler) Login(i any, c *fiber.Ctx) error {
	payload := i.(*LoginInput)

	pair, acc, err := h.Tokens.Login(c.UserContext(), payload.PlatformCode)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
		"user":         acc,
	})
}

// RefreshInput is the POST /auth/refresh request body.
type RefreshInput struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

// Refresh rotates a token pair. Must not sit behind RequireAuth - the usual
// caller presents an already-expired access token (spec.md §6).
func (h *AuthHandler) Refresh(i any, c *fiber.Ctx) error {
	payload := i.(*RefreshInput)

	pair, err := h.Tokens.Refresh(c.UserContext(), payload.RefreshToken)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

// CurrentUser returns the authenticated caller's account detail.
func (h *AuthHandler) CurrentUser(c *fiber.Ctx) error {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"})
	}

	acc, err := h.Tokens.CurrentUser(c.UserContext(), userID)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, acc)
}
