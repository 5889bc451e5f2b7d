package in

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/creatorplatform/gateway-core/internal/services/token"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// UserIDLocal is the fiber.Ctx.Locals key RequireAuth stores the
// authenticated user id under.
const UserIDLocal = "user_id"

// RequireAuth validates the `Authorization: Bearer <access_token>` header
// against the Token Session service, per spec.md §6 ("Auth header" note).
// The refresh endpoint must not be wrapped by this middleware, since its
// caller's access token is often already expired.
func RequireAuth(tokens *token.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing Authorization header"})
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "malformed Authorization header"})
		}

		userID, err := tokens.Authenticate(c.UserContext(), parts[1])
		if err != nil {
			return mhttp.WithError(c, err)
		}

		c.Locals(UserIDLocal, userID)

		return c.Next()
	}
}
