package in

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"

	"github.com/creatorplatform/gateway-core/internal/services/token"
	"github.com/creatorplatform/gateway-core/pkg/mlog"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// Handlers bundles every HTTP handler the router needs to wire, so
// bootstrap can construct them independently of route registration.
type Handlers struct {
	Auth          *AuthHandler
	Chat          *ChatHandler
	Conversations *ConversationHandler
	Coin          *CoinHandler
	Tokens        *token.Service
}

// NewRouter registers every route from spec.md §6 under /api/v1/client.
func NewRouter(logger mlog.Logger, h Handlers) *fiber.App {
	f := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          mhttp.HandleFiberError,
	})

	f.Use(cors.New())
	f.Use(mhttp.WithCorrelationID())
	f.Use(mhttp.WithLogging(logger))

	f.Get("/health", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	api := f.Group("/api/v1/client")

	// Login and refresh carry their own credentials and must not sit
	// behind RequireAuth - the refresh caller's access token is often
	// already expired.
	api.Post("/auth/login", mhttp.WithBody(new(LoginInput), h.Auth.Login))
	api.Post("/auth/refresh", mhttp.WithBody(new(RefreshInput), h.Auth.Refresh))

	authed := api.Group("", RequireAuth(h.Tokens))

	authed.Get("/auth/user", h.Auth.CurrentUser)

	authed.Post("/chat", h.Chat.Chat)

	authed.Get("/conversations", h.Conversations.List)
	authed.Get("/conversations/:id", h.Conversations.Get)
	authed.Put("/conversations/:id/title", mhttp.WithBody(new(UpdateTitleInput), h.Conversations.UpdateTitle))
	authed.Post("/conversations/:id/archive", h.Conversations.Archive)
	authed.Delete("/conversations/:id", h.Conversations.Delete)

	authed.Get("/coin/balance", h.Coin.Balance)
	authed.Get("/coin/transactions", h.Coin.Transactions)

	return f
}
