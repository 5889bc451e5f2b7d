package in

import (
	"bufio"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/internal/services/orchestrator"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// ChatHandler serves POST /chat, the Stream Orchestrator's only entry point.
type ChatHandler struct {
	Orchestrator *orchestrator.Orchestrator
}

// ChatInput is the POST /chat request body.
type ChatInput struct {
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	AgentID        *uuid.UUID `json:"agentId,omitempty"`
	ProjectID      *uuid.UUID `json:"projectId,omitempty"`
	Text           string     `json:"text" validate:"required"`
	ModelHint      string     `json:"modelHint,omitempty"`
}

// Chat streams an SSE response for one turn. The body is parsed by hand
// rather than through WithBody, since the handler must control the response
// stream writer itself instead of returning a value for fiber to encode.
func (h *ChatHandler) Chat(c *fiber.Ctx) error {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"})
	}

	var payload ChatInput
	if err := c.BodyParser(&payload); err != nil || payload.Text == "" {
		return mhttp.WithError(c, pkg.ValidationError{Code: constant.ErrValidation, Message: "text is required"})
	}

	req := orchestrator.ChatRequest{
		UserID:         userID,
		ConversationID: payload.ConversationID,
		AgentID:        payload.AgentID,
		ProjectID:      payload.ProjectID,
		Text:           payload.Text,
		ModelHint:      payload.ModelHint,
	}

	ctx := c.UserContext()

	// Headers must be set before the stream writer starts, not inside it:
	// once SetBodyStreamWriter begins writing, the header section has
	// already been flushed to the connection.
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		sse := mhttp.NewSSEWriterForWriter(w)

		// HandleChat's own error path already emits an ErrorFrame; its
		// return value exists for the caller to log, not to react to
		// further (the stream has already closed either way).
		_ = h.Orchestrator.HandleChat(ctx, req, sse)
	})

	return nil
}
