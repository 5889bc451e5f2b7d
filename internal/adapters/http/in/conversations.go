package in

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/conversation"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// ConversationHandler serves the /conversations endpoints (C4 reads/writes
// outside the chat-turn hot path).
type ConversationHandler struct {
	Conversations conversation.Repository
}

// List returns a paginated conversation list for the authenticated caller.
func (h *ConversationHandler) List(c *fiber.Ctx) error {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"})
	}

	page, limit := mhttp.Pagination(c)

	filter := mmodel.ConversationFilter{
		Status:  mmodel.ConversationStatus(c.Query("status")),
		Keyword: c.Query("keyword"),
		Page:    mmodel.Pagination{Page: page, Limit: limit},
	}

	items, err := h.Conversations.List(c.UserContext(), userID, filter)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, mmodel.Page{Items: items, Page: page, Limit: limit, Total: len(items)})
}

// Get returns a conversation with its messages, enforcing ownership.
func (h *ConversationHandler) Get(c *fiber.Ctx) error {
	userID, convID, err := h.authorizedConversation(c)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	detail, err := h.Conversations.Get(c.UserContext(), convID)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	if detail.Conversation.OwnerID != userID {
		return mhttp.WithError(c, pkg.ForbiddenError{Message: "conversation belongs to another user"})
	}

	return mhttp.OK(c, detail)
}

// UpdateTitleInput is the PUT /conversations/{id}/title request body.
type UpdateTitleInput struct {
	Title string `json:"title" validate:"required"`
}

// UpdateTitle renames a conversation after verifying ownership.
func (h *ConversationHandler) UpdateTitle(i any, c *fiber.Ctx) error {
	payload := i.(*UpdateTitleInput)

	_, convID, err := h.authorizedOwnedConversation(c)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	if err := h.Conversations.UpdateTitle(c.UserContext(), convID, payload.Title); err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.NoContent(c)
}

// Archive marks a conversation archived after verifying ownership.
func (h *ConversationHandler) Archive(c *fiber.Ctx) error {
	_, convID, err := h.authorizedOwnedConversation(c)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	if err := h.Conversations.Archive(c.UserContext(), convID); err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.NoContent(c)
}

// Delete removes a conversation (cascading its messages) after verifying
// ownership.
func (h *ConversationHandler) Delete(c *fiber.Ctx) error {
	_, convID, err := h.authorizedOwnedConversation(c)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	if err := h.Conversations.Delete(c.UserContext(), convID); err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.NoContent(c)
}

func (h *ConversationHandler) authorizedConversation(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return uuid.UUID{}, uuid.UUID{}, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"}
	}

	convID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, pkg.ValidationError{Code: constant.ErrValidation, Message: "malformed conversation id"}
	}

	return userID, convID, nil
}

// authorizedOwnedConversation additionally loads the conversation to verify
// ownership before a write, since UpdateTitle/Archive/Delete operate
// directly by id without a read-back.
func (h *ConversationHandler) authorizedOwnedConversation(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	userID, convID, err := h.authorizedConversation(c)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, err
	}

	detail, err := h.Conversations.Get(c.UserContext(), convID)
	if err != nil {
		return uuid.UUID{}, uuid.UUID{}, err
	}

	if detail.Conversation.OwnerID != userID {
		return uuid.UUID{}, uuid.UUID{}, pkg.ForbiddenError{Message: "conversation belongs to another user"}
	}

	return userID, convID, nil
}
