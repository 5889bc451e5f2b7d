package in

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/creatorplatform/gateway-core/internal/adapters/postgres/ledger"
	"github.com/creatorplatform/gateway-core/pkg"
	"github.com/creatorplatform/gateway-core/pkg/constant"
	"github.com/creatorplatform/gateway-core/pkg/mmodel"
	mhttp "github.com/creatorplatform/gateway-core/pkg/net/http"
)

// CoinHandler serves the /coin endpoints backed by the Credit Ledger (C1).
type CoinHandler struct {
	Ledger ledger.Repository
}

// Balance returns the authenticated caller's balance snapshot.
func (h *CoinHandler) Balance(c *fiber.Ctx) error {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"})
	}

	snapshot, err := h.Ledger.GetBalance(c.UserContext(), userID)
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, snapshot)
}

// Transactions returns a paginated ledger history for the authenticated
// caller.
func (h *CoinHandler) Transactions(c *fiber.Ctx) error {
	userID, ok := c.Locals(UserIDLocal).(uuid.UUID)
	if !ok {
		return mhttp.WithError(c, pkg.UnauthorizedError{Code: constant.ErrTokenMissing, Message: "missing authentication context"})
	}

	page, limit := mhttp.Pagination(c)

	items, err := h.Ledger.ListTransactions(c.UserContext(), userID, mmodel.Pagination{Page: page, Limit: limit})
	if err != nil {
		return mhttp.WithError(c, err)
	}

	return mhttp.OK(c, mmodel.Page{Items: items, Page: page, Limit: limit, Total: len(items)})
}
