package transfer

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/ledger"
	"github.com/paisa-play/paisa_play/internal/policy"
)

// Handler exposes wallet, token-trade, game and withdrawal endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a transfer handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Balance returns both wallet balances for the authenticated account.
func (h *Handler) Balance(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	balances, err := h.service.GetBalance(c.UserContext(), accountID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id": accountID,
		"pkr":        balances.PKR,
		"token":      balances.Token,
	})
}

// Ledger returns the newest ledger entries for the authenticated account.
func (h *Handler) Ledger(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	limit := c.QueryInt("limit", 50)
	entries, err := h.service.ListLedger(c.UserContext(), accountID, limit)
	if err != nil {
		return mapError(err)
	}
	out := make([]fiber.Map, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryJSON(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entries": out})
}

type amountRequest struct {
	Amount int64 `json:"amount"`
}

// Deposit tops up the authenticated wallet.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req amountRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)
	entry, err := h.service.Deposit(c.UserContext(), accountID, req.Amount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entryJSON(entry))
}

type withdrawalRequest struct {
	Amount        int64  `json:"amount"`
	PayoutDetails string `json:"payout_details"`
}

// RequestWithdrawal places the withdrawal hold.
func (h *Handler) RequestWithdrawal(c *fiber.Ctx) error {
	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)
	entry, err := h.service.RequestWithdrawal(c.UserContext(), accountID, req.Amount, req.PayoutDetails)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"hold_id": entry.ID,
		"amount":  -entry.Amount,
		"status":  entry.Status,
	})
}

type settleRequest struct {
	Approve bool `json:"approve"`
}

// SettleWithdrawal finalizes a hold (admin only).
func (h *Handler) SettleWithdrawal(c *fiber.Ctx) error {
	var req settleRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.SettleWithdrawal(c.UserContext(), c.Params("holdId"), req.Approve)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(entryJSON(entry))
}

type tokenTradeRequest struct {
	TokenAmount int64 `json:"token_amount"`
}

// BuyTokens purchases tokens from the platform at the policy price.
func (h *Handler) BuyTokens(c *fiber.Ctx) error {
	var req tokenTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)
	entry, err := h.service.BuyTokens(c.UserContext(), accountID, req.TokenAmount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entryJSON(entry))
}

// SellTokens sells tokens back to the platform.
func (h *Handler) SellTokens(c *fiber.Ctx) error {
	var req tokenTradeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)
	entry, err := h.service.SellTokens(c.UserContext(), accountID, req.TokenAmount)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entryJSON(entry))
}

type wagerRequest struct {
	Amount  int64  `json:"amount"`
	GameRef string `json:"game_ref"`
}

// Wager debits a game entry stake for the authenticated account.
func (h *Handler) Wager(c *fiber.Ctx) error {
	var req wagerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)
	entry, err := h.service.PlaceWager(c.UserContext(), accountID, req.Amount, req.GameRef)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entryJSON(entry))
}

type payoutRequest struct {
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	GameRef   string `json:"game_ref"`
}

// Payout credits a settled game prize (admin / game engine only).
func (h *Handler) Payout(c *fiber.Ctx) error {
	var req payoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.CreditPayout(c.UserContext(), req.AccountID, req.Amount, req.GameRef)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(entryJSON(entry))
}

func entryJSON(e ledger.Entry) fiber.Map {
	return fiber.Map{
		"id":          e.ID,
		"account_id":  e.AccountID,
		"type":        e.Type,
		"amount":      e.Amount,
		"currency":    e.Currency,
		"status":      e.Status,
		"description": e.Description,
		"related_id":  e.RelatedEntityID,
		"created_at":  e.CreatedAt,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, balance.ErrConcurrentConflict):
		return fiber.NewError(http.StatusConflict, "concurrent update, try again")
	case errors.Is(err, balance.ErrAccountUnknown):
		return fiber.NewError(http.StatusNotFound, "account not found")
	case errors.Is(err, balance.ErrStoreUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "balance store unavailable")
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrBelowMinimum):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrHoldUnavailable):
		return fiber.NewError(http.StatusConflict, "withdrawal hold not settleable")
	case errors.Is(err, ErrCompensationRequired):
		return fiber.NewError(http.StatusConflict, "operation failed and was refunded")
	case errors.Is(err, policy.ErrPolicyUnavailable):
		return fiber.NewError(http.StatusServiceUnavailable, "platform policy unavailable")
	case errors.Is(err, ledger.ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "ledger entry not found")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
