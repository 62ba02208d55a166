package redeem

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes the claim endpoint plus admin code management.
type Handler struct {
	service *Service
}

// NewHandler builds a redemption handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type claimRequest struct {
	Code string `json:"code"`
}

// Claim redeems a code for the authenticated account.
func (h *Handler) Claim(c *fiber.Ctx) error {
	var req claimRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	accountID, _ := c.Locals("account_id").(string)

	entry, err := h.service.Claim(c.UserContext(), accountID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, ErrCodeUnavailable):
			return fiber.NewError(http.StatusConflict, "code exhausted or already claimed")
		case errors.Is(err, ErrNotFound):
			return fiber.NewError(http.StatusNotFound, "code not found")
		default:
			return fiber.NewError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"entry_id": entry.ID,
		"amount":   entry.Amount,
		"status":   entry.Status,
	})
}

type createCodeRequest struct {
	Code    string `json:"code"`
	Amount  int64  `json:"amount"`
	MaxUses int    `json:"max_uses"`
}

// Create mints a promotional code (admin only).
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if req.Code == "" || req.Amount <= 0 || req.MaxUses <= 0 {
		return fiber.NewError(http.StatusBadRequest, "code, amount and max_uses are required")
	}
	code, err := h.service.CreateCode(c.UserContext(), req.Code, req.Amount, req.MaxUses)
	if err != nil {
		if errors.Is(err, ErrCodeExists) {
			return fiber.NewError(http.StatusConflict, "code already exists")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"code":     code.Code,
		"amount":   code.Amount,
		"max_uses": code.MaxUses,
	})
}

// Inspect returns a code with its claim set (admin only).
func (h *Handler) Inspect(c *fiber.Ctx) error {
	code, err := h.service.Get(c.UserContext(), c.Params("code"))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fiber.NewError(http.StatusNotFound, "code not found")
		}
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"code":       code.Code,
		"amount":     code.Amount,
		"max_uses":   code.MaxUses,
		"times_used": code.TimesUsed,
		"claimed_by": code.ClaimedBy,
	})
}

type retryCreditRequest struct {
	EntryID string `json:"entry_id"`
}

// RetryCredit replays the credit of an interrupted claim (admin only).
func (h *Handler) RetryCredit(c *fiber.Ctx) error {
	var req retryCreditRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	entry, err := h.service.RetryCredit(c.UserContext(), req.EntryID)
	if err != nil {
		return fiber.NewError(http.StatusConflict, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"entry_id": entry.ID, "status": entry.Status})
}
