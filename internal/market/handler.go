package market

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/balance"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

// Handler exposes marketplace endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a marketplace handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type createOrderRequest struct {
	TokenAmount   int64 `json:"token_amount"`
	PricePerToken int64 `json:"price_per_token"`
}

type orderResponse struct {
	ID            string `json:"id"`
	SellerID      string `json:"seller_id"`
	TokenAmount   int64  `json:"token_amount"`
	PricePerToken int64  `json:"price_per_token"`
	Status        string `json:"status"`
	BuyerID       string `json:"buyer_id,omitempty"`
}

// Create posts a sell offer for the authenticated seller.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req createOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	sellerID, _ := c.Locals("account_id").(string)

	order, err := h.service.CreateOrder(c.UserContext(), sellerID, req.TokenAmount, req.PricePerToken)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusCreated).JSON(toResponse(order))
}

// List returns the open order book.
func (h *Handler) List(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 100)
	orders, err := h.service.ListOpenOrders(c.UserContext(), limit)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"orders": out})
}

// Fulfill buys the order as the authenticated account.
func (h *Handler) Fulfill(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	buyerID, _ := c.Locals("account_id").(string)

	order, err := h.service.FulfillOrder(c.UserContext(), orderID, buyerID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(order))
}

// Cancel withdraws the authenticated seller's own order.
func (h *Handler) Cancel(c *fiber.Ctx) error {
	orderID := c.Params("orderId")
	sellerID, _ := c.Locals("account_id").(string)

	order, err := h.service.CancelOrder(c.UserContext(), orderID, sellerID)
	if err != nil {
		return mapError(err)
	}
	return c.Status(http.StatusOK).JSON(toResponse(order))
}

func toResponse(o SellOrder) orderResponse {
	return orderResponse{
		ID:            o.ID,
		SellerID:      o.SellerID,
		TokenAmount:   o.TokenAmount,
		PricePerToken: o.PricePerToken,
		Status:        string(o.Status),
		BuyerID:       o.BuyerID,
	}
}

func mapError(err error) error {
	switch {
	case errors.Is(err, balance.ErrInsufficientFunds):
		return fiber.NewError(http.StatusBadRequest, "insufficient funds")
	case errors.Is(err, ErrOrderUnavailable):
		return fiber.NewError(http.StatusConflict, "order no longer available")
	case errors.Is(err, ErrNotSeller):
		return fiber.NewError(http.StatusForbidden, "only the seller may cancel")
	case errors.Is(err, ErrSelfTrade):
		return fiber.NewError(http.StatusBadRequest, "cannot fulfill own order")
	case errors.Is(err, ErrNotFound):
		return fiber.NewError(http.StatusNotFound, "order not found")
	case errors.Is(err, transfer.ErrInvalidAmount):
		return fiber.NewError(http.StatusBadRequest, "amount must be positive")
	case errors.Is(err, transfer.ErrCompensationRequired):
		return fiber.NewError(http.StatusConflict, "order settled with reconciliation pending")
	default:
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
}
