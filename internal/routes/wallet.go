package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/transfer"
)

// RegisterWalletRoutes wires the PKR wallet endpoints.
func RegisterWalletRoutes(r fiber.Router, h *transfer.Handler) {
	r.Get("/wallet/balance", h.Balance)
	r.Get("/wallet/ledger", h.Ledger)
	r.Post("/wallet/deposits", h.Deposit)
	r.Post("/wallet/withdrawals", h.RequestWithdrawal)
}

// RegisterTokenRoutes wires platform token purchase and sale.
func RegisterTokenRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/tokens/buy", h.BuyTokens)
	r.Post("/tokens/sell", h.SellTokens)
}

// RegisterGameRoutes wires game stake endpoints.
func RegisterGameRoutes(r fiber.Router, h *transfer.Handler) {
	r.Post("/games/wagers", h.Wager)
}
