package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/market"
	"github.com/paisa-play/paisa_play/internal/redeem"
)

// RegisterMarketRoutes wires the peer-to-peer token marketplace.
func RegisterMarketRoutes(r fiber.Router, h *market.Handler) {
	r.Get("/market/orders", h.List)
	r.Post("/market/orders", h.Create)
	r.Post("/market/orders/:orderId/fulfill", h.Fulfill)
	r.Post("/market/orders/:orderId/cancel", h.Cancel)
}

// RegisterRedeemRoutes wires the player-facing redeem endpoint.
func RegisterRedeemRoutes(r fiber.Router, h *redeem.Handler) {
	r.Post("/redeem", h.Claim)
}
