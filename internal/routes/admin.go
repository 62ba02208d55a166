package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/economy"
	"github.com/paisa-play/paisa_play/internal/policy"
	"github.com/paisa-play/paisa_play/internal/redeem"
	"github.com/paisa-play/paisa_play/internal/transfer"
)

// RegisterAdminRoutes wires the back-office surface: withdrawal settlement,
// game payouts, code minting, policy edits and the economy snapshot.
func RegisterAdminRoutes(r fiber.Router, th *transfer.Handler, rh *redeem.Handler,
	econ *economy.Service, policySource policy.Source) {
	r.Post("/withdrawals/:holdId/settle", th.SettleWithdrawal)
	r.Post("/games/payouts", th.Payout)

	r.Post("/redeem/codes", rh.Create)
	r.Get("/redeem/codes/:code", rh.Inspect)
	r.Post("/redeem/retry-credit", rh.RetryCredit)

	r.Get("/economy", func(c *fiber.Ctx) error {
		agg, err := econ.Snapshot(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		}
		vals, err := policySource.Current(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"circulating_supply":      agg.CirculatingSupply,
			"volume_since_adjustment": agg.VolumeSinceAdjustment,
			"token_price":             vals.TokenPrice,
		})
	})

	r.Get("/policy", func(c *fiber.Ctx) error {
		vals, err := policySource.Current(c.UserContext())
		if err != nil {
			return fiber.NewError(http.StatusServiceUnavailable, err.Error())
		}
		return c.Status(http.StatusOK).JSON(vals)
	})

	r.Put("/policy", func(c *fiber.Ctx) error {
		var vals policy.Values
		if err := c.BodyParser(&vals); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		if err := policySource.Update(c.UserContext(), vals); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
		return c.SendStatus(http.StatusNoContent)
	})
}
