package middleware

import (
	"errors"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Audit logs one line per finished request. Money moves through these
// handlers, so every line carries enough to trace a disputed operation: the
// request id, the caller's IP and, once auth has resolved it, the acting
// account.
func Audit(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		var fe *fiber.Error
		if errors.As(err, &fe) {
			status = fe.Code
		}

		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", time.Since(start)),
			slog.String("ip", c.IP()),
		}
		if id, _ := c.Locals(requestIDLocal).(string); id != "" {
			attrs = append(attrs, slog.String("request_id", id))
		}
		if acc, _ := c.Locals("account_id").(string); acc != "" {
			attrs = append(attrs, slog.String("account_id", acc))
		}

		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}
