package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/paisa-play/paisa_play/internal/account"
)

// Handler exposes register/login/refresh/logout endpoints.
type Handler struct {
	accounts *account.Service
	svc      *Service
}

// NewHandler builds an auth handler.
func NewHandler(accounts *account.Service, svc *Service) *Handler {
	return &Handler{accounts: accounts, svc: svc}
}

type registerRequest struct {
	Phone       string `json:"phone"`
	PIN         string `json:"pin"`
	DeviceID    string `json:"device_id"`
	DisplayName string `json:"display_name"`
}

// Register creates an account with zeroed balances.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.accounts.Register(c.UserContext(),
		account.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID}, req.DisplayName)
	if err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"account_id":   acct.ID,
		"phone":        acct.Phone,
		"display_name": acct.DisplayName,
	})
}

type loginRequest struct {
	Phone    string `json:"phone"`
	PIN      string `json:"pin"`
	DeviceID string `json:"device_id"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	acct, err := h.accounts.Authenticate(c.UserContext(),
		account.Credentials{Phone: req.Phone, PIN: req.PIN, DeviceID: req.DeviceID})
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	pair, err := h.svc.Login(acct)
	if err != nil {
		return fiber.NewError(http.StatusInternalServerError, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"account_id":    acct.ID,
		"role":          acct.Role,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
		"expires_in":    pair.ExpiresIn,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"access_token": token, "expires_in": exp})
}

// Logout invalidates existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	accountID, _ := c.Locals("account_id").(string)
	if accountID == "" {
		return fiber.NewError(http.StatusUnauthorized, "not authenticated")
	}
	if err := h.svc.Logout(c.UserContext(), accountID); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"status": "logged_out"})
}
