package handlers

import (
	"fmt"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postpilot/configs"
	"github.com/maheshrc27/postpilot/internal/service"
	"github.com/maheshrc27/postpilot/pkg/utils"
)

type PlatformHandler struct {
	ps  service.PlatformService
	cfg config.Config
}

func NewPlatformHandler(ps service.PlatformService, cfg config.Config) *PlatformHandler {
	return &PlatformHandler{
		ps:  ps,
		cfg: cfg,
	}
}

// AuthURL hands back the LinkedIn consent URL. The caller's session token
// travels as OAuth state and identifies the user on callback.
func (h *PlatformHandler) AuthURL(c *fiber.Ctx) error {
	state, _ := c.Locals("token").(string)
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"authUrl": h.ps.GetAuthURL(state),
	})
}

func (h *PlatformHandler) CallbackHandler(c *fiber.Ctx) error {
	if oauthErr := c.Query("error"); oauthErr != "" {
		return c.Redirect(fmt.Sprintf("%s/dashboard?linkedin_error=%s", h.cfg.FrontendURL, oauthErr), fiber.StatusTemporaryRedirect)
	}

	claims, err := utils.ValidateToken(h.cfg.SecretKey, c.Query("state"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Unable to validate user",
		})
	}

	if err := h.ps.Callback(c.Context(), c.Query("code"), claims.UserID); err != nil {
		slog.Info(err.Error())
		return c.Redirect(fmt.Sprintf("%s/dashboard?linkedin_error=oauth_failed", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
	}

	return c.Redirect(fmt.Sprintf("%s/dashboard?linkedin_connected=true", h.cfg.FrontendURL), fiber.StatusTemporaryRedirect)
}

func (h *PlatformHandler) Status(c *fiber.Ctx) error {
	status, err := h.ps.Status(c.Context(), GetUserID(c))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to fetch LinkedIn status",
		})
	}
	return c.Status(fiber.StatusOK).JSON(status)
}

func (h *PlatformHandler) Disconnect(c *fiber.Ctx) error {
	if err := h.ps.Disconnect(c.Context(), GetUserID(c)); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Unable to disconnect LinkedIn",
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "LinkedIn disconnected",
	})
}
