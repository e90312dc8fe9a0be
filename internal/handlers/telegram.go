package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
)

// TelegramHandler receives Bot API updates in webhook mode.
type TelegramHandler struct {
	engine *services.Engine
	sender services.TelegramSender
}

func NewTelegramHandler(engine *services.Engine, sender services.TelegramSender) *TelegramHandler {
	return &TelegramHandler{engine: engine, sender: sender}
}

// HandleWebhook processes one update. Failures are logged and still
// acknowledged, otherwise Telegram redelivers the update.
func (h *TelegramHandler) HandleWebhook(c *fiber.Ctx) error {
	var u services.Update
	if err := c.BodyParser(&u); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid update payload",
		})
	}

	if err := services.HandleTelegramUpdate(c.UserContext(), h.engine, h.sender, u); err != nil {
		zap.L().Error("❌ Telegram update failed", zap.Int64("update_id", u.UpdateID), zap.Error(err))
	}
	return c.SendStatus(fiber.StatusOK)
}
