package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/services"
)

// SourceWhatsApp labels leads that came in over WhatsApp.
const SourceWhatsApp = "WhatsApp"

// WhatsAppSender delivers a reply to a WhatsApp number.
type WhatsAppSender interface {
	SendWhatsAppMessage(ctx context.Context, to, message string) error
}

// WhatsAppHandler handles WhatsApp webhook requests
type WhatsAppHandler struct {
	engine *services.Engine
	sender WhatsAppSender
}

// NewWhatsAppHandler creates a new WhatsApp handler. A nil sender only logs
// the replies.
func NewWhatsAppHandler(engine *services.Engine, sender WhatsAppSender) *WhatsAppHandler {
	return &WhatsAppHandler{engine: engine, sender: sender}
}

// TwilioWebhookPayload represents incoming WhatsApp message from Twilio
type TwilioWebhookPayload struct {
	MessageSid  string `form:"MessageSid"`
	AccountSid  string `form:"AccountSid"`
	From        string `form:"From"` // WhatsApp number (whatsapp:+79261234567)
	To          string `form:"To"`   // clinic's Twilio number
	Body        string `form:"Body"` // Message text
	NumMedia    string `form:"NumMedia"`
	ProfileName string `form:"ProfileName"`
}

func whatsappInbound(from, text string) services.Inbound {
	phone := services.WhatsAppPhone(from)
	return services.Inbound{
		Key:         "wa:" + phone,
		Channel:     models.ChannelWhatsApp,
		Source:      SourceWhatsApp,
		Text:        text,
		ReplyTarget: phone,
	}
}

// HandleWebhook processes incoming WhatsApp messages
func (h *WhatsAppHandler) HandleWebhook(c *fiber.Ctx) error {
	var payload TwilioWebhookPayload
	if err := c.BodyParser(&payload); err != nil {
		zap.L().Warn("Invalid WhatsApp webhook payload", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid webhook payload",
		})
	}

	// status callbacks carry no body
	if payload.From == "" || payload.Body == "" {
		return c.SendStatus(fiber.StatusOK)
	}

	zap.L().Info("📱 WhatsApp message", zap.String("from", payload.From), zap.String("sid", payload.MessageSid))

	in := whatsappInbound(payload.From, payload.Body)
	reply, err := h.engine.Handle(c.UserContext(), in)
	if err != nil {
		// Twilio retries non-2xx answers, so rejected messages are acknowledged
		zap.L().Info("WhatsApp message ignored", zap.String("from", payload.From), zap.Error(err))
		return c.SendStatus(fiber.StatusOK)
	}

	if h.sender == nil {
		zap.L().Warn("📤 WhatsApp reply not sent, Twilio not configured", zap.String("reply", reply.Text))
		return c.SendStatus(fiber.StatusOK)
	}
	if err := h.sender.SendWhatsAppMessage(c.UserContext(), in.ReplyTarget, reply.Text); err != nil {
		zap.L().Error("❌ Failed to send WhatsApp response", zap.String("to", in.ReplyTarget), zap.Error(err))
	} else {
		zap.L().Info("✅ Response sent", zap.String("to", in.ReplyTarget))
	}

	// Acknowledge webhook receipt
	return c.SendStatus(fiber.StatusOK)
}

// TestWebhookPayload simulates a WhatsApp message without Twilio.
type TestWebhookPayload struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// HandleTestWebhook runs a simulated WhatsApp message through the dialog and
// returns the reply instead of sending it (development only).
func (h *WhatsAppHandler) HandleTestWebhook(c *fiber.Ctx) error {
	var payload TestWebhookPayload
	if err := c.BodyParser(&payload); err != nil || payload.From == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid test payload",
		})
	}

	zap.L().Debug("🧪 Test webhook received", zap.String("from", payload.From))

	reply, err := h.engine.Handle(c.UserContext(), whatsappInbound(payload.From, payload.Message))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"success":  true,
		"response": reply.Text,
	})
}
