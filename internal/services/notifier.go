package services

import (
	"context"

	"go.uber.org/zap"
)

// Notifier delivers a formatted lead to a human facing channel. It makes a
// single attempt; retries are driven by the session's escalation flag.
type Notifier interface {
	Notify(ctx context.Context, destination, text string) error
}

// TelegramNotifier posts leads to a Telegram chat.
type TelegramNotifier struct {
	sender TelegramSender
}

func NewTelegramNotifier(sender TelegramSender) *TelegramNotifier {
	return &TelegramNotifier{sender: sender}
}

func (n *TelegramNotifier) Notify(ctx context.Context, destination, text string) error {
	return n.sender.SendMessage(ctx, SendMessageRequest{ChatID: destination, Text: text})
}

// WhatsAppNotifier sends leads to a manager's WhatsApp number through Twilio.
type WhatsAppNotifier struct {
	twilio *TwilioService
}

func NewWhatsAppNotifier(twilio *TwilioService) *WhatsAppNotifier {
	return &WhatsAppNotifier{twilio: twilio}
}

func (n *WhatsAppNotifier) Notify(ctx context.Context, destination, text string) error {
	return n.twilio.SendWhatsAppMessage(ctx, destination, text)
}

// LogNotifier only logs leads. Used when no delivery channel is configured;
// a logged lead counts as delivered.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, destination, text string) error {
	zap.L().Warn("📤 Lead not delivered, no notifier configured",
		zap.String("destination", destination),
		zap.String("lead", text),
	)
	return nil
}
