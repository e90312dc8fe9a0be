package services

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

// messageCreator is the part of the Twilio REST API used here.
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioConfig holds the credentials of the WhatsApp sender.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string // e.g. "whatsapp:+14155238886"
}

type TwilioService struct {
	api  messageCreator
	from string
}

// NewTwilioService creates a new Twilio service instance
func NewTwilioService(cfg TwilioConfig) (*TwilioService, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.From == "" {
		return nil, eris.New("twilio: account sid, auth token and sender are required")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &TwilioService{
		api:  client.Api,
		from: whatsappAddress(cfg.From),
	}, nil
}

// SendWhatsAppMessage sends a WhatsApp message via Twilio. The REST client
// takes no context, so ctx only bounds how long the caller waits.
func (t *TwilioService) SendWhatsAppMessage(ctx context.Context, to, message string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(to))
	params.SetBody(message)

	type result struct {
		resp *twilioApi.ApiV2010Message
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := t.api.CreateMessage(params)
		done <- result{resp, err}
	}()

	select {
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "twilio: send whatsapp message")
	case r := <-done:
		if r.err != nil {
			zap.L().Error("❌ Failed to send WhatsApp message", zap.String("to", to), zap.Error(r.err))
			return eris.Wrap(r.err, "twilio: send whatsapp message")
		}
		if r.resp != nil && r.resp.ErrorCode != nil && *r.resp.ErrorCode != 0 {
			msg := ""
			if r.resp.ErrorMessage != nil {
				msg = *r.resp.ErrorMessage
			}
			return eris.Errorf("twilio error %d: %s", *r.resp.ErrorCode, msg)
		}
		sid := ""
		if r.resp != nil && r.resp.Sid != nil {
			sid = *r.resp.Sid
		}
		zap.L().Info("✅ WhatsApp message sent", zap.String("sid", sid))
		return nil
	}
}

// whatsappAddress turns a bare or canonical phone into a Twilio WhatsApp address.
func whatsappAddress(to string) string {
	to = strings.TrimSpace(to)
	if strings.HasPrefix(to, "whatsapp:") {
		return to
	}
	if !strings.HasPrefix(to, "+") {
		to = "+" + to
	}
	return "whatsapp:" + to
}

// WhatsAppPhone strips the "whatsapp:" prefix and leading "+" from a Twilio address.
func WhatsAppPhone(addr string) string {
	addr = strings.TrimPrefix(strings.TrimSpace(addr), "whatsapp:")
	return strings.TrimPrefix(addr, "+")
}
