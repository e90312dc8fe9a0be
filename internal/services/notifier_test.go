package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

func TestTelegramNotifier(t *testing.T) {
	sender := &MockSender{}
	sender.On("SendMessage", context.Background(), SendMessageRequest{ChatID: "-100500", Text: "lead"}).Return(nil).Once()

	require.NoError(t, NewTelegramNotifier(sender).Notify(context.Background(), "-100500", "lead"))
	sender.AssertExpectations(t)
}

func TestWhatsAppNotifier(t *testing.T) {
	fake := &fakeMessages{resp: &twilioApi.ApiV2010Message{}}
	n := NewWhatsAppNotifier(&TwilioService{api: fake, from: "whatsapp:+1"})

	require.NoError(t, n.Notify(context.Background(), "79280000000", "lead"))
	assert.Equal(t, "whatsapp:+79280000000", *fake.params.To)
}

func TestLogNotifierSucceeds(t *testing.T) {
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), "", "lead"))
}
