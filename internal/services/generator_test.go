package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

func TestAssistantGenerateReply(t *testing.T) {
	client := &MockCompletionClient{}
	client.On("Complete", mock.Anything,
		mock.MatchedBy(func(system string) bool {
			return strings.Contains(system, "GLADIS") && strings.Contains(system, "Лазерная эпиляция")
		}),
		mock.MatchedBy(func(user string) bool {
			return strings.Contains(user, "поздоровайся") && strings.Contains(user, "Мягко предложи")
		}),
		int64(replyMaxTokens),
	).Return("Здравствуйте! Расскажу про эпиляцию.", nil).Once()

	a := NewAssistant(client, testCatalog(t))
	reply, err := a.GenerateReply(context.Background(), ReplyContext{
		Text:      "Привет, расскажите про лазер",
		FirstTurn: true,
		Stage:     models.StageNeedsAnalysis,
	})
	require.NoError(t, err)
	assert.Equal(t, "Здравствуйте! Расскажу про эпиляцию.", reply)
	client.AssertExpectations(t)
}

func TestAssistantGenerateReplyErrors(t *testing.T) {
	client := &MockCompletionClient{}
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", nil).Once()
	client.On("Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("overloaded")).Once()

	a := NewAssistant(client, testCatalog(t))
	_, err := a.GenerateReply(context.Background(), ReplyContext{Text: "?"})
	assert.Error(t, err)
	_, err = a.GenerateReply(context.Background(), ReplyContext{Text: "?"})
	assert.EqualError(t, err, "overloaded")
}

func TestAssistantExtractName(t *testing.T) {
	tests := []struct {
		out  string
		want string
	}{
		{"Мария", "Мария"},
		{" «Мария». ", "Мария"},
		{"NONE", ""},
		{"none", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.out, func(t *testing.T) {
			client := &MockCompletionClient{}
			client.On("Complete", mock.Anything, mock.Anything, "меня Марией звать", int64(nameMaxTokens)).Return(tt.out, nil)

			got, err := NewAssistant(client, testCatalog(t)).ExtractName(context.Background(), "меня Марией звать")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReplyPromptReflectsContacts(t *testing.T) {
	assert.Contains(t, replyPrompt(ReplyContext{HasName: true}), "попроси телефон")
	assert.Contains(t, replyPrompt(ReplyContext{HasPhone: true}), "спроси имя")
	assert.Contains(t, replyPrompt(ReplyContext{Escalated: true}), "не проси контакты")
	assert.Contains(t, replyPrompt(ReplyContext{Topic: "Ботулинотерапия"}), "Ботулинотерапия")
}
