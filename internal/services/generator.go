package services

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-haiku-4-5-20251001"

// ReplyContext is the session context handed to a reply generator.
type ReplyContext struct {
	Text      string
	FirstTurn bool
	HasName   bool
	HasPhone  bool
	Escalated bool
	Topic     string // topic label, empty when none is known
	Stage     models.Stage
}

// ReplyGenerator writes free text replies for conversational turns.
type ReplyGenerator interface {
	GenerateReply(ctx context.Context, rc ReplyContext) (string, error)
}

// NameExtractor finds a visitor's name where the patterns could not.
// An empty result means no name.
type NameExtractor interface {
	ExtractName(ctx context.Context, text string) (string, error)
}

// CompletionClient is the text completion call the generator needs.
type CompletionClient interface {
	Complete(ctx context.Context, system, user string, maxTokens int64) (string, error)
}

type anthropicClient struct {
	client sdk.Client
	model  string
}

// NewAnthropicClient creates a completion client backed by the Anthropic SDK.
func NewAnthropicClient(apiKey, model string) CompletionClient {
	if model == "" {
		model = DefaultModel
	}
	return &anthropicClient{
		client: sdk.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (c *anthropicClient) Complete(ctx context.Context, system, user string, maxTokens int64) (string, error) {
	params := sdk.MessageNewParams{
		Model:     sdk.Model(c.model),
		MaxTokens: maxTokens,
		System:    []sdk.TextBlockParam{{Text: system}},
		Messages:  []sdk.MessageParam{sdk.NewUserMessage(sdk.NewTextBlock(user))},
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", eris.Wrap(err, "anthropic: create message")
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(b.String()), nil
}

const (
	replyMaxTokens = 300
	nameMaxTokens  = 20
	noName         = "NONE"
)

// Assistant generates replies and extracts names with a language model.
type Assistant struct {
	client  CompletionClient
	catalog *catalog.Catalog
	system  string
}

// NewAssistant creates a model backed ReplyGenerator and NameExtractor.
func NewAssistant(client CompletionClient, c *catalog.Catalog) *Assistant {
	return &Assistant{client: client, catalog: c, system: systemPrompt(c)}
}

func (a *Assistant) GenerateReply(ctx context.Context, rc ReplyContext) (string, error) {
	reply, err := a.client.Complete(ctx, a.system, replyPrompt(rc), replyMaxTokens)
	if err != nil {
		return "", err
	}
	if reply == "" {
		return "", eris.New("assistant: empty reply")
	}
	return reply, nil
}

func (a *Assistant) ExtractName(ctx context.Context, text string) (string, error) {
	system := "Ты извлекаешь имя человека из сообщения клиента клиники. " +
		"Ответь только именем в именительном падеже одним словом. " +
		"Если имени нет, ответь " + noName + "."
	out, err := a.client.Complete(ctx, system, text, nameMaxTokens)
	if err != nil {
		return "", err
	}
	out = strings.Trim(strings.TrimSpace(out), ".!\"'«»")
	if out == "" || strings.EqualFold(out, noName) {
		return "", nil
	}
	return out, nil
}

func systemPrompt(c *catalog.Catalog) string {
	labels := make([]string, 0, len(c.Topics))
	for _, t := range c.Topics {
		labels = append(labels, t.Label)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Ты вежливый администратор клиники эстетической медицины %s.\n", c.Clinic.Name)
	fmt.Fprintf(&b, "Адреса: %s; %s. Телефон: %s. %s.\n",
		c.Clinic.AddressSochi, c.Clinic.AddressAdler, c.Clinic.Phone, c.Clinic.Hours)
	if c.Clinic.InstallmentNote != "" {
		fmt.Fprintf(&b, "%s.\n", c.Clinic.InstallmentNote)
	}
	fmt.Fprintf(&b, "Процедуры: %s.\n", strings.Join(labels, ", "))
	b.WriteString("Отвечай по-русски, кратко, не больше трех предложений. ")
	b.WriteString("Не называй цены и не ставь диагнозы, предлагай бесплатную консультацию. ")
	b.WriteString("Цель разговора: узнать интерес клиента и получить его имя и телефон для записи.")
	return b.String()
}

func replyPrompt(rc ReplyContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Сообщение клиента: %q\n", rc.Text)
	if rc.FirstTurn {
		b.WriteString("Это первое сообщение, поздоровайся.\n")
	}
	if rc.Topic != "" {
		fmt.Fprintf(&b, "Интересующая процедура: %s.\n", rc.Topic)
	}
	switch {
	case rc.Escalated:
		b.WriteString("Заявка уже передана менеджеру, не проси контакты.\n")
	case !rc.HasName && !rc.HasPhone:
		b.WriteString("Мягко предложи оставить имя и телефон.\n")
	case !rc.HasPhone:
		b.WriteString("Имя известно, попроси телефон.\n")
	case !rc.HasName:
		b.WriteString("Телефон известен, спроси имя.\n")
	}
	return b.String()
}
