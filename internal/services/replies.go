package services

import (
	"strings"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// RuleReplies answers conversational turns from the catalog when no reply
// generator is available or it failed.
type RuleReplies struct {
	catalog *catalog.Catalog
}

func NewRuleReplies(c *catalog.Catalog) *RuleReplies {
	return &RuleReplies{catalog: c}
}

// Reply picks an FAQ answer, a greeting or a stage specific prompt.
func (r *RuleReplies) Reply(rc ReplyContext) string {
	c := r.catalog
	normalized := catalog.Normalize(rc.Text)

	var parts []string
	if rc.FirstTurn && c.Replies.Greeting != "" {
		parts = append(parts, c.Replies.Greeting)
	}

	answer := r.faq(normalized)
	switch {
	case answer != "":
		parts = append(parts, answer)
	case rc.Stage == models.StageConsultation && c.Replies.Consultation != "":
		parts = append(parts, c.Replies.Consultation)
	default:
		parts = append(parts, c.Replies.Clarify)
	}
	return c.Render(strings.Join(parts, " "), "")
}

func (r *RuleReplies) faq(normalized string) string {
	for _, e := range r.catalog.FAQ {
		if catalog.ContainsAny(normalized, e.Keywords) {
			return e.Answer
		}
	}
	return ""
}
