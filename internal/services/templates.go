package services

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

// slotIcons decorate known detail slots in the lead message.
var slotIcons = map[string]string{
	"zone":       "📍",
	"laser_type": "🔬",
	"location":   "🏥",
	"skin_type":  "📝",
}

const leadTimeLayout = "2006-01-02 15:04:05"

// LeadFormatter renders dispatched sessions for managers.
type LeadFormatter struct {
	catalog *catalog.Catalog
}

// NewLeadFormatter creates a formatter over the catalog.
func NewLeadFormatter(c *catalog.Catalog) *LeadFormatter {
	return &LeadFormatter{catalog: c}
}

// Format builds the notification text of a lead.
func (f *LeadFormatter) Format(s *models.Session, kind models.EscalationKind, at time.Time) string {
	var b strings.Builder

	switch kind {
	case models.EscalationIncompleteTimeout:
		b.WriteString("⏰ НЕПОЛНАЯ ЗАЯВКА (клиент перестал отвечать)\n\n")
	default:
		b.WriteString("🚨 НОВАЯ ЗАЯВКА\n\n")
	}

	fmt.Fprintf(&b, "👤 КЛИЕНТ: %s\n", valueOr(s.Name, "Не указано"))
	fmt.Fprintf(&b, "📞 ТЕЛЕФОН: %s\n", valueOr(displayPhone(s.Phone), "Не указан"))
	if s.Email != "" {
		fmt.Fprintf(&b, "📧 EMAIL: %s\n", s.Email)
	}
	fmt.Fprintf(&b, "⏰ ВРЕМЯ: %s\n\n", at.Format(leadTimeLayout))

	if topic, ok := f.catalog.Topic(s.Topic); ok {
		if topic.Category != "" {
			fmt.Fprintf(&b, "📋 КАТЕГОРИЯ ПРОЦЕДУРЫ: %s\n", topic.Category)
		}
		fmt.Fprintf(&b, "💉 ВЫБРАННАЯ ПРОЦЕДУРА: %s\n", topic.Label)
	}
	for _, name := range f.slotOrder(s) {
		icon, ok := slotIcons[name]
		if !ok {
			icon = "🔹"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", icon, strings.ToUpper(f.slotLabel(name)), s.Slots[name])
	}

	b.WriteString("\n💬 ПОЛНЫЙ ДИАЛОГ:\n")
	b.WriteString(strings.Join(s.Transcript, "\n"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "🔗 ИСТОЧНИК: %s", f.source(s))
	return b.String()
}

// Lead builds the journal record of a dispatched session.
func (f *LeadFormatter) Lead(id string, s *models.Session, kind models.EscalationKind, at time.Time) *models.Lead {
	details := "{}"
	if len(s.Slots) > 0 {
		if data, err := json.Marshal(s.Slots); err == nil {
			details = string(data)
		}
	}
	return &models.Lead{
		LeadID:       id,
		SessionKey:   s.Key,
		Channel:      string(s.Channel),
		Source:       f.source(s),
		Kind:         kind.String(),
		Name:         s.Name,
		Phone:        s.Phone,
		Email:        s.Email,
		Topic:        s.Topic,
		Details:      details,
		Transcript:   strings.Join(s.Transcript, "\n"),
		MessageCount: s.MessageCount,
		DispatchedAt: at,
	}
}

// slotOrder lists filled slots in topic order, then any others by name.
func (f *LeadFormatter) slotOrder(s *models.Session) []string {
	seen := make(map[string]bool, len(s.Slots))
	var names []string
	if topic, ok := f.catalog.Topic(s.Topic); ok {
		for _, name := range topic.Slots {
			if s.Slots[name] != "" {
				names = append(names, name)
				seen[name] = true
			}
		}
	}

	var rest []string
	for name, v := range s.Slots {
		if v != "" && !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(names, rest...)
}

func (f *LeadFormatter) slotLabel(name string) string {
	if slot, ok := f.catalog.Slots[name]; ok && slot.Label != "" {
		return slot.Label
	}
	return name
}

func (f *LeadFormatter) source(s *models.Session) string {
	if s.Source != "" {
		return s.Source
	}
	switch s.Channel {
	case models.ChannelTelegram:
		return SourceTelegramBot
	case models.ChannelWhatsApp:
		return "WhatsApp"
	default:
		if f.catalog.Clinic.Site != "" {
			return "чат-бот сайта " + f.catalog.Clinic.Site
		}
		return "чат-бот сайта"
	}
}

// displayPhone prints an 11 digit canonical phone with a leading "+".
func displayPhone(phone string) string {
	if len(phone) == 11 {
		return "+" + phone
	}
	return phone
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
