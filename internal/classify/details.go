package classify

import (
	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
)

// FillDetails records slot values of topic found in text into slots. A later
// mention overwrites an earlier one. Returns the names of slots that changed.
func (c *Classifier) FillDetails(text string, topic catalog.Topic, slots map[string]string) []string {
	normalized := catalog.Normalize(text)

	var changed []string
	for _, name := range topic.Slots {
		slot, ok := c.slots[name]
		if !ok {
			continue
		}
		for _, opt := range slot.Options {
			if !catalog.ContainsAny(normalized, opt.Keywords) {
				continue
			}
			if slots[name] != opt.Value {
				slots[name] = opt.Value
				changed = append(changed, name)
			}
			break
		}
	}
	return changed
}

// NextQuestion returns the question for the first unfilled slot of topic.
func (c *Classifier) NextQuestion(topic catalog.Topic, slots map[string]string) (string, bool) {
	for _, name := range topic.Slots {
		if slots[name] != "" {
			continue
		}
		if slot, ok := c.slots[name]; ok && slot.Question != "" {
			return slot.Question, true
		}
	}
	return "", false
}

// Sufficient reports whether enough detail is known to move on to contacts.
// Topics without slots need none; otherwise min_details (default 1) slots must
// be filled, or the visitor has already been asked maxTurns times.
func (c *Classifier) Sufficient(topic catalog.Topic, slots map[string]string, clarifyTurns, maxTurns int) bool {
	if len(topic.Slots) == 0 {
		return true
	}
	if maxTurns > 0 && clarifyTurns >= maxTurns {
		return true
	}
	need := topic.MinDetails
	if need <= 0 {
		need = 1
	}
	filled := 0
	for _, name := range topic.Slots {
		if slots[name] != "" {
			filled++
		}
	}
	return filled >= need
}

// SlotLabel returns the human label of a slot, or the name itself.
func (c *Classifier) SlotLabel(name string) string {
	if slot, ok := c.slots[name]; ok && slot.Label != "" {
		return slot.Label
	}
	return name
}
