// Package classify maps visitor messages to catalog topics, procedure details
// and readiness-to-book signals.
package classify

import (
	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
)

// Classifier matches text against the ordered topic catalog.
type Classifier struct {
	topics []catalog.Topic
	slots  map[string]catalog.Slot
}

// NewClassifier creates a classifier over the catalog topics and slots.
func NewClassifier(c *catalog.Catalog) *Classifier {
	return &Classifier{
		topics: c.Topics,
		slots:  c.Slots,
	}
}

// Classify returns the first topic whose keywords occur in text.
func (c *Classifier) Classify(text string) (catalog.Topic, bool) {
	normalized := catalog.Normalize(text)
	for _, t := range c.topics {
		if catalog.ContainsAny(normalized, t.Keywords) {
			return t, true
		}
	}
	return catalog.Topic{}, false
}
