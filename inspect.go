package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/classify"
	"github.com/Ananth-NQI/clinic-leadbot/internal/extract"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <message>",
	Short: "Show what the rule engine extracts from a single message",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := catalog.Load(cfg.Catalog.Path)
		if err != nil {
			return err
		}
		inspect(cmd.OutOrStdout(), c, strings.Join(args, " "), cfg.Session.MessageThreshold)
		return nil
	},
}

func inspect(w io.Writer, c *catalog.Catalog, text string, threshold int) {
	names := extract.NewNameFinder(c.Names, c.Vocabulary()...)
	classifier := classify.NewClassifier(c)
	detector := classify.NewDetector(c.Intent, names, threshold)

	hint := extract.NoPhone
	if m, ok := extract.FindPhone(text); ok {
		hint.PhoneOffset = m.Offset
		fmt.Fprintf(w, "phone:    %s (%s)\n", m.Phone, m.Family)
	} else {
		fmt.Fprintln(w, "phone:    -")
	}

	if addr, ok := extract.Email(text); ok {
		fmt.Fprintf(w, "email:    %s\n", addr)
	} else {
		fmt.Fprintln(w, "email:    -")
	}

	if m, ok := names.Find(text, hint); ok {
		kind := "guess"
		if m.Marked {
			kind = "marked"
		}
		fmt.Fprintf(w, "name:     %s (%s)\n", m.Name, kind)
	} else {
		fmt.Fprintln(w, "name:     -")
	}

	s := &models.Session{MessageCount: 1}
	topic, ok := classifier.Classify(text)
	if ok {
		s.TopicMentioned = true
		fmt.Fprintf(w, "topic:    %s (%s)\n", topic.ID, topic.Label)
		slots := map[string]string{}
		for _, slot := range classifier.FillDetails(text, topic, slots) {
			fmt.Fprintf(w, "detail:   %s = %s\n", classifier.SlotLabel(slot), slots[slot])
		}
	} else {
		fmt.Fprintln(w, "topic:    -")
	}

	signal := detector.Detect(text, s)
	if signal.Ready {
		fmt.Fprintf(w, "ready:    yes (%s)\n", signal.Reason)
	} else {
		fmt.Fprintln(w, "ready:    no")
	}
	fmt.Fprintf(w, "question: %t\n", detector.IsQuestion(text))
	fmt.Fprintf(w, "urgent:   %t\n", detector.IsUrgent(text))
}
