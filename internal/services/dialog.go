package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/Ananth-NQI/clinic-leadbot/internal/catalog"
	"github.com/Ananth-NQI/clinic-leadbot/internal/classify"
	"github.com/Ananth-NQI/clinic-leadbot/internal/extract"
	"github.com/Ananth-NQI/clinic-leadbot/internal/models"
	"github.com/Ananth-NQI/clinic-leadbot/internal/storage"
)

// MaxMessageRunes bounds the length of one inbound message.
const MaxMessageRunes = 2000

var (
	ErrEmptyMessage   = eris.New("message is empty")
	ErrMessageTooLong = eris.Errorf("message is longer than %d characters", MaxMessageRunes)
	ErrNoVisitorKey   = eris.New("visitor key is required")
)

// IsInvalidMessage reports whether err rejects the inbound payload itself.
func IsInvalidMessage(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMessageTooLong)
}

// CleanMessage trims text and checks it is acceptable as a dialog turn.
func CleanMessage(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return "", ErrMessageTooLong
	}
	return text, nil
}

// Inbound is one visitor message from any transport.
type Inbound struct {
	Key         string // namespaced visitor identity, e.g. "web:1.2.3.4" or "tg:42"
	Channel     models.Channel
	Source      string
	Text        string
	ReplyTarget string
}

// Reply is the engine's answer to one inbound message.
type Reply struct {
	Text         string       `json:"reply"`
	Stage        models.Stage `json:"-"`
	Escalated    bool         `json:"-"`
	EscalatedNow bool         `json:"-"`
}

// EngineConfig tunes the dialog.
type EngineConfig struct {
	// DetailsTurns is how many times the visitor is asked for procedure details.
	DetailsTurns int
	// MessageThreshold is the message count treated as intent on its own.
	MessageThreshold int
	// GeneratorTimeout bounds every reply generator and name extractor call.
	GeneratorTimeout time.Duration
}

const (
	defaultDetailsTurns     = 2
	defaultGeneratorTimeout = 10 * time.Second
)

// EngineOption configures optional collaborators.
type EngineOption func(*Engine)

func WithReplyGenerator(g ReplyGenerator) EngineOption {
	return func(e *Engine) { e.generator = g }
}

func WithNameExtractor(n NameExtractor) EngineOption {
	return func(e *Engine) { e.nameExtractor = n }
}

func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.nowFunc = now }
}

// Engine runs the lead dialog: NeedsAnalysis, Consultation,
// DetailsClarification, ContactCollection and the terminal Completed stage.
type Engine struct {
	store      storage.Store
	catalog    *catalog.Catalog
	classifier *classify.Classifier
	detector   *classify.Detector
	names      *extract.NameFinder
	dispatcher *Dispatcher
	rules      *RuleReplies

	generator     ReplyGenerator
	nameExtractor NameExtractor

	cfg     EngineConfig
	nowFunc func() time.Time
}

// NewEngine wires the dialog engine over a session store and catalog.
func NewEngine(store storage.Store, c *catalog.Catalog, dispatcher *Dispatcher, cfg EngineConfig, opts ...EngineOption) *Engine {
	if cfg.DetailsTurns <= 0 {
		cfg.DetailsTurns = defaultDetailsTurns
	}
	if cfg.GeneratorTimeout <= 0 {
		cfg.GeneratorTimeout = defaultGeneratorTimeout
	}

	names := extract.NewNameFinder(c.Names, c.Vocabulary()...)
	e := &Engine{
		store:      store,
		catalog:    c,
		classifier: classify.NewClassifier(c),
		detector:   classify.NewDetector(c.Intent, names, cfg.MessageThreshold),
		names:      names,
		dispatcher: dispatcher,
		rules:      NewRuleReplies(c),
		cfg:        cfg,
		nowFunc:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// turnOutcome carries what happened inside the locked part of a turn to the
// reply composition that runs after it.
type turnOutcome struct {
	firstTurn      bool
	urgent         bool
	escalatedNow   bool
	dispatchFailed bool
}

// Handle processes one inbound message. Only invalid input is returned as an
// error; internal faults become an apology reply and leave the session as it was.
func (e *Engine) Handle(ctx context.Context, in Inbound) (Reply, error) {
	text, err := CleanMessage(in.Text)
	if err != nil {
		return Reply{}, err
	}
	if in.Key == "" {
		return Reply{}, ErrNoVisitorKey
	}

	var out turnOutcome
	snap, err := e.turn(ctx, in, text, &out)
	if err != nil {
		zap.L().Error("❌ Dialog turn failed", zap.String("session", in.Key), zap.Error(err))
		return e.apology(), nil
	}
	return e.compose(ctx, snap, text, out), nil
}

func (e *Engine) turn(ctx context.Context, in Inbound, text string, out *turnOutcome) (snap *models.Session, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic in dialog turn: %v", r)
		}
	}()

	return e.store.Update(in.Key, func(s *models.Session) error {
		*out = turnOutcome{}
		e.step(ctx, s, in, text, out)
		return nil
	})
}

// step is the locked part of a turn. Dispatch happens last so a failed turn
// can never leave a sent lead behind an uncommitted session.
func (e *Engine) step(ctx context.Context, s *models.Session, in Inbound, text string, out *turnOutcome) {
	if s.Channel == "" {
		s.Channel = in.Channel
	}
	if s.Source == "" {
		s.Source = in.Source
	}
	s.Record(text, e.nowFunc())
	out.firstTurn = s.MessageCount == 1

	if s.Stage == models.StageCompleted {
		return
	}
	if in.ReplyTarget != "" {
		s.ReplyTarget = in.ReplyTarget
	}

	e.extractContacts(ctx, s, text)

	topic, found := e.classifier.Classify(text)
	if found {
		s.Topic = topic.ID
		s.TopicMentioned = true
	}
	if t, ok := e.catalog.Topic(s.Topic); ok {
		e.classifier.FillDetails(text, t, s.Slots)
	}

	signal := e.detector.Detect(text, s)
	out.urgent = e.detector.IsUrgent(text)
	e.advance(s, text, found, signal)

	if s.HasContacts() && !s.Escalated {
		e.escalate(ctx, s, out)
	}
}

func (e *Engine) extractContacts(ctx context.Context, s *models.Session, text string) {
	needName := s.Name == "" || e.names.IsPlaceholder(s.Name)
	hint := extract.NameHint{
		PhoneOffset:   -1,
		ExpectingName: needName && s.Stage >= models.StageContactCollection,
	}
	if m, ok := extract.FindPhone(text); ok {
		s.Phone, _ = extract.MergePhone(s.Phone, m.Phone)
		hint.PhoneOffset = m.Offset
	}
	if addr, ok := extract.Email(text); ok {
		s.Email, _ = extract.MergeEmail(s.Email, addr)
	}

	found, ok := e.names.Find(text, hint)
	if !ok && needName && e.nameExtractor != nil && (hint.PhoneOffset >= 0 || hint.ExpectingName) {
		found, ok = e.askName(ctx, text)
	}
	if ok {
		held := extract.NameMatch{Name: s.Name, Marked: s.NameMarked}
		merged, _ := e.names.Merge(held, found)
		s.Name, s.NameMarked = merged.Name, merged.Marked
	}
}

func (e *Engine) askName(ctx context.Context, text string) (extract.NameMatch, bool) {
	ctx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout)
	defer cancel()

	name, err := e.nameExtractor.ExtractName(ctx, text)
	if err != nil {
		zap.L().Warn("⚠️ Name extractor failed", zap.Error(err))
		return extract.NameMatch{}, false
	}
	if name == "" {
		return extract.NameMatch{}, false
	}
	name, ok := e.names.Validate(name)
	return extract.NameMatch{Name: name, Marked: ok}, ok
}

func (e *Engine) advance(s *models.Session, text string, topicFound bool, signal classify.Signal) {
	from := s.Stage

	switch s.Stage {
	case models.StageNeedsAnalysis:
		switch {
		case topicFound:
			s.Advance(models.StageDetailsClarification)
		case signal.Ready:
			s.Advance(models.StageContactCollection)
		case e.detector.IsQuestion(text):
			s.Advance(models.StageConsultation)
		}
	case models.StageConsultation:
		switch {
		case topicFound:
			s.Advance(models.StageDetailsClarification)
		case signal.Ready:
			s.Advance(models.StageContactCollection)
		}
	}

	if s.Stage == models.StageDetailsClarification {
		topic, _ := e.catalog.Topic(s.Topic)
		if signal.Ready || e.classifier.Sufficient(topic, s.Slots, s.ClarifyTurns, e.cfg.DetailsTurns) {
			s.Advance(models.StageContactCollection)
		} else {
			s.ClarifyTurns++
		}
	}

	if s.Stage != from {
		zap.L().Debug("stage changed",
			zap.String("session", s.Key),
			zap.Stringer("from", from),
			zap.Stringer("to", s.Stage),
			zap.String("reason", string(signal.Reason)),
		)
	}
}

func (e *Engine) escalate(ctx context.Context, s *models.Session, out *turnOutcome) {
	err := e.dispatcher.Dispatch(ctx, s, models.EscalationComplete)
	switch {
	case err == nil:
		s.Advance(models.StageCompleted)
		out.escalatedNow = true
	case errors.Is(err, ErrAlreadyEscalated), errors.Is(err, ErrIncompleteContacts):
	default:
		// stays unescalated; the next qualifying turn retries
		zap.L().Warn("⚠️ Lead dispatch failed", zap.String("session", s.Key), zap.Error(err))
		s.Advance(models.StageContactCollection)
		out.dispatchFailed = true
	}
}

// compose builds the reply from a committed snapshot, outside the session lock.
func (e *Engine) compose(ctx context.Context, s *models.Session, text string, out turnOutcome) (reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("❌ Reply composition failed", zap.String("session", s.Key), zap.Any("panic", r))
			reply = e.apology()
		}
	}()

	reply = Reply{Stage: s.Stage, Escalated: s.Escalated, EscalatedNow: out.escalatedNow}
	c := e.catalog

	switch {
	case out.escalatedNow:
		reply.Text = c.Render(c.Replies.Submitted, s.Name)
	case out.dispatchFailed:
		reply.Text = c.Render(c.Replies.DispatchFailed, s.Name)
	case s.Stage == models.StageCompleted:
		reply.Text = e.completedReply(s)
	case out.urgent && c.Replies.Emergency != "":
		reply.Text = c.Render(c.Replies.Emergency, s.Name)
	case s.Stage == models.StageContactCollection:
		reply.Text = e.contactsReply(s)
	case s.Stage == models.StageDetailsClarification:
		topic, _ := c.Topic(s.Topic)
		if q, ok := e.classifier.NextQuestion(topic, s.Slots); ok {
			reply.Text = q
		} else {
			reply.Text = e.contactsReply(s)
		}
	default:
		reply.Text = e.converse(ctx, s, text, out.firstTurn)
	}
	return reply
}

func (e *Engine) completedReply(s *models.Session) string {
	r := e.catalog.Replies
	tmpl := r.Submitted
	if s.EscalationKind == models.EscalationIncompleteTimeout && r.SubmittedIncomplete != "" {
		tmpl = r.SubmittedIncomplete
	}
	if r.Closing != "" {
		tmpl += " " + r.Closing
	}
	return e.catalog.Render(tmpl, s.Name)
}

func (e *Engine) contactsReply(s *models.Session) string {
	r := e.catalog.Replies
	switch {
	case s.Name != "" && s.Phone == "":
		return e.catalog.Render(r.AskPhone, s.Name)
	case s.Phone != "" && s.Name == "":
		return e.catalog.Render(r.AskName, "")
	default:
		return e.catalog.Render(r.AskContacts, s.Name)
	}
}

func (e *Engine) converse(ctx context.Context, s *models.Session, text string, first bool) string {
	rc := ReplyContext{
		Text:      text,
		FirstTurn: first,
		HasName:   s.Name != "",
		HasPhone:  s.Phone != "",
		Escalated: s.Escalated,
		Stage:     s.Stage,
	}
	if t, ok := e.catalog.Topic(s.Topic); ok {
		rc.Topic = t.Label
	}

	if e.generator != nil {
		reply, err := e.generate(ctx, rc)
		if err == nil {
			return reply
		}
		zap.L().Warn("⚠️ Reply generator failed, using rule reply", zap.String("session", s.Key), zap.Error(err))
	}
	return e.rules.Reply(rc)
}

func (e *Engine) generate(ctx context.Context, rc ReplyContext) (reply string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("panic in reply generator: %v", r)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.GeneratorTimeout)
	defer cancel()
	return e.generator.GenerateReply(ctx, rc)
}

func (e *Engine) apology() Reply {
	return Reply{Text: e.catalog.Render(e.catalog.Replies.InternalError, "")}
}
