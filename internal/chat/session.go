// Package chat drives a conversation with the model over a graph store.
// Actions the model proposes in a normal turn wait for the user to confirm
// them; actions emitted while a plan is executing apply at once.
package chat

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/graph"
	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/plan"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

// ErrNothingPending is returned by Confirm and Reject when no turn awaits
// confirmation.
var ErrNothingPending = errors.New("no actions awaiting confirmation")

// Kind is the author of a transcript entry.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindTool      Kind = "tool"
	// KindNotice entries report plan progress.
	KindNotice Kind = "notice"
)

// Proposal is a tool call awaiting the user's decision.
type Proposal struct {
	Call     models.ToolCall
	Accepted bool
}

// Message is one transcript entry.
type Message struct {
	ID        string
	Kind      Kind
	Text      string
	Analysis  string
	Proposals []Proposal
	Results   []models.ToolResult
	Resolved  bool
}

// Pending reports whether the message carries proposals nobody has decided on.
func (m Message) Pending() bool {
	return m.Kind == KindAssistant && len(m.Proposals) > 0 && !m.Resolved
}

func (m Message) clone() Message {
	m.Proposals = slices.Clone(m.Proposals)
	m.Results = slices.Clone(m.Results)
	return m
}

// Session is one conversation bound to a store.
type Session struct {
	gen        ai.Generator
	store      *graph.Store
	dispatcher *tools.Dispatcher
	engine     *plan.Engine

	mode     Mode
	logger   *zap.Logger
	newID    func() string
	notify   func(Message)
	planOpts []plan.Option

	mu         sync.Mutex
	transcript []Message
}

// Option configures a Session.
type Option func(*Session)

// WithMode sets the creative or strict mode hint.
func WithMode(m Mode) Option {
	return func(s *Session) { s.mode = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithIDGenerator sets the generator for message, step and call ids.
func WithIDGenerator(fn func() string) Option {
	return func(s *Session) { s.newID = fn }
}

// WithNotify registers a callback for every message appended outside
// Respond, such as plan progress and tool results.
func WithNotify(fn func(Message)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithPlanOptions passes options to the plan engine.
func WithPlanOptions(opts ...plan.Option) Option {
	return func(s *Session) { s.planOpts = append(s.planOpts, opts...) }
}

// New creates a session. The dispatcher must act on store.
func New(gen ai.Generator, store *graph.Store, dispatcher *tools.Dispatcher, opts ...Option) *Session {
	s := &Session{
		gen:        gen,
		store:      store,
		dispatcher: dispatcher,
		mode:       ModeCreative,
		logger:     zap.NewNop(),
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	planOpts := append(slices.Clone(s.planOpts),
		plan.WithInstruction(s.Instruction),
		plan.WithEvents(s.onPlanEvent),
		plan.WithIDGenerator(s.newID),
		plan.WithLogger(s.logger.Named("plan")),
	)
	s.engine = plan.New(gen, dispatcher, planOpts...)
	return s
}

// Plan returns the session's plan engine.
func (s *Session) Plan() *plan.Engine { return s.engine }

// Instruction returns the system instruction for the store's current state.
func (s *Session) Instruction() string {
	return SystemInstruction(s.store, s.mode, s.dispatcher.Definitions())
}

// Transcript returns a copy of the conversation.
func (s *Session) Transcript() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.transcript))
	for i, m := range s.transcript {
		out[i] = m.clone()
	}
	return out
}

// Respond sends text to the model and records its reply. A plan in the reply
// replaces the current plan unless one is executing. Actions become proposals, or apply at once while
// a plan is executing. If the model call fails the user message is removed
// from the transcript.
func (s *Session) Respond(ctx context.Context, text string) (Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, apperrors.NewValidationError("message is empty")
	}

	user := Message{ID: s.newID(), Kind: KindUser, Text: text}
	s.mu.Lock()
	messages := append(History(s.transcript), ai.Message{Role: ai.RoleUser, Text: text})
	s.transcript = append(s.transcript, user)
	s.mu.Unlock()

	executing := s.engine.Running()
	req := ai.Request{
		Messages:          messages,
		SystemInstruction: s.Instruction(),
		ResponseSchema:    tools.PlanningSchema(),
	}
	if executing {
		req.ResponseSchema = tools.ExecutionSchema()
	}

	resp, err := s.gen.Generate(ctx, req)
	var out *ai.Structured
	if err == nil {
		out, err = ai.ParseResponse(resp)
	}
	if err != nil {
		s.rollback(user.ID)
		s.logger.Warn("turn failed", zap.Error(err))
		return Message{}, fmt.Errorf("respond: %w", err)
	}

	reply := Message{
		ID:       s.newID(),
		Kind:     KindAssistant,
		Text:     strings.TrimSpace(out.Message),
		Analysis: out.Analysis,
	}
	for _, c := range out.ToolCalls(s.newID) {
		reply.Proposals = append(reply.Proposals, Proposal{Call: c, Accepted: true})
	}

	// A running plan is never replaced from a user turn.
	if steps := out.PlanSteps(s.newID); len(steps) > 0 && !executing {
		s.engine.Propose(steps)
		s.logger.Info("plan proposed", zap.Int("steps", len(steps)))
	} else if len(steps) > 0 {
		s.logger.Warn("ignoring plan sent during execution", zap.Int("steps", len(steps)))
	}

	if executing && len(reply.Proposals) > 0 {
		reply.Resolved = true
		s.append(reply)
		s.apply(ctx, reply.Proposals)
		return reply.clone(), nil
	}
	s.append(reply)
	return reply.clone(), nil
}

func (s *Session) rollback(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = slices.DeleteFunc(s.transcript, func(m Message) bool { return m.ID == id })
}

func (s *Session) append(m Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = append(s.transcript, m)
}

// Pending returns the latest turn awaiting confirmation.
func (s *Session) Pending() (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.pendingIndex(); i >= 0 {
		return s.transcript[i].clone(), true
	}
	return Message{}, false
}

func (s *Session) pendingIndex() int {
	for i := len(s.transcript) - 1; i >= 0; i-- {
		if s.transcript[i].Pending() {
			return i
		}
	}
	return -1
}

// Toggle flips the decision on the i-th pending proposal.
func (s *Session) Toggle(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.pendingIndex()
	if idx < 0 {
		return ErrNothingPending
	}
	props := s.transcript[idx].Proposals
	if i < 0 || i >= len(props) {
		return apperrors.NewValidationError("proposal %d out of range (1-%d)", i+1, len(props))
	}
	props[i].Accepted = !props[i].Accepted
	return nil
}

// Confirm dispatches the accepted proposals of the pending turn. Declined
// ones are recorded as skipped.
func (s *Session) Confirm(ctx context.Context) ([]models.ToolResult, error) {
	return s.resolve(ctx, false)
}

// Reject declines every proposal of the pending turn.
func (s *Session) Reject(ctx context.Context) ([]models.ToolResult, error) {
	return s.resolve(ctx, true)
}

func (s *Session) resolve(ctx context.Context, rejectAll bool) ([]models.ToolResult, error) {
	s.mu.Lock()
	idx := s.pendingIndex()
	if idx < 0 {
		s.mu.Unlock()
		return nil, ErrNothingPending
	}
	m := &s.transcript[idx]
	if rejectAll {
		for i := range m.Proposals {
			m.Proposals[i].Accepted = false
		}
	}
	m.Resolved = true
	props := slices.Clone(m.Proposals)
	s.mu.Unlock()

	return s.apply(ctx, props), nil
}

// apply dispatches proposals and records a tool entry with the results.
func (s *Session) apply(ctx context.Context, props []Proposal) []models.ToolResult {
	calls := make([]models.ToolCall, len(props))
	rejected := map[string]bool{}
	for i, p := range props {
		calls[i] = p.Call
		if !p.Accepted {
			rejected[p.Call.ID] = true
		}
	}
	results := s.dispatcher.Execute(ctx, calls, rejected)
	s.logger.Info("actions applied", zap.Int("calls", len(calls)), zap.Int("rejected", len(rejected)))

	entry := Message{
		ID:      s.newID(),
		Kind:    KindTool,
		Text:    strings.TrimSpace(tools.FormatResults(calls, results)),
		Results: results,
	}
	s.append(entry)
	s.publish(entry)
	return results
}

// RunPlan executes or resumes the current plan and blocks until it stops.
func (s *Session) RunPlan(ctx context.Context) (plan.Status, error) {
	return s.engine.Run(ctx)
}

// Reset starts a new conversation and discards the plan.
func (s *Session) Reset() {
	s.engine.Discard()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcript = nil
}

func (s *Session) onPlanEvent(e plan.Event) {
	var text string
	switch e.Type {
	case plan.EventStepStarted:
		text = fmt.Sprintf("Starting step %s: %s", e.Step.ID, e.Step.Description)
	case plan.EventStepCompleted:
		text = fmt.Sprintf("Step %s completed.\n%s", e.Step.ID, e.Message)
	default:
		text = e.Message
	}
	m := Message{ID: s.newID(), Kind: KindNotice, Text: text}
	s.append(m)
	s.publish(m)
}

func (s *Session) publish(m Message) {
	if s.notify != nil {
		s.notify(m.clone())
	}
}
