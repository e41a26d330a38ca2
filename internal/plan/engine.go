// Package plan runs an AI-proposed multi-step plan. Steps form a dependency
// graph; the engine runs one ready step at a time, gives each an isolated
// prompt built from its own instruction and the results of the steps it
// depends on, and dispatches the actions the model returns.
package plan

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/apperrors"
	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

// Status is the lifecycle state of the plan as a whole.
type Status string

const (
	StatusNone      Status = ""
	StatusProposed  Status = "proposed"
	StatusExecuting Status = "executing"
	StatusCompleted Status = "completed"
	StatusPaused    Status = "paused"
)

// EventType classifies an Event.
type EventType string

const (
	EventStepStarted   EventType = "step_started"
	EventStepCompleted EventType = "step_completed"
	EventStepFailed    EventType = "step_failed"
	EventPlanCompleted EventType = "plan_completed"
	EventPlanPaused    EventType = "plan_paused"
)

// Event reports progress to the host.
type Event struct {
	Type    EventType
	Step    models.PlanStep
	Message string
}

// Executor dispatches tool calls. *tools.Dispatcher satisfies it.
type Executor interface {
	Execute(ctx context.Context, calls []models.ToolCall, rejected map[string]bool) []models.ToolResult
}

// Recorder receives plan metrics.
type Recorder interface {
	PlanStep(status string)
	AIRetry()
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Config holds the retry and pacing knobs.
type Config struct {
	MaxRetries  int
	BackoffBase time.Duration
	SettleDelay time.Duration
}

// DefaultConfig returns three retries, a one second backoff base and a one
// second settle delay.
func DefaultConfig() Config {
	return Config{MaxRetries: 3, BackoffBase: time.Second, SettleDelay: time.Second}
}

// ErrRunning is returned when Run is called while the plan is already running.
var ErrRunning = errors.New("plan is already running")

// ErrNoPlan is returned when there is nothing to run or edit.
var ErrNoPlan = errors.New("no plan")

var errDiscarded = errors.New("plan discarded")

const stepRules = `You are executing one step of an approved plan. Do not propose a new plan.
Carry out the step by emitting actions, and always include a short message telling the user what you did.`

const followUp = `Your reply contained no actions and no message. You must carry out the step now: emit the actions it needs and a short status message.`

// Engine owns one plan at a time.
type Engine struct {
	gen  ai.Generator
	exec Executor
	cfg  Config

	instruction func() string
	sleep       Sleeper
	newID       func() string
	onEvent     func(Event)
	recorder    Recorder
	logger      *zap.Logger

	mu      sync.Mutex
	steps   []models.PlanStep
	status  Status
	actions int
	epoch   uint64
	running bool
	pause   bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfig overrides DefaultConfig.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.cfg = cfg }
}

// WithInstruction supplies the system instruction for every step. It is read
// when the step starts so it sees the latest graph.
func WithInstruction(fn func() string) Option {
	return func(e *Engine) { e.instruction = fn }
}

// WithSleeper replaces the timer used for backoff and settling.
func WithSleeper(s Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithIDGenerator sets the generator for tool call ids.
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) { e.newID = fn }
}

// WithEvents registers the event callback. It is never called with the
// engine lock held.
func WithEvents(fn func(Event)) Option {
	return func(e *Engine) { e.onEvent = fn }
}

// WithRecorder wires metrics.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an idle engine.
func New(gen ai.Generator, exec Executor, opts ...Option) *Engine {
	e := &Engine{
		gen:         gen,
		exec:        exec,
		cfg:         DefaultConfig(),
		instruction: func() string { return "" },
		sleep:       Sleep,
		newID:       uuid.NewString,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Propose replaces the current plan. Every step starts pending and the
// action counter resets.
func (e *Engine) Propose(steps []models.PlanStep) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.steps = make([]models.PlanStep, len(steps))
	for i, s := range steps {
		s = s.Clone()
		s.Status = models.StepPending
		s.Result = ""
		e.steps[i] = s
	}
	e.status = StatusProposed
	e.actions = 0
	e.pause = false
	if len(steps) == 0 {
		e.status = StatusNone
	}
}

// Discard drops the plan. A step in flight finishes its model call but its
// actions are not dispatched and its result is thrown away.
func (e *Engine) Discard() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.epoch++
	e.steps = nil
	e.status = StatusNone
	e.actions = 0
	e.pause = false
}

// Pause asks a running plan to stop after the current step.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		e.pause = true
	}
}

// Steps returns a copy of the plan.
func (e *Engine) Steps() []models.PlanStep {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.PlanStep, len(e.steps))
	for i, s := range e.steps {
		out[i] = s.Clone()
	}
	return out
}

// Status returns the plan status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Running reports whether Run is in progress.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// ActionCount returns the number of actions dispatched since the plan was
// proposed.
func (e *Engine) ActionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.actions
}

// UpdateStep edits a step of a plan that is not running. Empty strings and a
// nil deps slice leave the field unchanged.
func (e *Engine) UpdateStep(id, description, prompt string, deps []string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	i := e.indexOf(id)
	if i < 0 {
		return apperrors.NewNotFoundError("step", id)
	}
	if description != "" {
		e.steps[i].Description = description
	}
	if prompt != "" {
		e.steps[i].Prompt = prompt
	}
	if deps != nil {
		e.steps[i].Dependencies = slices.Clone(deps)
	}
	return nil
}

// RemoveStep deletes a step and drops it from every dependency list.
func (e *Engine) RemoveStep(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return ErrRunning
	}
	i := e.indexOf(id)
	if i < 0 {
		return apperrors.NewNotFoundError("step", id)
	}
	e.steps = slices.Delete(e.steps, i, i+1)
	for j := range e.steps {
		e.steps[j].Dependencies = slices.DeleteFunc(e.steps[j].Dependencies, func(d string) bool { return d == id })
	}
	if len(e.steps) == 0 {
		e.status = StatusNone
	}
	return nil
}

func (e *Engine) indexOf(id string) int {
	return slices.IndexFunc(e.steps, func(s models.PlanStep) bool { return s.ID == id })
}

// Run executes the plan until it completes, pauses, is discarded or ctx is
// cancelled. Running a paused plan resumes it: steps that errored are
// queued again. Run returns the final status.
func (e *Engine) Run(ctx context.Context) (Status, error) {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return e.Status(), ErrRunning
	}
	if e.status == StatusNone {
		e.mu.Unlock()
		return StatusNone, ErrNoPlan
	}
	if e.status == StatusCompleted {
		e.mu.Unlock()
		return StatusCompleted, nil
	}
	for i := range e.steps {
		if e.steps[i].Status == models.StepError || e.steps[i].Status == models.StepInProgress {
			e.steps[i].Status = models.StepPending
		}
	}
	e.running = true
	e.pause = false
	e.status = StatusExecuting
	epoch := e.epoch
	e.mu.Unlock()

	e.logger.Info("plan started", zap.Int("steps", len(e.Steps())))
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	for {
		step, events, done := e.next(epoch)
		e.publish(events...)
		if done {
			return e.Status(), nil
		}

		result, calls, err := e.runStep(ctx, epoch, step)
		if err != nil && ctx.Err() != nil {
			e.publish(e.interrupt(epoch, step.ID)...)
			return e.Status(), ctx.Err()
		}
		e.publish(e.finish(epoch, step.ID, result, calls, err)...)
	}
}

// next picks the first pending step whose dependencies have all completed
// and marks it in progress. done is true when nothing should run.
func (e *Engine) next(epoch uint64) (models.PlanStep, []Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return models.PlanStep{}, nil, true
	}
	if e.pause {
		e.pause = false
		e.status = StatusPaused
		return models.PlanStep{}, []Event{{Type: EventPlanPaused, Message: "Plan paused."}}, true
	}

	status := make(map[string]models.StepStatus, len(e.steps))
	for _, s := range e.steps {
		status[s.ID] = s.Status
	}

	ready := -1
	complete, failed := 0, 0
	for i, s := range e.steps {
		switch s.Status {
		case models.StepCompleted:
			complete++
		case models.StepError:
			failed++
		case models.StepPending:
			if ready < 0 && depsMet(s, status) {
				ready = i
			}
		}
	}

	if complete == len(e.steps) {
		e.status = StatusCompleted
		e.logger.Info("plan completed", zap.Int("steps", complete), zap.Int("actions", e.actions))
		return models.PlanStep{}, []Event{{
			Type:    EventPlanCompleted,
			Message: fmt.Sprintf("Plan completed: %d step(s), %d action(s).", complete, e.actions),
		}}, true
	}

	if ready < 0 {
		e.status = StatusPaused
		var msg string
		if failed > 0 && !e.hasPending() {
			msg = fmt.Sprintf("Plan paused: %d step(s) failed. Resume to retry them.", failed)
		} else {
			msg = "Plan paused: " + e.stuck(status).Error()
		}
		e.logger.Warn("plan paused", zap.String("reason", msg))
		return models.PlanStep{}, []Event{{Type: EventPlanPaused, Message: msg}}, true
	}

	e.steps[ready].Status = models.StepInProgress
	step := e.steps[ready].Clone()
	return step, []Event{{Type: EventStepStarted, Step: step, Message: "Running step: " + step.Description}}, false
}

func (e *Engine) hasPending() bool {
	for _, s := range e.steps {
		if s.Status == models.StepPending {
			return true
		}
	}
	return false
}

// stuck describes why no pending step can run.
func (e *Engine) stuck(status map[string]models.StepStatus) error {
	var waits []string
	for _, s := range e.steps {
		if s.Status != models.StepPending {
			continue
		}
		var blockers []string
		for _, d := range s.Dependencies {
			st, ok := status[d]
			switch {
			case !ok:
				blockers = append(blockers, d+" (missing)")
			case st != models.StepCompleted:
				blockers = append(blockers, fmt.Sprintf("%s (%s)", d, st))
			}
		}
		waits = append(waits, fmt.Sprintf("step %s waits on %s", s.ID, strings.Join(blockers, ", ")))
	}
	return apperrors.NewStructuralError("no step can run: %s", strings.Join(waits, "; "))
}

func depsMet(s models.PlanStep, status map[string]models.StepStatus) bool {
	for _, d := range s.Dependencies {
		if status[d] != models.StepCompleted {
			return false
		}
	}
	return true
}

// runStep asks the model to perform one step and dispatches its actions.
func (e *Engine) runStep(ctx context.Context, epoch uint64, step models.PlanStep) (string, int, error) {
	log := e.logger.With(zap.String("step", step.ID))
	req := ai.Request{
		SystemInstruction: strings.TrimSpace(e.instruction() + "\n\n" + stepRules),
		Messages:          []ai.Message{{Role: ai.RoleUser, Text: e.stepPrompt(step)}},
		ResponseSchema:    tools.ExecutionSchema(),
	}

	resp, err := e.generate(ctx, req)
	if err != nil {
		return "", 0, err
	}
	out, perr := ai.ParseResponse(resp)
	if perr != nil || out.Empty() {
		log.Info("empty step reply, asking again")
		req.Messages = append(req.Messages,
			ai.Message{Role: ai.RoleModel, Text: replyText(resp)},
			ai.Message{Role: ai.RoleUser, Text: followUp},
		)
		if resp, err = e.generate(ctx, req); err != nil {
			return "", 0, err
		}
		if out, err = ai.ParseResponse(resp); err != nil {
			return "", 0, err
		}
		if out.Empty() {
			return "", 0, errors.New("the model returned no actions and no message")
		}
	}

	calls := out.ToolCalls(e.newID)
	if !e.current(epoch) {
		return "", 0, errDiscarded
	}
	results := e.exec.Execute(ctx, calls, nil)
	log.Info("step actions dispatched", zap.Int("actions", len(calls)))

	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(out.Message))
	if len(calls) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString("Tool results:\n")
		sb.WriteString(tools.FormatResults(calls, results))
	}
	result := strings.TrimSpace(sb.String())

	if err := e.sleep(ctx, e.cfg.SettleDelay); err != nil {
		return result, len(calls), err
	}
	if tools.AllFailed(results) {
		return result, len(calls), errors.New("every action failed:\n" + tools.FormatResults(calls, results))
	}
	return result, len(calls), nil
}

// stepPrompt isolates the step from the conversation: it carries the step's
// own instruction and the results of its dependencies only.
func (e *Engine) stepPrompt(step models.PlanStep) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sb strings.Builder
	fmt.Fprintf(&sb, "Step %s: %s\n\nInstruction:\n%s\n", step.ID, step.Description, step.Prompt)
	if len(step.Dependencies) == 0 {
		return sb.String()
	}
	sb.WriteString("\nResults of the steps this one depends on:\n")
	for _, d := range step.Dependencies {
		i := e.indexOf(d)
		if i < 0 {
			continue
		}
		fmt.Fprintf(&sb, "\n### Step %s: %s\n%s\n", d, e.steps[i].Description, e.steps[i].Result)
	}
	return sb.String()
}

// generate calls the model, retrying transient failures with exponential
// backoff.
func (e *Engine) generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	for attempt := 1; ; attempt++ {
		resp, err := e.gen.Generate(ctx, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !ai.IsTransient(err) || attempt > e.cfg.MaxRetries {
			return nil, err
		}
		delay := e.cfg.BackoffBase * time.Duration(1<<attempt)
		e.logger.Warn("transient model error, retrying",
			zap.Error(err), zap.Int("attempt", attempt), zap.Duration("delay", delay))
		if e.recorder != nil {
			e.recorder.AIRetry()
		}
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
	}
}

func replyText(resp *ai.Response) string {
	if resp == nil {
		return ""
	}
	return resp.Text
}

func (e *Engine) current(epoch uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch == epoch
}

// finish records the outcome of a step.
func (e *Engine) finish(epoch uint64, id, result string, actions int, err error) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil
	}
	i := e.indexOf(id)
	if i < 0 {
		return nil
	}
	e.actions += actions
	s := &e.steps[i]
	if err != nil {
		s.Status = models.StepError
		s.Result = err.Error()
		e.logger.Warn("step failed", zap.String("step", id), zap.Error(err))
		e.record(models.StepError)
		return []Event{{Type: EventStepFailed, Step: s.Clone(), Message: fmt.Sprintf("Step %s failed: %v", id, err)}}
	}
	s.Status = models.StepCompleted
	s.Result = result
	e.record(models.StepCompleted)
	return []Event{{Type: EventStepCompleted, Step: s.Clone(), Message: result}}
}

// interrupt returns an in-flight step to pending after cancellation.
func (e *Engine) interrupt(epoch uint64, id string) []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil
	}
	if i := e.indexOf(id); i >= 0 {
		e.steps[i].Status = models.StepPending
	}
	e.status = StatusPaused
	return []Event{{Type: EventPlanPaused, Message: "Plan paused: interrupted."}}
}

func (e *Engine) record(status models.StepStatus) {
	if e.recorder != nil {
		e.recorder.PlanStep(string(status))
	}
}

func (e *Engine) publish(events ...Event) {
	if e.onEvent == nil {
		return
	}
	for _, ev := range events {
		e.onEvent(ev)
	}
}
