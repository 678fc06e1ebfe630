package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
)

var (
	ErrBusy       = errors.New("a task is already running")
	ErrEmptyInput = errors.New("empty input")
)

// TerminationMessage is appended once when a running submission is stopped.
const TerminationMessage = "I have terminated the task as requested."

const (
	DefaultLogDelay  = 300 * time.Millisecond
	DefaultStepPause = 500 * time.Millisecond
)

// Observer receives everything a submission produces. Calls arrive from the
// runner goroutine in order.
type Observer interface {
	MessageAdded(msg models.Message)
	MessageUpdated(msg models.Message)
	PlanUpdated(messageID string, plan *models.Plan)
	StateChanged(state models.AgentState)
}

type Classifier interface {
	Classify(ctx context.Context, text string) models.Intent
}

type Planner interface {
	Synthesize(ctx context.Context, text string) []string
}

type Executor interface {
	Execute(ctx context.Context, description, soFar string) string
	GenerateLogs(ctx context.Context, description, soFar string) []string
}

type Finalizer interface {
	Finalize(ctx context.Context, req agents.FinalizeRequest) models.Artifact
}

type Responder interface {
	Acknowledge(ctx context.Context, text string) string
	Stream(ctx context.Context, prompt string, sink func(accumulated string)) string
}

// Agents bundles the collaborators a Runner drives.
type Agents struct {
	Classifier Classifier
	Planner    Planner
	Executor   Executor
	Finalizer  Finalizer
	Responder  Responder
}

type Config struct {
	// LogDelay separates consecutive step log lines.
	LogDelay time.Duration
	// StepPause follows every completed step.
	StepPause time.Duration
	Logger    *zap.Logger
	NewID     func() string
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
}

// Submission is one user turn.
type Submission struct {
	Text string
	// ModelTag is stamped on assistant messages.
	ModelTag string
}

// Runner drives submissions through IDLE -> PLANNING -> EXECUTING -> IDLE.
// At most one submission runs at a time.
type Runner struct {
	agents Agents
	obs    Observer
	cfg    Config
	logger *zap.Logger

	mu        sync.Mutex
	state     models.AgentState
	plan      *models.Plan
	planMsgID string
	stop      context.CancelFunc

	wg sync.WaitGroup
}

func NewRunner(a Agents, obs Observer, cfg Config) *Runner {
	cfg.defaults()
	return &Runner{
		agents: a,
		obs:    obs,
		cfg:    cfg,
		logger: cfg.Logger,
		state:  models.StateIdle,
	}
}

// State returns the current state.
func (r *Runner) State() models.AgentState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Plan returns a snapshot of the most recent plan, or nil.
func (r *Runner) Plan() *models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.plan.Clone()
}

// Stop requests cancellation of the running submission. It is a no-op when
// idle and idempotent while running.
func (r *Runner) Stop() {
	r.mu.Lock()
	stop := r.stop
	r.mu.Unlock()
	if stop != nil {
		stop()
	}
}

// Start accepts sub and runs it in the background. It fails with ErrBusy
// when a submission is already running.
func (r *Runner) Start(ctx context.Context, sub Submission) error {
	t, err := r.begin(sub)
	if err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.execute(ctx, t)
	}()
	return nil
}

// Run is Start without the goroutine.
func (r *Runner) Run(ctx context.Context, sub Submission) error {
	t, err := r.begin(sub)
	if err != nil {
		return err
	}
	r.execute(ctx, t)
	return nil
}

// Wait blocks until background submissions have returned.
func (r *Runner) Wait() { r.wg.Wait() }

// turn is the state of one submission.
type turn struct {
	sub        Submission
	stopCtx    context.Context
	release    context.CancelFunc
	terminated bool
}

func (r *Runner) begin(sub Submission) (*turn, error) {
	sub.Text = strings.TrimSpace(sub.Text)
	if sub.Text == "" {
		return nil, ErrEmptyInput
	}

	r.mu.Lock()
	if r.state != models.StateIdle {
		r.mu.Unlock()
		return nil, ErrBusy
	}
	stopCtx, cancel := context.WithCancel(context.Background())
	r.stop = cancel
	r.state = models.StatePlanning
	r.plan = nil
	r.planMsgID = ""
	r.mu.Unlock()

	r.obs.MessageAdded(models.Message{ID: r.cfg.NewID(), Role: models.RoleUser, Content: sub.Text, Type: models.MessageText})
	r.obs.StateChanged(models.StatePlanning)
	return &turn{sub: sub, stopCtx: stopCtx, release: cancel}, nil
}

func (r *Runner) execute(ctx context.Context, t *turn) {
	defer t.release()

	logger := r.logger.With(zap.String("model", t.sub.ModelTag))
	if r.halted(t) {
		return
	}

	intent := r.agents.Classifier.Classify(ctx, t.sub.Text)
	if r.halted(t) {
		return
	}
	logger.Info("Submission classified", zap.String("intent", string(intent)))

	if intent == models.IntentChat {
		r.chat(ctx, t)
		return
	}
	r.task(ctx, t, logger)
}

func (r *Runner) chat(ctx context.Context, t *turn) {
	msg := r.assistant(t, "", models.MessageText)
	r.obs.MessageAdded(msg)

	final := r.agents.Responder.Stream(ctx, t.sub.Text, func(acc string) {
		if t.stopCtx.Err() != nil {
			return
		}
		msg.Content = acc
		r.obs.MessageUpdated(msg)
	})
	if r.halted(t) {
		return
	}
	if final != msg.Content {
		msg.Content = final
		r.obs.MessageUpdated(msg)
	}
	r.setState(models.StateIdle)
}

func (r *Runner) task(ctx context.Context, t *turn, logger *zap.Logger) {
	target := agents.DetectFileOperation(t.sub.Text)

	var ack string
	if target.IsFileOperation {
		ack = agents.FileOperationAck(target)
	} else {
		ack = r.agents.Responder.Acknowledge(ctx, t.sub.Text)
		if r.halted(t) {
			return
		}
	}
	r.obs.MessageAdded(r.assistant(t, ack, models.MessageText))

	steps := r.agents.Planner.Synthesize(ctx, t.sub.Text)
	if r.halted(t) {
		return
	}

	planMsg := r.assistant(t, "", models.MessagePlan)
	plan := models.NewPlan(r.cfg.NewID(), t.sub.Text, steps)
	r.mu.Lock()
	r.plan = plan
	r.planMsgID = planMsg.ID
	planMsg.Plan = plan.Clone()
	r.mu.Unlock()
	r.obs.MessageAdded(planMsg)
	r.setState(models.StateExecuting)
	logger.Info("Plan ready", zap.String("plan", plan.ID), zap.Int("steps", len(steps)))

	var soFar strings.Builder
	for i, step := range plan.Steps {
		if r.halted(t) {
			return
		}
		r.updatePlan(func(*models.Plan) { step.Status = models.StepActive })

		result := r.agents.Executor.Execute(ctx, step.Description, soFar.String())
		if r.halted(t) {
			return
		}
		fmt.Fprintf(&soFar, "\nStep %d: %s", i+1, result)

		lines := r.agents.Executor.GenerateLogs(ctx, step.Description, soFar.String())
		if r.halted(t) {
			return
		}
		for _, line := range lines {
			r.updatePlan(func(*models.Plan) { step.Logs = append(step.Logs, line) })
			if !r.pause(t, r.cfg.LogDelay) {
				return
			}
		}

		r.updatePlan(func(*models.Plan) { step.Status = models.StepCompleted })
		logger.Debug("Step completed", zap.Int("step", i+1))
		if !r.pause(t, r.cfg.StepPause) {
			return
		}
	}

	artifact := r.agents.Finalizer.Finalize(ctx, agents.FinalizeRequest{
		Text:    t.sub.Text,
		Steps:   plan.Descriptions(),
		Context: soFar.String(),
		Target:  target,
	})
	if r.halted(t) {
		return
	}

	r.updatePlan(func(p *models.Plan) { p.IsComplete = true })
	r.obs.MessageAdded(r.artifactMessage(t, artifact))
	r.setState(models.StateIdle)
	logger.Info("Task finished", zap.String("artifact", string(artifact.Kind)))
}

func (r *Runner) artifactMessage(t *turn, a models.Artifact) models.Message {
	if a.Kind == models.ArtifactSummary {
		return r.assistant(t, a.Content, models.MessageText)
	}
	msg := r.assistant(t, a.Content, models.MessageFile)
	size := len(a.Content)
	fd := &models.FileArtifact{Name: a.FileName, Type: a.FileType}
	if a.Kind == models.ArtifactArchive {
		msg.IsZip = true
		fd.Encoding = "base64"
		if raw, err := archive.Decode(a.Content); err == nil {
			size = len(raw)
		}
	}
	fd.Size = agents.SizeLabel(size)
	msg.FileData = fd
	return msg
}

func (r *Runner) assistant(t *turn, content string, typ models.MessageType) models.Message {
	return models.Message{
		ID:       r.cfg.NewID(),
		Role:     models.RoleAssistant,
		Content:  content,
		Type:     typ,
		ModelTag: t.sub.ModelTag,
	}
}

// halted reports whether a stop was requested and, if so, terminates the
// turn exactly once.
func (r *Runner) halted(t *turn) bool {
	if t.stopCtx.Err() == nil {
		return false
	}
	r.terminate(t)
	return true
}

// pause waits d unless stopped first. It reports whether the turn may go on.
func (r *Runner) pause(t *turn, d time.Duration) bool {
	if d > 0 {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-t.stopCtx.Done():
		}
	}
	return !r.halted(t)
}

func (r *Runner) terminate(t *turn) {
	if t.terminated {
		return
	}
	t.terminated = true
	r.logger.Info("Submission stopped")

	r.obs.MessageAdded(r.assistant(t, TerminationMessage, models.MessageText))
	r.mu.Lock()
	hasPlan := r.plan != nil
	r.mu.Unlock()
	if hasPlan {
		r.updatePlan(func(p *models.Plan) { p.IsComplete = true })
	}
	r.setState(models.StateIdle)
}

// updatePlan applies fn under the lock and publishes a snapshot.
func (r *Runner) updatePlan(fn func(*models.Plan)) {
	r.mu.Lock()
	fn(r.plan)
	snap := r.plan.Clone()
	id := r.planMsgID
	r.mu.Unlock()
	r.obs.PlanUpdated(id, snap)
}

func (r *Runner) setState(s models.AgentState) {
	r.mu.Lock()
	r.state = s
	if s == models.StateIdle {
		r.stop = nil
	}
	r.mu.Unlock()
	r.obs.StateChanged(s)
}
