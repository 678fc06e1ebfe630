package orchestrator_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/orchestrator"
	"github.com/example/nexa-agent/internal/providers/llm"
	"github.com/example/nexa-agent/internal/providers/llm/fake"
	"github.com/example/nexa-agent/internal/tools"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recorder is an Observer keeping everything it is told.
type recorder struct {
	mu       sync.Mutex
	messages []models.Message
	updates  []models.Message
	plans    []*models.Plan
	states   []models.AgentState

	onPlan func(*models.Plan)
}

func (r *recorder) MessageAdded(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) MessageUpdated(msg models.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, msg)
}

func (r *recorder) PlanUpdated(_ string, plan *models.Plan) {
	r.mu.Lock()
	r.plans = append(r.plans, plan)
	hook := r.onPlan
	r.mu.Unlock()
	if hook != nil {
		hook(plan)
	}
}

func (r *recorder) StateChanged(state models.AgentState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recorder) terminations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.Content == orchestrator.TerminationMessage {
			n++
		}
	}
	return n
}

func (r *recorder) last() models.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.messages[len(r.messages)-1]
}

func (r *recorder) lastPlan() *models.Plan {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.plans) == 0 {
		return nil
	}
	return r.plans[len(r.plans)-1]
}

// llmAgents wires the real agents to a scripted client.
func llmAgents(client llm.Client) orchestrator.Agents {
	return orchestrator.Agents{
		Classifier: &agents.Classifier{Client: client},
		Planner:    &agents.Planner{Client: client},
		Executor: &agents.StepExecutor{
			Router: agents.NewRouter(agents.RoutingLoose),
			Tools:  tools.NewRegistry(&tools.KnowledgeTool{Client: client}),
			Client: client,
		},
		Finalizer: &agents.Finalizer{Client: client},
		Responder: &agents.Responder{Client: client},
	}
}

func taskClient() *fake.Client {
	return fake.New().
		Text("classify the following", "task").
		Text("carrying out one step", "Step done with data.").
		Text("produce the complete contents", "```markdown\n# EV Report\nBYD, Tesla, VW\n```").
		Text("write a final response", "## Summary").
		Text("acknowledge", "On it.").
		JSON("log status updates", `["Searching...","Reading sources..."]`).
		JSON("produce the files", `{"files":[{"name":"index.html","content":"<h1>Todo</h1>"}]}`).
		JSON("exactly", `["Compare makers","Draft outline","Write report"]`)
}

func TestRunnerChat(t *testing.T) {
	client := fake.New().Text("classify the following", "chat").Text("", "Hello there friend")
	rec := &recorder{}
	r := orchestrator.NewRunner(llmAgents(client), rec, orchestrator.Config{})

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "hi", ModelTag: "Fast"}))

	require.Len(t, rec.messages, 2)
	assert.Equal(t, models.RoleUser, rec.messages[0].Role)
	reply := rec.messages[1]
	assert.Equal(t, models.RoleAssistant, reply.Role)
	assert.Equal(t, "Fast", reply.ModelTag)
	require.NotEmpty(t, rec.updates)
	assert.Equal(t, "Hello there friend", rec.updates[len(rec.updates)-1].Content)
	assert.Equal(t, reply.ID, rec.updates[0].ID)

	assert.Equal(t, []models.AgentState{models.StatePlanning, models.StateIdle}, rec.states)
	assert.Equal(t, models.StateIdle, r.State())
	assert.Nil(t, r.Plan())
	assert.Zero(t, rec.terminations())
}

func TestRunnerFileTask(t *testing.T) {
	client := taskClient()
	rec := &recorder{}
	r := orchestrator.NewRunner(llmAgents(client), rec, orchestrator.Config{})

	err := r.Run(context.Background(), orchestrator.Submission{Text: "research the top 3 EV makers and save as report.md", ModelTag: "Pro"})
	require.NoError(t, err)

	// user, ack, plan, file
	require.Len(t, rec.messages, 4)
	assert.Contains(t, rec.messages[1].Content, "report.md")
	assert.Zero(t, client.CallCount("acknowledge the user's request"))
	assert.Equal(t, models.MessagePlan, rec.messages[2].Type)
	assert.NotEmpty(t, rec.messages[2].Plan.Steps)

	file := rec.last()
	assert.Equal(t, models.MessageFile, file.Type)
	assert.False(t, file.IsZip)
	require.NotNil(t, file.FileData)
	assert.Equal(t, "report.md", file.FileData.Name)
	assert.Equal(t, "Markdown", file.FileData.Type)
	assert.Equal(t, "1KB", file.FileData.Size)
	assert.Equal(t, "# EV Report\nBYD, Tesla, VW\n", file.Content)
	assert.Equal(t, "Pro", file.ModelTag)

	plan := r.Plan()
	require.NotNil(t, plan)
	assert.True(t, plan.IsComplete)
	for _, s := range plan.Steps {
		assert.Equal(t, models.StepCompleted, s.Status)
		assert.Equal(t, []string{"Searching...", "Reading sources..."}, s.Logs)
	}
	assert.Equal(t, []models.AgentState{models.StatePlanning, models.StateExecuting, models.StateIdle}, rec.states)
	assert.Zero(t, rec.terminations())
}

func TestRunnerArchiveTask(t *testing.T) {
	rec := &recorder{}
	r := orchestrator.NewRunner(llmAgents(taskClient()), rec, orchestrator.Config{})

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "build a todo app and save as project.zip"}))

	file := rec.last()
	assert.Equal(t, models.MessageFile, file.Type)
	assert.True(t, file.IsZip)
	require.NotNil(t, file.FileData)
	assert.Equal(t, "project.zip", file.FileData.Name)
	assert.Equal(t, "base64", file.FileData.Encoding)

	files, err := archive.Unpack(file.Content)
	require.NoError(t, err)
	assert.NotEmpty(t, files)
}

func TestRunnerSummaryTask(t *testing.T) {
	client := taskClient()
	rec := &recorder{}
	r := orchestrator.NewRunner(llmAgents(client), rec, orchestrator.Config{})

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "compare EV makers"}))

	assert.Equal(t, "On it.", rec.messages[1].Content)
	assert.Equal(t, 1, client.CallCount("acknowledge the user's request"))
	last := rec.last()
	assert.Equal(t, models.MessageText, last.Type)
	assert.Equal(t, "## Summary", last.Content)
}

func TestRunnerStepContextAccumulates(t *testing.T) {
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"a", "b", "c"}}
	r := orchestrator.NewRunner(stub.agents(), &recorder{}, orchestrator.Config{})

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "do it"}))

	assert.Equal(t, []string{"", "\nStep 1: done a", "\nStep 1: done a\nStep 2: done b"}, stub.contexts)
	require.Len(t, stub.finalized, 1)
	assert.Equal(t, "\nStep 1: done a\nStep 2: done b\nStep 3: done c", stub.finalized[0].Context)
	assert.Equal(t, []string{"a", "b", "c"}, stub.finalized[0].Steps)
}

func TestRunnerRejectsInput(t *testing.T) {
	r := orchestrator.NewRunner((&stubAgents{}).agents(), &recorder{}, orchestrator.Config{})
	assert.ErrorIs(t, r.Run(context.Background(), orchestrator.Submission{Text: "  \n"}), orchestrator.ErrEmptyInput)
	assert.ErrorIs(t, r.Start(context.Background(), orchestrator.Submission{}), orchestrator.ErrEmptyInput)
}

func TestRunnerStopMidStep(t *testing.T) {
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"one", "two", "three", "four"}}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{})
	stub.onExecute = func(step string) {
		if step == "two" {
			r.Stop()
			r.Stop()
		}
	}

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "research EVs"}))

	for _, p := range rec.plans {
		assert.NotEqual(t, models.StepActive, p.Steps[2].Status)
		assert.NotEqual(t, models.StepActive, p.Steps[3].Status)
	}
	assert.Equal(t, []string{"one", "two"}, stub.executed)
	assert.Empty(t, stub.finalized)
	assert.Equal(t, 1, rec.terminations())
	assert.Equal(t, orchestrator.TerminationMessage, rec.last().Content)
	assert.True(t, rec.lastPlan().IsComplete)
	assert.Equal(t, models.StateIdle, r.State())
}

func TestRunnerPlanProgressIsMonotonic(t *testing.T) {
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"one", "two", "three", "four"}, logs: []string{"x", "y", "z"}}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{})

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "research EVs"}))

	rank := map[models.StepStatus]int{models.StepPending: 0, models.StepActive: 1, models.StepCompleted: 2}
	seen := make([]int, 4)
	for _, p := range rec.plans {
		assert.LessOrEqual(t, p.ActiveSteps(), 1)
		for i, s := range p.Steps {
			assert.GreaterOrEqual(t, rank[s.Status], seen[i], "step %d went backwards", i)
			seen[i] = rank[s.Status]
		}
	}
	assert.Equal(t, []int{2, 2, 2, 2}, seen)
	assert.True(t, rec.lastPlan().IsComplete)
}

func TestRunnerStopDuringPacing(t *testing.T) {
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"one", "two"}, logs: []string{"first", "second"}}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{LogDelay: time.Hour, StepPause: time.Hour})
	rec.onPlan = func(p *models.Plan) {
		if len(p.Steps[0].Logs) == 1 {
			r.Stop()
		}
	}

	require.NoError(t, r.Start(context.Background(), orchestrator.Submission{Text: "research EVs"}))
	r.Wait()

	assert.Equal(t, 1, rec.terminations())
	assert.Equal(t, []string{"first"}, r.Plan().Steps[0].Logs)
	assert.Equal(t, models.StepPending, r.Plan().Steps[1].Status)
	assert.Equal(t, models.StateIdle, r.State())
}

func TestRunnerBusyAndInFlightCalls(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	var callErr error
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"one"}}
	stub.onClassify = func(ctx context.Context) {
		close(entered)
		<-release
		callErr = ctx.Err()
	}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{})

	require.NoError(t, r.Start(context.Background(), orchestrator.Submission{Text: "research EVs"}))
	<-entered
	assert.Equal(t, models.StatePlanning, r.State())
	assert.ErrorIs(t, r.Start(context.Background(), orchestrator.Submission{Text: "again"}), orchestrator.ErrBusy)

	r.Stop()
	close(release)
	r.Wait()

	assert.NoError(t, callErr)
	assert.Equal(t, 1, rec.terminations())
	assert.Nil(t, r.Plan())
	assert.Empty(t, stub.executed)
	assert.Equal(t, models.StateIdle, r.State())

	// The runner accepts new work after a stop.
	stub.onClassify = nil
	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "research EVs"}))
	assert.Equal(t, 1, rec.terminations())
	assert.True(t, r.Plan().IsComplete)
}

func TestRunnerStopWhileIdleIsIgnored(t *testing.T) {
	stub := &stubAgents{intent: models.IntentTask, steps: []string{"one"}}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{})

	r.Stop()
	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "research EVs"}))

	assert.Zero(t, rec.terminations())
	assert.Len(t, stub.finalized, 1)
}

func TestRunnerStopDuringChatStream(t *testing.T) {
	stub := &stubAgents{intent: models.IntentChat, chunks: []string{"Hel", "lo ", "world"}}
	rec := &recorder{}
	r := orchestrator.NewRunner(stub.agents(), rec, orchestrator.Config{})
	stub.onChunk = func(i int) {
		if i == 1 {
			r.Stop()
		}
	}

	require.NoError(t, r.Run(context.Background(), orchestrator.Submission{Text: "hi"}))

	require.Len(t, rec.updates, 2)
	assert.Equal(t, "Hello ", rec.updates[1].Content)
	assert.Equal(t, 1, rec.terminations())
	assert.Equal(t, models.StateIdle, r.State())
}

// stubAgents plays every collaborator of a Runner.
type stubAgents struct {
	intent models.Intent
	steps  []string
	logs   []string
	chunks []string

	onClassify func(ctx context.Context)
	onExecute  func(step string)
	onChunk    func(i int)

	executed  []string
	contexts  []string
	finalized []agents.FinalizeRequest
}

func (s *stubAgents) agents() orchestrator.Agents {
	return orchestrator.Agents{Classifier: s, Planner: s, Executor: s, Finalizer: s, Responder: s}
}

func (s *stubAgents) Classify(ctx context.Context, _ string) models.Intent {
	if s.onClassify != nil {
		s.onClassify(ctx)
	}
	return s.intent
}

func (s *stubAgents) Synthesize(context.Context, string) []string { return s.steps }

func (s *stubAgents) Execute(_ context.Context, description, soFar string) string {
	s.executed = append(s.executed, description)
	s.contexts = append(s.contexts, soFar)
	if s.onExecute != nil {
		s.onExecute(description)
	}
	return "done " + description
}

func (s *stubAgents) GenerateLogs(context.Context, string, string) []string { return s.logs }

func (s *stubAgents) Finalize(_ context.Context, req agents.FinalizeRequest) models.Artifact {
	s.finalized = append(s.finalized, req)
	return models.Artifact{Kind: models.ArtifactSummary, Content: "summary"}
}

func (s *stubAgents) Acknowledge(context.Context, string) string { return "On it." }

func (s *stubAgents) Stream(_ context.Context, _ string, sink func(string)) string {
	var acc strings.Builder
	for i, c := range s.chunks {
		acc.WriteString(c)
		sink(acc.String())
		if s.onChunk != nil {
			s.onChunk(i)
		}
	}
	return acc.String()
}
