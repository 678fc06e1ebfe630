package agents

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/llm"
	"github.com/example/nexa-agent/internal/tools"
)

const (
	// StepFailedResult replaces the result when every capability failed.
	StepFailedResult = "Completed step."
	// StepEmptyResult replaces an empty answer.
	StepEmptyResult = "Step completed."
)

// StepExecutor routes a step to a capability and runs it, falling back to
// model knowledge. It never returns an error and recovers tool panics.
type StepExecutor struct {
	Router *Router
	Tools  *tools.Registry
	// Client backs GenerateLogs.
	Client llm.Client
	Logger *zap.Logger
}

func (e *StepExecutor) Execute(ctx context.Context, description, soFar string) string {
	logger := orNop(e.Logger)
	in := tools.Input{Step: description, Context: soFar}

	capability := models.CapabilityKnowledge
	if e.Router != nil {
		capability = e.Router.Route(description)
	}

	if capability != models.CapabilityKnowledge {
		out, err := e.run(ctx, capability, in)
		if err == nil && strings.TrimSpace(out) != "" {
			return out
		}
		lvl := logger.Warn
		if errors.Is(err, tools.ErrUnavailable) {
			lvl = logger.Debug
		}
		lvl("Capability failed, falling back to knowledge",
			zap.String("capability", string(capability)),
			zap.String("step", description),
			zap.Error(err))
	}

	out, err := e.run(ctx, models.CapabilityKnowledge, in)
	if err != nil {
		logger.Warn("Step execution failed, using placeholder", zap.String("step", description), zap.Error(err))
		return StepFailedResult
	}
	if strings.TrimSpace(out) == "" {
		return StepEmptyResult
	}
	return out
}

func (e *StepExecutor) run(ctx context.Context, capability models.Capability, in tools.Input) (out string, err error) {
	if e.Tools == nil {
		return "", tools.ErrUnavailable
	}
	t, ok := e.Tools.Get(capability)
	if !ok {
		return "", fmt.Errorf("no %s tool: %w", capability, tools.ErrUnavailable)
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("%s tool panicked: %v", capability, r)
		}
	}()
	out, logs, err := t.Execute(ctx, in)
	if logs != "" {
		orNop(e.Logger).Debug("Tool finished", zap.String("capability", string(capability)), zap.String("logs", logs))
	}
	return out, err
}
