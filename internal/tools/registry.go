// Package tools implements the capabilities a plan step can be routed to.
package tools

import (
	"context"
	"errors"

	"github.com/example/nexa-agent/internal/models"
)

// ErrUnavailable signals that a capability cannot serve a step and the caller
// should fall back to answering from model knowledge.
var ErrUnavailable = errors.New("capability unavailable")

type Input struct {
	Step string
	// Context is the accumulated "Step N: ..." results of earlier steps.
	Context string
}

type Tool interface {
	Name() models.Capability
	Execute(ctx context.Context, in Input) (output string, logs string, err error)
}

type Registry struct {
	tools map[models.Capability]Tool
}

func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: map[models.Capability]Tool{}}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds t, replacing any tool with the same capability. Nil tools are ignored.
func (r *Registry) Register(t Tool) {
	if t == nil {
		return
	}
	r.tools[t.Name()] = t
}

func (r *Registry) Get(c models.Capability) (Tool, bool) {
	t, ok := r.tools[c]
	return t, ok
}
