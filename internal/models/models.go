package models

import (
	"time"
)

// AgentState is the per-session state of the task runner.
type AgentState string

const (
	StateIdle      AgentState = "IDLE"
	StatePlanning  AgentState = "PLANNING"
	StateExecuting AgentState = "EXECUTING"
	// StateCompleted is part of the published vocabulary but the runner
	// always settles back to StateIdle.
	StateCompleted AgentState = "COMPLETED"
)

// Intent is the binary classification of a user request.
type Intent string

const (
	IntentChat Intent = "chat"
	IntentTask Intent = "task"
)

// Capability is the external tool a step is routed to.
type Capability string

const (
	CapabilityBrowser   Capability = "browser"
	CapabilitySearch    Capability = "search"
	CapabilityKnowledge Capability = "knowledge"
)

type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepActive    StepStatus = "active"
	StepCompleted StepStatus = "completed"
)

type PlanStep struct {
	ID          int        `json:"id"`
	Description string     `json:"description"`
	Status      StepStatus `json:"status"`
	Logs        []string   `json:"logs"`
}

type Plan struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Steps      []*PlanStep `json:"steps"`
	IsComplete bool        `json:"isComplete"`
}

// NewPlan builds a plan with every step pending.
func NewPlan(id, title string, descriptions []string) *Plan {
	steps := make([]*PlanStep, 0, len(descriptions))
	for i, d := range descriptions {
		steps = append(steps, &PlanStep{ID: i, Description: d, Status: StepPending, Logs: []string{}})
	}
	return &Plan{ID: id, Title: title, Steps: steps}
}

// Clone returns a deep copy safe to hand to observers.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	out := &Plan{ID: p.ID, Title: p.Title, IsComplete: p.IsComplete, Steps: make([]*PlanStep, len(p.Steps))}
	for i, s := range p.Steps {
		logs := make([]string, len(s.Logs))
		copy(logs, s.Logs)
		out.Steps[i] = &PlanStep{ID: s.ID, Description: s.Description, Status: s.Status, Logs: logs}
	}
	return out
}

// Descriptions returns the step descriptions in index order.
func (p *Plan) Descriptions() []string {
	out := make([]string, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Description
	}
	return out
}

// ActiveSteps counts the steps currently marked active.
func (p *Plan) ActiveSteps() int {
	n := 0
	for _, s := range p.Steps {
		if s.Status == StepActive {
			n++
		}
	}
	return n
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

type MessageType string

const (
	MessageText MessageType = "text"
	MessagePlan MessageType = "plan"
	MessageFile MessageType = "file"
)

type FileArtifact struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size string `json:"size"`
	// Encoding is "base64" for archives, empty for plain text content.
	Encoding string `json:"encoding,omitempty"`
}

type Message struct {
	ID       string        `json:"id"`
	Role     Role          `json:"role"`
	Content  string        `json:"content"`
	Type     MessageType   `json:"type,omitempty"`
	Plan     *Plan         `json:"plan,omitempty"`
	FileData *FileArtifact `json:"fileData,omitempty"`
	ModelTag string        `json:"modelTag,omitempty"`
	IsZip    bool          `json:"isZip,omitempty"`
}

// Clone copies the message including its plan snapshot.
func (m Message) Clone() Message {
	m.Plan = m.Plan.Clone()
	if m.FileData != nil {
		fd := *m.FileData
		m.FileData = &fd
	}
	return m
}

type ArtifactKind string

const (
	ArtifactSummary ArtifactKind = "summary"
	ArtifactFile    ArtifactKind = "file"
	ArtifactArchive ArtifactKind = "archive"
)

// Artifact is the finalized output of a task.
type Artifact struct {
	Kind     ArtifactKind `json:"kind"`
	Content  string       `json:"content"`
	FileName string       `json:"fileName,omitempty"`
	FileType string       `json:"fileType,omitempty"`
}

type ChatSession struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// ModelOption is a user-selectable assistant flavour.
type ModelOption struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Tag         string `json:"tag,omitempty"`
}

var Models = []ModelOption{
	{ID: "lite", Name: "Nexa 1.6 Fast", Description: "A lightweight agent for everyday tasks.", Tag: "Fast"},
	{ID: "max", Name: "Nexa 1.6 Pro", Description: "High-performance agent designed for complex tasks.", Tag: "Pro"},
}

// FindModel returns the catalog entry for id, or the first entry when unknown.
func FindModel(id string) ModelOption {
	for _, m := range Models {
		if m.ID == id {
			return m
		}
	}
	return Models[0]
}
