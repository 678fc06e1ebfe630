package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
)

var (
	accentColor = lipgloss.Color("#7D56F4")
	subtleColor = lipgloss.Color("#6C6C6C")
	okColor     = lipgloss.Color("#73F59F")

	userStyle   = lipgloss.NewStyle().Foreground(subtleColor)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	activeStyle = lipgloss.NewStyle().Foreground(accentColor)
	doneStyle   = lipgloss.NewStyle().Foreground(okColor)
	logStyle    = lipgloss.NewStyle().Foreground(subtleColor).PaddingLeft(4)
	fileStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(subtleColor).
			Padding(0, 1)
)

// printer renders a submission's progress on a terminal.
type printer struct {
	out    io.Writer
	outDir string

	mu      sync.Mutex
	printed map[string]int // message ID -> streamed bytes already written
	last    *models.Plan
	saved   []string
}

func newPrinter(out io.Writer, outDir string) *printer {
	return &printer{out: out, outDir: outDir, printed: map[string]int{}}
}

func (p *printer) MessageAdded(msg models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case msg.Role == models.RoleUser:
		fmt.Fprintln(p.out, userStyle.Render("> "+msg.Content))
	case msg.Type == models.MessagePlan && msg.Plan != nil:
		fmt.Fprintln(p.out, titleStyle.Render("Plan"))
		for i, s := range msg.Plan.Steps {
			fmt.Fprintf(p.out, "  %d. %s\n", i+1, s.Description)
		}
		p.last = msg.Plan.Clone()
	case msg.Type == models.MessageFile && msg.FileData != nil:
		p.file(msg)
	case msg.Content != "":
		fmt.Fprintln(p.out, msg.Content)
		p.printed[msg.ID] = len(msg.Content)
	}
}

func (p *printer) MessageUpdated(msg models.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := p.printed[msg.ID]
	if len(msg.Content) <= n {
		return
	}
	fmt.Fprint(p.out, msg.Content[n:])
	p.printed[msg.ID] = len(msg.Content)
}

// PlanUpdated prints what changed since the previous snapshot.
func (p *printer) PlanUpdated(_ string, plan *models.Plan) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prev := p.last
	for i, s := range plan.Steps {
		var before *models.PlanStep
		if prev != nil && i < len(prev.Steps) {
			before = prev.Steps[i]
		}
		if s.Status == models.StepActive && (before == nil || before.Status == models.StepPending) {
			fmt.Fprintln(p.out, activeStyle.Render(fmt.Sprintf("▸ Step %d: %s", i+1, s.Description)))
		}
		seen := 0
		if before != nil {
			seen = len(before.Logs)
		}
		for _, l := range s.Logs[min(seen, len(s.Logs)):] {
			fmt.Fprintln(p.out, logStyle.Render(l))
		}
		if s.Status == models.StepCompleted && (before == nil || before.Status != models.StepCompleted) {
			fmt.Fprintln(p.out, doneStyle.Render(fmt.Sprintf("✓ Step %d", i+1)))
		}
	}
	p.last = plan.Clone()
}

func (p *printer) StateChanged(state models.AgentState) {
	if state != models.StateIdle {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out)
}

func (p *printer) file(msg models.Message) {
	line := fmt.Sprintf("%s  %s  %s", msg.FileData.Name, msg.FileData.Type, msg.FileData.Size)
	if p.outDir == "" {
		fmt.Fprintln(p.out, fileStyle.Render(line))
		if !msg.IsZip {
			fmt.Fprintln(p.out, msg.Content)
		}
		return
	}

	body := []byte(msg.Content)
	if msg.IsZip {
		raw, err := archive.Decode(msg.Content)
		if err != nil {
			fmt.Fprintf(p.out, "could not decode %s: %v\n", msg.FileData.Name, err)
			return
		}
		body = raw
	}
	path := filepath.Join(p.outDir, filepath.Base(msg.FileData.Name))
	if err := os.WriteFile(path, body, 0o644); err != nil {
		fmt.Fprintf(p.out, "could not save %s: %v\n", path, err)
		return
	}
	p.saved = append(p.saved, path)
	fmt.Fprintln(p.out, fileStyle.Render(line+"\nsaved to "+path))
}
