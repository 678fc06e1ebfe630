package agents_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/nexa-agent/internal/agents"
	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/llm/fake"
)

func TestDetectFileOperation(t *testing.T) {
	tests := map[string]struct {
		text  string
		expOp agents.FileOperation
	}{
		"A saved markdown report should be detected": {
			text:  "research the top 3 EV makers and save as report.md",
			expOp: agents.FileOperation{IsFileOperation: true, FileName: "report.md", Extension: "md", OperationType: "create"},
		},
		"A zip target should be detected": {
			text:  "build a todo app and save as project.zip",
			expOp: agents.FileOperation{IsFileOperation: true, FileName: "project.zip", Extension: "zip", OperationType: "create"},
		},
		"The write verb should be reported": {
			text:  "Write a scraper in scraper.py",
			expOp: agents.FileOperation{IsFileOperation: true, FileName: "scraper.py", Extension: "py", OperationType: "write"},
		},
		"The generate verb should be reported": {
			text:  "Generate config.JSON for the service",
			expOp: agents.FileOperation{IsFileOperation: true, FileName: "config.JSON", Extension: "json", OperationType: "generate"},
		},
		"Longer extensions should win over prefixes": {
			text:  "create App.tsx",
			expOp: agents.FileOperation{IsFileOperation: true, FileName: "App.tsx", Extension: "tsx", OperationType: "create"},
		},
		"A file name without a producing verb should be ignored": {
			text: "what is in report.md?",
		},
		"A file inside a URL should be ignored": {
			text: "save the summary of https://example.com/index.html",
		},
		"Unknown extensions should be ignored": {
			text: "create a logo.png",
		},
		"Plain requests should not be file operations": {
			text: "research EV makers",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expOp, agents.DetectFileOperation(test.text))
		})
	}
}

func TestFileHelpers(t *testing.T) {
	assert.Equal(t, "Markdown", agents.FileTypeFor("md"))
	assert.Equal(t, "TypeScript React", agents.FileTypeFor(".tsx"))
	assert.Equal(t, "ZIP Archive", agents.FileTypeFor("zip"))
	assert.Equal(t, "Code", agents.FileTypeFor("go"))

	assert.Equal(t, "0KB", agents.SizeLabel(0))
	assert.Equal(t, "1KB", agents.SizeLabel(1))
	assert.Equal(t, "1KB", agents.SizeLabel(1024))
	assert.Equal(t, "2KB", agents.SizeLabel(1025))

	op := agents.DetectFileOperation("save as report.md")
	assert.Contains(t, agents.FileOperationAck(op), "report.md")
	assert.Contains(t, agents.FileOperationAck(op), "create")
}

func TestFinalizer(t *testing.T) {
	mdTarget := agents.DetectFileOperation("save as report.md")
	zipTarget := agents.DetectFileOperation("save as project.zip")

	tests := map[string]struct {
		client      *fake.Client
		target      agents.FileOperation
		expArtifact models.Artifact
		expFiles    []archive.File
	}{
		"No target should produce a summary": {
			client:      fake.New().Text("final response", "## Summary\n- BYD leads"),
			expArtifact: models.Artifact{Kind: models.ArtifactSummary, Content: "## Summary\n- BYD leads"},
		},

		"A failing summary should use the placeholder": {
			client:      fake.New().OnText("", failingText),
			expArtifact: models.Artifact{Kind: models.ArtifactSummary, Content: agents.SummaryFailedResult},
		},

		"An empty summary should use the empty placeholder": {
			client:      fake.New().Text("", " "),
			expArtifact: models.Artifact{Kind: models.ArtifactSummary, Content: "Task completed."},
		},

		"A file target should produce raw content without fences": {
			client: fake.New().Text("raw file content", "```markdown\n# EV Report\n```"),
			target: mdTarget,
			expArtifact: models.Artifact{
				Kind: models.ArtifactFile, Content: "# EV Report\n", FileName: "report.md", FileType: "Markdown",
			},
		},

		"A failing file generation should use a placeholder": {
			client: fake.New().OnText("", failingText),
			target: mdTarget,
			expArtifact: models.Artifact{
				Kind: models.ArtifactFile, Content: "Unable to generate report.md right now. Please try again.", FileName: "report.md", FileType: "Markdown",
			},
		},

		"An archive target should pack the listed files": {
			client: fake.New().JSON("", `{"files":[{"name":"index.html","content":"<h1>Hi</h1>"},{"name":"app.js","content":"run()"}]}`),
			target: zipTarget,
			expArtifact: models.Artifact{
				Kind: models.ArtifactArchive, FileName: "project.zip", FileType: "ZIP Archive",
			},
			expFiles: []archive.File{{Name: "index.html", Content: "<h1>Hi</h1>"}, {Name: "app.js", Content: "run()"}},
		},

		"A bare file array should be accepted": {
			client: fake.New().JSON("", `[{"name":"a.txt","content":"a"}]`),
			target: zipTarget,
			expArtifact: models.Artifact{
				Kind: models.ArtifactArchive, FileName: "project.zip", FileType: "ZIP Archive",
			},
			expFiles: []archive.File{{Name: "a.txt", Content: "a"}},
		},

		"A failing archive should still be a valid archive": {
			client: fake.New().OnJSON("", failingJSON),
			target: zipTarget,
			expArtifact: models.Artifact{
				Kind: models.ArtifactArchive, FileName: "project.zip", FileType: "ZIP Archive",
			},
			expFiles: []archive.File{{Name: "README.txt", Content: "The files for project.zip could not be generated. Please try again.\n"}},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			f := &agents.Finalizer{Client: test.client}
			got := f.Finalize(context.Background(), agents.FinalizeRequest{
				Text:    "research EV makers",
				Steps:   []string{"Search", "Write"},
				Context: "\nStep 1: BYD leads",
				Target:  test.target,
			})

			if test.expFiles != nil {
				files, err := archive.Unpack(got.Content)
				require.NoError(t, err)
				assert.Equal(t, test.expFiles, files)
				got.Content = ""
			}
			assert.Equal(t, test.expArtifact, got)
		})
	}
}

func TestFinalizerSummaryPromptCarriesPlanAndContext(t *testing.T) {
	client := fake.New().Text("", "ok")
	(&agents.Finalizer{Client: client}).Finalize(context.Background(), agents.FinalizeRequest{
		Text:    "compare EVs",
		Steps:   []string{"Search sales", "Compare"},
		Context: "\nStep 1: BYD 3M\nStep 2: Tesla 1.8M",
	})

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].Prompt, "1. Search sales\n2. Compare")
	assert.Contains(t, calls[0].Prompt, "Step 2: Tesla 1.8M")
}
