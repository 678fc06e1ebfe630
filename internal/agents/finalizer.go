package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/nexa-agent/internal/archive"
	"github.com/example/nexa-agent/internal/models"
	"github.com/example/nexa-agent/internal/providers/llm"
)

const (
	SummaryEmptyResult  = "Task completed."
	SummaryFailedResult = "Here is the result of your request based on the steps taken."
)

const summaryPrompt = `Write a final response for the user based on the executed steps.
Original request: %q

Plan:
%s

Execution log:
%s

Use clear headings and bullet points. Keep it professional and concise.`

const filePrompt = `Produce the complete contents of the file %q for this request: %q

Findings gathered while working on it:
%s

Output ONLY the raw file content. No explanations, no markdown code fences, no text before or after the content.`

const archivePrompt = `Produce the files of a small project packaged as %q for this request: %q

Findings gathered while working on it:
%s

Return ONLY a JSON object of the form {"files": [{"name": "path/file.ext", "content": "..."}]}. Include at least one file. No prose.`

var archiveSchema = &llm.Schema{
	Type: llm.TypeObject,
	Properties: map[string]*llm.Schema{
		"files": {
			Type: llm.TypeArray,
			Items: &llm.Schema{
				Type: llm.TypeObject,
				Properties: map[string]*llm.Schema{
					"name":    {Type: llm.TypeString},
					"content": {Type: llm.TypeString},
				},
				Required: []string{"name", "content"},
			},
		},
	},
	Required: []string{"files"},
}

type FinalizeRequest struct {
	Text    string
	Steps   []string
	Context string
	// Target is the file detection computed once for the submission.
	Target FileOperation
}

// Finalizer turns accumulated step results into the task artifact. Every
// failure degrades to a deterministic placeholder.
type Finalizer struct {
	Client llm.Client
	Logger *zap.Logger
}

func (f *Finalizer) Finalize(ctx context.Context, req FinalizeRequest) models.Artifact {
	switch {
	case !req.Target.IsFileOperation:
		return models.Artifact{Kind: models.ArtifactSummary, Content: f.summary(ctx, req)}
	case req.Target.IsArchive():
		return models.Artifact{
			Kind:     models.ArtifactArchive,
			Content:  f.archive(ctx, req),
			FileName: req.Target.FileName,
			FileType: FileTypeFor(req.Target.Extension),
		}
	default:
		return models.Artifact{
			Kind:     models.ArtifactFile,
			Content:  f.file(ctx, req),
			FileName: req.Target.FileName,
			FileType: FileTypeFor(req.Target.Extension),
		}
	}
}

func (f *Finalizer) summary(ctx context.Context, req FinalizeRequest) string {
	if f.Client == nil {
		return SummaryFailedResult
	}
	var plan strings.Builder
	for i, s := range req.Steps {
		fmt.Fprintf(&plan, "%d. %s\n", i+1, s)
	}
	out, err := f.Client.GenerateText(ctx, fmt.Sprintf(summaryPrompt, req.Text, strings.TrimRight(plan.String(), "\n"), strings.TrimSpace(req.Context)))
	if err != nil {
		orNop(f.Logger).Warn("Summary generation failed", zap.Error(err))
		return SummaryFailedResult
	}
	if out = strings.TrimSpace(out); out == "" {
		return SummaryEmptyResult
	}
	return out
}

func (f *Finalizer) file(ctx context.Context, req FinalizeRequest) string {
	placeholder := fmt.Sprintf("Unable to generate %s right now. Please try again.", req.Target.FileName)
	if f.Client == nil {
		return placeholder
	}
	out, err := f.Client.GenerateText(ctx, fmt.Sprintf(filePrompt, req.Target.FileName, req.Text, strings.TrimSpace(req.Context)))
	if err != nil {
		orNop(f.Logger).Warn("File generation failed", zap.String("file", req.Target.FileName), zap.Error(err))
		return placeholder
	}
	if out = strings.TrimSpace(stripFences(out)); out == "" {
		return placeholder
	}
	return out + "\n"
}

// archive always returns a decodable archive; on failure it holds a single
// README.txt explaining that generation failed.
func (f *Finalizer) archive(ctx context.Context, req FinalizeRequest) string {
	logger := orNop(f.Logger)
	files, err := f.archiveFiles(ctx, req)
	if err == nil {
		var encoded string
		if encoded, err = archive.Pack(files); err == nil {
			return encoded
		}
	}
	logger.Warn("Archive generation failed, packing placeholder", zap.String("file", req.Target.FileName), zap.Error(err))
	encoded, err := archive.Pack([]archive.File{{
		Name:    "README.txt",
		Content: fmt.Sprintf("The files for %s could not be generated. Please try again.\n", req.Target.FileName),
	}})
	if err != nil {
		return ""
	}
	return encoded
}

func (f *Finalizer) archiveFiles(ctx context.Context, req FinalizeRequest) ([]archive.File, error) {
	if f.Client == nil {
		return nil, fmt.Errorf("no text generation backend")
	}
	raw, err := f.Client.GenerateJSON(ctx, fmt.Sprintf(archivePrompt, req.Target.FileName, req.Text, strings.TrimSpace(req.Context)), archiveSchema)
	if err != nil {
		return nil, err
	}
	var listing struct {
		Files []archive.File `json:"files"`
	}
	if err := json.Unmarshal([]byte(normalizeJSONText(raw, '{', '}')), &listing); err != nil || len(listing.Files) == 0 {
		// Some models answer with the bare array.
		var bare []archive.File
		if err2 := json.Unmarshal([]byte(normalizeJSONText(raw, '[', ']')), &bare); err2 != nil || len(bare) == 0 {
			return nil, fmt.Errorf("parse file listing: %w", archive.ErrEmpty)
		}
		return bare, nil
	}
	return listing.Files, nil
}
