package agents

import (
	"fmt"
	"regexp"
	"strings"
)

// FileOperation describes a request that names an output file.
type FileOperation struct {
	IsFileOperation bool   `json:"isFileOperation"`
	FileName        string `json:"fileName,omitempty"`
	Extension       string `json:"extension,omitempty"`
	// OperationType is "create", "write" or "generate".
	OperationType string `json:"operationType,omitempty"`
}

var fileTypes = map[string]string{
	"py":   "Python",
	"js":   "JavaScript",
	"ts":   "TypeScript",
	"tsx":  "TypeScript React",
	"jsx":  "JavaScript React",
	"html": "HTML",
	"css":  "CSS",
	"json": "JSON",
	"txt":  "Text",
	"md":   "Markdown",
	"zip":  "ZIP Archive",
}

// archiveExtensions are packed as multi-file archives.
var archiveExtensions = map[string]bool{"zip": true}

var (
	fileNamePattern = regexp.MustCompile(`(?i)\b[\w][\w.-]*\.(py|js|ts|tsx|jsx|html|css|json|txt|md|zip|csv|yaml|yml|go|java|sh|sql|xml)\b`)
	fileVerbs       = []string{"create", "write", "generate", "save", "make", "build", "export", "produce", "draft", "put", "store", "compile"}
)

// DetectFileOperation looks for a target file name next to a file-producing verb.
// Names that are part of a URL path are ignored.
func DetectFileOperation(text string) FileOperation {
	lower := strings.ToLower(text)
	if !containsAny(lower, fileVerbs) {
		return FileOperation{}
	}
	for _, m := range fileNamePattern.FindAllStringSubmatchIndex(text, -1) {
		if m[0] > 0 && (text[m[0]-1] == '/' || text[m[0]-1] == ':') {
			continue
		}
		name := text[m[0]:m[1]]
		return FileOperation{
			IsFileOperation: true,
			FileName:        name,
			Extension:       strings.ToLower(text[m[2]:m[3]]),
			OperationType:   operationType(lower),
		}
	}
	return FileOperation{}
}

func operationType(lower string) string {
	switch {
	case strings.Contains(lower, "generate"):
		return "generate"
	case strings.Contains(lower, "write"):
		return "write"
	default:
		return "create"
	}
}

// IsArchive reports whether the target is packed as an archive.
func (op FileOperation) IsArchive() bool { return archiveExtensions[op.Extension] }

// FileOperationAck is the canned acknowledgment for a file-producing request.
func FileOperationAck(op FileOperation) string {
	if op.IsArchive() {
		return fmt.Sprintf("I'll %s the project files and package them as %s. Working on it now.", op.OperationType, op.FileName)
	}
	return fmt.Sprintf("I'll %s %s for you. Let me gather what's needed and prepare the file.", op.OperationType, op.FileName)
}

// FileTypeFor maps an extension to a display type, "Code" when unknown.
func FileTypeFor(ext string) string {
	if t, ok := fileTypes[strings.ToLower(strings.TrimPrefix(ext, "."))]; ok {
		return t
	}
	return "Code"
}

// SizeLabel renders a content length as whole kilobytes, rounded up.
func SizeLabel(n int) string {
	return fmt.Sprintf("%dKB", (n+1023)/1024)
}
