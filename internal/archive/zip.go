// Package archive packs generated files into a base64-encoded zip.
package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var ErrEmpty = errors.New("no files to pack")

type File struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Pack zips files in order and returns the archive as standard base64.
// Names are cleaned to relative slash paths; duplicate or empty names are skipped.
func Pack(files []File) (string, error) {
	if len(files) == 0 {
		return "", ErrEmpty
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	seen := map[string]bool{}
	for _, f := range files {
		name := cleanName(f.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		w, err := zw.Create(name)
		if err != nil {
			return "", fmt.Errorf("add %s: %w", name, err)
		}
		if _, err := io.WriteString(w, f.Content); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	if len(seen) == 0 {
		return "", ErrEmpty
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("close archive: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode turns Pack output back into zip bytes.
func Decode(encoded string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode archive: %w", err)
	}
	return b, nil
}

// Unpack reads every file of a base64 archive.
func Unpack(encoded string) ([]File, error) {
	b, err := Decode(encoded)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	files := make([]File, 0, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", zf.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", zf.Name, err)
		}
		files = append(files, File{Name: zf.Name, Content: string(content)})
	}
	return files, nil
}

func cleanName(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	if name == "" {
		return ""
	}
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if name == "." {
		return ""
	}
	return name
}
