package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// JSONWriter writes each batch to {company}_{source}_reviews.json under a directory
type JSONWriter struct {
	dir      string
	lastPath string
}

// NewJSONWriter creates the output directory if needed
func NewJSONWriter(dir string) (*JSONWriter, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("json: create output dir: %w", err)
	}
	return &JSONWriter{dir: dir}, nil
}

// FileName is the output file name for a company and source
func FileName(company, source string) string {
	return fmt.Sprintf("%s_%s_reviews.json", safeName(company), source)
}

// Path returns where a batch for company and source lands
func (j *JSONWriter) Path(company, source string) string {
	return filepath.Join(j.dir, FileName(company, source))
}

// LastPath is the file written by the most recent Write
func (j *JSONWriter) LastPath() string {
	return j.lastPath
}

// Write serializes the records as a 2-space indented array, keeping non-ASCII text as is
func (j *JSONWriter) Write(batch Batch) error {
	if len(batch.Records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(batch.Records); err != nil {
		return fmt.Errorf("json: encode records: %w", err)
	}

	path := j.Path(batch.Company, string(batch.Source))
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("json: write %q: %w", path, err)
	}
	j.lastPath = path
	return nil
}

func (j *JSONWriter) Close() error { return nil }

// safeName keeps a company name usable as a single path element
func safeName(company string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", string(filepath.Separator), "_")
	name := r.Replace(strings.TrimSpace(company))
	if name == "" || name == "." || name == ".." {
		return "company"
	}
	return name
}
