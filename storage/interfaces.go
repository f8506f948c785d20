package storage

import "review-extractor/internal/types"

// Batch is everything one run accepted for a company on a source
type Batch struct {
	Company string
	Source  types.Source
	Records []types.ReviewRecord
}

// ReviewWriter is the interface any storage backend must satisfy.
type ReviewWriter interface {
	Write(batch Batch) error
	Close() error
}

// MultiWriter fans a batch out to several backends, stopping at the first failure
type MultiWriter []ReviewWriter

func (m MultiWriter) Write(batch Batch) error {
	for _, w := range m {
		if err := w.Write(batch); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiWriter) Close() error {
	var first error
	for _, w := range m {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// LastPath reports the file the first path-producing backend wrote, if any
func (m MultiWriter) LastPath() string {
	for _, w := range m {
		if p, ok := w.(interface{ LastPath() string }); ok && p.LastPath() != "" {
			return p.LastPath()
		}
	}
	return ""
}
