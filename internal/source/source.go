// Package source is the boundary to the store holding submissions. The
// production store is an external document database; the file-backed
// implementation here serves local runs and tests.
package source

import (
	"context"
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/crestline/pipelink/pkg/errors"
	"github.com/crestline/pipelink/pkg/types"
)

// Source yields the submissions to reconcile.
type Source interface {
	// Count returns the total number of submissions in the store,
	// before any filtering.
	Count(ctx context.Context) (int, error)

	// List returns submissions that carry a deal id and have at least
	// one company under the given process mode, normalized and in store
	// order. limit <= 0 means no limit; the limit applies before
	// filtering, mirroring a capped store cursor.
	List(ctx context.Context, mode types.ProcessMode, limit int) ([]types.Submission, error)
}

// FileSource reads submissions from a YAML (or JSON) file. The file is
// either a bare list of submissions or a document with a top-level
// `submissions` key.
type FileSource struct {
	path string
}

// NewFileSource creates a source backed by the given file.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

type fileDocument struct {
	Submissions []types.Submission `yaml:"submissions"`
}

// Count implements Source.
func (f *FileSource) Count(_ context.Context) (int, error) {
	all, err := f.load()
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// List implements Source.
func (f *FileSource) List(_ context.Context, mode types.ProcessMode, limit int) ([]types.Submission, error) {
	all, err := f.load()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	out := make([]types.Submission, 0, len(all))
	for _, sub := range all {
		normalize(&sub)
		if sub.DealID == nil {
			continue
		}
		if len(sub.Companies(mode)) == 0 {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (f *FileSource) load() ([]types.Submission, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, errors.WrapResource("read", "submission file", f.path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err == nil && doc.Submissions != nil {
		return doc.Submissions, nil
	}

	var list []types.Submission
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return nil, errors.WrapResource("read", "submission file", f.path, err)
	}
	return list, nil
}

// normalize cleans a parsed submission in place: trimmed company names,
// lowercased email, and companies without a name dropped.
func normalize(s *types.Submission) {
	s.Email = strings.ToLower(strings.TrimSpace(s.Email))

	if s.Primary != nil {
		s.Primary.Name = strings.TrimSpace(s.Primary.Name)
		if s.Primary.Name == "" {
			s.Primary = nil
		}
	}

	kept := s.Additional[:0]
	for _, c := range s.Additional {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			continue
		}
		kept = append(kept, c)
	}
	s.Additional = kept
}
