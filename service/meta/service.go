// Package meta loads machine sources from any location the abstract file
// system understands (file, mem, s3, ...). Loaded sources have ${env.KEY}
// expressions expanded before they reach the parser.
package meta

import (
	"context"
	"fmt"
	"strings"

	"github.com/viant/afs"
)

// Service loads machine source documents.
type Service struct {
	fs      afs.Service
	baseURL string
}

// New creates a meta service. baseURL, when not empty, anchors relative
// locations.
func New(fs afs.Service, baseURL string) *Service {
	if fs == nil {
		fs = afs.New()
	}
	return &Service{fs: fs, baseURL: baseURL}
}

// Load reads the source at the given location and expands environment
// expressions.
func (s *Service) Load(ctx context.Context, URL string) ([]byte, error) {
	location := s.resolve(URL)
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", location, err)
	}
	return []byte(expandEnvExpr(string(data))), nil
}

// Exists reports whether the source location exists.
func (s *Service) Exists(ctx context.Context, URL string) (bool, error) {
	return s.fs.Exists(ctx, s.resolve(URL))
}

func (s *Service) resolve(URL string) string {
	if s.baseURL == "" || strings.Contains(URL, "://") || strings.HasPrefix(URL, "/") {
		return URL
	}
	return strings.TrimRight(s.baseURL, "/") + "/" + URL
}
