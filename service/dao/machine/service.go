// Package machine loads, compiles and caches machine definitions. Cached
// entries can be hot swapped at runtime: new runs pick up the replacement
// while in-flight runs keep their private clone of the previous version.
package machine

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/christopherdebeer/dygram/compiler"
	"github.com/christopherdebeer/dygram/model"
	"github.com/christopherdebeer/dygram/parser"
	"github.com/christopherdebeer/dygram/service/meta"
	"github.com/christopherdebeer/dygram/validator"
	"github.com/viant/afs"
)

// Entry is a cached, compiled machine together with its provenance.
type Entry struct {
	Name        string
	URL         string
	Source      []byte
	Machine     *model.Machine
	Diagnostics model.Diagnostics
	Version     int
}

// Service compiles and caches machines by name.
type Service struct {
	metaService *meta.Service
	validator   *validator.Validator
	entries     map[string]*Entry
	mux         sync.RWMutex
}

// New creates a machine service.
func New(opts ...Option) *Service {
	ret := &Service{
		metaService: meta.New(afs.New(), ""),
		validator:   validator.Default(),
		entries:     map[string]*Entry{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Load reads, compiles and caches the machine at the given location. The
// cached entry is returned on subsequent calls; use Refresh to reload.
func (s *Service) Load(ctx context.Context, URL string) (*model.Machine, error) {
	name := nameFromURL(URL)
	s.mux.RLock()
	entry, ok := s.entries[name]
	s.mux.RUnlock()
	if ok {
		return entry.Machine, nil
	}
	return s.load(ctx, name, URL)
}

// Refresh reloads a previously loaded machine from its source location,
// replacing the cached entry.
func (s *Service) Refresh(ctx context.Context, name string) (*model.Machine, error) {
	s.mux.RLock()
	entry, ok := s.entries[name]
	s.mux.RUnlock()
	if !ok || entry.URL == "" {
		return nil, fmt.Errorf("machine %q was not loaded from a location", name)
	}
	return s.load(ctx, name, entry.URL)
}

func (s *Service) load(ctx context.Context, name, URL string) (*model.Machine, error) {
	location := URL
	if path.Ext(location) == "" {
		location += ".dg"
	}
	source, err := s.metaService.Load(ctx, location)
	if err != nil {
		return nil, err
	}
	machine, diagnostics, err := s.compile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to compile machine from %s: %w", location, err)
	}
	s.store(name, URL, source, machine, diagnostics)
	return machine, nil
}

// Upsert compiles an in-memory source and installs it under the given name,
// replacing any cached entry.
func (s *Service) Upsert(name string, source []byte) (*model.Machine, model.Diagnostics, error) {
	machine, diagnostics, err := s.compile(source)
	if err != nil {
		return nil, diagnostics, err
	}
	s.store(name, "", source, machine, diagnostics)
	return machine, diagnostics, nil
}

// Decode compiles a source without caching it.
func (s *Service) Decode(source []byte) (*model.Machine, model.Diagnostics, error) {
	return s.compile(source)
}

// Lookup returns a cached entry by name.
func (s *Service) Lookup(name string) (*Entry, bool) {
	s.mux.RLock()
	defer s.mux.RUnlock()
	entry, ok := s.entries[name]
	return entry, ok
}

// List returns the cached entries.
func (s *Service) List() []*Entry {
	s.mux.RLock()
	defer s.mux.RUnlock()
	out := make([]*Entry, 0, len(s.entries))
	for _, entry := range s.entries {
		out = append(out, entry)
	}
	return out
}

func (s *Service) compile(source []byte) (*model.Machine, model.Diagnostics, error) {
	doc, diagnostics := parser.Parse(source)
	if diagnostics.HasErrors() {
		return nil, diagnostics, fmt.Errorf("syntax error: %v", diagnostics.Errors()[0])
	}
	machine, compileDiagnostics := compiler.Compile(doc)
	diagnostics = append(diagnostics, compileDiagnostics...)
	if diagnostics.HasErrors() {
		return nil, diagnostics, fmt.Errorf("compile error: %v", diagnostics.Errors()[0])
	}
	diagnostics = append(diagnostics, s.validator.Validate(machine)...)
	if diagnostics.HasErrors() {
		return nil, diagnostics, fmt.Errorf("validation error: %v", diagnostics.Errors()[0])
	}
	return machine, diagnostics, nil
}

func (s *Service) store(name, URL string, source []byte, machine *model.Machine, diagnostics model.Diagnostics) {
	s.mux.Lock()
	defer s.mux.Unlock()
	version := 1
	if previous, ok := s.entries[name]; ok {
		version = previous.Version + 1
	}
	s.entries[name] = &Entry{
		Name:        name,
		URL:         URL,
		Source:      source,
		Machine:     machine,
		Diagnostics: diagnostics,
		Version:     version,
	}
}

func nameFromURL(URL string) string {
	base := path.Base(URL)
	return strings.TrimSuffix(base, path.Ext(base))
}
