package dygram

import (
	"time"

	"github.com/christopherdebeer/dygram/engine"
	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	dmachine "github.com/christopherdebeer/dygram/service/dao/machine"
	rmemory "github.com/christopherdebeer/dygram/service/dao/run/memory"
	rsqlite "github.com/christopherdebeer/dygram/service/dao/run/sqlite"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/christopherdebeer/dygram/service/event"
	"github.com/christopherdebeer/dygram/service/meta"
	"github.com/christopherdebeer/dygram/validator"
	"github.com/viant/afs"
	"github.com/viant/x"
)

// Service is the high-level facade wiring the parser, compiler, validator and
// execution engine together. Embed it in a host application and interact with
// machines through Runtime().
type Service struct {
	runtime        *Runtime
	config         *Config
	metaService    *meta.Service
	machineDAO     *dmachine.Service
	eventService   *event.Service
	decider        decider.Service
	extensionTypes []*x.Type
	types          *extension.Types
	policy         *policy.Policy
	metaBaseURL    string
	initErr        error
}

func (s *Service) init(options []Option) {
	for _, option := range options {
		option(s)
	}
	if s.config == nil {
		s.config = DefaultConfig()
	}
	s.ensureBaseSetup()
	s.runtime.engine = engine.New(
		engine.WithRunDAO(s.runtime.runDAO),
		engine.WithEventService(s.eventService),
		engine.WithDecider(s.decider),
		engine.WithTypes(s.types),
		engine.WithDecisionTimeout(time.Duration(s.config.Engine.DecisionTimeoutMs)*time.Millisecond),
		engine.WithDecisionRetries(s.config.Engine.DecisionRetries),
		engine.WithMaxSteps(s.config.Engine.MaxSteps),
	)
	s.runtime.machineDAO = s.machineDAO
	s.runtime.policy = s.effectivePolicy()
}

func (s *Service) ensureBaseSetup() {
	if s.types == nil {
		s.types = extension.NewTypes()
	}
	for _, extensionType := range s.extensionTypes {
		s.types.Register(extensionType)
	}
	if s.metaService == nil {
		s.metaService = meta.New(afs.New(), s.metaBaseURL)
	}
	if s.machineDAO == nil {
		s.machineDAO = dmachine.New(
			dmachine.WithMetaService(s.metaService),
			dmachine.WithValidator(validator.New(s.config.Validator)))
	}
	if s.eventService == nil {
		s.eventService, _ = event.New()
	}
	if s.runtime.runDAO == nil {
		s.runtime.runDAO, s.initErr = newRunStore(s.config.Runs)
	}
}

func newRunStore(config RunStoreConfig) (dao.Service[string, execution.Run], error) {
	if config.Kind == "sqlite" {
		return rsqlite.New(config.Location)
	}
	return rmemory.New(), nil
}

func (s *Service) effectivePolicy() *policy.Policy {
	if s.policy != nil {
		return s.policy
	}
	return policy.FromConfig(s.config.Policy)
}

// Runtime returns the run orchestration surface.
func (s *Service) Runtime() *Runtime {
	return s.runtime
}

// EventService returns the event bus runs publish to.
func (s *Service) EventService() *event.Service {
	return s.eventService
}

// RegisterExtensionTypes registers attribute types usable in declarations.
func (s *Service) RegisterExtensionTypes(types ...*x.Type) {
	for i := range types {
		s.types.Register(types[i])
	}
}

// Err reports a failure during service initialisation, e.g. an unreachable
// run store.
func (s *Service) Err() error {
	return s.initErr
}

// New creates a service with default configuration.
func New(options ...Option) *Service {
	ret := &Service{runtime: &Runtime{}}
	ret.init(options)
	return ret
}

// NewFromConfig creates a service from a validated configuration.
func NewFromConfig(config *Config, options ...Option) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	ret := &Service{runtime: &Runtime{}, config: config}
	ret.init(options)
	if ret.initErr != nil {
		return nil, ret.initErr
	}
	return ret, nil
}
