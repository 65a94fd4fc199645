package dygram

import (
	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/policy"
	"github.com/christopherdebeer/dygram/runtime/execution"
	"github.com/christopherdebeer/dygram/service/dao"
	dmachine "github.com/christopherdebeer/dygram/service/dao/machine"
	"github.com/christopherdebeer/dygram/service/decider"
	"github.com/christopherdebeer/dygram/service/event"
	"github.com/christopherdebeer/dygram/service/meta"
	"github.com/christopherdebeer/dygram/tracing"
	"github.com/viant/x"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Option customises the service facade.
type Option func(s *Service)

// WithConfig sets the service configuration.
func WithConfig(config *Config) Option {
	return func(s *Service) { s.config = config }
}

// WithDecider sets the decision maker driving runs.
func WithDecider(service decider.Service) Option {
	return func(s *Service) { s.decider = service }
}

// WithEventService sets the event bus.
func WithEventService(service *event.Service) Option {
	return func(s *Service) { s.eventService = service }
}

// WithMetaService sets the machine source loader.
func WithMetaService(service *meta.Service) Option {
	return func(s *Service) { s.metaService = service }
}

// WithMachineDAO sets the machine cache.
func WithMachineDAO(service *dmachine.Service) Option {
	return func(s *Service) { s.machineDAO = service }
}

// WithRunDAO sets the run store.
func WithRunDAO(store dao.Service[string, execution.Run]) Option {
	return func(s *Service) { s.runtime.runDAO = store }
}

// WithExtensionTypes registers attribute types usable in declarations.
func WithExtensionTypes(types ...*x.Type) Option {
	return func(s *Service) { s.extensionTypes = types }
}

// WithTypes sets the attribute type registry.
func WithTypes(types *extension.Types) Option {
	return func(s *Service) { s.types = types }
}

// WithPolicy sets the tool approval policy applied to every run, overriding
// the declarative config policy. Use it to attach an AskFunc.
func WithPolicy(p *policy.Policy) Option {
	return func(s *Service) { s.policy = p }
}

// WithMetaBaseURL sets the base URL machine locations resolve against.
func WithMetaBaseURL(url string) Option {
	return func(s *Service) { s.metaBaseURL = url }
}

// WithTracing configures OpenTelemetry tracing for the service. If outputFile
// is empty the stdout exporter is used; otherwise traces are written to the
// supplied file path. Safe to call multiple times, the first successful
// initialisation wins.
func WithTracing(serviceName, serviceVersion, outputFile string) Option {
	return func(s *Service) {
		_ = tracing.Init(serviceName, serviceVersion, outputFile)
	}
}

// WithTracingExporter configures OpenTelemetry tracing using a custom
// SpanExporter, enabling integrations beyond the built-in stdout exporter.
func WithTracingExporter(serviceName, serviceVersion string, exporter sdktrace.SpanExporter) Option {
	return func(s *Service) {
		_ = tracing.InitWithExporter(serviceName, serviceVersion, exporter)
	}
}
