package machine

import (
	"github.com/christopherdebeer/dygram/service/meta"
	"github.com/christopherdebeer/dygram/validator"
)

type Option func(*Service)

// WithMetaService sets the source loader.
func WithMetaService(metaService *meta.Service) Option {
	return func(s *Service) {
		s.metaService = metaService
	}
}

// WithValidator sets the validator applied after compilation.
func WithValidator(v *validator.Validator) Option {
	return func(s *Service) {
		s.validator = v
	}
}
