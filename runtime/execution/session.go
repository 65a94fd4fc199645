package execution

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/christopherdebeer/dygram/extension"
	"github.com/christopherdebeer/dygram/runtime/expander"
	"github.com/viant/structology/conv"
)

// Session holds the mutable data plane of a run: context node values keyed by
// node path plus attribute name. Writes that declare a type are converted
// before they land; a failed conversion leaves the session untouched.
type Session struct {
	ID        string
	State     map[string]interface{}
	types     *extension.Types
	converter *conv.Converter
	mu        sync.RWMutex
	listeners []StateListener // invoked on Set
}

// StateListener is invoked every time Session.Set overwrites an existing key
// or inserts a new one.
type StateListener func(s *Session, key string, oldVal, newVal interface{})

// NewSession creates a new session.
func NewSession(id string, options ...Option) *Session {
	session := &Session{
		ID:    id,
		State: make(map[string]interface{}),
	}
	for _, option := range options {
		option(session)
	}
	return session
}

// RegisterListeners attaches callbacks called on every Set. Listeners run
// outside the session mutex but MUST return quickly.
func (s *Session) RegisterListeners(fn ...StateListener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn...)
}

// Set adds or updates a value in the session.
func (s *Session) Set(key string, value interface{}) {
	s.mu.Lock()
	old := s.State[key]
	s.State[key] = value
	listeners := s.listeners
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(s, key, old, value)
	}
}

// SetTyped converts the value to the declared attribute type before storing
// it. The write is all or nothing: a conversion failure returns the error and
// the previous value stays in place.
func (s *Session) SetTyped(key, declaredType string, value interface{}) error {
	if declaredType == "" {
		s.Set(key, value)
		return nil
	}
	if s.types == nil {
		return fmt.Errorf("types not initialized")
	}
	aType := s.types.Lookup(declaredType)
	if aType == nil {
		return fmt.Errorf("type %v not registered", declaredType)
	}
	converted, err := s.TypedValue(aType.Type, value)
	if err != nil {
		return fmt.Errorf("cannot convert %q to %v: %w", key, declaredType, err)
	}
	s.Set(key, converted)
	return nil
}

// Get retrieves a value from the session.
func (s *Session) Get(key string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, exists := s.State[key]
	return value, exists
}

// GetString retrieves a value as a string.
func (s *Session) GetString(key string) (string, bool) {
	value, exists := s.Get(key)
	if !exists {
		return "", false
	}
	text, ok := value.(string)
	return text, ok
}

// GetAll returns a copy of the session state.
func (s *Session) GetAll() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]interface{}, len(s.State))
	for k, v := range s.State {
		result[k] = v
	}
	return result
}

// Expand interpolates template references in the value against the session
// state.
func (s *Session) Expand(value interface{}) (interface{}, error) {
	return expander.Expand(value, s.GetAll())
}

// Clone creates a copy of the session sharing listeners but not state.
func (s *Session) Clone() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	clone := NewSession(s.ID)
	clone.types = s.types
	clone.converter = s.converter
	clone.listeners = append(clone.listeners, s.listeners...)
	for k, v := range s.State {
		clone.State[k] = v
	}
	return clone
}

// TypedValue converts a value to the specified type.
func (s *Session) TypedValue(aType reflect.Type, value interface{}) (interface{}, error) {
	if s.converter == nil {
		s.converter = conv.NewConverter(conv.DefaultOptions())
	}
	instance := newInstancePtr(aType)
	err := s.converter.Convert(value, instance)
	if err != nil {
		return nil, err
	}
	if aType.Kind() != reflect.Ptr {
		instance = reflect.ValueOf(instance).Elem().Interface()
	}
	return instance, nil
}

func newInstancePtr(t reflect.Type) interface{} {
	if t == nil {
		var empty interface{}
		return &empty
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return reflect.New(t).Interface()
}
