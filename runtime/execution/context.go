package execution

import (
	"context"
	"reflect"
)

// Context carries the active run through blocking engine operations.
type Context struct {
	run *Run
	context.Context
}

var RunKey = KeyOf[*Run]()
var ContextKey = KeyOf[*Context]()

// RunContext returns a context bound to the provided run.
func (c *Context) RunContext(run *Run) *Context {
	clone := *c
	clone.run = run
	return &clone
}

func (c *Context) Value(key any) any {
	switch key {
	case RunKey:
		return c.run
	case ContextKey:
		return c
	}
	return c.Context.Value(key)
}

// ContextValue returns the value of the provided type from the context.
func ContextValue[T any](ctx context.Context) T {
	key := KeyOf[T]()
	if value := ctx.Value(key); value != nil {
		return value.(T)
	}
	var t T
	return t
}

// KeyOf returns the reflect.Type of the provided type.
func KeyOf[T any]() reflect.Type {
	var a T
	return reflect.TypeOf(a)
}

// NewContext creates an execution context wrapping ctx.
func NewContext(ctx context.Context, run *Run) *Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return &Context{Context: ctx, run: run}
}
