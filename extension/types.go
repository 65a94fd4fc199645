package extension

import (
	"reflect"
	"strings"

	"github.com/viant/x"
)

// Types resolves declared attribute type references such as String,
// Array<String> or Map<String,Number> to Go types. Custom types can be
// registered on top of the builtins.
type Types struct {
	x.Registry
}

// NewTypes creates a registry pre-populated with the builtin attribute types.
func NewTypes(options ...x.RegistryOption) *Types {
	types := &Types{Registry: *x.NewRegistry(options...)}
	for name, rType := range builtinTypes {
		types.Registry.Register(x.NewType(rType, x.WithName(name)))
	}
	return types
}

var builtinTypes = map[string]reflect.Type{
	"String":  reflect.TypeOf(""),
	"Number":  reflect.TypeOf(float64(0)),
	"Integer": reflect.TypeOf(0),
	"Boolean": reflect.TypeOf(false),
	"Object":  reflect.TypeOf(map[string]interface{}{}),
	"Any":     reflect.TypeOf((*interface{})(nil)).Elem(),
}

// Register adds a custom data type to the registry.
func (t *Types) Register(dataType *x.Type) {
	t.Registry.Register(dataType)
}

// Lookup resolves a type reference, expanding generic Array and Map forms
// recursively. Unknown references return nil.
func (t *Types) Lookup(ref string) *x.Type {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	open := strings.IndexByte(ref, '<')
	if open < 0 {
		return t.Registry.Lookup(ref)
	}
	if !strings.HasSuffix(ref, ">") {
		return nil
	}
	base := strings.TrimSpace(ref[:open])
	args := splitTypeArgs(ref[open+1 : len(ref)-1])
	switch base {
	case "Array", "List":
		if len(args) != 1 {
			return nil
		}
		element := t.Lookup(args[0])
		if element == nil {
			return nil
		}
		return x.NewType(reflect.SliceOf(element.Type))
	case "Map":
		if len(args) != 2 {
			return nil
		}
		key := t.Lookup(args[0])
		value := t.Lookup(args[1])
		if key == nil || value == nil || key.Type.Kind() != reflect.String {
			return nil
		}
		return x.NewType(reflect.MapOf(key.Type, value.Type))
	}
	return nil
}

// splitTypeArgs splits generic arguments at top-level commas, leaving nested
// generics intact.
func splitTypeArgs(text string) []string {
	var args []string
	depth, start := 0, 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				args = append(args, strings.TrimSpace(text[start:i]))
				start = i + 1
			}
		}
	}
	args = append(args, strings.TrimSpace(text[start:]))
	return args
}
