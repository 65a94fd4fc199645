// Package expander interpolates {{ node.attr }} template references inside
// attribute values and prompts. A string that is exactly one template keeps
// the referenced value's type; templates embedded in text are stringified in
// place.
package expander

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/christopherdebeer/dygram/runtime/evaluator"
	"github.com/viant/structology/visitor"
)

// Expand recursively traverses maps and slices, expanding every string that
// contains a template reference against the supplied variables.
func Expand(value interface{}, from map[string]interface{}) (interface{}, error) {
	var err error
	switch actual := value.(type) {
	case map[string]interface{}:
		expanded := make(map[string]interface{})
		visit := visitor.MapVisitorOf[string, interface{}](actual)
		err = visit(func(key string, element interface{}) (bool, error) {
			expandedKey := key
			if hasTemplate(key) {
				if text, ok := ExpandString(key, from).(string); ok {
					expandedKey = text
				} else {
					return true, nil
				}
			}
			if text, ok := element.(string); ok && hasTemplate(text) {
				element = ExpandString(text, from)
			} else {
				element, err = Expand(element, from)
				if err != nil {
					return false, err
				}
			}
			expanded[expandedKey] = element
			return true, nil
		})
		return expanded, err

	case []interface{}:
		expanded := make([]interface{}, len(actual))
		for i, item := range actual {
			if text, ok := item.(string); ok && hasTemplate(text) {
				item = ExpandString(text, from)
			} else {
				item, err = Expand(item, from)
				if err != nil {
					return nil, err
				}
			}
			expanded[i] = item
		}
		return expanded, nil

	case string:
		if hasTemplate(actual) {
			return ExpandString(actual, from), nil
		}
		return actual, nil

	default:
		return actual, nil
	}
}

// ExpandString interpolates template references in a single string. When the
// whole string is one {{ ... }} token the referenced value is returned with
// its original type; otherwise each token is stringified into the text.
// Unresolvable tokens are kept verbatim so a failed expansion is visible in
// the output instead of silently vanishing.
func ExpandString(value string, from map[string]interface{}) interface{} {
	eval := evaluator.New()
	if expr, ok := wholeTemplate(value); ok {
		if result := eval.Evaluate(expr, from); result != nil {
			return result
		}
		return value
	}
	var out strings.Builder
	rest := value
	for {
		start := strings.Index(rest, "{{")
		if start < 0 {
			out.WriteString(rest)
			break
		}
		end := strings.Index(rest[start:], "}}")
		if end < 0 {
			out.WriteString(rest)
			break
		}
		end += start
		out.WriteString(rest[:start])
		token := rest[start : end+2]
		expr := strings.TrimSpace(rest[start+2 : end])
		if result := eval.Evaluate(expr, from); result != nil {
			out.WriteString(stringify(result))
		} else {
			out.WriteString(token)
		}
		rest = rest[end+2:]
	}
	return out.String()
}

// wholeTemplate reports whether the string is exactly one template token and
// returns the inner expression.
func wholeTemplate(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func hasTemplate(value string) bool {
	return strings.Contains(value, "{{")
}

func stringify(value interface{}) string {
	if value == nil {
		return ""
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	case reflect.String:
		return rv.String()
	}
	return fmt.Sprintf("%v", value)
}
