// Package evaluator evaluates edge guard expressions against run variables.
// Expressions are parsed with go/parser into an AST and walked directly; no
// user code ever executes. Anything that fails to parse or resolve evaluates
// to nil, which guards treat as false.
package evaluator

import (
	"go/ast"
	"go/parser"
	"go/token"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/viant/toolbox"
)

// Evaluator evaluates guard expressions with variables from the run context.
type Evaluator struct{}

// New creates a new expression evaluator.
func New() *Evaluator {
	return &Evaluator{}
}

// Evaluate parses and evaluates an expression. Unparseable or unresolvable
// expressions yield nil.
func (e *Evaluator) Evaluate(expr string, variables map[string]interface{}) interface{} {
	parsed, err := parser.ParseExpr(Normalize(expr))
	if err != nil {
		return nil
	}
	return e.eval(parsed, variables)
}

// EvaluateBool evaluates an expression as a guard condition. Every failure
// mode resolves to false so a broken guard can never open a transition.
func (e *Evaluator) EvaluateBool(expr string, variables map[string]interface{}) bool {
	return Truthy(e.Evaluate(expr, variables))
}

var (
	strictNeq    = regexp.MustCompile(`!==`)
	strictEq     = regexp.MustCompile(`===`)
	templateOpen = regexp.MustCompile(`\{\{\s*`)
	templateEnd  = regexp.MustCompile(`\s*\}\}`)
	singleQuoted = regexp.MustCompile(`'([^']*)'`)
)

// Normalize rewrites guard surface syntax into a parseable Go expression:
// strict equality operators lose their third character, template braces
// around variable references are dropped and single-quoted literals become
// double-quoted strings.
func Normalize(expr string) string {
	expr = strictNeq.ReplaceAllString(expr, "!=")
	expr = strictEq.ReplaceAllString(expr, "==")
	expr = templateOpen.ReplaceAllString(expr, "")
	expr = templateEnd.ReplaceAllString(expr, "")
	expr = singleQuoted.ReplaceAllString(expr, `"$1"`)
	return strings.TrimSpace(expr)
}

func (e *Evaluator) eval(node ast.Expr, variables map[string]interface{}) interface{} {
	switch n := node.(type) {
	case *ast.BasicLit:
		switch n.Kind {
		case token.INT:
			value, _ := strconv.Atoi(n.Value)
			return value
		case token.FLOAT:
			value, _ := strconv.ParseFloat(n.Value, 64)
			return value
		case token.STRING, token.CHAR:
			return strings.Trim(n.Value, "\"'`")
		}

	case *ast.Ident:
		switch n.Name {
		case "true":
			return true
		case "false":
			return false
		case "nil", "null":
			return nil
		}
		value, ok := variables[n.Name]
		if !ok {
			return nil
		}
		return value

	case *ast.SelectorExpr:
		base := e.eval(n.X, variables)
		if base == nil {
			// Dotted variables may be registered flat, e.g. "config.retries".
			if flat, ok := variables[flatten(n)]; ok {
				return flat
			}
			return nil
		}
		return getProperty(base, n.Sel.Name)

	case *ast.IndexExpr:
		base := e.eval(n.X, variables)
		index := e.eval(n.Index, variables)
		return getElement(base, toolbox.AsInt(index))

	case *ast.ParenExpr:
		return e.eval(n.X, variables)

	case *ast.UnaryExpr:
		switch n.Op {
		case token.NOT:
			return !Truthy(e.eval(n.X, variables))
		case token.SUB:
			switch value := e.eval(n.X, variables).(type) {
			case int:
				return -value
			case float64:
				return -value
			}
		}
		return nil

	case *ast.BinaryExpr:
		// Logical operators short-circuit and never touch the other operand.
		switch n.Op {
		case token.LAND:
			return Truthy(e.eval(n.X, variables)) && Truthy(e.eval(n.Y, variables))
		case token.LOR:
			return Truthy(e.eval(n.X, variables)) || Truthy(e.eval(n.Y, variables))
		}
		return e.evalBinary(n.Op, e.eval(n.X, variables), e.eval(n.Y, variables))
	}
	return nil
}

func (e *Evaluator) evalBinary(op token.Token, x, y interface{}) interface{} {
	switch op {
	case token.EQL:
		return looseEqual(x, y)
	case token.NEQ:
		return !looseEqual(x, y)
	case token.LSS:
		return compare(x, y) < 0
	case token.GTR:
		return compare(x, y) > 0
	case token.LEQ:
		return compare(x, y) <= 0
	case token.GEQ:
		return compare(x, y) >= 0
	case token.ADD:
		return add(x, y)
	case token.SUB:
		if bothInt(x, y) {
			return toolbox.AsInt(x) - toolbox.AsInt(y)
		}
		return toolbox.AsFloat(x) - toolbox.AsFloat(y)
	case token.MUL:
		if bothInt(x, y) {
			return toolbox.AsInt(x) * toolbox.AsInt(y)
		}
		return toolbox.AsFloat(x) * toolbox.AsFloat(y)
	case token.QUO:
		divisor := toolbox.AsFloat(y)
		if divisor == 0 {
			return math.Inf(1)
		}
		return toolbox.AsFloat(x) / divisor
	case token.REM:
		if bothInt(x, y) && toolbox.AsInt(y) != 0 {
			return toolbox.AsInt(x) % toolbox.AsInt(y)
		}
		divisor := toolbox.AsFloat(y)
		if divisor == 0 {
			return math.NaN()
		}
		return math.Mod(toolbox.AsFloat(x), divisor)
	}
	return nil
}

// Truthy reports whether a value counts as true in guard position: booleans
// by value, numbers when non-zero, strings and collections when non-empty,
// nil never.
func Truthy(value interface{}) bool {
	if value == nil {
		return false
	}
	switch v := value.(type) {
	case bool:
		return v
	case string:
		return v != ""
	}
	if isNumeric(value) {
		return toolbox.AsFloat(value) != 0
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return rv.Len() > 0
	case reflect.Ptr, reflect.Interface:
		return !rv.IsNil()
	}
	return true
}

// looseEqual compares across numeric representations: 3 == 3.0 and "3" == 3
// both hold, matching the behaviour authors expect from guard expressions.
func looseEqual(x, y interface{}) bool {
	if x == nil || y == nil {
		return x == nil && y == nil
	}
	if isNumeric(x) && isNumeric(y) {
		return toolbox.AsFloat(x) == toolbox.AsFloat(y)
	}
	if isNumeric(x) || isNumeric(y) {
		if xs, ok := x.(string); ok {
			if f, err := strconv.ParseFloat(xs, 64); err == nil {
				return f == toolbox.AsFloat(y)
			}
		}
		if ys, ok := y.(string); ok {
			if f, err := strconv.ParseFloat(ys, 64); err == nil {
				return toolbox.AsFloat(x) == f
			}
		}
		return false
	}
	return reflect.DeepEqual(x, y)
}

func compare(x, y interface{}) int {
	if xs, ok := x.(string); ok {
		if ys, ok := y.(string); ok {
			return strings.Compare(xs, ys)
		}
	}
	xf, yf := toolbox.AsFloat(x), toolbox.AsFloat(y)
	switch {
	case xf < yf:
		return -1
	case xf > yf:
		return 1
	}
	return 0
}

func add(x, y interface{}) interface{} {
	if xs, ok := x.(string); ok {
		return xs + toolbox.AsString(y)
	}
	if ys, ok := y.(string); ok {
		return toolbox.AsString(x) + ys
	}
	if bothInt(x, y) {
		return toolbox.AsInt(x) + toolbox.AsInt(y)
	}
	return toolbox.AsFloat(x) + toolbox.AsFloat(y)
}

func isNumeric(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func bothInt(x, y interface{}) bool {
	return isInt(x) && isInt(y)
}

func isInt(value interface{}) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	}
	return false
}

// flatten rebuilds the dotted source text of a selector chain.
func flatten(expr ast.Expr) string {
	switch n := expr.(type) {
	case *ast.Ident:
		return n.Name
	case *ast.SelectorExpr:
		base := flatten(n.X)
		if base == "" {
			return ""
		}
		return base + "." + n.Sel.Name
	}
	return ""
}

// getProperty reads a named member from a map or an exported struct field.
func getProperty(obj interface{}, name string) interface{} {
	if obj == nil {
		return nil
	}
	if entries, ok := obj.(map[string]interface{}); ok {
		return entries[name]
	}
	value := reflect.ValueOf(obj)
	if value.Kind() == reflect.Ptr {
		if value.IsNil() {
			return nil
		}
		value = value.Elem()
	}
	if value.Kind() == reflect.Map {
		entry := value.MapIndex(reflect.ValueOf(name))
		if entry.IsValid() && entry.CanInterface() {
			return entry.Interface()
		}
		return nil
	}
	if value.Kind() != reflect.Struct {
		return nil
	}
	field := value.FieldByName(name)
	if !field.IsValid() {
		fieldType := value.Type()
		for i := 0; i < fieldType.NumField(); i++ {
			if strings.EqualFold(fieldType.Field(i).Name, name) {
				field = value.Field(i)
				break
			}
		}
	}
	if !field.IsValid() || !field.CanInterface() {
		return nil
	}
	return field.Interface()
}

// getElement indexes a slice or array.
func getElement(obj interface{}, index int) interface{} {
	if obj == nil || index < 0 {
		return nil
	}
	if entries, ok := obj.([]interface{}); ok {
		if index < len(entries) {
			return entries[index]
		}
		return nil
	}
	value := reflect.ValueOf(obj)
	if value.Kind() != reflect.Slice && value.Kind() != reflect.Array {
		return nil
	}
	if index >= value.Len() {
		return nil
	}
	element := value.Index(index)
	if !element.CanInterface() {
		return nil
	}
	return element.Interface()
}
