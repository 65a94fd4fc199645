package parser

import (
	"unicode"
	"unicode/utf8"

	"github.com/viant/parsly"
)

// newIdentifierMatcher matches a simple identifier, or a dotted qualified
// name when qualified is true. Identifiers support Unicode letters.
func newIdentifierMatcher(qualified bool) parsly.Matcher {
	return &identifierMatcher{qualified: qualified}
}

type identifierMatcher struct {
	qualified bool
}

func (m *identifierMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := matchIdentifier(input, pos, size)
	if matched == 0 {
		return 0
	}
	if !m.qualified {
		return matched
	}
	for pos+matched < size && input[pos+matched] == '.' {
		next := matchIdentifier(input, pos+matched+1, size)
		if next == 0 {
			break
		}
		matched += 1 + next
	}
	return matched
}

func matchIdentifier(input []byte, pos, size int) int {
	if pos >= size {
		return 0
	}
	r, width := utf8.DecodeRune(input[pos:])
	if !unicode.IsLetter(r) && r != '_' {
		return 0
	}
	matched := width
	for pos+matched < size {
		r, width = utf8.DecodeRune(input[pos+matched:])
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			break
		}
		matched += width
	}
	return matched
}

// newNumberMatcher matches integer and floating point literals with an
// optional leading sign.
func newNumberMatcher() parsly.Matcher {
	return &numberMatcher{}
}

type numberMatcher struct{}

func (m *numberMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size {
		return 0
	}
	matched := 0
	if input[pos] == '-' || input[pos] == '+' {
		matched++
	}
	digits := 0
	for pos+matched < size && isDigit(input[pos+matched]) {
		matched++
		digits++
	}
	if digits == 0 {
		return 0
	}
	if pos+matched < size && input[pos+matched] == '.' {
		fraction := 0
		for pos+matched+1+fraction < size && isDigit(input[pos+matched+1+fraction]) {
			fraction++
		}
		if fraction > 0 {
			matched += 1 + fraction
		}
	}
	return matched
}

// newStringMatcher matches a double-quoted literal with backslash escapes.
func newStringMatcher() parsly.Matcher {
	return &stringMatcher{}
}

type stringMatcher struct{}

func (m *stringMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size || input[pos] != '"' {
		return 0
	}
	for i := pos + 1; i < size; i++ {
		switch input[i] {
		case '\\':
			i++
		case '"':
			return i - pos + 1
		}
	}
	return 0
}

// arrow symbols ordered longest-first so that '-->' never matches as '->'.
var arrowSymbols = []string{"<-->", "<|--", "*-->", "o-->", "-->", "->", "=>"}

func newArrowMatcher() parsly.Matcher {
	return &arrowMatcher{}
}

type arrowMatcher struct{}

func (m *arrowMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	for _, symbol := range arrowSymbols {
		if pos+len(symbol) > size {
			continue
		}
		if string(input[pos:pos+len(symbol)]) == symbol {
			return len(symbol)
		}
	}
	return 0
}

// newTypeRefMatcher matches an attribute type reference including nested
// generics, e.g. `Promise<Array<Record>>`. Angle brackets are tracked with a
// depth counter so nested arguments close correctly.
func newTypeRefMatcher() parsly.Matcher {
	return &typeRefMatcher{}
}

type typeRefMatcher struct{}

func (m *typeRefMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize

	matched := matchIdentifier(input, pos, size)
	if matched == 0 {
		return 0
	}
	if pos+matched >= size || input[pos+matched] != '<' {
		return matched
	}
	depth := 0
	for i := pos + matched; i < size; i++ {
		switch input[i] {
		case '<':
			depth++
		case '>':
			depth--
			if depth == 0 {
				return i - pos + 1
			}
		case ';', '\n':
			return 0
		}
	}
	return 0
}

// newCommentMatcher matches // line comments and /* block */ comments.
func newCommentMatcher() parsly.Matcher {
	return &commentMatcher{}
}

type commentMatcher struct{}

func (m *commentMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos+1 >= size || input[pos] != '/' {
		return 0
	}
	switch input[pos+1] {
	case '/':
		for i := pos + 2; i < size; i++ {
			if input[i] == '\n' {
				return i - pos
			}
		}
		return size - pos
	case '*':
		for i := pos + 2; i+1 < size; i++ {
			if input[i] == '*' && input[i+1] == '/' {
				return i - pos + 2
			}
		}
		return 0
	}
	return 0
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
