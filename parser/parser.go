package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/christopherdebeer/dygram/model"
	"github.com/viant/parsly"
)

// genericsToken matches a balanced `<...>` block after an attribute name.
var genericsToken = parsly.NewToken(typeRefCode, "Generics", &genericsMatcher{})

type genericsMatcher struct{}

func (m *genericsMatcher) Match(cursor *parsly.Cursor) int {
	input := cursor.Input
	pos := cursor.Pos
	size := cursor.InputSize
	if pos >= size || input[pos] != '<' {
		return 0
	}
	depth := 0
	for i := pos; i < size; i++ {
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

// Parser turns DyGram source text into a raw Document. Errors are collected
// into a diagnostics list instead of aborting, so a single file can report
// several syntax problems at once.
type Parser struct {
	cursor      *parsly.Cursor
	input       []byte
	diagnostics model.Diagnostics
}

// Parse parses the supplied source. The returned diagnostics may contain
// syntax errors; the document holds every declaration parsed successfully.
func Parse(source []byte) (*Document, model.Diagnostics) {
	p := &Parser{
		cursor: parsly.NewCursor("", source, 0),
		input:  source,
	}
	doc := &Document{}
	p.parseDocument(doc)
	return doc, p.diagnostics
}

// ParseString is a convenience wrapper over Parse.
func ParseString(source string) (*Document, model.Diagnostics) {
	return Parse([]byte(source))
}

func (p *Parser) parseDocument(doc *Document) {
	for {
		p.skip()
		if p.done() {
			return
		}
		statement, ok := p.parseStatement(doc, true)
		if !ok {
			p.recover()
			continue
		}
		switch actual := statement.(type) {
		case nil:
		case *AttributeDecl:
			doc.Attributes = append(doc.Attributes, *actual)
		case *AnnotationDecl:
			doc.Annotations = append(doc.Annotations, *actual)
		default:
			doc.Statements = append(doc.Statements, statement)
		}
	}
}

// parseStatement parses a single declaration. A nil statement with ok=true
// means the declaration was absorbed directly into the document (e.g. the
// machine title).
func (p *Parser) parseStatement(doc *Document, topLevel bool) (Statement, bool) {
	pos := p.position()

	// Statement starting with a quoted literal is an edge whose first
	// endpoint carries a leading multiplicity.
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		preMult := p.unquote(matched.Text(p.cursor))
		p.skip()
		name, ok := p.expectName()
		if !ok {
			return nil, false
		}
		return p.parseEdge(pos, Endpoint{Pos: pos, Name: name, PreMult: preMult})
	}

	if matched := p.cursor.MatchOne(atToken); matched.Code == atCode {
		annotation, ok := p.parseAnnotation(pos)
		if !ok {
			return nil, false
		}
		return annotation, true
	}

	matched := p.cursor.MatchOne(qualifiedNameToken)
	if matched.Code != qualifiedNameCode {
		p.fail(pos, "expected declaration")
		return nil, false
	}
	name := matched.Text(p.cursor)

	switch name {
	case "machine":
		if topLevel {
			return p.parseMachineTitle(doc, pos)
		}
	case "note":
		return p.parseNote(pos)
	}

	p.skipSpaces()
	switch {
	case p.peekByte('<'):
		// '<' may open an arrow ('<-->', '<|--') rather than a type
		// annotation; the arrow matcher only accepts complete symbols.
		if arrow := p.cursor.MatchOne(arrowToken); arrow.Code == arrowCode {
			arrowType, _ := model.ParseArrowSymbol(arrow.Text(p.cursor))
			return p.parseEdgeChain(pos, Endpoint{Pos: pos, Name: name}, arrowType)
		}
		generics := p.cursor.MatchOne(genericsToken)
		if generics.Code != typeRefCode {
			p.fail(p.position(), "malformed type annotation")
			return nil, false
		}
		typeRef := generics.Text(p.cursor)
		typeRef = typeRef[1 : len(typeRef)-1]
		return p.parseAttributeValue(pos, name, typeRef)
	case p.peekByte(':'):
		p.cursor.MatchOne(colonToken)
		return p.parseAttributeValue(pos, name, "")
	}

	p.skip()
	if arrow := p.cursor.MatchOne(arrowToken); arrow.Code == arrowCode {
		arrowType, _ := model.ParseArrowSymbol(arrow.Text(p.cursor))
		return p.parseEdgeChain(pos, Endpoint{Pos: pos, Name: name}, arrowType)
	}

	// Quoted literal after a name: either an endpoint multiplicity (when an
	// arrow follows) or a node title.
	var title string
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		text := p.unquote(matched.Text(p.cursor))
		p.skip()
		if arrow := p.cursor.MatchOne(arrowToken); arrow.Code == arrowCode {
			arrowType, _ := model.ParseArrowSymbol(arrow.Text(p.cursor))
			return p.parseEdgeChain(pos, Endpoint{Pos: pos, Name: name, PostMult: text}, arrowType)
		}
		title = text
	}

	// A second name means the first identifier was a type keyword.
	if second := p.cursor.MatchOne(qualifiedNameToken); second.Code == qualifiedNameCode {
		if strings.Contains(name, ".") {
			p.fail(pos, fmt.Sprintf("type keyword %q must be a simple identifier", name))
			return nil, false
		}
		return p.parseNodeRest(pos, name, second.Text(p.cursor))
	}

	decl, ok := p.parseNodeRest(pos, "", name)
	if ok && title != "" {
		decl.(*NodeDecl).Title = title
	}
	return decl, ok
}

func (p *Parser) parseMachineTitle(doc *Document, pos model.Position) (Statement, bool) {
	p.skip()
	matched := p.cursor.MatchOne(stringToken)
	if matched.Code != stringCode {
		p.fail(pos, "machine declaration requires a quoted title")
		return nil, false
	}
	doc.Title = p.unquote(matched.Text(p.cursor))
	p.optionalSemicolon()
	return nil, true
}

// parseNodeRest parses everything after a node declaration's name: optional
// title, annotations, block and terminator.
func (p *Parser) parseNodeRest(pos model.Position, nodeType, name string) (Statement, bool) {
	decl := &NodeDecl{Pos: pos, Type: nodeType, Name: name}
	p.skip()
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		decl.Title = p.unquote(matched.Text(p.cursor))
	}
	for {
		p.skip()
		if matched := p.cursor.MatchOne(atToken); matched.Code != atCode {
			break
		}
		annotation, ok := p.parseAnnotation(p.position())
		if !ok {
			return nil, false
		}
		decl.Annotations = append(decl.Annotations, *annotation)
	}
	p.skip()
	if matched := p.cursor.MatchOne(openBraceToken); matched.Code == openBraceCode {
		if !p.parseNodeBody(decl) {
			return nil, false
		}
	}
	p.optionalSemicolon()
	return decl, true
}

func (p *Parser) parseNodeBody(decl *NodeDecl) bool {
	for {
		p.skip()
		if p.done() {
			p.fail(p.position(), fmt.Sprintf("unterminated block for node %q", decl.Name))
			return false
		}
		if matched := p.cursor.MatchOne(closeBraceToken); matched.Code == closeBraceCode {
			return true
		}
		statement, ok := p.parseStatement(nil, false)
		if !ok {
			p.recover()
			continue
		}
		switch actual := statement.(type) {
		case *AttributeDecl:
			decl.Attributes = append(decl.Attributes, *actual)
		case *AnnotationDecl:
			decl.Annotations = append(decl.Annotations, *actual)
		default:
			decl.Body = append(decl.Body, statement)
		}
	}
}

func (p *Parser) parseAnnotation(pos model.Position) (*AnnotationDecl, bool) {
	matched := p.cursor.MatchOne(identifierToken)
	if matched.Code != identifierCode {
		p.fail(pos, "annotation requires a name after '@'")
		return nil, false
	}
	annotation := &AnnotationDecl{Pos: pos, Name: matched.Text(p.cursor)}
	if open := p.cursor.MatchOne(openParenToken); open.Code == openParenCode {
		p.skip()
		value := p.cursor.MatchOne(stringToken)
		if value.Code != stringCode {
			p.fail(pos, fmt.Sprintf("annotation @%v requires a quoted value", annotation.Name))
			return nil, false
		}
		annotation.Value = p.unquote(value.Text(p.cursor))
		p.skip()
		if closing := p.cursor.MatchOne(closeParenToken); closing.Code != closeParenCode {
			p.fail(pos, fmt.Sprintf("annotation @%v is missing ')'", annotation.Name))
			return nil, false
		}
	}
	p.optionalSemicolon()
	return annotation, true
}

func (p *Parser) parseAttributeValue(pos model.Position, name, typeRef string) (Statement, bool) {
	if typeRef != "" {
		p.skipSpaces()
		if matched := p.cursor.MatchOne(colonToken); matched.Code != colonCode {
			p.fail(pos, fmt.Sprintf("attribute %q is missing ':'", name))
			return nil, false
		}
	}
	p.skip()
	value, ok := p.parseValue(name)
	if !ok {
		return nil, false
	}
	p.optionalSemicolon()
	return &AttributeDecl{Pos: pos, Name: name, TypeRef: typeRef, Value: value}, true
}

func (p *Parser) parseValue(attr string) (interface{}, bool) {
	pos := p.position()
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		return p.unquote(matched.Text(p.cursor)), true
	}
	if matched := p.cursor.MatchOne(numberToken); matched.Code == numberCode {
		text := matched.Text(p.cursor)
		if strings.Contains(text, ".") {
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				p.fail(pos, fmt.Sprintf("invalid number %q", text))
				return nil, false
			}
			return value, true
		}
		value, err := strconv.Atoi(text)
		if err != nil {
			p.fail(pos, fmt.Sprintf("invalid number %q", text))
			return nil, false
		}
		return value, true
	}
	if matched := p.cursor.MatchOne(openBracketToken); matched.Code == openBracketCode {
		var items []interface{}
		for {
			p.skip()
			if closing := p.cursor.MatchOne(closeBracketToken); closing.Code == closeBracketCode {
				return items, true
			}
			item, ok := p.parseValue(attr)
			if !ok {
				return nil, false
			}
			items = append(items, item)
			p.skip()
			if comma := p.cursor.MatchOne(commaToken); comma.Code == commaCode {
				continue
			}
			if closing := p.cursor.MatchOne(closeBracketToken); closing.Code == closeBracketCode {
				return items, true
			}
			p.fail(pos, fmt.Sprintf("array value of %q is missing ',' or ']'", attr))
			return nil, false
		}
	}
	if matched := p.cursor.MatchOne(qualifiedNameToken); matched.Code == qualifiedNameCode {
		text := matched.Text(p.cursor)
		switch text {
		case "true":
			return true, true
		case "false":
			return false, true
		}
		return text, true
	}
	p.fail(pos, fmt.Sprintf("attribute %q has no value", attr))
	return nil, false
}

func (p *Parser) parseEdge(pos model.Position, first Endpoint) (Statement, bool) {
	p.skip()
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		first.PostMult = p.unquote(matched.Text(p.cursor))
		p.skip()
	}
	arrow := p.cursor.MatchOne(arrowToken)
	if arrow.Code != arrowCode {
		p.fail(pos, fmt.Sprintf("expected arrow after %q", first.Name))
		return nil, false
	}
	arrowType, _ := model.ParseArrowSymbol(arrow.Text(p.cursor))
	return p.parseEdgeChain(pos, first, arrowType)
}

// parseEdgeChain parses the remainder of `first <arrow> ...` including any
// additional chained segments, label and attribute block.
func (p *Parser) parseEdgeChain(pos model.Position, first Endpoint, arrow model.ArrowType) (Statement, bool) {
	decl := &EdgeDecl{Pos: pos, Endpoints: []Endpoint{first}, Arrows: []model.ArrowType{arrow}}
	for {
		endpoint, ok := p.parseEndpoint()
		if !ok {
			return nil, false
		}
		decl.Endpoints = append(decl.Endpoints, endpoint)
		p.skip()
		next := p.cursor.MatchOne(arrowToken)
		if next.Code != arrowCode {
			break
		}
		arrowType, _ := model.ParseArrowSymbol(next.Text(p.cursor))
		decl.Arrows = append(decl.Arrows, arrowType)
	}
	if matched := p.cursor.MatchOne(colonToken); matched.Code == colonCode {
		p.skip()
		label, ok := p.parseEdgeLabel()
		if !ok {
			return nil, false
		}
		decl.Label = label
	}
	p.skip()
	if matched := p.cursor.MatchOne(openBraceToken); matched.Code == openBraceCode {
		for {
			p.skip()
			if closing := p.cursor.MatchOne(closeBraceToken); closing.Code == closeBraceCode {
				break
			}
			if p.done() {
				p.fail(pos, "unterminated edge attribute block")
				return nil, false
			}
			attrPos := p.position()
			name := p.cursor.MatchOne(identifierToken)
			if name.Code != identifierCode {
				p.fail(attrPos, "expected attribute in edge block")
				return nil, false
			}
			attrName := name.Text(p.cursor)
			p.skipSpaces()
			typeRef := ""
			if p.peekByte('<') {
				generics := p.cursor.MatchOne(genericsToken)
				if generics.Code != typeRefCode {
					p.fail(attrPos, "malformed type annotation")
					return nil, false
				}
				text := generics.Text(p.cursor)
				typeRef = text[1 : len(text)-1]
				p.skipSpaces()
			}
			if colon := p.cursor.MatchOne(colonToken); colon.Code != colonCode {
				p.fail(attrPos, "edge attribute is missing ':'")
				return nil, false
			}
			p.skip()
			value, ok := p.parseValue(attrName)
			if !ok {
				return nil, false
			}
			p.optionalSemicolon()
			decl.Attributes = append(decl.Attributes, AttributeDecl{
				Pos: attrPos, Name: attrName, TypeRef: typeRef, Value: value,
			})
		}
	}
	p.optionalSemicolon()
	return decl, true
}

func (p *Parser) parseEndpoint() (Endpoint, bool) {
	p.skip()
	endpoint := Endpoint{Pos: p.position()}
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		endpoint.PreMult = p.unquote(matched.Text(p.cursor))
		p.skip()
	}
	name, ok := p.expectName()
	if !ok {
		return endpoint, false
	}
	endpoint.Name = name
	p.skip()
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		endpoint.PostMult = p.unquote(matched.Text(p.cursor))
	}
	return endpoint, true
}

// parseEdgeLabel accepts either a quoted label or a run of bare words up to
// the statement boundary.
func (p *Parser) parseEdgeLabel() (string, bool) {
	if matched := p.cursor.MatchOne(stringToken); matched.Code == stringCode {
		return p.unquote(matched.Text(p.cursor)), true
	}
	var words []string
	for {
		matched := p.cursor.MatchOne(qualifiedNameToken)
		if matched.Code != qualifiedNameCode {
			break
		}
		words = append(words, matched.Text(p.cursor))
		p.skipSpaces()
	}
	if len(words) == 0 {
		p.fail(p.position(), "edge label expected after ':'")
		return "", false
	}
	return strings.Join(words, " "), true
}

func (p *Parser) parseNote(pos model.Position) (Statement, bool) {
	p.skip()
	matched := p.cursor.MatchOne(qualifiedNameToken)
	if matched.Code != qualifiedNameCode {
		p.fail(pos, "note requires a target")
		return nil, false
	}
	target := matched.Text(p.cursor)
	if target == "for" {
		p.skip()
		matched = p.cursor.MatchOne(qualifiedNameToken)
		if matched.Code != qualifiedNameCode {
			p.fail(pos, "note requires a target after 'for'")
			return nil, false
		}
		target = matched.Text(p.cursor)
	}
	p.skip()
	content := p.cursor.MatchOne(stringToken)
	if content.Code != stringCode {
		p.fail(pos, fmt.Sprintf("note for %q requires quoted content", target))
		return nil, false
	}
	decl := &NoteDecl{Pos: pos, Target: target, Content: p.unquote(content.Text(p.cursor))}
	p.skip()
	if matched := p.cursor.MatchOne(openBraceToken); matched.Code == openBraceCode {
		holder := &NodeDecl{Name: target}
		if !p.parseNodeBody(holder) {
			return nil, false
		}
		decl.Attributes = holder.Attributes
		decl.Annotations = holder.Annotations
	}
	p.optionalSemicolon()
	return decl, true
}

// ---------------------------------------------------------------------------
// cursor helpers
// ---------------------------------------------------------------------------

func (p *Parser) expectName() (string, bool) {
	matched := p.cursor.MatchOne(qualifiedNameToken)
	if matched.Code != qualifiedNameCode {
		p.fail(p.position(), "expected node reference")
		return "", false
	}
	return matched.Text(p.cursor), true
}

// skip consumes whitespace and comments.
func (p *Parser) skip() {
	for {
		if matched := p.cursor.MatchOne(whitespaceToken); matched.Code == whitespaceCode {
			continue
		}
		if matched := p.cursor.MatchOne(commentToken); matched.Code == commentCode {
			continue
		}
		return
	}
}

// skipSpaces consumes horizontal whitespace only, keeping newlines
// significant for adjacency-sensitive checks like `name<Type>`.
func (p *Parser) skipSpaces() {
	for p.cursor.Pos < p.cursor.InputSize {
		c := p.input[p.cursor.Pos]
		if c == ' ' || c == '\t' {
			p.cursor.Pos++
			continue
		}
		return
	}
}

func (p *Parser) peekByte(expect byte) bool {
	return p.cursor.Pos < p.cursor.InputSize && p.input[p.cursor.Pos] == expect
}

func (p *Parser) optionalSemicolon() {
	p.skipSpaces()
	p.cursor.MatchOne(semicolonToken)
}

func (p *Parser) done() bool {
	return p.cursor.Pos >= p.cursor.InputSize
}

// recover advances to the next statement boundary after a syntax error.
func (p *Parser) recover() {
	for p.cursor.Pos < p.cursor.InputSize {
		c := p.input[p.cursor.Pos]
		p.cursor.Pos++
		if c == ';' || c == '\n' || c == '}' {
			return
		}
	}
}

func (p *Parser) fail(pos model.Position, message string) {
	p.diagnostics = append(p.diagnostics, model.Diagnostic{
		Severity: model.SeverityError,
		Code:     model.CodeSyntax,
		Message:  message,
		Position: pos,
	})
}

func (p *Parser) position() model.Position {
	offset := p.cursor.Pos
	line := 1
	column := 1
	for i := 0; i < offset && i < len(p.input); i++ {
		if p.input[i] == '\n' {
			line++
			column = 1
			continue
		}
		column++
	}
	return model.Position{Line: line, Column: column, Offset: offset}
}

func (p *Parser) unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	body := text[1 : len(text)-1]
	if !strings.Contains(body, "\\") {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
			switch body[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(body[i])
			}
			continue
		}
		b.WriteByte(body[i])
	}
	return b.String()
}
