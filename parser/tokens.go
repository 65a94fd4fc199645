package parser

import (
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// Token codes
const (
	whitespaceCode = iota
	commentCode
	identifierCode
	qualifiedNameCode
	numberCode
	stringCode
	arrowCode
	colonCode
	semicolonCode
	commaCode
	atCode
	openBraceCode
	closeBraceCode
	openBracketCode
	closeBracketCode
	openParenCode
	closeParenCode
	typeRefCode
)

// Token definitions
var (
	whitespaceToken    = parsly.NewToken(whitespaceCode, "Whitespace", matcher.NewWhiteSpace())
	commentToken       = parsly.NewToken(commentCode, "Comment", newCommentMatcher())
	identifierToken    = parsly.NewToken(identifierCode, "Identifier", newIdentifierMatcher(false))
	qualifiedNameToken = parsly.NewToken(qualifiedNameCode, "QualifiedName", newIdentifierMatcher(true))
	numberToken        = parsly.NewToken(numberCode, "Number", newNumberMatcher())
	stringToken        = parsly.NewToken(stringCode, "String", newStringMatcher())
	arrowToken         = parsly.NewToken(arrowCode, "Arrow", newArrowMatcher())
	colonToken         = parsly.NewToken(colonCode, ":", matcher.NewByte(':'))
	semicolonToken     = parsly.NewToken(semicolonCode, ";", matcher.NewByte(';'))
	commaToken         = parsly.NewToken(commaCode, ",", matcher.NewByte(','))
	atToken            = parsly.NewToken(atCode, "@", matcher.NewByte('@'))
	openBraceToken     = parsly.NewToken(openBraceCode, "{", matcher.NewByte('{'))
	closeBraceToken    = parsly.NewToken(closeBraceCode, "}", matcher.NewByte('}'))
	openBracketToken   = parsly.NewToken(openBracketCode, "[", matcher.NewByte('['))
	closeBracketToken  = parsly.NewToken(closeBracketCode, "]", matcher.NewByte(']'))
	openParenToken     = parsly.NewToken(openParenCode, "(", matcher.NewByte('('))
	closeParenToken    = parsly.NewToken(closeParenCode, ")", matcher.NewByte(')'))
	typeRefToken       = parsly.NewToken(typeRefCode, "TypeRef", newTypeRefMatcher())
)
