// Package lexer implements the low-level scanner the preprocessor consumes
// as its tokenizer. It emits a token.Kind taxonomy with a distinct Kind per
// multi-character operator and separate int/float literal kinds, rather
// than one generic punctuator or number kind.
package lexer

import (
	"strings"

	"github.com/cepa-project/cepa/token"
)

// Lexer scans one frame's source text. It carries a single-token pushback
// slot and a report-whitespace flag; package include embeds a Lexer per
// frame.
type Lexer struct {
	src  string
	pos  int
	line int

	reportWhitespace bool

	pushed    *token.Token
	hasPushed bool
}

// New returns a Lexer positioned at the start of src.
func New(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1}
}

// Line returns the current 1-based line number.
func (l *Lexer) Line() int {
	return l.line
}

// SetReportWhitespace toggles whether whitespace between tokens is surfaced
// as its own token; used while parsing #define and while collecting macro
// call arguments. When off (the
// default), runs of whitespace and comments are silently skipped between
// tokens.
func (l *Lexer) SetReportWhitespace(v bool) {
	l.reportWhitespace = v
}

// Pushback un-reads tok so the next call to Next returns it again. Only one
// level of pushback is supported at a time.
func (l *Lexer) Pushback(tok token.Token) {
	l.pushed = &tok
	l.hasPushed = true
}

// Next returns the next token, consuming source text (or the pushed-back
// token, if any).
func (l *Lexer) Next() token.Token {
	if l.hasPushed {
		tok := *l.pushed
		l.hasPushed = false
		l.pushed = nil
		return tok
	}
	return l.scan()
}

func (l *Lexer) scan() token.Token {
	for {
		l.skipLineContinuation()

		if l.pos >= len(l.src) {
			return token.Token{Kind: token.KindEOF, Line: l.line}
		}

		c := l.src[l.pos]

		if c == '\n' {
			line := l.line
			l.advance()
			return token.Token{Kind: token.KindNewline, Text: "\n", Line: line}
		}

		if isSpace(c) {
			if tok, ok := l.scanWhitespace(); ok {
				return tok
			}
			continue
		}

		if c == '/' && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			if next == '/' {
				if tok, ok := l.scanLineComment(); ok {
					return tok
				}
				continue
			}
			if next == '*' {
				tok, complete := l.scanBlockComment()
				if !complete {
					return tok
				}
				if l.reportWhitespace {
					return tok
				}
				continue
			}
		}

		if c == '#' {
			return l.scanHash()
		}

		if c == '"' {
			return l.scanString()
		}

		if isDigit(c) || (c == '.' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])) {
			return l.scanNumber()
		}

		if isIdentStart(c) {
			return l.scanIdentifier()
		}

		return l.scanOperator()
	}
}

func (l *Lexer) advance() {
	if l.pos >= len(l.src) {
		return
	}
	if l.src[l.pos] == '\n' {
		l.line++
	}
	l.pos++
}

func (l *Lexer) peekAt(off int) byte {
	if l.pos+off >= len(l.src) {
		return 0
	}
	return l.src[l.pos+off]
}

func (l *Lexer) skipLineContinuation() {
	for l.pos+1 < len(l.src) && l.src[l.pos] == '\\' && l.src[l.pos+1] == '\n' {
		l.pos += 2
		l.line++
	}
}

func (l *Lexer) scanWhitespace() (token.Token, bool) {
	line := l.line
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.advance()
	}
	if !l.reportWhitespace {
		return token.Token{}, false
	}
	return token.Token{Kind: token.KindPunct, Text: " ", Line: line}, true
}

func (l *Lexer) scanLineComment() (token.Token, bool) {
	line := l.line
	l.advance()
	l.advance()
	for l.pos < len(l.src) && l.src[l.pos] != '\n' {
		l.advance()
	}
	if !l.reportWhitespace {
		return token.Token{}, false
	}
	return token.Token{Kind: token.KindPunct, Text: " ", Line: line}, true
}

// scanBlockComment returns (token, complete). complete is false when EOF
// is reached before the closing "*/", in which case the returned token is
// KindIncompleteComment and must always be surfaced regardless of
// reportWhitespace.
func (l *Lexer) scanBlockComment() (token.Token, bool) {
	line := l.line
	l.advance()
	l.advance()
	for l.pos < len(l.src) {
		if l.src[l.pos] == '*' && l.peekAt(1) == '/' {
			l.advance()
			l.advance()
			return token.Token{Kind: token.KindPunct, Text: " ", Line: line}, true
		}
		l.advance()
	}
	return token.Token{Kind: token.KindIncompleteComment, Text: "/*", Line: line}, false
}

// scanHash handles both the beginning-of-line '#' directive marker and the
// '##' token-pasting operator that may appear anywhere in a macro body.
func (l *Lexer) scanHash() token.Token {
	line := l.line
	l.advance()
	if l.pos < len(l.src) && l.src[l.pos] == '#' {
		l.advance()
		return token.Token{Kind: token.KindHashHash, Text: "##", Line: line}
	}
	return token.Token{Kind: token.KindHash, Text: "#", Line: line}
}

func (l *Lexer) scanString() token.Token {
	line := l.line
	start := l.pos
	l.advance()
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '"' {
			l.advance()
			break
		}
		if c == '\\' && l.pos+1 < len(l.src) {
			l.advance()
			l.advance()
			continue
		}
		if c == '\n' {
			break
		}
		l.advance()
	}
	return token.Token{Kind: token.KindStringLiteral, Text: l.src[start:l.pos], Line: line}
}

func (l *Lexer) scanNumber() token.Token {
	line := l.line
	start := l.pos
	isFloat := false
	isHex := start+1 < len(l.src) && l.src[start] == '0' && (l.src[start+1] == 'x' || l.src[start+1] == 'X')
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == '.' {
			isFloat = true
			l.advance()
			continue
		}
		if (c == 'e' || c == 'E' || c == 'p' || c == 'P') && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			if next == '+' || next == '-' {
				isFloat = true
				l.advance()
				l.advance()
				continue
			}
		}
		if isDigit(c) || isIdentContinue(c) {
			if (c == 'e' || c == 'E') && !isHex {
				isFloat = true
			}
			l.advance()
			continue
		}
		break
	}
	kind := token.KindIntLiteral
	if isFloat {
		kind = token.KindFloatLiteral
	}
	return token.Token{Kind: kind, Text: l.src[start:l.pos], Line: line}
}

func (l *Lexer) scanIdentifier() token.Token {
	line := l.line
	var sb strings.Builder
	for {
		l.skipLineContinuation()
		if l.pos >= len(l.src) || !isIdentContinue(l.src[l.pos]) {
			break
		}
		sb.WriteByte(l.src[l.pos])
		l.advance()
	}
	return token.Token{Kind: token.KindIdentifier, Text: sb.String(), Line: line}
}

type opRule struct {
	text string
	kind token.Kind
}

// threeChar and twoChar are tried longest-match-first in a
// three/two/one-character cascade.
var twoChar = []opRule{
	{"<<", token.KindShl}, {">>", token.KindShr},
	{"<=", token.KindLEQ}, {">=", token.KindGEQ},
	{"==", token.KindEQL}, {"!=", token.KindNEQ},
	{"&&", token.KindAndAnd}, {"||", token.KindOrOr},
	{"++", token.KindIncrement}, {"--", token.KindDecrement},
	{"+=", token.KindAddAssign}, {"-=", token.KindSubAssign},
	{"*=", token.KindMulAssign}, {"/=", token.KindDivAssign},
	{"%=", token.KindModAssign}, {"&=", token.KindAndAssign},
	{"|=", token.KindOrAssign}, {"^=", token.KindXorAssign},
}

var threeChar = []opRule{
	{"<<=", token.KindShlAssign},
	{">>=", token.KindShrAssign},
}

func (l *Lexer) scanOperator() token.Token {
	line := l.line
	remaining := l.src[l.pos:]

	if len(remaining) >= 3 {
		three := remaining[:3]
		for _, r := range threeChar {
			if r.text == three {
				l.advance()
				l.advance()
				l.advance()
				return token.Token{Kind: r.kind, Text: three, Line: line}
			}
		}
	}

	if len(remaining) >= 2 {
		two := remaining[:2]
		for _, r := range twoChar {
			if r.text == two {
				l.advance()
				l.advance()
				return token.Token{Kind: r.kind, Text: two, Line: line}
			}
		}
	}

	ch := l.src[l.pos]
	l.advance()
	if ch < 0x20 || ch >= 0x7f {
		return token.Token{Kind: token.KindBadChars, Text: string(ch), Line: line}
	}
	return token.Token{Kind: token.KindPunct, Text: string(ch), Line: line}
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\f' || c == '\v'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentContinue(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}
