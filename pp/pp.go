// Package pp implements the token iterator, directive handlers, and session
// lifecycle that tie together package lexer, include, macro, and expr into
// the public preprocessing surface. A Session is a struct with a NextToken
// method that pulls one token at a time, rather than a callback-driven loop.
package pp

import (
	"fmt"

	"github.com/cepa-project/cepa/include"
	"github.com/cepa-project/cepa/internal/diag"
	"github.com/cepa-project/cepa/internal/strcache"
	"github.com/cepa-project/cepa/macro"
	"github.com/cepa-project/cepa/token"
)

// recursionLimit caps macro-expansion depth; exceeding it fails with
// "Recursing macros" rather than looping forever on a self-referential
// definition.
const recursionLimit = 256

// OpenKind distinguishes a #include's quote style, passed to the caller's
// Opener so it can apply the right search order.
type OpenKind int

const (
	OpenLocal OpenKind = iota
	OpenSystem
)

// Opener resolves a #include directive to source text. It is the sole
// collaborator the Session does not implement itself; package includefs
// provides a concrete filesystem-backed implementation.
type Opener interface {
	Open(kind OpenKind, filename string, fromFile string) (data string, resolvedName string, ok bool)
}

// PragmaOnceMarker is implemented by an Opener that wants to be told about
// a "#pragma once" line; package includefs's Resolver implements it.
// Openers that don't care about #pragma once simply don't implement this
// interface.
type PragmaOnceMarker interface {
	MarkPragmaOnce(filename string)
}

// IncludeCloser is implemented by an Opener that needs to know when a
// pushed include frame is popped (e.g. to unwind a cycle-detection stack).
type IncludeCloser interface {
	Close(resolvedPath string)
}

// Session is the preprocessor object: start/NextToken/SourcePosition/
// OutOfMemory, all serialized on one object used from a single goroutine.
type Session struct {
	stack   include.Stack
	macros  *macro.Table
	strings strcache.Cache
	diags   *diag.Sink
	opener  Opener

	recursionDepth int
	inPragmaBody   bool
}

// position adapts Session to macro.PositionProvider so __FILE__/__LINE__
// resolve against whatever frame is currently innermost.
type position struct{ s *Session }

func (p position) CurrentFilename() string {
	if f := p.s.stack.Top(); f != nil {
		return f.Filename
	}
	return ""
}

func (p position) CurrentLine() int {
	if f := p.s.stack.Top(); f != nil {
		return f.Line()
	}
	return 0
}

// Start constructs a session over the initial source, installing any
// predefined macros first as a synthetic "<predefined macros>" frame.
func Start(filename, source string, opener Opener, predefined map[string]string) *Session {
	s := &Session{diags: &diag.Sink{}, opener: opener}
	s.macros = macro.NewTable(position{s})

	// The predefined-macros frame must be pushed LAST (so it sits on top
	// and is fully consumed first): its #define directives need to run
	// to completion before any token of the real source is read, so every
	// real source sees them already defined.
	s.stack.Push(*s.strings.Intern(filename), source, 1, nil)

	if len(predefined) > 0 {
		var body string
		for name, val := range predefined {
			body += fmt.Sprintf("#define %s %s\n", name, val)
		}
		s.stack.Push(*s.strings.Intern("<predefined macros>"), body, 1, nil)
	}

	return s
}

// End releases the session's remaining frames. Safe to call once all input
// has been consumed; also usable to tear the session down early to abort.
func (s *Session) End() {
	for !s.stack.Empty() {
		s.stack.Pop()
	}
}

// OutOfMemory reports the sticky out-of-memory flag.
func (s *Session) OutOfMemory() bool {
	return s.diags.IsOutOfMemory()
}

// SourcePosition returns the innermost frame's filename and line.
func (s *Session) SourcePosition() (string, int) {
	p := position{s}
	return p.CurrentFilename(), p.CurrentLine()
}

// Diagnostics returns every diagnostic recorded so far.
func (s *Session) Diagnostics() []diag.Diagnostic {
	return s.diags.Errors()
}

func (s *Session) fail(format string, args ...any) {
	filename, line := s.SourcePosition()
	s.diags.Fail(filename, line, format, args...)
}

// NextToken returns the next token in the fully expanded, directive-free
// stream, or a KindEOF token once the source is exhausted.
func (s *Session) NextToken() token.Token {
	for {
		if s.OutOfMemory() {
			return token.Token{Kind: token.KindPreprocessingError, Text: "Out of memory"}
		}

		if s.diags.HasStaged() {
			filename, line := s.SourcePosition()
			msg, _ := s.diags.TakeStaged(filename, line)
			return token.Token{Kind: token.KindPreprocessingError, Text: msg, Line: line}
		}

		if s.stack.Empty() {
			return token.Token{Kind: token.KindEOF}
		}

		frame := s.stack.Top()
		tok := frame.Next()

		if tok.Kind != token.KindIdentifier {
			s.recursionDepth = 0
		}

		if tok.Kind == token.KindEOF {
			s.handleFrameEnd(frame)
			continue
		}

		if tok.Kind == token.KindHash && frame.AtLineStart() && !s.inPragmaBody {
			s.dispatchDirective(frame)
			continue
		}

		if frame.Skipping() {
			continue
		}

		if tok.Kind == token.KindNewline {
			if s.inPragmaBody {
				s.inPragmaBody = false
				return tok
			}
			continue
		}

		if tok.Kind == token.KindIdentifier {
			if pushed := s.tryExpand(frame, tok); pushed {
				continue
			}
			return tok
		}

		return tok
	}
}

// handleFrameEnd reports and closes one unterminated conditional per call,
// innermost first, so each is surfaced as its own preprocessing-error
// token; once none remain it pops the frame.
func (s *Session) handleFrameEnd(frame *include.Frame) {
	if c := frame.TopConditional(); c != nil {
		s.fail("%s", include.UnterminatedConditionalError(c))
		frame.PopConditional()
		return
	}
	s.stack.Pop()
}

// Preprocess drains the session to a flattened text and the accumulated
// diagnostics.
func Preprocess(filename, source string, opener Opener, predefined map[string]string) (string, []diag.Diagnostic) {
	s := Start(filename, source, opener, predefined)
	out := Flatten(s)
	diags := s.Diagnostics()
	s.End()
	return out, diags
}
