// Package include implements the include stack: a LIFO of source frames,
// each with its own lexer, line tracking, and nested-conditional stack.
// The stack is slice-backed rather than a manual linked list, since Go
// slices already give push/pop/peek for free.
package include

import (
	"fmt"

	"github.com/cepa-project/cepa/lexer"
	"github.com/cepa-project/cepa/token"
)

// DirectiveKind distinguishes which directive opened a Conditional.
type DirectiveKind int

const (
	KindIf DirectiveKind = iota
	KindIfdef
	KindIfndef
	KindElif
	KindElse
)

// Conditional is one entry in a frame's nested #if/#ifdef/.../#endif stack.
type Conditional struct {
	Kind       DirectiveKind
	OpenedLine int
	Chosen     bool
	Skipping   bool

	// ParentSkipping captures whether an enclosing Conditional was already
	// skipping at the moment this one was pushed; #elif/#else re-derive
	// Skipping from this rather than re-querying the frame (which would
	// otherwise see this same Conditional as "top").
	ParentSkipping bool
}

// CloseFunc is invoked when a frame is popped, receiving the source bytes
// the frame owned; it is the sole owner of that data.
type CloseFunc func(data string)

// Frame is one entry in the IncludeStack: an active source file or
// synthetic macro-expansion buffer together with its own lexer, line
// tracking, and conditional-nesting stack.
type Frame struct {
	Filename string
	lex      *lexer.Lexer

	// prevWasNewline implements directive recognition: a '#' only begins a
	// directive when the previous non-whitespace token on this frame was a
	// newline. Frames start true so a '#' at offset 0 is a directive.
	prevWasNewline  bool
	lastAtLineStart bool

	conditionals []*Conditional

	close CloseFunc
	data  string

	// lineOverrideBase, when nonzero, is added to the raw lexer line by
	// Line(); set by SetLine to implement the #line directive without
	// requiring the lexer itself to support an external line counter.
	lineOverrideBase int

	// AsmComments enables ASM-style '#' end-of-line comments. Unused by the
	// C-style directive grammar this module targets; kept for frames that
	// might source assembly listings instead.
	AsmComments bool
}

// NewFrame constructs a frame over data, ready to be pushed onto a Stack.
func NewFrame(filename, data string, startLine int, close CloseFunc) *Frame {
	l := lexer.New(data)
	return &Frame{
		Filename:        filename,
		lex:             l,
		prevWasNewline:  true,
		lastAtLineStart: true,
		close:           close,
		data:            data,
	}
}

// Line returns the frame's current 1-based source line.
func (f *Frame) Line() int {
	return f.lex.Line() + f.lineOverrideBase
}

// SetLine overrides the frame's line counter, used by the #line directive.
// The underlying lexer only tracks line deltas from newlines consumed, so
// #line is implemented by tracking an offset applied on top of the raw
// lexer line.
func (f *Frame) SetLine(n int) {
	f.lineOverrideBase = n - f.lex.Line()
}

// Next returns the next raw token from this frame (bypassing directive and
// macro handling, which belong to package pp), tracking whether a
// directive '#' would be legal at this position.
func (f *Frame) Next() token.Token {
	tok := f.lex.Next()
	f.lastAtLineStart = f.prevWasNewline
	f.prevWasNewline = tok.Kind == token.KindNewline
	return tok
}

// AtLineStart reports whether the token most recently returned by Next
// began a new logical line (and so may legally begin a directive). Package
// pp only treats a KindHash token as a directive marker when this is true.
func (f *Frame) AtLineStart() bool {
	return f.lastAtLineStart
}

// Pushback un-reads tok onto this frame's lexer.
func (f *Frame) Pushback(tok token.Token) {
	f.lex.Pushback(tok)
	f.prevWasNewline = tok.Kind == token.KindNewline
}

// SetReportWhitespace toggles the frame's lexer into whitespace-reporting
// mode, used while collecting macro call arguments.
func (f *Frame) SetReportWhitespace(v bool) {
	f.lex.SetReportWhitespace(v)
}

// PushConditional opens a new Conditional on this frame's stack.
func (f *Frame) PushConditional(c *Conditional) {
	f.conditionals = append(f.conditionals, c)
}

// TopConditional returns the innermost open Conditional, or nil if none.
func (f *Frame) TopConditional() *Conditional {
	if len(f.conditionals) == 0 {
		return nil
	}
	return f.conditionals[len(f.conditionals)-1]
}

// PopConditional removes the innermost Conditional. It is a programming
// error to call this with no conditional open; callers must check
// TopConditional first.
func (f *Frame) PopConditional() {
	f.conditionals = f.conditionals[:len(f.conditionals)-1]
}

// Skipping reports whether tokens on this frame should currently be
// suppressed because some enclosing Conditional is not taking its active
// branch.
func (f *Frame) Skipping() bool {
	top := f.TopConditional()
	return top != nil && top.Skipping
}

// OpenConditionals returns the frame's remaining unterminated conditionals,
// used when a frame is popped to report an "unterminated #if/..." error
// for each conditional still on its stack.
func (f *Frame) OpenConditionals() []*Conditional {
	return f.conditionals
}

// Stack is the IncludeStack: a LIFO of active Frames.
type Stack struct {
	frames []*Frame
}

// Push constructs a frame from data and makes it the new top. Pushback and
// line/conditional state start fresh for the new frame.
func (s *Stack) Push(filename, data string, startLine int, close CloseFunc) *Frame {
	f := NewFrame(filename, data, startLine, close)
	s.frames = append(s.frames, f)
	return f
}

// Pop removes the top frame, invoking its close-callback with the owned
// source data, and returns the list of conditionals left unterminated on
// it (empty if balanced). Calling Pop on an empty stack is a programming
// error, reported here as a panic rather than silently ignored: stack
// underflow is a caller bug, not a recoverable input error.
func (s *Stack) Pop() []*Conditional {
	if len(s.frames) == 0 {
		panic("include: Pop called on empty stack")
	}
	top := s.frames[len(s.frames)-1]
	s.frames = s.frames[:len(s.frames)-1]
	if top.close != nil {
		top.close(top.data)
	}
	return top.conditionals
}

// Top returns the current innermost frame, or nil if the stack is empty.
func (s *Stack) Top() *Frame {
	if len(s.frames) == 0 {
		return nil
	}
	return s.frames[len(s.frames)-1]
}

// Empty reports whether no frame remains; an empty stack means end-of-input.
func (s *Stack) Empty() bool {
	return len(s.frames) == 0
}

// Depth returns the number of active frames, used by callers enforcing an
// include-recursion limit.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// UnterminatedConditionalError formats the message reported for a
// Conditional still open when its frame is popped.
func UnterminatedConditionalError(c *Conditional) string {
	var kw string
	switch c.Kind {
	case KindIf:
		kw = "#if"
	case KindIfdef:
		kw = "#ifdef"
	case KindIfndef:
		kw = "#ifndef"
	case KindElif:
		kw = "#elif"
	case KindElse:
		kw = "#else"
	}
	return fmt.Sprintf("unterminated %s (opened on line %d)", kw, c.OpenedLine)
}
