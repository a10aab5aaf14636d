// Package diag implements the Diagnostics component: an append-only list of
// (filename, line, message) triples plus a sticky out-of-memory flag.
package diag

import "fmt"

// Diagnostic is one recorded error.
type Diagnostic struct {
	Filename string
	Line     int
	Message  string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s:%d: %s", d.Filename, d.Line, d.Message)
}

// Sink accumulates diagnostics for one preprocessing session. The zero
// value is ready to use.
type Sink struct {
	items       []Diagnostic
	outOfMemory bool

	// staged holds a message set by Fail, waiting to be drained by the
	// token iterator as a single preprocessing-error token, together with
	// the position Fail was given for it.
	staged         string
	isStaged       bool
	stagedFilename string
	stagedLine     int
}

// Fail stages a message for the current file/line. It does not immediately
// append to the list; the caller drains staged messages with TakeStaged,
// which both records and returns them.
func (s *Sink) Fail(filename string, line int, format string, args ...any) {
	s.staged = fmt.Sprintf(format, args...)
	s.isStaged = true
	s.stagedFilename = filename
	s.stagedLine = line
}

// Failf is an alias for Fail kept for call sites that only have a message.
func (s *Sink) Failf(filename string, line int, format string, args ...any) {
	s.Fail(filename, line, format, args...)
}

// HasStaged reports whether a message is waiting to be drained.
func (s *Sink) HasStaged() bool {
	return s.isStaged
}

// TakeStaged drains and records the staged message, returning it. It is a
// no-op returning ("", false) when nothing is staged. The diagnostic is
// recorded at the filename and line that were passed to Fail; the filename
// and line arguments here are not used.
func (s *Sink) TakeStaged(filename string, line int) (string, bool) {
	if !s.isStaged {
		return "", false
	}
	msg := s.staged
	s.items = append(s.items, Diagnostic{Filename: s.stagedFilename, Line: s.stagedLine, Message: msg})
	s.staged = ""
	s.isStaged = false
	return msg, true
}

// OutOfMemory raises the sticky out-of-memory flag. Once raised it never
// clears for the lifetime of the session.
func (s *Sink) OutOfMemory() {
	s.outOfMemory = true
}

// IsOutOfMemory reports the sticky flag.
func (s *Sink) IsOutOfMemory() bool {
	return s.outOfMemory
}

// Errors returns every diagnostic recorded so far, in discovery order.
func (s *Sink) Errors() []Diagnostic {
	return s.items
}

// Count returns the number of recorded diagnostics (not counting a message
// still staged but undrained).
func (s *Sink) Count() int {
	return len(s.items)
}
