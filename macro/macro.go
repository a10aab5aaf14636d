// Package macro implements the macro symbol table: definitions keyed by
// name, with add/remove/lookup operations and live-computed builtins for
// __FILE__ and __LINE__.
package macro

import "fmt"

// Definition describes one macro, whether object-like or function-like.
// Argument bindings built during macro expansion are not Definitions:
// package pp carries them in its own argBinding type.
type Definition struct {
	Name       string
	Parameters []string

	// ParamCount distinguishes the three macro shapes:
	//   -1  function-like, declared with "()", takes zero arguments
	//    0  object-like (no parameter list at all)
	//   >0  function-like, taking that many named parameters
	ParamCount int

	// Definition is the replacement body after normalization.
	Definition string

	// Original is pre-expansion text. Nothing in this module sets it: the
	// stringify ('#') operator reads the unexpanded argument text from
	// package pp's argBinding instead.
	Original string
}

// IsFunctionLike reports whether d declares a parameter list at all
// (ParamCount < 0 covers the zero-argument "()" case; ParamCount > 0 covers
// named parameters).
func (d *Definition) IsFunctionLike() bool {
	return d.ParamCount < 0 || d.ParamCount > 0
}

// ExpectedArgs returns how many arguments a call to d must supply.
func (d *Definition) ExpectedArgs() int {
	if d.ParamCount < 0 {
		return 0
	}
	return d.ParamCount
}

// PositionProvider supplies the current filename and line number so the
// table can materialize __FILE__/__LINE__ at lookup time; their values are
// recomputed on every lookup rather than fixed at definition time.
type PositionProvider interface {
	CurrentFilename() string
	CurrentLine() int
}

// Table is the identifier-to-Definition map, bucketed by a one-byte hash of
// the name.
type Table struct {
	buckets [256][]*Definition
	pos     PositionProvider

	// fileMacroOverridden and lineMacroOverridden latch true the first
	// time __FILE__/__LINE__ is ever defined or undefined by the caller.
	// Once set they never reset: redefining a builtin permanently retires
	// the live-computed value in favor of ordinary macro semantics, even
	// across a later #undef of the same name.
	fileMacroOverridden bool
	lineMacroOverridden bool
}

// NewTable returns an empty Table. pos supplies the position used to
// materialize __FILE__/__LINE__; it may be nil if those builtins will never
// be looked up (e.g. a Table used purely for macro-argument bindings).
func NewTable(pos PositionProvider) *Table {
	return &Table{pos: pos}
}

func hashName(name string) uint8 {
	var hash uint32 = 5381
	for i := 0; i < len(name); i++ {
		hash = ((hash << 5) + hash) ^ uint32(name[i])
	}
	return uint8(hash)
}

// Add installs a new macro. It fails with "<name> already defined" on
// duplicate; redefinition is an error, never a silent replace.
func (t *Table) Add(def *Definition) error {
	if def.Name == "__FILE__" || def.Name == "__LINE__" {
		// Defining a builtin name retires its live-computed value for
		// good: once overridden, it behaves as an ordinary macro even
		// after later being undefined.
		if def.Name == "__FILE__" {
			t.fileMacroOverridden = true
		} else {
			t.lineMacroOverridden = true
		}
	}
	h := hashName(def.Name)
	for _, existing := range t.buckets[h] {
		if existing.Name == def.Name {
			return fmt.Errorf("'%s' already defined", def.Name)
		}
	}
	t.buckets[h] = append(t.buckets[h], def)
	return nil
}

// Remove deletes a macro if present; a miss is a silent no-op. Removing
// __FILE__ or __LINE__ also retires the live-computed builtin, so the name
// stays undefined afterwards.
func (t *Table) Remove(name string) {
	if name == "__FILE__" {
		t.fileMacroOverridden = true
	} else if name == "__LINE__" {
		t.lineMacroOverridden = true
	}
	h := hashName(name)
	bucket := t.buckets[h]
	for i, existing := range bucket {
		if existing.Name == name {
			t.buckets[h] = append(bucket[:i], bucket[i+1:]...)
			return
		}
	}
}

// Lookup returns the macro definition for name, or (nil, false) on a miss.
// __FILE__ and __LINE__ are synthesized from the PositionProvider unless
// the caller has redefined them.
func (t *Table) Lookup(name string) (*Definition, bool) {
	if name == "__FILE__" && !t.fileMacroOverridden && t.pos != nil {
		return &Definition{
			Name:       "__FILE__",
			Definition: fmt.Sprintf("%q", t.pos.CurrentFilename()),
		}, true
	}
	if name == "__LINE__" && !t.lineMacroOverridden && t.pos != nil {
		return &Definition{
			Name:       "__LINE__",
			Definition: fmt.Sprintf("%d", t.pos.CurrentLine()),
		}, true
	}

	h := hashName(name)
	for _, existing := range t.buckets[h] {
		if existing.Name == name {
			return existing, true
		}
	}
	return nil, false
}

// IsDefined reports whether name currently resolves to a macro; used by the
// 'defined' operator in package expr.
func (t *Table) IsDefined(name string) bool {
	_, ok := t.Lookup(name)
	return ok
}
