package pp

import (
	"strconv"
	"strings"

	"github.com/cepa-project/cepa/expr"
	"github.com/cepa-project/cepa/include"
	"github.com/cepa-project/cepa/lexer"
	"github.com/cepa-project/cepa/macro"
	"github.com/cepa-project/cepa/token"
)

// dispatchDirective dispatches a line introduced by '#' to its handler. A
// directive is always fully consumed here (up to and including its
// terminating newline), so the main loop always continues afterward
// rather than receiving a token directly back from this call.
func (s *Session) dispatchDirective(frame *include.Frame) {
	kw := frame.Next()
	if kw.Kind == token.KindNewline || kw.Kind == token.KindEOF {
		// A '#' alone on its line: its terminating newline is already read.
		s.fail("Invalid preprocessor directive")
		return
	}
	if kw.Kind != token.KindIdentifier {
		s.fail("Invalid preprocessor directive")
		s.skipToNewline(frame)
		return
	}

	kind := token.DirectiveKeyword(kw.Text)

	// Conditional skipping suppresses every directive except further
	// conditional ones, so nesting still balances correctly.
	// #if/#ifdef/#ifndef/#elif/#else/#endif must still run (to track
	// nesting) even while an enclosing branch is inactive; every other
	// directive is discarded unexamined.
	if frame.Skipping() {
		switch kind {
		case token.KindPPIf, token.KindPPIfdef, token.KindPPIfndef,
			token.KindPPElif, token.KindPPElse, token.KindPPEndif:
			// fall through to dispatch below
		default:
			s.skipToNewline(frame)
			return
		}
	}

	switch kind {
	case token.KindPPInclude:
		s.handleInclude(frame)
	case token.KindPPLine:
		s.handleLine(frame)
	case token.KindPPDefine:
		s.handleDefine(frame)
	case token.KindPPUndef:
		s.handleUndef(frame)
	case token.KindPPIf:
		s.handleIf(frame)
	case token.KindPPIfdef:
		s.handleIfdefIfndef(frame, true)
	case token.KindPPIfndef:
		s.handleIfdefIfndef(frame, false)
	case token.KindPPElif:
		s.handleElif(frame)
	case token.KindPPElse:
		s.handleElse(frame)
	case token.KindPPEndif:
		s.handleEndif(frame)
	case token.KindPPError:
		s.handleErrorDirective(frame)
	case token.KindPPPragma:
		s.handlePragma(frame)
	default:
		s.fail("Unknown preprocessor directive '%s'", kw.Text)
		s.skipToNewline(frame)
	}
}

// restOfLine collects raw tokens up to (not including) the terminating
// newline or end-of-input.
func restOfLine(frame *include.Frame) []token.Token {
	var toks []token.Token
	for {
		tok := frame.Next()
		if tok.Kind == token.KindNewline || tok.Kind == token.KindEOF {
			if tok.Kind == token.KindNewline {
				frame.Pushback(tok)
			}
			return toks
		}
		toks = append(toks, tok)
	}
}

func (s *Session) skipToNewline(frame *include.Frame) {
	restOfLine(frame)
	nl := frame.Next()
	if nl.Kind != token.KindNewline && nl.Kind != token.KindEOF {
		frame.Pushback(nl)
	}
}

func joinTokens(toks []token.Token) string {
	var sb strings.Builder
	for i, t := range toks {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(t.Text)
	}
	return sb.String()
}

func (s *Session) handleInclude(frame *include.Frame) {
	tok := frame.Next()
	var filename string
	var kind OpenKindAlias
	switch {
	case tok.Kind == token.KindStringLiteral:
		filename = strings.Trim(tok.Text, `"`)
		kind = openLocal
	case tok.Kind == token.KindPunct && tok.Text == "<":
		var sb strings.Builder
		for {
			t := frame.Next()
			if t.Kind == token.KindEOF || t.Kind == token.KindNewline {
				s.fail("Invalid #include directive")
				if t.Kind == token.KindNewline {
					frame.Pushback(t)
				}
				return
			}
			if t.Kind == token.KindPunct && t.Text == ">" {
				break
			}
			sb.WriteString(t.Text)
		}
		filename = sb.String()
		kind = openSystem
	default:
		s.fail("Invalid #include directive")
		s.skipToNewline(frame)
		return
	}

	nl := frame.Next()
	if nl.Kind != token.KindNewline && nl.Kind != token.KindEOF {
		s.fail("Invalid #include directive")
		s.skipToNewline(frame)
		return
	}
	if nl.Kind == token.KindNewline {
		frame.Pushback(nl)
	}

	if s.opener == nil {
		s.fail("cannot open include file '%s'", filename)
		return
	}
	data, resolved, ok := s.opener.Open(OpenKind(kind), filename, frame.Filename)
	if !ok {
		s.fail("cannot open include file '%s'", filename)
		return
	}
	var closeFn include.CloseFunc
	if closer, isCloser := s.opener.(IncludeCloser); isCloser {
		closeFn = func(string) { closer.Close(resolved) }
	}
	s.stack.Push(*s.strings.Intern(resolved), data, 1, closeFn)
}

// OpenKindAlias avoids exporting the unexported openLocal/openSystem
// constants while keeping handleInclude's switch terse.
type OpenKindAlias = OpenKind

const (
	openLocal  = OpenLocal
	openSystem = OpenSystem
)

func (s *Session) handleLine(frame *include.Frame) {
	toks := restOfLine(frame)
	frame.Next() // consume newline/EOF
	if len(toks) == 0 || toks[0].Kind != token.KindIntLiteral {
		s.fail("Invalid #line directive")
		return
	}
	n, err := strconv.Atoi(toks[0].Text)
	if err != nil {
		s.fail("Invalid #line directive")
		return
	}
	frame.SetLine(n)
	if len(toks) > 1 {
		if toks[1].Kind != token.KindStringLiteral {
			s.fail("Invalid #line directive")
			return
		}
		frame.Filename = strings.Trim(toks[1].Text, `"`)
	}
}

func (s *Session) handleDefine(frame *include.Frame) {
	name := frame.Next()
	if name.Kind != token.KindIdentifier || name.Text == "defined" {
		s.fail("Invalid #define directive")
		s.skipToNewline(frame)
		return
	}

	frame.SetReportWhitespace(true)
	next := frame.Next()

	var params []string
	paramcount := 0

	if next.Kind == token.KindPunct && next.Text == "(" {
		for {
			p := frame.Next()
			if p.Kind == token.KindPunct && p.Text == " " {
				continue
			}
			if p.Kind == token.KindPunct && p.Text == ")" {
				break
			}
			if p.Kind != token.KindIdentifier {
				s.fail("Invalid #define parameter list")
				frame.SetReportWhitespace(false)
				s.skipToNewline(frame)
				return
			}
			params = append(params, p.Text)
			sep := frame.Next()
			for sep.Kind == token.KindPunct && sep.Text == " " {
				sep = frame.Next()
			}
			if sep.Kind == token.KindPunct && sep.Text == ")" {
				break
			}
			if !(sep.Kind == token.KindPunct && sep.Text == ",") {
				s.fail("Invalid #define parameter list")
				frame.SetReportWhitespace(false)
				s.skipToNewline(frame)
				return
			}
		}
		if len(params) == 0 {
			paramcount = -1
		} else {
			paramcount = len(params)
		}
	} else {
		frame.Pushback(next)
	}
	frame.SetReportWhitespace(false)

	bodyToks := restOfLine(frame)
	frame.Next()
	body := strings.TrimSpace(joinTokens(bodyToks))

	err := s.macros.Add(&macro.Definition{
		Name:       name.Text,
		Parameters: params,
		ParamCount: paramcount,
		Definition: body,
	})
	if err != nil {
		s.fail("%s", err)
	}
}

func (s *Session) handleUndef(frame *include.Frame) {
	name := frame.Next()
	s.skipToNewline(frame)
	if name.Kind != token.KindIdentifier {
		s.fail("Invalid #undef directive")
		return
	}
	s.macros.Remove(name.Text)
}

func (s *Session) evalCondition(frame *include.Frame) bool {
	toks := restOfLine(frame)
	frame.Next()
	expanded, ok := s.expandForExpr(toks, 0)
	if !ok {
		s.fail("Recursing macros")
		return false
	}
	ev := expr.New(s.macros)
	val, err := ev.Eval(expanded)
	if err != nil {
		s.fail("%s", err)
		return false
	}
	return val != 0
}

// expandForExpr pre-expands #if/#elif tokens via macro substitution,
// skipping the operand of 'defined' so it sees the raw identifier rather
// than its expansion. Expansion nests at most recursionLimit levels deep;
// ok is false when that cap is reached.
func (s *Session) expandForExpr(toks []token.Token, depth int) (expanded []token.Token, ok bool) {
	if depth >= recursionLimit {
		return nil, false
	}
	out := make([]token.Token, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == token.KindIdentifier && t.Text == "defined" {
			out = append(out, t)
			if i+1 < len(toks) && toks[i+1].Kind == token.KindIdentifier {
				i++
				out = append(out, toks[i])
			} else if i+3 < len(toks) && toks[i+1].Text == "(" {
				out = append(out, toks[i+1], toks[i+2], toks[i+3])
				i += 3
			}
			continue
		}
		if t.Kind == token.KindIdentifier {
			if def, ok := s.macros.Lookup(t.Text); ok && !def.IsFunctionLike() {
				bl := lexFully(def.Definition)
				sub, ok := s.expandForExpr(bl, depth+1)
				if !ok {
					return nil, false
				}
				out = append(out, sub...)
				continue
			}
		}
		out = append(out, t)
	}
	return out, true
}

func (s *Session) handleIf(frame *include.Frame) {
	openedLine := frame.Line()
	parentSkipping := frame.Skipping()
	var chosen bool
	if parentSkipping {
		s.skipToNewline(frame)
	} else {
		chosen = s.evalCondition(frame)
	}
	c := &include.Conditional{Kind: include.KindIf, OpenedLine: openedLine, Chosen: chosen, ParentSkipping: parentSkipping}
	c.Skipping = parentSkipping || !chosen
	frame.PushConditional(c)
}

func (s *Session) handleIfdefIfndef(frame *include.Frame, isIfdef bool) {
	openedLine := frame.Line()
	parentSkipping := frame.Skipping()
	name := frame.Next()
	s.skipToNewline(frame)
	found := name.Kind == token.KindIdentifier && s.macros.IsDefined(name.Text)
	chosen := found
	if !isIfdef {
		chosen = !found
	}
	kind := include.KindIfndef
	if isIfdef {
		kind = include.KindIfdef
	}
	c := &include.Conditional{Kind: kind, OpenedLine: openedLine, Chosen: chosen, ParentSkipping: parentSkipping}
	c.Skipping = parentSkipping || !chosen
	frame.PushConditional(c)
}

func (s *Session) handleElif(frame *include.Frame) {
	top := frame.TopConditional()
	if top == nil {
		s.fail("#elif without #if")
		s.skipToNewline(frame)
		return
	}
	if top.Kind == include.KindElse {
		s.fail("#elif after #else")
		s.skipToNewline(frame)
		return
	}
	if top.Chosen || top.ParentSkipping {
		s.skipToNewline(frame)
		top.Kind = include.KindElif
		top.Skipping = top.ParentSkipping || top.Chosen
		return
	}
	result := s.evalCondition(frame)
	top.Kind = include.KindElif
	if result {
		top.Chosen = true
	}
	top.Skipping = top.ParentSkipping || !top.Chosen
}

func (s *Session) handleElse(frame *include.Frame) {
	s.skipToNewline(frame)
	top := frame.TopConditional()
	if top == nil {
		s.fail("#else without #if")
		return
	}
	if top.Kind == include.KindElse {
		s.fail("#else after #else")
		return
	}
	wasChosen := top.Chosen
	top.Kind = include.KindElse
	if !wasChosen {
		top.Chosen = true
	}
	top.Skipping = top.ParentSkipping || wasChosen
}

func (s *Session) handleEndif(frame *include.Frame) {
	s.skipToNewline(frame)
	if frame.TopConditional() == nil {
		s.fail("#endif without #if")
		return
	}
	frame.PopConditional()
}

// handlePragma passes the rest of a #pragma line through to the caller as
// an ordinary token stream, except for the "#pragma once" form, which
// instead marks the current file as single-inclusion via PragmaOnceMarker
// and emits nothing.
func (s *Session) handlePragma(frame *include.Frame) {
	next := frame.Next()
	if next.Kind == token.KindIdentifier && next.Text == "once" {
		s.skipToNewline(frame)
		if marker, ok := s.opener.(PragmaOnceMarker); ok {
			marker.MarkPragmaOnce(frame.Filename)
		}
		return
	}
	frame.Pushback(next)
	s.inPragmaBody = true
}

func (s *Session) handleErrorDirective(frame *include.Frame) {
	toks := restOfLine(frame)
	frame.Next()
	s.fail("%s", joinTokens(toks))
}

func lexFully(src string) []token.Token {
	l := lexer.New(src)
	var toks []token.Token
	for {
		t := l.Next()
		if t.Kind == token.KindEOF {
			break
		}
		toks = append(toks, t)
	}
	return toks
}
