package pp

import (
	"fmt"
	"strings"

	"github.com/cepa-project/cepa/include"
	"github.com/cepa-project/cepa/internal/buffer"
	"github.com/cepa-project/cepa/lexer"
	"github.com/cepa-project/cepa/macro"
	"github.com/cepa-project/cepa/token"
)

// tryExpand attempts to expand tok as a macro invocation, pushing a
// synthetic frame onto the stack for its replacement text. It returns true
// when a frame was pushed (the caller should loop and re-read); false means
// the identifier must be emitted as an ordinary token.
func (s *Session) tryExpand(frame *include.Frame, tok token.Token) bool {
	s.recursionDepth++
	if s.recursionDepth >= recursionLimit {
		s.recursionDepth = 0
		s.fail("Recursing macros")
		return false
	}

	def, ok := s.macros.Lookup(tok.Text)
	if !ok {
		return false
	}

	if !def.IsFunctionLike() {
		s.stack.Push(frame.Filename, def.Definition, frame.Line(), nil)
		return true
	}

	next := frame.Next()
	if !(next.Kind == token.KindPunct && next.Text == "(") {
		frame.Pushback(next)
		return false
	}

	args, voidCall, err := s.collectArgs(frame)
	if err != nil {
		s.fail("%s", err)
		return true
	}

	if def.ParamCount == -1 && len(args) == 1 && voidCall {
		args = nil
	}
	if len(args) != def.ExpectedArgs() {
		s.fail("macro '%s' passed %d arguments, but requires %d", def.Name, len(args), def.ExpectedArgs())
		return true
	}

	body, err := substitute(def, args)
	if err != nil {
		s.fail("%s", err)
		return true
	}

	s.stack.Push(frame.Filename, body, frame.Line(), nil)
	return true
}

// argBinding is a macro argument carried through expansion with both its
// pre-expanded form (used for ordinary substitution) and its original,
// unexpanded form (used by the stringify operator).
type argBinding struct {
	expanded string
	original string
}

// collectArgs reads tokens until the matching ')' at paren-depth zero,
// splitting on top-level commas into argument bindings.
func (s *Session) collectArgs(frame *include.Frame) ([]argBinding, bool, error) {
	frame.SetReportWhitespace(true)
	defer frame.SetReportWhitespace(false)

	var args []argBinding
	var cur buffer.Buffer
	var rawToks []token.Token
	depth := 0

	flush := func() {
		cur.TrimTrailingSpaces()
		original := cur.Flatten()
		args = append(args, argBinding{
			expanded: preExpandObjectLike(s.macros, rawToks),
			original: original,
		})
		cur.Reset()
		rawToks = nil
	}

	for {
		tok := frame.Next()
		if tok.Kind == token.KindEOF {
			return nil, false, fmt.Errorf("Unterminated macro list")
		}
		if tok.Kind == token.KindPunct && tok.Text == "(" {
			depth++
			cur.AppendString(tok.Text)
			rawToks = append(rawToks, tok)
			continue
		}
		if tok.Kind == token.KindPunct && tok.Text == ")" {
			if depth == 0 {
				flush()
				break
			}
			depth--
			cur.AppendString(tok.Text)
			rawToks = append(rawToks, tok)
			continue
		}
		if tok.Kind == token.KindPunct && tok.Text == "," && depth == 0 {
			flush()
			continue
		}
		if tok.Kind == token.KindPunct && tok.Text == " " {
			if cur.Len() > 0 {
				cur.AppendString(" ")
			}
			continue
		}
		cur.AppendString(tok.Text)
		rawToks = append(rawToks, tok)
	}

	voidCall := len(args) == 1 && args[0].original == ""
	return args, voidCall, nil
}

// preExpandObjectLike applies one pass of object-like macro substitution
// over raw argument tokens: identifiers that resolve to object-like macros
// are expanded inline, while function-like ones are left untouched here. A
// single pass (rather than the fixed-point recursive expansion the main
// token stream receives) keeps argument pre-expansion bounded without its
// own synthetic-frame machinery; nested object-like chains are resolved
// correctly the next time the substituted text flows back through the main
// iterator.
func preExpandObjectLike(macros *macro.Table, toks []token.Token) string {
	var sb strings.Builder
	for i, tok := range toks {
		if i > 0 {
			sb.WriteString(" ")
		}
		if tok.Kind == token.KindIdentifier {
			if def, ok := macros.Lookup(tok.Text); ok && !def.IsFunctionLike() {
				sb.WriteString(def.Definition)
				continue
			}
		}
		sb.WriteString(tok.Text)
	}
	return sb.String()
}

// substitute re-lexes the macro body, applies '#'/'##'/parameter
// substitution, and flattens the result to a string.
func substitute(def *macro.Definition, args []argBinding) (string, error) {
	byName := map[string]argBinding{}
	for i, p := range def.Parameters {
		if i < len(args) {
			byName[p] = args[i]
		}
	}

	bl := lexer.New(def.Definition)
	var body []token.Token
	for {
		t := bl.Next()
		if t.Kind == token.KindEOF {
			break
		}
		body = append(body, t)
	}

	if len(body) > 0 && (body[0].Kind == token.KindHashHash || body[len(body)-1].Kind == token.KindHashHash) {
		return "", fmt.Errorf("'##' cannot appear at either end of a macro expansion")
	}

	var out strings.Builder
	lastWasHashHash := false
	lastWasHash := false

	for i := 0; i < len(body); i++ {
		tok := body[i]

		if tok.Kind == token.KindHash {
			if i+1 < len(body) && body[i+1].Kind == token.KindIdentifier {
				i++
				name := body[i].Text
				if arg, ok := byName[name]; ok {
					out.WriteString(fmt.Sprintf("%q", arg.original))
				} else {
					out.WriteString(fmt.Sprintf("%q", body[i].Text))
				}
				lastWasHash = true
				lastWasHashHash = false
				continue
			}
			return "", fmt.Errorf("'#' is not followed by a macro parameter")
		}

		if tok.Kind == token.KindHashHash {
			lastWasHashHash = true
			continue
		}

		var piece string
		if tok.Kind == token.KindIdentifier {
			if arg, ok := byName[tok.Text]; ok {
				useOriginal := i+1 < len(body) && body[i+1].Kind == token.KindHashHash
				if useOriginal {
					piece = arg.original
				} else {
					piece = arg.expanded
				}
			} else {
				piece = tok.Text
			}
		} else {
			piece = tok.Text
		}

		if out.Len() > 0 && !lastWasHashHash && !lastWasHash {
			out.WriteString(" ")
		}
		out.WriteString(piece)
		lastWasHashHash = false
		lastWasHash = false
	}

	return out.String(), nil
}
