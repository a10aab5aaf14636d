package pp

import (
	"github.com/cepa-project/cepa/internal/buffer"
	"github.com/cepa-project/cepa/token"
)

// Flatten drains s to a single glued string, diverting preprocessing-error
// tokens into its Diagnostics list instead of the output. The accumulated
// text is built in a chunked buffer.Buffer rather than a strings.Builder
// since a fully flattened translation unit can be arbitrarily large.
func Flatten(s *Session) string {
	var out buffer.Buffer
	indent := 0
	atLineStart := true

	writeIndent := func() {
		for i := 0; i < indent; i++ {
			out.AppendString("\t")
		}
	}

	for {
		tok := s.NextToken()
		if tok.Kind == token.KindEOF {
			break
		}
		if tok.Kind == token.KindPreprocessingError {
			// Already recorded in s.diags by NextToken's staging path;
			// nothing further to emit into the output stream.
			continue
		}
		if tok.Kind == token.KindNewline {
			out.AppendString("\n")
			atLineStart = true
			continue
		}

		if tok.Kind == token.KindPunct && tok.Text == "}" {
			indent--
			if indent < 0 {
				indent = 0
			}
		}

		if atLineStart {
			writeIndent()
		} else if needsSpaceBefore(tok) {
			out.AppendString(" ")
		}
		out.AppendString(tok.Text)
		atLineStart = false

		if tok.Kind == token.KindPunct && tok.Text == "{" {
			indent++
			out.AppendString("\n")
			atLineStart = true
		} else if tok.Kind == token.KindPunct && (tok.Text == ";" || tok.Text == "}") {
			out.AppendString("\n")
			atLineStart = true
		}
	}

	return out.Flatten()
}

func needsSpaceBefore(tok token.Token) bool {
	if tok.Kind == token.KindPunct {
		switch tok.Text {
		case ";", ",", ")", "]":
			return false
		}
	}
	return true
}
