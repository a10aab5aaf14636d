package pp

import (
	"strings"
	"testing"

	"github.com/cepa-project/cepa/token"
)

func drain(s *Session) []token.Token {
	var toks []token.Token
	for {
		tok := s.NextToken()
		toks = append(toks, tok)
		if tok.Kind == token.KindEOF {
			break
		}
	}
	return toks
}

func nonErrorText(toks []token.Token) []string {
	var out []string
	for _, t := range toks {
		if t.Kind == token.KindEOF || t.Kind == token.KindPreprocessingError {
			continue
		}
		out = append(out, t.Text)
	}
	return out
}

func TestObjectLikeMacroExpansion(t *testing.T) {
	s := Start("t.c", "#define FOO 42\nFOO\n", nil, nil)
	toks := drain(s)
	got := nonErrorText(toks)
	if len(got) != 1 || got[0] != "42" {
		t.Fatalf("unexpected tokens: %v", got)
	}
}

func TestFunctionLikeMacroSubstitution(t *testing.T) {
	s := Start("t.c", "#define ADD(a, b) a + b\nADD(1, 2)\n", nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, " ")
	if joined != "1 + 2" {
		t.Fatalf("unexpected expansion: %q", joined)
	}
}

func TestStringifyOperator(t *testing.T) {
	s := Start("t.c", "#define STR(x) #x\nSTR(hello)\n", nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, "")
	if joined != `"hello"` {
		t.Fatalf("unexpected stringify result: %q", joined)
	}
}

func TestStringifyNonParameterIdentifier(t *testing.T) {
	s := Start("t.c", "#define STR(x) #y\nSTR(hello)\n", nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, "")
	if joined != `"y"` {
		t.Fatalf("unexpected stringify result: %q", joined)
	}
}

func TestTokenPasteOperator(t *testing.T) {
	s := Start("t.c", "#define CAT(a, b) a##b\nCAT(foo, bar)\n", nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, "")
	if joined != "foobar" {
		t.Fatalf("unexpected paste result: %q", joined)
	}
}

func TestIfdefBranching(t *testing.T) {
	src := "#define FEATURE\n#ifdef FEATURE\nyes\n#else\nno\n#endif\n"
	s := Start("t.c", src, nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, " ")
	if joined != "yes" {
		t.Fatalf("expected 'yes', got %q", joined)
	}
}

func TestIfExpressionArithmetic(t *testing.T) {
	src := "#if 1 + 1 == 2\nok\n#endif\n"
	s := Start("t.c", src, nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, " ")
	if joined != "ok" {
		t.Fatalf("expected 'ok', got %q", joined)
	}
}

func TestUndefRemovesMacro(t *testing.T) {
	src := "#define X 1\n#undef X\n#ifdef X\nyes\n#else\nno\n#endif\n"
	s := Start("t.c", src, nil, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, " ")
	if joined != "no" {
		t.Fatalf("expected 'no', got %q", joined)
	}
}

func TestRedefinitionIsError(t *testing.T) {
	src := "#define X 1\n#define X 2\n"
	s := Start("t.c", src, nil, nil)
	toks := drain(s)
	found := false
	for _, tk := range toks {
		if tk.Kind == token.KindPreprocessingError {
			found = true
		}
	}
	if !found {
		t.Fatal("expected a preprocessing-error token for macro redefinition")
	}
}

type fakeOpener struct {
	files map[string]string
}

func (f fakeOpener) Open(kind OpenKind, filename, fromFile string) (string, string, bool) {
	data, ok := f.files[filename]
	return data, filename, ok
}

func TestIncludeDirective(t *testing.T) {
	opener := fakeOpener{files: map[string]string{"a.h": "#define X 7\n"}}
	src := "#include \"a.h\"\nX\n"
	s := Start("t.c", src, opener, nil)
	got := nonErrorText(drain(s))
	joined := strings.Join(got, " ")
	if joined != "7" {
		t.Fatalf("expected '7', got %q", joined)
	}
}

func TestFileAndLineBuiltins(t *testing.T) {
	src := "__LINE__\n__FILE__\n"
	s := Start("sample.c", src, nil, nil)
	got := nonErrorText(drain(s))
	if len(got) != 2 || got[0] != "1" || got[1] != `"sample.c"` {
		t.Fatalf("unexpected builtins: %v", got)
	}
}

func TestPredefinedMacros(t *testing.T) {
	s := Start("t.c", "VALUE\n", nil, map[string]string{"VALUE": "99"})
	got := nonErrorText(drain(s))
	if len(got) != 1 || got[0] != "99" {
		t.Fatalf("unexpected predefined expansion: %v", got)
	}
}

func TestFlattenProducesSemicolonNewlines(t *testing.T) {
	out, diags := Preprocess("t.c", "int x ;\n", nil, nil)
	if len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %v", diags)
	}
	if !strings.Contains(out, ";\n") {
		t.Fatalf("expected flattened output to newline after ';', got %q", out)
	}
}
