package expr

import (
	"testing"

	"github.com/cepa-project/cepa/token"
)

func lit(kind token.Kind, text string) token.Token {
	return token.Token{Kind: kind, Text: text, Line: 1}
}

func punct(text string) token.Token {
	return lit(token.KindPunct, text)
}

func ident(text string) token.Token {
	return lit(token.KindIdentifier, text)
}

func intLit(text string) token.Token {
	return lit(token.KindIntLiteral, text)
}

func eval(t *testing.T, resolver MacroResolver, toks []token.Token) int64 {
	t.Helper()
	e := New(resolver)
	v, err := e.Eval(toks)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return v
}

func TestSimpleArithmeticPrecedence(t *testing.T) {
	// 1 + 2 * 3 == 7
	toks := []token.Token{intLit("1"), punct("+"), intLit("2"), punct("*"), intLit("3")}
	if got := eval(t, nil, toks); got != 7 {
		t.Fatalf("got %d, want 7", got)
	}
}

func TestParentheses(t *testing.T) {
	// (1 + 2) * 3 == 9
	toks := []token.Token{punct("("), intLit("1"), punct("+"), intLit("2"), punct(")"), punct("*"), intLit("3")}
	if got := eval(t, nil, toks); got != 9 {
		t.Fatalf("got %d, want 9", got)
	}
}

func TestUnaryMinusVsBinary(t *testing.T) {
	// 5 - -3 == 8 ; unary minus after binary minus
	toks := []token.Token{intLit("5"), punct("-"), punct("-"), intLit("3")}
	if got := eval(t, nil, toks); got != 8 {
		t.Fatalf("got %d, want 8", got)
	}
}

func TestNotEqualIsCorrect(t *testing.T) {
	toks := []token.Token{intLit("1"), lit(token.KindNEQ, "!="), intLit("2")}
	if got := eval(t, nil, toks); got != 1 {
		t.Fatalf("1 != 2 should be 1, got %d", got)
	}
	toks = []token.Token{intLit("1"), lit(token.KindNEQ, "!="), intLit("1")}
	if got := eval(t, nil, toks); got != 0 {
		t.Fatalf("1 != 1 should be 0, got %d", got)
	}
}

type fakeResolver struct{ defined map[string]bool }

func (f fakeResolver) IsDefined(name string) bool { return f.defined[name] }

func TestDefinedOperator(t *testing.T) {
	res := fakeResolver{defined: map[string]bool{"FOO": true}}
	toks := []token.Token{ident("defined"), ident("FOO")}
	if got := eval(t, res, toks); got != 1 {
		t.Fatalf("expected defined(FOO) == 1, got %d", got)
	}
	toks = []token.Token{ident("defined"), punct("("), ident("BAR"), punct(")")}
	if got := eval(t, res, toks); got != 0 {
		t.Fatalf("expected defined(BAR) == 0, got %d", got)
	}
}

func TestUnresolvedIdentifierIsZero(t *testing.T) {
	toks := []token.Token{ident("UNKNOWN"), punct("+"), intLit("1")}
	if got := eval(t, nil, toks); got != 1 {
		t.Fatalf("expected UNKNOWN treated as 0, got %d", got)
	}
}

func TestLogicalOperators(t *testing.T) {
	toks := []token.Token{
		intLit("0"), lit(token.KindOrOr, "||"), intLit("1"), lit(token.KindAndAnd, "&&"), intLit("1"),
	}
	if got := eval(t, nil, toks); got != 1 {
		t.Fatalf("got %d, want 1", got)
	}
}

func TestShiftAndBitwise(t *testing.T) {
	// (1 << 4) | 1 == 17
	toks := []token.Token{intLit("1"), lit(token.KindShl, "<<"), intLit("4"), punct("|"), intLit("1")}
	if got := eval(t, nil, toks); got != 17 {
		t.Fatalf("got %d, want 17", got)
	}
}

func TestHexAndOctalLiterals(t *testing.T) {
	if got := eval(t, nil, []token.Token{intLit("0x1F")}); got != 31 {
		t.Fatalf("got %d, want 31", got)
	}
	if got := eval(t, nil, []token.Token{intLit("010")}); got != 8 {
		t.Fatalf("got %d, want 8", got)
	}
}

func TestUnbalancedParensIsInvalidExpression(t *testing.T) {
	e := New(nil)
	_, err := e.Eval([]token.Token{punct("("), intLit("1"), punct("+"), intLit("2")})
	if err == nil {
		t.Fatal("expected Invalid expression error")
	}
}

func TestComplementAndNot(t *testing.T) {
	if got := eval(t, nil, []token.Token{punct("!"), intLit("0")}); got != 1 {
		t.Fatalf("!0 should be 1, got %d", got)
	}
	if got := eval(t, nil, []token.Token{punct("~"), intLit("0")}); got != -1 {
		t.Fatalf("~0 should be -1, got %d", got)
	}
}
