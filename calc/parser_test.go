package calc

import (
	"testing"

	"github.com/cepa-project/cepa/lexer"
)

func parseString(t *testing.T, src string) Expr {
	t.Helper()
	lx := lexer.New(src)
	p := NewParser(FromFunc(lx.Next))
	expr, err := p.ParseExpression()
	if err != nil {
		t.Fatalf("parsing %q: %v", src, err)
	}
	return expr
}

func evalString(t *testing.T, src string) float64 {
	t.Helper()
	expr := parseString(t, src)
	v, err := Eval(expr)
	if err != nil {
		t.Fatalf("evaluating %q: %v", src, err)
	}
	return v
}

func TestArithmeticPrecedence(t *testing.T) {
	if got := evalString(t, "2 + 3 * 4"); got != 14 {
		t.Fatalf("got %v, want 14", got)
	}
}

func TestParenthesesOverridePrecedence(t *testing.T) {
	if got := evalString(t, "(2 + 3) * 4"); got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestUnaryMinus(t *testing.T) {
	if got := evalString(t, "-5 + 10"); got != 5 {
		t.Fatalf("got %v, want 5", got)
	}
}

func TestTernaryOperator(t *testing.T) {
	if got := evalString(t, "1 ? 10 : 20"); got != 10 {
		t.Fatalf("got %v, want 10", got)
	}
	if got := evalString(t, "0 ? 10 : 20"); got != 20 {
		t.Fatalf("got %v, want 20", got)
	}
}

func TestNestedTernaryIsRightAssociative(t *testing.T) {
	expr := parseString(t, "1 ? 2 : 0 ? 3 : 4")
	cond, ok := expr.(*ConditionalExpr)
	if !ok {
		t.Fatalf("expected top-level ConditionalExpr, got %T", expr)
	}
	if _, ok := cond.Else.(*ConditionalExpr); !ok {
		t.Fatalf("expected Else branch to be a nested ConditionalExpr, got %T", cond.Else)
	}
}

func TestNotEqualIsCorrect(t *testing.T) {
	if got := evalString(t, "1 != 2"); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
	if got := evalString(t, "1 != 1"); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
}

func TestBitwiseAndShift(t *testing.T) {
	if got := evalString(t, "6 & 3"); got != 2 {
		t.Fatalf("got %v, want 2", got)
	}
	if got := evalString(t, "1 << 4"); got != 16 {
		t.Fatalf("got %v, want 16", got)
	}
}

func TestLogicalOperators(t *testing.T) {
	if got := evalString(t, "1 && 0"); got != 0 {
		t.Fatalf("got %v, want 0", got)
	}
	if got := evalString(t, "1 || 0"); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
}

func TestComplementAndNot(t *testing.T) {
	if got := evalString(t, "!0"); got != 1 {
		t.Fatalf("got %v, want 1", got)
	}
	if got := evalString(t, "~0"); got != -1 {
		t.Fatalf("got %v, want -1", got)
	}
}

func TestFloatLiteral(t *testing.T) {
	if got := evalString(t, "1.5 + 1.5"); got != 3 {
		t.Fatalf("got %v, want 3", got)
	}
}

func TestHexAndOctalLiterals(t *testing.T) {
	if got := evalString(t, "0x10"); got != 16 {
		t.Fatalf("got %v, want 16", got)
	}
	if got := evalString(t, "010"); got != 8 {
		t.Fatalf("got %v, want 8", got)
	}
}

func TestUnclosedParenIsError(t *testing.T) {
	lx := lexer.New("(1 + 2")
	p := NewParser(FromFunc(lx.Next))
	if _, err := p.ParseExpression(); err == nil {
		t.Fatal("expected an error for an unclosed paren")
	}
}

func TestIdentifierParsesButFailsEvaluation(t *testing.T) {
	expr := parseString(t, "x + 1")
	if _, err := Eval(expr); err == nil {
		t.Fatal("expected evaluating a free identifier to fail")
	}
}
