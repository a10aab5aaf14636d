package calc

import "testing"

func TestNodesSatisfyExprInterface(t *testing.T) {
	var nodes = []Expr{
		&UnaryExpr{Op: Negate, Operand: &IntLiteralExpr{Value: 1}},
		&BinaryExpr{Op: Add, Left: &IntLiteralExpr{Value: 1}, Right: &IntLiteralExpr{Value: 2}},
		&ConditionalExpr{Cond: &IntLiteralExpr{Value: 1}, Then: &IntLiteralExpr{Value: 2}, Else: &IntLiteralExpr{Value: 3}},
		&IdentifierExpr{Name: "x"},
		&IntLiteralExpr{Value: 1},
		&FloatLiteralExpr{Value: 1.5},
		&StringLiteralExpr{Value: "hi"},
	}
	for _, n := range nodes {
		if n == nil {
			t.Fatal("node is nil")
		}
	}
}
