package calc

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cepa-project/cepa/lexer"
	"github.com/cepa-project/cepa/token"
)

// Repl reads a line, stops on "quit" or "q", otherwise parses and
// evaluates it as one expression and prints the result. Each line gets its
// own lexer rather than threading a preprocessor session through it; a
// caller wanting #define'd constants usable from the prompt can instead
// drive Parser with a pp.Session's NextToken as the TokenSource.
type Repl struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewRepl builds a Repl reading lines from in and writing results to out.
func NewRepl(in io.Reader, out io.Writer) *Repl {
	return &Repl{in: bufio.NewScanner(in), out: out}
}

// Run drives the read-eval-print loop to completion (EOF or a quit
// sentinel), returning any scan error encountered.
func (r *Repl) Run() error {
	for {
		fmt.Fprint(r.out, "> ")
		if !r.in.Scan() {
			return r.in.Err()
		}
		line := strings.TrimSpace(r.in.Text())
		if line == "quit" || line == "q" {
			return nil
		}
		if line == "" {
			continue
		}
		r.evalLine(line)
	}
}

func (r *Repl) evalLine(line string) {
	lx := lexer.New(line)
	parser := NewParser(FromFunc(lx.Next))
	expr, err := parser.ParseExpression()
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	if trailing := lx.Next(); trailing.Kind != token.KindEOF && trailing.Kind != token.KindNewline {
		fmt.Fprintf(r.out, "error: unexpected trailing token %q\n", trailing.Text)
		return
	}
	v, err := Eval(expr)
	if err != nil {
		fmt.Fprintf(r.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(r.out, formatResult(v))
}

func formatResult(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
