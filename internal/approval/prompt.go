package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PromptGate is a line-oriented terminal gate: it prints the request and
// reads y/N/a from the reader. "a" approves this and all future calls of the
// same tool.
type PromptGate struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptGate creates a terminal prompt gate.
func NewPromptGate(in io.Reader, out io.Writer) *PromptGate {
	return &PromptGate{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Request implements Gate.
func (g *PromptGate) Request(_ context.Context, req Request) (Decision, error) {
	fmt.Fprintf(g.out, "\nApproval required [%s risk]: %s\n", req.Risk, req.Description)
	for _, op := range req.Operations {
		fmt.Fprintf(g.out, "  %s\n", op)
	}
	fmt.Fprintf(g.out, "Allow? [y/N/a(lways)] ")

	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return Decision{}, nil
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return Decision{Approved: true}, nil
	case "a", "always":
		return Decision{Approved: true, Always: true}, nil
	}
	return Decision{}, nil
}
