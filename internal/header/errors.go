package header

import (
	"fmt"
	"strings"
)

// ParseError reports a malformed token in the header. Name is empty for lexical errors
// outside any declaration.
type ParseError struct {
	Name  string
	Line  int
	Col   int
	Token string
	Msg   string
}

func (e *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "parse error at %d:%d", e.Line, e.Col)
	if e.Name != "" {
		fmt.Fprintf(&sb, " in %s", e.Name)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Msg)
	if e.Token != "" {
		fmt.Fprintf(&sb, " %q", e.Token)
	}
	return sb.String()
}

// MissingDeclarationError lists expected arrays absent from the input.
type MissingDeclarationError struct {
	Names []string
}

func (e *MissingDeclarationError) Error() string {
	return fmt.Sprintf("missing declaration: %s", strings.Join(e.Names, ", "))
}
