// Package ast defines the syntax tree produced by core/parse: sequences
// of pipelines joined by ;, && and ||, pipelines of simple commands
// joined by |, and the redirections and assignments attached to each
// simple command.
package ast

import (
	"strings"

	"minishell/core/token"
)

// Redirection is one >, >>, <, <<, <<<, <&, >&, &> or &>> clause attached
// to a SimpleCommand.
type Redirection struct {
	// Op is the literal operator text: ">", ">>", "<", "<<", "<<<", "<&",
	// ">&", "&>" or "&>>".
	Op string
	// Fd is the explicit file descriptor number prefix (e.g. the 2 in
	// 2>&1), or -1 when none was given; the default fd is then inferred
	// from Op by the executor (0 for <-family, 1 for >-family).
	Fd int
	// Target is the redirection target word, not yet expanded. For a <<
	// redirection this is the heredoc delimiter, not its body.
	Target string
	// Body holds a << redirection's body once core/heredoc has read it
	// from the input stream, nil until then. <<< has no Body: its
	// single target word is the whole here-string content.
	Body *string
}

// SimpleCommand is a single command invocation: leading NAME=value
// assignments, the command name and arguments, and any redirections, in
// the order they appeared on the line.
type SimpleCommand struct {
	Assignments  []Assignment
	Words        []string
	Redirections []Redirection
}

// Assignment is one leading FOO=bar word preceding a command.
type Assignment struct {
	Name  string
	Value string
}

// IsEmpty reports whether the command is a bare assignment list with no
// command word (e.g. `FOO=1 BAR=2`), which the executor applies to the
// shell's own environment rather than spawning a process.
func (c *SimpleCommand) IsEmpty() bool {
	return len(c.Words) == 0
}

// String renders c as shell text safe to re-tokenize: every marker byte
// tagged onto a quoted or escaped word by core/token is scrubbed first,
// so the result never trips token.ContainsForbiddenMarker on a reparse.
func (c *SimpleCommand) String() string {
	var b strings.Builder
	for _, a := range c.Assignments {
		b.WriteString(a.Name)
		b.WriteByte('=')
		b.WriteString(token.StripAllMarkers(a.Value))
		b.WriteByte(' ')
	}
	words := make([]string, len(c.Words))
	for i, w := range c.Words {
		words[i] = token.StripAllMarkers(w)
	}
	b.WriteString(strings.Join(words, " "))
	for _, r := range c.Redirections {
		b.WriteByte(' ')
		if r.Fd >= 0 {
			b.WriteString(itoa(r.Fd))
		}
		b.WriteString(r.Op)
		b.WriteByte(' ')
		b.WriteString(token.StripAllMarkers(r.Target))
	}
	return b.String()
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Pipeline is one or more SimpleCommands connected by |, each command's
// stdout feeding the next command's stdin.
type Pipeline struct {
	Commands []*SimpleCommand
}

func (p *Pipeline) String() string {
	parts := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		parts[i] = c.String()
	}
	return strings.Join(parts, " | ")
}

// Connector joins two pipelines in a Sequence.
type Connector int

const (
	// None marks the first pipeline in a sequence, which has no
	// preceding connector.
	None Connector = iota
	Semicolon
	AndAnd
	OrOr
)

func (c Connector) String() string {
	switch c {
	case Semicolon:
		return ";"
	case AndAnd:
		return "&&"
	case OrOr:
		return "||"
	default:
		return ""
	}
}

// Link is one pipeline plus the connector that preceded it.
type Link struct {
	Connector Connector
	Pipeline  *Pipeline
}

// Sequence is the full parse of one input line: a chain of pipelines
// joined by ;, && or ||, optionally run in the Background.
type Sequence struct {
	Links      []Link
	Background bool
}

func (s *Sequence) String() string {
	var b strings.Builder
	for i, link := range s.Links {
		if i > 0 {
			b.WriteByte(' ')
			b.WriteString(link.Connector.String())
			b.WriteByte(' ')
		}
		b.WriteString(link.Pipeline.String())
	}
	if s.Background {
		b.WriteString(" &")
	}
	return b.String()
}
