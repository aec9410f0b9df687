// Package heredoc fills in the multi-line body of a << redirection by
// reading subsequent lines from whatever is feeding the shell its
// input, the way the reference shell's fill_heredocs/read_heredoc pair
// reads ahead of a pipeline's execution rather than during tokenizing.
package heredoc

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"minishell/core/ast"
	"minishell/core/shellerr"
	"minishell/core/token"
)

// LineReader returns the next physical input line, with no trailing
// newline, however the caller sources it: a line editor's Readline in
// the REPL, or a buffered read over a non-interactive Stdin.
type LineReader func() (string, error)

// NewReader wraps r as a LineReader, the non-interactive fallback used
// for `-c`, piped input and nested command substitution: its lines come
// from whatever already fed the command its heredoc-bearing line.
func NewReader(r io.Reader) LineReader {
	br := bufio.NewReader(r)
	return func() (string, error) {
		line, err := br.ReadString('\n')
		if line == "" && err != nil {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}
}

// Fill reads every pending << body in the pipeline, in the order its
// redirections appear, before any stage of it runs. Reading ahead of
// execution (rather than one stage at a time) means a delimiter on an
// earlier stage can't be confused with input meant for a later one.
func Fill(p *ast.Pipeline, read LineReader) error {
	for _, cmd := range p.Commands {
		for i := range cmd.Redirections {
			r := &cmd.Redirections[i]
			if r.Op != "<<" || r.Body != nil {
				continue
			}
			body, err := readBody(read, token.StripAllMarkers(r.Target))
			if err != nil {
				return err
			}
			r.Body = &body
		}
	}
	return nil
}

func readBody(read LineReader, delimiter string) (string, error) {
	if read == nil {
		return "", shellerr.New(shellerr.Redirection, "no input source for heredoc")
	}
	var b strings.Builder
	for {
		line, err := read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", shellerr.New(shellerr.Redirection, "unexpected EOF while reading heredoc")
			}
			return "", shellerr.New(shellerr.Redirection, "heredoc error").WithContext(err.Error())
		}
		if line == delimiter {
			return b.String(), nil
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
}
