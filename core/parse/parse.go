// Package parse builds a core/ast.Sequence from a token stream, per the
// grammar:
//
//	sequence    := pipeline (connector pipeline)* [&] EOL
//	connector   := ';' | '&&' | '||'
//	pipeline    := command ('|' command)*
//	command     := (assignment)* (word | redirection)*
//	redirection := [fd] ('<'|'>'|'>>'|'<<'|'<<<'|'<&'|'>&'|'&>'|'&>>') word
//
// There is no subshell grouping: '(' and ')' are tokenized (§4.1) but
// have no production here, so they surface as a syntax error.
package parse

import (
	"fmt"
	"strconv"

	"minishell/core/ast"
	"minishell/core/shellerr"
	"minishell/core/token"
)

var redirOps = map[string]bool{
	"<": true, ">": true, ">>": true, "<<": true, "<<<": true,
	"<&": true, ">&": true, "&>": true, "&>>": true,
}

var connectors = map[string]ast.Connector{
	";":  ast.Semicolon,
	"&&": ast.AndAnd,
	"||": ast.OrOr,
}

// Parse builds a Sequence from a tokenized line. It never panics: any
// malformed input comes back as a *shellerr.Error of Kind Syntax.
func Parse(tokens []token.Token) (*ast.Sequence, error) {
	p := &parser{tokens: tokens}
	seq, err := p.parseSequence()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, p.errAt("unexpected token %q", p.cur().Literal())
	}
	return seq, nil
}

type parser struct {
	tokens []token.Token
	pos    int
}

func (p *parser) cur() token.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return token.Token{Kind: token.Word, Text: "", Pos: -1}
}

func (p *parser) atEnd() bool {
	return p.pos >= len(p.tokens)
}

func (p *parser) errAt(format string, args ...interface{}) *shellerr.Error {
	pos := p.cur().Pos
	return shellerr.New(shellerr.Syntax, fmt.Sprintf(format, args...)).WithPosition(pos)
}

func (p *parser) parseSequence() (*ast.Sequence, error) {
	seq := &ast.Sequence{}

	pipeline, err := p.parsePipeline()
	if err != nil {
		return nil, err
	}
	seq.Links = append(seq.Links, ast.Link{Connector: ast.None, Pipeline: pipeline})

	for !p.atEnd() && p.cur().Kind == token.Operator && connectorOf(p.cur()) != ast.None {
		conn := connectorOf(p.cur())
		p.pos++
		next, err := p.parsePipeline()
		if err != nil {
			return nil, err
		}
		seq.Links = append(seq.Links, ast.Link{Connector: conn, Pipeline: next})
	}

	if !p.atEnd() && p.cur().Kind == token.Operator && p.cur().Literal() == "&" {
		p.pos++
		seq.Background = true
	}

	return seq, nil
}

func connectorOf(t token.Token) ast.Connector {
	if t.Kind != token.Operator {
		return ast.None
	}
	if c, ok := connectors[t.Literal()]; ok {
		return c
	}
	return ast.None
}

func (p *parser) parsePipeline() (*ast.Pipeline, error) {
	cmd, err := p.parseSimpleCommand()
	if err != nil {
		return nil, err
	}
	pipeline := &ast.Pipeline{Commands: []*ast.SimpleCommand{cmd}}

	for !p.atEnd() && p.cur().Kind == token.Operator && p.cur().Literal() == "|" {
		p.pos++
		next, err := p.parseSimpleCommand()
		if err != nil {
			return nil, err
		}
		pipeline.Commands = append(pipeline.Commands, next)
	}

	return pipeline, nil
}

// isCommandTerminator reports whether t ends a simple command: a
// connector, a pipe, the trailing backgrounder, or end of input.
func isCommandTerminator(t token.Token) bool {
	if t.Kind != token.Operator {
		return false
	}
	switch t.Literal() {
	case ";", "&&", "||", "|", "&":
		return true
	default:
		return false
	}
}

func (p *parser) parseSimpleCommand() (*ast.SimpleCommand, error) {
	cmd := &ast.SimpleCommand{}
	pendingFd := -1

	for {
		if p.atEnd() || isCommandTerminator(p.cur()) {
			break
		}

		switch p.cur().Kind {
		case token.Assignment:
			name, value := splitAssignment(p.cur().Text)
			cmd.Assignments = append(cmd.Assignments, ast.Assignment{Name: token.StripAllMarkers(name), Value: value})
			p.pos++

		case token.Word:
			cmd.Words = append(cmd.Words, p.cur().Text)
			p.pos++

		case token.IoNumber:
			n, err := strconv.Atoi(p.cur().Literal())
			if err != nil {
				return nil, p.errAt("invalid file descriptor %q", p.cur().Literal())
			}
			pendingFd = n
			p.pos++
			if p.atEnd() || p.cur().Kind != token.Operator || !redirOps[p.cur().Literal()] {
				return nil, p.errAt("expected redirection operator after file descriptor")
			}

		case token.Operator:
			lit := p.cur().Literal()
			if !redirOps[lit] {
				return nil, p.errAt("unexpected token %q", lit)
			}
			p.pos++
			if p.atEnd() || (p.cur().Kind != token.Word && p.cur().Kind != token.IoNumber) {
				return nil, p.errAt("missing redirection target")
			}
			cmd.Redirections = append(cmd.Redirections, ast.Redirection{
				Op:     lit,
				Fd:     pendingFd,
				Target: p.cur().Text,
			})
			pendingFd = -1
			p.pos++

		default:
			return nil, p.errAt("unexpected token %q", p.cur().Literal())
		}
	}

	if len(cmd.Assignments) == 0 && len(cmd.Words) == 0 && len(cmd.Redirections) == 0 {
		return nil, p.errAt("expected command")
	}

	return cmd, nil
}

func splitAssignment(text string) (string, string) {
	for i := 0; i < len(text); i++ {
		if text[i] == '=' {
			return text[:i], text[i+1:]
		}
	}
	return text, ""
}
