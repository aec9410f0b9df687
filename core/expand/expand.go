// Package expand implements the expansion pipeline that turns raw,
// marker-tagged token text into the literal argv strings execve sees:
// alias substitution, tilde expansion, parameter and command
// substitution, glob expansion, and the final marker scrub.
package expand

import (
	"os"
	"os/user"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"

	"minishell/core/shellerr"
	"minishell/core/token"
)

// maxAliasDepth bounds head-of-line alias re-substitution so `alias
// ll=ll` or a longer alias cycle can't loop forever.
const maxAliasDepth = 16

// Env is the variable store the expander reads $NAME and $? from and
// exported to spawned processes. *state.State satisfies this.
type Env interface {
	Get(name string) (string, bool)
}

// CommandRunner executes a recursive shell command line for $(...) and
// backtick substitution and returns its captured, newline-trimmed
// stdout. *exec.Executor satisfies this.
type CommandRunner interface {
	RunCapture(line string) (string, error)
}

// Context carries everything a single expansion pass needs.
type Context struct {
	Env        Env
	LastStatus int
	Positional []string
	Pid        int
	Runner     CommandRunner
	FailGlob   bool
	// Fs backs glob enumeration; nil means the real OS filesystem
	// (afero.NewOsFs()). Tests inject afero.NewMemMapFs() instead.
	Fs afero.Fs
}

// ExpandAliasLine tokenizes line, then applies head-only, depth-limited
// alias substitution independently to each `;`/`&&`/`||`-delimited
// segment, the way the reference shell's apply_aliases runs once per
// segment against that segment's own tokens.first(), after
// split_sequence has already cut the line on its connectors. A pipe
// does not start a new segment — only the leftmost pipeline stage's
// head word is ever eligible — so `true && ll` and `true&&ll` both
// expand `ll`, while `true | ll` does not.
func ExpandAliasLine(line string, aliases map[string]string) ([]token.Token, error) {
	toks, err := token.Tokenize(line)
	if err != nil {
		return nil, err
	}
	return expandAliasSegments(toks, aliases)
}

// expandAliasSegments splits tokens on top-level sequence connectors
// and runs expandAliasHead over each resulting segment independently.
func expandAliasSegments(tokens []token.Token, aliases map[string]string) ([]token.Token, error) {
	var out []token.Token
	start := 0
	for i := 0; i <= len(tokens); i++ {
		if i < len(tokens) && !isSegmentConnector(tokens[i]) {
			continue
		}
		seg, err := expandAliasHead(tokens[start:i], aliases)
		if err != nil {
			return nil, err
		}
		out = append(out, seg...)
		if i < len(tokens) {
			out = append(out, tokens[i])
		}
		start = i + 1
	}
	return out, nil
}

// isSegmentConnector reports whether t separates two sequence segments.
// `|` deliberately isn't one: alias substitution never reaches past the
// first pipe stage of a segment.
func isSegmentConnector(t token.Token) bool {
	if t.Kind != token.Operator {
		return false
	}
	switch t.Literal() {
	case ";", "&&", "||":
		return true
	default:
		return false
	}
}

// expandAliasHead substitutes and re-substitutes a single segment's
// head token against aliases, up to maxAliasDepth, so `alias ll='ls
// -la'` turns `ll /tmp` into `ls -la /tmp` and a chain of aliases
// resolves transitively. An alias whose value starts with its own name
// (`alias pwd='pwd -P'`) is substituted once and not again.
func expandAliasHead(segment []token.Token, aliases map[string]string) ([]token.Token, error) {
	for depth := 0; ; depth++ {
		if len(segment) == 0 || segment[0].Kind == token.Operator {
			return segment, nil
		}
		head := segment[0].Literal()
		val, ok := aliases[head]
		if !ok {
			return segment, nil
		}
		if depth >= maxAliasDepth {
			return nil, shellerr.New(shellerr.Expansion, "alias expansion cycle detected").
				WithContext(head)
		}
		repl, err := token.Tokenize(val)
		if err != nil {
			return nil, err
		}
		segment = append(append([]token.Token{}, repl...), segment[1:]...)
		if len(repl) > 0 && repl[0].Literal() == head {
			return segment, nil
		}
	}
}

// defaultIFS is used when the shell has no IFS variable set, matching
// the Bourne default of space, tab and newline.
const defaultIFS = " \t\n"

// Word expands a single raw token's text (tilde, parameter/command
// substitution, field splitting, then glob) into zero or more final
// argv words. Field splitting only ever fires on bytes that came from
// an unquoted substitution: literal word text can't contain a raw,
// unmarked IFS character, since the tokenizer already split on
// whitespace between tokens.
func Word(raw string, ctx *Context) ([]string, error) {
	afterTilde := expandTilde(raw, ctx)
	afterDollar, err := expandDollars(afterTilde, ctx)
	if err != nil {
		return nil, err
	}

	var words []string
	for _, field := range splitFields(afterDollar, ctx.ifs()) {
		globbed, err := globExpand(field, ctx)
		if err != nil {
			return nil, err
		}
		words = append(words, globbed...)
	}
	return words, nil
}

func (ctx *Context) ifs() string {
	if v, ok := ctx.Env.Get("IFS"); ok {
		return v
	}
	return defaultIFS
}

// splitFields breaks marker-tagged text on runs of unmarked bytes that
// are members of ifs, the way unquoted word splitting works in a
// Bourne shell: a byte tagged EscapeMarker or NoGlobMarker came from
// inside quotes (or an already-no-glob-forced substitution) and is
// never a split point even if it's whitespace.
func splitFields(s string, ifs string) []string {
	if ifs == "" {
		return []string{s}
	}

	var fields []string
	var cur strings.Builder
	inField := false
	i := 0
	for i < len(s) {
		c := s[i]
		if c == token.EscapeMarker || c == token.NoGlobMarker {
			i += copyTagged(&cur, s, i, c)
			inField = true
			continue
		}
		if strings.IndexByte(ifs, c) >= 0 {
			if inField {
				fields = append(fields, cur.String())
				cur.Reset()
				inField = false
			}
			i++
			continue
		}
		cur.WriteByte(c)
		inField = true
		i++
	}
	if inField {
		fields = append(fields, cur.String())
	}
	return fields
}

// Value expands a single raw token's text the way an assignment value
// or a redirection target is expanded: tilde and parameter/command
// substitution, but never pathname (glob) expansion.
func Value(raw string, ctx *Context) (string, error) {
	afterTilde := expandTilde(raw, ctx)
	afterDollar, err := expandDollars(afterTilde, ctx)
	if err != nil {
		return "", err
	}
	return token.StripAllMarkers(afterDollar), nil
}

// expandTilde replaces a leading ~ or ~user with the matching home
// directory. It only fires at the very start of the token, matching the
// reference shell's refusal to expand a ~ anywhere else in a word.
func expandTilde(raw string, ctx *Context) string {
	if len(raw) == 0 || raw[0] != '~' {
		return raw
	}
	rest := raw[1:]
	name, tail := splitPathHead(rest)

	var home string
	if name == "" {
		home, _ = ctx.Env.Get("HOME")
		if home == "" {
			if h, err := os.UserHomeDir(); err == nil {
				home = h
			}
		}
	} else {
		u, err := user.Lookup(name)
		if err != nil {
			return raw
		}
		home = u.HomeDir
	}
	if home == "" {
		return raw
	}
	return home + tail
}

func splitPathHead(s string) (name, tail string) {
	i := strings.IndexByte(s, '/')
	if i < 0 {
		return s, ""
	}
	return s[:i], s[i:]
}

// expandDollars scans marker-tagged text for $-introduced references
// (parameter, special, or command substitution) and replaces each with
// its value, left to right. A reference that came from inside double
// quotes (tagged with a leading NoGlobMarker) has its substituted value
// forced no-glob; a bare, unquoted reference's value remains eligible
// for the glob stage that follows, matching ordinary shell semantics.
func expandDollars(s string, ctx *Context) (string, error) {
	var out strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == token.EscapeMarker:
			i += copyTagged(&out, s, i, token.EscapeMarker)

		case c == token.NoGlobMarker && i+1 < len(s) && s[i+1] == '$':
			value, consumed, err := expandReference(s[i+2:], ctx)
			if err != nil {
				return "", err
			}
			out.WriteString(enforceNoGlob(value))
			i += 2 + consumed

		case c == token.NoGlobMarker:
			i += copyTagged(&out, s, i, token.NoGlobMarker)

		case c == '$':
			value, consumed, err := expandReference(s[i+1:], ctx)
			if err != nil {
				return "", err
			}
			out.WriteString(value)
			i += 1 + consumed

		default:
			out.WriteByte(c)
			i++
		}
	}
	return out.String(), nil
}

// copyTagged copies a marker byte and the single rune it tags verbatim,
// returning the number of bytes consumed from s starting at i.
func copyTagged(out *strings.Builder, s string, i int, marker byte) int {
	out.WriteByte(marker)
	if i+1 >= len(s) {
		return 1
	}
	_, size := utf8.DecodeRuneInString(s[i+1:])
	out.WriteString(s[i+1 : i+1+size])
	return 1 + size
}

// enforceNoGlob tags every byte of s with NoGlobMarker so the glob stage
// never treats it as a pattern.
func enforceNoGlob(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s) * 2)
	for i := 0; i < len(s); i++ {
		b.WriteByte(token.NoGlobMarker)
		b.WriteByte(s[i])
	}
	return b.String()
}

// expandReference parses and resolves one $-reference from the start of
// rest (which does not include the leading '$'), returning its value
// and how many bytes of rest it consumed.
func expandReference(rest string, ctx *Context) (string, int, error) {
	if rest == "" {
		return "$", 0, nil
	}

	switch {
	case rest[0] == '(':
		inner, consumed, err := scanBalancedParen(rest[1:])
		if err != nil {
			return "", 0, err
		}
		out, err := ctx.Runner.RunCapture(inner)
		if err != nil {
			return "", 0, shellerr.New(shellerr.Expansion, "command substitution failed").
				WithContext(err.Error())
		}
		return out, 1 + consumed, nil

	case rest[0] == '{':
		return expandBraced(rest[1:], ctx)

	case rest[0] >= '0' && rest[0] <= '9':
		idx := int(rest[0] - '0')
		pos := ctx.Positional
		if idx < len(pos) {
			return pos[idx], 1, nil
		}
		return "", 1, nil

	case rest[0] == '?':
		return strconv.Itoa(ctx.LastStatus), 1, nil

	case rest[0] == '$':
		return strconv.Itoa(ctx.Pid), 1, nil

	case rest[0] == '#':
		return strconv.Itoa(len(ctx.Positional) - 1), 1, nil

	case isVarStart(rest[0]):
		name, n := scanVarName(rest)
		v, _ := ctx.Env.Get(name)
		return v, n, nil

	default:
		return "$", 0, nil
	}
}

// expandBraced resolves ${NAME} and ${NAME:-fallback}, given the text
// right after the opening brace.
func expandBraced(rest string, ctx *Context) (string, int, error) {
	end := strings.IndexByte(rest, '}')
	if end < 0 {
		return "", 0, shellerr.New(shellerr.Expansion, "unterminated ${...} parameter expansion")
	}
	body := rest[:end]
	consumed := 2 + end // '{' + body + '}'

	name := body
	fallback := ""
	hasFallback := false
	if i := strings.Index(body, ":-"); i >= 0 {
		name = body[:i]
		fallback = body[i+2:]
		hasFallback = true
	}

	v, ok := ctx.Env.Get(name)
	if (!ok || v == "") && hasFallback {
		return fallback, consumed, nil
	}
	return v, consumed, nil
}

func scanVarName(s string) (string, int) {
	n := 0
	for n < len(s) && isVarChar(s[n]) {
		n++
	}
	return s[:n], n
}

func isVarStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isVarChar(c byte) bool {
	return isVarStart(c) || (c >= '0' && c <= '9')
}

// scanBalancedParen scans a $(...) body (the text right after the
// opening paren, which has already been consumed) and returns its
// contents plus the number of bytes consumed including the closing
// paren, honoring nested $(...) and quotes the way the tokenizer did
// when it originally captured this span.
func scanBalancedParen(s string) (string, int, error) {
	depth := 1
	i := 0
	inSingle, inDouble := false, false
	for i < len(s) {
		c := s[i]
		switch {
		case inSingle:
			if c == '\'' {
				inSingle = false
			}
			i++
		case inDouble:
			if c == '\\' && i+1 < len(s) {
				i += 2
				continue
			}
			if c == '"' {
				inDouble = false
			}
			i++
		case c == '\'':
			inSingle = true
			i++
		case c == '"':
			inDouble = true
			i++
		case c == '\\' && i+1 < len(s):
			i += 2
		case c == '$' && i+1 < len(s) && s[i+1] == '(':
			depth++
			i += 2
		case c == ')':
			depth--
			i++
			if depth == 0 {
				return s[:i-1], i, nil
			}
		default:
			i++
		}
	}
	return "", 0, shellerr.New(shellerr.Expansion, "unterminated command substitution $(...)")
}
