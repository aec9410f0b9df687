package commands

import (
	"fmt"
	"io"
	"strconv"

	"minishell/core/exec"
)

// namedEchoEscapes maps the character right after a backslash to the
// control byte it produces, for every escape `echo -e` recognizes that
// isn't a numeric code point.
var namedEchoEscapes = map[byte]byte{
	'n': '\n', 'r': '\r', 't': '\t', '\\': '\\',
	'b': '\b', 'a': '\a', 'f': '\f', 'v': '\v',
}

// unescape expands echo -e's backslash sequences in a single
// left-to-right pass: the named escapes above, `\0` followed by one to
// three octal digits, and `\x` followed by one or two hex digits. A
// backslash that doesn't start a recognized sequence is copied through
// literally, digits and all.
func unescape(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			out = append(out, s[i])
			continue
		}

		next := s[i+1]
		if b, ok := namedEchoEscapes[next]; ok {
			out = append(out, b)
			i++
			continue
		}
		if next == '0' {
			if digits, n := scanEscapeDigits(s[i+2:], isOctalEscapeDigit, 3); n > 0 {
				if v, err := strconv.ParseInt(digits, 8, 32); err == nil {
					out = appendRune(out, rune(v))
					i += 1 + n
					continue
				}
			}
		}
		if next == 'x' {
			if digits, n := scanEscapeDigits(s[i+2:], isHexDigit, 2); n > 0 {
				v, _ := strconv.ParseInt(digits, 16, 32)
				out = appendRune(out, rune(v))
				i += 1 + n
				continue
			}
		}
		out = append(out, s[i])
	}
	return string(out)
}

// scanEscapeDigits reads up to max bytes from s that satisfy accept,
// returning them and how many were consumed.
func scanEscapeDigits(s string, accept func(byte) bool, max int) (string, int) {
	n := 0
	for n < max && n < len(s) && accept(s[n]) {
		n++
	}
	return s[:n], n
}

// isOctalEscapeDigit matches the digit class `echo -e`'s `\0NNN` escape
// historically accepts: 0-8, not just the valid octal 0-7. A run that
// happens to include an 8 fails strconv.ParseInt and falls through to
// the literal-backslash case in unescape, same as a non-match would.
func isOctalEscapeDigit(c byte) bool {
	return c >= '0' && c <= '8'
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func appendRune(b []byte, r rune) []byte {
	var buf [4]byte
	n := encodeRune(buf[:], r)
	return append(b, buf[:n]...)
}

// encodeRune writes r as a single byte when it fits (echo's escapes are
// meant to produce raw bytes, including ones above ASCII that aren't
// valid UTF-8 on their own), falling back to UTF-8 encoding otherwise.
func encodeRune(buf []byte, r rune) int {
	if r >= 0 && r <= 0xFF {
		buf[0] = byte(r)
		return 1
	}
	return copy(buf, string(r))
}

// Echo implements a limited echo, supporting -e for backslash escapes
// and -n to suppress the trailing newline.
func Echo(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "echo [-en] [ARG] ...", Short: "Display a line of text."}
	opt := cmd.Flags()
	escaped := opt.Bool('e', "interpret backslash escapes")
	noNewline := opt.Bool('n', "suppress the trailing newline")

	return cmd.Run(args, stdout, stderr, func() int {
		for i, arg := range opt.Args() {
			if i > 0 {
				fmt.Fprint(stdout, " ")
			}
			if *escaped {
				arg = unescape(arg)
			}
			fmt.Fprint(stdout, arg)
		}
		if !*noNewline {
			fmt.Fprintln(stdout)
		}
		return 0
	})
}
