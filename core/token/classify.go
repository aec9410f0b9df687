package token

import "strings"

// separators are the operators that end a command and therefore reset
// assignment-prefix recognition for whatever follows.
var separators = map[string]bool{
	";": true, "&&": true, "||": true, "|": true, "&": true,
}

// classifyAssignmentsAndWords walks a flat token stream and re-kinds any
// Word token that is a NAME=value pair sitting at the head of a simple
// command (e.g. the FOO=1 and BAR=2 in `FOO=1 BAR=2 cmd`) as Assignment.
// A command boundary is any separator operator; redirection operators and
// `(`/`)` do not reset it, since `2>&1 FOO=1 cmd` is not valid anyway and
// `(`/`)` never appear in a grammar this shell accepts.
func classifyAssignmentsAndWords(tokens []Token) []Token {
	commandStart := true
	out := make([]Token, len(tokens))
	for i, t := range tokens {
		if t.Kind == Operator {
			out[i] = t
			if separators[t.Literal()] {
				commandStart = true
			}
			continue
		}
		if t.Kind == Word && commandStart {
			if name, ok := splitAssignmentName(t.Text); ok {
				_ = name
				t.Kind = Assignment
				out[i] = t
				continue
			}
			commandStart = false
		}
		out[i] = t
	}
	return out
}

// splitAssignmentName reports whether text (raw, possibly marker-tagged)
// is a NAME=value assignment: an unmarked, valid shell identifier
// immediately followed by an unmarked '='. Quoting the name (e.g.
// `"FOO"=1`) or the '=' itself disqualifies it, matching the reference
// shell's refusal to treat `\FOO=1` as an assignment.
func splitAssignmentName(text string) (string, bool) {
	eq := strings.IndexByte(text, '=')
	if eq <= 0 {
		return "", false
	}
	name := text[:eq]
	if strings.IndexByte(name, OperatorMarker) >= 0 ||
		strings.IndexByte(name, NoGlobMarker) >= 0 ||
		strings.IndexByte(name, EscapeMarker) >= 0 {
		return "", false
	}
	if !isVarStart(rune(name[0])) {
		return "", false
	}
	for i := 1; i < len(name); i++ {
		c := rune(name[i])
		if !isVarChar(c) {
			return "", false
		}
	}
	return name, true
}
