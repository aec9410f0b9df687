// Package prompt renders the interactive prompt from a template string
// and a named color theme, the way commands/ls.go picks a
// github.com/fatih/color style per direntry kind.
package prompt

import (
	"strconv"
	"strings"

	fcolor "github.com/fatih/color"

	"minishell/core/shellerr"
)

// Template tokens recognized inside a prompt string.
const (
	tokenCwd      = "{cwd}"
	tokenStatus   = "{status}"
	tokenStatusIf = "{status?}"
)

// DefaultTemplate is used when ~/.minishellrc sets no `prompt` directive.
const DefaultTemplate = "{cwd}{status?} $ "

// Theme names a prompt's color treatment. The zero Theme ("") behaves
// like "plain".
type Theme struct {
	Name string
	cwd  *fcolor.Color
	bad  *fcolor.Color
}

var themes = map[string]*Theme{
	"plain": {Name: "plain"},
	"color": {
		Name: "color",
		cwd:  fcolor.New(fcolor.FgCyan, fcolor.Bold),
		bad:  fcolor.New(fcolor.FgRed, fcolor.Bold),
	},
	"minimal": {
		Name: "minimal",
		cwd:  fcolor.New(fcolor.FgHiBlack),
	},
}

// KnownThemeNames lists every theme prompt_theme can name, so
// core/config can validate a directive against it without duplicating
// the list.
func KnownThemeNames() []string {
	names := make([]string, 0, len(themes))
	for name := range themes {
		names = append(names, name)
	}
	return names
}

// LookupTheme resolves a theme by name, as checked at config-load time
// so an unknown prompt_theme directive fails fast with "config: unknown
// theme" rather than at first render.
func LookupTheme(name string) (*Theme, error) {
	if name == "" {
		return themes["plain"], nil
	}
	t, ok := themes[name]
	if !ok {
		return nil, shellerr.New(shellerr.Fatal, "config: unknown theme")
	}
	return t, nil
}

// Render expands template's tokens against cwd and the last exit
// status: {cwd} is always substituted, {status} always shows the
// status, {status?} shows it only when nonzero.
func Render(template string, theme *Theme, cwd string, status int) string {
	if theme == nil {
		theme = themes["plain"]
	}
	if template == "" {
		template = DefaultTemplate
	}

	var out strings.Builder
	i := 0
	for i < len(template) {
		switch {
		case strings.HasPrefix(template[i:], tokenCwd):
			out.WriteString(colorize(theme.cwd, cwd))
			i += len(tokenCwd)
		case strings.HasPrefix(template[i:], tokenStatusIf):
			if status != 0 {
				out.WriteString(colorize(theme.bad, " ["+strconv.Itoa(status)+"]"))
			}
			i += len(tokenStatusIf)
		case strings.HasPrefix(template[i:], tokenStatus):
			out.WriteString(colorize(theme.bad, strconv.Itoa(status)))
			i += len(tokenStatus)
		default:
			out.WriteByte(template[i])
			i++
		}
	}
	return out.String()
}

func colorize(c *fcolor.Color, s string) string {
	if c == nil {
		return s
	}
	return c.Sprint(s)
}
