// Package config loads ~/.minishellrc: a line-based directive file that
// seeds the shell's alias table, exported environment, prompt template
// and theme before the REPL starts. Real filesystem access sits behind
// an afero.Fs the way the teacher's core/config does, so tests run
// against an in-memory filesystem instead of touching disk.
package config

import (
	"bufio"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"

	"minishell/core/prompt"
	"minishell/core/token"
)

// FileName is the name of the directive file inside a user's home
// directory.
const FileName = ".minishellrc"

// Configuration is everything ~/.minishellrc can seed. Zero value is a
// valid, empty configuration (an absent rc file is not an error).
type Configuration struct {
	Aliases        map[string]string `validate:"-"`
	Exports        map[string]string `validate:"-"`
	PromptTemplate string            `validate:"-"`
	PromptTheme    string            `validate:"omitempty,prompt_theme"`
	FailGlob       bool              `validate:"-"`
}

func empty() *Configuration {
	return &Configuration{
		Aliases: map[string]string{},
		Exports: map[string]string{},
	}
}

// Validate checks directive-level semantic errors Load can't catch line
// by line, such as an unknown prompt_theme name.
func (c *Configuration) Validate() error {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.ToLower(fld.Name)
	})
	if err := validate.RegisterValidation("prompt_theme", validateKnownTheme); err != nil {
		return err
	}
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: unknown theme")
	}
	return nil
}

func validateKnownTheme(fl validator.FieldLevel) bool {
	_, err := prompt.LookupTheme(fl.Field().String())
	return err == nil
}

// Load reads FileName out of dir (typically $HOME) through fs. A
// missing file is not an error: it yields an empty Configuration, the
// same way a shell with no rc file still starts.
func Load(fs afero.Fs, dir string) (*Configuration, error) {
	cfg := empty()

	path := dir + "/" + FileName
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if !exists {
		return cfg, nil
	}

	f, err := fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := applyLine(cfg, scanner.Text()); err != nil {
			return nil, fmt.Errorf("config: line %d: %w", lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyLine parses and applies a single directive line. Directive
// values are tokenized in Lenient mode: an unterminated quote in a
// config value degrades to a best-effort token rather than aborting
// the whole file, matching SPEC_FULL.md's tokenizer expansion.
func applyLine(cfg *Configuration, raw string) error {
	line := strings.TrimSpace(raw)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	directive, rest := splitDirective(line)
	switch directive {
	case "alias":
		name, value, err := parseAssignmentDirective(rest)
		if err != nil {
			return fmt.Errorf("alias: %w", err)
		}
		cfg.Aliases[name] = value

	case "export":
		name, value, err := parseAssignmentDirective(rest)
		if err != nil {
			return fmt.Errorf("export: %w", err)
		}
		cfg.Exports[name] = value

	case "prompt":
		cfg.PromptTemplate = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "="))

	case "prompt_theme":
		cfg.PromptTheme = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "="))

	case "failglob":
		v := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(rest), "="))
		cfg.FailGlob = v == "true" || v == "1"

	default:
		return fmt.Errorf("unknown directive %q", directive)
	}
	return nil
}

func splitDirective(line string) (directive, rest string) {
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], line[i+1:]
}

// parseAssignmentDirective tokenizes a `NAME=value` or `NAME='value'`
// directive body leniently and returns the unquoted name and value.
func parseAssignmentDirective(body string) (name, value string, err error) {
	toks, err := token.TokenizeLenient(strings.TrimSpace(body))
	if err != nil {
		return "", "", err
	}
	if len(toks) != 1 {
		return "", "", fmt.Errorf("expected NAME=value, got %q", body)
	}
	text := toks[0].Text
	eq := indexUnmarked(text, '=')
	if eq < 0 {
		return "", "", fmt.Errorf("missing '=' in %q", body)
	}
	name = token.StripAllMarkers(text[:eq])
	value = token.StripAllMarkers(text[eq+1:])
	return name, value, nil
}

// indexUnmarked finds the first occurrence of c in a marker-tagged
// string that isn't itself inside a marker-protected (escaped/quoted)
// span, so `NAME` in `NAME='a=b'` splits correctly even though the
// value also contains '='.
func indexUnmarked(s string, c byte) int {
	protected := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if b == token.EscapeMarker || b == token.NoGlobMarker {
			protected = true
			continue
		}
		if !protected && b == c {
			return i
		}
		protected = false
	}
	return -1
}
