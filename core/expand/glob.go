package expand

import (
	"os"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar"
	"github.com/spf13/afero"

	"minishell/core/shellerr"
	"minishell/core/token"
)

// globExpand applies pathname expansion to a marker-tagged word. Bytes
// tagged EscapeMarker or NoGlobMarker are escaped out of the pattern
// before matching, so a quoted `*` stays a literal `*`. A pattern with
// no matches passes through unchanged (Bourne default) unless the
// shell's FailGlob option makes it an expansion error.
func globExpand(marked string, ctx *Context) ([]string, error) {
	if !hasGlobMeta(marked) {
		return []string{token.StripAllMarkers(marked)}, nil
	}

	pattern := globPattern(marked)
	matches, err := globMatches(globFs(ctx), pattern)
	if err != nil {
		return nil, shellerr.New(shellerr.Expansion, "invalid glob pattern").WithContext(err.Error())
	}

	if len(matches) == 0 {
		if ctx.FailGlob {
			return nil, shellerr.New(shellerr.Expansion, "no match for glob pattern").WithContext(pattern)
		}
		return []string{token.StripAllMarkers(marked)}, nil
	}

	sort.Strings(matches)
	return matches, nil
}

// globFs resolves the filesystem glob enumeration walks, defaulting to
// the real OS filesystem so production callers behave exactly as
// before afero was introduced.
func globFs(ctx *Context) afero.Fs {
	if ctx != nil && ctx.Fs != nil {
		return ctx.Fs
	}
	return afero.NewOsFs()
}

// globMatches walks fsys segment by segment instead of handing the
// whole pattern to a filesystem-backed Glob implementation: each
// directory is listed and Lstat'd individually, so an intermediate
// path component that is itself a symlink is never descended into for
// enumeration, even though a symlink may still match as a final
// component. A leading "/" anchors the walk at the filesystem root;
// otherwise it starts at ".".
func globMatches(fsys afero.Fs, pattern string) ([]string, error) {
	abs := strings.HasPrefix(pattern, "/")
	trimmed := strings.TrimPrefix(pattern, "/")
	segments := strings.Split(trimmed, "/")

	base := "."
	if abs {
		base = "/"
	}
	return globSegments(fsys, base, segments)
}

func globSegments(fsys afero.Fs, base string, segments []string) ([]string, error) {
	if len(segments) == 0 {
		return []string{strings.TrimSuffix(base, "/")}, nil
	}
	seg, rest := segments[0], segments[1:]
	if seg == "" {
		return globSegments(fsys, base, rest)
	}

	entries, err := afero.ReadDir(fsys, base)
	if err != nil {
		return nil, nil
	}

	var out []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, ".") && !strings.HasPrefix(seg, ".") {
			continue
		}
		ok, err := doublestar.Match(seg, name)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		next := joinSegment(base, name)
		if len(rest) == 0 {
			out = append(out, next)
			continue
		}
		if globIsSymlink(fsys, next) {
			continue
		}
		if !entry.IsDir() {
			continue
		}
		sub, err := globSegments(fsys, next, rest)
		if err != nil {
			return nil, err
		}
		out = append(out, sub...)
	}
	return out, nil
}

func joinSegment(base, name string) string {
	if base == "/" {
		return "/" + name
	}
	if base == "." {
		return name
	}
	return base + "/" + name
}

// globIsSymlink uses Lstat, not Stat, so a symlinked directory is
// detected for what it is rather than resolved through to its target
// before the enumeration decides whether to descend into it.
func globIsSymlink(fsys afero.Fs, path string) bool {
	lst, ok := fsys.(afero.Lstater)
	if !ok {
		return false
	}
	info, _, err := lst.LstatIfPossible(path)
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeSymlink != 0
}

func isGlobMeta(c byte) bool {
	switch c {
	case '*', '?', '[', ']':
		return true
	default:
		return false
	}
}

// hasGlobMeta reports whether marked contains an unescaped, unquoted
// glob metacharacter eligible for pathname expansion.
func hasGlobMeta(marked string) bool {
	protected := false
	for i := 0; i < len(marked); i++ {
		c := marked[i]
		if c == token.EscapeMarker || c == token.NoGlobMarker {
			protected = true
			continue
		}
		if !protected && isGlobMeta(c) {
			return true
		}
		protected = false
	}
	return false
}

// globPattern strips marker bytes from marked, escaping any glob
// metacharacter that was protected by a marker so it is matched as a
// literal instead of a wildcard.
func globPattern(marked string) string {
	var b []byte
	protected := false
	for i := 0; i < len(marked); i++ {
		c := marked[i]
		if c == token.EscapeMarker || c == token.NoGlobMarker {
			protected = true
			continue
		}
		if protected && (isGlobMeta(c) || c == '\\') {
			b = append(b, '\\')
		}
		b = append(b, c)
		protected = false
	}
	return string(b)
}
