package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/afero"

	"minishell/commands"
	"minishell/core/config"
	"minishell/core/exec"
	"minishell/core/expand"
	"minishell/core/heredoc"
	"minishell/core/job"
	"minishell/core/parse"
	"minishell/core/shellerr"
	"minishell/core/state"
)

// shellSession bundles everything one invocation of the shell (REPL or
// `-c`) needs: state, job table, builtin registry and the rc-file
// configuration it was seeded from.
type shellSession struct {
	state    *state.State
	jobs     *job.Table
	builtins *commands.Registry
	cfg      *config.Configuration
}

// newSession builds a shellSession seeded from the real environment and
// ~/.minishellrc, the way an interactive shell's startup sequence does.
func newSession(fs afero.Fs) (*shellSession, error) {
	home, _ := os.UserHomeDir()

	cfg, err := config.Load(fs, home)
	if err != nil {
		return nil, err
	}

	st := state.New("minishell", os.Args[1:])
	for name, value := range cfg.Exports {
		st.Export(name, value)
	}
	for name, value := range cfg.Aliases {
		st.SetAlias(name, value)
	}
	st.SetOptions(state.Options{FailGlob: cfg.FailGlob})

	return &shellSession{
		state:    st,
		jobs:     job.NewTable(),
		builtins: commands.NewRegistry(),
		cfg:      cfg,
	}, nil
}

// newExecutor builds the Executor for this session, wired to the given
// streams and tty fd (-1 disables terminal handoff, for `-c` and other
// non-interactive invocations).
func (s *shellSession) newExecutor(ttyFd int, stdin io.Reader, stdout, stderr io.Writer) *exec.Executor {
	return &exec.Executor{
		State:         s.state,
		Jobs:          s.jobs,
		Builtins:      s.builtins,
		TTYFd:         ttyFd,
		Stdin:         stdin,
		Stdout:        stdout,
		Stderr:        stderr,
		HeredocReader: heredoc.NewReader(stdin),
	}
}

// runLine tokenizes, expands aliases per sequence segment, parses and
// runs one logical input line, mapping each stage's typed error to the
// stable stderr strings from spec.md §6 and returning the resulting
// exit status.
func runLine(e *exec.Executor, line string) int {
	toks, err := expand.ExpandAliasLine(line, e.State.Aliases())
	if err != nil {
		reportError(e.Stderr, err)
		return 1
	}
	if len(toks) == 0 {
		return e.State.LastStatus()
	}

	seq, err := parse.Parse(toks)
	if err != nil {
		reportError(e.Stderr, err)
		return 1
	}

	status, err := e.Run(seq)
	if err != nil {
		reportError(e.Stderr, err)
		return 1
	}
	return status
}

// reportError maps a typed stage error to the stable stderr strings
// named in spec.md §6: a lexical or syntax error always prints as
// "parse error: <message>"; anything else prints its full Kind-tagged
// form so the user can still tell an expansion failure from a spawn
// failure.
func reportError(w io.Writer, err error) {
	se, ok := err.(*shellerr.Error)
	if !ok {
		fmt.Fprintln(w, err)
		return
	}
	switch se.Kind {
	case shellerr.Lexical, shellerr.Syntax:
		fmt.Fprintf(w, "parse error: %s\n", se.Message)
	default:
		fmt.Fprintln(w, se)
	}
}

// runOneLine implements `minishell -c '<command>'`: one non-interactive
// command line, status propagated to the process exit code.
func runOneLine(fs afero.Fs, line string) int {
	sess, err := newSession(fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	e := sess.newExecutor(-1, os.Stdin, os.Stdout, os.Stderr)
	status := runLine(e, line)
	if requested, code := e.ExitRequested(); requested {
		return code
	}
	return status
}
