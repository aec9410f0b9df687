// Package exec runs a parsed core/ast.Sequence: it expands every word,
// spawns pipelines with os/exec, wires up redirections and pipes, and
// hands foreground process groups the controlling terminal.
package exec

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/phuslu/log"
	"golang.org/x/sys/unix"

	"minishell/core/ast"
	"minishell/core/expand"
	"minishell/core/heredoc"
	"minishell/core/job"
	"minishell/core/parse"
	"minishell/core/shellerr"
	"minishell/core/state"
	"minishell/core/token"
)

// Builtin is a command implemented in-process rather than by spawning a
// binary. It returns the command's exit status. Builtins only ever run
// as the sole stage of a pipeline: a builtin named as one stage of a
// multi-stage `a | builtin | b` is rejected (see REDESIGN FLAGS), since
// it can't join a process group or be waited on the way a real child
// can.
type Builtin func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int

// Builtins resolves a command name to its in-process implementation.
// *commands.Registry satisfies this.
type Builtins interface {
	Lookup(name string) (Builtin, bool)
}

// Executor owns everything needed to run a Sequence: shell state, the
// job table, the builtin registry, and the terminal fd to hand off for
// foreground job control. TTYFd is -1 for a non-interactive or nested
// (command-substitution) executor, which disables terminal handoff.
type Executor struct {
	State    *state.State
	Jobs     *job.Table
	Builtins Builtins
	TTYFd    int
	Stdin    io.Reader
	Stdout   io.Writer
	Stderr   io.Writer
	// HeredocReader supplies the next physical input line when a <<
	// redirection needs to read its body, e.g. the REPL's line editor
	// prompting "> ", or a buffered read over a non-interactive Stdin.
	HeredocReader heredoc.LineReader

	exitRequested bool
	exitCode      int
}

// RequestExit asks Run to stop after the current command and report
// code as the shell's final status. The exit builtin calls this rather
// than os.Exit, so a REPL running inside an otherwise-normal process
// (tests, command substitution) can observe and honor it instead of
// the whole process dying out from under the caller.
func (e *Executor) RequestExit(code int) {
	e.exitRequested = true
	e.exitCode = code
}

// ExitRequested reports whether a builtin has asked the shell to exit,
// and the code it should exit with.
func (e *Executor) ExitRequested() (bool, int) {
	return e.exitRequested, e.exitCode
}

// RunCapture implements expand.CommandRunner: it runs line as a nested
// command sequence with stdout captured instead of connected to the
// terminal, for $(...) and backtick substitution.
func (e *Executor) RunCapture(line string) (string, error) {
	toks, err := token.Tokenize(line)
	if err != nil {
		return "", err
	}
	seq, err := parse.Parse(toks)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	sub := &Executor{
		State:         e.State.Clone(),
		Jobs:          e.Jobs,
		Builtins:      e.Builtins,
		TTYFd:         -1,
		Stdin:         e.Stdin,
		Stdout:        &buf,
		Stderr:        e.Stderr,
		HeredocReader: e.HeredocReader,
	}
	if _, err := sub.Run(seq); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\r\n"), nil
}

func (e *Executor) expandCtx() *expand.Context {
	return &expand.Context{
		Env:        e.State,
		LastStatus: e.State.LastStatus(),
		Positional: e.State.Positional(),
		Pid:        e.State.Pid(),
		Runner:     e,
		FailGlob:   e.State.Options().FailGlob,
	}
}

// Run executes every link of a Sequence left to right, short-circuiting
// && and || per their usual semantics, and returns the exit status of
// the last pipeline run.
func (e *Executor) Run(seq *ast.Sequence) (int, error) {
	status := 0
	for i, link := range seq.Links {
		if i > 0 {
			switch link.Connector {
			case ast.AndAnd:
				if status != 0 {
					continue
				}
			case ast.OrOr:
				if status == 0 {
					continue
				}
			}
		}
		var err error
		status, err = e.runPipeline(link.Pipeline, seq.Background && i == len(seq.Links)-1)
		if err != nil {
			return status, err
		}
		e.State.SetLastStatus(status)
		if e.exitRequested {
			return e.exitCode, nil
		}
	}
	return status, nil
}

func isAssignmentOnly(cmd *ast.SimpleCommand) bool {
	return cmd.IsEmpty() && len(cmd.Assignments) > 0
}

// applyAssignments handles a bare `FOO=1 BAR=2` line: it sets the
// variables in the shell's own environment rather than spawning a
// process, per §5's "assignment with no command word" case.
func (e *Executor) applyAssignments(cmd *ast.SimpleCommand) (int, error) {
	ctx := e.expandCtx()
	for _, a := range cmd.Assignments {
		v, err := expand.Value(a.Value, ctx)
		if err != nil {
			return 1, err
		}
		e.State.Export(a.Name, v)
	}
	return 0, nil
}

// runPipeline runs one pipeline: a lone builtin runs synchronously
// in-process; anything else is one or more spawned processes wired
// together with pipes and tracked as a job. A pipeline of two or more
// stages where any stage names a builtin is rejected outright (§4.5's
// documented limitation), and a lone builtin can't be backgrounded
// either, since neither case has a process group to register as a job.
func (e *Executor) runPipeline(p *ast.Pipeline, background bool) (int, error) {
	if err := heredoc.Fill(p, e.HeredocReader); err != nil {
		return 1, err
	}

	if len(p.Commands) == 1 && isAssignmentOnly(p.Commands[0]) {
		return e.applyAssignments(p.Commands[0])
	}

	if len(p.Commands) == 1 {
		if e.headIsBuiltin(p.Commands[0]) && background {
			fmt.Fprintln(e.Stderr, "background jobs only work with external commands")
			return 1, nil
		}
		if status, handled, err := e.tryRunBuiltin(p.Commands[0]); handled {
			return status, err
		}
	}

	if len(p.Commands) > 1 {
		for _, sc := range p.Commands {
			if e.headIsBuiltin(sc) {
				fmt.Fprintln(e.Stderr, "pipes only work with external commands")
				return 1, nil
			}
		}
	}

	return e.runExternalPipeline(p, background)
}

// headIsBuiltin reports whether cmd's first word, once expanded, names a
// registered builtin. Expansion failures are treated as "not a
// builtin" here; the real error surfaces later when the stage actually
// runs.
func (e *Executor) headIsBuiltin(cmd *ast.SimpleCommand) bool {
	if len(cmd.Words) == 0 {
		return false
	}
	argv, err := expand.Word(cmd.Words[0], e.expandCtx())
	if err != nil || len(argv) == 0 {
		return false
	}
	_, ok := e.Builtins.Lookup(argv[0])
	return ok
}

// tryRunBuiltin runs cmd synchronously if its name resolves to a
// builtin, returning handled=false if it doesn't so the caller falls
// through to spawning a real process.
func (e *Executor) tryRunBuiltin(cmd *ast.SimpleCommand) (status int, handled bool, err error) {
	ctx := e.expandCtx()
	argv, err := expandWords(cmd.Words, ctx)
	if err != nil {
		return 1, true, err
	}
	if len(argv) == 0 {
		return 0, false, nil
	}
	fn, ok := e.Builtins.Lookup(argv[0])
	if !ok {
		return 0, false, nil
	}

	stdin, stdout, stderr := e.Stdin, e.Stdout, e.Stderr
	closers, err := e.openRedirections(cmd.Redirections, ctx, &stdin, &stdout, &stderr)
	if err != nil {
		return 1, true, err
	}
	defer closeAll(closers)

	return fn(e, argv, stdout, stderr, stdin), true, nil
}

func expandWords(words []string, ctx *expand.Context) ([]string, error) {
	var argv []string
	for _, w := range words {
		expanded, err := expand.Word(w, ctx)
		if err != nil {
			return nil, err
		}
		argv = append(argv, expanded...)
	}
	return argv, nil
}

// runExternalPipeline spawns every command in the pipeline, wiring each
// stage's stdout to the next stage's stdin, then either registers the
// job and returns (background) or waits for it (foreground).
func (e *Executor) runExternalPipeline(p *ast.Pipeline, background bool) (int, error) {
	cmds := make([]*exec.Cmd, len(p.Commands))
	var allClosers []io.Closer

	for i, sc := range p.Commands {
		c, closers, err := e.prepareCmd(sc, i, len(p.Commands))
		allClosers = append(allClosers, closers...)
		if err != nil {
			closeAll(allClosers)
			return 1, err
		}
		cmds[i] = c
	}

	// An explicit redirection on a stage already claimed its Stdout/Stdin
	// in prepareCmd (nil here means "no such redirection, still open for
	// the implicit pipe"). Wiring over a claimed fd would silently undo
	// the redirection; the unused pipe end is closed instead, so a stage
	// with no writer on the other side of its pipe sees EOF immediately,
	// same as every other shell. Each connector is an os.Pipe handed to
	// the children as a real fd; the parent's copies of the used ends are
	// closed once every stage has started, so a downstream stage sees EOF
	// as soon as its upstream exits.
	for i := 0; i < len(cmds)-1; i++ {
		pr, pw, err := os.Pipe()
		if err != nil {
			closeAll(allClosers)
			return 1, shellerr.New(shellerr.Spawn, "pipe failed").WithContext(err.Error())
		}
		if cmds[i].Stdout == nil {
			cmds[i].Stdout = pw
			allClosers = append(allClosers, pw)
		} else {
			pw.Close()
		}
		if cmds[i+1].Stdin == nil {
			cmds[i+1].Stdin = pr
			allClosers = append(allClosers, pr)
		} else {
			pr.Close()
		}
	}

	var pgid int
	for i, c := range cmds {
		if i > 0 {
			c.SysProcAttr.Pgid = pgid
			c.SysProcAttr.Setpgid = true
		}
		if err := c.Start(); err != nil {
			killStarted(cmds[:i])
			closeAll(allClosers)
			return 1, shellerr.New(shellerr.Spawn, "cannot run "+c.Path).WithContext(err.Error())
		}
		if i == 0 {
			pgid = c.Process.Pid
		}
		mitigateSetpgidRace(c.Process.Pid, pgid)
	}
	closeAll(allClosers)

	pids := make([]int, len(cmds))
	for i, c := range cmds {
		pids[i] = c.Process.Pid
	}
	j := e.Jobs.Add(pgid, pids, !background, displayPipeline(p))
	log.Debug().Int("job", j.ID).Int("pgid", pgid).Int("stages", len(pids)).Bool("background", background).Msg("pipeline spawned")

	if !background {
		e.handOffTerminal(pgid)
		defer e.handOffTerminal(unix.Getpgrp())
	} else {
		fmt.Fprintf(e.Stderr, "[%d] %d\n", j.ID, pgid)
	}

	if background {
		return 0, nil
	}
	j.Wait(e.Jobs)
	if j.State == job.Stopped {
		fmt.Fprintf(e.Stderr, "%s\n", j.String())
		return 128 + int(unix.SIGTSTP), nil
	}
	return j.ExitStatus, nil
}

// mitigateSetpgidRace makes the parent's own setpgid(2) call for a
// just-spawned child, racing the child's own SysProcAttr-driven setpgid.
// Whichever loses gets EACCES or EPERM for a group that already has the
// right pgid; any other error is logged and otherwise ignored, since a
// failed setpgid here just means job control for this pipeline degrades
// rather than the pipeline failing to run.
func mitigateSetpgidRace(pid, pgid int) {
	if err := unix.Setpgid(pid, pgid); err != nil &&
		!errors.Is(err, unix.EACCES) && !errors.Is(err, unix.EPERM) {
		fmt.Fprintf(os.Stderr, "minishell: setpgid(%d, %d): %v\n", pid, pgid, err)
	}
}

// displayPipeline renders a pipeline's original source text for `jobs`
// and `fg` to echo. Pipeline.String already scrubs marker bytes, so a
// Job's CommandLine never leaks the internal sentinels to the user.
func displayPipeline(p *ast.Pipeline) string {
	return p.String()
}

func killStarted(cmds []*exec.Cmd) {
	for _, c := range cmds {
		if c.Process != nil {
			_ = c.Process.Kill()
		}
	}
}

func closeAll(closers []io.Closer) {
	for _, c := range closers {
		_ = c.Close()
	}
}

// prepareCmd expands one pipeline stage's words and builds its
// *exec.Cmd, applying redirections. index/total place this stage in the
// pipeline so only the first stage's stdin and the last stage's stdout
// default to the executor's own streams.
func (e *Executor) prepareCmd(cmd *ast.SimpleCommand, index, total int) (*exec.Cmd, []io.Closer, error) {
	ctx := e.expandCtx()

	argv, err := expandWords(cmd.Words, ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(argv) == 0 {
		return nil, nil, shellerr.New(shellerr.Spawn, "empty command after expansion")
	}

	env := e.State.Environ()
	for _, a := range cmd.Assignments {
		v, err := expand.Value(a.Value, ctx)
		if err != nil {
			return nil, nil, err
		}
		env = append(env, a.Name+"="+v)
	}

	c := exec.Command(argv[0], argv[1:]...)
	c.Env = env
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdin io.Reader = e.Stdin
	var stdout io.Writer = e.Stdout
	stderr := e.Stderr
	if index != 0 {
		stdin = nil
	}
	if index != total-1 {
		stdout = nil
	}

	closers, err := e.openRedirections(cmd.Redirections, ctx, &stdin, &stdout, &stderr)
	if err != nil {
		return nil, nil, err
	}

	if stdin != nil {
		c.Stdin = stdin
	}
	if stdout != nil {
		c.Stdout = stdout
	}
	c.Stderr = stderr

	return c, closers, nil
}

// openRedirections resolves each redirection's target and overwrites
// *stdin/*stdout/*stderr accordingly, applied in the order they appear
// on the line so a later redirection on the same fd wins. It returns
// every file it opened so the caller can close its own copy once the
// child (or builtin, which needs them open for its own lifetime) no
// longer needs them.
func (e *Executor) openRedirections(redirs []ast.Redirection, ctx *expand.Context, stdin *io.Reader, stdout, stderr *io.Writer) ([]io.Closer, error) {
	var closers []io.Closer
	for _, r := range redirs {
		target, err := expand.Value(r.Target, ctx)
		if err != nil {
			return closers, err
		}

		switch r.Op {
		case ">", ">>":
			flags := os.O_WRONLY | os.O_CREATE
			if r.Op == ">>" {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(target, flags, 0o644)
			if err != nil {
				return closers, shellerr.New(shellerr.Redirection, "cannot open "+target).WithContext(err.Error())
			}
			closers = append(closers, f)
			assignTarget(r, 1, f, stdin, stdout, stderr)

		case "<":
			f, err := os.Open(target)
			if err != nil {
				return closers, shellerr.New(shellerr.Redirection, "cannot open "+target).WithContext(err.Error())
			}
			closers = append(closers, f)
			assignTarget(r, 0, f, stdin, stdout, stderr)

		case "<<<":
			pr, pw, err := os.Pipe()
			if err != nil {
				return closers, shellerr.New(shellerr.Redirection, "pipe failed").WithContext(err.Error())
			}
			body := target + "\n"
			go func() {
				defer pw.Close()
				io.WriteString(pw, body)
			}()
			closers = append(closers, pr)
			assignTarget(r, 0, pr, stdin, stdout, stderr)

		case "<<":
			pr, pw, err := os.Pipe()
			if err != nil {
				return closers, shellerr.New(shellerr.Redirection, "pipe failed").WithContext(err.Error())
			}
			body := ""
			if r.Body != nil {
				body = *r.Body
			}
			go func() {
				defer pw.Close()
				io.WriteString(pw, body)
			}()
			closers = append(closers, pr)
			assignTarget(r, 0, pr, stdin, stdout, stderr)

		case ">&", "<&":
			n, convErr := strconv.Atoi(target)
			if convErr != nil {
				return closers, shellerr.New(shellerr.Redirection, "invalid fd duplication target "+target)
			}
			dupFd(r, dupDefault(r.Op), n, stdin, stdout, stderr)

		case "&>", "&>>":
			flags := os.O_WRONLY | os.O_CREATE
			if r.Op == "&>>" {
				flags |= os.O_APPEND
			} else {
				flags |= os.O_TRUNC
			}
			f, err := os.OpenFile(target, flags, 0o644)
			if err != nil {
				return closers, shellerr.New(shellerr.Redirection, "cannot open "+target).WithContext(err.Error())
			}
			closers = append(closers, f)
			*stdout = f
			*stderr = f
		}
	}
	return closers, nil
}

func fdOf(r ast.Redirection, def int) int {
	if r.Fd >= 0 {
		return r.Fd
	}
	return def
}

func dupDefault(op string) int {
	if op == "<&" {
		return 0
	}
	return 1
}

func assignTarget(r ast.Redirection, def int, f *os.File, stdin *io.Reader, stdout, stderr *io.Writer) {
	switch fdOf(r, def) {
	case 0:
		*stdin = f
	case 1:
		*stdout = f
	case 2:
		*stderr = f
	}
}

// dupFd implements `N>&M` / `N<&M`: target fd N takes on whatever
// stdin/stdout/stderr currently holds for source fd M.
func dupFd(r ast.Redirection, def, src int, stdin *io.Reader, stdout, stderr *io.Writer) {
	var current interface{}
	switch src {
	case 0:
		current = *stdin
	case 1:
		current = *stdout
	case 2:
		current = *stderr
	}
	switch fdOf(r, def) {
	case 0:
		if v, ok := current.(io.Reader); ok {
			*stdin = v
		}
	case 1:
		if v, ok := current.(io.Writer); ok {
			*stdout = v
		}
	case 2:
		if v, ok := current.(io.Writer); ok {
			*stderr = v
		}
	}
}

// handOffTerminal gives process group pgid control of the controlling
// terminal, the way an interactive shell must before letting a
// foreground job read from or write to it.
func (e *Executor) handOffTerminal(pgid int) {
	if e.TTYFd < 0 {
		return
	}
	_ = unix.IoctlSetInt(e.TTYFd, unix.TIOCSPGRP, pgid)
}

// Resume sends SIGCONT to a stopped job's process group. If foreground
// is true, it also hands the terminal to the job and blocks until the
// job finishes or stops again, returning its exit status; otherwise it
// resumes the job in the background and returns immediately.
func (e *Executor) Resume(j *job.Job, foreground bool) (int, error) {
	if err := unix.Kill(-j.Pgid, unix.SIGCONT); err != nil {
		return 0, shellerr.New(shellerr.Spawn, "cannot resume job").WithContext(err.Error())
	}
	e.Jobs.SetRunning(j, foreground)

	if !foreground {
		return 0, nil
	}
	e.handOffTerminal(j.Pgid)
	defer e.handOffTerminal(unix.Getpgrp())
	j.Wait(e.Jobs)
	if j.State == job.Stopped {
		fmt.Fprintf(e.Stderr, "%s\n", j.String())
		return 128 + int(unix.SIGTSTP), nil
	}
	return j.ExitStatus, nil
}

// SignalJob sends sig to a job's process group.
func (e *Executor) SignalJob(j *job.Job, sig unix.Signal) error {
	if err := unix.Kill(-j.Pgid, sig); err != nil {
		return shellerr.New(shellerr.Spawn, "cannot signal job").WithContext(err.Error())
	}
	return nil
}
