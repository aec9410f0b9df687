package cmd

import (
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/abiosoft/readline"
	"github.com/spf13/afero"
	"golang.org/x/sys/unix"

	"minishell/core/job"
	"minishell/core/prompt"
	"minishell/core/shellerr"
	"minishell/core/token"
)

// jobControlSignals are the signals an interactive shell lets its
// foreground job handle instead of acting on itself: installing our
// own (non-ignoring) handler for each means execve resets their
// disposition back to SIG_DFL in every spawned child automatically,
// the POSIX behavior spec.md §4.5 names as "child processes reset all
// of these to defaults before execvp" — done here by letting exec(2)
// do it rather than by an explicit post-fork reset, since Go's
// os/exec gives us no pre-exec hook to run one ourselves.
var jobControlSignals = []os.Signal{unix.SIGQUIT, unix.SIGTSTP, unix.SIGTTIN, unix.SIGTTOU}

// runREPL runs the interactive read-eval-print loop: render the
// prompt, read one logical line (with continuation on a trailing
// backslash or an unterminated quote), run it, and report any
// newly-finished background jobs before prompting again.
func runREPL(fs afero.Fs) error {
	sess, err := newSession(fs)
	if err != nil {
		return err
	}

	ignored := make(chan os.Signal, 1)
	signal.Notify(ignored, jobControlSignals...)
	defer signal.Stop(ignored)
	go func() {
		for range ignored {
		}
	}()

	sigchld := make(chan os.Signal, 1)
	signal.Notify(sigchld, unix.SIGCHLD)
	defer signal.Stop(sigchld)
	reaper := job.NewReaper(sess.jobs, sigchld)
	go reaper.Run()
	defer reaper.Stop()

	theme, _ := prompt.LookupTheme(sess.cfg.PromptTheme)

	rlCfg := &readline.Config{
		Stdin:          readline.NewCancelableStdin(os.Stdin),
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		FuncIsTerminal: func() bool { return true },
	}
	if err := rlCfg.Init(); err != nil {
		return err
	}
	rl, err := readline.NewEx(rlCfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	e := sess.newExecutor(int(os.Stdin.Fd()), os.Stdin, rl, os.Stderr)
	// Interactive heredocs read from the line editor itself, prompting
	// "> " for each body line, instead of the non-interactive fallback
	// newExecutor wired over os.Stdin.
	e.HeredocReader = func() (string, error) {
		rl.SetPrompt("> ")
		return rl.Readline()
	}

	for {
		reportDoneJobs(sess.jobs, rl)

		rl.SetPrompt(prompt.Render(sess.cfg.PromptTemplate, theme, e.State.Cwd(), e.State.LastStatus()))
		line, err := readLogicalLine(rl)
		switch {
		case err == io.EOF:
			exitCode = e.State.LastStatus()
			return nil
		case err == readline.ErrInterrupt:
			continue
		case err != nil:
			return err
		}

		if strings.TrimSpace(line) == "" {
			continue
		}

		status := runLine(e, line)
		e.State.SetLastStatus(status)
		if requested, code := e.ExitRequested(); requested {
			exitCode = code
			return nil
		}
	}
}

// readLogicalLine reads one physical line and, if it ends in a trailing
// unescaped backslash or tokenizes to an unterminated quote/
// substitution, keeps reading and appending continuation lines until
// the result tokenizes cleanly or a real lexical error remains.
func readLogicalLine(rl *readline.Instance) (string, error) {
	line, err := rl.Readline()
	if err != nil {
		return "", err
	}

	for {
		if strings.HasSuffix(line, "\\") && !strings.HasSuffix(line, "\\\\") {
			rl.SetPrompt("> ")
			cont, err := rl.Readline()
			if err != nil {
				return "", err
			}
			line = line[:len(line)-1] + "\n" + cont
			continue
		}

		if _, err := token.Tokenize(line); err != nil {
			if se, ok := err.(*shellerr.Error); ok && se.Kind == shellerr.Lexical && strings.HasPrefix(se.Message, "unterminated") {
				rl.SetPrompt("> ")
				cont, err := rl.Readline()
				if err != nil {
					return "", err
				}
				line = line + "\n" + cont
				continue
			}
		}
		return line, nil
	}
}

// reportDoneJobs prints and drops every job that finished since the
// last prompt, as a "[1] Done"-style notification line.
func reportDoneJobs(jobs *job.Table, w io.Writer) {
	for _, j := range jobs.List() {
		if j.State == job.Done {
			io.WriteString(w, j.String()+"\n")
			jobs.Remove(j.ID)
		}
	}
}
