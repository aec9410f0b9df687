package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"

	"minishell/core/exec"
	"minishell/core/job"
)

// Jobs lists every job the shell is tracking, removing any reported
// Done job from the table afterward the way `jobs` conventionally does.
func Jobs(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "jobs", Short: "List background and stopped jobs."}
	return cmd.Run(args, stdout, stderr, func() int {
		for _, j := range e.Jobs.List() {
			fmt.Fprintln(stdout, j.String())
			if j.State == job.Done {
				e.Jobs.Remove(j.ID)
			}
		}
		return 0
	})
}

// resolveJobArg parses a %N job spec (or, for convenience, a bare job
// ID) from args[1], defaulting to the most recently added job if no
// argument is given.
func resolveJobArg(e *exec.Executor, args []string) (*job.Job, error) {
	if len(args) < 2 {
		jobs := e.Jobs.List()
		if len(jobs) == 0 {
			return nil, fmt.Errorf("no current job")
		}
		return jobs[len(jobs)-1], nil
	}
	spec := strings.TrimPrefix(args[1], "%")
	id, err := strconv.Atoi(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid job id %q", args[1])
	}
	j, ok := e.Jobs.Get(id)
	if !ok {
		return nil, fmt.Errorf("no such job %q", args[1])
	}
	return j, nil
}

// Fg resumes a stopped or background job in the foreground and waits
// for it.
func Fg(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "fg [%JOB]", Short: "Resume a job in the foreground."}
	return cmd.Run(args, stdout, stderr, func() int {
		j, err := resolveJobArg(e, args)
		if err != nil {
			fmt.Fprintf(stderr, "fg: %s\n", err)
			return 1
		}
		fmt.Fprintln(stdout, j.CommandLine)
		status, err := e.Resume(j, true)
		if err != nil {
			fmt.Fprintf(stderr, "fg: %s\n", err)
			return 1
		}
		return status
	})
}

// Bg resumes a stopped job in the background and returns immediately.
func Bg(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "bg [%JOB]", Short: "Resume a job in the background."}
	return cmd.Run(args, stdout, stderr, func() int {
		j, err := resolveJobArg(e, args)
		if err != nil {
			fmt.Fprintf(stderr, "bg: %s\n", err)
			return 1
		}
		if _, err := e.Resume(j, false); err != nil {
			fmt.Fprintf(stderr, "bg: %s\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "[%d] %d\n", j.ID, j.Pgid)
		return 0
	})
}

// Wait blocks until a named job (or, with no argument, every tracked
// job) reaches Done.
func Wait(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "wait [%JOB]", Short: "Wait for a job to finish."}
	return cmd.Run(args, stdout, stderr, func() int {
		if len(args) > 1 {
			j, err := resolveJobArg(e, args)
			if err != nil {
				fmt.Fprintf(stderr, "wait: %s\n", err)
				return 1
			}
			j.Wait(e.Jobs)
			return j.ExitStatus
		}

		status := 0
		for _, j := range e.Jobs.List() {
			if j.State == job.Done {
				continue
			}
			j.Wait(e.Jobs)
			status = j.ExitStatus
		}
		return status
	})
}

// Kill sends a signal (default SIGTERM) to a job's process group or a
// raw pid.
func Kill(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "kill [-s SIGNAL] %JOB|PID", Short: "Send a signal to a job or process."}
	opt := cmd.Flags()
	sigName := opt.StringLong("signal", 's', "TERM", "signal to send")

	return cmd.Run(args, stdout, stderr, func() int {
		rest := opt.Args()
		if len(rest) != 1 {
			fmt.Fprintln(stderr, "kill: expected exactly one job or pid")
			return 1
		}
		sig, err := parseSignal(*sigName)
		if err != nil {
			fmt.Fprintf(stderr, "kill: %s\n", err)
			return 1
		}

		target := rest[0]
		if strings.HasPrefix(target, "%") {
			j, err := resolveJobArg(e, []string{"kill", target})
			if err != nil {
				fmt.Fprintf(stderr, "kill: %s\n", err)
				return 1
			}
			if err := e.SignalJob(j, sig); err != nil {
				fmt.Fprintf(stderr, "kill: %s\n", err)
				return 1
			}
			return 0
		}

		pid, err := strconv.Atoi(target)
		if err != nil {
			fmt.Fprintf(stderr, "kill: invalid pid %q\n", target)
			return 1
		}
		if err := unix.Kill(pid, sig); err != nil {
			fmt.Fprintf(stderr, "kill: %s\n", err)
			return 1
		}
		return 0
	})
}

func parseSignal(name string) (unix.Signal, error) {
	name = strings.ToUpper(strings.TrimPrefix(name, "SIG"))
	switch name {
	case "TERM":
		return unix.SIGTERM, nil
	case "KILL":
		return unix.SIGKILL, nil
	case "INT":
		return unix.SIGINT, nil
	case "STOP":
		return unix.SIGSTOP, nil
	case "CONT":
		return unix.SIGCONT, nil
	case "HUP":
		return unix.SIGHUP, nil
	default:
		if n, err := strconv.Atoi(name); err == nil {
			return unix.Signal(n), nil
		}
		return 0, fmt.Errorf("unknown signal %q", name)
	}
}
