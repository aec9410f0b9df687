package commands

import (
	"io"
	"strconv"

	"minishell/core/exec"
)

// Exit asks the shell to stop after this command, with the given code
// (or the last pipeline's status if none is given).
func Exit(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	code := e.State.LastStatus()
	if len(args) > 1 {
		if n, err := strconv.Atoi(args[1]); err == nil {
			code = n
		}
	}
	e.RequestExit(code)
	return code
}

// True always succeeds.
func True(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	return 0
}

// False always fails.
func False(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	return 1
}

// Noop implements `:`, the classic no-op builtin; it ignores its
// arguments and always succeeds.
func Noop(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	return 0
}
