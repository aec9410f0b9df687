package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"minishell/core/exec"
)

// Export sets a shell variable and marks it for inclusion in spawned
// processes' environment. With no arguments it lists every exported
// NAME=value pair, sorted, mirroring the teacher's Env command.
func Export(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "export [NAME=value ...]", Short: "Set and export a shell variable."}
	return cmd.Run(args, stdout, stderr, func() int {
		rest := cmd.Flags().Args()
		if len(rest) == 0 {
			env := e.State.Environ()
			sort.Strings(env)
			for _, kv := range env {
				fmt.Fprintln(stdout, kv)
			}
			return 0
		}

		status := 0
		for _, arg := range rest {
			i := strings.IndexByte(arg, '=')
			if i < 0 {
				fmt.Fprintf(stderr, "export: not a valid identifier: %s\n", arg)
				status = 1
				continue
			}
			e.State.Export(arg[:i], arg[i+1:])
		}
		return status
	})
}

// Unset removes one or more shell variables.
func Unset(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "unset NAME ...", Short: "Unset a shell variable."}
	return cmd.Run(args, stdout, stderr, func() int {
		for _, name := range cmd.Flags().Args() {
			e.State.Unset(name)
		}
		return 0
	})
}
