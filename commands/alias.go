package commands

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"minishell/core/exec"
)

// Alias defines or lists aliases. With no arguments it lists every
// alias as `name='value'`, sorted; with NAME=value arguments it
// defines each.
func Alias(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "alias [NAME=value ...]", Short: "Define or list aliases."}
	return cmd.Run(args, stdout, stderr, func() int {
		rest := cmd.Flags().Args()
		if len(rest) == 0 {
			aliases := e.State.Aliases()
			names := make([]string, 0, len(aliases))
			for name := range aliases {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(stdout, "alias %s='%s'\n", name, aliases[name])
			}
			return 0
		}

		status := 0
		for _, arg := range rest {
			i := strings.IndexByte(arg, '=')
			if i < 0 {
				value, ok := e.State.Alias(arg)
				if !ok {
					fmt.Fprintf(stderr, "alias: %s: not found\n", arg)
					status = 1
					continue
				}
				fmt.Fprintf(stdout, "alias %s='%s'\n", arg, value)
				continue
			}
			e.State.SetAlias(arg[:i], arg[i+1:])
		}
		return status
	})
}

// Unalias removes one or more aliases.
func Unalias(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "unalias NAME ...", Short: "Remove an alias."}
	return cmd.Run(args, stdout, stderr, func() int {
		for _, name := range cmd.Flags().Args() {
			e.State.UnsetAlias(name)
		}
		return 0
	})
}
