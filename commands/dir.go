package commands

import (
	"fmt"
	"io"
	"os"

	"minishell/core/exec"
)

// Cd changes the shell's working directory. With no argument it goes
// to $HOME; `cd -` goes to $OLDPWD.
func Cd(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "cd [DIR]", Short: "Change the working directory."}
	return cmd.Run(args, stdout, stderr, func() int {
		rest := cmd.Flags().Args()

		target := ""
		switch len(rest) {
		case 0:
			target, _ = e.State.Get("HOME")
		case 1:
			target = rest[0]
			if target == "-" {
				target, _ = e.State.Get("OLDPWD")
				if target == "" {
					fmt.Fprintln(stderr, "cd: OLDPWD not set")
					return 1
				}
			}
		default:
			fmt.Fprintln(stderr, "cd: too many arguments")
			return 1
		}
		if target == "" {
			fmt.Fprintln(stderr, "cd: HOME not set")
			return 1
		}

		old := e.State.Cwd()
		if err := os.Chdir(target); err != nil {
			fmt.Fprintf(stderr, "cd: %s\n", err)
			return 1
		}
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintf(stderr, "cd: %s\n", err)
			return 1
		}
		e.State.SetCwd(wd)
		e.State.Set("OLDPWD", old)
		e.State.Set("PWD", wd)
		return 0
	})
}

// Pwd prints the shell's tracked working directory.
func Pwd(e *exec.Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
	cmd := &SimpleCommand{Use: "pwd", Short: "Print the working directory."}
	return cmd.Run(args, stdout, stderr, func() int {
		fmt.Fprintln(stdout, e.State.Cwd())
		return 0
	})
}
