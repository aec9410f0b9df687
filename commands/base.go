// Package commands implements the shell's builtins and the registry
// that resolves a command word to one, mirroring the teacher's
// commands.AllCommands map and SimpleCommand flag-parsing wrapper
// (commands/base.go), adapted from vos.VOS to the executor's own
// (stdout, stderr, stdin io.Writer/io.Reader) surface.
package commands

import (
	"fmt"
	"io"

	getopt "github.com/pborman/getopt/v2"

	"minishell/core/exec"
)

// BuiltinFunc is the signature every builtin implements; it satisfies
// exec.Builtin.
type BuiltinFunc = exec.Builtin

// Registry holds every registered builtin by name and implements
// exec.Builtins.
type Registry struct {
	builtins map[string]BuiltinFunc
}

// NewRegistry returns a Registry with every builtin in this package
// already registered.
func NewRegistry() *Registry {
	r := &Registry{builtins: map[string]BuiltinFunc{}}
	r.register("cd", Cd)
	r.register("pwd", Pwd)
	r.register("export", Export)
	r.register("unset", Unset)
	r.register("alias", Alias)
	r.register("unalias", Unalias)
	r.register("exit", Exit)
	r.register("true", True)
	r.register("false", False)
	r.register("jobs", Jobs)
	r.register("fg", Fg)
	r.register("bg", Bg)
	r.register("wait", Wait)
	r.register("kill", Kill)
	r.register("echo", Echo)
	r.register(":", Noop)
	return r
}

func (r *Registry) register(name string, fn BuiltinFunc) {
	r.builtins[name] = fn
}

// Lookup implements exec.Builtins.
func (r *Registry) Lookup(name string) (BuiltinFunc, bool) {
	fn, ok := r.builtins[name]
	return fn, ok
}

// SimpleCommand is the builtin-side counterpart to the teacher's
// commands.SimpleCommand: it owns a getopt.Set, parses args[1:], and
// only invokes the callback once flags are valid.
type SimpleCommand struct {
	Use      string
	Short    string
	ShowHelp *bool

	flags *getopt.Set
}

func (s *SimpleCommand) Flags() *getopt.Set {
	if s.flags == nil {
		s.flags = getopt.New()
	}
	return s.flags
}

func (s *SimpleCommand) PrintHelp(w io.Writer) {
	fmt.Fprint(w, "usage: ")
	fmt.Fprintln(w, s.Use)
	fmt.Fprintln(w, s.Short)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	s.Flags().PrintOptions(w)
}

// Run parses args (args[0] is the command name, per argv convention)
// against the command's flag set and, if parsing succeeds, invokes
// callback; otherwise it prints usage to stderr and returns 1.
func (s *SimpleCommand) Run(args []string, stdout, stderr io.Writer, callback func() int) int {
	opts := s.Flags()
	if s.ShowHelp == nil {
		s.ShowHelp = opts.BoolLong("help", 'h', "show this help and exit")
	}

	err := opts.Getopt(args, nil)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %s\n", args[0], err)
		s.PrintHelp(stderr)
		return 1
	}
	if *s.ShowHelp {
		s.PrintHelp(stdout)
		return 0
	}
	return callback()
}
