// Package cmd is the shell's cobra command tree: the bare root command
// starts the interactive REPL, `-c` runs one line non-interactively,
// `init` scaffolds a default ~/.minishellrc, and `fuzz-parse` feeds
// stdin lines through tokenize+parse for the fuzz harness named in
// spec.md §8.
package cmd

import (
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"minishell/internal/logging"
)

var commandLine string

// exitCode is set by the root command's RunE and applied by Execute
// once cobra has returned, so deferred cleanup (closing the line
// editor, stopping the signal reaper) always runs first.
var exitCode int

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "minishell",
	Short: "A small interactive Unix-style shell.",
	Long: `minishell is an interactive command shell: it tokenizes, parses,
expands and executes pipelines with job control, much like sh or bash
but deliberately limited in scope.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if commandLine != "" {
			cmd.SilenceErrors = true
			exitCode = runOneLine(afero.NewOsFs(), commandLine)
			return nil
		}
		return runREPL(afero.NewOsFs())
	},
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main(). It only needs to
// happen once to the rootCmd.
func Execute() {
	logging.Init()
	cobra.CheckErr(rootCmd.Execute())
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&commandLine, "command", "c", "", "run one command line and exit, like sh -c")
}
