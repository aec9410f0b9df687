package cmd

import (
	"log"
	"os"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"minishell/core/config"
)

// initCmd scaffolds a default ~/.minishellrc, mirroring the teacher's
// `minishell init` step that writes a default config.yaml.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default ~/.minishellrc if one doesn't exist yet.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		home, err := os.UserHomeDir()
		if err != nil {
			return err
		}

		logger := log.New(cmd.ErrOrStderr(), "", 0)
		return config.Initialize(afero.NewOsFs(), home, logger)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
