package config

import (
	"fmt"
	"log"

	"github.com/spf13/afero"
)

// defaultRc is written by Initialize when a user has no rc file yet.
const defaultRc = `# minishell configuration
# Recognized directives: alias, export, prompt, prompt_theme and
# failglob.

alias ll='ls -la'
alias ..='cd ..'

prompt = {cwd}{status?} $
prompt_theme = color
`

// Initialize writes a default FileName into dir unless one already
// exists, mirroring the teacher's `minishell init` scaffolding step.
func Initialize(fs afero.Fs, dir string, logger *log.Logger) error {
	path := dir + "/" + FileName
	exists, err := afero.Exists(fs, path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if exists {
		logger.Printf("%s already exists, leaving it alone", path)
		return nil
	}

	if err := afero.WriteFile(fs, path, []byte(defaultRc), 0o644); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Printf("wrote default configuration to %s", path)
	return nil
}
