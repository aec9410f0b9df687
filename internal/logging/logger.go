// Package logging configures the shell's structured logger, grounded
// in the pack's phuslu/log setup in main.go: a leveled console writer
// whose level comes from an environment variable rather than a config
// file, since this shell has no daemon-style config for it.
package logging

import (
	"os"

	"github.com/phuslu/log"
)

// Init configures log.DefaultLogger from MINISHELL_LOG, falling back to
// RUST_LOG per spec.md §6, defaulting to "warn" (silent-unless-asked)
// when neither is set.
func Init() {
	level := os.Getenv("MINISHELL_LOG")
	if level == "" {
		level = os.Getenv("RUST_LOG")
	}
	if level == "" {
		level = "warn"
	}

	log.DefaultLogger = log.Logger{
		Level:  log.ParseLevel(level),
		Caller: 0,
		Writer: &log.ConsoleWriter{
			ColorOutput:    log.IsTerminal(os.Stderr.Fd()),
			EndWithMessage: true,
		},
	}
}
