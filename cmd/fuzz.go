package cmd

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"minishell/core/parse"
	"minishell/core/token"
)

// fuzzParseCmd is the concrete harness named in spec.md §8's "Fuzz
// target": parse_sequence(tokenize(random_bytes)) must never panic and
// never hang. It reads newline-delimited raw lines from stdin, feeds
// each through tokenize+parse in its own goroutine with a deadline,
// and recovers any panic so one bad line is reported instead of
// crashing the whole run.
var fuzzParseCmd = &cobra.Command{
	Use:   "fuzz-parse",
	Short: "Feed newline-delimited stdin lines through tokenize+parse, exiting nonzero on a panic or hang.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		scanner := bufio.NewScanner(os.Stdin)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := scanner.Text()
			if !fuzzOneLine(line) {
				return fmt.Errorf("fuzz-parse: line %d: panic or timeout on %q", lineNo, line)
			}
		}
		return scanner.Err()
	},
}

// fuzzOneLine runs one line through tokenize+parse on its own goroutine
// and reports whether it completed cleanly within the deadline.
func fuzzOneLine(line string) bool {
	done := make(chan bool, 1)
	go func() {
		defer func() {
			if recover() != nil {
				done <- false
				return
			}
			done <- true
		}()
		toks, err := token.Tokenize(line)
		if err != nil {
			return
		}
		_, _ = parse.Parse(toks)
	}()

	select {
	case ok := <-done:
		return ok
	case <-time.After(2 * time.Second):
		return false
	}
}

func init() {
	rootCmd.AddCommand(fuzzParseCmd)
}
