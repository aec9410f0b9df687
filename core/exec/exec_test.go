package exec

import (
	"bytes"
	"io"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"minishell/core/heredoc"
	"minishell/core/job"
	"minishell/core/parse"
	"minishell/core/state"
	"minishell/core/token"
)

func TestMain(m *testing.M) {
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		os.Exit(0)
	}
	os.Exit(m.Run())
}

type fakeBuiltins map[string]Builtin

func (f fakeBuiltins) Lookup(name string) (Builtin, bool) {
	fn, ok := f[name]
	return fn, ok
}

func newExecutor(t *testing.T, stdout, stderr *bytes.Buffer, builtins Builtins) *Executor {
	t.Helper()
	if builtins == nil {
		builtins = fakeBuiltins{}
	}
	jobs := job.NewTable()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGCHLD)
	reaper := job.NewReaper(jobs, sigCh)
	go reaper.Run()
	t.Cleanup(func() {
		signal.Stop(sigCh)
		reaper.Stop()
	})

	return &Executor{
		State:    state.New("minishell", nil),
		Jobs:     jobs,
		Builtins: builtins,
		TTYFd:    -1,
		Stdin:    strings.NewReader(""),
		Stdout:   stdout,
		Stderr:   stderr,
	}
}

func run(t *testing.T, e *Executor, line string) int {
	t.Helper()
	toks, err := token.Tokenize(line)
	require.NoError(t, err)
	seq, err := parse.Parse(toks)
	require.NoError(t, err)
	status, err := e.Run(seq)
	require.NoError(t, err)
	return status
}

func TestRunSimpleCommandCapturesStdout(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "echo hello world")
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello world\n", out.String())
}

func TestRunExitStatusPropagates(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "false")
	assert.Equal(t, 1, status)
}

func TestRunAndAndShortCircuitsOnFailure(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "false && echo nope")
	assert.Equal(t, 1, status)
	assert.Empty(t, out.String())
}

func TestRunOrOrRunsOnlyOnFailure(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "true || echo nope")
	assert.Equal(t, 0, status)
	assert.Empty(t, out.String())

	out.Reset()
	status = run(t, e, "false || echo yep")
	assert.Equal(t, 0, status)
	assert.Equal(t, "yep\n", out.String())
}

func TestRunPipelineWiresStages(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "echo banana | tr a-z A-Z")
	assert.Equal(t, 0, status)
	assert.Equal(t, "BANANA\n", out.String())
}

func TestRunThreeStagePipeline(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "printf 'b\\na\\nc\\n' | sort | tr -d '\\n'")
	assert.Equal(t, 0, status)
	assert.Equal(t, "abc", out.String())
}

func TestRunRedirectionToFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/out.txt"
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "echo hi > "+path)
	assert.Equal(t, 0, status)
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(contents))
}

func TestRunRedirectionFromFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/in.txt"
	require.NoError(t, os.WriteFile(path, []byte("from file\n"), 0o644))

	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "cat < "+path)
	assert.Equal(t, 0, status)
	assert.Equal(t, "from file\n", out.String())
}

func TestRunExplicitRedirectionWinsOverPipeOnFirstStage(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/x.txt"
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "echo hi > "+path+" | cat")
	assert.Equal(t, 0, status)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(contents))
	assert.Empty(t, out.String())
}

func TestRunExplicitRedirectionWinsOverPipeOnSecondStage(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/in.txt"
	require.NoError(t, os.WriteFile(path, []byte("from file\n"), 0o644))

	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "echo piped | cat < "+path)
	assert.Equal(t, 0, status)
	assert.Equal(t, "from file\n", out.String())
}

func TestRunHeredocString(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "cat <<< hello")
	assert.Equal(t, 0, status)
	assert.Equal(t, "hello\n", out.String())
}

func TestRunAssignmentOnlySetsState(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	status := run(t, e, "FOO=bar")
	assert.Equal(t, 0, status)
	v, ok := e.State.Get("FOO")
	assert.True(t, ok)
	assert.Equal(t, "bar", v)
}

func TestRunBuiltinRunsInProcessWithoutForking(t *testing.T) {
	var out, errBuf bytes.Buffer
	calls := 0
	builtins := fakeBuiltins{
		"greet": func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
			calls++
			io.WriteString(stdout, "hi "+strings.Join(args[1:], " ")+"\n")
			return 0
		},
	}
	e := newExecutor(t, &out, &errBuf, builtins)
	status := run(t, e, "greet world")
	assert.Equal(t, 0, status)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "hi world\n", out.String())
}

func TestRunBuiltinRedirectedToFile(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/builtin-out.txt"
	var out, errBuf bytes.Buffer
	builtins := fakeBuiltins{
		"shout": func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
			io.WriteString(stdout, "loud\n")
			return 0
		},
	}
	e := newExecutor(t, &out, &errBuf, builtins)
	status := run(t, e, "shout > "+path)
	assert.Equal(t, 0, status)
	assert.Empty(t, out.String())
	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "loud\n", string(contents))
}

func TestRunPipelineRejectsBuiltinStage(t *testing.T) {
	var out, errBuf bytes.Buffer
	builtins := fakeBuiltins{
		"greet": func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
			return 0
		},
	}
	e := newExecutor(t, &out, &errBuf, builtins)
	status := run(t, e, "greet | tr a-z A-Z")
	assert.Equal(t, 1, status)
	assert.Equal(t, "pipes only work with external commands\n", errBuf.String())
}

func TestRunBackgroundRejectsBuiltin(t *testing.T) {
	var out, errBuf bytes.Buffer
	builtins := fakeBuiltins{
		"greet": func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
			return 0
		},
	}
	e := newExecutor(t, &out, &errBuf, builtins)
	toks, err := token.Tokenize("greet &")
	require.NoError(t, err)
	seq, err := parse.Parse(toks)
	require.NoError(t, err)
	status, err := e.Run(seq)
	require.NoError(t, err)
	assert.Equal(t, 1, status)
	assert.Equal(t, "background jobs only work with external commands\n", errBuf.String())
}

func TestRunCaptureDoesNotLeakStateToOuterExecutor(t *testing.T) {
	var out, errBuf bytes.Buffer
	builtins := fakeBuiltins{
		"cd": func(e *Executor, args []string, stdout, stderr io.Writer, stdin io.Reader) int {
			if len(args) > 1 {
				e.State.SetCwd(args[1])
			}
			return 0
		},
	}
	e := newExecutor(t, &out, &errBuf, builtins)
	e.State.SetLastStatus(1)
	e.State.SetCwd("/outer")
	e.State.Set("FOO", "outer-value")

	output, err := e.RunCapture("cd /tmp; FOO=leaked; false")
	require.NoError(t, err)
	assert.Empty(t, output)

	assert.Equal(t, 1, e.State.LastStatus(), "the outer $? must survive a substitution's internal command")
	assert.Equal(t, "/outer", e.State.Cwd(), "a cd inside a substitution must not change the outer shell's directory")
	v, _ := e.State.Get("FOO")
	assert.Equal(t, "outer-value", v, "an assignment inside a substitution must not leak to the outer shell")
}

func TestRunCommandSubstitutionStillSeesItsOwnResult(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	output, err := e.RunCapture("echo captured")
	require.NoError(t, err)
	assert.Equal(t, "captured", output)
}

func TestRunHeredocReadsMultiLineBodyUntilDelimiter(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	e.Stdin = strings.NewReader("line one\nline two\nEOF\n")
	e.HeredocReader = heredoc.NewReader(e.Stdin)
	status := run(t, e, "cat <<EOF")
	assert.Equal(t, 0, status)
	assert.Equal(t, "line one\nline two\n", out.String())
}

func TestRunHeredocVsHereStringAreDistinctOperators(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	e.Stdin = strings.NewReader("body line\nEOF\n")
	e.HeredocReader = heredoc.NewReader(e.Stdin)
	status := run(t, e, "cat <<EOF")
	assert.Equal(t, 0, status)
	assert.Equal(t, "body line\n", out.String(),
		"<< must read lines from input until the delimiter, not treat it as a literal word")

	out.Reset()
	e2 := newExecutor(t, &out, &errBuf, nil)
	status = run(t, e2, "cat <<< EOF")
	assert.Equal(t, 0, status)
	assert.Equal(t, "EOF\n", out.String(), "<<< treats its one word as the literal body")
}

func TestRunHeredocMissingDelimiterErrors(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	e.Stdin = strings.NewReader("line one\nline two\n")
	e.HeredocReader = heredoc.NewReader(e.Stdin)
	toks, err := token.Tokenize("cat <<EOF")
	require.NoError(t, err)
	seq, err := parse.Parse(toks)
	require.NoError(t, err)
	_, err = e.Run(seq)
	assert.Error(t, err)
}

func TestRunUnknownCommandFails(t *testing.T) {
	var out, errBuf bytes.Buffer
	e := newExecutor(t, &out, &errBuf, nil)
	toks, err := token.Tokenize("this-command-does-not-exist-anywhere")
	require.NoError(t, err)
	seq, err := parse.Parse(toks)
	require.NoError(t, err)
	_, err = e.Run(seq)
	assert.Error(t, err)
}
