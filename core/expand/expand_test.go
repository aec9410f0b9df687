package expand

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"minishell/core/token"
)

type fakeEnv map[string]string

func (f fakeEnv) Get(name string) (string, bool) {
	v, ok := f[name]
	return v, ok
}

type fakeRunner struct {
	out string
	err error
}

func (f fakeRunner) RunCapture(line string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.out, nil
}

func newCtx(env fakeEnv, runner CommandRunner) *Context {
	return &Context{
		Env:        env,
		LastStatus: 0,
		Positional: []string{"minishell"},
		Pid:        4242,
		Runner:     runner,
	}
}

func tokenize(t *testing.T, s string) string {
	t.Helper()
	toks, err := token.Tokenize(s)
	require.NoError(t, err)
	require.Len(t, toks, 1)
	return toks[0].Text
}

func TestExpandPlainWordUnchanged(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	words, err := Word(tokenize(t, "hello"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"hello"}, words)
}

func TestExpandBareVariable(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "bar"}, nil)
	words, err := Word(tokenize(t, "$FOO"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"bar"}, words)
}

func TestExpandVariableInsideDoubleQuotes(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "bar baz"}, nil)
	words, err := Word(tokenize(t, `"prefix-$FOO-suffix"`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"prefix-bar baz-suffix"}, words)
}

func TestExpandBracedVariableWithFallback(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	words, err := Word(tokenize(t, "${MISSING:-default}"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"default"}, words)

	ctx2 := newCtx(fakeEnv{"PRESENT": "value"}, nil)
	words2, err := Word(tokenize(t, "${PRESENT:-default}"), ctx2)
	require.NoError(t, err)
	assert.Equal(t, []string{"value"}, words2)
}

func TestExpandExitStatusAndPid(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	ctx.LastStatus = 7
	words, err := Word(tokenize(t, "$?"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"7"}, words)

	words, err = Word(tokenize(t, "$$"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"4242"}, words)
}

func TestExpandPositional(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	ctx.Positional = []string{"minishell", "a", "b"}
	words, err := Word(tokenize(t, "$1-$2-$#"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a-b-2"}, words)
}

func TestExpandCommandSubstitution(t *testing.T) {
	ctx := newCtx(fakeEnv{}, fakeRunner{out: "captured"})
	words, err := Word(tokenize(t, "$(echo hi)"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"captured"}, words)
}

func TestExpandCommandSubstitutionError(t *testing.T) {
	ctx := newCtx(fakeEnv{}, fakeRunner{err: fmt.Errorf("boom")})
	_, err := Word(tokenize(t, "$(false)"), ctx)
	require.Error(t, err)
}

func TestExpandSingleQuotedLiteralDollar(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "bar"}, nil)
	words, err := Word(tokenize(t, `'$FOO'`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"$FOO"}, words)
}

func TestExpandTildeHome(t *testing.T) {
	ctx := newCtx(fakeEnv{"HOME": "/home/tester"}, nil)
	words, err := Word(tokenize(t, "~/docs"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/home/tester/docs"}, words)
}

func TestExpandTildeMidWordNotExpanded(t *testing.T) {
	ctx := newCtx(fakeEnv{"HOME": "/home/tester"}, nil)
	words, err := Word(tokenize(t, "a~b"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a~b"}, words)
}

func TestExpandGlobMatches(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.txt", "b.txt", "c.log"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ctx := newCtx(fakeEnv{}, nil)
	words, err := Word(tokenize(t, "*.txt"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt", "b.txt"}, words)
}

func TestExpandGlobNoMatchPassesThroughLiteral(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ctx := newCtx(fakeEnv{}, nil)
	words, err := Word(tokenize(t, "*.nope"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.nope"}, words)
}

func TestExpandGlobFailglobErrorsOnNoMatch(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	ctx := newCtx(fakeEnv{}, nil)
	ctx.FailGlob = true
	_, err = Word(tokenize(t, "*.nope"), ctx)
	require.Error(t, err)
}

func TestExpandQuotedGlobNotExpanded(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	words, err := Word(tokenize(t, `"*.txt"`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"*.txt"}, words)
}

func literals(toks []token.Token) []string {
	out := make([]string, len(toks))
	for i, t := range toks {
		out[i] = t.Literal()
	}
	return out
}

func TestExpandAliasLineHeadOnly(t *testing.T) {
	aliases := map[string]string{"ll": "ls -la"}
	out, err := ExpandAliasLine("ll /tmp", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "-la", "/tmp"}, literals(out))
}

func TestExpandAliasLineChain(t *testing.T) {
	aliases := map[string]string{"ll": "la -x", "la": "ls -a"}
	out, err := ExpandAliasLine("ll /tmp", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "-a", "-x", "/tmp"}, literals(out))
}

func TestExpandAliasLineCycleDetected(t *testing.T) {
	aliases := map[string]string{"a": "b", "b": "a"}
	_, err := ExpandAliasLine("a", aliases)
	require.Error(t, err)
}

func TestExpandAliasLineNoMatch(t *testing.T) {
	out, err := ExpandAliasLine("echo hi", map[string]string{"ll": "ls -la"})
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "hi"}, literals(out))
}

func TestExpandAliasLineExpandsAfterSequenceConnector(t *testing.T) {
	aliases := map[string]string{"ll": "ls -la"}
	out, err := ExpandAliasLine("true && ll", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"true", "&&", "ls", "-la"}, literals(out))
}

func TestExpandAliasLineExpandsWithoutSpaceAroundConnector(t *testing.T) {
	aliases := map[string]string{"ll": "ls -la"}
	out, err := ExpandAliasLine("true&&ll", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"true", "&&", "ls", "-la"}, literals(out))
}

func TestExpandAliasLineAppliesPerSegmentAcrossSemicolons(t *testing.T) {
	aliases := map[string]string{"ll": "ls -la", "pwd": "pwd -P"}
	out, err := ExpandAliasLine("ll; pwd", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"ls", "-la", ";", "pwd", "-P"}, literals(out))
}

func TestExpandAliasLineDoesNotReachPastPipe(t *testing.T) {
	aliases := map[string]string{"ll": "ls -la"}
	out, err := ExpandAliasLine("true | ll", aliases)
	require.NoError(t, err)
	assert.Equal(t, []string{"true", "|", "ll"}, literals(out))
}

func TestExpandFieldSplitsUnquotedSubstitution(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "a b  c"}, nil)
	words, err := Word(tokenize(t, "$FOO"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, words)
}

func TestExpandFieldSplitDoesNotAffectQuoted(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "a b c"}, nil)
	words, err := Word(tokenize(t, `"$FOO"`), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a b c"}, words)
}

func TestExpandEmptyUnquotedVariableVanishes(t *testing.T) {
	ctx := newCtx(fakeEnv{"EMPTY": ""}, nil)
	words, err := Word(tokenize(t, "$EMPTY"), ctx)
	require.NoError(t, err)
	assert.Empty(t, words)
}

func TestExpandCustomIFS(t *testing.T) {
	ctx := newCtx(fakeEnv{"FOO": "a:b:c", "IFS": ":"}, nil)
	words, err := Word(tokenize(t, "$FOO"), ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, words)
}

func FuzzWordNeverPanics(f *testing.F) {
	seeds := []string{
		"hello",
		"$FOO",
		`"prefix-$FOO-suffix"`,
		"${MISSING:-default}",
		"$1-$2-$#",
		"$(echo hi)",
		"'$FOO'",
		"~/docs",
		"*.txt",
	}
	for _, s := range seeds {
		f.Add(s)
	}
	ctx := newCtx(fakeEnv{"FOO": "bar baz", "HOME": "/home/tester"}, fakeRunner{out: "captured"})
	f.Fuzz(func(t *testing.T, marked string) {
		toks, err := token.Tokenize(marked)
		if err != nil || len(toks) != 1 {
			return
		}
		_, _ = Word(toks[0].Text, ctx)
	})
}

func TestExpandValueNoGlob(t *testing.T) {
	ctx := newCtx(fakeEnv{}, nil)
	v, err := Value(tokenize(t, "*.txt"), ctx)
	require.NoError(t, err)
	assert.Equal(t, "*.txt", v)
}
