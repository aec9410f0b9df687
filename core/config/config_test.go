package config

import (
	"io"
	"log"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	cfg, err := Load(fs, "/home/user")
	require.NoError(t, err)
	assert.Empty(t, cfg.Aliases)
	assert.Empty(t, cfg.Exports)
	assert.Empty(t, cfg.PromptTemplate)
}

func TestLoadParsesAliasAndExport(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", `
alias ll='ls -la'
export EDITOR=vim
`)
	cfg, err := Load(fs, "/home/user")
	require.NoError(t, err)
	assert.Equal(t, "ls -la", cfg.Aliases["ll"])
	assert.Equal(t, "vim", cfg.Exports["EDITOR"])
}

func TestLoadParsesPromptAndTheme(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", `
prompt = {cwd}{status?} $
prompt_theme = color
`)
	cfg, err := Load(fs, "/home/user")
	require.NoError(t, err)
	assert.Equal(t, "{cwd}{status?} $", cfg.PromptTemplate)
	assert.Equal(t, "color", cfg.PromptTheme)
}

func TestLoadParsesFailglob(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", "failglob = true\n")
	cfg, err := Load(fs, "/home/user")
	require.NoError(t, err)
	assert.True(t, cfg.FailGlob)
}

func TestLoadSkipsCommentsAndBlankLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", "\n# a comment\n\nalias x='y'\n")
	cfg, err := Load(fs, "/home/user")
	require.NoError(t, err)
	assert.Equal(t, "y", cfg.Aliases["x"])
}

func TestLoadUnknownThemeErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", "prompt_theme = nonexistent\n")
	_, err := Load(fs, "/home/user")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown theme")
}

func TestLoadUnknownDirectiveErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeRc(t, fs, "/home/user", "bogus foo\n")
	_, err := Load(fs, "/home/user")
	require.Error(t, err)
}

func TestInitializeWritesDefaultOnce(t *testing.T) {
	fs := afero.NewMemMapFs()
	logger := log.New(io.Discard, "", 0)

	require.NoError(t, Initialize(fs, "/home/user", logger))
	first, err := afero.ReadFile(fs, "/home/user/"+FileName)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	require.NoError(t, afero.WriteFile(fs, "/home/user/"+FileName, []byte("alias x='y'\n"), 0o644))
	require.NoError(t, Initialize(fs, "/home/user", logger))
	second, err := afero.ReadFile(fs, "/home/user/"+FileName)
	require.NoError(t, err)
	assert.Equal(t, "alias x='y'\n", string(second))
}

func writeRc(t *testing.T, fs afero.Fs, dir, contents string) {
	t.Helper()
	require.NoError(t, afero.WriteFile(fs, dir+"/"+FileName, []byte(contents), 0o644))
}
