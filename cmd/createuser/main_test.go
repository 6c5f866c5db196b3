package main

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Girirajbhatt/careerhub/internal/domain"
)

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs([]string{"-handle", "Ops@CareerHub.dev"}, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "Ops@CareerHub.dev", opts.handle)
	assert.Equal(t, "Ops", opts.displayName)
	assert.Equal(t, domain.RoleAdmin, opts.role)
}

func TestParseArgs_ExplicitRole(t *testing.T) {
	opts, err := parseArgs([]string{"-handle", "r@x.io", "-name", "Recruiter", "-role", "Recruiter"}, io.Discard)

	require.NoError(t, err)
	assert.Equal(t, domain.RoleRecruiter, opts.role)
	assert.Equal(t, "Recruiter", opts.displayName)
}

func TestParseArgs_Errors(t *testing.T) {
	tests := map[string][]string{
		"missing handle": {},
		"unknown role":   {"-handle", "a@b.io", "-role", "root"},
		"unknown flag":   {"-handle", "a@b.io", "-force"},
	}

	for name, args := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := parseArgs(args, io.Discard)
			assert.Error(t, err)
		})
	}
}

func pipedStdin(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestReadPassword_EnvWins(t *testing.T) {
	pw, err := readPassword("FromEnv123", pipedStdin(t, "FromStdin123\n"), io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "FromEnv123", pw)
}

func TestReadPassword_FirstLineOfStdin(t *testing.T) {
	pw, err := readPassword("", pipedStdin(t, "FromStdin123\r\nignored\n"), io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "FromStdin123", pw)
}

func TestReadPassword_NoTrailingNewline(t *testing.T) {
	pw, err := readPassword("", pipedStdin(t, "Secret123"), io.Discard)

	require.NoError(t, err)
	assert.Equal(t, "Secret123", pw)
}

func TestReadPassword_Empty(t *testing.T) {
	_, err := readPassword("", pipedStdin(t, ""), io.Discard)

	assert.ErrorIs(t, err, errNoPassword)
}

func TestFirstLine_KeepsInnerSpaces(t *testing.T) {
	pw, err := firstLine(strings.NewReader(" two words \n"))

	require.NoError(t, err)
	assert.Equal(t, " two words ", pw)
}
