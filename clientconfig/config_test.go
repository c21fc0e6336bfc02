package clientconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRecognizedKeysAndComments(t *testing.T) {
	raw := "# a comment\n\npower = 13\nlevel=10\nextra = ignored\n"
	cfg, err := Parse(strings.NewReader(raw))
	require.NoError(t, err)
	require.Equal(t, 13, cfg.Power)
	require.Equal(t, 10, cfg.Level)
	require.Equal(t, "ignored", cfg.Raw["extra"])
}

func TestParseMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("not-a-kv-line\n"))
	require.Error(t, err)
}

func TestParseBadIntValue(t *testing.T) {
	_, err := Parse(strings.NewReader("power = abc\n"))
	require.Error(t, err)
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.cfg")
	require.NoError(t, os.WriteFile(path, []byte("power = 14\nlevel = 8\n"), 0o644))

	cfg, err := ParseFile(path)
	require.NoError(t, err)
	require.Equal(t, 14, cfg.Power)
	require.Equal(t, 8, cfg.Level)
}

func TestParseFileMissing(t *testing.T) {
	_, err := ParseFile("/nonexistent/path/client.cfg")
	require.Error(t, err)
}
