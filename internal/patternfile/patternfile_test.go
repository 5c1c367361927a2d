package patternfile

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	lines, err := Parse(strings.NewReader("abc\r\n\nxyz\n  \nq.*\nabc\n(?i)ubuntu \\d+"))
	require.NoError(t, err)
	assert.Equal(t, []string{"abc", "xyz", "q.*", `(?i)ubuntu \d+`}, lines)
}

func TestParse_KeepsSignificantSpaces(t *testing.T) {
	lines, err := Parse(strings.NewReader(" 1080p \n"))
	require.NoError(t, err)
	assert.Equal(t, []string{" 1080p "}, lines)
}

func TestDesired(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patterns.txt")
	require.NoError(t, os.WriteFile(path, []byte("foo\nfoobar\n"), 0o644))

	lines, err := New(path).Desired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"foo", "foobar"}, lines)

	_, err = New(filepath.Join(t.TempDir(), "missing.txt")).Desired(context.Background())
	assert.ErrorContains(t, err, "open pattern list")
}
