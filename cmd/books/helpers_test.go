package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-books/internal/common"
)

func TestParseDate(t *testing.T) {
	got, err := parseDate(" 2024-02-29 ")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), got)

	_, err = parseDate("02/29/2024")
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "expected YYYY-MM-DD")
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "abc", "0", "-3"} {
		_, err := parseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateFlagsAndPeriod(t *testing.T) {
	cmd := &cobra.Command{}
	cmd.Flags().String("from", "", "")
	cmd.Flags().String("to", "", "")
	cmd.Flags().String("as-of", "", "")

	from, err := dateFlag(cmd, "from")
	require.NoError(t, err)
	assert.Nil(t, from)

	require.NoError(t, cmd.Flags().Set("from", "2024-01-01"))
	require.NoError(t, cmd.Flags().Set("to", "2024-06-30"))
	start, end, err := period(cmd)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2024, 6, 30, 0, 0, 0, 0, time.UTC), end)

	now, err := asOf(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0, now.Hour())

	require.NoError(t, cmd.Flags().Set("as-of", "2024-03-15"))
	when, err := asOf(cmd)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), when)

	require.NoError(t, cmd.Flags().Set("to", "soon"))
	_, _, err = period(cmd)
	assert.Error(t, err)
}

func TestExpandFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"jan.ofx", "feb.qfx", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o600))
	}

	files, err := expandFiles([]string{dir})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "jan.ofx"), filepath.Join(dir, "feb.qfx")}, files)

	files, err = expandFiles([]string{filepath.Join(dir, "*.ofx"), filepath.Join(dir, "jan.ofx")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "jan.ofx")}, files)

	_, err = expandFiles([]string{filepath.Join(dir, "missing.ofx")})
	assert.Error(t, err)

	_, err = expandFiles([]string{t.TempDir()})
	assert.Error(t, err)
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "books dev\n", out.String())
}

func TestReadConfig(t *testing.T) {
	err := readConfig(viper.New(), filepath.Join(t.TempDir(), "absent.yaml"))
	require.ErrorIs(t, err, common.ErrMissingConfig)
	var userErr *common.UserError
	require.ErrorAs(t, err, &userErr)
	assert.Contains(t, userErr.UserMessage, "does not exist")

	path := filepath.Join(t.TempDir(), "books.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logging:\n  format: json\n"), 0600))
	v := viper.New()
	require.NoError(t, readConfig(v, path))
	assert.Equal(t, "json", v.GetString("logging.format"))
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	reportError(&buf, common.NewUserError(`invalid id "x"`, errors.New("strconv failure")))
	assert.Contains(t, buf.String(), `invalid id "x"`)
	assert.NotContains(t, buf.String(), "strconv failure")

	buf.Reset()
	reportError(&buf, fmt.Errorf("failed to open database: %w", errors.New("disk full")))
	assert.Contains(t, buf.String(), "failed to open database: disk full")
}
