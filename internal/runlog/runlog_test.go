package runlog

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2024, 3, 7, 14, 5, 9, 0, time.UTC)
}

func TestAppend_FormatsTimestamp(t *testing.T) {
	buf := &bytes.Buffer{}
	l := New(buf, WithClock(fixedClock))

	require.NoError(t, l.Append("Process started"))
	require.NoError(t, l.Append("Process complete"))

	assert.Equal(t,
		"07/03/2024 14:05:09 : Process started\n07/03/2024 14:05:09 : Process complete\n",
		buf.String())
}

func TestOpen_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", FileName("", "analyst"))

	l, err := Open(path, false, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, l.Append("first"))
	require.NoError(t, l.Close())

	l, err = Open(path, false, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, l.Append("second"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "first")
	assert.Contains(t, string(data), "second")
}

func TestOpen_ClearTruncates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.log")
	require.NoError(t, os.WriteFile(path, []byte("old content\n"), 0644))

	l, err := Open(path, true, WithClock(fixedClock))
	require.NoError(t, err)
	require.NoError(t, l.Append("fresh"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "old content")
	assert.Equal(t, "07/03/2024 14:05:09 : fresh\n", string(data))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, filepath.Join("logs", "DataSelector_jsmith.log"), FileName("logs", "jsmith"))
}

func TestClose_Idempotent(t *testing.T) {
	l, err := Open(filepath.Join(t.TempDir(), "x.log"), false)
	require.NoError(t, err)
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())
}
