package logger

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRotatingWriter(t *testing.T) {
	t.Run("creates the log file", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "vmpilot.log")

		w, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer w.Close()

		_, err = os.Stat(logFile)
		assert.NoError(t, err)
	})

	t.Run("creates missing parent directories", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "logs", "vmpilot.log")

		w, err := NewRotatingWriter(logFile, 10, 7, false)
		require.NoError(t, err)
		defer w.Close()

		_, err = os.Stat(filepath.Dir(logFile))
		assert.NoError(t, err)
	})
}

func TestRotatingWriterWrite(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "vmpilot.log")

	w, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer w.Close()

	data := []byte("turn complete\n")
	n, err := w.Write(data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "turn complete")
}

func TestRotatingWriterRotation(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "vmpilot.log")

	w, err := NewRotatingWriter(logFile, 1, 7, false)
	require.NoError(t, err)
	defer w.Close()
	w.maxBytes = 64

	first := make([]byte, 48)
	for i := range first {
		first[i] = 'a'
	}
	_, err = w.Write(first)
	require.NoError(t, err)

	// Pushes past the limit, so the first chunk is rotated out
	_, err = w.Write(first)
	require.NoError(t, err)

	rotated, err := filepath.Glob(filepath.Join(tmpDir, "vmpilot.log.*"))
	require.NoError(t, err)
	require.Len(t, rotated, 1)

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(first)), w.size)
	assert.Len(t, content, len(first))
}

func TestRotatingWriterPrune(t *testing.T) {
	tmpDir := t.TempDir()
	logFile := filepath.Join(tmpDir, "vmpilot.log")

	oldFile := logFile + ".20240101-120000"
	require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
	oldTime := time.Now().AddDate(0, 0, -10)
	require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

	freshFile := logFile + ".20990101-120000"
	require.NoError(t, os.WriteFile(freshFile, []byte("fresh"), 0o644))

	w, err := NewRotatingWriter(logFile, 10, 7, false)
	require.NoError(t, err)
	defer w.Close()

	w.prune()

	_, err = os.Stat(oldFile)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(freshFile)
	assert.NoError(t, err)
}

func TestCompressFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "vmpilot.log.20240101-120000")
	require.NoError(t, os.WriteFile(target, []byte("rotated output"), 0o644))

	require.NoError(t, compressFile(target))

	_, err := os.Stat(target + ".gz")
	assert.NoError(t, err)
	_, err = os.Stat(target)
	assert.True(t, os.IsNotExist(err))
}
