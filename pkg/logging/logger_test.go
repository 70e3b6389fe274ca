package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrefixWriterLines(t *testing.T) {
	var out bytes.Buffer
	w := NewPrefixWriter("> ", &out)

	n, err := w.Write([]byte("one\ntwo\n"))
	require.NoError(t, err)
	require.Equal(t, 8, n)
	require.Equal(t, "> one\n> two\n", out.String())
}

func TestPrefixWriterBuffersFragments(t *testing.T) {
	var out bytes.Buffer
	w := NewPrefixWriter("> ", &out)

	_, err := w.Write([]byte("par"))
	require.NoError(t, err)
	require.Equal(t, "", out.String())

	_, err = w.Write([]byte("tial\n"))
	require.NoError(t, err)
	require.Equal(t, "> partial\n", out.String())
}

func TestGetLogLevel(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	require.Equal(t, "warn", GetLogLevel())

	t.Setenv(EnvLogLevel, "debug")
	require.Equal(t, "debug", GetLogLevel())
}

func TestNewLoggerPrefixesOutput(t *testing.T) {
	t.Setenv(EnvJSONLog, "")

	var out bytes.Buffer
	logger := NewLogger("logging_test", "info", &out)
	logger.Info("hello")

	require.Contains(t, out.String(), "🎸 ")
	require.Contains(t, out.String(), "hello")
}
