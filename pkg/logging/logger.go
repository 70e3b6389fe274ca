// Package logging wires up the hclog loggers the command line tools share.
// Output is human-oriented by default, with every line marked so tool logs
// stand apart from program output on the same terminal; AFPTOOL_JSON_LOG=1
// switches to line-delimited JSON for scripts.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
)

// Environment switches shared by every tool in this module.
const (
	EnvJSONLog  = "AFPTOOL_JSON_LOG"
	EnvLogLevel = "AFPTOOL_LOG_LEVEL"
)

const logPrefix = "🎸 "

// NewLogger builds a named logger at the given level. A nil output falls
// back to stderr. Timestamps are always UTC so logs from different machines
// line up.
func NewLogger(name, level string, output io.Writer) hclog.Logger {
	if output == nil {
		output = os.Stderr
	}
	json := os.Getenv(EnvJSONLog) == "1"
	if !json {
		output = NewPrefixWriter(logPrefix, output)
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       name,
		Level:      hclog.LevelFromString(level),
		JSONFormat: json,
		Output:     output,
		TimeFormat: "2006-01-02T15:04:05Z",
		TimeFn:     func() time.Time { return time.Now().UTC() },
	})
}

// GetLogLevel resolves the log level from the environment, quiet by default.
func GetLogLevel() string {
	if level := os.Getenv(EnvLogLevel); level != "" {
		return level
	}
	return "warn"
}
