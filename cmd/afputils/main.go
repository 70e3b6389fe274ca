package main

import (
	"fmt"
	"os"
	"runtime/debug"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"
	"github.com/wz18207/bemaniutils-gfdm/pkg"
	"github.com/wz18207/bemaniutils-gfdm/pkg/afp/txp2"
	"github.com/wz18207/bemaniutils-gfdm/pkg/codec"
	"github.com/wz18207/bemaniutils-gfdm/pkg/logging"
)

const version = "0.1.0"

var (
	logLevel  string
	jsonLog   bool
	codecName string

	logger hclog.Logger
	ranCmd bool
)

var rootCmd = &cobra.Command{
	Use:   "afputils",
	Short: "Inspect and rewrite TXP2 asset containers",
	Long: `afputils reads TXP2 asset containers and dumps their textures,
timelines and bytecode, or writes edited containers back out.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		ranCmd = true
		if jsonLog {
			os.Setenv(logging.EnvJSONLog, "1")
		}
		level := logLevel
		if level == "" {
			level = logging.GetLogLevel()
		}
		logger = logging.NewLogger("afputils", level, nil)
	},
}

// buildTimestamp resolves when this binary was built: the vcs commit time
// stamped into the build info when available, the executable's mtime
// otherwise.
func buildTimestamp() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key != "vcs.time" {
				continue
			}
			if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
				return t.UTC().Format(time.RFC3339)
			}
		}
	}
	if exe, err := os.Executable(); err == nil {
		if stat, err := os.Stat(exe); err == nil {
			return stat.ModTime().UTC().Format(time.RFC3339)
		}
	}
	return time.Now().UTC().Format(time.RFC3339)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&jsonLog, "json-log", false, "Emit logs as JSON")
	rootCmd.PersistentFlags().StringVar(&codecName, "codec", "stored",
		fmt.Sprintf("Texture payload codec (%s, or empty for none)", strings.Join(codec.Names(), ", ")))

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("afputils %s\n", version)
			fmt.Printf("Built: %s\n", buildTimestamp())
		},
	})
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if !ranCmd {
			// Cobra bailed before PersistentPreRun: bad flags or an
			// unknown subcommand rather than an operational failure.
			os.Exit(2)
		}
		os.Exit(1)
	}
}

func containerOptions() pkg.ContainerOptions {
	return pkg.ContainerOptions{
		Logger:    logger,
		CodecName: codecName,
	}
}

func openContainer(path string) (*txp2.File, error) {
	return pkg.OpenContainer(path, containerOptions())
}
