package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/reactor/internal/errors"
)

// errorFormat selects how a failed command's error is printed.
var errorFormat = formatText

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		if errorFormat == formatText {
			errors.PrintError(err)
		} else {
			fmt.Fprint(os.Stderr, formatDiagnostic(errors.Diagnose(err), errorFormat))
		}
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "reactor",
		Short: "A deterministic state and effect runtime",
		Long: `Reactor runs evaluable instances against committed state.

Updates are batched into ticks, dependency-gated effects run after
commit with their cleanups, and portal markers route output to
named targets.

  • demo     run scripted scenarios and print their logs
  • serve    run a scenario with devtools, metrics and tracing
  • bench    measure tick latency
  • explain  describe diagnostic codes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return checkFormat(errorFormat)
		},
	}
	root.PersistentFlags().StringVar(&errorFormat, "error-format", formatText, "Error output: text, compact or json")

	root.AddCommand(
		demoCmd(),
		serveCmd(),
		benchCmd(),
		explainCmd(),
		versionCmd(),
	)
	return root
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	warnTo(os.Stdout, format, args...)
}

func warnTo(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
