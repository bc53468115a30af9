package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vango-dev/reactor/internal/errors"
	"github.com/vango-dev/reactor/pkg/reactor"
)

func demoCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "demo [name]",
		Short: "Run scripted scenarios",
		Long: `Run a scripted scenario on a fresh runtime and print every
commit, effect and cleanup as it happens.

Scenarios:
` + scenarioHelp() + `
Examples:
  reactor demo
  reactor demo counter
  reactor demo debounce --config reactor.yaml`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: append(scenarioNames(), "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := "all"
			if len(args) == 1 {
				name = args[0]
			}

			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			rc, err := cfg.Reactor()
			if err != nil {
				return err
			}
			logger := cfg.NewLogger(cmd.ErrOrStderr())

			selected := scenarios
			if name != "all" {
				s, ok := findScenario(name)
				if !ok {
					return errors.New("R040").
						WithDetail(fmt.Sprintf("No demo named %q.", name)).
						WithSuggestion("Run one of: " + strings.Join(append(scenarioNames(), "all"), ", ") + ".")
				}
				selected = []scenario{s}
			}

			out := cmd.OutOrStdout()
			for _, s := range selected {
				fmt.Fprintf(out, "\n== %s: %s\n", s.name, s.description)
				err := s.run(cmd.Context(), out,
					reactor.WithConfig(rc),
					reactor.WithLogger(logger.With("demo", s.name)),
				)
				if err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file (default: reactor.json or reactor.yaml in the working directory)")

	return cmd
}

func scenarioHelp() string {
	var b strings.Builder
	for _, s := range scenarios {
		fmt.Fprintf(&b, "  %-10s %s\n", s.name, s.description)
	}
	fmt.Fprintf(&b, "  %-10s %s\n", "all", "every scenario in order")
	return b.String()
}
