package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/vango-dev/reactor/internal/errors"
)

func explainCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "explain [code]",
		Short: "Describe diagnostic codes",
		Long: `Without arguments, list every registered diagnostic code.
With a code, print its full description.

Examples:
  reactor explain
  reactor explain R004
  reactor explain --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				if format != formatText {
					for _, code := range errors.GetAllCodes() {
						fmt.Fprint(out, formatDiagnostic(errors.New(code), format))
					}
					return nil
				}
				tbl := table.NewWriter()
				tbl.SetOutputMirror(out)
				tbl.AppendHeader(table.Row{"code", "category", "message"})
				for _, code := range errors.GetAllCodes() {
					t, _ := errors.GetTemplate(code)
					tbl.AppendRow(table.Row{code, t.Category, t.Message})
				}
				tbl.Render()
				return nil
			}

			code := strings.ToUpper(args[0])
			if _, ok := errors.GetTemplate(code); !ok {
				return fmt.Errorf("unknown diagnostic code %q", args[0])
			}
			errors.DisableColors()
			fmt.Fprint(out, formatDiagnostic(errors.New(code), format))
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", formatText, "Output format: text, compact or json")

	return cmd
}
