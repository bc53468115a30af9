package main

import (
	"fmt"

	"github.com/vango-dev/reactor/internal/errors"
)

// Diagnostic output formats accepted by --error-format and explain --format.
const (
	formatText    = "text"
	formatCompact = "compact"
	formatJSON    = "json"
)

func checkFormat(format string) error {
	switch format {
	case formatText, formatCompact, formatJSON:
		return nil
	}
	return fmt.Errorf("unknown format %q (want text, compact or json)", format)
}

// formatDiagnostic renders e in format. Compact and JSON output is one line
// terminated by a newline.
func formatDiagnostic(e *errors.ReactorError, format string) string {
	switch format {
	case formatCompact:
		return e.FormatCompact() + "\n"
	case formatJSON:
		return e.FormatJSON() + "\n"
	default:
		return e.Format()
	}
}
