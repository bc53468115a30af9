package errors

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vango-dev/reactor/pkg/portal"
	"github.com/vango-dev/reactor/pkg/reactor"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "arity mismatch",
			code:    "R001",
			wantMsg: "Dependency arity changed",
			wantCat: CategoryEffect,
		},
		{
			name:    "portal error",
			code:    "R003",
			wantMsg: "Portal target missing",
			wantCat: CategoryPortal,
		},
		{
			name:    "config error",
			code:    "R021",
			wantMsg: "Invalid configuration value",
			wantCat: CategoryConfig,
		},
		{
			name:    "unknown error code",
			code:    "R999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "flag %q is required", "--config")
	if err.Message != `flag "--config" is required` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Category != CategoryCLI {
		t.Errorf("Category = %q, want %q", err.Category, CategoryCLI)
	}
}

func TestReactorError_Error(t *testing.T) {
	err := New("R004")
	if got, want := err.Error(), "R004: Re-evaluation did not settle"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := New("R020").Wrap(fmt.Errorf("unexpected EOF"))
	if got, want := wrapped.Error(), "R020: Invalid configuration file: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	plain := &ReactorError{Message: "test error"}
	if plain.Error() != "test error" {
		t.Errorf("Error() = %q, want %q", plain.Error(), "test error")
	}
}

func TestReactorError_WithLocationFromError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reactor.yaml")
	content := "runtime:\n  maxTickIterations: 10\n  arityPolicy: [\nlog:\n  level: info\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	err := New("R020").WithLocationFromError(path, fmt.Errorf("yaml: line 3: did not find expected node content"))
	if err.Location == nil {
		t.Fatal("Location is nil")
	}
	if err.Location.Line != 3 {
		t.Errorf("Location.Line = %d, want 3", err.Location.Line)
	}
	if len(err.Context) == 0 {
		t.Error("Context should not be empty")
	}

	none := New("R020").WithLocationFromError(path, fmt.Errorf("unexpected EOF"))
	if none.Location != nil {
		t.Errorf("Location = %v, want nil", none.Location)
	}
}

func TestReactorError_Builders(t *testing.T) {
	err := New("R005").
		WithDetail("custom detail").
		WithSuggestion("declare hooks unconditionally").
		WithExample("n, setN := reactor.UseState(inst, 0)")

	if err.Detail != "custom detail" {
		t.Errorf("Detail = %q", err.Detail)
	}
	if err.Suggestion != "declare hooks unconditionally" {
		t.Errorf("Suggestion = %q", err.Suggestion)
	}
	if err.Example == "" {
		t.Error("Example should be set")
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "R007") != nil {
		t.Error("FromError(nil, ...) should return nil")
	}

	re := New("R007")
	if FromError(fmt.Errorf("wrapped: %w", re), "R010") != re {
		t.Error("FromError should return the ReactorError in the chain")
	}

	std := stderrors.New("test error")
	result := FromError(std, "R007")
	if result.Wrapped != std {
		t.Error("standard error should be wrapped")
	}
	if result.Code != "R007" {
		t.Errorf("Code = %q, want R007", result.Code)
	}
}

func TestDiagnose(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"arity", &reactor.ArityMismatchError{Prev: 1, Next: 2}, "R001"},
		{"unmounted", &reactor.UnmountedUpdateError{Instance: 4}, "R002"},
		{"portal", &portal.MissingTargetError{Key: "root-overlay"}, "R003"},
		{"runaway", &reactor.RunawayReevaluationError{Iterations: 100}, "R004"},
		{"joined", stderrors.Join(stderrors.New("other"), &reactor.HookOrderError{Kind: reactor.HookState}), "R005"},
		{"callback", &reactor.CallbackError{Phase: reactor.PhaseEffect, Err: stderrors.New("x")}, "R006"},
		{"uncoded", stderrors.New("plain"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Diagnose(tt.err)
			if d.Code != tt.wantCode {
				t.Errorf("Code = %q, want %q", d.Code, tt.wantCode)
			}
			if tt.wantCode != "" && !stderrors.Is(d, tt.err) {
				t.Error("diagnostic should wrap the original error")
			}
		})
	}

	if Diagnose(nil) != nil {
		t.Error("Diagnose(nil) should return nil")
	}
}

func TestLocation_String(t *testing.T) {
	tests := []struct {
		name string
		loc  *Location
		want string
	}{
		{"nil location", nil, ""},
		{"with column", &Location{File: "reactor.yaml", Line: 10, Column: 5}, "reactor.yaml:10:5"},
		{"without column", &Location{File: "reactor.yaml", Line: 10}, "reactor.yaml:10"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.loc.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("R004").
		Wrap(&reactor.RunawayReevaluationError{Iterations: 100, Instances: []reactor.InstanceID{3}}).
		WithExample("reactor.Effect(fn, deps.On(query))")

	formatted := err.Format()
	for _, want := range []string{
		"ERROR R004: Re-evaluation did not settle",
		"Cause: reactor: still dirty after 100 ticks",
		"Hint:",
		"Example:",
		"https://reactor.dev/docs/errors/R004",
	} {
		if !strings.Contains(formatted, want) {
			t.Errorf("Format() missing %q:\n%s", want, formatted)
		}
	}
	if strings.Contains(formatted, "\033[") {
		t.Error("Format() should not contain ANSI codes when colors are disabled")
	}
}

func TestFormatCompact(t *testing.T) {
	err := New("R022")
	err.Location = &Location{File: "reactor.json", Line: 1}
	if got, want := err.FormatCompact(), "reactor.json:1: R022: Configuration file not found"; got != want {
		t.Errorf("FormatCompact() = %q, want %q", got, want)
	}
}

func TestFormatJSON(t *testing.T) {
	err := New("R003").Wrap(&portal.MissingTargetError{Key: "root-backdrop"})
	got := err.FormatJSON()
	for _, want := range []string{`"code":"R003"`, `"category":"portal"`, `"cause":"portal: no target bound for key \"root-backdrop\""`} {
		if !strings.Contains(got, want) {
			t.Errorf("FormatJSON() = %s, missing %s", got, want)
		}
	}
}

func TestRegistry(t *testing.T) {
	codes := GetAllCodes()
	if len(codes) == 0 {
		t.Fatal("registry is empty")
	}
	for i := 1; i < len(codes); i++ {
		if codes[i-1] >= codes[i] {
			t.Fatalf("codes not sorted: %v", codes)
		}
	}
	for _, code := range codes {
		tmpl, ok := GetTemplate(code)
		if !ok || tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("template %s incomplete: %+v", code, tmpl)
		}
	}

	Register("R099", ErrorTemplate{Category: CategoryRuntime, Message: "custom"})
	defer delete(registry, "R099")
	if New("R099").Message != "custom" {
		t.Error("registered template not used")
	}
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five six seven", 10)
	for _, l := range lines {
		if len(l) > 10 {
			t.Errorf("line %q longer than 10", l)
		}
	}
	if wrapText("", 10) != nil {
		t.Error("empty text should produce no lines")
	}
}
