// Package validate implements the Validator: syntax-only checks, native
// in-process for Go (the only language this Go service ships a parser for),
// and via a short-lived hardened sandbox for every language whose spec
// declares a SyntaxOnlyCommand. Languages without one are not checked.
package validate

import (
	"context"
	"fmt"
	"go/parser"
	"go/token"
	"time"

	"github.com/google/uuid"

	"execcore/internal/archive"
	"execcore/internal/prepare"
	"execcore/internal/registry"
	"execcore/internal/sandbox"
)

// syntaxOnlyTimeout and syntaxOnlyMemory are the fixed ceiling for
// compiled-language validation sandboxes, independent of and tighter than a
// normal execution's resource request.
const (
	syntaxOnlyTimeout = 10 * time.Second
	syntaxOnlyMemory  = 64 * 1024 * 1024
)

// Result is the outcome of a Validate call.
type Result struct {
	Valid bool
	Error string
}

// MetricsSink is the subset of internal/metrics.Metrics the Validator
// reports to. Optional: nil is valid and simply skips reporting.
type MetricsSink interface {
	ObserveValidation(language, result string)
}

// Validator checks source syntax without running user code to completion.
type Validator struct {
	registry *registry.Registry
	manager  *sandbox.Manager
	metrics  MetricsSink
}

// New returns a Validator backed by reg for language lookups and mgr for
// spinning syntax-check sandboxes. m may be nil.
func New(reg *registry.Registry, mgr *sandbox.Manager, m MetricsSink) *Validator {
	return &Validator{registry: reg, manager: mgr, metrics: m}
}

// Validate checks source against the named language's syntax rules.
func (v *Validator) Validate(ctx context.Context, source, language string) (Result, error) {
	spec, err := v.registry.Lookup(language)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if spec.ID == "go" {
		res = validateGoNative(source)
	} else {
		res, err = v.validateInSandbox(ctx, source, spec)
		if err != nil {
			return res, err
		}
	}

	if v.metrics != nil {
		result := "valid"
		if !res.Valid {
			result = "invalid"
		}
		v.metrics.ObserveValidation(spec.ID, result)
	}
	return res, nil
}

// validateGoNative parses source with go/parser, since the only parser this
// service's own standard library ships is for Go itself.
func validateGoNative(source string) Result {
	content, _ := prepare.Prepare(source, registry.LanguageSpec{ID: "go"})
	fset := token.NewFileSet()
	if _, err := parser.ParseFile(fset, "main.go", content, parser.AllErrors); err != nil {
		return Result{Valid: false, Error: err.Error()}
	}
	return Result{Valid: true}
}

// validateInSandbox runs the language's syntax-only compiler invocation
// (gcc -fsyntax-only, javac, etc.) inside a short-lived, tightly capped
// sandbox, driven by LanguageSpec.SyntaxOnlyCommand.
func (v *Validator) validateInSandbox(ctx context.Context, source string, spec registry.LanguageSpec) (Result, error) {
	if len(spec.SyntaxOnlyCommand) == 0 {
		// No syntax check is wired for this language (currently csharp);
		// it is reported valid without spinning a sandbox, so syntax errors
		// only surface when the code is executed.
		return Result{Valid: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, syntaxOnlyTimeout)
	defer cancel()

	execID := "validate-" + randomSuffix()
	sb, err := v.manager.Create(ctx, sandbox.CreateOptions{
		ExecutionID: execID,
		Spec:        spec,
		Timeout:     syntaxOnlyTimeout,
		MemoryBytes: syntaxOnlyMemory,
	})
	if err != nil {
		return Result{}, fmt.Errorf("validate: create sandbox: %w", err)
	}
	defer v.manager.Cleanup(sb.ExecutionID)

	content, fileName := prepare.Prepare(source, spec)
	tarBytes, err := archive.Single(fileName, content)
	if err != nil {
		return Result{}, fmt.Errorf("validate: build archive: %w", err)
	}
	if err := v.manager.CopyArchive(ctx, sb.ExecutionID, tarBytes); err != nil {
		return Result{}, fmt.Errorf("validate: inject source: %w", err)
	}

	cmd := registry.Render(spec.SyntaxOnlyCommand, fileName)
	step, err := v.manager.RunStep(ctx, sb.ExecutionID, cmd)
	if err != nil {
		return Result{}, fmt.Errorf("validate: run syntax check: %w", err)
	}

	if step.ExitCode == 0 {
		return Result{Valid: true}, nil
	}
	return Result{Valid: false, Error: string(step.Output)}, nil
}

// randomSuffix gives each validation sandbox a unique, short execution ID
// distinct from real executions' IDs.
func randomSuffix() string {
	return uuid.New().String()[:8]
}
