package typerunner

import (
	"github.com/tsvm/typerunner/internal/typerunner/module"
)

// Module is the compiled, re-runnable form of a source file. It is safe to
// Run the same Module repeatedly; call Clear between runs that should not
// see a previous run's cached subroutine results.
type Module = module.Module

// Diagnostic is a single reported type error, resolved to a byte range in
// the original source text.
type Diagnostic = module.Diagnostic

// Result is the outcome of running a Module to completion.
type Result struct {
	Module      *Module
	Diagnostics []Diagnostic
}
