package typerunner

import (
	"github.com/tsvm/typerunner/internal/typerunner/ast"
	"github.com/tsvm/typerunner/internal/typerunner/compiler"
	"github.com/tsvm/typerunner/internal/typerunner/vm"
)

// CompileSourceFile lowers a parsed source file into a Module, ready to
// Run. A returned error is always a compiler invariant violation
// (ErrCompile) — unresolved references and failed assignability checks
// never abort compilation; they surface later as Diagnostics once the
// Module runs.
func CompileSourceFile(file *ast.SourceFile) (*Module, error) {
	m, err := compiler.CompileSourceFile(file)
	if err != nil {
		return nil, &CheckError{Code: ErrCompile, Message: "compile failed", Cause: err}
	}
	return m, nil
}

// Run executes module's main subroutine to completion and returns the
// Diagnostics produced. A returned error is always a VM invariant
// violation (ErrExecution), never a user-facing type error.
func Run(module *Module) (*Result, error) {
	v := vm.New(module)
	if err := v.Run(); err != nil {
		return nil, &CheckError{Code: ErrExecution, Message: "execution failed", Cause: err}
	}
	return &Result{Module: module, Diagnostics: module.Diagnostics}, nil
}

// Check compiles file and runs it in one step, the common case for a
// one-shot type check.
func Check(file *ast.SourceFile) (*Result, error) {
	module, err := CompileSourceFile(file)
	if err != nil {
		return nil, err
	}
	return Run(module)
}

// Clear empties a Module's cached subroutine results, narrowings, and
// accumulated Diagnostics, so it can be run again from a clean slate
// without recompiling.
func Clear(module *Module) {
	module.Clear()
}
