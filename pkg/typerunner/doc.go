// Package typerunner provides a structural type checker for a
// TypeScript-like type language: a compiler that lowers a parsed source
// file into a compact bytecode Module, and a VM that runs that Module to
// produce Diagnostics.
//
// # Quick Start
//
// Compiling a source file's AST and running it:
//
//	file := ast.NewSourceFile(0, len(src), statements)
//	result, err := typerunner.Check(file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	for _, d := range result.Diagnostics {
//	    fmt.Printf("%d-%d: %s\n", d.SourcePos, d.SourceEnd, d.Message)
//	}
//
// Reusing a compiled Module across multiple runs (clearing cached
// subroutine results and diagnostics between them):
//
//	module, err := typerunner.CompileSourceFile(file)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := typerunner.Run(module)
//	typerunner.Clear(module)
//	result, err = typerunner.Run(module) // re-executes from a clean cache
//
// # Architecture
//
// typerunner uses a two-stage pipeline:
//
//   - pkg/typerunner/: Public API (this package)
//   - internal/typerunner/: Private implementation (not importable)
//
// The public API provides stable interfaces for:
//   - compiling an AST into a Module
//   - running a Module and collecting Diagnostics
//   - clearing a Module's runtime caches for reuse
//
// Implementation details in internal/ can be refactored without breaking
// the public API.
package typerunner
