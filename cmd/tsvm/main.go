// Command tsvm is the minimal driver around the compiler/VM pipeline: a
// `compile` subcommand that lowers an AST JSON document into a Module
// binary, and a `run` subcommand that executes a Module binary and reports
// its diagnostics as JSON. Grounded on the teacher's cmd/vybium-vm-prover
// (stdin/stdout pipeline shape, logStderr-style progress reporting) but
// built on cobra + logrus rather than bufio/fmt.Fprintln, since this
// module's surface — an AST in, Diagnostics out — needs real subcommands
// and flags rather than one fixed stdin protocol.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/xlab/treeprint"

	"github.com/tsvm/typerunner/internal/typerunner/module"
	"github.com/tsvm/typerunner/pkg/typerunner"
)

var log = logrus.New()

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "tsvm",
		Short: "Structural type checker compiler and VM",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.SetOutput(os.Stderr)
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			} else {
				log.SetLevel(logrus.InfoLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newCompileCommand(), newRunCommand())
	return root
}

func newCompileCommand() *cobra.Command {
	var source, out string
	var dumpSections bool

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile an AST JSON document into a Module binary",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("reading source: %w", err)
			}

			log.WithField("source", source).Info("parsing ast json")
			file, err := decodeSourceFile(data)
			if err != nil {
				return err
			}

			log.Info("compiling")
			m, err := typerunner.CompileSourceFile(file)
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"module": m.ID, "subroutines": len(m.Subroutines)}).Info("compiled")

			if dumpSections {
				fmt.Fprintln(os.Stderr, dumpModuleTree(m))
			}

			if err := os.WriteFile(out, m.Bin, 0o644); err != nil {
				return fmt.Errorf("writing module: %w", err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "path to an AST JSON document")
	cmd.Flags().StringVar(&out, "out", "", "path to write the compiled Module binary")
	cmd.Flags().BoolVar(&dumpSections, "dump-module", false, "print the compiled Module's subroutine table to stderr")
	cmd.MarkFlagRequired("source")
	cmd.MarkFlagRequired("out")
	return cmd
}

func newRunCommand() *cobra.Command {
	var source, out string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a Module binary and report its diagnostics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			bin, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("reading module: %w", err)
			}

			m, err := module.Parse(bin)
			if err != nil {
				return fmt.Errorf("parsing module: %w", err)
			}
			log.WithField("module", m.ID).Info("running")

			result, err := typerunner.Run(m)
			if err != nil {
				return err
			}
			log.WithField("diagnostics", len(result.Diagnostics)).Info("finished")

			encoded, err := json.MarshalIndent(result.Diagnostics, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding diagnostics: %w", err)
			}

			if out == "" {
				fmt.Println(string(encoded))
				return nil
			}
			return os.WriteFile(out, encoded, 0o644)
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "path to a compiled Module binary")
	cmd.Flags().StringVar(&out, "out", "", "path to write diagnostics JSON (default: stdout)")
	cmd.MarkFlagRequired("source")
	return cmd
}

// dumpModuleTree renders a Module's subroutine table as a tree, one branch
// per subroutine with its body address and parameter count as children —
// an executable analogue of the section tree the optimizer walks.
func dumpModuleTree(m *module.Module) string {
	tree := treeprint.New()
	tree.SetValue(fmt.Sprintf("module %s", m.ID))
	for _, sub := range m.Subroutines {
		branch := tree.AddBranch(sub.Name)
		branch.AddNode(fmt.Sprintf("bodyAddr=%d", sub.BodyAddr))
		branch.AddNode(fmt.Sprintf("paramCount=%d", sub.ParamCount))
		if sub.Flags != 0 {
			branch.AddNode(fmt.Sprintf("flags=%d", sub.Flags))
		}
	}
	return tree.String()
}
