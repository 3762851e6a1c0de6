package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/toolchain"
)

var (
	qpdfPath      string
	pdftotextPath string
	linearize     bool
)

var toolsCmd = &cobra.Command{
	Use:   "tools <input> <output>",
	Short: "Redact using external tools (qpdf, pdftotext)",
	Long: `Redacts a document through external binaries instead of the native
parser: qpdf rewrites the file into editable QDF form, the replacement
rules run over the intermediate, and qpdf rebuilds the output. Requires
qpdf and pdftotext on PATH.

Examples:
  pdfredact tools input.pdf output.pdf --find "John Doe" --replace "[REDACTED]"
  pdfredact tools input.pdf output.pdf --config replacements.json --linearize`,
	Args: cobra.ExactArgs(2),
	RunE: runTools,
}

func init() {
	flags := toolsCmd.Flags()
	flags.StringVar(&findText, "find", "", "text or pattern to find")
	flags.StringVar(&replaceText, "replace", "", "replacement text")
	flags.BoolVar(&useRegex, "regex", false, "treat --find as a regular expression")
	flags.BoolVar(&ignoreCase, "ignore-case", false, "match --find case-insensitively")
	flags.StringVar(&configPath, "config", "", "JSON file with replacement rules")
	flags.StringVar(&qpdfPath, "qpdf-path", "", "path to the qpdf binary")
	flags.StringVar(&pdftotextPath, "pdftotext-path", "", "path to the pdftotext binary")
	flags.BoolVar(&linearize, "linearize", false, "linearize the final output")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

func runTools(cmd *cobra.Command, args []string) error {
	log, err := observability.NewZapLogger(verbose)
	if err != nil {
		return err
	}

	rules, _, err := buildRules()
	if err != nil {
		return err
	}
	if rules.Len() == 0 {
		return errors.New("no replacement rules: use --find/--replace or --config")
	}

	runner, err := toolchain.New(rules, toolchain.Options{
		QpdfPath:      qpdfPath,
		PdftotextPath: pdftotextPath,
		Linearize:     linearize,
	}, log)
	if err != nil {
		return err
	}

	changed, err := runner.Redact(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if changed {
		fmt.Printf("Successfully created: %s\n", args[1])
	} else {
		fmt.Printf("No replacements needed, copied file as-is: %s\n", args[1])
	}
	return nil
}
