package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wudi/pdfredact/config"
	"github.com/wudi/pdfredact/observability"
	"github.com/wudi/pdfredact/pipeline"
	"github.com/wudi/pdfredact/redact"
	"github.com/wudi/pdfredact/report"
)

var (
	findText         string
	replaceText      string
	useRegex         bool
	ignoreCase       bool
	configPath       string
	inputDir         string
	outputDir        string
	noCompress       bool
	compressionLevel int
	showInfo         bool
	reportPath       string
	verbose          bool
)

var rootCmd = &cobra.Command{
	Use:   "pdfredact [input output]",
	Short: "Find and replace sensitive text in PDF files",
	Long: `pdfredact rewrites text inside PDF documents: it finds sensitive
strings by literal or regular-expression match and replaces them in
place, preserving position, font size and color.

Examples:
  pdfredact input.pdf output.pdf --find "John Doe" --replace "[REDACTED]"
  pdfredact input.pdf output.pdf --find "\d{3}-\d{2}-\d{4}" --replace "XXX-XX-XXXX" --regex
  pdfredact input.pdf output.pdf --config replacements.json
  pdfredact --input-dir ./pdfs --output-dir ./redacted --config replacements.json
  pdfredact input.pdf --info`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          validateArgs,
}

func init() {
	rootCmd.RunE = run
	flags := rootCmd.Flags()
	flags.StringVar(&findText, "find", "", "text or pattern to find")
	flags.StringVar(&replaceText, "replace", "", "replacement text")
	flags.BoolVar(&useRegex, "regex", false, "treat --find as a regular expression")
	flags.BoolVar(&ignoreCase, "ignore-case", false, "match --find case-insensitively")
	flags.StringVar(&configPath, "config", "", "JSON file with replacement rules")
	flags.StringVar(&inputDir, "input-dir", "", "directory of PDFs to process")
	flags.StringVar(&outputDir, "output-dir", "", "directory for processed PDFs")
	flags.BoolVar(&noCompress, "no-compress", false, "write output without stream compression")
	flags.IntVar(&compressionLevel, "compression-level", 9, "zlib level for re-compressed streams (0-9)")
	flags.BoolVar(&showInfo, "info", false, "print document details and exit")
	flags.StringVar(&reportPath, "report", "", "write a run report (.md or .html)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	viper.SetEnvPrefix("PDFREDACT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	for _, name := range []string{"config", "input-dir", "output-dir", "compression-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(toolsCmd)
}

func validateArgs(cmd *cobra.Command, args []string) error {
	batch := inputDir != "" || outputDir != ""
	if showInfo {
		if len(args) != 1 {
			return errors.New("--info takes exactly one input file")
		}
		return nil
	}
	if batch {
		if inputDir == "" || outputDir == "" {
			return errors.New("--input-dir and --output-dir must be given together")
		}
		if len(args) != 0 {
			return errors.New("batch mode takes no positional arguments")
		}
		return nil
	}
	if len(args) != 2 {
		return errors.New("specify input and output files, or --input-dir/--output-dir")
	}
	return nil
}

// buildRules collects rules from the config file first, then the CLI
// flags, preserving that order of application.
func buildRules() (*redact.RuleSet, pipeline.Options, error) {
	opts := pipeline.Options{PreserveCompression: true, CompressionLevel: 9}

	path := configPath
	if path == "" {
		path = viper.GetString("config")
	}

	var b redact.RuleSetBuilder
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, opts, err
		}
		for _, r := range cfg.Replacements {
			b.Add(redact.Rule{
				Find:            r.Find,
				Replace:         r.Replace,
				Regex:           r.Regex,
				CaseInsensitive: r.CaseInsensitive,
				Script:          r.Script,
			})
		}
		opts.PreserveCompression = cfg.Compression.Preserve
		opts.CompressionLevel = cfg.Compression.Level
	}
	if findText != "" {
		b.Add(redact.Rule{
			Find:            findText,
			Replace:         replaceText,
			Regex:           useRegex,
			CaseInsensitive: ignoreCase,
		})
	}

	if noCompress {
		opts.PreserveCompression = false
	}
	if rootCmd.Flags().Changed("compression-level") || viper.IsSet("compression-level") {
		opts.CompressionLevel = viper.GetInt("compression-level")
	}

	rules, err := b.Build()
	if err != nil {
		return nil, opts, err
	}
	return rules, opts, nil
}

func run(cmd *cobra.Command, args []string) error {
	log, err := observability.NewZapLogger(verbose)
	if err != nil {
		return err
	}

	if showInfo {
		return printInfo(cmd, args[0], log)
	}

	rules, opts, err := buildRules()
	if err != nil {
		return err
	}
	if rules.Len() == 0 {
		return errors.New("no replacement rules: use --find/--replace or --config")
	}

	p, err := pipeline.New(rules, opts, log)
	if err != nil {
		return err
	}

	started := time.Now()
	var summary *pipeline.Summary

	if dir := viper.GetString("input-dir"); dir != "" {
		summary, err = p.ProcessDirectory(cmd.Context(), dir, viper.GetString("output-dir"))
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d/%d files, %d spans replaced\n",
			summary.Succeeded, summary.Total, summary.Changes)
		if summary.Failed > 0 {
			err = fmt.Errorf("%d of %d files failed", summary.Failed, summary.Total)
		}
	} else {
		var result *pipeline.Result
		result, err = p.ProcessFile(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		summary = &pipeline.Summary{
			Total: 1, Succeeded: 1, Changes: result.Changed,
			Results: []pipeline.Result{*result},
		}
		fmt.Printf("Successfully created: %s (%d spans replaced)\n", result.Output, result.Changed)
	}

	if reportPath != "" {
		r := report.New(started, time.Now(), summary)
		if saveErr := r.Save(reportPath); saveErr != nil {
			return saveErr
		}
		fmt.Printf("Report written to: %s\n", reportPath)
	}
	return err
}

func printInfo(cmd *cobra.Command, path string, log observability.Logger) error {
	info, err := pipeline.Inspect(cmd.Context(), path, log)
	if err != nil {
		return err
	}
	fmt.Printf("File:       %s\n", info.Path)
	fmt.Printf("Size:       %d bytes\n", info.FileSize)
	fmt.Printf("Version:    PDF %s\n", info.Version)
	fmt.Printf("Pages:      %d\n", info.PageCount)
	fmt.Printf("Objects:    %d\n", info.ObjectCount)
	fmt.Printf("Encrypted:  %t\n", info.Encrypted)
	fmt.Printf("Compressed: %t\n", info.Compressed)
	if info.Metadata.Title != "" {
		fmt.Printf("Title:      %s\n", info.Metadata.Title)
	}
	if info.Metadata.Author != "" {
		fmt.Printf("Author:     %s\n", info.Metadata.Author)
	}
	if info.Metadata.Producer != "" {
		fmt.Printf("Producer:   %s\n", info.Metadata.Producer)
	}
	return nil
}
