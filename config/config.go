// Package config loads replacement-rule files.
//
// The file format:
//
//	{
//	  "replacements": [
//	    {"find": "John Doe", "replace": "[REDACTED]"},
//	    {"find": ["Jane", "Joe"], "replace": "[NAME]", "caseInsensitive": true},
//	    {"find": "\\d{3}-\\d{2}-\\d{4}", "replace": "[SSN]", "regex": true}
//	  ],
//	  "compression": {"preserve": true, "level": 9}
//	}
//
// "find" accepts a single pattern or an array; an array expands into one
// rule per pattern, all sharing the same replace/regex/caseInsensitive.
package config

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
)

// Replacement is one find/replace rule as written in the file, after
// multi-find expansion.
type Replacement struct {
	Find            string
	Replace         string
	Regex           bool
	CaseInsensitive bool
	Script          string
}

// Compression is the save policy section.
type Compression struct {
	Preserve bool
	Level    int
}

// Config is a fully-loaded, validated rule file.
type Config struct {
	Replacements []Replacement
	Compression  Compression
}

type rawConfig struct {
	Replacements []rawReplacement `json:"replacements"`
	Compression  *rawCompression  `json:"compression"`
}

type rawReplacement struct {
	Find            findPatterns `json:"find"`
	Replace         string       `json:"replace"`
	Regex           bool         `json:"regex"`
	CaseInsensitive bool         `json:"caseInsensitive"`
	Script          string       `json:"script"`
}

type rawCompression struct {
	Preserve *bool `json:"preserve"`
	Level    *int  `json:"level"`
}

// findPatterns accepts either a JSON string or an array of strings.
type findPatterns []string

func (f *findPatterns) UnmarshalJSON(data []byte) error {
	i := 0
	for i < len(data) && (data[i] == ' ' || data[i] == '\t' || data[i] == '\n' || data[i] == '\r') {
		i++
	}
	if i < len(data) && data[i] == '[' {
		var list []string
		if err := sonic.Unmarshal(data, &list); err != nil {
			return err
		}
		*f = list
		return nil
	}
	var single string
	if err := sonic.Unmarshal(data, &single); err != nil {
		return err
	}
	*f = []string{single}
	return nil
}

// Load reads and parses a rule file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates rule-file bytes. Compression defaults to
// preserve=true, level=9 when the section or its fields are absent.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	cfg := &Config{
		Compression: Compression{Preserve: true, Level: 9},
	}
	if raw.Compression != nil {
		if raw.Compression.Preserve != nil {
			cfg.Compression.Preserve = *raw.Compression.Preserve
		}
		if raw.Compression.Level != nil {
			cfg.Compression.Level = *raw.Compression.Level
		}
	}
	if cfg.Compression.Level < 0 || cfg.Compression.Level > 9 {
		return nil, fmt.Errorf("compression level %d out of range 0-9", cfg.Compression.Level)
	}

	for i, r := range raw.Replacements {
		if len(r.Find) == 0 {
			return nil, fmt.Errorf("replacement %d: missing find pattern", i)
		}
		for _, pattern := range r.Find {
			if pattern == "" {
				return nil, fmt.Errorf("replacement %d: empty find pattern", i)
			}
			cfg.Replacements = append(cfg.Replacements, Replacement{
				Find:            pattern,
				Replace:         r.Replace,
				Regex:           r.Regex,
				CaseInsensitive: r.CaseInsensitive,
				Script:          r.Script,
			})
		}
	}
	return cfg, nil
}
