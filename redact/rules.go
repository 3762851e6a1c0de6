// Package redact implements find/replace of text inside parsed pages:
// an ordered rule set, a matcher with literal and regex modes, a span
// locator that turns matcher hits into redaction operations, and an
// applicator that erases the original glyph operators and draws the
// replacement text.
package redact

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wudi/pdfredact/scripting"
)

// Rule is one find/replace instruction. Rules are applied in the order
// they were added; later rules see the output of earlier ones.
type Rule struct {
	Find            string
	Replace         string
	Regex           bool
	CaseInsensitive bool
	// Script is an optional JavaScript expression that post-processes
	// the replacement per match.
	Script string

	re        *regexp.Regexp
	lowerFind string
	transform scripting.Transform
}

func (r *Rule) info() scripting.RuleInfo {
	return scripting.RuleInfo{
		Find:            r.Find,
		Replace:         r.Replace,
		Regex:           r.Regex,
		CaseInsensitive: r.CaseInsensitive,
	}
}

// RuleSet is an immutable ordered sequence of compiled rules, built once
// per run and shared by reference across all documents.
type RuleSet struct {
	rules []Rule
}

// Len returns the number of rules.
func (rs *RuleSet) Len() int { return len(rs.rules) }

// RuleSetBuilder accumulates rules from the CLI and config sources.
// Compilation and validation happen in Build, before any document I/O.
type RuleSetBuilder struct {
	rules []Rule
}

func NewRuleSetBuilder() *RuleSetBuilder { return &RuleSetBuilder{} }

// Add appends a rule. Order is preserved.
func (b *RuleSetBuilder) Add(r Rule) *RuleSetBuilder {
	b.rules = append(b.rules, r)
	return b
}

// Build compiles every rule. Any invalid pattern or script fails the
// whole build.
func (b *RuleSetBuilder) Build() (*RuleSet, error) {
	rules := make([]Rule, len(b.rules))
	copy(rules, b.rules)
	for i := range rules {
		r := &rules[i]
		if r.Find == "" {
			return nil, fmt.Errorf("rule %d: empty find pattern", i)
		}
		if r.Regex {
			pattern := r.Find
			if r.CaseInsensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fmt.Errorf("rule %d: invalid regex %q: %w", i, r.Find, err)
			}
			r.re = re
		} else if r.CaseInsensitive {
			r.lowerFind = strings.ToLower(r.Find)
		}
		if r.Script != "" {
			transform, err := scripting.Compile(r.Script)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			r.transform = transform
		}
	}
	return &RuleSet{rules: rules}, nil
}
