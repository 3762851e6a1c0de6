package scripting

import (
	"context"
)

// Match describes one rule hit handed to a transform script.
type Match struct {
	// Text is the matched source text.
	Text string
	// Replacement is the substitution computed by the rule before the
	// script runs.
	Replacement string
	// Rule mirrors the rule that produced the match.
	Rule RuleInfo
}

// RuleInfo is the read-only view of a rule exposed to scripts.
type RuleInfo struct {
	Find            string `json:"find"`
	Replace         string `json:"replace"`
	Regex           bool   `json:"regex"`
	CaseInsensitive bool   `json:"caseInsensitive"`
}

// Transform post-processes replacement text per match. Scripts see the
// bindings `match`, `replacement` and `rule`; the value of the final
// expression becomes the replacement. Returning null or undefined keeps
// the replacement unchanged.
type Transform interface {
	Apply(ctx context.Context, m Match) (string, error)
}
