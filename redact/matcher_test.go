package redact

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"
)

func mustRules(t *testing.T, rules ...Rule) *RuleSet {
	t.Helper()
	b := NewRuleSetBuilder()
	for _, r := range rules {
		b.Add(r)
	}
	rs, err := b.Build()
	if err != nil {
		t.Fatalf("build rule set: %v", err)
	}
	return rs
}

func apply(t *testing.T, rs *RuleSet, text string) (string, bool) {
	t.Helper()
	got, changed, err := rs.Apply(context.Background(), text)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	return got, changed
}

func TestLiteralReplace(t *testing.T) {
	rs := mustRules(t, Rule{Find: "John Doe", Replace: "[REDACTED]"})
	got, changed := apply(t, rs, "Hello John Doe and Jane Smith")
	if got != "Hello [REDACTED] and Jane Smith" {
		t.Fatalf("unexpected result: %q", got)
	}
	if !changed {
		t.Fatal("expected change flag")
	}
}

func TestRegexReplace(t *testing.T) {
	rs := mustRules(t, Rule{Find: `\d{3}-\d{2}-\d{4}`, Replace: "XXX-XX-XXXX", Regex: true})
	got, changed := apply(t, rs, "SSN: 123-45-6789")
	if got != "SSN: XXX-XX-XXXX" || !changed {
		t.Fatalf("unexpected result: %q changed=%v", got, changed)
	}
}

func TestRegexBackreferences(t *testing.T) {
	rs := mustRules(t, Rule{Find: `(\w+)@(\w+)\.com`, Replace: "$1@[DOMAIN]", Regex: true})
	got, _ := apply(t, rs, "mail bob@example.com now")
	if got != "mail bob@[DOMAIN] now" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestMultipleRulesComposeSequentially(t *testing.T) {
	rs := mustRules(t,
		Rule{Find: "John Doe", Replace: "[NAME REDACTED]"},
		Rule{Find: "Jane Smith", Replace: "[NAME REDACTED]"},
	)
	got, _ := apply(t, rs, "Hello John Doe and Jane Smith")
	if got != "Hello [NAME REDACTED] and [NAME REDACTED]" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestLaterRulesSeeEarlierOutput(t *testing.T) {
	rs := mustRules(t,
		Rule{Find: "alpha", Replace: "beta"},
		Rule{Find: "beta", Replace: "gamma"},
	)
	got, _ := apply(t, rs, "alpha")
	if got != "gamma" {
		t.Fatalf("sequential composition broken: %q", got)
	}
}

func TestCaseInsensitiveLiteralPreservesSurroundingCase(t *testing.T) {
	rs := mustRules(t, Rule{Find: "john doe", Replace: "[X]", CaseInsensitive: true})
	got, _ := apply(t, rs, "Dear JOHN DOE, John Doe and john doe.")
	if got != "Dear [X], [X] and [X]." {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestCaseInsensitiveLiteralUnicode(t *testing.T) {
	cases := []struct {
		name string
		rule Rule
		in   string
		want string
	}{
		// Lowering "İ" (U+0130, 2 bytes) yields "i" (1 byte): the
		// lowered haystack is shorter than the original.
		{"shrinking rune before match",
			Rule{Find: "a", Replace: "[X]", CaseInsensitive: true},
			"İa", "İ[X]"},
		{"shrinking rune is the match",
			Rule{Find: "i", Replace: "[X]", CaseInsensitive: true},
			"xİx", "x[X]x"},
		// Lowering "Ⱥ" (U+023A, 2 bytes) yields "ⱥ" (U+2C65, 3 bytes):
		// the lowered haystack is longer than the original.
		{"growing rune before match",
			Rule{Find: "a", Replace: "[X]", CaseInsensitive: true},
			"Ⱥa", "Ⱥ[X]"},
		{"growing rune is the match",
			Rule{Find: "ⱥ", Replace: "[X]", CaseInsensitive: true},
			"xȺx", "x[X]x"},
		{"growing rune after match",
			Rule{Find: "a", Replace: "[X]", CaseInsensitive: true},
			"aȺ", "[X]Ⱥ"},
		{"multibyte surroundings preserved",
			Rule{Find: "straße", Replace: "[ADDR]", CaseInsensitive: true},
			"In der STRASSE? Nein, Straße 7.", "In der STRASSE? Nein, [ADDR] 7."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rs := mustRules(t, tc.rule)
			got, _ := apply(t, rs, tc.in)
			if got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
			if !utf8.ValidString(got) {
				t.Fatalf("result is not valid UTF-8: %q", got)
			}
		})
	}
}

func TestCaseInsensitiveScriptSeesOriginalMatchText(t *testing.T) {
	rs := mustRules(t, Rule{
		Find:            "i",
		Replace:         "_",
		CaseInsensitive: true,
		Script:          "match",
	})
	got, _ := apply(t, rs, "Ⱥ İ Ⱥ")
	if got != "Ⱥ İ Ⱥ" {
		t.Fatalf("script saw wrong match text: %q", got)
	}
}

func TestCaseInsensitiveEqualsCaseSensitiveOnLowercase(t *testing.T) {
	haystacks := []string{
		"hello john doe and jane smith",
		"john doe john doe",
		"no match here",
		"",
	}
	ci := mustRules(t, Rule{Find: "john doe", Replace: "[x]", CaseInsensitive: true})
	cs := mustRules(t, Rule{Find: "john doe", Replace: "[x]"})
	for _, h := range haystacks {
		gotCI, changedCI := apply(t, ci, h)
		gotCS, changedCS := apply(t, cs, h)
		if gotCI != gotCS || changedCI != changedCS {
			t.Errorf("haystack %q: ci=%q/%v cs=%q/%v", h, gotCI, changedCI, gotCS, changedCS)
		}
	}
}

func TestReplacementNotRescanned(t *testing.T) {
	rs := mustRules(t, Rule{Find: "aa", Replace: "aaa"})
	got, _ := apply(t, rs, "aaaa")
	// Leftmost non-overlapping: two matches, each replaced once.
	if got != "aaaaaa" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestIdempotenceUnderNoSelfMatchRules(t *testing.T) {
	rs := mustRules(t,
		Rule{Find: "John Doe", Replace: "[REDACTED]"},
		Rule{Find: `\d{3}-\d{2}-\d{4}`, Replace: "XXX-XX-XXXX", Regex: true},
	)
	inputs := []string{
		"Hello John Doe, SSN 123-45-6789",
		"nothing sensitive",
		strings.Repeat("John Doe ", 10),
	}
	for _, in := range inputs {
		once, _ := apply(t, rs, in)
		twice, changed := apply(t, rs, once)
		if changed || twice != once {
			t.Errorf("not idempotent on %q: %q -> %q", in, once, twice)
		}
	}
}

func TestUnchangedTextReturnedVerbatim(t *testing.T) {
	rs := mustRules(t, Rule{Find: "secret", Replace: "[X]"})
	got, changed := apply(t, rs, "public text")
	if changed || got != "public text" {
		t.Fatalf("unexpected: %q changed=%v", got, changed)
	}
}

func TestBuildRejectsInvalidRules(t *testing.T) {
	if _, err := NewRuleSetBuilder().Add(Rule{Find: "", Replace: "x"}).Build(); err == nil {
		t.Error("expected error for empty find")
	}
	if _, err := NewRuleSetBuilder().Add(Rule{Find: "[unclosed", Replace: "x", Regex: true}).Build(); err == nil {
		t.Error("expected error for invalid regex")
	}
	if _, err := NewRuleSetBuilder().Add(Rule{Find: "a", Replace: "b", Script: "function ("}).Build(); err == nil {
		t.Error("expected error for invalid script")
	}
}

func TestCaseInsensitiveRegex(t *testing.T) {
	rs := mustRules(t, Rule{Find: "john doe", Replace: "[X]", Regex: true, CaseInsensitive: true})
	got, _ := apply(t, rs, "JOHN DOE and John Doe")
	if got != "[X] and [X]" {
		t.Fatalf("unexpected result: %q", got)
	}
}

func TestScriptTransformsReplacementPerMatch(t *testing.T) {
	rs := mustRules(t, Rule{
		Find:    "Jane",
		Replace: "[name]",
		Script:  `replacement.toUpperCase() + ":" + match.length`,
	})
	got, _ := apply(t, rs, "Jane met Jane")
	if got != "[NAME]:4 met [NAME]:4" {
		t.Fatalf("unexpected result: %q", got)
	}
}
