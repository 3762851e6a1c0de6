package redact

import (
	"context"
	"strings"
	"unicode"

	"github.com/wudi/pdfredact/scripting"
)

// Apply runs every rule over text in order and reports whether anything
// changed. Unchanged text is returned as-is so callers can skip spans
// without churn.
func (rs *RuleSet) Apply(ctx context.Context, text string) (string, bool, error) {
	result := text
	for i := range rs.rules {
		next, err := rs.rules[i].apply(ctx, result)
		if err != nil {
			return "", false, err
		}
		result = next
	}
	return result, result != text, nil
}

func (r *Rule) apply(ctx context.Context, text string) (string, error) {
	if r.Regex {
		return r.applyRegex(ctx, text)
	}
	return r.applyLiteral(ctx, text)
}

func (r *Rule) applyRegex(ctx context.Context, text string) (string, error) {
	if r.transform == nil {
		return r.re.ReplaceAllString(text, r.Replace), nil
	}
	matches := r.re.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return text, nil
	}
	var sb strings.Builder
	last := 0
	for _, m := range matches {
		sb.WriteString(text[last:m[0]])
		expanded := string(r.re.ExpandString(nil, r.Replace, text, m))
		rep, err := r.transform.Apply(ctx, scripting.Match{
			Text:        text[m[0]:m[1]],
			Replacement: expanded,
			Rule:        r.info(),
		})
		if err != nil {
			return "", err
		}
		sb.WriteString(rep)
		last = m[1]
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

// applyLiteral replaces every non-overlapping occurrence left to right.
// Replacement text is never re-scanned. The case-insensitive mode scans
// a lowercased copy but copies the original text verbatim outside
// matches, so surrounding case is preserved. Lowercasing can change a
// rune's byte length, so match offsets in the lowered haystack are
// mapped back to original offsets before slicing text.
func (r *Rule) applyLiteral(ctx context.Context, text string) (string, error) {
	haystack, needle := text, r.Find
	var offs []int
	if r.CaseInsensitive {
		haystack, offs = lowerWithOffsets(text)
		needle = r.lowerFind
	}

	if r.transform == nil && !r.CaseInsensitive {
		return strings.ReplaceAll(text, needle, r.Replace), nil
	}

	pos := strings.Index(haystack, needle)
	if pos < 0 {
		return text, nil
	}

	var sb strings.Builder
	last := 0
	for pos >= 0 {
		start, end := pos, pos+len(needle)
		if offs != nil {
			start, end = offs[start], offs[end]
		}
		sb.WriteString(text[last:start])
		rep := r.Replace
		if r.transform != nil {
			var err error
			rep, err = r.transform.Apply(ctx, scripting.Match{
				Text:        text[start:end],
				Replacement: r.Replace,
				Rule:        r.info(),
			})
			if err != nil {
				return "", err
			}
		}
		sb.WriteString(rep)
		last = end
		scanned := pos + len(needle)
		next := strings.Index(haystack[scanned:], needle)
		if next < 0 {
			break
		}
		pos = scanned + next
	}
	sb.WriteString(text[last:])
	return sb.String(), nil
}

// lowerWithOffsets lowercases text rune by rune and records, for every
// byte of the lowered form, the byte offset of the originating rune in
// text. A trailing entry holds len(text) so a match ending at the end
// of the haystack maps back cleanly. Matches against valid UTF-8 always
// start and end on rune boundaries, so indexing offs at a match edge
// yields the edge of the original segment.
func lowerWithOffsets(text string) (string, []int) {
	var sb strings.Builder
	sb.Grow(len(text))
	offs := make([]int, 0, len(text)+1)
	for i, c := range text {
		l := unicode.ToLower(c)
		n := sb.Len()
		sb.WriteRune(l)
		for n < sb.Len() {
			offs = append(offs, i)
			n++
		}
	}
	offs = append(offs, len(text))
	return sb.String(), offs
}
