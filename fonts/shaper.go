package fonts

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/go-text/typesetting/di"
	gofont "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/math/fixed"

	"github.com/wudi/pdfredact/ir/semantic"
)

// ShapedGlyph is one glyph of a shaped replacement string. XAdvance is
// in 1/1000 em so it lines up with the font's width table.
type ShapedGlyph struct {
	ID       int
	XAdvance float64
}

// ShapeText shapes text with the font's embedded program and returns
// the glyph IDs to encode. Fonts without an embedded program shape to
// nothing; callers fall back to a standard face instead.
func ShapeText(text string, font *semantic.Font) ([]ShapedGlyph, error) {
	if font == nil || font.Descriptor == nil || len(font.Descriptor.FontFile) == 0 {
		return nil, nil
	}

	face, err := gofont.ParseTTF(bytes.NewReader(font.Descriptor.FontFile))
	if err != nil {
		return nil, err
	}

	runes := []rune(text)
	script := DetectScript(runes)
	dir := scriptDirection(script)
	if strings.HasSuffix(font.Encoding, "V") {
		dir = di.DirectionTTB
	}

	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: dir,
		Face:      face,
		// 1000 units per em so advances come out in PDF text units.
		Size:     fixed.Int26_6(1000 * 64),
		Script:   script,
		Language: language.DefaultLanguage(),
	}
	output := (&shaping.HarfbuzzShaper{}).Shape(input)

	result := make([]ShapedGlyph, 0, len(output.Glyphs))
	for _, g := range output.Glyphs {
		result = append(result, ShapedGlyph{
			ID:       int(g.GlyphID),
			XAdvance: float64(g.XAdvance) / 64.0,
		})
	}
	return result, nil
}

func scriptDirection(script language.Script) di.Direction {
	switch script {
	case language.Arabic, language.Hebrew:
		return di.DirectionRTL
	}
	return di.DirectionLTR
}

var scriptRanges = []struct {
	table  *unicode.RangeTable
	script language.Script
}{
	{unicode.Latin, language.Latin},
	{unicode.Arabic, language.Arabic},
	{unicode.Hebrew, language.Hebrew},
	{unicode.Cyrillic, language.Cyrillic},
	{unicode.Greek, language.Greek},
	{unicode.Han, language.Han},
	{unicode.Hiragana, language.Hiragana},
	{unicode.Katakana, language.Katakana},
	{unicode.Hangul, language.Hangul},
	{unicode.Thai, language.Thai},
	{unicode.Devanagari, language.Devanagari},
}

// DetectScript returns the dominant script of the given runes. Ties keep
// the earlier winner; text with no recognizable script defaults to Latin.
func DetectScript(runes []rune) language.Script {
	counts := make(map[language.Script]int)
	best, bestCount := language.Latin, 0
	for _, r := range runes {
		for _, sr := range scriptRanges {
			if !unicode.Is(sr.table, r) {
				continue
			}
			counts[sr.script]++
			if counts[sr.script] > bestCount {
				best, bestCount = sr.script, counts[sr.script]
			}
			break
		}
	}
	return best
}
