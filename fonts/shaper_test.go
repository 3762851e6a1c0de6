package fonts_test

import (
	"testing"

	"github.com/go-text/typesetting/language"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/wudi/pdfredact/fonts"
)

func TestDetectScript(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect language.Script
	}{
		{"Latin", "Hello World", language.Latin},
		{"Arabic", "مرحبا بالعالم", language.Arabic},
		{"Hebrew", "שלום עולם", language.Hebrew},
		{"Cyrillic", "Привет мир", language.Cyrillic},
		{"Greek", "Γειά σου Κόσμε", language.Greek},
		{"Mixed Latin/Arabic (Latin dominant)", "Hello World مرحبا", language.Latin},
		{"Mixed Latin/Arabic (Arabic dominant)", "مرحبا بالعالم Hello", language.Arabic},
		{"CJK (Han)", "你好世界", language.Han},
		{"Hiragana", "こんにちは", language.Hiragana},
		{"Katakana", "コンニチハ", language.Katakana},
		{"Hangul", "안녕하세요", language.Hangul},
		{"Digits only default to Latin", "123456", language.Latin},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := fonts.DetectScript([]rune(tc.input))
			if got != tc.expect {
				t.Errorf("Expected %v, got %v", tc.expect, got)
			}
		})
	}
}

func TestShapeTextProducesAdvances(t *testing.T) {
	font, err := fonts.LoadTrueType("GoRegular", goregular.TTF)
	if err != nil {
		t.Fatalf("LoadTrueType: %v", err)
	}

	glyphs, err := fonts.ShapeText("Hi", font)
	if err != nil {
		t.Fatalf("ShapeText: %v", err)
	}
	if len(glyphs) != 2 {
		t.Fatalf("Expected 2 glyphs, got %d", len(glyphs))
	}
	for i, g := range glyphs {
		if g.ID == 0 {
			t.Errorf("Glyph %d mapped to .notdef", i)
		}
		if g.XAdvance <= 0 {
			t.Errorf("Glyph %d has non-positive advance %f", i, g.XAdvance)
		}
		// Shaped at 1000 units/em, so advances must match the width table.
		if w, ok := font.Widths[g.ID]; ok {
			diff := g.XAdvance - float64(w)
			if diff < -1.5 || diff > 1.5 {
				t.Errorf("Glyph %d advance %f disagrees with width table %d", i, g.XAdvance, w)
			}
		}
	}
}

func TestShapeTextNilWithoutEmbeddedFont(t *testing.T) {
	glyphs, err := fonts.ShapeText("Hello", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if glyphs != nil {
		t.Fatalf("Expected nil glyphs for nil font, got %d", len(glyphs))
	}
}
