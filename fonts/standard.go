package fonts

import (
	"strings"

	"github.com/wudi/pdfredact/ir/semantic"
)

// Standard 14 faces used as replacements when an embedded font cannot be
// reused for new text.
const (
	Helvetica  = "Helvetica"
	TimesRoman = "Times-Roman"
	Courier    = "Courier"
)

// Fallback maps a document font's BaseFont to a standard face with similar
// shape. Arial-family names map to Helvetica, Times to Times-Roman, Courier
// to Courier. Anything unrecognized gets Helvetica. Subset tags of the form
// "ABCDEF+" are stripped before matching.
func Fallback(baseFont string) string {
	name := strings.ToLower(stripSubsetTag(baseFont))
	switch {
	case strings.Contains(name, "times"):
		return TimesRoman
	case strings.Contains(name, "courier"), strings.Contains(name, "mono"):
		return Courier
	default:
		return Helvetica
	}
}

func stripSubsetTag(name string) string {
	if len(name) > 7 && name[6] == '+' {
		tag := name[:6]
		for _, c := range tag {
			if c < 'A' || c > 'Z' {
				return name
			}
		}
		return name[7:]
	}
	return name
}

// Standard returns a ready-to-embed simple Type1 font for one of the
// standard 14 faces. Unknown names fall back to Helvetica.
func Standard(name string) *semantic.Font {
	widths, ok := standardWidths[name]
	if !ok {
		name = Helvetica
		widths = standardWidths[Helvetica]
	}
	return &semantic.Font{
		Subtype:   "Type1",
		BaseFont:  name,
		Encoding:  "WinAnsiEncoding",
		FirstChar: 32,
		Widths:    widths,
	}
}

// StandardWidths returns the AFM advance widths (1/1000 em, keyed by char
// code) for a standard face, or nil if the face is unknown.
func StandardWidths(name string) map[int]int {
	return standardWidths[name]
}

// MeasureString returns the width of s in 1/1000 em units using the given
// width table, substituting the space width for unknown characters.
func MeasureString(widths map[int]int, s string) float64 {
	total := 0
	for _, r := range s {
		w, ok := widths[int(r)]
		if !ok {
			w = widths[' ']
		}
		total += w
	}
	return float64(total)
}

// Advance widths from the Adobe core 14 AFM files, printable ASCII range.
var standardWidths = map[string]map[int]int{
	Helvetica: {
		32: 278, 33: 278, 34: 355, 35: 556, 36: 556, 37: 889, 38: 667,
		39: 191, 40: 333, 41: 333, 42: 389, 43: 584, 44: 278, 45: 333,
		46: 278, 47: 278, 48: 556, 49: 556, 50: 556, 51: 556, 52: 556,
		53: 556, 54: 556, 55: 556, 56: 556, 57: 556, 58: 278, 59: 278,
		60: 584, 61: 584, 62: 584, 63: 556, 64: 1015, 65: 667, 66: 667,
		67: 722, 68: 722, 69: 667, 70: 611, 71: 778, 72: 722, 73: 278,
		74: 500, 75: 667, 76: 556, 77: 833, 78: 722, 79: 778, 80: 667,
		81: 778, 82: 722, 83: 667, 84: 611, 85: 722, 86: 667, 87: 944,
		88: 667, 89: 667, 90: 611, 91: 278, 92: 278, 93: 278, 94: 469,
		95: 556, 96: 333, 97: 556, 98: 556, 99: 500, 100: 556, 101: 556,
		102: 278, 103: 556, 104: 556, 105: 222, 106: 222, 107: 500,
		108: 222, 109: 833, 110: 556, 111: 556, 112: 556, 113: 556,
		114: 333, 115: 500, 116: 278, 117: 556, 118: 500, 119: 722,
		120: 500, 121: 500, 122: 500, 123: 334, 124: 260, 125: 334,
		126: 584,
	},
	TimesRoman: {
		32: 250, 33: 333, 34: 408, 35: 500, 36: 500, 37: 833, 38: 778,
		39: 180, 40: 333, 41: 333, 42: 500, 43: 564, 44: 250, 45: 333,
		46: 250, 47: 278, 48: 500, 49: 500, 50: 500, 51: 500, 52: 500,
		53: 500, 54: 500, 55: 500, 56: 500, 57: 500, 58: 278, 59: 278,
		60: 564, 61: 564, 62: 564, 63: 444, 64: 921, 65: 722, 66: 667,
		67: 667, 68: 722, 69: 611, 70: 556, 71: 722, 72: 722, 73: 333,
		74: 389, 75: 722, 76: 611, 77: 889, 78: 722, 79: 722, 80: 556,
		81: 722, 82: 667, 83: 556, 84: 611, 85: 722, 86: 722, 87: 944,
		88: 722, 89: 722, 90: 611, 91: 333, 92: 278, 93: 333, 94: 469,
		95: 500, 96: 333, 97: 444, 98: 500, 99: 444, 100: 500, 101: 444,
		102: 333, 103: 500, 104: 500, 105: 278, 106: 278, 107: 500,
		108: 278, 109: 778, 110: 500, 111: 500, 112: 500, 113: 500,
		114: 333, 115: 389, 116: 278, 117: 500, 118: 500, 119: 722,
		120: 500, 121: 500, 122: 444, 123: 480, 124: 200, 125: 480,
		126: 541,
	},
	Courier: courierWidths(),
}

func courierWidths() map[int]int {
	w := make(map[int]int, 95)
	for c := 32; c <= 126; c++ {
		w[c] = 600
	}
	return w
}
