// Package contentstream interprets page content operations, tracking
// graphics and text state so text runs can be located in user space.
package contentstream

import (
	"errors"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/semantic"
)

// GraphicsState holds the subset of PDF graphics state the tracer needs.
type GraphicsState struct {
	CTM       coords.Matrix
	FillColor Color
	stack     []*GraphicsState
}

// Color is a fill color with its originating color space.
type Color struct {
	Space      string // DeviceGray, DeviceRGB, DeviceCMYK, or a resource name
	Components []float64
}

// RGB approximates the color as sRGB components in [0,1].
func (c Color) RGB() (r, g, b float64) {
	switch c.Space {
	case "DeviceGray":
		if len(c.Components) >= 1 {
			return c.Components[0], c.Components[0], c.Components[0]
		}
	case "DeviceRGB":
		if len(c.Components) >= 3 {
			return c.Components[0], c.Components[1], c.Components[2]
		}
	case "DeviceCMYK":
		if len(c.Components) >= 4 {
			cy, m, y, k := c.Components[0], c.Components[1], c.Components[2], c.Components[3]
			return (1 - cy) * (1 - k), (1 - m) * (1 - k), (1 - y) * (1 - k)
		}
	}
	return 0, 0, 0
}

func (gs *GraphicsState) Save() { clone := *gs; gs.stack = append(gs.stack, &clone) }

func (gs *GraphicsState) Restore() error {
	n := len(gs.stack)
	if n == 0 {
		return errors.New("state stack empty")
	}
	stack := gs.stack
	*gs = *stack[n-1]
	gs.stack = stack[:n-1]
	return nil
}

// TextState holds the PDF text state parameters.
type TextState struct {
	Font           *semantic.Font
	FontName       string
	FontSize       float64
	CharSpacing    float64 // Tc
	WordSpacing    float64 // Tw
	HorizScale     float64 // Tz, percent
	Leading        float64 // TL
	Rise           float64 // Ts
	RenderMode     int     // Tr
	TextMatrix     coords.Matrix
	TextLineMatrix coords.Matrix
}

// textParams is the part of the text state that belongs to the
// graphics state, saved by q and restored by Q. The text and line
// matrices are scoped to BT..ET and are excluded.
type textParams struct {
	Font        *semantic.Font
	FontName    string
	FontSize    float64
	CharSpacing float64
	WordSpacing float64
	HorizScale  float64
	Leading     float64
	Rise        float64
	RenderMode  int
}

func (ts *TextState) params() textParams {
	return textParams{
		Font:        ts.Font,
		FontName:    ts.FontName,
		FontSize:    ts.FontSize,
		CharSpacing: ts.CharSpacing,
		WordSpacing: ts.WordSpacing,
		HorizScale:  ts.HorizScale,
		Leading:     ts.Leading,
		Rise:        ts.Rise,
		RenderMode:  ts.RenderMode,
	}
}

func (ts *TextState) setParams(p textParams) {
	ts.Font = p.Font
	ts.FontName = p.FontName
	ts.FontSize = p.FontSize
	ts.CharSpacing = p.CharSpacing
	ts.WordSpacing = p.WordSpacing
	ts.HorizScale = p.HorizScale
	ts.Leading = p.Leading
	ts.Rise = p.Rise
	ts.RenderMode = p.RenderMode
}

// TextRenderMode matches PDF text rendering modes set via Tr.
type TextRenderMode int

const (
	TextFill TextRenderMode = iota
	TextStroke
	TextFillStroke
	TextInvisible
	TextFillClip
	TextStrokeClip
	TextFillStrokeClip
	TextClip
)
