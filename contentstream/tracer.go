package contentstream

import (
	"math"

	"github.com/wudi/pdfredact/coords"
	"github.com/wudi/pdfredact/ir/semantic"
)

// PlacedRun is one text-showing operation located in user space.
type PlacedRun struct {
	// OpIndex is the operation's index in the traced stream. For runs
	// inside a form XObject the index refers to the form's own stream
	// and FormDepth is non-zero.
	OpIndex   int
	FormDepth int
	// Raw holds the string bytes exactly as they appear in the operand.
	Raw      []byte
	FontName string
	Font     *semantic.Font
	FontSize float64
	Color    Color
	// Origin is the baseline start point in user space.
	Origin coords.Point
	Rect   coords.Rect
	// Block groups runs by their enclosing BT/ET pair.
	Block int
	// LineY is the baseline Y used for line grouping.
	LineY float64
}

// Tracer virtually executes content operations, emitting a PlacedRun
// for every text-showing operator.
type Tracer struct {
	// MaxFormDepth bounds recursion into form XObjects.
	MaxFormDepth int
}

func NewTracer() *Tracer {
	return &Tracer{MaxFormDepth: 8}
}

// Trace interprets ops against resources and returns the located runs.
func (t *Tracer) Trace(ops []semantic.Operation, resources *semantic.Resources) ([]PlacedRun, error) {
	gs := &GraphicsState{
		CTM:       coords.Identity(),
		FillColor: Color{Space: "DeviceGray", Components: []float64{0}},
	}
	st := &traceState{tracer: t}
	if err := st.run(ops, resources, gs, 0); err != nil {
		return nil, err
	}
	return st.runs, nil
}

type traceState struct {
	tracer *Tracer
	runs   []PlacedRun
	block  int
}

func (st *traceState) run(ops []semantic.Operation, resources *semantic.Resources, gs *GraphicsState, depth int) error {
	ts := &TextState{
		HorizScale:     100,
		TextMatrix:     coords.Identity(),
		TextLineMatrix: coords.Identity(),
	}

	var savedText []textParams
	for i, op := range ops {
		switch op.Operator {
		case "q":
			gs.Save()
			savedText = append(savedText, ts.params())
		case "Q":
			if err := gs.Restore(); err != nil {
				return err
			}
			if n := len(savedText); n > 0 {
				ts.setParams(savedText[n-1])
				savedText = savedText[:n-1]
			}
		case "cm":
			if len(op.Operands) == 6 {
				m := operandToMatrix(op.Operands)
				gs.CTM = m.Multiply(gs.CTM)
			}

		case "BT":
			st.block++
			ts.TextMatrix = coords.Identity()
			ts.TextLineMatrix = coords.Identity()
		case "ET":

		case "Tf":
			if len(op.Operands) == 2 {
				if name, ok := op.Operands[0].(semantic.NameOperand); ok {
					ts.FontName = name.Value
					ts.Font = nil
					if resources != nil {
						ts.Font = resources.Fonts[name.Value]
					}
				}
				ts.FontSize = operandToFloat(op.Operands[1])
			}
		case "Tc":
			if len(op.Operands) == 1 {
				ts.CharSpacing = operandToFloat(op.Operands[0])
			}
		case "Tw":
			if len(op.Operands) == 1 {
				ts.WordSpacing = operandToFloat(op.Operands[0])
			}
		case "Tz":
			if len(op.Operands) == 1 {
				ts.HorizScale = operandToFloat(op.Operands[0])
			}
		case "TL":
			if len(op.Operands) == 1 {
				ts.Leading = operandToFloat(op.Operands[0])
			}
		case "Ts":
			if len(op.Operands) == 1 {
				ts.Rise = operandToFloat(op.Operands[0])
			}
		case "Tr":
			if len(op.Operands) == 1 {
				ts.RenderMode = int(operandToFloat(op.Operands[0]))
			}

		case "Tm":
			if len(op.Operands) == 6 {
				ts.TextLineMatrix = operandToMatrix(op.Operands)
				ts.TextMatrix = ts.TextLineMatrix
			}
		case "Td":
			if len(op.Operands) == 2 {
				st.nextLine(ts, operandToFloat(op.Operands[0]), operandToFloat(op.Operands[1]))
			}
		case "TD":
			if len(op.Operands) == 2 {
				ty := operandToFloat(op.Operands[1])
				ts.Leading = -ty
				st.nextLine(ts, operandToFloat(op.Operands[0]), ty)
			}
		case "T*":
			st.nextLine(ts, 0, -ts.Leading)

		case "Tj":
			if len(op.Operands) == 1 {
				if str, ok := op.Operands[0].(semantic.StringOperand); ok {
					st.showText(i, depth, str.Value, ts, gs)
				}
			}
		case "'":
			if len(op.Operands) == 1 {
				st.nextLine(ts, 0, -ts.Leading)
				if str, ok := op.Operands[0].(semantic.StringOperand); ok {
					st.showText(i, depth, str.Value, ts, gs)
				}
			}
		case "\"":
			if len(op.Operands) == 3 {
				ts.WordSpacing = operandToFloat(op.Operands[0])
				ts.CharSpacing = operandToFloat(op.Operands[1])
				st.nextLine(ts, 0, -ts.Leading)
				if str, ok := op.Operands[2].(semantic.StringOperand); ok {
					st.showText(i, depth, str.Value, ts, gs)
				}
			}
		case "TJ":
			if len(op.Operands) == 1 {
				if arr, ok := op.Operands[0].(semantic.ArrayOperand); ok {
					for _, item := range arr.Values {
						switch v := item.(type) {
						case semantic.StringOperand:
							st.showText(i, depth, v.Value, ts, gs)
						case semantic.NumberOperand:
							// Kerning adjustment in thousandths of text space.
							tx := -v.Value / 1000 * ts.FontSize * ts.HorizScale / 100
							ts.TextMatrix = coords.Translate(tx, 0).Multiply(ts.TextMatrix)
						}
					}
				}
			}

		case "g":
			gs.FillColor = Color{Space: "DeviceGray", Components: operandsToFloats(op.Operands)}
		case "rg":
			gs.FillColor = Color{Space: "DeviceRGB", Components: operandsToFloats(op.Operands)}
		case "k":
			gs.FillColor = Color{Space: "DeviceCMYK", Components: operandsToFloats(op.Operands)}
		case "cs":
			if len(op.Operands) == 1 {
				if name, ok := op.Operands[0].(semantic.NameOperand); ok {
					gs.FillColor = Color{Space: name.Value}
				}
			}
		case "sc", "scn":
			gs.FillColor.Components = operandsToFloats(op.Operands)

		case "Do":
			if len(op.Operands) == 1 && resources != nil && depth < st.tracer.MaxFormDepth {
				if name, ok := op.Operands[0].(semantic.NameOperand); ok {
					if x := resources.XObjects[name.Value]; x != nil && x.Subtype == "Form" && len(x.Data) > 0 {
						if err := st.traceForm(x, gs, depth); err != nil {
							return err
						}
					}
				}
			}
		}
	}
	return nil
}

func (st *traceState) traceForm(x *semantic.XObject, gs *GraphicsState, depth int) error {
	ops, err := semantic.ParseOperations(x.Data)
	if err != nil {
		return err
	}
	inner := &GraphicsState{CTM: gs.CTM, FillColor: gs.FillColor}
	if len(x.Matrix) == 6 {
		m := coords.Matrix{x.Matrix[0], x.Matrix[1], x.Matrix[2], x.Matrix[3], x.Matrix[4], x.Matrix[5]}
		inner.CTM = m.Multiply(inner.CTM)
	}
	res := x.Resources
	return st.run(ops, res, inner, depth+1)
}

func (st *traceState) nextLine(ts *TextState, tx, ty float64) {
	m := coords.Translate(tx, ty)
	ts.TextLineMatrix = m.Multiply(ts.TextLineMatrix)
	ts.TextMatrix = ts.TextLineMatrix
}

// showText records a run for the string and advances the text matrix.
func (st *traceState) showText(opIndex, depth int, raw []byte, ts *TextState, gs *GraphicsState) {
	width := textWidth(raw, ts)

	trm := ts.TextMatrix.Multiply(gs.CTM)
	origin := trm.Transform(coords.Point{X: 0, Y: ts.Rise})

	ascent, descent := fontExtents(ts.Font)
	lo := trm.Transform(coords.Point{X: 0, Y: ts.Rise + descent*ts.FontSize})
	hi := trm.Transform(coords.Point{X: width, Y: ts.Rise + ascent*ts.FontSize})
	rect := pointsToRect(lo, hi,
		trm.Transform(coords.Point{X: width, Y: ts.Rise + descent*ts.FontSize}),
		trm.Transform(coords.Point{X: 0, Y: ts.Rise + ascent*ts.FontSize}))

	st.runs = append(st.runs, PlacedRun{
		OpIndex:   opIndex,
		FormDepth: depth,
		Raw:       raw,
		FontName:  ts.FontName,
		Font:      ts.Font,
		FontSize:  ts.FontSize,
		Color:     gs.FillColor,
		Origin:    origin,
		Rect:      rect,
		Block:     st.block,
		LineY:     origin.Y,
	})

	ts.TextMatrix = coords.Translate(width, 0).Multiply(ts.TextMatrix)
}

// textWidth computes the string's advance in unscaled text space.
func textWidth(raw []byte, ts *TextState) float64 {
	var width float64
	for _, code := range charCodes(raw, ts.Font) {
		w := glyphWidth(ts.Font, code)
		adv := w/1000*ts.FontSize + ts.CharSpacing
		if code == 32 && isSimpleFont(ts.Font) {
			adv += ts.WordSpacing
		}
		width += adv
	}
	return width * ts.HorizScale / 100
}

// charCodes splits string bytes into character codes. Type0 fonts use
// two-byte codes, everything else one byte.
func charCodes(raw []byte, font *semantic.Font) []int {
	if font != nil && font.Subtype == "Type0" {
		codes := make([]int, 0, len(raw)/2)
		for i := 0; i+1 < len(raw); i += 2 {
			codes = append(codes, int(raw[i])<<8|int(raw[i+1]))
		}
		return codes
	}
	codes := make([]int, len(raw))
	for i, b := range raw {
		codes[i] = int(b)
	}
	return codes
}

func isSimpleFont(font *semantic.Font) bool {
	return font == nil || font.Subtype != "Type0"
}

func glyphWidth(font *semantic.Font, code int) float64 {
	if font == nil {
		return 500
	}
	if font.Subtype == "Type0" {
		if font.DescendantFont != nil {
			if w, ok := font.DescendantFont.W[code]; ok {
				return float64(w)
			}
			return float64(font.DescendantFont.DW)
		}
		return 1000
	}
	if w, ok := font.Widths[code]; ok {
		return float64(w)
	}
	return 500
}

// fontExtents returns ascent and descent as fractions of the em.
func fontExtents(font *semantic.Font) (ascent, descent float64) {
	ascent, descent = 0.75, -0.25
	fd := fontDescriptor(font)
	if fd == nil {
		return
	}
	if fd.Ascent != 0 {
		ascent = fd.Ascent / 1000
	}
	if fd.Descent != 0 {
		descent = fd.Descent / 1000
	}
	return
}

func fontDescriptor(font *semantic.Font) *semantic.FontDescriptor {
	if font == nil {
		return nil
	}
	if font.Descriptor != nil {
		return font.Descriptor
	}
	if font.DescendantFont != nil {
		return font.DescendantFont.Descriptor
	}
	return nil
}

func operandToMatrix(ops []semantic.Operand) coords.Matrix {
	return coords.Matrix{
		operandToFloat(ops[0]),
		operandToFloat(ops[1]),
		operandToFloat(ops[2]),
		operandToFloat(ops[3]),
		operandToFloat(ops[4]),
		operandToFloat(ops[5]),
	}
}

func operandToFloat(op semantic.Operand) float64 {
	if n, ok := op.(semantic.NumberOperand); ok {
		return n.Value
	}
	return 0
}

func operandsToFloats(ops []semantic.Operand) []float64 {
	out := make([]float64, 0, len(ops))
	for _, op := range ops {
		if n, ok := op.(semantic.NumberOperand); ok {
			out = append(out, n.Value)
		}
	}
	return out
}

func pointsToRect(points ...coords.Point) coords.Rect {
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, p := range points {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return coords.NewRect(minX, minY, maxX, maxY)
}
