package filters

import (
	"errors"

	"github.com/wudi/pdfredact/ir/raw"
)

// applyPredictor undoes the TIFF or PNG predictor named in DecodeParms.
// Predictor 1 (or no params) returns data unchanged.
func applyPredictor(data []byte, params raw.Dictionary) ([]byte, error) {
	predictor := dictInt(params, "Predictor", 1)
	if predictor <= 1 {
		return data, nil
	}
	colors := dictInt(params, "Colors", 1)
	bpc := dictInt(params, "BitsPerComponent", 8)
	columns := dictInt(params, "Columns", 1)

	bytesPerPixel := (colors*bpc + 7) / 8
	rowLen := (colors*bpc*columns + 7) / 8
	if rowLen <= 0 || bytesPerPixel <= 0 {
		return nil, errors.New("invalid predictor parameters")
	}

	if predictor == 2 {
		return applyTIFFPredictor(data, rowLen, bytesPerPixel, bpc)
	}
	if predictor >= 10 {
		return applyPNGPredictor(data, rowLen, bytesPerPixel)
	}
	return nil, errors.New("unsupported predictor")
}

func applyTIFFPredictor(data []byte, rowLen, bpp, bpc int) ([]byte, error) {
	if bpc != 8 {
		return nil, errors.New("TIFF predictor requires 8 bits per component")
	}
	out := append([]byte(nil), data...)
	for row := 0; row+rowLen <= len(out); row += rowLen {
		for i := bpp; i < rowLen; i++ {
			out[row+i] += out[row+i-bpp]
		}
	}
	return out, nil
}

// applyPNGPredictor undoes per-row PNG filtering (RFC 2083). Each row is
// prefixed with a filter type byte.
func applyPNGPredictor(data []byte, rowLen, bpp int) ([]byte, error) {
	if len(data)%(rowLen+1) != 0 {
		return nil, errors.New("PNG predictor data not a whole number of rows")
	}
	rows := len(data) / (rowLen + 1)
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)
	cur := make([]byte, rowLen)
	for r := 0; r < rows; r++ {
		ft := data[r*(rowLen+1)]
		copy(cur, data[r*(rowLen+1)+1:(r+1)*(rowLen+1)])
		switch ft {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				cur[i] += cur[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				cur[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				var left byte
				if i >= bpp {
					left = cur[i-bpp]
				}
				cur[i] += byte((int(left) + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				var left, upLeft byte
				if i >= bpp {
					left = cur[i-bpp]
					upLeft = prev[i-bpp]
				}
				cur[i] += paeth(left, prev[i], upLeft)
			}
		default:
			return nil, errors.New("invalid PNG filter type")
		}
		out = append(out, cur...)
		prev, cur = cur, prev
	}
	return out, nil
}

func paeth(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))
	if pa <= pb && pa <= pc {
		return a
	}
	if pb <= pc {
		return b
	}
	return c
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
