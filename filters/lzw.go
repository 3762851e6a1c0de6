package filters

import (
	"bytes"
	"context"
	"errors"

	"github.com/wudi/pdfredact/ir/raw"
)

// lzwDecoder implements LZWDecode. PDF uses the TIFF variant: MSB-first
// codes starting at 9 bits, clear code 256, EOD 257, and by default the
// code width grows one code early (EarlyChange 1).
type lzwDecoder struct{}

func NewLZWDecoder() Decoder { return lzwDecoder{} }

func (lzwDecoder) Name() string { return "LZWDecode" }

func (lzwDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	early := dictInt(params, "EarlyChange", 1)
	out, err := lzwDecode(in, early == 1)
	if err != nil {
		return nil, err
	}
	return applyPredictor(out, params)
}

const (
	lzwClear = 256
	lzwEOD   = 257
)

func lzwDecode(in []byte, earlyChange bool) ([]byte, error) {
	var out bytes.Buffer

	table := make([][]byte, 258, 4096)
	reset := func() {
		table = table[:258]
		for i := 0; i < 256; i++ {
			table[i] = []byte{byte(i)}
		}
	}
	reset()

	width := uint(9)
	bitBuf := uint32(0)
	bitCnt := uint(0)
	pos := 0
	readCode := func() (int, bool) {
		for bitCnt < width {
			if pos >= len(in) {
				return 0, false
			}
			bitBuf = bitBuf<<8 | uint32(in[pos])
			bitCnt += 8
			pos++
		}
		bitCnt -= width
		code := int(bitBuf >> bitCnt)
		bitBuf &= (1 << bitCnt) - 1
		return code, true
	}

	limit := func() int {
		max := 1 << width
		if earlyChange {
			max--
		}
		return max
	}

	var prev []byte
	for {
		code, ok := readCode()
		if !ok {
			break
		}
		if code == lzwEOD {
			break
		}
		if code == lzwClear {
			reset()
			width = 9
			prev = nil
			continue
		}
		var entry []byte
		switch {
		case code < len(table) && table[code] != nil:
			entry = table[code]
		case code == len(table) && prev != nil:
			entry = append(append([]byte(nil), prev...), prev[0])
		default:
			return nil, errors.New("invalid LZW code")
		}
		out.Write(entry)
		if prev != nil {
			next := append(append([]byte(nil), prev...), entry[0])
			table = append(table, next)
			if len(table) >= limit() && width < 12 {
				width++
			}
		}
		prev = entry
	}
	return out.Bytes(), nil
}
