package xref

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfredact/filters"
	"github.com/wudi/pdfredact/ir/raw"
)

// parseStreamSection parses a cross-reference stream (PDF 7.5.8) at the
// given offset into t. Returns the stream dictionary, which doubles as
// the trailer, and the Prev offset.
func parseStreamSection(ctx context.Context, data []byte, offset int64, t *table) (*raw.DictObj, int64, error) {
	st, err := parseStreamObjectAt(data, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("parse xref stream: %w", err)
	}
	dict := st.Dict
	if ty, ok := dict.Get(raw.NameObj{Val: "Type"}); ok {
		if n, ok := ty.(raw.NameObj); ok && n.Val != "XRef" {
			return nil, 0, errors.New("object at xref offset is not an XRef stream")
		}
	}

	names, params := filters.ExtractFilters(dict)
	payload := st.Data
	if len(names) > 0 {
		p := filters.NewPipeline(filters.StandardDecoders(), filters.Limits{})
		payload, err = p.Decode(ctx, payload, names, params)
		if err != nil {
			return nil, 0, fmt.Errorf("decode xref stream: %w", err)
		}
	}

	w, err := widths(dict)
	if err != nil {
		return nil, 0, err
	}
	rowLen := w[0] + w[1] + w[2]
	if rowLen <= 0 {
		return nil, 0, errors.New("xref stream W entries sum to zero")
	}

	index, err := indexRanges(dict)
	if err != nil {
		return nil, 0, err
	}

	pos := 0
	for _, rng := range index {
		for i := 0; i < rng.count; i++ {
			if pos+rowLen > len(payload) {
				return nil, 0, errors.New("xref stream truncated")
			}
			f1 := readField(payload[pos:pos+w[0]], 1) // type defaults to 1
			f2 := readField(payload[pos+w[0]:pos+w[0]+w[1]], 0)
			f3 := readField(payload[pos+w[0]+w[1]:pos+rowLen], 0)
			pos += rowLen

			objNum := rng.start + i
			switch f1 {
			case 0:
				t.add(objNum, entry{free: true})
			case 1:
				t.add(objNum, entry{offset: f2, gen: int(f3)})
			case 2:
				t.add(objNum, entry{inStream: true, streamNum: int(f2), streamIdx: int(f3)})
			}
		}
	}

	return dict, prevOffset(dict), nil
}

type indexRange struct{ start, count int }

func indexRanges(dict *raw.DictObj) ([]indexRange, error) {
	size := 0
	if v, ok := dict.Get(raw.NameObj{Val: "Size"}); ok {
		if n, ok := v.(raw.NumberObj); ok {
			size = int(n.Int())
		}
	}
	v, ok := dict.Get(raw.NameObj{Val: "Index"})
	if !ok {
		return []indexRange{{start: 0, count: size}}, nil
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len()%2 != 0 {
		return nil, errors.New("invalid xref stream Index")
	}
	var out []indexRange
	for i := 0; i < arr.Len(); i += 2 {
		s, _ := arr.Get(i)
		c, _ := arr.Get(i + 1)
		sn, ok1 := s.(raw.NumberObj)
		cn, ok2 := c.(raw.NumberObj)
		if !ok1 || !ok2 {
			return nil, errors.New("invalid xref stream Index")
		}
		out = append(out, indexRange{start: int(sn.Int()), count: int(cn.Int())})
	}
	return out, nil
}

func widths(dict *raw.DictObj) ([3]int, error) {
	var w [3]int
	v, ok := dict.Get(raw.NameObj{Val: "W"})
	if !ok {
		return w, errors.New("xref stream missing W")
	}
	arr, ok := v.(*raw.ArrayObj)
	if !ok || arr.Len() != 3 {
		return w, errors.New("xref stream W must have three entries")
	}
	for i := 0; i < 3; i++ {
		item, _ := arr.Get(i)
		n, ok := item.(raw.NumberObj)
		if !ok || n.Int() < 0 || n.Int() > 8 {
			return w, errors.New("invalid xref stream W entry")
		}
		w[i] = int(n.Int())
	}
	return w, nil
}

// readField decodes a big-endian field; zero width yields def.
func readField(b []byte, def int64) int64 {
	if len(b) == 0 {
		return def
	}
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}
