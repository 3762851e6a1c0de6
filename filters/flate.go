package filters

import (
	"bytes"
	"compress/flate"
	"compress/zlib"
	"context"
	"io"

	"github.com/wudi/pdfredact/ir/raw"
)

type flateDecoder struct{}

func NewFlateDecoder() Decoder { return flateDecoder{} }

func (flateDecoder) Name() string { return "FlateDecode" }

func (flateDecoder) Decode(ctx context.Context, in []byte, params raw.Dictionary) ([]byte, error) {
	var out bytes.Buffer
	zr, err := zlib.NewReader(bytes.NewReader(in))
	if err == nil {
		_, err = io.Copy(&out, zr)
		zr.Close()
	} else {
		// Some producers emit raw deflate without the zlib wrapper.
		fr := flate.NewReader(bytes.NewReader(in))
		out.Reset()
		_, err = io.Copy(&out, fr)
		fr.Close()
	}
	if err != nil && out.Len() == 0 {
		return nil, err
	}
	return applyPredictor(out.Bytes(), params)
}

// MinLevel and MaxLevel bound the zlib compression levels accepted when
// re-encoding streams.
const (
	MinLevel = 0
	MaxLevel = 9
)

// FlateEncode compresses data at the given zlib level (0-9).
func FlateEncode(data []byte, level int) ([]byte, error) {
	if level < MinLevel {
		level = MinLevel
	}
	if level > MaxLevel {
		level = MaxLevel
	}
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
