package xref

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/scanner"
)

// Minimal object parsing for trailers and xref stream objects. The full
// loader lives in the parser package; xref cannot depend on it without a
// cycle, so the few productions needed here are duplicated.

type tokenReader struct {
	s   scanner.Scanner
	buf []scanner.Token
}

func (r *tokenReader) next() (scanner.Token, error) {
	if l := len(r.buf); l > 0 {
		t := r.buf[l-1]
		r.buf = r.buf[:l-1]
		return t, nil
	}
	return r.s.Next()
}

func (r *tokenReader) unread(tok scanner.Token) { r.buf = append(r.buf, tok) }

func parseValue(tr *tokenReader) (raw.Object, error) {
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	switch tok.Type {
	case scanner.TokenName:
		return raw.NameObj{Val: tok.Str}, nil
	case scanner.TokenNumber:
		if tok.IsInt {
			return raw.NumberObj{I: tok.Int, IsInt: true}, nil
		}
		return raw.NumberObj{F: tok.Float}, nil
	case scanner.TokenBoolean:
		return raw.BoolObj{V: tok.Bool}, nil
	case scanner.TokenNull:
		return raw.NullObj{}, nil
	case scanner.TokenString:
		return raw.StringObj{Bytes: tok.Bytes}, nil
	case scanner.TokenRef:
		return raw.RefObj{R: raw.ObjectRef{Num: int(tok.Int), Gen: tok.Gen}}, nil
	case scanner.TokenArray:
		arr := &raw.ArrayObj{}
		for {
			t, err := tr.next()
			if err != nil {
				return nil, err
			}
			if t.Type == scanner.TokenKeyword && t.Str == "]" {
				return arr, nil
			}
			tr.unread(t)
			item, err := parseValue(tr)
			if err != nil {
				return nil, err
			}
			arr.Append(item)
		}
	case scanner.TokenDict:
		return parseDictBody(tr)
	}
	return nil, fmt.Errorf("unexpected token %q", tok.Str)
}

func parseDictBody(tr *tokenReader) (*raw.DictObj, error) {
	d := raw.Dict()
	for {
		tok, err := tr.next()
		if err != nil {
			return nil, err
		}
		if tok.Type == scanner.TokenKeyword && tok.Str == ">>" {
			return d, nil
		}
		if tok.Type != scanner.TokenName {
			return nil, errors.New("expected name key in dict")
		}
		val, err := parseValue(tr)
		if err != nil {
			return nil, err
		}
		d.Set(raw.NameObj{Val: tok.Str}, val)
	}
}

func parseDictAt(data []byte, offset int64) (*raw.DictObj, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := &tokenReader{s: s}
	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenDict {
		return nil, errors.New("expected dictionary")
	}
	return parseDictBody(tr)
}

// parseStreamObjectAt parses a "N G obj << ... >> stream ... endstream"
// object whose Length must be a direct integer, as required for xref
// streams.
func parseStreamObjectAt(data []byte, offset int64) (*raw.StreamObj, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	if err := s.SeekTo(offset); err != nil {
		return nil, err
	}
	tr := &tokenReader{s: s}

	tok, err := tr.next()
	if err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt {
		return nil, errors.New("expected object number")
	}
	if tok, err = tr.next(); err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenNumber || !tok.IsInt {
		return nil, errors.New("expected generation number")
	}
	if tok, err = tr.next(); err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenKeyword || tok.Str != "obj" {
		return nil, errors.New("expected obj keyword")
	}
	if tok, err = tr.next(); err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenDict {
		return nil, errors.New("expected stream dictionary")
	}
	dict, err := parseDictBody(tr)
	if err != nil {
		return nil, err
	}
	if v, ok := dict.Get(raw.NameObj{Val: "Length"}); ok {
		if n, ok := v.(raw.NumberObj); ok && n.IsInteger() {
			s.SetNextStreamLength(n.Int())
		}
	}
	if tok, err = tr.next(); err != nil {
		return nil, err
	}
	if tok.Type != scanner.TokenStream {
		return nil, errors.New("expected stream payload")
	}
	return raw.NewStream(dict, tok.Bytes), nil
}
