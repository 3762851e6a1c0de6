package xref

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/wudi/pdfredact/ir/raw"
	"github.com/wudi/pdfredact/scanner"
)

// repair reconstructs the xref table by scanning the whole file for
// "<num> <gen> obj" headers and keeping the last trailer dictionary seen.
// Later definitions of an object win, matching incremental-update order.
func repair(ctx context.Context, data []byte) (*repairedTable, error) {
	s := scanner.New(bytes.NewReader(data), scanner.Config{})
	entries := make(map[int]entry)
	var lastTrailer *raw.DictObj

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		tok, err := s.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			// Damaged region; skip one byte and keep scanning.
			if serr := s.SeekTo(s.Position() + 1); serr != nil {
				break
			}
			continue
		}

		switch {
		case tok.Type == scanner.TokenNumber && tok.IsInt:
			objNum := int(tok.Int)
			tokGen, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return finishRepair(entries, lastTrailer)
				}
				continue
			}
			if tokGen.Type != scanner.TokenNumber || !tokGen.IsInt {
				continue
			}
			tokObj, err := s.Next()
			if err != nil {
				if errors.Is(err, io.EOF) {
					return finishRepair(entries, lastTrailer)
				}
				continue
			}
			if tokObj.Type == scanner.TokenKeyword && tokObj.Str == "obj" {
				entries[objNum] = entry{offset: tok.Pos, gen: int(tokGen.Int)}
				continue
			}
			// tokGen might itself start an object header; rewind to it.
			if err := s.SeekTo(tokGen.Pos); err != nil {
				return nil, err
			}
		case tok.Type == scanner.TokenKeyword && tok.Str == "trailer":
			tr := &tokenReader{s: s}
			dTok, err := tr.next()
			if err != nil || dTok.Type != scanner.TokenDict {
				continue
			}
			if dict, err := parseDictBody(tr); err == nil {
				lastTrailer = dict
			}
		}
	}
	return finishRepair(entries, lastTrailer)
}

func finishRepair(entries map[int]entry, trailer *raw.DictObj) (*repairedTable, error) {
	if len(entries) == 0 {
		return nil, errors.New("repair failed: no objects found")
	}
	if trailer == nil {
		trailer = raw.Dict()
		trailer.Set(raw.NameObj{Val: "Size"}, raw.NumberInt(int64(len(entries)+1)))
	}
	return &repairedTable{table: table{entries: entries, kind: "repaired"}, trailer: trailer}, nil
}

type repairedTable struct {
	table
	trailer *raw.DictObj
}
