// Package xref locates and parses cross-reference information: classic
// tables, cross-reference streams, hybrid files, and a repair scan for
// files whose tables are broken.
package xref

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/wudi/pdfredact/ir/raw"
)

// Table holds object locations. Objects live either at a byte offset in
// the file or inside an object stream.
type Table interface {
	Lookup(objNum int) (offset int64, gen int, found bool)
	ObjStream(objNum int) (streamNum, idx int, ok bool)
	Objects() []int
	Type() string
}

// Resolver locates and parses xref information in a PDF.
type Resolver interface {
	Resolve(ctx context.Context, r io.ReaderAt) (Table, error)
	Trailer() raw.Dictionary
}

type ResolverConfig struct {
	// MaxXRefDepth bounds Prev chains; zero means the default of 64.
	MaxXRefDepth int
	// DisableRepair turns off the brute-force scan fallback.
	DisableRepair bool
}

func NewResolver(cfg ResolverConfig) Resolver {
	if cfg.MaxXRefDepth <= 0 {
		cfg.MaxXRefDepth = 64
	}
	return &resolver{cfg: cfg}
}

type resolver struct {
	cfg     ResolverConfig
	trailer *raw.DictObj
}

func (r *resolver) Trailer() raw.Dictionary {
	if r.trailer == nil {
		return nil
	}
	return r.trailer
}

func (r *resolver) Resolve(ctx context.Context, src io.ReaderAt) (Table, error) {
	data := readAll(src)

	t, err := r.resolveFromStartxref(ctx, data)
	if err != nil {
		if r.cfg.DisableRepair {
			return nil, err
		}
		rt, rerr := repair(ctx, data)
		if rerr != nil {
			return nil, fmt.Errorf("%w (repair also failed: %v)", err, rerr)
		}
		r.trailer = rt.trailer
		return rt, nil
	}
	return t, nil
}

func (r *resolver) resolveFromStartxref(ctx context.Context, data []byte) (Table, error) {
	startxref := bytes.LastIndex(data, []byte("startxref"))
	if startxref < 0 {
		return nil, errors.New("startxref not found")
	}
	rest := data[startxref+len("startxref"):]
	lines := bufio.NewScanner(bytes.NewReader(rest))
	var offset int64 = -1
	for lines.Scan() {
		text := strings.TrimSpace(lines.Text())
		if text == "" {
			continue
		}
		val, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse startxref: %w", err)
		}
		offset = val
		break
	}
	if offset <= 0 || offset >= int64(len(data)) {
		return nil, fmt.Errorf("xref offset out of range: %d", offset)
	}

	t := newTable()
	seen := make(map[int64]bool)
	kind := ""
	for depth := 0; offset > 0; depth++ {
		if depth >= r.cfg.MaxXRefDepth {
			return nil, errors.New("xref Prev chain too deep")
		}
		if seen[offset] {
			return nil, errors.New("xref Prev chain loop")
		}
		seen[offset] = true
		if offset >= int64(len(data)) {
			return nil, fmt.Errorf("xref offset out of range: %d", offset)
		}

		var (
			trailer *raw.DictObj
			next    int64
			err     error
		)
		if isClassicSection(data, offset) {
			trailer, next, err = parseClassicSection(ctx, data, offset, t)
			if kind == "" {
				kind = "table"
			}
		} else {
			trailer, next, err = parseStreamSection(ctx, data, offset, t)
			if kind == "" {
				kind = "stream"
			}
		}
		if err != nil {
			return nil, err
		}
		if r.trailer == nil {
			r.trailer = trailer
		}
		// Hybrid files carry an XRefStm pointer alongside the classic table.
		if trailer != nil {
			if xs, ok := trailer.Get(raw.NameObj{Val: "XRefStm"}); ok {
				if n, ok := xs.(raw.NumberObj); ok && !seen[n.Int()] && n.Int() > 0 && n.Int() < int64(len(data)) {
					seen[n.Int()] = true
					if _, _, serr := parseStreamSection(ctx, data, n.Int(), t); serr != nil {
						return nil, serr
					}
				}
			}
		}
		offset = next
	}
	if t.Len() == 0 {
		return nil, errors.New("xref contains no objects")
	}
	t.kind = kind
	return t, nil
}

func isClassicSection(data []byte, offset int64) bool {
	rest := data[offset:]
	i := 0
	for i < len(rest) && (rest[i] == ' ' || rest[i] == '\r' || rest[i] == '\n' || rest[i] == '\t') {
		i++
	}
	return bytes.HasPrefix(rest[i:], []byte("xref"))
}

type entry struct {
	offset int64
	gen    int
	// in-stream location, valid when inStream is true
	inStream  bool
	streamNum int
	streamIdx int
	free      bool
}

type table struct {
	entries map[int]entry
	kind    string
}

func newTable() *table { return &table{entries: make(map[int]entry), kind: "table"} }

// add records an entry unless a newer section already defined the object.
// Sections are processed newest first, so first write wins.
func (t *table) add(objNum int, e entry) {
	if _, ok := t.entries[objNum]; ok {
		return
	}
	t.entries[objNum] = e
}

func (t *table) Len() int { return len(t.entries) }

func (t *table) Lookup(objNum int) (int64, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.free || e.inStream {
		return 0, 0, false
	}
	return e.offset, e.gen, true
}

func (t *table) ObjStream(objNum int) (int, int, bool) {
	e, ok := t.entries[objNum]
	if !ok || e.free || !e.inStream {
		return 0, 0, false
	}
	return e.streamNum, e.streamIdx, true
}

func (t *table) Objects() []int {
	out := make([]int, 0, len(t.entries))
	for k, e := range t.entries {
		if e.free {
			continue
		}
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

func (t *table) Type() string { return t.kind }

// parseClassicSection reads one "xref ... trailer <<...>>" section into t
// and returns the trailer plus the Prev offset (0 when absent).
func parseClassicSection(ctx context.Context, data []byte, offset int64, t *table) (*raw.DictObj, int64, error) {
	tableData := data[offset:]
	sc := bufio.NewScanner(bytes.NewReader(tableData))
	if !sc.Scan() || strings.TrimSpace(sc.Text()) != "xref" {
		return nil, 0, errors.New("xref keyword not found at offset")
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "trailer") {
			break
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			return nil, 0, fmt.Errorf("invalid xref subsection header: %q", line)
		}
		startObj, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, 0, fmt.Errorf("parse xref start: %w", err)
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, 0, fmt.Errorf("parse xref count: %w", err)
		}

		for i := 0; i < count; i++ {
			if !sc.Scan() {
				return nil, 0, errors.New("unexpected end of xref section")
			}
			entryLine := strings.TrimSpace(sc.Text())
			fields := strings.Fields(entryLine)
			if len(fields) < 3 {
				return nil, 0, fmt.Errorf("invalid xref entry: %q", entryLine)
			}
			off, err := strconv.ParseInt(fields[0], 10, 64)
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref offset: %w", err)
			}
			gen, err := strconv.Atoi(fields[1])
			if err != nil {
				return nil, 0, fmt.Errorf("parse xref gen: %w", err)
			}
			if fields[2] == "f" {
				t.add(startObj+i, entry{free: true})
				continue
			}
			t.add(startObj+i, entry{offset: off, gen: gen})
		}
	}

	trailerIdx := bytes.Index(tableData, []byte("trailer"))
	if trailerIdx < 0 {
		return nil, 0, errors.New("trailer not found after xref table")
	}
	trailer, err := parseDictAt(data, offset+int64(trailerIdx+len("trailer")))
	if err != nil {
		return nil, 0, fmt.Errorf("parse trailer: %w", err)
	}
	return trailer, prevOffset(trailer), nil
}

func prevOffset(d *raw.DictObj) int64 {
	if d == nil {
		return 0
	}
	if v, ok := d.Get(raw.NameObj{Val: "Prev"}); ok {
		if n, ok := v.(raw.NumberObj); ok {
			return n.Int()
		}
	}
	return 0
}

func readAll(r io.ReaderAt) []byte {
	var buf bytes.Buffer
	const chunk = int64(32 * 1024)
	for off := int64(0); ; off += chunk {
		tmp := make([]byte, chunk)
		n, err := r.ReadAt(tmp, off)
		if n > 0 {
			buf.Write(tmp[:n])
		}
		if err != nil {
			break
		}
		if int64(n) < chunk {
			break
		}
	}
	return buf.Bytes()
}
