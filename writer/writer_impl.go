package writer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/wudi/pdfredact/ir/raw"
)

type impl struct{ interceptors []Interceptor }

func (w *impl) Write(ctx context.Context, doc *raw.Document, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if doc.Trailer == nil {
		return fmt.Errorf("document has no trailer")
	}
	if _, ok := doc.Trailer.Get(raw.NameLiteral("Root")); !ok {
		return fmt.Errorf("trailer has no /Root")
	}

	version := doc.Version
	if version == "" {
		version = "1.7"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%%PDF-%s\n%%\xE2\xE3\xCF\xD3\n", version)

	ordered := make([]raw.ObjectRef, 0, len(doc.Objects))
	for ref := range doc.Objects {
		ordered = append(ordered, ref)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Num < ordered[j].Num })

	offsets := make(map[int]int64, len(ordered))
	for _, ref := range ordered {
		obj := doc.Objects[ref]
		for _, ic := range w.interceptors {
			if err := ic.BeforeWrite(ref, obj); err != nil {
				return err
			}
		}
		offset := int64(buf.Len())
		serialized := w.SerializeObject(ref, obj)
		buf.Write(serialized)
		offsets[ref.Num] = offset
		for _, ic := range w.interceptors {
			if err := ic.AfterWrite(ref, obj, int64(len(serialized))); err != nil {
				return err
			}
		}
	}

	maxObjNum := 0
	if len(ordered) > 0 {
		maxObjNum = ordered[len(ordered)-1].Num
	}

	xrefOffset := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", maxObjNum+1)
	buf.WriteString("0000000000 65535 f \n")
	for i := 1; i <= maxObjNum; i++ {
		if off, ok := offsets[i]; ok {
			fmt.Fprintf(&buf, "%010d 00000 n \n", off)
		} else {
			buf.WriteString("0000000000 65535 f \n")
		}
	}

	buf.WriteString("trailer\n")
	buf.Write(serializePrimitive(outputTrailer(doc.Trailer, maxObjNum+1)))
	fmt.Fprintf(&buf, "\nstartxref\n%d\n%%%%EOF\n", xrefOffset)

	_, err := out.Write(buf.Bytes())
	return err
}

// outputTrailer carries over /Root and /Info (and /ID when present) with
// a fresh /Size. Entries tied to the source file's xref structure (Prev,
// XRefStm, and xref-stream keys) must not survive a full rewrite.
func outputTrailer(src raw.Dictionary, size int) *raw.DictObj {
	trailer := raw.Dict()
	trailer.Set(raw.NameLiteral("Size"), raw.NumberInt(int64(size)))
	for _, key := range []string{"Root", "Info", "ID"} {
		if v, ok := src.Get(raw.NameLiteral(key)); ok {
			trailer.Set(raw.NameLiteral(key), v)
		}
	}
	return trailer
}

func (w *impl) SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%d %d obj\n", ref.Num, ref.Gen)
	buf.Write(serializePrimitive(obj))
	buf.WriteString("\nendobj\n")
	return buf.Bytes()
}
