package ir

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"testing"
)

// buildTestPDF assembles a one-page file whose content stream is
// ASCIIHex-encoded, exercising the decode stage.
func buildTestPDF(content string) []byte {
	buf := &bytes.Buffer{}
	buf.WriteString("%PDF-1.7\n")

	offsets := make([]int, 5)
	addObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	addObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	addObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	addObj(3, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R >>")

	encoded := hex.EncodeToString([]byte(content)) + ">"
	addObj(4, fmt.Sprintf("<< /Length %d /Filter /ASCIIHexDecode >>\nstream\n%s\nendstream", len(encoded), encoded))

	xrefOff := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for num := 1; num <= 4; num++ {
		fmt.Fprintf(buf, "%010d 00000 n \n", offsets[num])
	}
	buf.WriteString("trailer << /Size 5 /Root 1 0 R >>\nstartxref\n")
	fmt.Fprintf(buf, "%d\n%%%%EOF\n", xrefOff)
	return buf.Bytes()
}

func TestPipelineParseDecodesContentStreams(t *testing.T) {
	pdf := buildTestPDF("BT (Hi) Tj ET")

	doc, err := NewDefault(nil).Parse(context.Background(), bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("pipeline parse failed: %v", err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(doc.Pages))
	}

	page := doc.Pages[0]
	if string(page.Contents[0].RawBytes) != "BT (Hi) Tj ET" {
		t.Fatalf("content not decoded: %q", page.Contents[0].RawBytes)
	}

	var sawTj bool
	for _, op := range page.Contents[0].Operations {
		if op.Operator == "Tj" {
			sawTj = true
		}
	}
	if !sawTj {
		t.Fatal("operations not parsed from decoded stream")
	}
}

func TestPipelineParseRawStopsBeforeDecode(t *testing.T) {
	pdf := buildTestPDF("BT (Hi) Tj ET")

	p := NewDefault(nil)
	rawDoc, err := p.ParseRaw(context.Background(), bytes.NewReader(pdf))
	if err != nil {
		t.Fatalf("raw parse failed: %v", err)
	}
	if len(rawDoc.Objects) != 4 {
		t.Fatalf("expected 4 objects, got %d", len(rawDoc.Objects))
	}
	if rawDoc.Version != "1.7" {
		t.Fatalf("version not detected: %q", rawDoc.Version)
	}

	semDoc, err := p.Build(context.Background(), rawDoc)
	if err != nil {
		t.Fatalf("build failed: %v", err)
	}
	if len(semDoc.Pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(semDoc.Pages))
	}
}

func TestPipelineParseRejectsGarbage(t *testing.T) {
	if _, err := NewDefault(nil).Parse(context.Background(), bytes.NewReader([]byte("not a pdf"))); err == nil {
		t.Fatal("expected parse error")
	}
}
