// Package writer serializes a raw document to a PDF file with a classic
// cross-reference table. Object order and dictionary keys are sorted so
// identical documents produce identical bytes.
package writer

import (
	"context"
	"io"

	"github.com/wudi/pdfredact/ir/raw"
)

// Writer writes raw documents.
type Writer interface {
	Write(ctx context.Context, doc *raw.Document, out io.Writer) error
	SerializeObject(ref raw.ObjectRef, obj raw.Object) []byte
}

// Interceptor observes objects as they are written.
type Interceptor interface {
	BeforeWrite(ref raw.ObjectRef, obj raw.Object) error
	AfterWrite(ref raw.ObjectRef, obj raw.Object, bytesWritten int64) error
}

type WriterBuilder struct{ interceptors []Interceptor }

func (b *WriterBuilder) WithInterceptor(i Interceptor) *WriterBuilder {
	b.interceptors = append(b.interceptors, i)
	return b
}

func (b *WriterBuilder) Build() Writer { return &impl{interceptors: b.interceptors} }

// New returns a Writer with no interceptors.
func New() Writer { return (&WriterBuilder{}).Build() }
