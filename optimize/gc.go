package optimize

import (
	"context"

	"github.com/wudi/pdfredact/ir/raw"
)

// garbageCollect removes every object not reachable from the trailer.
// Erase/insert passes and decompression leave orphans behind (replaced
// content streams, unpacked object streams, stale xref streams); keeping
// them would bloat the output.
func (o *Optimizer) garbageCollect(ctx context.Context, doc *raw.Document) error {
	if doc.Trailer == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	reachable := make(map[raw.ObjectRef]bool)
	var stack []raw.ObjectRef
	markObject(doc.Trailer, reachable, &stack)

	for len(stack) > 0 {
		ref := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		obj, ok := doc.Objects[ref]
		if !ok {
			continue
		}
		markObject(obj, reachable, &stack)
	}

	for ref := range doc.Objects {
		if !reachable[ref] {
			delete(doc.Objects, ref)
		}
	}
	return nil
}

func markObject(obj raw.Object, reachable map[raw.ObjectRef]bool, stack *[]raw.ObjectRef) {
	switch v := obj.(type) {
	case raw.Reference:
		ref := v.Ref()
		if !reachable[ref] {
			reachable[ref] = true
			*stack = append(*stack, ref)
		}
	case raw.Dictionary:
		for _, key := range v.Keys() {
			if child, ok := v.Get(key); ok {
				markObject(child, reachable, stack)
			}
		}
	case raw.Array:
		for i := 0; i < v.Len(); i++ {
			if child, ok := v.Get(i); ok {
				markObject(child, reachable, stack)
			}
		}
	case raw.Stream:
		markObject(v.Dictionary(), reachable, stack)
	}
}
