package scripting

import (
	"context"
	"fmt"

	"github.com/dop251/goja"
)

// GojaTransform runs a compiled JavaScript expression against each match.
// Not safe for concurrent use; the pipeline processes matches sequentially.
type GojaTransform struct {
	src     string
	program *goja.Program
	vm      *goja.Runtime
}

// Compile parses the script once. A syntax error here is a configuration
// error and must abort before any document is touched.
func Compile(src string) (*GojaTransform, error) {
	program, err := goja.Compile("rule script", src, false)
	if err != nil {
		return nil, fmt.Errorf("compile rule script: %w", err)
	}
	return &GojaTransform{src: src, program: program, vm: goja.New()}, nil
}

func (t *GojaTransform) Apply(ctx context.Context, m Match) (string, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	t.vm.Set("match", m.Text)
	t.vm.Set("replacement", m.Replacement)
	t.vm.Set("rule", map[string]interface{}{
		"find":            m.Rule.Find,
		"replace":         m.Rule.Replace,
		"regex":           m.Rule.Regex,
		"caseInsensitive": m.Rule.CaseInsensitive,
	})

	done := make(chan struct{})
	defer close(done)
	defer t.vm.ClearInterrupt()

	go func() {
		select {
		case <-ctx.Done():
			t.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := t.vm.RunProgram(t.program)
	if err != nil {
		if interruptedErr, ok := err.(*goja.InterruptedError); ok {
			if cause := interruptedErr.Unwrap(); cause != nil {
				return "", cause
			}
			return "", context.Canceled
		}
		return "", fmt.Errorf("run rule script: %w", err)
	}
	if val == nil || goja.IsUndefined(val) || goja.IsNull(val) {
		return m.Replacement, nil
	}
	return val.String(), nil
}
