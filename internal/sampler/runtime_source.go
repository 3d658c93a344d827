package sampler

import (
	"context"
	"runtime"
	"strings"
	"sync"

	"github.com/emberprof/ember/internal/hotspot"
)

// GoRuntimeSource resolves samples from the Go runtime itself: the leaf
// frame of every live goroutine, keyed by package path and function name.
// Leaf frames inside the runtime package are skipped; parked goroutines all
// bottom out in the scheduler and would otherwise dominate every report.
type GoRuntimeSource struct {
	mu      sync.Mutex
	records []runtime.StackRecord
}

// NewGoRuntimeSource creates a source sampling this process's goroutines.
func NewGoRuntimeSource() *GoRuntimeSource {
	return &GoRuntimeSource{}
}

// Sample captures the current goroutine profile and maps each leaf frame to
// a code unit key.
func (s *GoRuntimeSource) Sample(ctx context.Context) ([]hotspot.Key, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// GoroutineProfile wants a slice at least as large as the goroutine
	// count; retry with headroom until it fits.
	n, _ := runtime.GoroutineProfile(nil)
	for {
		if n > cap(s.records) {
			s.records = make([]runtime.StackRecord, n+8)
		}
		var ok bool
		n, ok = runtime.GoroutineProfile(s.records[:cap(s.records)])
		if ok {
			break
		}
	}

	keys := make([]hotspot.Key, 0, n)
	for _, rec := range s.records[:n] {
		stack := rec.Stack()
		if len(stack) == 0 {
			continue
		}
		fn := runtime.FuncForPC(stack[0])
		if fn == nil {
			continue
		}
		pkg, name := splitQualified(fn.Name())
		if pkg == "" || pkg == "runtime" {
			continue
		}
		key, err := hotspot.NewKey(pkg, name)
		if err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, nil
}

// splitQualified splits a runtime function name of the form
// "path/to/pkg.(*Recv).Func" into its package path and function parts. The
// package ends at the first dot after the last slash.
func splitQualified(name string) (pkg, fn string) {
	slash := strings.LastIndexByte(name, '/')
	dot := strings.IndexByte(name[slash+1:], '.')
	if dot < 0 {
		return "", name
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}
