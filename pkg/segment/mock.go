package segment

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// SegmentFunc is the signature shared by the four Engine calls.
type SegmentFunc func(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error)

// Mock implements Engine for testing.
type Mock struct {
	// SegmentPersonFunc is called when SegmentPerson is invoked.
	SegmentPersonFunc SegmentFunc

	// SegmentMultiPersonFunc is called when SegmentMultiPerson is invoked.
	SegmentMultiPersonFunc SegmentFunc

	// SegmentPersonPartsFunc is called when SegmentPersonParts is invoked.
	SegmentPersonPartsFunc SegmentFunc

	// SegmentMultiPersonPartsFunc is called when SegmentMultiPersonParts is invoked.
	SegmentMultiPersonPartsFunc SegmentFunc

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Opts   InferenceOptions
	Time   time.Time
}

// NewMock creates a mock engine whose calls return an empty result sized
// to the frame.
func NewMock() *Mock {
	empty := func(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
		return EmptyResult(frame.Cols(), frame.Rows()), nil
	}
	return &Mock{
		SegmentPersonFunc:           empty,
		SegmentMultiPersonFunc:      empty,
		SegmentPersonPartsFunc:      empty,
		SegmentMultiPersonPartsFunc: empty,
	}
}

// EmptyResult returns a result with no person pixels and no poses.
func EmptyResult(w, h int) *Result {
	parts := make([]int8, w*h)
	for i := range parts {
		parts[i] = Background
	}
	return &Result{Width: w, Height: h, Mask: make([]uint8, w*h), Parts: parts}
}

// SegmentPerson calls SegmentPersonFunc and records the call.
func (m *Mock) SegmentPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	m.record("SegmentPerson", opts)
	return m.call(m.SegmentPersonFunc, ctx, frame, opts)
}

// SegmentMultiPerson calls SegmentMultiPersonFunc and records the call.
func (m *Mock) SegmentMultiPerson(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	m.record("SegmentMultiPerson", opts)
	return m.call(m.SegmentMultiPersonFunc, ctx, frame, opts)
}

// SegmentPersonParts calls SegmentPersonPartsFunc and records the call.
func (m *Mock) SegmentPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	m.record("SegmentPersonParts", opts)
	return m.call(m.SegmentPersonPartsFunc, ctx, frame, opts)
}

// SegmentMultiPersonParts calls SegmentMultiPersonPartsFunc and records the call.
func (m *Mock) SegmentMultiPersonParts(ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	m.record("SegmentMultiPersonParts", opts)
	return m.call(m.SegmentMultiPersonPartsFunc, ctx, frame, opts)
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", InferenceOptions{})
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) call(fn SegmentFunc, ctx context.Context, frame gocv.Mat, opts InferenceOptions) (*Result, error) {
	if fn == nil {
		return nil, ErrEngineClosed
	}
	return fn(ctx, frame, opts)
}

func (m *Mock) record(method string, opts InferenceOptions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Opts: opts, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of calls to a method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockLoader returns a Loader that yields engine, or err if set.
func MockLoader(engine Engine, err error) Loader {
	return LoaderFunc(func(ctx context.Context, opts ModelOptions) (Engine, error) {
		if err != nil {
			return nil, err
		}
		return engine, nil
	})
}
