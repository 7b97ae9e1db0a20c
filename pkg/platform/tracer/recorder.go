package tracer

import (
	"context"
	"sync"
)

// Recorder is a tracer that keeps every started span in memory. Service
// tests use it to assert which operations were instrumented and whether
// their spans recorded an error.
type Recorder struct {
	mu    sync.RWMutex
	spans []RecordedSpan
}

// RecordedSpan is one finished or in-flight span captured by a Recorder.
type RecordedSpan struct {
	Name       string
	Attributes []Attribute
	Events     []string
	Err        error
	Ended      bool
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Start records the span and returns a handle that writes back into the
// recorder on End.
func (r *Recorder) Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, RecordedSpan{Name: name, Attributes: attrs})
	return ctx, &recordedSpan{recorder: r, index: len(r.spans) - 1}
}

// Spans returns a snapshot of every span started so far, in start order.
func (r *Recorder) Spans() []RecordedSpan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]RecordedSpan(nil), r.spans...)
}

// ByName returns the recorded spans with the given name.
func (r *Recorder) ByName(name string) []RecordedSpan {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []RecordedSpan
	for _, s := range r.spans {
		if s.Name == name {
			out = append(out, s)
		}
	}
	return out
}

type recordedSpan struct {
	recorder *Recorder
	index    int
}

func (s *recordedSpan) End(err error) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	s.recorder.spans[s.index].Err = err
	s.recorder.spans[s.index].Ended = true
}

func (s *recordedSpan) SetAttributes(attrs ...Attribute) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	sp := &s.recorder.spans[s.index]
	sp.Attributes = append(sp.Attributes, attrs...)
}

func (s *recordedSpan) AddEvent(name string, _ ...Attribute) {
	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	s.recorder.spans[s.index].Events = append(s.recorder.spans[s.index].Events, name)
}

var (
	_ Tracer = (*Recorder)(nil)
	_ Span   = (*recordedSpan)(nil)
)
