package tracing

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// jsonlSpan is the flattened, human-greppable record written per span.
type jsonlSpan struct {
	Name       string            `json:"name"`
	TraceID    string            `json:"trace_id"`
	SpanID     string            `json:"span_id"`
	ParentID   string            `json:"parent_id,omitempty"`
	StartTime  time.Time         `json:"start_time"`
	EndTime    time.Time         `json:"end_time"`
	DurationMS float64           `json:"duration_ms"`
	Attributes map[string]string `json:"attributes,omitempty"`
	StatusCode string            `json:"status_code"`
}

// JSONLExporter writes each finished span as one JSON object per line to
// an append-only file. It implements sdktrace.SpanExporter.
type JSONLExporter struct {
	mu sync.Mutex
	f  *os.File
	w  *bufio.Writer
}

// NewJSONLExporter opens (creating if needed) the file at path for
// append.
func NewJSONLExporter(path string) (*JSONLExporter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("tracing: opening span log %q: %w", path, err)
	}
	return &JSONLExporter{f: f, w: bufio.NewWriter(f)}, nil
}

// ExportSpans writes each span as a line of JSON, flushing once per call.
func (e *JSONLExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, s := range spans {
		rec := jsonlSpan{
			Name:       s.Name(),
			TraceID:    s.SpanContext().TraceID().String(),
			SpanID:     s.SpanContext().SpanID().String(),
			StartTime:  s.StartTime(),
			EndTime:    s.EndTime(),
			DurationMS: float64(s.EndTime().Sub(s.StartTime())) / float64(time.Millisecond),
			StatusCode: s.Status().Code.String(),
		}
		if s.Parent().HasSpanID() {
			rec.ParentID = s.Parent().SpanID().String()
		}
		if attrs := s.Attributes(); len(attrs) > 0 {
			rec.Attributes = make(map[string]string, len(attrs))
			for _, kv := range attrs {
				rec.Attributes[string(kv.Key)] = kv.Value.Emit()
			}
		}

		b, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("tracing: marshaling span %q: %w", rec.Name, err)
		}
		if _, err := e.w.Write(append(b, '\n')); err != nil {
			return fmt.Errorf("tracing: writing span %q: %w", rec.Name, err)
		}
	}
	return e.w.Flush()
}

// Shutdown flushes and closes the underlying file.
func (e *JSONLExporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.w.Flush(); err != nil {
		return fmt.Errorf("tracing: flushing span log: %w", err)
	}
	return e.f.Close()
}

var _ sdktrace.SpanExporter = (*JSONLExporter)(nil)
