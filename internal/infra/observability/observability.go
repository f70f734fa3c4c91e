// Package observability provides tracing and metrics for a quiz session's
// lifecycle: select → present → answer → re-estimate → stop.
//
// This provides:
//   - Trace spans covering the full select_next / process_answer path
//   - Context-propagated trace/span IDs, without a full OTel SDK dependency
//   - Prometheus metrics for the scoring, exposure, and stopping decisions
//     the engine makes on every item
package observability

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ═══════════════════════════════════════════════════════════════════════════
// Trace Spans — Lightweight span tracking without external OTel SDK dependency
// ═══════════════════════════════════════════════════════════════════════════

// SpanKind classifies a span.
type SpanKind int

const (
	SpanInternal SpanKind = iota
	SpanServer
	SpanClient
)

// Span represents a unit of work within a distributed trace.
type Span struct {
	TraceID   string            `json:"trace_id"`
	SpanID    string            `json:"span_id"`
	ParentID  string            `json:"parent_id,omitempty"`
	Operation string            `json:"operation"`
	Kind      SpanKind          `json:"kind"`
	StartTime time.Time         `json:"start_time"`
	EndTime   time.Time         `json:"end_time,omitempty"`
	Duration  time.Duration     `json:"duration,omitempty"`
	Status    SpanStatus        `json:"status"`
	Attrs     map[string]string `json:"attrs,omitempty"`
}

// SpanStatus indicates success/failure.
type SpanStatus int

const (
	SpanOK SpanStatus = iota
	SpanError
)

// ─── Tracer ─────────────────────────────────────────────────────────────────

// Tracer provides lightweight distributed tracing.
// In production, this would wrap OpenTelemetry SDK.
// Phase 3 implementation stores spans in-memory for inspection and export.
type Tracer struct {
	mu       sync.Mutex
	spans    []Span
	maxSpans int
	enabled  bool
}

// TracerConfig configures the tracer.
type TracerConfig struct {
	Enabled  bool
	MaxSpans int // ring buffer size (default 10_000)
}

// DefaultTracerConfig returns production defaults.
func DefaultTracerConfig() TracerConfig {
	return TracerConfig{
		Enabled:  true,
		MaxSpans: 10_000,
	}
}

// NewTracer creates a new tracer.
func NewTracer(cfg TracerConfig) *Tracer {
	return &Tracer{
		spans:    make([]Span, 0, cfg.MaxSpans),
		maxSpans: cfg.MaxSpans,
		enabled:  cfg.Enabled,
	}
}

// StartSpan begins a new span with the given operation name.
// Returns the span (caller must call EndSpan when done).
func (t *Tracer) StartSpan(ctx context.Context, operation string, attrs map[string]string) *Span {
	if !t.enabled {
		return &Span{Operation: operation}
	}

	span := &Span{
		TraceID:   traceIDFromContext(ctx),
		SpanID:    generateID(),
		ParentID:  spanIDFromContext(ctx),
		Operation: operation,
		Kind:      SpanInternal,
		StartTime: time.Now(),
		Status:    SpanOK,
		Attrs:     attrs,
	}

	return span
}

// EndSpan completes a span and records it.
func (t *Tracer) EndSpan(span *Span, err error) {
	if !t.enabled || span == nil {
		return
	}

	span.EndTime = time.Now()
	span.Duration = span.EndTime.Sub(span.StartTime)
	if err != nil {
		span.Status = SpanError
		if span.Attrs == nil {
			span.Attrs = make(map[string]string)
		}
		span.Attrs["error"] = err.Error()
		TraceErrors.Inc()
	}
	TracesRecorded.Inc()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Ring buffer: overwrite oldest if at capacity
	if len(t.spans) >= t.maxSpans {
		t.spans = t.spans[1:]
	}
	t.spans = append(t.spans, *span)
}

// Spans returns a copy of the recent spans.
func (t *Tracer) Spans(limit int) []Span {
	t.mu.Lock()
	defer t.mu.Unlock()

	if limit <= 0 || limit > len(t.spans) {
		limit = len(t.spans)
	}

	// Return most recent spans
	start := len(t.spans) - limit
	out := make([]Span, limit)
	copy(out, t.spans[start:])
	return out
}

// SpanCount returns the number of recorded spans.
func (t *Tracer) SpanCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.spans)
}

// Reset clears all recorded spans.
func (t *Tracer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = t.spans[:0]
}

// DefaultTracer is the process-wide tracer shared by production callers that
// don't need an isolated ring buffer (tests construct their own via
// NewTracer so spans from one test never bleed into another).
var DefaultTracer = NewTracer(DefaultTracerConfig())

// ─── Context Helpers ────────────────────────────────────────────────────────

type contextKey string

const (
	traceIDKey contextKey = "cat-trace-id"
	spanIDKey  contextKey = "cat-span-id"
)

// WithTraceID returns a context with the given trace ID.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// WithSpanID returns a context with the given span ID.
func WithSpanID(ctx context.Context, spanID string) context.Context {
	return context.WithValue(ctx, spanIDKey, spanID)
}

func traceIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(traceIDKey).(string); ok {
		return v
	}
	return generateID()
}

func spanIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(spanIDKey).(string); ok {
		return v
	}
	return ""
}

// generateID creates a short unique ID (not cryptographically secure — fine for tracing).
var spanCounter atomic.Int64

func generateID() string {
	n := spanCounter.Add(1)
	return fmt.Sprintf("%s-%d", time.Now().Format("20060102150405"), n)
}

// ═══════════════════════════════════════════════════════════════════════════
// Prometheus Metrics
// ═══════════════════════════════════════════════════════════════════════════

// ─── Selection Metrics ──────────────────────────────────────────────────────

// ItemsAdministered tracks items presented, by scoring algorithm (kli-ucb,
// linucb, hybrid).
var ItemsAdministered = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "selection",
	Name:      "items_administered_total",
	Help:      "Total items administered, by scoring algorithm.",
}, []string{"algorithm"})

// ExposureAdmissionDecisions tracks Sympson-Hetter admission outcomes.
var ExposureAdmissionDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "exposure",
	Name:      "admission_decisions_total",
	Help:      "Total exposure-control admission decisions by outcome (admitted, rejected).",
}, []string{"outcome"})

// ContentBalancerCellsOverCap tracks how many cells exceed their per-cell
// exposure cap at selection time.
var ContentBalancerCellsOverCap = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "cat",
	Subsystem: "content_balancer",
	Name:      "cells_over_cap",
	Help:      "Number of content cells currently over their max-per-cell selection cap.",
})

// ─── Stopping Metrics ───────────────────────────────────────────────────────

// StopReasons tracks quiz terminations by stopping rule (§4.9).
var StopReasons = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "stopping",
	Name:      "decisions_total",
	Help:      "Total quiz-stop decisions by reason.",
}, []string{"reason"})

// RescueCascadeSteps tracks how often each distribution-aware rescue step
// (§4.10) fires.
var RescueCascadeSteps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "convergence",
	Name:      "rescue_cascade_steps_total",
	Help:      "Total rescue-cascade steps taken, by step name.",
}, []string{"step"})

// ─── Ability Estimation Metrics ─────────────────────────────────────────────

// SEMDistribution tracks the standard error of measurement after each
// re-estimation, to watch convergence quality across the learner population.
var SEMDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "cat",
	Subsystem: "ability",
	Name:      "sem",
	Help:      "Standard error of measurement after ability re-estimation.",
	Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.8, 1.0},
})

// LinUCBRejectedRewards tracks reward updates rejected as invalid or
// non-finite (§4.5), which leave the prior model untouched.
var LinUCBRejectedRewards = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "linucb",
	Name:      "rejected_rewards_total",
	Help:      "Total reward computations rejected as invalid or non-finite.",
})

// ─── Trace Metrics ──────────────────────────────────────────────────────────

// TracesRecorded tracks total spans recorded.
var TracesRecorded = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "traces",
	Name:      "spans_recorded_total",
	Help:      "Total trace spans recorded.",
})

// TraceErrors tracks error spans.
var TraceErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "cat",
	Subsystem: "traces",
	Name:      "error_spans_total",
	Help:      "Total trace spans with error status.",
})
