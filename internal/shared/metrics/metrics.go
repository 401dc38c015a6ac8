package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal    atomic.Uint64
	runsCompletedTotal  atomic.Uint64
	renderWarningsTotal atomic.Uint64
	templatesSavedTotal atomic.Uint64
	runsRejectedBusy    atomic.Uint64
	runsFailedTotal     = newLabeledCounter()
	parseDuration       = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
	renderDuration      = newHistogram([]float64{1, 5, 10, 25, 50, 100, 250, 1000})
)

// IncRunStarted increments the started counter.
func IncRunStarted() {
	runsStartedTotal.Add(1)
}

// IncRunCompleted increments the completed counter.
func IncRunCompleted() {
	runsCompletedTotal.Add(1)
}

// IncRunFailed increments the failed counter for an error kind.
func IncRunFailed(kind string) {
	runsFailedTotal.Inc(kind)
}

// IncRunBusy counts submissions rejected while another run was in flight.
func IncRunBusy() {
	runsRejectedBusy.Add(1)
}

// AddRenderWarnings counts non-fatal render problems.
func AddRenderWarnings(n int) {
	if n > 0 {
		renderWarningsTotal.Add(uint64(n))
	}
}

// AddTemplatesSaved counts templates written by uploads and imports.
func AddTemplatesSaved(n int) {
	if n > 0 {
		templatesSavedTotal.Add(uint64(n))
	}
}

// ObserveParseDurationMs records a parser call duration in milliseconds.
func ObserveParseDurationMs(value float64) {
	parseDuration.Observe(clamp(value))
}

// ObserveRenderDurationMs records a render duration in milliseconds.
func ObserveRenderDurationMs(value float64) {
	renderDuration.Observe(clamp(value))
}

func clamp(value float64) float64 {
	if value < 0 {
		return 0
	}
	return value
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "runs_started_total", "Total resume runs started", runsStartedTotal.Load())
	writeCounter(&buf, "runs_completed_total", "Total resume runs completed", runsCompletedTotal.Load())
	writeLabeledCounter(&buf, "runs_failed_total", "Total resume runs failed by error kind", "kind", runsFailedTotal.Snapshot())
	writeCounter(&buf, "runs_rejected_busy_total", "Submissions rejected while a run was in flight", runsRejectedBusy.Load())
	writeCounter(&buf, "render_warnings_total", "Non-fatal template render problems", renderWarningsTotal.Load())
	writeCounter(&buf, "templates_saved_total", "Templates written by uploads and imports", templatesSavedTotal.Load())
	writeHistogram(&buf, "parse_duration_ms", "Parser endpoint call duration in milliseconds", parseDuration.Snapshot())
	writeHistogram(&buf, "render_duration_ms", "Template render duration in milliseconds", renderDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	values map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{values: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.values[label]++
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.values))
	for k, v := range l.values {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket it fits; writeHistogram
// accumulates the per-bucket counts.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
