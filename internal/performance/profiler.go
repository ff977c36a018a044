// Package performance aggregates wall-clock timings for the server's hot
// paths: the streaming tick, chunk generation, and WebSocket message
// handling.
package performance

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

// Profiler collects per-operation timing aggregates. Operation names are
// dot-scoped by subsystem, e.g. "streaming.tick" for the world update loop
// and "ws.player_move" for WebSocket movement handling. The admin API
// exposes the aggregates and resets them between measurement windows.
type Profiler struct {
	mu        sync.RWMutex
	enabled   bool
	startedAt time.Time
	metrics   map[string]*Metric
}

// Metric is the timing aggregate for one named operation.
type Metric struct {
	Name     string
	Count    int64
	Total    time.Duration
	Min      time.Duration
	Max      time.Duration
	Last     time.Duration
	LastCall time.Time
}

// Average returns the mean duration across all recorded calls.
func (m *Metric) Average() time.Duration {
	if m.Count == 0 {
		return 0
	}
	return m.Total / time.Duration(m.Count)
}

// Operation times one in-flight call; End records it. The nil Operation a
// disabled profiler hands out is safe to End.
type Operation struct {
	profiler *Profiler
	name     string
	start    time.Time
}

// NewProfiler creates a profiler, enabled or not.
func NewProfiler(enabled bool) *Profiler {
	return &Profiler{
		enabled:   enabled,
		startedAt: time.Now(),
		metrics:   make(map[string]*Metric),
	}
}

// Start begins timing one call of the named operation.
func (p *Profiler) Start(name string) *Operation {
	if !p.IsEnabled() {
		return nil
	}
	return &Operation{profiler: p, name: name, start: time.Now()}
}

// End records the elapsed time since Start.
func (o *Operation) End() {
	if o == nil {
		return
	}
	o.profiler.Record(o.name, time.Since(o.start))
}

// Record folds one measurement into the aggregate for name. Callers that
// already know the duration, like the tick loop, use this directly.
func (p *Profiler) Record(name string, duration time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.enabled {
		return
	}

	metric, ok := p.metrics[name]
	if !ok {
		metric = &Metric{Name: name, Min: duration, Max: duration}
		p.metrics[name] = metric
	}

	metric.Count++
	metric.Total += duration
	metric.Last = duration
	metric.LastCall = time.Now()
	if duration < metric.Min {
		metric.Min = duration
	}
	if duration > metric.Max {
		metric.Max = duration
	}
}

// GetMetric returns a copy of the aggregate for name, or nil when nothing
// has been recorded under it.
func (p *Profiler) GetMetric(name string) *Metric {
	p.mu.RLock()
	defer p.mu.RUnlock()

	metric, ok := p.metrics[name]
	if !ok {
		return nil
	}
	snapshot := *metric
	return &snapshot
}

// Snapshot returns copies of all aggregates sorted by total time spent,
// most expensive operation first.
func (p *Profiler) Snapshot() []Metric {
	p.mu.RLock()
	defer p.mu.RUnlock()

	result := make([]Metric, 0, len(p.metrics))
	for _, metric := range p.metrics {
		result = append(result, *metric)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Total > result[j].Total
	})
	return result
}

// Reset drops all aggregates and restarts the measurement window.
func (p *Profiler) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.metrics = make(map[string]*Metric)
	p.startedAt = time.Now()
}

// Enable turns measurement collection on.
func (p *Profiler) Enable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = true
}

// Disable turns measurement collection off. Existing aggregates stay
// readable.
func (p *Profiler) Disable() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = false
}

// IsEnabled reports whether measurements are being collected.
func (p *Profiler) IsEnabled() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.enabled
}

// Report renders the aggregates as an aligned text table. Durations are
// rounded to microseconds; a healthy tick is well under a millisecond and
// millisecond rounding would flatten it to zero.
func (p *Profiler) Report() string {
	snapshot := p.Snapshot()
	if len(snapshot) == 0 {
		return "No performance metrics recorded"
	}

	p.mu.RLock()
	startedAt := p.startedAt
	p.mu.RUnlock()

	var b strings.Builder
	fmt.Fprintf(&b, "\n=== Performance Report (since %s) ===\n", startedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "%-32s %8s %12s %12s %12s %12s\n", "Operation", "Count", "Avg", "Min", "Max", "Last")
	for _, metric := range snapshot {
		fmt.Fprintf(&b, "%-32s %8d %12s %12s %12s %12s\n",
			metric.Name,
			metric.Count,
			metric.Average().Round(time.Microsecond),
			metric.Min.Round(time.Microsecond),
			metric.Max.Round(time.Microsecond),
			metric.Last.Round(time.Microsecond),
		)
	}
	fmt.Fprintf(&b, "Window: %s\n", time.Since(startedAt).Round(time.Second))
	return b.String()
}

// LogReport writes the text report through the standard logger.
func (p *Profiler) LogReport() {
	log.Print(p.Report())
}

// JSONReport renders the aggregates for the admin API. Durations go out as
// fractional milliseconds so sub-millisecond tick times survive.
func (p *Profiler) JSONReport() ([]byte, error) {
	type metricJSON struct {
		Name     string    `json:"name"`
		Count    int64     `json:"count"`
		AvgMS    float64   `json:"avg_ms"`
		MinMS    float64   `json:"min_ms"`
		MaxMS    float64   `json:"max_ms"`
		LastMS   float64   `json:"last_ms"`
		TotalMS  float64   `json:"total_ms"`
		LastCall time.Time `json:"last_call"`
	}
	type reportJSON struct {
		StartedAt time.Time    `json:"started_at"`
		WindowMS  float64      `json:"window_ms"`
		Metrics   []metricJSON `json:"metrics"`
	}

	snapshot := p.Snapshot()
	p.mu.RLock()
	startedAt := p.startedAt
	p.mu.RUnlock()

	ms := func(d time.Duration) float64 {
		return float64(d) / float64(time.Millisecond)
	}

	report := reportJSON{
		StartedAt: startedAt,
		WindowMS:  ms(time.Since(startedAt)),
		Metrics:   make([]metricJSON, 0, len(snapshot)),
	}
	for _, metric := range snapshot {
		report.Metrics = append(report.Metrics, metricJSON{
			Name:     metric.Name,
			Count:    metric.Count,
			AvgMS:    ms(metric.Average()),
			MinMS:    ms(metric.Min),
			MaxMS:    ms(metric.Max),
			LastMS:   ms(metric.Last),
			TotalMS:  ms(metric.Total),
			LastCall: metric.LastCall,
		})
	}

	return json.MarshalIndent(report, "", "  ")
}
