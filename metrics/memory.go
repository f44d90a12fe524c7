package metrics

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/goliatone/go-message-intake/core"
)

// MemoryRecorder is a process-local metrics sink: counters and histogram
// summaries keyed by metric name plus sorted tags. Snapshots feed the
// debug endpoint for external scraping.
type MemoryRecorder struct {
	mu         sync.Mutex
	counters   map[string]int64
	histograms map[string]*histogramSummary
}

type histogramSummary struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

type CounterSnapshot struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

type HistogramSnapshot struct {
	Key   string  `json:"key"`
	Count int64   `json:"count"`
	Sum   float64 `json:"sum"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

type Snapshot struct {
	Counters   []CounterSnapshot   `json:"counters"`
	Histograms []HistogramSnapshot `json:"histograms"`
}

func NewMemoryRecorder() *MemoryRecorder {
	return &MemoryRecorder{
		counters:   map[string]int64{},
		histograms: map[string]*histogramSummary{},
	}
}

func (r *MemoryRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil {
		return
	}
	key := metricKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counters[key] += value
}

func (r *MemoryRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	key := metricKey(name, tags)
	r.mu.Lock()
	defer r.mu.Unlock()
	summary, ok := r.histograms[key]
	if !ok {
		summary = &histogramSummary{Min: value, Max: value}
		r.histograms[key] = summary
	}
	summary.Count++
	summary.Sum += value
	if value < summary.Min {
		summary.Min = value
	}
	if value > summary.Max {
		summary.Max = value
	}
}

// CounterValue returns the current value for a metric name plus tags.
// Zero when the counter has never been incremented.
func (r *MemoryRecorder) CounterValue(name string, tags map[string]string) int64 {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[metricKey(name, tags)]
}

func (r *MemoryRecorder) Snapshot() Snapshot {
	snapshot := Snapshot{
		Counters:   []CounterSnapshot{},
		Histograms: []HistogramSnapshot{},
	}
	if r == nil {
		return snapshot
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, value := range r.counters {
		snapshot.Counters = append(snapshot.Counters, CounterSnapshot{Key: key, Value: value})
	}
	for key, summary := range r.histograms {
		snapshot.Histograms = append(snapshot.Histograms, HistogramSnapshot{
			Key:   key,
			Count: summary.Count,
			Sum:   summary.Sum,
			Min:   summary.Min,
			Max:   summary.Max,
		})
	}
	sort.Slice(snapshot.Counters, func(i, j int) bool {
		return snapshot.Counters[i].Key < snapshot.Counters[j].Key
	})
	sort.Slice(snapshot.Histograms, func(i, j int) bool {
		return snapshot.Histograms[i].Key < snapshot.Histograms[j].Key
	})
	return snapshot
}

func metricKey(name string, tags map[string]string) string {
	name = strings.TrimSpace(name)
	if len(tags) == 0 {
		return name
	}
	keys := make([]string, 0, len(tags))
	for key := range tags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, key+"="+tags[key])
	}
	return name + "{" + strings.Join(pairs, ",") + "}"
}

var _ core.MetricsRecorder = (*MemoryRecorder)(nil)
