package core

import "context"

// NopMetricsRecorder discards intake metrics. It is the sink a Service
// falls back to when built without WithMetricsRecorder, so ingestion and
// read operations never have to nil-check before emitting.
type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

var _ MetricsRecorder = NopMetricsRecorder{}
