package metrics

import (
	"sync"
	"time"
)

const MAX_TREND_DATA_POINTS = 100

type TrendKind string

const TREND_RUN_DURATION TrendKind = "run_duration_seconds"
const TREND_THROUGHPUT TrendKind = "transitions_per_second"
const TREND_MEMORY TrendKind = "memory_bytes"
const TREND_COST TrendKind = "cost_usd"
const TREND_TOKEN_EFFICIENCY TrendKind = "tokens_per_transition"

type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

// ResourceTrends keeps the most recent points per trend. The oldest point is dropped first.
type ResourceTrends struct {
	mu        sync.Mutex
	maxPoints int
	series    map[TrendKind][]TrendPoint
}

func NewResourceTrends(maxPoints int) *ResourceTrends {
	if maxPoints <= 0 {
		maxPoints = MAX_TREND_DATA_POINTS
	}
	return &ResourceTrends{
		maxPoints: maxPoints,
		series:    make(map[TrendKind][]TrendPoint),
	}
}

func (t *ResourceTrends) Add(kind TrendKind, value float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	points := append(t.series[kind], TrendPoint{Timestamp: time.Now(), Value: value})
	if len(points) > t.maxPoints {
		points = points[len(points)-t.maxPoints:]
	}
	t.series[kind] = points
}

func (t *ResourceTrends) Points(kind TrendKind) []TrendPoint {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TrendPoint(nil), t.series[kind]...)
}

func (t *ResourceTrends) Average(kind TrendKind) float64 {
	points := t.Points(kind)
	if len(points) == 0 {
		return 0
	}
	sum := 0.0
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}
