package metrics

import (
	"testing"
	"time"

	"github.com/mohitkumar/wfhammer/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestResourceTrendsAreBounded(t *testing.T) {
	trends := NewResourceTrends(3)
	for i := 1; i <= 5; i++ {
		trends.Add(TREND_COST, float64(i))
	}
	points := trends.Points(TREND_COST)
	require.Len(t, points, 3)
	require.Equal(t, 3.0, points[0].Value)
	require.Equal(t, 5.0, points[2].Value)
	require.Equal(t, 4.0, trends.Average(TREND_COST))
	require.Empty(t, trends.Points(TREND_MEMORY))
}

func TestWorkflowMetrics(t *testing.T) {
	m := NewWorkflowMetrics(2)
	m.StartRun("r1", "wf")
	m.RecordTransition("r1")
	m.RecordTransition("r1")
	m.RecordStateExecution("r1", "start", 10*time.Millisecond)
	m.RecordStateExecution("r1", "start", 5*time.Millisecond)
	m.UpdateMemory("r1", 2, 4)
	m.CompleteRun("r1", model.COMPLETED, "")

	run, ok := m.RunMetrics("r1")
	require.True(t, ok)
	require.Equal(t, 2, run.TransitionCount)
	require.Equal(t, 15*time.Millisecond, run.StateDurations["start"])
	require.Equal(t, uint64(2*1024+4*256), run.PeakMemory)
	require.Equal(t, model.COMPLETED, run.Status)

	m.StartRun("r2", "wf")
	m.CompleteRun("r2", model.FAILED, "boom")
	m.StartRun("r3", "wf")
	_, ok = m.RunMetrics("r1")
	require.False(t, ok)

	global := m.Global()
	require.Equal(t, 3, global.TotalRuns)
	require.Equal(t, 1, global.CompletedRuns)
	require.Equal(t, 1, global.FailedRuns)
	require.Equal(t, 0.5, global.SuccessRate)
	require.Len(t, m.Trends.Points(TREND_RUN_DURATION), 2)
}

func TestCollector(t *testing.T) {
	registry := prometheus.NewRegistry()
	c, err := NewCollector(registry)
	require.NoError(t, err)

	c.RunStarted("wf")
	c.Transition("wf")
	c.Transition("wf")
	c.RunFinished("wf", "COMPLETED", 0.2)

	require.Equal(t, 1.0, testutil.ToFloat64(c.runsStarted.WithLabelValues("wf")))
	require.Equal(t, 2.0, testutil.ToFloat64(c.transitions.WithLabelValues("wf")))
	require.Equal(t, 0.0, testutil.ToFloat64(c.activeRuns))

	_, err = NewCollector(registry)
	require.Error(t, err)
}
