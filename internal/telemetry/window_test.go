package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWindow_MetricsEmptyWhenNoSamples(t *testing.T) {
	w := NewWindow(10)
	m := w.Metrics()
	assert.Equal(t, 0, m.Count)
}

func TestWindow_ComputesDerivedMetrics(t *testing.T) {
	w := NewWindow(10)
	for i := 1; i <= 10; i++ {
		w.Record(time.Duration(i) * time.Millisecond)
	}
	m := w.Metrics()
	assert.Equal(t, 10, m.Count)
	assert.Equal(t, time.Millisecond, m.Min)
	assert.Equal(t, 10*time.Millisecond, m.Max)
	assert.True(t, m.P95 >= m.P50)
}

func TestWindow_OverwritesOldestOnceFull(t *testing.T) {
	w := NewWindow(3)
	w.Record(1 * time.Millisecond)
	w.Record(2 * time.Millisecond)
	w.Record(3 * time.Millisecond)
	w.Record(100 * time.Millisecond) // overwrites the 1ms sample

	m := w.Metrics()
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 2*time.Millisecond, m.Min)
	assert.Equal(t, 100*time.Millisecond, m.Max)
}
