package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestThroughput_TracksCumulativeTotal(t *testing.T) {
	th := NewThroughput()
	th.Add(ThroughputFiles, 3)
	th.Add(ThroughputFiles, 2)
	assert.Equal(t, int64(5), th.Total(ThroughputFiles))
}

func TestThroughput_RatesReflectRecentAdds(t *testing.T) {
	th := NewThroughput()
	th.Add(ThroughputEntities, 7)
	rates := th.Rates(ThroughputEntities)
	assert.Equal(t, float64(7), rates.PerSecond)
	assert.Equal(t, float64(7), rates.PerMinute)
}

func TestThroughput_UnknownKindStartsAtZero(t *testing.T) {
	th := NewThroughput()
	assert.Equal(t, int64(0), th.Total(ThroughputBytes))
}
