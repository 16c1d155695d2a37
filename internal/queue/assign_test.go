package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAssigner_HashIsStableForSameKey(t *testing.T) {
	a := newAssigner(AssignHash, 8)
	first := a.assign("pkg/foo", 1)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, a.assign("pkg/foo", 1))
	}
}

func TestAssigner_RoundRobinRotates(t *testing.T) {
	a := newAssigner(AssignRoundRobin, 4)
	seen := map[int]bool{}
	for i := 0; i < 4; i++ {
		seen[a.assign("ignored", 1)] = true
	}
	assert.Len(t, seen, 4)
}

func TestAssigner_PriorityBandedSeparatesHighFromNormal(t *testing.T) {
	a := newAssigner(AssignPriorityBanded, 8)
	high := a.assign("same-key", highPriorityThreshold)
	normal := a.assign("same-key", 1)
	assert.Less(t, high, a.highPriorityPartitions)
	assert.GreaterOrEqual(t, normal, a.highPriorityPartitions)
}

func TestHashKey_Deterministic(t *testing.T) {
	assert.Equal(t, hashKey("abc"), hashKey("abc"))
	assert.NotEqual(t, hashKey("abc"), hashKey("abcd"))
}
