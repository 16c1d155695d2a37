package queue

import (
	"hash/fnv"
	"sync/atomic"
)

// AssignStrategy is one of the three partition-assignment policies
// from spec §4.4.
type AssignStrategy uint8

const (
	// AssignHash hashes the partition key modulo N, so all work for
	// one module serializes end-to-end (the default).
	AssignHash AssignStrategy = iota
	// AssignRoundRobin rotates strictly across partitions when
	// fairness dominates over locality.
	AssignRoundRobin
	// AssignPriorityBanded routes high-priority tasks to a reserved
	// lane of partitions, separate from normal-priority lanes.
	AssignPriorityBanded
)

// assigner picks a partition index for a task.
type assigner struct {
	strategy      AssignStrategy
	n             int
	rrCounter     uint64
	highPriorityPartitions int // how many of the N partitions (from index 0) are the high-priority band
}

func newAssigner(strategy AssignStrategy, n int) *assigner {
	band := n / 4
	if band < 1 {
		band = 1
	}
	return &assigner{strategy: strategy, n: n, highPriorityPartitions: band}
}

// highPriorityThreshold is the inclusive priority floor that routes a
// task into the priority-banded lane.
const highPriorityThreshold = 8

func (a *assigner) assign(partitionKey string, priority int) int {
	switch a.strategy {
	case AssignRoundRobin:
		idx := atomic.AddUint64(&a.rrCounter, 1) - 1
		return int(idx % uint64(a.n))
	case AssignPriorityBanded:
		if priority >= highPriorityThreshold {
			return int(hashKey(partitionKey) % uint64(a.highPriorityPartitions))
		}
		remaining := a.n - a.highPriorityPartitions
		if remaining < 1 {
			remaining = a.n
		}
		return a.highPriorityPartitions + int(hashKey(partitionKey)%uint64(remaining))
	default: // AssignHash
		return int(hashKey(partitionKey) % uint64(a.n))
	}
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
