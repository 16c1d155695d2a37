package checkpoint

import "sync"

// ordinalAllocator maps entity ids to dense uint32 ordinals and back,
// letting checkpoint membership be stored as a compact roaring bitmap
// (spec §4.11) instead of a string set.
type ordinalAllocator struct {
	mu        sync.RWMutex
	idToOrd   map[string]uint32
	ordToID   []string
}

func newOrdinalAllocator() *ordinalAllocator {
	return &ordinalAllocator{idToOrd: make(map[string]uint32)}
}

// ordinal returns id's ordinal, assigning a new one on first sight.
func (a *ordinalAllocator) ordinal(id string) uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if ord, ok := a.idToOrd[id]; ok {
		return ord
	}
	ord := uint32(len(a.ordToID))
	a.idToOrd[id] = ord
	a.ordToID = append(a.ordToID, id)
	return ord
}

// id resolves an ordinal back to its entity id.
func (a *ordinalAllocator) id(ord uint32) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(ord) >= len(a.ordToID) {
		return "", false
	}
	return a.ordToID[ord], true
}
