// Package resolve implements C3: a per-file token-bucket budget that
// gates expensive semantic (cross-file) type resolution lookups
// (spec §4.3).
//
// The gating shape — consult the (more expensive) semantic resolver
// only when a name crosses file boundaries or is ambiguous — recurs
// throughout the teacher's internal/symbollinker/*_resolver.go family;
// this package makes that gate an explicit, reusable policy instead
// of ad-hoc per-resolver checks.
package resolve

import "sync/atomic"

const (
	// DefaultCap is the budget's default starting token count.
	DefaultCap = 50
	// HardMax is the absolute ceiling regardless of scaling.
	HardMax = 200
)

// Budget is a per-file token counter. Each expensive semantic lookup
// calls Take(); it returns true iff tokens remain.
type Budget struct {
	remaining int64
}

// NewBudget creates a budget with the given starting cap, clamped to
// [0, HardMax].
func NewBudget(cap int) *Budget {
	if cap < 0 {
		cap = 0
	}
	if cap > HardMax {
		cap = HardMax
	}
	return &Budget{remaining: int64(cap)}
}

// ScaledCap computes a cap scaled upward with file size and
// complexity, never exceeding HardMax (spec §4.3).
func ScaledCap(baseCap int, fileSizeBytes int64, complexity int) int {
	cap := baseCap
	// +1 token per 2KB beyond the first 10KB, +1 per 5 complexity points.
	if fileSizeBytes > 10*1024 {
		cap += int((fileSizeBytes - 10*1024) / (2 * 1024))
	}
	cap += complexity / 5
	if cap > HardMax {
		cap = HardMax
	}
	return cap
}

// Take consumes one token; returns true iff a token was available.
func (b *Budget) Take() bool {
	for {
		cur := atomic.LoadInt64(&b.remaining)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&b.remaining, cur, cur-1) {
			return true
		}
	}
}

// Remaining reports the current token count.
func (b *Budget) Remaining() int {
	return int(atomic.LoadInt64(&b.remaining))
}

// LookupContext describes a candidate semantic lookup site, used by
// ShouldUse to decide whether it is worth spending a budget token on
// (spec §4.3 shouldUse policy).
type LookupContext struct {
	// CrossesFileBoundary is true when the name was imported rather
	// than declared locally.
	CrossesFileBoundary bool
	// Ambiguous is true when the name index has more than one
	// candidate for this name.
	Ambiguous bool
	// NameLength is the length of the identifier being resolved.
	NameLength int
	// MinNameLength is the configured minimum identifier length worth
	// resolving semantically (very short names are usually noise).
	MinNameLength int
}

// ShouldUse gates a lookup on whether the symbol crosses file
// boundaries, is ambiguous under the name index, and whether the
// name's length meets the configured minimum (spec §4.3).
func ShouldUse(ctx LookupContext) bool {
	if ctx.MinNameLength > 0 && ctx.NameLength < ctx.MinNameLength {
		return false
	}
	return ctx.CrossesFileBoundary || ctx.Ambiguous
}

// Use combines ShouldUse and Take: returns true iff the lookup is
// policy-eligible AND a budget token remains.
func (b *Budget) Use(ctx LookupContext) bool {
	if !ShouldUse(ctx) {
		return false
	}
	return b.Take()
}
