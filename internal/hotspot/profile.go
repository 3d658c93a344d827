package hotspot

import (
	"container/heap"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Profile accumulates code unit occurrence counts under concurrent writes
// while tracking at most a fixed number of distinct keys. Below capacity,
// counting is exact. At capacity an unseen key displaces the tracked key
// with the minimum count and inherits that count plus one, in the manner of
// the Space-Saving sketch (Metwally et al.): hot keys survive, the per-key
// error is bounded by the displaced count, and the sum of tracked counts
// always equals the number of samples recorded.
type Profile struct {
	capacity int
	tab      atomic.Pointer[table]
}

// table is one accumulation epoch: the tracked entries plus the counters
// describing them. Clear swaps the whole table, so a sample racing with
// Clear lands entirely in one epoch.
type table struct {
	mu        sync.RWMutex
	entries   map[Key]*entry
	total     atomic.Int64
	evictions atomic.Int64
}

type entry struct {
	key   Key
	count atomic.Int64
}

// Entry is one ranked row of a Snapshot: a tracked key and its count.
type Entry struct {
	Key   Key
	Count int64
}

// Snapshot is a point-in-time view of the profile: the epoch counters plus
// the ranked top entries.
type Snapshot struct {
	Taken     time.Time
	Total     int64
	Evictions int64
	Size      int
	Capacity  int
	Entries   []Entry
}

// New creates a Profile tracking at most capacity distinct keys. The
// capacity is fixed for the profile's lifetime.
func New(capacity int) (*Profile, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: capacity must be at least 1, got %d", ErrInvalidArgument, capacity)
	}
	p := &Profile{capacity: capacity}
	p.tab.Store(newTable(capacity))
	return p, nil
}

func newTable(capacity int) *table {
	return &table{entries: make(map[Key]*entry, capacity)}
}

// AddSample records one observation of key and reports whether the key was
// newly admitted to the tracked set. Incrementing an already tracked key
// costs one atomic add under the read lock; only admissions and
// displacements take the write lock.
func (p *Profile) AddSample(key Key) (bool, error) {
	if !key.valid() {
		return false, fmt.Errorf("%w: sample key must have type and signature", ErrInvalidArgument)
	}
	t := p.tab.Load()

	t.mu.RLock()
	if e, ok := t.entries[key]; ok {
		// Total first: a snapshot racing with this increment may count the
		// sample in Total before it lands on the key, but never observes
		// tracked counts summing past Total.
		t.total.Add(1)
		e.count.Add(1)
		t.mu.RUnlock()
		return false, nil
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	// Another writer may have admitted the key between the two locks.
	if e, ok := t.entries[key]; ok {
		t.total.Add(1)
		e.count.Add(1)
		return false, nil
	}

	count := int64(1)
	if len(t.entries) >= p.capacity {
		victim := t.minLocked()
		delete(t.entries, victim.key)
		// The newcomer inherits the displaced count plus its own
		// observation, keeping the sum of tracked counts equal to Total.
		count = victim.count.Load() + 1
		t.evictions.Add(1)
	}
	e := &entry{key: key}
	e.count.Store(count)
	t.entries[key] = e
	t.total.Add(1)
	return true, nil
}

// minLocked returns the entry with the smallest count, breaking ties toward
// the key greatest in natural order so that the currently worst-ranked entry
// is the one displaced. Callers must hold the write lock, which quiesces all
// counter updates.
func (t *table) minLocked() *entry {
	var min *entry
	var minCount int64
	for _, e := range t.entries {
		c := e.count.Load()
		switch {
		case min == nil, c < minCount:
			min, minCount = e, c
		case c == minCount && e.key.Compare(min.key) > 0:
			min = e
		}
	}
	return min
}

// Occurrences returns the exact count recorded for key, or 0 when the key is
// not tracked. A displaced key is indistinguishable from one never observed.
func (p *Profile) Occurrences(key Key) int64 {
	t := p.tab.Load()
	t.mu.RLock()
	e, ok := t.entries[key]
	t.mu.RUnlock()
	if !ok {
		return 0
	}
	return e.count.Load()
}

// Total returns the number of samples recorded since construction or the
// last Clear.
func (p *Profile) Total() int64 {
	return p.tab.Load().total.Load()
}

// Size returns the number of distinct keys currently tracked.
func (p *Profile) Size() int {
	t := p.tab.Load()
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// Capacity returns the maximum number of distinct keys tracked at once.
func (p *Profile) Capacity() int {
	return p.capacity
}

// Evictions returns how many displacements have occurred since construction
// or the last Clear. A non-zero value means some counts were folded into
// replacement keys.
func (p *Profile) Evictions() int64 {
	return p.tab.Load().evictions.Load()
}

// Top returns up to min(k, Size) tracked keys ordered by descending count,
// with ties ordered by ascending natural key order. A k of 0 yields an empty
// result; a negative k is an error.
func (p *Profile) Top(k int) ([]Key, error) {
	if k < 0 {
		return nil, fmt.Errorf("%w: negative ranking limit %d", ErrInvalidArgument, k)
	}
	if k == 0 {
		return nil, nil
	}
	t := p.tab.Load()
	t.mu.RLock()
	entries := t.topLocked(k)
	t.mu.RUnlock()

	keys := make([]Key, len(entries))
	for i, e := range entries {
		keys[i] = e.Key
	}
	return keys, nil
}

// Snapshot captures the current epoch's counters together with its top k
// entries in one pass under a single lock acquisition.
func (p *Profile) Snapshot(k int) (Snapshot, error) {
	if k < 0 {
		return Snapshot{}, fmt.Errorf("%w: negative ranking limit %d", ErrInvalidArgument, k)
	}
	t := p.tab.Load()
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := Snapshot{
		Taken:    time.Now(),
		Size:     len(t.entries),
		Capacity: p.capacity,
	}
	if k > 0 {
		snap.Entries = t.topLocked(k)
	}
	// Counts are read before Total, mirroring the writer's Total-then-count
	// order: every increment visible in Entries is covered by this later
	// load, so the entry counts never sum past Total.
	snap.Total = t.total.Load()
	snap.Evictions = t.evictions.Load()
	return snap, nil
}

// Clear discards all tracked keys and counters by swapping in a fresh epoch
// with the same capacity.
func (p *Profile) Clear() {
	p.tab.Store(newTable(p.capacity))
}

// topLocked selects the k highest-ranked entries without sorting the whole
// table: a size-k min-heap keeps the best entries seen so far, with the
// weakest of them at the root. Callers must hold at least the read lock.
func (t *table) topLocked(k int) []Entry {
	h := make(rankHeap, 0, min(k, len(t.entries)))
	for _, e := range t.entries {
		cand := Entry{Key: e.key, Count: e.count.Load()}
		if len(h) < k {
			heap.Push(&h, cand)
			continue
		}
		if cand.better(h[0]) {
			h[0] = cand
			heap.Fix(&h, 0)
		}
	}
	out := make([]Entry, len(h))
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&h).(Entry)
	}
	return out
}

// better reports whether e ranks ahead of other: higher count first, natural
// key order breaking ties.
func (e Entry) better(other Entry) bool {
	if e.Count != other.Count {
		return e.Count > other.Count
	}
	return e.Key.Compare(other.Key) < 0
}

// rankHeap is a min-heap by rank; the root is the weakest entry kept.
type rankHeap []Entry

func (h rankHeap) Len() int           { return len(h) }
func (h rankHeap) Less(i, j int) bool { return h[j].better(h[i]) }
func (h rankHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *rankHeap) Push(x any) {
	*h = append(*h, x.(Entry))
}

func (h *rankHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
