// Package scheduler implements the multi-level priority queue of spec §4.6:
// a fixed six-level FIFO queue and an adaptive score-ordered queue, sharing
// a common Queue interface so callers can select a mode at construction
// without paying for the unused mode's locking or heap overhead.
//
// The adaptive score formula is modeled on the teacher's
// processors/adaptivesampler.AdaptiveAlgorithm.calculateImportanceScore,
// which blends weighted factors (cost, error rate, variability,
// criticality) into a single urgency number; here the factors are the
// spec's priority/type/cost/wait weights instead of sampling weights.
package scheduler

import (
	"container/heap"
	"sync"
	"time"

	"github.com/database-intelligence/sqlexec/pkg/request"
)

// Queue is the common interface shared by the fixed and adaptive modes.
type Queue interface {
	Push(r *request.Request)
	Pop() (*request.Request, bool)
	Stats() Stats
}

// Stats reports queue depth and wait-time distribution.
type Stats struct {
	// LevelSizes is populated in fixed mode, one entry per priority level.
	LevelSizes []int
	// Size is the adaptive queue's single size (also set in fixed mode as
	// the sum of LevelSizes).
	Size          int
	TotalRequests int64
	AvgWaitMs     float64
	MaxWaitMs     float64
}

// waitTracker accumulates wait-time statistics shared by both modes.
type waitTracker struct {
	mu       sync.Mutex
	total    int64
	sumWaitMs float64
	maxWaitMs float64
}

func (w *waitTracker) record(waitMs float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.total++
	w.sumWaitMs += waitMs
	if waitMs > w.maxWaitMs {
		w.maxWaitMs = waitMs
	}
}

func (w *waitTracker) snapshot() (total int64, avg, max float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.total > 0 {
		avg = w.sumWaitMs / float64(w.total)
	}
	return w.total, avg, w.maxWaitMs
}

// ---- Fixed mode ----

// FixedQueue holds six FIFO sub-queues, one per priority level. Pop
// scans System -> Background and returns the head of the first non-empty
// sub-queue; within a sub-queue, FIFO order is exact.
type FixedQueue struct {
	mu     sync.Mutex
	levels [][]*request.Request
	wait   waitTracker
}

// NewFixedQueue constructs an empty fixed-mode queue.
func NewFixedQueue() *FixedQueue {
	return &FixedQueue{levels: make([][]*request.Request, request.NumPriorities())}
}

// Push appends r to its priority level's sub-queue.
func (q *FixedQueue) Push(r *request.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.levels[int(r.Priority)] = append(q.levels[int(r.Priority)], r)
}

// Pop returns the head of the highest-priority non-empty sub-queue.
func (q *FixedQueue) Pop() (*request.Request, bool) {
	q.mu.Lock()
	var r *request.Request
	for lvl := range q.levels {
		if len(q.levels[lvl]) > 0 {
			r = q.levels[lvl][0]
			q.levels[lvl] = q.levels[lvl][1:]
			break
		}
	}
	q.mu.Unlock()
	if r == nil {
		return nil, false
	}
	q.wait.record(float64(time.Since(r.CreatedAt).Milliseconds()))
	return r, true
}

// Stats returns per-level sizes plus aggregate wait statistics.
func (q *FixedQueue) Stats() Stats {
	q.mu.Lock()
	sizes := make([]int, len(q.levels))
	total := 0
	for i, lvl := range q.levels {
		sizes[i] = len(lvl)
		total += len(lvl)
	}
	q.mu.Unlock()

	reqs, avg, max := q.wait.snapshot()
	return Stats{LevelSizes: sizes, Size: total, TotalRequests: reqs, AvgWaitMs: avg, MaxWaitMs: max}
}

// ---- Adaptive mode ----

// maxWaitFactor bounds the aging discount (spec's wait_factor). The spec's
// raw formula (min(wait_ms/1000, 10)) lets a sufficiently aged Background
// request outscore (and so outrank) a fresh System request — the
// underflow the design notes flag. We clamp the discount to 4, below the
// full 5-level span between System(0) and Background(5), and additionally
// exempt System-priority requests from aging entirely. This bounds how far
// waiting can move a request; it does not keep System first in every case:
// an Admin-priority, Admin-type request that has waited 4s or more scores
// 1 + 0.5 - 4 = -2.5 and is popped ahead of a fresh System-priority,
// System-type request (score 0).
const maxWaitFactor = 4.0

func computeScore(r *request.Request, now time.Time) float64 {
	base := float64(r.Priority)
	typeWeight := request.TypeWeight(r.Type)
	costFactor := minF(float64(r.EstimatedCost)/1000, 5)

	var waitFactor float64
	if r.Priority != request.PrioritySystem {
		waitMs := float64(now.Sub(r.CreatedAt).Milliseconds())
		waitFactor = minF(waitMs/1000, maxWaitFactor)
	}

	return base + typeWeight + costFactor - waitFactor
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// AdaptiveQueue is a single heap-ordered queue using a computed urgency
// score. Lower score pops first; ties are broken arbitrarily (insertion
// order is not preserved). Because the score's wait component changes
// continuously, the heap is rebuilt with fresh scores immediately before
// each Pop rather than incrementally repaired on every tick.
type AdaptiveQueue struct {
	mu    sync.Mutex
	items []*request.Request
	wait  waitTracker
}

// NewAdaptiveQueue constructs an empty adaptive-mode queue.
func NewAdaptiveQueue() *AdaptiveQueue {
	return &AdaptiveQueue{}
}

// Push adds r to the queue.
func (q *AdaptiveQueue) Push(r *request.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
}

// Pop recomputes every pending item's score against the current time,
// heapifies, and returns the most urgent (lowest-score) item.
func (q *AdaptiveQueue) Pop() (*request.Request, bool) {
	q.mu.Lock()
	if len(q.items) == 0 {
		q.mu.Unlock()
		return nil, false
	}
	now := time.Now()
	scores := make(map[*request.Request]float64, len(q.items))
	for _, r := range q.items {
		scores[r] = computeScore(r, now)
	}
	h := &scoreHeap{items: append([]*request.Request(nil), q.items...), scores: scores}
	heap.Init(h)
	r := heap.Pop(h).(*request.Request)

	// Remove r from the live slice (by identity) and keep the rest as-is;
	// they will be rescored on the next Pop.
	remaining := make([]*request.Request, 0, len(q.items)-1)
	for _, item := range q.items {
		if item != r {
			remaining = append(remaining, item)
		}
	}
	q.items = remaining
	q.mu.Unlock()

	q.wait.record(float64(now.Sub(r.CreatedAt).Milliseconds()))
	return r, true
}

// Stats returns the adaptive queue's size and aggregate wait statistics.
func (q *AdaptiveQueue) Stats() Stats {
	q.mu.Lock()
	size := len(q.items)
	q.mu.Unlock()

	reqs, avg, max := q.wait.snapshot()
	return Stats{Size: size, TotalRequests: reqs, AvgWaitMs: avg, MaxWaitMs: max}
}

// scoreHeap implements container/heap.Interface. Go's container/heap is a
// min-heap by Less; we want smallest-score-first, which is exactly a
// min-heap, so no reversal is needed here (reversal is only needed when a
// max-heap must emulate a min-heap, which the design notes warn about for
// implementations that only expose a max-heap primitive).
type scoreHeap struct {
	items  []*request.Request
	scores map[*request.Request]float64
}

func (h scoreHeap) Len() int { return len(h.items) }
func (h scoreHeap) Less(i, j int) bool {
	return h.scores[h.items[i]] < h.scores[h.items[j]]
}
func (h scoreHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *scoreHeap) Push(x any) {
	h.items = append(h.items, x.(*request.Request))
}

func (h *scoreHeap) Pop() any {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
