package generic

import "container/heap"

// =============================================================================
// SCHEDULER HEAP - Earliest pending event across all live contracts
// =============================================================================

// ContractID identifies a deployed contract.
type ContractID string

// ScheduledEvent is the pointer a scheduler keeps per live contract: the
// contract's next pending event and its index in the contract schedule.
type ScheduledEvent struct {
	ContractID ContractID `json:"contract_id"`
	Event      Event      `json:"event"`
	Index      int        `json:"index"`
}

// less orders by event, then by contract ID so ties are deterministic.
func (s ScheduledEvent) less(other ScheduledEvent) bool {
	if c := s.Event.Compare(other.Event); c != 0 {
		return c < 0
	}
	return s.ContractID < other.ContractID
}

// SchedulerHeap is a min-heap of ScheduledEvent holding at most one entry per
// contract. It is not safe for concurrent use; the scheduler guards it.
type SchedulerHeap struct {
	q entries
}

// NewSchedulerHeap returns an empty heap.
func NewSchedulerHeap() *SchedulerHeap {
	return &SchedulerHeap{q: entries{index: make(map[ContractID]int)}}
}

func (h *SchedulerHeap) Len() int { return len(h.q.items) }

// Push inserts entry, replacing any pointer already held for the contract.
func (h *SchedulerHeap) Push(entry ScheduledEvent) {
	if i, ok := h.q.index[entry.ContractID]; ok {
		h.q.items[i] = entry
		heap.Fix(&h.q, i)
		return
	}
	heap.Push(&h.q, entry)
}

// Peek returns the earliest entry without removing it.
func (h *SchedulerHeap) Peek() (ScheduledEvent, bool) {
	if len(h.q.items) == 0 {
		return ScheduledEvent{}, false
	}
	return h.q.items[0], true
}

// Pop removes and returns the earliest entry.
func (h *SchedulerHeap) Pop() (ScheduledEvent, bool) {
	if len(h.q.items) == 0 {
		return ScheduledEvent{}, false
	}
	return heap.Pop(&h.q).(ScheduledEvent), true
}

// Remove drops the contract's pointer. Removing an absent contract is a
// no-op that returns false.
func (h *SchedulerHeap) Remove(id ContractID) bool {
	i, ok := h.q.index[id]
	if !ok {
		return false
	}
	heap.Remove(&h.q, i)
	return true
}

// Get returns the pointer held for id.
func (h *SchedulerHeap) Get(id ContractID) (ScheduledEvent, bool) {
	i, ok := h.q.index[id]
	if !ok {
		return ScheduledEvent{}, false
	}
	return h.q.items[i], true
}

// Entries returns a copy of the heap contents in heap order.
func (h *SchedulerHeap) Entries() []ScheduledEvent {
	out := make([]ScheduledEvent, len(h.q.items))
	copy(out, h.q.items)
	return out
}

// Clear empties the heap.
func (h *SchedulerHeap) Clear() {
	h.q.items = nil
	h.q.index = make(map[ContractID]int)
}

// valid checks the heap property and the position index.
func (h *SchedulerHeap) valid() bool {
	for i := range h.q.items {
		if h.q.index[h.q.items[i].ContractID] != i {
			return false
		}
		for _, child := range []int{2*i + 1, 2*i + 2} {
			if child < len(h.q.items) && h.q.items[child].less(h.q.items[i]) {
				return false
			}
		}
	}
	return len(h.q.index) == len(h.q.items)
}

// entries implements heap.Interface and keeps a position index so Remove and
// Push-replace are logarithmic.
type entries struct {
	items []ScheduledEvent
	index map[ContractID]int
}

func (q entries) Len() int           { return len(q.items) }
func (q entries) Less(i, j int) bool { return q.items[i].less(q.items[j]) }

func (q entries) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.index[q.items[i].ContractID] = i
	q.index[q.items[j].ContractID] = j
}

func (q *entries) Push(x any) {
	entry := x.(ScheduledEvent)
	q.index[entry.ContractID] = len(q.items)
	q.items = append(q.items, entry)
}

func (q *entries) Pop() any {
	n := len(q.items)
	entry := q.items[n-1]
	q.items = q.items[:n-1]
	delete(q.index, entry.ContractID)
	return entry
}
