package generic

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(id string, day int, typ EventType) ScheduledEvent {
	return ScheduledEvent{
		ContractID: ContractID(id),
		Event:      NewEvent(NewTimePoint(2025, time.January, 1).AddDays(day), typ),
	}
}

func TestSchedulerHeap_PopsInEventOrder(t *testing.T) {
	h := NewSchedulerHeap()
	h.Push(entry("c", 3, EventIP))
	h.Push(entry("a", 1, EventMD))
	h.Push(entry("b", 1, EventIED))

	var got []ContractID
	for h.Len() > 0 {
		e, ok := h.Pop()
		require.True(t, ok)
		got = append(got, e.ContractID)
	}

	assert.Equal(t, []ContractID{"b", "a", "c"}, got)
	_, ok := h.Pop()
	assert.False(t, ok)
}

func TestSchedulerHeap_PushReplacesContractPointer(t *testing.T) {
	h := NewSchedulerHeap()
	h.Push(entry("a", 10, EventIP))
	h.Push(entry("b", 5, EventIP))
	h.Push(entry("a", 1, EventIP))

	assert.Equal(t, 2, h.Len())
	top, ok := h.Peek()
	require.True(t, ok)
	assert.Equal(t, ContractID("a"), top.ContractID)
	assert.True(t, h.valid())
}

func TestSchedulerHeap_RemoveIsIdempotent(t *testing.T) {
	h := NewSchedulerHeap()
	h.Push(entry("a", 1, EventIP))
	h.Push(entry("b", 2, EventIP))

	assert.True(t, h.Remove("a"))
	assert.False(t, h.Remove("a"))
	assert.False(t, h.Remove("missing"))
	assert.Equal(t, 1, h.Len())
	assert.True(t, h.valid())

	_, ok := h.Get("a")
	assert.False(t, ok)
}

func TestSchedulerHeap_RandomOperationsKeepHeapProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	h := NewSchedulerHeap()

	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("c%d", rng.Intn(50))
		switch rng.Intn(4) {
		case 0, 1:
			h.Push(entry(id, rng.Intn(365), EventType(rng.Intn(len(eventTypeCodes)))))
		case 2:
			h.Remove(ContractID(id))
		case 3:
			h.Pop()
		}
		require.True(t, h.valid(), "heap invalid after op %d", i)
	}

	var prev *ScheduledEvent
	for h.Len() > 0 {
		e, _ := h.Pop()
		if prev != nil {
			assert.False(t, e.less(*prev))
		}
		prev = &e
	}

	h.Push(entry("x", 1, EventIP))
	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.True(t, h.valid())
}
