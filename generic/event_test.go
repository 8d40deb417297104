package generic_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/actus-engine/generic"
)

func TestEventType_PriorityOrder(t *testing.T) {
	order := []string{
		"IED", "IPCI", "IP", "FP", "PR", "PD", "PRF", "PY", "PP", "PRD", "TD",
		"CE", "RRF", "RR", "DV", "IPCB", "MR", "XD", "STD", "MD", "SC", "AD",
	}
	all := generic.AllEventTypes()
	require.Len(t, all, len(order))
	for i, code := range order {
		assert.Equal(t, code, all[i].String())
		assert.Equal(t, i, all[i].Priority())
		parsed, err := generic.ParseEventType(code)
		require.NoError(t, err)
		assert.Equal(t, all[i], parsed)
	}

	_, err := generic.ParseEventType("XX")
	assert.Error(t, err)
}

func TestEvent_OrderByTimeThenPriority(t *testing.T) {
	// GIVEN: events inserted in arbitrary order, two of them at the same time
	// WHEN: sorting
	// THEN: time decides first, type priority breaks ties

	day := date(2025, time.January, 1)
	events := []generic.Event{
		generic.NewEvent(day, generic.EventMD),
		generic.NewEvent(day.AddDays(-30), generic.EventRR),
		generic.NewEvent(day, generic.EventIP),
		generic.NewEvent(day, generic.EventFP),
		generic.NewEvent(day.AddDays(-60), generic.EventIED),
	}

	generic.SortEvents(events)

	assert.Equal(t, []generic.EventType{
		generic.EventIED, generic.EventRR, generic.EventIP, generic.EventFP, generic.EventMD,
	}, []generic.EventType{events[0].Type, events[1].Type, events[2].Type, events[3].Type, events[4].Type})
	assert.True(t, events[2].Before(events[3]))
	assert.Equal(t, 0, events[4].Compare(generic.NewEvent(day, generic.EventMD)))
}

func TestEvent_JSON(t *testing.T) {
	data, err := json.Marshal(generic.NewEvent(date(2025, time.January, 1), generic.EventIPCI))
	require.NoError(t, err)
	assert.JSONEq(t, `{"time":"2025-01-01T00:00:00","type":"IPCI"}`, string(data))

	var ev generic.Event
	require.NoError(t, json.Unmarshal(data, &ev))
	assert.Equal(t, generic.EventIPCI, ev.Type)
}
