package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Marketen/validator-client/internal/application/domain"
)

func root(b byte) domain.Root {
	var r domain.Root
	r[0] = b
	return r
}

func TestRecordReorgAppendsInOrder(t *testing.T) {
	tracker := NewReorgTracker()

	tracker.RecordReorg(root(0x01), 100, 90)
	tracker.RecordReorg(root(0x02), 101, 95)

	events := tracker.ReorgEvents()
	require.Len(t, events, 2)
	require.Equal(t, domain.ReorgEvent{BestBlockRoot: root(0x01), BestSlot: 100, CommonAncestorSlot: 90}, events[0])
	require.Equal(t, domain.ReorgEvent{BestBlockRoot: root(0x02), BestSlot: 101, CommonAncestorSlot: 95}, events[1])
}

func TestRecordReorgKeepsStructurallyIdenticalEvents(t *testing.T) {
	tracker := NewReorgTracker()

	for i := 0; i < 3; i++ {
		tracker.RecordReorg(root(0xaa), 50, 40)
		events := tracker.ReorgEvents()
		require.Len(t, events, i+1)
		require.Equal(t, domain.ReorgEvent{BestBlockRoot: root(0xaa), BestSlot: 50, CommonAncestorSlot: 40}, events[len(events)-1])
	}
}

func TestReorgEventsReturnsSnapshot(t *testing.T) {
	tracker := NewReorgTracker()
	tracker.RecordReorg(root(0x01), 10, 5)

	snapshot := tracker.ReorgEvents()
	snapshot[0].BestSlot = 999

	require.Equal(t, domain.Slot(10), tracker.ReorgEvents()[0].BestSlot)
}

func TestEventsSinceAdvancesCursor(t *testing.T) {
	tracker := NewReorgTracker()

	events, cursor := tracker.EventsSince(0)
	require.Empty(t, events)
	require.Equal(t, 0, cursor)

	tracker.RecordReorg(root(0x01), 10, 5)
	tracker.RecordReorg(root(0x02), 11, 6)

	events, cursor = tracker.EventsSince(cursor)
	require.Len(t, events, 2)
	require.Equal(t, 2, cursor)

	tracker.RecordReorg(root(0x03), 12, 7)
	events, cursor = tracker.EventsSince(cursor)
	require.Len(t, events, 1)
	require.Equal(t, root(0x03), events[0].BestBlockRoot)
	require.Equal(t, 3, cursor)

	events, _ = tracker.EventsSince(cursor)
	require.Empty(t, events)
}

func TestNotifySignalsAfterRecord(t *testing.T) {
	tracker := NewReorgTracker()
	tracker.RecordReorg(root(0x01), 10, 5)

	select {
	case <-tracker.Notify():
	default:
		t.Fatal("expected a pending notification after RecordReorg")
	}
}

func TestConcurrentAppendAndSnapshot(t *testing.T) {
	tracker := NewReorgTracker()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				tracker.RecordReorg(root(byte(i)), domain.Slot(j), domain.Slot(j/2))
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = tracker.ReorgEvents()
			}
		}()
	}
	wg.Wait()

	require.Len(t, tracker.ReorgEvents(), 8*50)
}
