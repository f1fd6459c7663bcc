package services

import (
	"sync"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/logger"
	"github.com/Marketen/validator-client/internal/metrics"
)

// ReorgTracker keeps an ordered, append-only log of observed chain
// reorganizations. Every notification produces a new record, even when it
// is structurally identical to a previous one: the record means "a reorg
// was observed at this point", which is meaningful on its own.
//
// Consumers read with a cursor via EventsSince and are woken through
// Notify; the tracker never hands out a mutable reference to its log.
type ReorgTracker struct {
	mu     sync.RWMutex
	events []domain.ReorgEvent

	notify chan struct{}
}

func NewReorgTracker() *ReorgTracker {
	return &ReorgTracker{
		notify: make(chan struct{}, 1),
	}
}

// RecordReorg appends a new reorg event. Insertion order is the total order.
func (t *ReorgTracker) RecordReorg(bestBlockRoot domain.Root, bestSlot, commonAncestorSlot domain.Slot) {
	event := domain.ReorgEvent{
		BestBlockRoot:      bestBlockRoot,
		BestSlot:           bestSlot,
		CommonAncestorSlot: commonAncestorSlot,
	}

	t.mu.Lock()
	t.events = append(t.events, event)
	t.mu.Unlock()

	metrics.ReorgsObserved.Inc()
	logger.Info("Recorded %s", event)

	// Wake any waiting consumer; a pending wake-up already covers this event.
	select {
	case t.notify <- struct{}{}:
	default:
	}
}

// ReorgEvents returns a snapshot copy of the full ordered log.
func (t *ReorgTracker) ReorgEvents() []domain.ReorgEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snapshot := make([]domain.ReorgEvent, len(t.events))
	copy(snapshot, t.events)
	return snapshot
}

// EventsSince returns the events recorded at or after the cursor position,
// plus the cursor to use on the next call.
func (t *ReorgTracker) EventsSince(cursor int) ([]domain.ReorgEvent, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if cursor < 0 {
		cursor = 0
	}
	if cursor >= len(t.events) {
		return nil, len(t.events)
	}

	tail := make([]domain.ReorgEvent, len(t.events)-cursor)
	copy(tail, t.events[cursor:])
	return tail, len(t.events)
}

// Notify returns a channel that receives a signal after new events are
// appended. The channel is coalescing: one signal may cover several events,
// so consumers must drain with EventsSince.
func (t *ReorgTracker) Notify() <-chan struct{} {
	return t.notify
}
