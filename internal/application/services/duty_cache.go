package services

import (
	"sync"

	"github.com/Marketen/validator-client/internal/application/domain"
)

type dutyKey struct {
	index domain.ValidatorIndex
	epoch domain.Epoch
}

// DutyCache is the epoch-scoped store of fetched duty records, keyed by
// (validator, epoch). The coordinator is its only writer; artifact-creation
// logic reads it. Records are swapped whole under the lock, so a reader
// sees either the old complete record or the new one, never a mix.
//
// Fetched epochs are tracked separately from records: an epoch whose fetch
// legitimately returned no duty records is still fetched, and must not be
// refetched every slot. Invalidation and pruning clear the marker along
// with the records.
type DutyCache struct {
	mu            sync.RWMutex
	slotsPerEpoch domain.Slot
	entries       map[dutyKey]domain.ValidatorDuties
	fetched       map[domain.Epoch]struct{}
}

func NewDutyCache(slotsPerEpoch domain.Slot) *DutyCache {
	return &DutyCache{
		slotsPerEpoch: slotsPerEpoch,
		entries:       make(map[dutyKey]domain.ValidatorDuties),
		fetched:       make(map[domain.Epoch]struct{}),
	}
}

// Put stores the complete duty record for (validator, epoch) and marks the
// epoch as fetched.
func (c *DutyCache) Put(epoch domain.Epoch, duties domain.ValidatorDuties) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[dutyKey{index: duties.ValidatorIndex, epoch: epoch}] = duties
	c.fetched[epoch] = struct{}{}
}

// MarkFetched records that the epoch's duties were fetched, even when the
// fetch returned no records.
func (c *DutyCache) MarkFetched(epoch domain.Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetched[epoch] = struct{}{}
}

// Get returns a copy of the cached record for (validator, epoch).
func (c *DutyCache) Get(index domain.ValidatorIndex, epoch domain.Epoch) (domain.ValidatorDuties, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	duties, ok := c.entries[dutyKey{index: index, epoch: epoch}]
	return duties, ok
}

// HasEpoch reports whether the epoch's duties have been fetched.
func (c *DutyCache) HasEpoch(epoch domain.Epoch) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.fetched[epoch]
	return ok
}

// EpochSnapshot returns copies of every record cached for the epoch.
func (c *DutyCache) EpochSnapshot(epoch domain.Epoch) []domain.ValidatorDuties {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []domain.ValidatorDuties
	for key, duties := range c.entries {
		if key.epoch == epoch {
			out = append(out, duties)
		}
	}
	return out
}

// InvalidateAfter drops every record whose epoch starts after the reorg's
// common ancestor slot: those duties were computed against an abandoned
// branch. Returns the number of dropped records.
func (c *DutyCache) InvalidateAfter(commonAncestorSlot domain.Slot) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	for key := range c.entries {
		if key.epoch.StartSlot(c.slotsPerEpoch) > commonAncestorSlot {
			delete(c.entries, key)
			dropped++
		}
	}
	for epoch := range c.fetched {
		if epoch.StartSlot(c.slotsPerEpoch) > commonAncestorSlot {
			delete(c.fetched, epoch)
		}
	}
	return dropped
}

// PruneBefore drops records and fetch markers for epochs older than the
// given epoch.
func (c *DutyCache) PruneBefore(epoch domain.Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.epoch < epoch {
			delete(c.entries, key)
		}
	}
	for e := range c.fetched {
		if e < epoch {
			delete(c.fetched, e)
		}
	}
}
