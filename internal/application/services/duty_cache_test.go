package services

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Marketen/validator-client/internal/application/domain"
)

func attesterDuty(index domain.ValidatorIndex, slot domain.Slot) domain.ValidatorDuties {
	s := slot
	return domain.ValidatorDuties{
		ValidatorIndex:  index,
		AttestationSlot: &s,
		CommitteeIndex:  3,
		CommitteeLength: 128,
	}
}

func TestDutyCachePutGet(t *testing.T) {
	cache := NewDutyCache(32)

	duty := attesterDuty(7, 65)
	cache.Put(2, duty)

	got, ok := cache.Get(7, 2)
	require.True(t, ok)
	require.Equal(t, duty, got)

	_, ok = cache.Get(7, 3)
	require.False(t, ok)
	_, ok = cache.Get(8, 2)
	require.False(t, ok)
}

func TestMarkFetchedCoversEmptyEpochs(t *testing.T) {
	cache := NewDutyCache(32)
	require.False(t, cache.HasEpoch(2))

	cache.MarkFetched(2)

	require.True(t, cache.HasEpoch(2))
	require.Empty(t, cache.EpochSnapshot(2))
}

func TestInvalidateAfterDropsEpochsPastCommonAncestor(t *testing.T) {
	cache := NewDutyCache(32)

	// Epoch 2 starts at slot 64, epoch 3 at slot 96.
	cache.Put(2, attesterDuty(1, 65))
	cache.Put(3, attesterDuty(1, 97))
	cache.Put(3, attesterDuty(2, 98))

	// Common ancestor at slot 90: epoch 3 (start 96) was computed against
	// the abandoned branch, epoch 2 (start 64) survives.
	dropped := cache.InvalidateAfter(90)
	require.Equal(t, 2, dropped)

	_, ok := cache.Get(1, 2)
	require.True(t, ok)
	_, ok = cache.Get(1, 3)
	require.False(t, ok)
	_, ok = cache.Get(2, 3)
	require.False(t, ok)
}

func TestInvalidateAfterKeepsEpochStartingAtCommonAncestor(t *testing.T) {
	cache := NewDutyCache(32)
	cache.Put(3, attesterDuty(1, 97))

	// Epoch 3 starts exactly at the common ancestor slot; its duties were
	// computed against a still-canonical state.
	dropped := cache.InvalidateAfter(96)
	require.Zero(t, dropped)

	_, ok := cache.Get(1, 3)
	require.True(t, ok)
}

func TestInvalidateAfterClearsFetchMarkers(t *testing.T) {
	cache := NewDutyCache(32)
	cache.MarkFetched(1) // starts at slot 32
	cache.MarkFetched(2) // starts at slot 64

	dropped := cache.InvalidateAfter(40)
	require.Zero(t, dropped)

	require.True(t, cache.HasEpoch(1))
	require.False(t, cache.HasEpoch(2))
}

func TestPruneBeforeClearsFetchMarkers(t *testing.T) {
	cache := NewDutyCache(32)
	cache.MarkFetched(1)
	cache.MarkFetched(2)

	cache.PruneBefore(2)

	require.False(t, cache.HasEpoch(1))
	require.True(t, cache.HasEpoch(2))
}

func TestPruneBefore(t *testing.T) {
	cache := NewDutyCache(32)
	cache.Put(1, attesterDuty(1, 33))
	cache.Put(2, attesterDuty(1, 65))
	cache.Put(3, attesterDuty(1, 97))

	cache.PruneBefore(2)

	_, ok := cache.Get(1, 1)
	require.False(t, ok)
	_, ok = cache.Get(1, 2)
	require.True(t, ok)
	_, ok = cache.Get(1, 3)
	require.True(t, ok)
}

func TestEpochSnapshot(t *testing.T) {
	cache := NewDutyCache(32)
	require.False(t, cache.HasEpoch(5))

	cache.Put(5, attesterDuty(1, 161))
	cache.Put(5, attesterDuty(2, 162))
	cache.Put(6, attesterDuty(1, 193))

	require.True(t, cache.HasEpoch(5))
	require.Len(t, cache.EpochSnapshot(5), 2)
	require.Len(t, cache.EpochSnapshot(6), 1)
	require.Empty(t, cache.EpochSnapshot(7))
}
