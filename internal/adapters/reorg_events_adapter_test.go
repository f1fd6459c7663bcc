package adapters

import (
	"testing"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/validator-client/internal/application/domain"
)

type recordedReorg struct {
	root     domain.Root
	best     domain.Slot
	ancestor domain.Slot
}

type fakeRecorder struct {
	events []recordedReorg
}

func (f *fakeRecorder) RecordReorg(bestBlockRoot domain.Root, bestSlot, commonAncestorSlot domain.Slot) {
	f.events = append(f.events, recordedReorg{root: bestBlockRoot, best: bestSlot, ancestor: commonAncestorSlot})
}

func TestHandleEventMapsChainReorg(t *testing.T) {
	recorder := &fakeRecorder{}
	adapter := &ReorgEventsAdapter{recorder: recorder}

	adapter.handleEvent(&apiv1.Event{
		Topic: "chain_reorg",
		Data: &apiv1.ChainReorgEvent{
			Slot:         100,
			Depth:        10,
			NewHeadBlock: phase0.Root{0x01},
		},
	})

	require.Len(t, recorder.events, 1)
	require.Equal(t, domain.Root{0x01}, recorder.events[0].root)
	require.Equal(t, domain.Slot(100), recorder.events[0].best)
	require.Equal(t, domain.Slot(90), recorder.events[0].ancestor)
}

func TestHandleEventClampsDepthBeyondGenesis(t *testing.T) {
	recorder := &fakeRecorder{}
	adapter := &ReorgEventsAdapter{recorder: recorder}

	adapter.handleEvent(&apiv1.Event{
		Topic: "chain_reorg",
		Data:  &apiv1.ChainReorgEvent{Slot: 5, Depth: 10},
	})

	require.Len(t, recorder.events, 1)
	require.Equal(t, domain.Slot(0), recorder.events[0].ancestor)
}

func TestHandleEventIgnoresUnexpectedPayload(t *testing.T) {
	recorder := &fakeRecorder{}
	adapter := &ReorgEventsAdapter{recorder: recorder}

	adapter.handleEvent(&apiv1.Event{Topic: "chain_reorg", Data: "not a reorg"})

	require.Empty(t, recorder.events)
}
