package adapters

import (
	"testing"

	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/validator-client/internal/application/domain"
)

func TestMergeDutiesOrdersByRequestedIndex(t *testing.T) {
	attester := []*apiv1.AttesterDuty{
		{
			ValidatorIndex:          3,
			PubKey:                  phase0.BLSPubKey{0x03},
			Slot:                    70,
			CommitteeIndex:          1,
			CommitteeLength:         128,
			CommitteesAtSlot:        4,
			ValidatorCommitteeIndex: 9,
		},
		{
			ValidatorIndex:  8,
			PubKey:          phase0.BLSPubKey{0x08},
			Slot:            71,
			CommitteeIndex:  2,
			CommitteeLength: 128,
		},
	}
	proposer := []*apiv1.ProposerDuty{
		{ValidatorIndex: 5, PubKey: phase0.BLSPubKey{0x05}, Slot: 66},
		{ValidatorIndex: 3, PubKey: phase0.BLSPubKey{0x03}, Slot: 68},
	}

	// Requested order 5, 3, 8; validator 12 has no duty in the epoch.
	merged := mergeDuties([]domain.ValidatorIndex{5, 3, 8, 12}, attester, proposer)

	require.Len(t, merged, 3)

	// Proposer-only record.
	require.Equal(t, domain.ValidatorIndex(5), merged[0].ValidatorIndex)
	require.Nil(t, merged[0].AttestationSlot)
	require.Equal(t, []domain.Slot{66}, merged[0].ProposalSlots)

	// Combined proposer+attester record.
	require.Equal(t, domain.ValidatorIndex(3), merged[1].ValidatorIndex)
	require.NotNil(t, merged[1].AttestationSlot)
	require.Equal(t, domain.Slot(70), *merged[1].AttestationSlot)
	require.Equal(t, []domain.Slot{68}, merged[1].ProposalSlots)
	require.Equal(t, domain.CommitteeIndex(1), merged[1].CommitteeIndex)
	require.Equal(t, uint64(9), merged[1].ValidatorCommitteeIndex)

	// Attester-only record.
	require.Equal(t, domain.ValidatorIndex(8), merged[2].ValidatorIndex)
	require.NotNil(t, merged[2].AttestationSlot)
	require.Equal(t, domain.Slot(71), *merged[2].AttestationSlot)
	require.Empty(t, merged[2].ProposalSlots)
}

func TestMergeDutiesEmptyResponsesYieldEmptyResult(t *testing.T) {
	merged := mergeDuties([]domain.ValidatorIndex{1, 2, 3}, nil, nil)
	require.Empty(t, merged)
}

func TestDedupeSubscriptionsCollapsesStructuralDuplicates(t *testing.T) {
	sub := domain.SubnetSubscription{
		ValidatorIndex:   1,
		CommitteeIndex:   3,
		CommitteesAtSlot: 8,
		Slot:             70,
		IsAggregator:     true,
	}
	other := sub
	other.Slot = 71

	subs := dedupeSubscriptions([]domain.SubnetSubscription{sub, other, sub, other})

	require.Len(t, subs, 2)
	require.Equal(t, phase0.Slot(70), subs[0].Slot)
	require.Equal(t, phase0.Slot(71), subs[1].Slot)
	require.Equal(t, phase0.ValidatorIndex(1), subs[0].ValidatorIndex)
	require.Equal(t, phase0.CommitteeIndex(3), subs[0].CommitteeIndex)
	require.Equal(t, uint64(8), subs[0].CommitteesAtSlot)
	require.True(t, subs[0].IsAggregator)
}

func TestDedupeSubscriptionsKeepsDistinctAggregatorFlags(t *testing.T) {
	sub := domain.SubnetSubscription{ValidatorIndex: 1, CommitteeIndex: 3, Slot: 70, IsAggregator: true}
	flipped := sub
	flipped.IsAggregator = false

	// Same committee and slot but a different aggregator flag is a
	// different subscription, not a duplicate.
	subs := dedupeSubscriptions([]domain.SubnetSubscription{sub, flipped})
	require.Len(t, subs, 2)
}
