package ports

import (
	"context"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/Marketen/validator-client/internal/application/domain"
)

// BeaconChainAdapter is the hexagonal port for the beacon node's validator
// API. The duty cycle depends only on this interface, not on any concrete
// client. Implementations are stateless and safe for concurrent use.
//
// Every "create" operation returns a nil result with a nil error when the
// node has no artifact to offer (not synced, pre-genesis, nothing known
// yet): absence is an expected outcome, distinct from a transport or
// protocol failure. Every "send" operation returns nothing on success;
// delivery confidence is binary. A send error wrapping
// domain.ErrArtifactRejected means the node refused the artifact itself
// and retrying is pointless.
type BeaconChainAdapter interface {
	// GetFork returns the node's current fork info, or nil before the node
	// has fork data (pre-genesis).
	GetFork(ctx context.Context) (*domain.ForkInfo, error)

	// GetDuties returns one combined duty record per requested validator,
	// in the order the indices were requested. An empty result is valid.
	// Re-requesting the same (validators, epoch) with no intervening reorg
	// returns a structurally identical result.
	GetDuties(ctx context.Context, req domain.DutiesRequest) ([]domain.ValidatorDuties, error)

	// CreateUnsignedBlock asks the node to construct a block proposal for
	// the slot. nil means the node could not produce one; skip the slot.
	CreateUnsignedBlock(
		ctx context.Context,
		slot domain.Slot,
		randaoReveal phase0.BLSSignature,
		graffiti *[32]byte,
	) (*domain.UnsignedBlock, error)

	// SendSignedBlock submits a signed block. Success means accepted for
	// processing, not finalized. The contract does not deduplicate; callers
	// must submit at most once per (validator, slot).
	SendSignedBlock(ctx context.Context, block *domain.SignedBlock) error

	// CreateUnsignedAttestation asks the node for attestation data at
	// (slot, committee). nil means nothing producible yet.
	CreateUnsignedAttestation(
		ctx context.Context,
		slot domain.Slot,
		committeeIndex domain.CommitteeIndex,
	) (*domain.UnsignedAttestation, error)

	// SendSignedAttestation submits a signed attestation.
	SendSignedAttestation(ctx context.Context, attestation *domain.SignedAttestation) error

	// CreateAggregate returns the node's best aggregate for the attestation
	// data root, or nil when no matching aggregate exists yet.
	CreateAggregate(
		ctx context.Context,
		slot domain.Slot,
		committeeIndex domain.CommitteeIndex,
		attestationDataRoot domain.Root,
	) (*domain.AggregateAttestation, error)

	// SendAggregateAndProof submits a signed aggregate and proof.
	SendAggregateAndProof(ctx context.Context, proof *domain.SignedAggregateAndProof) error

	// SubscribeToBeaconCommitteeForAggregation registers aggregation
	// interest in a committee's subnet for one slot. committeesAtSlot is
	// required by the node to locate the subnet.
	SubscribeToBeaconCommitteeForAggregation(
		ctx context.Context,
		validatorIndex domain.ValidatorIndex,
		committeeIndex domain.CommitteeIndex,
		committeesAtSlot uint64,
		slot domain.Slot,
	) error

	// SubscribeToPersistentSubnets registers a set of subnet subscriptions,
	// de-duplicated by structural equality before submission.
	SubscribeToPersistentSubnets(ctx context.Context, subscriptions []domain.SubnetSubscription) error
}
