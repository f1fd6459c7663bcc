package ports

import (
	"context"

	"github.com/attestantio/go-eth2-client/spec/phase0"

	"github.com/Marketen/validator-client/internal/application/domain"
)

// Signer is the port to the external signing subsystem. Key management is
// out of scope here; the duty cycle hands unsigned artifacts across this
// boundary and receives signed counterparts with identical slot/committee
// parameters. fork carries the domain-separation inputs for each signature.
type Signer interface {
	// RandaoReveal signs the epoch for block production.
	RandaoReveal(
		ctx context.Context,
		fork *domain.ForkInfo,
		epoch domain.Epoch,
		pubKey phase0.BLSPubKey,
	) (phase0.BLSSignature, error)

	// SelectionProof signs the slot; the proof doubles as the aggregator
	// selection input for the slot's committee.
	SelectionProof(
		ctx context.Context,
		fork *domain.ForkInfo,
		slot domain.Slot,
		pubKey phase0.BLSPubKey,
	) (phase0.BLSSignature, error)

	// SignBlock signs an unsigned block proposal.
	SignBlock(
		ctx context.Context,
		fork *domain.ForkInfo,
		block *domain.UnsignedBlock,
		pubKey phase0.BLSPubKey,
	) (*domain.SignedBlock, error)

	// SignAttestation signs attestation data on behalf of the duty's
	// validator, producing a single-bit attestation for its committee
	// position.
	SignAttestation(
		ctx context.Context,
		fork *domain.ForkInfo,
		attestation *domain.UnsignedAttestation,
		duty *domain.ValidatorDuties,
	) (*domain.SignedAttestation, error)

	// SignAggregateAndProof wraps an aggregate with the selection proof and
	// signs the combined message.
	SignAggregateAndProof(
		ctx context.Context,
		fork *domain.ForkInfo,
		aggregate *domain.AggregateAttestation,
		selectionProof phase0.BLSSignature,
		duty *domain.ValidatorDuties,
	) (*domain.SignedAggregateAndProof, error)
}
