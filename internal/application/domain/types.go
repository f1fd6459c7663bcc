package domain

import (
	"encoding/hex"

	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// Basic consensus types
type Epoch uint64
type Slot uint64
type ValidatorIndex uint64
type CommitteeIndex uint64

// Root is a 32-byte block root or hash tree root.
type Root [32]byte

func (r Root) String() string {
	return "0x" + hex.EncodeToString(r[:])
}

// StartSlot returns the first slot of the epoch.
func (e Epoch) StartSlot(slotsPerEpoch Slot) Slot {
	return Slot(uint64(e) * uint64(slotsPerEpoch))
}

// EpochAt returns the epoch containing the slot.
func (s Slot) EpochAt(slotsPerEpoch Slot) Epoch {
	return Epoch(uint64(s) / uint64(slotsPerEpoch))
}

// ForkInfo identifies the chain fork a response was produced against.
// Immutable once returned; re-fetched at epoch boundaries and on reorg.
type ForkInfo struct {
	PreviousVersion       [4]byte
	CurrentVersion        [4]byte
	Epoch                 Epoch
	GenesisValidatorsRoot Root
}

// DutiesRequest asks for the duties of a set of validators in one epoch.
type DutiesRequest struct {
	Epoch   Epoch
	Indices []ValidatorIndex
}

// ValidatorDuties is the combined duty record for one validator in one
// epoch: zero or more proposal slots plus at most one attestation
// assignment.
type ValidatorDuties struct {
	ValidatorIndex ValidatorIndex
	PubKey         phase0.BLSPubKey

	ProposalSlots []Slot

	// AttestationSlot is nil when the validator has no attestation duty
	// in the epoch (possible for exited or slashed validators).
	AttestationSlot         *Slot
	CommitteeIndex          CommitteeIndex
	CommitteeLength         uint64
	CommitteesAtSlot        uint64
	ValidatorCommitteeIndex uint64
}

// UnsignedBlock is a node-constructed block proposal awaiting an external
// signature. Ownership transfers to the caller on return.
type UnsignedBlock struct {
	Slot     Slot
	Proposal *api.VersionedProposal
}

// SignedBlock is a caller-signed block proposal ready for submission.
type SignedBlock struct {
	Slot     Slot
	Proposal *api.VersionedSignedProposal
}

// UnsignedAttestation carries the attestation data the node wants attested
// for a (slot, committee) pair.
type UnsignedAttestation struct {
	Slot           Slot
	CommitteeIndex CommitteeIndex
	Data           *phase0.AttestationData
}

// SignedAttestation is a caller-signed attestation ready for submission.
type SignedAttestation struct {
	Slot           Slot
	CommitteeIndex CommitteeIndex
	Attestation    *spec.VersionedAttestation
}

// AggregateAttestation is the node's best known aggregate for an
// attestation-data root.
type AggregateAttestation struct {
	Slot        Slot
	Attestation *spec.VersionedAttestation
}

// SignedAggregateAndProof is a signed aggregate plus the aggregator's
// selection proof, ready for submission.
type SignedAggregateAndProof struct {
	Slot  Slot
	Proof *spec.VersionedSignedAggregateAndProof
}

// SubnetSubscription registers interest in an attestation gossip subnet.
// Submitted as a set; de-duplicated by structural equality.
type SubnetSubscription struct {
	ValidatorIndex   ValidatorIndex
	CommitteeIndex   CommitteeIndex
	CommitteesAtSlot uint64
	Slot             Slot
	IsAggregator     bool
}
