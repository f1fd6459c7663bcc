package adapters

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/application/ports"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	eth2http "github.com/attestantio/go-eth2-client/http"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// beaconHTTPClient implements ports.BeaconChainAdapter using go-eth2-client.
// It holds no per-request state; concurrent calls for different validators
// and slots do not interfere.
type beaconHTTPClient struct {
	client *eth2http.Service
}

// NewBeaconHTTPAdapter is the constructor used from main.go.
func NewBeaconHTTPAdapter(endpoint string) (ports.BeaconChainAdapter, error) {
	// Silence go-eth2-client logs unless they are warnings+.
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	customHTTPClient := &nethttp.Client{
		Timeout: 2000 * time.Second, // global upper bound; per-request timeout below
	}

	client, err := eth2http.New(
		context.Background(),
		eth2http.WithAddress(endpoint),
		eth2http.WithHTTPClient(customHTTPClient),
		// This is the per-request timeout used by go-eth2-client.
		eth2http.WithTimeout(20*time.Second),
	)
	if err != nil {
		return nil, err
	}

	return &beaconHTTPClient{client: client.(*eth2http.Service)}, nil
}

// isAbsent reports whether the error means "nothing there yet" rather than
// a transport or protocol failure: 404 for unknown artifacts, 503 while the
// node is still syncing.
func isAbsent(err error) bool {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == nethttp.StatusNotFound ||
			apiErr.StatusCode == nethttp.StatusServiceUnavailable
	}
	return false
}

// asSubmissionError maps a node-side 400 to domain.ErrArtifactRejected so
// callers can tell validation rejections from transport failures.
func asSubmissionError(err error, what string) error {
	var apiErr *api.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == nethttp.StatusBadRequest {
		return errors.Wrapf(domain.ErrArtifactRejected, "%s: %v", what, err)
	}
	return errors.Wrap(err, what)
}

// GetFork returns the node's current fork info, or nil before genesis.
func (b *beaconHTTPClient) GetFork(ctx context.Context) (*domain.ForkInfo, error) {
	forkResp, err := b.client.Fork(ctx, &api.ForkOpts{State: "head"})
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "fetching fork")
	}

	genesisResp, err := b.client.Genesis(ctx, &api.GenesisOpts{})
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "fetching genesis")
	}

	fork := forkResp.Data
	return &domain.ForkInfo{
		PreviousVersion:       fork.PreviousVersion,
		CurrentVersion:        fork.CurrentVersion,
		Epoch:                 domain.Epoch(fork.Epoch),
		GenesisValidatorsRoot: domain.Root(genesisResp.Data.GenesisValidatorsRoot),
	}, nil
}

// GetDuties returns one combined proposer+attester duty record per requested
// validator, in request order.
func (b *beaconHTTPClient) GetDuties(ctx context.Context, req domain.DutiesRequest) ([]domain.ValidatorDuties, error) {
	beaconIndices := make([]phase0.ValidatorIndex, 0, len(req.Indices))
	for _, idx := range req.Indices {
		beaconIndices = append(beaconIndices, phase0.ValidatorIndex(idx))
	}

	attesterResp, err := b.client.AttesterDuties(ctx, &api.AttesterDutiesOpts{
		Epoch:   phase0.Epoch(req.Epoch),
		Indices: beaconIndices,
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching attester duties")
	}

	proposerResp, err := b.client.ProposerDuties(ctx, &api.ProposerDutiesOpts{
		Epoch:   phase0.Epoch(req.Epoch),
		Indices: beaconIndices,
	})
	if err != nil {
		return nil, errors.Wrap(err, "fetching proposer duties")
	}

	return mergeDuties(req.Indices, attesterResp.Data, proposerResp.Data), nil
}

// mergeDuties combines the node's attester and proposer duty responses into
// one record per validator, ordered as the indices were requested.
// Validators with no duty in the epoch are absent from the result.
func mergeDuties(
	indices []domain.ValidatorIndex,
	attester []*apiv1.AttesterDuty,
	proposer []*apiv1.ProposerDuty,
) []domain.ValidatorDuties {
	byIndex := make(map[domain.ValidatorIndex]*domain.ValidatorDuties, len(indices))
	for _, d := range attester {
		slot := domain.Slot(d.Slot)
		byIndex[domain.ValidatorIndex(d.ValidatorIndex)] = &domain.ValidatorDuties{
			ValidatorIndex:          domain.ValidatorIndex(d.ValidatorIndex),
			PubKey:                  d.PubKey,
			AttestationSlot:         &slot,
			CommitteeIndex:          domain.CommitteeIndex(d.CommitteeIndex),
			CommitteeLength:         d.CommitteeLength,
			CommitteesAtSlot:        d.CommitteesAtSlot,
			ValidatorCommitteeIndex: d.ValidatorCommitteeIndex,
		}
	}
	for _, d := range proposer {
		index := domain.ValidatorIndex(d.ValidatorIndex)
		record, ok := byIndex[index]
		if !ok {
			record = &domain.ValidatorDuties{
				ValidatorIndex: index,
				PubKey:         d.PubKey,
			}
			byIndex[index] = record
		}
		record.ProposalSlots = append(record.ProposalSlots, domain.Slot(d.Slot))
	}

	result := make([]domain.ValidatorDuties, 0, len(byIndex))
	for _, idx := range indices {
		if record, ok := byIndex[idx]; ok {
			result = append(result, *record)
		}
	}
	return result
}

// CreateUnsignedBlock asks the node to build a proposal for the slot.
// An unsynced node (404/503) yields (nil, nil): skip the slot.
func (b *beaconHTTPClient) CreateUnsignedBlock(
	ctx context.Context,
	slot domain.Slot,
	randaoReveal phase0.BLSSignature,
	graffiti *[32]byte,
) (*domain.UnsignedBlock, error) {
	opts := &api.ProposalOpts{
		Slot:         phase0.Slot(slot),
		RandaoReveal: randaoReveal,
	}
	if graffiti != nil {
		opts.Graffiti = *graffiti
	}

	resp, err := b.client.Proposal(ctx, opts)
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "creating block proposal for slot %d", slot)
	}

	proposalSlot, err := resp.Data.Slot()
	if err != nil {
		return nil, errors.Wrap(err, "reading proposal slot")
	}
	return &domain.UnsignedBlock{
		Slot:     domain.Slot(proposalSlot),
		Proposal: resp.Data,
	}, nil
}

// SendSignedBlock submits a signed proposal; accepted-or-failed only.
func (b *beaconHTTPClient) SendSignedBlock(ctx context.Context, block *domain.SignedBlock) error {
	err := b.client.SubmitProposal(ctx, &api.SubmitProposalOpts{
		Proposal: block.Proposal,
	})
	if err != nil {
		return asSubmissionError(err, "submitting signed block")
	}
	return nil
}

// CreateUnsignedAttestation fetches attestation data for (slot, committee).
func (b *beaconHTTPClient) CreateUnsignedAttestation(
	ctx context.Context,
	slot domain.Slot,
	committeeIndex domain.CommitteeIndex,
) (*domain.UnsignedAttestation, error) {
	resp, err := b.client.AttestationData(ctx, &api.AttestationDataOpts{
		Slot:           phase0.Slot(slot),
		CommitteeIndex: phase0.CommitteeIndex(committeeIndex),
	})
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "creating attestation data for slot %d", slot)
	}

	return &domain.UnsignedAttestation{
		Slot:           slot,
		CommitteeIndex: committeeIndex,
		Data:           resp.Data,
	}, nil
}

// SendSignedAttestation submits a signed attestation.
func (b *beaconHTTPClient) SendSignedAttestation(ctx context.Context, attestation *domain.SignedAttestation) error {
	err := b.client.SubmitAttestations(ctx, &api.SubmitAttestationsOpts{
		Attestations: []*spec.VersionedAttestation{attestation.Attestation},
	})
	if err != nil {
		return asSubmissionError(err, "submitting signed attestation")
	}
	return nil
}

// CreateAggregate returns the node's best aggregate for the attestation
// data root, or nil when none is known yet.
func (b *beaconHTTPClient) CreateAggregate(
	ctx context.Context,
	slot domain.Slot,
	committeeIndex domain.CommitteeIndex,
	attestationDataRoot domain.Root,
) (*domain.AggregateAttestation, error) {
	resp, err := b.client.AggregateAttestation(ctx, &api.AggregateAttestationOpts{
		Slot:                phase0.Slot(slot),
		AttestationDataRoot: phase0.Root(attestationDataRoot),
		CommitteeIndex:      phase0.CommitteeIndex(committeeIndex),
	})
	if err != nil {
		if isAbsent(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "fetching aggregate for slot %d", slot)
	}

	return &domain.AggregateAttestation{
		Slot:        slot,
		Attestation: resp.Data,
	}, nil
}

// SendAggregateAndProof submits a signed aggregate and proof.
func (b *beaconHTTPClient) SendAggregateAndProof(ctx context.Context, proof *domain.SignedAggregateAndProof) error {
	err := b.client.SubmitAggregateAttestations(ctx, &api.SubmitAggregateAttestationsOpts{
		SignedAggregateAndProofs: []*spec.VersionedSignedAggregateAndProof{proof.Proof},
	})
	if err != nil {
		return asSubmissionError(err, "submitting aggregate and proof")
	}
	return nil
}

// SubscribeToBeaconCommitteeForAggregation registers aggregation interest
// for one (committee, slot).
func (b *beaconHTTPClient) SubscribeToBeaconCommitteeForAggregation(
	ctx context.Context,
	validatorIndex domain.ValidatorIndex,
	committeeIndex domain.CommitteeIndex,
	committeesAtSlot uint64,
	slot domain.Slot,
) error {
	err := b.client.SubmitBeaconCommitteeSubscriptions(ctx, []*apiv1.BeaconCommitteeSubscription{
		{
			ValidatorIndex:   phase0.ValidatorIndex(validatorIndex),
			Slot:             phase0.Slot(slot),
			CommitteeIndex:   phase0.CommitteeIndex(committeeIndex),
			CommitteesAtSlot: committeesAtSlot,
			IsAggregator:     true,
		},
	})
	if err != nil {
		return asSubmissionError(err, "subscribing to beacon committee")
	}
	return nil
}

// SubscribeToPersistentSubnets registers a set of subnet subscriptions,
// de-duplicated by structural equality.
func (b *beaconHTTPClient) SubscribeToPersistentSubnets(ctx context.Context, subscriptions []domain.SubnetSubscription) error {
	subs := dedupeSubscriptions(subscriptions)
	if len(subs) == 0 {
		return nil
	}

	if err := b.client.SubmitBeaconCommitteeSubscriptions(ctx, subs); err != nil {
		return asSubmissionError(err, "subscribing to persistent subnets")
	}
	return nil
}

// dedupeSubscriptions drops structurally equal duplicates, keeping first
// occurrence order, and maps the rest to the node's subscription type.
func dedupeSubscriptions(subscriptions []domain.SubnetSubscription) []*apiv1.BeaconCommitteeSubscription {
	seen := make(map[domain.SubnetSubscription]struct{}, len(subscriptions))
	subs := make([]*apiv1.BeaconCommitteeSubscription, 0, len(subscriptions))
	for _, s := range subscriptions {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		subs = append(subs, &apiv1.BeaconCommitteeSubscription{
			ValidatorIndex:   phase0.ValidatorIndex(s.ValidatorIndex),
			Slot:             phase0.Slot(s.Slot),
			CommitteeIndex:   phase0.CommitteeIndex(s.CommitteeIndex),
			CommitteesAtSlot: s.CommitteesAtSlot,
			IsAggregator:     s.IsAggregator,
		})
	}
	return subs
}
