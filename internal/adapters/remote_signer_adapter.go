package adapters

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"strings"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	"github.com/attestantio/go-eth2-client/spec"
	"github.com/attestantio/go-eth2-client/spec/altair"
	"github.com/attestantio/go-eth2-client/spec/bellatrix"
	"github.com/attestantio/go-eth2-client/spec/capella"
	"github.com/attestantio/go-eth2-client/spec/phase0"
	"github.com/pkg/errors"
	"github.com/prysmaticlabs/go-bitfield"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/application/ports"
)

// remoteSignerClient implements ports.Signer against a web3signer-style
// HTTP endpoint that signs 32-byte signing roots. Key management stays on
// the signer side; this adapter only computes signing roots and assembles
// the signed containers.
type remoteSignerClient struct {
	endpoint string
	client   *nethttp.Client
}

// NewRemoteSignerAdapter is the constructor used from main.go.
func NewRemoteSignerAdapter(endpoint string) (ports.Signer, error) {
	if strings.TrimSpace(endpoint) == "" {
		return nil, errors.New("remote signer endpoint is required")
	}
	return &remoteSignerClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &nethttp.Client{Timeout: 10 * time.Second},
	}, nil
}

type signRequest struct {
	SigningRoot string `json:"signing_root"`
}

type signResponse struct {
	Signature string `json:"signature"`
}

// sign posts a signing root to the remote signer and parses the signature.
func (s *remoteSignerClient) sign(ctx context.Context, pubKey phase0.BLSPubKey, signingRoot [32]byte) (phase0.BLSSignature, error) {
	var signature phase0.BLSSignature

	body, err := json.Marshal(signRequest{
		SigningRoot: "0x" + hex.EncodeToString(signingRoot[:]),
	})
	if err != nil {
		return signature, errors.Wrap(err, "encoding sign request")
	}

	url := fmt.Sprintf("%s/api/v1/eth2/sign/0x%s", s.endpoint, hex.EncodeToString(pubKey[:]))
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return signature, errors.Wrap(err, "building sign request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return signature, errors.Wrap(err, "calling remote signer")
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return signature, errors.Errorf("remote signer returned %d: %s", resp.StatusCode, payload)
	}

	var parsed signResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return signature, errors.Wrap(err, "decoding sign response")
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(parsed.Signature, "0x"))
	if err != nil {
		return signature, errors.Wrap(err, "decoding signature hex")
	}
	if len(raw) != len(signature) {
		return signature, errors.Errorf("invalid signature length %d", len(raw))
	}
	copy(signature[:], raw)
	return signature, nil
}

// RandaoReveal signs the epoch under the randao domain.
func (s *remoteSignerClient) RandaoReveal(
	ctx context.Context,
	fork *domain.ForkInfo,
	epoch domain.Epoch,
	pubKey phase0.BLSPubKey,
) (phase0.BLSSignature, error) {
	root := domain.SigningRoot(domain.Uint64Root(uint64(epoch)), fork.SigningDomain(domain.DomainTypeRandao))
	return s.sign(ctx, pubKey, root)
}

// SelectionProof signs the slot under the selection-proof domain.
func (s *remoteSignerClient) SelectionProof(
	ctx context.Context,
	fork *domain.ForkInfo,
	slot domain.Slot,
	pubKey phase0.BLSPubKey,
) (phase0.BLSSignature, error) {
	root := domain.SigningRoot(domain.Uint64Root(uint64(slot)), fork.SigningDomain(domain.DomainTypeSelectionProof))
	return s.sign(ctx, pubKey, root)
}

// SignBlock signs the proposal's block root under the proposer domain and
// assembles the signed proposal for the matching fork.
//
// Post-Capella proposals carry blob sidecar bundles whose signing flow this
// signer does not implement; they are rejected explicitly.
func (s *remoteSignerClient) SignBlock(
	ctx context.Context,
	fork *domain.ForkInfo,
	block *domain.UnsignedBlock,
	pubKey phase0.BLSPubKey,
) (*domain.SignedBlock, error) {
	proposal := block.Proposal
	signingDomain := fork.SigningDomain(domain.DomainTypeBeaconProposer)

	var blockRoot [32]byte
	var err error
	switch proposal.Version {
	case spec.DataVersionPhase0:
		blockRoot, err = proposal.Phase0.HashTreeRoot()
	case spec.DataVersionAltair:
		blockRoot, err = proposal.Altair.HashTreeRoot()
	case spec.DataVersionBellatrix:
		blockRoot, err = proposal.Bellatrix.HashTreeRoot()
	case spec.DataVersionCapella:
		blockRoot, err = proposal.Capella.HashTreeRoot()
	default:
		return nil, errors.Errorf("unsupported proposal version %v", proposal.Version)
	}
	if err != nil {
		return nil, errors.Wrap(err, "computing block root")
	}

	signature, err := s.sign(ctx, pubKey, domain.SigningRoot(blockRoot, signingDomain))
	if err != nil {
		return nil, err
	}

	signed := &api.VersionedSignedProposal{Version: proposal.Version}
	switch proposal.Version {
	case spec.DataVersionPhase0:
		signed.Phase0 = &phase0.SignedBeaconBlock{Message: proposal.Phase0, Signature: signature}
	case spec.DataVersionAltair:
		signed.Altair = &altair.SignedBeaconBlock{Message: proposal.Altair, Signature: signature}
	case spec.DataVersionBellatrix:
		signed.Bellatrix = &bellatrix.SignedBeaconBlock{Message: proposal.Bellatrix, Signature: signature}
	case spec.DataVersionCapella:
		signed.Capella = &capella.SignedBeaconBlock{Message: proposal.Capella, Signature: signature}
	}

	return &domain.SignedBlock{Slot: block.Slot, Proposal: signed}, nil
}

// SignAttestation signs the attestation data under the attester domain and
// builds the single-bit attestation for the duty's committee position.
func (s *remoteSignerClient) SignAttestation(
	ctx context.Context,
	fork *domain.ForkInfo,
	attestation *domain.UnsignedAttestation,
	duty *domain.ValidatorDuties,
) (*domain.SignedAttestation, error) {
	dataRoot, err := attestation.Data.HashTreeRoot()
	if err != nil {
		return nil, errors.Wrap(err, "computing attestation data root")
	}

	signature, err := s.sign(ctx, duty.PubKey,
		domain.SigningRoot(dataRoot, fork.SigningDomain(domain.DomainTypeBeaconAttester)))
	if err != nil {
		return nil, err
	}

	bits := bitfield.NewBitlist(duty.CommitteeLength)
	bits.SetBitAt(duty.ValidatorCommitteeIndex, true)

	return &domain.SignedAttestation{
		Slot:           attestation.Slot,
		CommitteeIndex: attestation.CommitteeIndex,
		Attestation: &spec.VersionedAttestation{
			Version: spec.DataVersionPhase0,
			Phase0: &phase0.Attestation{
				AggregationBits: bits,
				Data:            attestation.Data,
				Signature:       signature,
			},
		},
	}, nil
}

// SignAggregateAndProof wraps the aggregate with the selection proof and
// signs the combined message under the aggregate-and-proof domain.
func (s *remoteSignerClient) SignAggregateAndProof(
	ctx context.Context,
	fork *domain.ForkInfo,
	aggregate *domain.AggregateAttestation,
	selectionProof phase0.BLSSignature,
	duty *domain.ValidatorDuties,
) (*domain.SignedAggregateAndProof, error) {
	att, err := phase0Attestation(aggregate.Attestation)
	if err != nil {
		return nil, err
	}

	message := &phase0.AggregateAndProof{
		AggregatorIndex: phase0.ValidatorIndex(duty.ValidatorIndex),
		Aggregate:       att,
		SelectionProof:  selectionProof,
	}
	messageRoot, err := message.HashTreeRoot()
	if err != nil {
		return nil, errors.Wrap(err, "computing aggregate and proof root")
	}

	signature, err := s.sign(ctx, duty.PubKey,
		domain.SigningRoot(messageRoot, fork.SigningDomain(domain.DomainTypeAggregateAndProof)))
	if err != nil {
		return nil, err
	}

	signed := &phase0.SignedAggregateAndProof{Message: message, Signature: signature}
	proof := &spec.VersionedSignedAggregateAndProof{Version: aggregate.Attestation.Version}
	switch aggregate.Attestation.Version {
	case spec.DataVersionPhase0:
		proof.Phase0 = signed
	case spec.DataVersionAltair:
		proof.Altair = signed
	case spec.DataVersionBellatrix:
		proof.Bellatrix = signed
	case spec.DataVersionCapella:
		proof.Capella = signed
	case spec.DataVersionDeneb:
		proof.Deneb = signed
	default:
		return nil, errors.Errorf("unsupported aggregate version %v", aggregate.Attestation.Version)
	}

	return &domain.SignedAggregateAndProof{Slot: aggregate.Slot, Proof: proof}, nil
}

// phase0Attestation extracts the phase0-shaped attestation carried by the
// versioned wrapper; the shape is shared by every fork up to Deneb.
func phase0Attestation(att *spec.VersionedAttestation) (*phase0.Attestation, error) {
	switch att.Version {
	case spec.DataVersionPhase0:
		return att.Phase0, nil
	case spec.DataVersionAltair:
		return att.Altair, nil
	case spec.DataVersionBellatrix:
		return att.Bellatrix, nil
	case spec.DataVersionCapella:
		return att.Capella, nil
	case spec.DataVersionDeneb:
		return att.Deneb, nil
	default:
		return nil, errors.Errorf("unsupported attestation version %v", att.Version)
	}
}
