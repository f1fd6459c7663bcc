package services

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/application/ports"
	"github.com/Marketen/validator-client/internal/logger"
	"github.com/Marketen/validator-client/internal/metrics"
)

// DutyCycleConfig carries the static parameters of the duty cycle.
type DutyCycleConfig struct {
	ValidatorIndices []domain.ValidatorIndex
	Graffiti         *[32]byte

	GenesisTime    time.Time
	SecondsPerSlot time.Duration
	SlotsPerEpoch  domain.Slot

	// Duty and fork fetches retry up to FetchRetries times with a linear
	// FetchBackoff between attempts. Submissions are never retried.
	FetchRetries int
	FetchBackoff time.Duration

	// CallTimeout bounds every individual beacon node call so a hung node
	// cannot stall unrelated validators' duty cycles.
	CallTimeout time.Duration
}

// DutyCycleService orchestrates the per-epoch validator duty cycle: fetch
// duties at epoch boundaries, create and submit artifacts per slot, and
// invalidate cached duties when the reorg tracker observes a reorg behind
// the current epoch. Invalidation strictly precedes any refetch for the
// affected epochs.
type DutyCycleService struct {
	BeaconAdapter ports.BeaconChainAdapter
	Signer        ports.Signer
	Tracker       *ReorgTracker
	Cache         *DutyCache

	cfg DutyCycleConfig

	mu          sync.RWMutex
	currentFork *domain.ForkInfo

	// reorgCursor is only touched from the Run loop.
	reorgCursor int
}

// NewDutyCycleService constructs a DutyCycleService with dependencies injected.
func NewDutyCycleService(
	beacon ports.BeaconChainAdapter,
	signer ports.Signer,
	tracker *ReorgTracker,
	cache *DutyCache,
	cfg DutyCycleConfig,
) *DutyCycleService {
	return &DutyCycleService{
		BeaconAdapter: beacon,
		Signer:        signer,
		Tracker:       tracker,
		Cache:         cache,
		cfg:           cfg,
	}
}

// Run drives the duty cycle until the context is cancelled. Ticks are
// aligned to slot boundaries derived from genesis time, so each slot's work
// starts at the start of the slot; reorg notifications are handled as they
// arrive so invalidation does not wait for the next slot.
func (s *DutyCycleService) Run(ctx context.Context) {
	timer := time.NewTimer(s.untilNextSlot(time.Now()))
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Tracker.Notify():
			s.applyReorgs(ctx)
		case <-timer.C:
			now := time.Now()
			if !now.Before(s.cfg.GenesisTime) {
				s.onSlot(ctx, s.slotAt(now))
			}
			timer.Reset(s.untilNextSlot(time.Now()))
		}
	}
}

// untilNextSlot returns the time remaining until the next slot boundary.
// Before genesis it waits for slot 0 itself.
func (s *DutyCycleService) untilNextSlot(now time.Time) time.Duration {
	if now.Before(s.cfg.GenesisTime) {
		return s.cfg.GenesisTime.Sub(now)
	}
	return s.slotStart(s.slotAt(now) + 1).Sub(now)
}

// onSlot is the per-slot entry point: drain pending reorgs first, make sure
// the slot's epoch has cached duties, then perform the slot's work.
func (s *DutyCycleService) onSlot(ctx context.Context, slot domain.Slot) {
	s.applyReorgs(ctx)

	epoch := slot.EpochAt(s.cfg.SlotsPerEpoch)
	if !s.Cache.HasEpoch(epoch) {
		if err := s.fetchDuties(ctx, epoch); err != nil {
			metrics.DutyFetchFailures.Inc()
			logger.Error("Duty fetch for epoch %d failed after retries: %v", epoch, err)
			return
		}
	}
	s.Cache.PruneBefore(epoch)

	s.performSlotDuties(ctx, slot, epoch)
}

// applyReorgs drains new reorg events and invalidates every cached duty
// record computed against an abandoned branch. Refetch for the current
// epoch happens immediately afterwards, never before the invalidation.
func (s *DutyCycleService) applyReorgs(ctx context.Context) {
	events, cursor := s.Tracker.EventsSince(s.reorgCursor)
	s.reorgCursor = cursor
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		dropped := s.Cache.InvalidateAfter(event.CommonAncestorSlot)
		if dropped > 0 {
			metrics.DutiesInvalidated.Add(float64(dropped))
		}
		logger.Info("Applied %s: invalidated %d cached duty records", event, dropped)
	}

	// The head changed branches; refresh fork info before any further
	// signing. Keep the previous fork info if the refresh fails.
	var fork *domain.ForkInfo
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		fork, err = s.BeaconAdapter.GetFork(callCtx)
		return err
	})
	if err != nil {
		logger.Warn("Fork refresh after reorg failed: %v", err)
	} else if fork != nil {
		s.setFork(fork)
	}

	now := time.Now()
	if now.Before(s.cfg.GenesisTime) {
		return
	}
	epoch := s.slotAt(now).EpochAt(s.cfg.SlotsPerEpoch)
	if !s.Cache.HasEpoch(epoch) {
		if err := s.fetchDuties(ctx, epoch); err != nil {
			metrics.DutyFetchFailures.Inc()
			logger.Error("Duty refetch for epoch %d after reorg failed: %v", epoch, err)
		}
	}
}

// fetchDuties pulls fork info and the epoch's duty records with bounded
// retry, stores them in the cache, and registers subnet subscriptions for
// the fetched attestation duties.
func (s *DutyCycleService) fetchDuties(ctx context.Context, epoch domain.Epoch) error {
	metrics.DutyFetches.Inc()

	var fork *domain.ForkInfo
	err := s.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		fork, err = s.BeaconAdapter.GetFork(callCtx)
		return err
	})
	if err != nil {
		return errors.Wrap(err, "fetching fork info")
	}
	if fork == nil {
		logger.Info("No fork info yet (pre-genesis); skipping epoch %d", epoch)
		return nil
	}
	s.setFork(fork)

	var duties []domain.ValidatorDuties
	err = s.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		duties, err = s.BeaconAdapter.GetDuties(callCtx, domain.DutiesRequest{
			Epoch:   epoch,
			Indices: s.cfg.ValidatorIndices,
		})
		return err
	})
	if err != nil {
		return errors.Wrapf(err, "fetching duties for epoch %d", epoch)
	}

	logger.Info("Fetched %d duty records for epoch %d", len(duties), epoch)
	for _, duty := range duties {
		s.Cache.Put(epoch, duty)
	}
	// An empty result is a valid fetch; mark the epoch so it is not
	// refetched every slot.
	s.Cache.MarkFetched(epoch)

	s.registerSubnets(ctx, fork, duties)
	return nil
}

// registerSubnets renews the node's persistent subnet subscriptions for
// every fetched attestation duty, and additionally registers aggregation
// interest for validators selected as aggregators so the node starts
// collecting attestations on their committees' subnets ahead of time.
func (s *DutyCycleService) registerSubnets(ctx context.Context, fork *domain.ForkInfo, duties []domain.ValidatorDuties) {
	var persistent []domain.SubnetSubscription
	for i := range duties {
		duty := duties[i]
		if duty.AttestationSlot == nil {
			continue
		}
		slot := *duty.AttestationSlot

		aggregator := false
		proof, err := s.Signer.SelectionProof(ctx, fork, slot, duty.PubKey)
		if err != nil {
			logger.Warn("Selection proof for validator %d slot %d failed: %v", duty.ValidatorIndex, slot, err)
		} else {
			aggregator = IsAggregator(duty.CommitteeLength, proof)
		}

		persistent = append(persistent, domain.SubnetSubscription{
			ValidatorIndex:   duty.ValidatorIndex,
			CommitteeIndex:   duty.CommitteeIndex,
			CommitteesAtSlot: duty.CommitteesAtSlot,
			Slot:             slot,
			IsAggregator:     aggregator,
		})

		if !aggregator {
			continue
		}
		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		err = s.BeaconAdapter.SubscribeToBeaconCommitteeForAggregation(
			callCtx, duty.ValidatorIndex, duty.CommitteeIndex, duty.CommitteesAtSlot, slot)
		cancel()
		if err != nil {
			logger.Warn("Committee subscription for validator %d slot %d failed: %v", duty.ValidatorIndex, slot, err)
		}
	}

	if len(persistent) == 0 {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := s.BeaconAdapter.SubscribeToPersistentSubnets(callCtx, persistent); err != nil {
		logger.Warn("Persistent subnet subscription failed: %v", err)
	}
}

// performSlotDuties spawns the slot's proposer and attester tasks. Each
// task shares a deadline at the end of the slot; cancelling it does not
// touch work for other slots or validators.
func (s *DutyCycleService) performSlotDuties(ctx context.Context, slot domain.Slot, epoch domain.Epoch) {
	slotCtx, cancel := context.WithDeadline(ctx, s.slotStart(slot+1))

	var wg sync.WaitGroup
	for _, index := range s.cfg.ValidatorIndices {
		duty, ok := s.Cache.Get(index, epoch)
		if !ok {
			continue
		}

		for _, proposalSlot := range duty.ProposalSlots {
			if proposalSlot != slot {
				continue
			}
			d := duty
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.proposeBlock(slotCtx, &d, slot)
			}()
		}

		if duty.AttestationSlot != nil && *duty.AttestationSlot == slot {
			d := duty
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.attest(slotCtx, &d, slot)
			}()
		}
	}

	go func() {
		wg.Wait()
		cancel()
	}()
}

// proposeBlock runs the proposer flow for one (validator, slot): randao
// reveal, unsigned block from the node, external signature, submission.
func (s *DutyCycleService) proposeBlock(ctx context.Context, duty *domain.ValidatorDuties, slot domain.Slot) {
	fork := s.fork()
	if fork == nil {
		logger.Warn("No fork info; cannot propose at slot %d", slot)
		return
	}
	epoch := slot.EpochAt(s.cfg.SlotsPerEpoch)

	reveal, err := s.Signer.RandaoReveal(ctx, fork, epoch, duty.PubKey)
	if err != nil {
		logger.Error("Randao reveal for validator %d failed: %v", duty.ValidatorIndex, err)
		metrics.MissedDuties.Inc()
		return
	}

	unsigned, err := s.BeaconAdapter.CreateUnsignedBlock(ctx, slot, reveal, s.cfg.Graffiti)
	if err != nil {
		logger.Error("Block creation for slot %d failed: %v", slot, err)
		metrics.MissedDuties.Inc()
		return
	}
	if unsigned == nil {
		// Node cannot produce a block for this slot; not an error, not retried.
		logger.Info("No block producible at slot %d, skipping", slot)
		return
	}
	if unsigned.Slot != slot {
		logger.Error("Node returned block for slot %d, requested %d; discarding", unsigned.Slot, slot)
		metrics.MissedDuties.Inc()
		return
	}

	signed, err := s.Signer.SignBlock(ctx, fork, unsigned, duty.PubKey)
	if err != nil {
		logger.Error("Block signing for slot %d failed: %v", slot, err)
		metrics.MissedDuties.Inc()
		return
	}

	if err := s.BeaconAdapter.SendSignedBlock(ctx, signed); err != nil {
		s.reportSubmissionFailure("block", slot, err)
		return
	}
	metrics.Submissions.WithLabelValues("block").Inc()
	logger.Info("✅ Validator %d proposed block at slot %d", duty.ValidatorIndex, slot)
}

// attest runs the attester flow for one (validator, slot), and the
// aggregation flow when the validator is the committee's aggregator.
func (s *DutyCycleService) attest(ctx context.Context, duty *domain.ValidatorDuties, slot domain.Slot) {
	fork := s.fork()
	if fork == nil {
		logger.Warn("No fork info; cannot attest at slot %d", slot)
		return
	}

	unsigned, err := s.BeaconAdapter.CreateUnsignedAttestation(ctx, slot, duty.CommitteeIndex)
	if err != nil {
		logger.Error("Attestation data for slot %d committee %d failed: %v", slot, duty.CommitteeIndex, err)
		metrics.MissedDuties.Inc()
		return
	}
	if unsigned == nil {
		logger.Info("No attestation producible at slot %d, skipping", slot)
		return
	}

	signed, err := s.Signer.SignAttestation(ctx, fork, unsigned, duty)
	if err != nil {
		logger.Error("Attestation signing for validator %d slot %d failed: %v", duty.ValidatorIndex, slot, err)
		metrics.MissedDuties.Inc()
		return
	}

	if err := s.BeaconAdapter.SendSignedAttestation(ctx, signed); err != nil {
		s.reportSubmissionFailure("attestation", slot, err)
		return
	}
	metrics.Submissions.WithLabelValues("attestation").Inc()
	logger.Info("✅ Validator %d attested at slot %d", duty.ValidatorIndex, slot)

	s.aggregate(ctx, fork, duty, unsigned, slot)
}

// aggregate submits the best known aggregate for the slot's attestation
// data when the validator is selected as aggregator.
func (s *DutyCycleService) aggregate(
	ctx context.Context,
	fork *domain.ForkInfo,
	duty *domain.ValidatorDuties,
	unsigned *domain.UnsignedAttestation,
	slot domain.Slot,
) {
	proof, err := s.Signer.SelectionProof(ctx, fork, slot, duty.PubKey)
	if err != nil {
		logger.Warn("Selection proof for validator %d slot %d failed: %v", duty.ValidatorIndex, slot, err)
		return
	}
	if !IsAggregator(duty.CommitteeLength, proof) {
		return
	}

	dataRoot, err := unsigned.Data.HashTreeRoot()
	if err != nil {
		logger.Error("Attestation data root for slot %d failed: %v", slot, err)
		return
	}

	agg, err := s.BeaconAdapter.CreateAggregate(ctx, slot, duty.CommitteeIndex, domain.Root(dataRoot))
	if err != nil {
		logger.Error("Aggregate lookup for slot %d failed: %v", slot, err)
		metrics.MissedDuties.Inc()
		return
	}
	if agg == nil {
		logger.Info("No aggregate known for slot %d yet, skipping", slot)
		return
	}

	signedAgg, err := s.Signer.SignAggregateAndProof(ctx, fork, agg, proof, duty)
	if err != nil {
		logger.Error("Aggregate signing for validator %d slot %d failed: %v", duty.ValidatorIndex, slot, err)
		metrics.MissedDuties.Inc()
		return
	}

	if err := s.BeaconAdapter.SendAggregateAndProof(ctx, signedAgg); err != nil {
		s.reportSubmissionFailure("aggregate", slot, err)
		return
	}
	metrics.Submissions.WithLabelValues("aggregate").Inc()
	logger.Info("✅ Validator %d submitted aggregate for slot %d", duty.ValidatorIndex, slot)
}

// reportSubmissionFailure logs and counts a failed submission. Submissions
// are never retried: past the slot deadline a resubmission has no protocol
// value, and a node-side rejection cannot succeed on retry.
func (s *DutyCycleService) reportSubmissionFailure(kind string, slot domain.Slot, err error) {
	metrics.SubmissionFailures.WithLabelValues(kind).Inc()
	metrics.MissedDuties.Inc()
	if errors.Is(err, domain.ErrArtifactRejected) {
		logger.Error("❌ %s for slot %d rejected by node: %v", kind, slot, err)
		return
	}
	logger.Error("❌ %s submission for slot %d failed: %v", kind, slot, err)
}

// withRetry runs fn with a per-call timeout, retrying transport failures
// with linear backoff up to the configured limit.
func (s *DutyCycleService) withRetry(ctx context.Context, fn func(context.Context) error) error {
	var err error
	for attempt := 0; attempt <= s.cfg.FetchRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * s.cfg.FetchBackoff):
			}
		}

		callCtx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
		err = fn(callCtx)
		cancel()
		if err == nil {
			return nil
		}
		logger.Warn("Beacon node call failed (attempt %d/%d): %v", attempt+1, s.cfg.FetchRetries+1, err)
	}
	return err
}

func (s *DutyCycleService) fork() *domain.ForkInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentFork
}

func (s *DutyCycleService) setFork(fork *domain.ForkInfo) {
	s.mu.Lock()
	s.currentFork = fork
	s.mu.Unlock()
}

func (s *DutyCycleService) slotAt(t time.Time) domain.Slot {
	if t.Before(s.cfg.GenesisTime) {
		return 0
	}
	return domain.Slot(t.Sub(s.cfg.GenesisTime) / s.cfg.SecondsPerSlot)
}

func (s *DutyCycleService) slotStart(slot domain.Slot) time.Time {
	return s.cfg.GenesisTime.Add(time.Duration(slot) * s.cfg.SecondsPerSlot)
}
