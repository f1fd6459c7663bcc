package adapters

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/attestantio/go-eth2-client/api"
	apiv1 "github.com/attestantio/go-eth2-client/api/v1"
	eth2http "github.com/attestantio/go-eth2-client/http"
	"github.com/pkg/errors"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/logger"
)

// ReorgRecorder is the part of the tracker the feed writes to.
type ReorgRecorder interface {
	RecordReorg(bestBlockRoot domain.Root, bestSlot, commonAncestorSlot domain.Slot)
}

// ReorgEventsAdapter subscribes to the beacon node's chain_reorg event
// topic and records each notification, in the order the node emits them,
// into the tracker.
type ReorgEventsAdapter struct {
	client   *eth2http.Service
	recorder ReorgRecorder
}

// NewReorgEventsAdapter dials the node's event stream endpoint.
func NewReorgEventsAdapter(endpoint string, recorder ReorgRecorder) (*ReorgEventsAdapter, error) {
	client, err := eth2http.New(
		context.Background(),
		eth2http.WithAddress(endpoint),
		eth2http.WithHTTPClient(&nethttp.Client{}),
		eth2http.WithTimeout(20*time.Second),
	)
	if err != nil {
		return nil, errors.Wrap(err, "connecting event stream client")
	}

	return &ReorgEventsAdapter{
		client:   client.(*eth2http.Service),
		recorder: recorder,
	}, nil
}

// Run subscribes to chain_reorg events and keeps the subscription alive,
// redialing with backoff, until the context is cancelled.
func (a *ReorgEventsAdapter) Run(ctx context.Context) {
	backoff := time.Second
	for {
		err := a.client.Events(ctx, &api.EventsOpts{
			Topics:  []string{"chain_reorg"},
			Handler: a.handleEvent,
		})
		if err == nil {
			// Subscription established; the client redelivers events until
			// the context ends.
			<-ctx.Done()
			return
		}

		logger.Warn("Reorg event subscription failed: %v; retrying in %s", err, backoff)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (a *ReorgEventsAdapter) handleEvent(event *apiv1.Event) {
	reorg, ok := event.Data.(*apiv1.ChainReorgEvent)
	if !ok {
		logger.Warn("Unexpected payload on chain_reorg topic: %T", event.Data)
		return
	}

	bestSlot := domain.Slot(reorg.Slot)
	commonAncestor := domain.Slot(0)
	if domain.Slot(reorg.Depth) <= bestSlot {
		commonAncestor = bestSlot - domain.Slot(reorg.Depth)
	}

	a.recorder.RecordReorg(domain.Root(reorg.NewHeadBlock), bestSlot, commonAncestor)
}
