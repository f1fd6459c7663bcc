// Package api serves the process's own REST surface: health, duty and
// reorg diagnostics, and prometheus metrics.
package api

import (
	"encoding/json"
	nethttp "net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/application/services"
)

// Declared routes, one constant per handler.
const (
	RouteHealth      = "/eth/v1/node/health"
	RouteReorgEvents = "/v1/tracker/reorgs"
	RouteDuties      = "/v1/duties/{epoch}"
	RouteMetrics     = "/metrics"
)

// Handler is a route-declaring HTTP handler.
type Handler interface {
	nethttp.Handler
	Route() string
	Methods() []string
}

// GetHealth reports process liveness.
type GetHealth struct{}

func (GetHealth) Route() string     { return RouteHealth }
func (GetHealth) Methods() []string { return []string{nethttp.MethodGet} }
func (GetHealth) ServeHTTP(w nethttp.ResponseWriter, _ *nethttp.Request) {
	w.WriteHeader(nethttp.StatusOK)
}

// GetReorgEvents returns the tracker's full ordered reorg log.
type GetReorgEvents struct {
	Tracker *services.ReorgTracker
}

type reorgEventJSON struct {
	BestBlockRoot      string `json:"best_block_root"`
	BestSlot           string `json:"best_slot"`
	CommonAncestorSlot string `json:"common_ancestor_slot"`
}

func (GetReorgEvents) Route() string     { return RouteReorgEvents }
func (GetReorgEvents) Methods() []string { return []string{nethttp.MethodGet} }

func (h GetReorgEvents) ServeHTTP(w nethttp.ResponseWriter, _ *nethttp.Request) {
	events := h.Tracker.ReorgEvents()
	out := make([]reorgEventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, reorgEventJSON{
			BestBlockRoot:      e.BestBlockRoot.String(),
			BestSlot:           strconv.FormatUint(uint64(e.BestSlot), 10),
			CommonAncestorSlot: strconv.FormatUint(uint64(e.CommonAncestorSlot), 10),
		})
	}
	writeJSON(w, out)
}

// GetDuties returns the cached duty records for an epoch.
type GetDuties struct {
	Cache *services.DutyCache
}

type dutyJSON struct {
	ValidatorIndex   string   `json:"validator_index"`
	ProposalSlots    []string `json:"proposal_slots,omitempty"`
	AttestationSlot  string   `json:"attestation_slot,omitempty"`
	CommitteeIndex   string   `json:"committee_index,omitempty"`
	CommitteeLength  string   `json:"committee_length,omitempty"`
	CommitteesAtSlot string   `json:"committees_at_slot,omitempty"`
}

func (GetDuties) Route() string     { return RouteDuties }
func (GetDuties) Methods() []string { return []string{nethttp.MethodGet} }

func (h GetDuties) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	epochStr := mux.Vars(r)["epoch"]
	epoch, err := strconv.ParseUint(epochStr, 10, 64)
	if err != nil {
		nethttp.Error(w, "invalid epoch", nethttp.StatusBadRequest)
		return
	}

	duties := h.Cache.EpochSnapshot(domain.Epoch(epoch))
	out := make([]dutyJSON, 0, len(duties))
	for _, d := range duties {
		record := dutyJSON{
			ValidatorIndex: strconv.FormatUint(uint64(d.ValidatorIndex), 10),
		}
		for _, s := range d.ProposalSlots {
			record.ProposalSlots = append(record.ProposalSlots, strconv.FormatUint(uint64(s), 10))
		}
		if d.AttestationSlot != nil {
			record.AttestationSlot = strconv.FormatUint(uint64(*d.AttestationSlot), 10)
			record.CommitteeIndex = strconv.FormatUint(uint64(d.CommitteeIndex), 10)
			record.CommitteeLength = strconv.FormatUint(d.CommitteeLength, 10)
			record.CommitteesAtSlot = strconv.FormatUint(d.CommitteesAtSlot, 10)
		}
		out = append(out, record)
	}
	writeJSON(w, out)
}

// GetMetrics serves prometheus metrics.
type GetMetrics struct{}

func (GetMetrics) Route() string     { return RouteMetrics }
func (GetMetrics) Methods() []string { return []string{nethttp.MethodGet} }
func (GetMetrics) ServeHTTP(w nethttp.ResponseWriter, r *nethttp.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w nethttp.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		nethttp.Error(w, err.Error(), nethttp.StatusInternalServerError)
	}
}
