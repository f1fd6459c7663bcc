package api

import (
	"encoding/json"
	nethttp "net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/Marketen/validator-client/internal/application/domain"
	"github.com/Marketen/validator-client/internal/application/services"
)

func registeredRoutes(t *testing.T, router *mux.Router) map[string][]string {
	t.Helper()
	routes := make(map[string][]string)
	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		template, err := route.GetPathTemplate()
		if err != nil {
			return err
		}
		methods, err := route.GetMethods()
		if err != nil {
			return err
		}
		routes[template] = append(routes[template], methods...)
		return nil
	})
	require.NoError(t, err)
	return routes
}

func TestEveryDeclaredRouteRegisteredExactlyOnce(t *testing.T) {
	router := mux.NewRouter()
	handlers := DefaultHandlers(services.NewReorgTracker(), services.NewDutyCache(32))
	require.NoError(t, RegisterRoutes(router, handlers))

	routes := registeredRoutes(t, router)
	require.Len(t, routes, len(handlers))
	for _, h := range handlers {
		require.ElementsMatch(t, h.Methods(), routes[h.Route()], "route %s", h.Route())
	}
}

func TestDuplicateRouteRegistrationFails(t *testing.T) {
	router := mux.NewRouter()
	err := RegisterRoutes(router, []Handler{GetHealth{}, GetHealth{}})
	require.Error(t, err)
	require.Contains(t, err.Error(), "registered twice")
}

func TestGetHealth(t *testing.T) {
	recorder := httptest.NewRecorder()
	GetHealth{}.ServeHTTP(recorder, httptest.NewRequest(nethttp.MethodGet, RouteHealth, nil))
	require.Equal(t, nethttp.StatusOK, recorder.Code)
}

func TestGetReorgEventsReturnsOrderedLog(t *testing.T) {
	tracker := services.NewReorgTracker()
	tracker.RecordReorg(domain.Root{0x01}, 100, 90)
	tracker.RecordReorg(domain.Root{0x02}, 101, 95)

	recorder := httptest.NewRecorder()
	GetReorgEvents{Tracker: tracker}.ServeHTTP(recorder, httptest.NewRequest(nethttp.MethodGet, RouteReorgEvents, nil))
	require.Equal(t, nethttp.StatusOK, recorder.Code)

	var events []struct {
		BestBlockRoot      string `json:"best_block_root"`
		BestSlot           string `json:"best_slot"`
		CommonAncestorSlot string `json:"common_ancestor_slot"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &events))
	require.Len(t, events, 2)
	require.Equal(t, "100", events[0].BestSlot)
	require.Equal(t, "90", events[0].CommonAncestorSlot)
	require.Equal(t, "101", events[1].BestSlot)
	require.Equal(t, "95", events[1].CommonAncestorSlot)
	require.Equal(t, "0x0100000000000000000000000000000000000000000000000000000000000000", events[0].BestBlockRoot)
}

func TestGetDutiesReturnsEpochSnapshot(t *testing.T) {
	cache := services.NewDutyCache(32)
	slot := domain.Slot(70)
	cache.Put(2, domain.ValidatorDuties{
		ValidatorIndex:  7,
		AttestationSlot: &slot,
		CommitteeIndex:  3,
		CommitteeLength: 128,
	})

	router := mux.NewRouter()
	require.NoError(t, RegisterRoutes(router, []Handler{GetDuties{Cache: cache}}))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(nethttp.MethodGet, "/v1/duties/2", nil))
	require.Equal(t, nethttp.StatusOK, recorder.Code)

	var duties []map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &duties))
	require.Len(t, duties, 1)
	require.Equal(t, "7", duties[0]["validator_index"])
	require.Equal(t, "70", duties[0]["attestation_slot"])
}

func TestGetDutiesRejectsBadEpoch(t *testing.T) {
	router := mux.NewRouter()
	require.NoError(t, RegisterRoutes(router, []Handler{GetDuties{Cache: services.NewDutyCache(32)}}))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(nethttp.MethodGet, "/v1/duties/not-a-number", nil))
	require.Equal(t, nethttp.StatusBadRequest, recorder.Code)
}
