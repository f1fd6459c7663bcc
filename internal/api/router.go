package api

import (
	"fmt"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/Marketen/validator-client/internal/application/services"
)

// RegisterRoutes registers every handler's declared route against the
// router, exactly once per (route, method) pair. A duplicate declaration is
// a wiring bug and fails registration.
func RegisterRoutes(router *mux.Router, handlers []Handler) error {
	seen := make(map[string]struct{})
	for _, h := range handlers {
		for _, method := range h.Methods() {
			key := fmt.Sprintf("%s %s", method, h.Route())
			if _, ok := seen[key]; ok {
				return errors.Errorf("route registered twice: %s", key)
			}
			seen[key] = struct{}{}
		}
		router.Handle(h.Route(), h).Methods(h.Methods()...)
	}
	return nil
}

// DefaultHandlers assembles the handler set served by this process.
func DefaultHandlers(tracker *services.ReorgTracker, cache *services.DutyCache) []Handler {
	return []Handler{
		GetHealth{},
		GetReorgEvents{Tracker: tracker},
		GetDuties{Cache: cache},
		GetMetrics{},
	}
}
