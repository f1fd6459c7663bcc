package domain

import "fmt"

// ReorgEvent records a single observed chain reorganization. Created once
// per notification and never mutated; structurally identical events are
// distinct observations.
type ReorgEvent struct {
	BestBlockRoot      Root
	BestSlot           Slot
	CommonAncestorSlot Slot
}

func (e ReorgEvent) Equal(other ReorgEvent) bool {
	return e == other
}

func (e ReorgEvent) String() string {
	return fmt.Sprintf("ReorgEvent{bestBlockRoot=%s, bestSlot=%d, commonAncestorSlot=%d}",
		e.BestBlockRoot, e.BestSlot, e.CommonAncestorSlot)
}
