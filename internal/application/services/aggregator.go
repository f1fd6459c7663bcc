package services

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/attestantio/go-eth2-client/spec/phase0"
)

// TargetAggregatorsPerCommittee is the consensus-spec target number of
// aggregators per committee.
const TargetAggregatorsPerCommittee = 16

// IsAggregator reports whether the selection proof elects the validator as
// aggregator for its committee (is_aggregator from the consensus spec).
func IsAggregator(committeeLength uint64, selectionProof phase0.BLSSignature) bool {
	modulo := committeeLength / TargetAggregatorsPerCommittee
	if modulo < 1 {
		modulo = 1
	}
	digest := sha256.Sum256(selectionProof[:])
	return binary.LittleEndian.Uint64(digest[:8])%modulo == 0
}
