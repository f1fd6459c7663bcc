package domain

import (
	"crypto/sha256"
	"encoding/binary"
)

// BLS signature domain types from the consensus spec.
var (
	DomainTypeBeaconProposer    = [4]byte{0x00, 0x00, 0x00, 0x00}
	DomainTypeBeaconAttester    = [4]byte{0x01, 0x00, 0x00, 0x00}
	DomainTypeRandao            = [4]byte{0x02, 0x00, 0x00, 0x00}
	DomainTypeSelectionProof    = [4]byte{0x05, 0x00, 0x00, 0x00}
	DomainTypeAggregateAndProof = [4]byte{0x06, 0x00, 0x00, 0x00}
)

// SigningDomain computes the 32-byte BLS domain for a domain type under this
// fork (compute_domain). fork_data_root is the hash tree root of
// ForkData{current_version, genesis_validators_root}; both fields are
// 32-byte leaves, so the root is a single hash of their concatenation.
func (f ForkInfo) SigningDomain(domainType [4]byte) [32]byte {
	var versionLeaf [32]byte
	copy(versionLeaf[:4], f.CurrentVersion[:])
	forkDataRoot := sha256.Sum256(append(versionLeaf[:], f.GenesisValidatorsRoot[:]...))

	var domain [32]byte
	copy(domain[:4], domainType[:])
	copy(domain[4:], forkDataRoot[:28])
	return domain
}

// SigningRoot combines an object root with a signing domain
// (compute_signing_root; SigningData has two 32-byte leaves).
func SigningRoot(objectRoot [32]byte, domain [32]byte) [32]byte {
	return sha256.Sum256(append(objectRoot[:], domain[:]...))
}

// Uint64Root returns the hash tree root of a uint64: little-endian bytes
// zero-padded to 32. Used for randao (epoch) and selection-proof (slot)
// signing roots.
func Uint64Root(v uint64) [32]byte {
	var root [32]byte
	binary.LittleEndian.PutUint64(root[:8], v)
	return root
}
