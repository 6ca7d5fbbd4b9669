// Package epoch derives the coarse work-generation epoch a work package
// belongs to, either from block height or from a seed-to-epoch lookup
// (spec GLOSSARY: "Epoch"). The real ethash implementation walks a chain
// of keccak256 reseedings; we reproduce the same deterministic-chain shape
// using sha256 (see DESIGN.md for why no keccak/ethash dependency is
// wired in — the exact hash is immaterial to the manager's contract, only
// the determinism is).
package epoch

import "crypto/sha256"

// BlockLength is the number of blocks per epoch (spec GLOSSARY).
const BlockLength = 30000

// MaxLookup bounds the seed-chain search so an unrecognized seed resolves
// quickly instead of looping forever.
const MaxLookup = 2048

// FromBlock derives the epoch from a block height.
func FromBlock(block int64) int64 {
	if block < 0 {
		return -1
	}
	return block / BlockLength
}

var genesisSeed = [32]byte{}

// FromSeed derives the epoch by walking the seed chain from the genesis
// seed until it finds seed, capped at MaxLookup. Returns -1 if seed isn't
// found within the cap, matching ethash::find_epoch_number's behavior of
// giving up on an unrecognized seed.
func FromSeed(seed []byte) int64 {
	current := genesisSeed
	for e := int64(0); e < MaxLookup; e++ {
		if len(seed) == len(current) && string(seed) == string(current[:]) {
			return e
		}
		current = sha256.Sum256(current[:])
	}
	return -1
}

// SeedForEpoch computes the seed for a given epoch, the inverse of
// FromSeed, useful for tests and for clients that need to hand the
// manager a seed consistent with a chosen epoch.
func SeedForEpoch(e int64) []byte {
	current := genesisSeed
	for i := int64(0); i < e; i++ {
		current = sha256.Sum256(current[:])
	}
	out := make([]byte, len(current))
	copy(out, current[:])
	return out
}
