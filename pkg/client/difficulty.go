package client

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

// maxTarget is the theoretical maximum boundary (2^256-1), the denominator
// the original showMiningAt diagnostic divides by to turn a pool-reported
// boundary into a human-facing difficulty (SPEC_FULL §12 item 2).
var maxTarget = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// DifficultyFromBoundary converts a hex-encoded target boundary into a
// difficulty ratio (maxTarget / boundary). Smaller boundaries mean higher
// difficulty.
func DifficultyFromBoundary(boundary string) (float64, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(boundary, "0x"), "0X")
	if hex == "" {
		return 0, errors.New("empty boundary")
	}
	target, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return 0, errors.Errorf("invalid boundary %q", boundary)
	}
	if target.Sign() == 0 {
		return 0, errors.New("zero boundary")
	}
	ratio := new(big.Float).Quo(new(big.Float).SetInt(maxTarget), new(big.Float).SetInt(target))
	f, _ := ratio.Float64()
	return f, nil
}
