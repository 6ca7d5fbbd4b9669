package epoch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromBlock(t *testing.T) {
	assert.Equal(t, int64(2), FromBlock(60000))
	assert.Equal(t, int64(0), FromBlock(0))
	assert.Equal(t, int64(-1), FromBlock(-1))
}

func TestFromSeedRoundTrip(t *testing.T) {
	for _, e := range []int64{0, 1, 5, 42} {
		seed := SeedForEpoch(e)
		assert.Equal(t, e, FromSeed(seed))
	}
}

func TestFromSeedUnrecognizedGivesUp(t *testing.T) {
	assert.Equal(t, int64(-1), FromSeed([]byte("not a real seed chain value")))
}
