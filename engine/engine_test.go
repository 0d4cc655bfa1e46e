package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEngineRejectsZeroBusBlockSize(t *testing.T) {
	_, err := NewEngine(0)
	assert.ErrorIs(t, err, ErrInvariantViolation)
}

func TestNewEngineDefaults(t *testing.T) {
	e, err := NewEngine(256)
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, uint32(256), e.busBlockSize)
	assert.Equal(t, uint32(defaultOversizeGuard), e.oversizeGuard)
	assert.Equal(t, uint32(BufSize), e.ring.size)
}

func TestEngineStatsStartsAtFirstObservationWinsSeed(t *testing.T) {
	e, err := NewEngine(256)
	require.NoError(t, err)
	defer e.Close()

	s := e.Stats()
	assert.Equal(t, uint32(math.MaxUint32), s.PayloadCountMin)
	assert.Equal(t, uint32(math.MaxUint32), s.MessageSizeMin)
	assert.Equal(t, uint64(0), s.MessagesSent)
}

func TestWithOversizeGuardOverride(t *testing.T) {
	e, err := NewEngine(256, WithOversizeGuard(4096))
	require.NoError(t, err)
	defer e.Close()

	assert.Equal(t, uint32(4096), e.oversizeGuard)
}

// TestOversizeGuardClosesMessageBeforePldMax exercises the actual
// branch in Submit (open.Size()+padded > oversizeGuard), not just the
// option wiring: a message must close once it would cross the guard
// even though it's nowhere near pldMax descriptors yet (spec.md §4.4
// step 3 / §9 Open Questions).
func TestOversizeGuardClosesMessageBeforePldMax(t *testing.T) {
	e, err := NewEngine(16, WithOversizeGuard(128), withBufSize(4096))
	require.NoError(t, err)
	defer e.Close()

	// hdrBlock (64) + 4*16 = 128 == guard; a 5th 16-byte payload would
	// push it to 144 > 128, so it must land in a new message instead.
	for i := 0; i < 5; i++ {
		require.NoError(t, e.Submit(fillPattern(16, byte(i)), PayloadData))
	}

	first, ok := e.TakeNext()
	require.True(t, ok)
	firstPls := decodeMessage(t, first.Bytes())
	assert.Len(t, firstPls, 4)
	assert.Less(t, len(firstPls), pldMax)
	e.MarkSent()

	second, ok := e.TakeNext()
	require.True(t, ok)
	secondPls := decodeMessage(t, second.Bytes())
	require.Len(t, secondPls, 1)
	assert.Equal(t, fillPattern(16, 4), secondPls[0].bytes)
	e.MarkSent()

	_, ok = e.TakeNext()
	assert.False(t, ok)
}

func TestCloseReleasesRingAndIsIdempotentToCall(t *testing.T) {
	e, err := NewEngine(256, withBufSize(1024))
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
}

func TestEngineCollectorBindsToOwnStats(t *testing.T) {
	e, err := NewEngine(256, withBufSize(1024))
	require.NoError(t, err)
	defer e.Close()

	require.NoError(t, e.Submit(make([]byte, 16), PayloadData))
	_, ok := e.TakeNext()
	require.True(t, ok)
	e.MarkSent()

	c := e.Collector("test")
	assert.NotNil(t, c)
}
