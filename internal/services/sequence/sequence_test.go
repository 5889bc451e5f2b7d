package sequence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextPairIsContiguous(t *testing.T) {
	g := &Generator{
		Now:  func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		Rand: func() int64 { return 42 },
	}

	a, b := g.NextPair()

	require.Equal(t, a+1, b)
	require.Equal(t, int64(1_700_000_000_000)*randomSpread+42, a)
}

func TestNextSequenceIsTimeMonotoneAcrossMillis(t *testing.T) {
	millis := int64(1_700_000_000_000)
	g := &Generator{
		Now:  func() time.Time { return time.UnixMilli(millis) },
		Rand: func() int64 { return 99_999 },
	}

	first := g.NextSequence()

	millis++
	g.Rand = func() int64 { return 0 }

	second := g.NextSequence()

	require.Greater(t, second, first)
}

func TestNextSequenceToleratesCollisionWithinSameMillisecond(t *testing.T) {
	g := &Generator{
		Now:  func() time.Time { return time.UnixMilli(1_700_000_000_000) },
		Rand: func() int64 { return 7 },
	}

	a := g.NextSequence()
	b := g.NextSequence()

	require.Equal(t, a, b)
}
