package backoff

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func zeroJitter() float64 { return 0.5 } // midpoint -> factor == 1

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := New()
	b.floatFunc = zeroJitter

	first := b.Next()
	second := b.Next()
	third := b.Next()

	assert.Equal(t, time.Second, first)
	assert.Equal(t, 2*time.Second, second)
	assert.Equal(t, 4*time.Second, third)

	for i := 0; i < 10; i++ {
		b.Next()
	}
	assert.Equal(t, b.Cap, b.Next())
}

func TestBackoffResetReturnsToBase(t *testing.T) {
	b := New()
	b.floatFunc = zeroJitter

	b.Next()
	b.Next()
	b.Reset()
	assert.Equal(t, 0, b.Attempt())
	assert.Equal(t, time.Second, b.Next())
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	b := New()
	b.Jitter = 0.2
	for i := 0; i < 50; i++ {
		nominal := b.Base << uint(min(i, 30))
		if nominal <= 0 || nominal > b.Cap {
			nominal = b.Cap
		}
		d := b.Next()
		assert.GreaterOrEqual(t, d, time.Duration(float64(nominal)*0.8))
		assert.LessOrEqual(t, d, time.Duration(float64(nominal)*1.2))
	}
}
