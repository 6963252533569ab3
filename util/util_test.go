package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEasingLookup(t *testing.T) {
	for _, name := range []string{"", "linear", "InOutQuad", "in-out-quad", "outSine"} {
		f, err := Easing(name)
		require.NoError(t, err, name)
		assert.InDelta(t, 0.0, f(0), 1e-9, name)
		assert.InDelta(t, 1.0, f(1), 1e-9, name)
	}
}

func TestEasingLinearIsIdentity(t *testing.T) {
	f, err := Easing("linear")
	require.NoError(t, err)
	for _, v := range []float64{0, 0.25, 0.5, 0.9} {
		assert.Equal(t, v, f(v))
	}
}

func TestEasingUnknown(t *testing.T) {
	_, err := Easing("bouncy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bouncy")
}

func TestEasingNamesSorted(t *testing.T) {
	names := EasingNames()
	require.NotEmpty(t, names)
	assert.IsNonDecreasing(t, names)
	assert.Contains(t, names, "linear")
}

func TestClamp01(t *testing.T) {
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 0.4, Clamp01(0.4))
	assert.Equal(t, 1.0, Clamp01(1.0001))
}
