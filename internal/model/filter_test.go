package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBounds(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		bounds, err := ParseBounds("-77.25,39.10,-77.05,39.30")
		require.NoError(t, err)
		assert.Equal(t, &Bounds{MinLng: -77.25, MinLat: 39.10, MaxLng: -77.05, MaxLat: 39.30}, bounds)
	})

	t.Run("whitespace tolerated", func(t *testing.T) {
		t.Parallel()
		bounds, err := ParseBounds(" -77.25, 39.10, -77.05, 39.30 ")
		require.NoError(t, err)
		assert.Equal(t, -77.05, bounds.MaxLng)
	})

	t.Run("rejected", func(t *testing.T) {
		t.Parallel()
		for _, raw := range []string{
			"",
			"1,2,3",
			"1,2,3,4,5",
			"a,b,c,d",
			"-77.25,39.10,-77.05,north",
		} {
			_, err := ParseBounds(raw)
			assert.ErrorIs(t, err, ErrInvalidBounds, "input %q", raw)
		}
	})
}

func TestSpatialFilterIsZero(t *testing.T) {
	t.Parallel()

	assert.True(t, SpatialFilter{}.IsZero())

	year := 2024
	assert.False(t, SpatialFilter{Year: &year}.IsZero())
	assert.False(t, SpatialFilter{SpeedOnly: true}.IsZero())
	assert.False(t, SpatialFilter{Bounds: &Bounds{}}.IsZero())
	assert.False(t, SpatialFilter{Method: MethodRadar}.IsZero())
}
