package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCategoryForCode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		code string
		want MethodCategory
	}{
		{"E", MethodRadar},
		{"F", MethodRadar},
		{"G", MethodRadar},
		{"H", MethodRadar},
		{"I", MethodRadar},
		{"J", MethodRadar},
		{"Q", MethodLaser},
		{"R", MethodLaser},
		{"C", MethodVascar},
		{"D", MethodVascar},
		{"A", MethodPatrol},
		{"B", MethodPatrol},
		{"L", MethodPatrol},
		{"M", MethodPatrol},
		{"N", MethodPatrol},
		{"O", MethodPatrol},
		{"P", MethodPatrol},
		{"S", MethodAutomated},
		{"Z", MethodUnknown},
		{"", MethodUnknown},
		{"E - radar stationary", MethodRadar},
		{"Q handheld", MethodLaser},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CategoryForCode(tc.code), "code %q", tc.code)
	}
}

func TestParseMethodCategory(t *testing.T) {
	t.Parallel()

	for _, valid := range []string{"radar", "laser", "vascar", "patrol", "automated"} {
		category, ok := ParseMethodCategory(valid)
		assert.True(t, ok)
		assert.Equal(t, MethodCategory(valid), category)
	}

	for _, invalid := range []string{"", "unknown", "RADAR", "lidar", "radar "} {
		_, ok := ParseMethodCategory(invalid)
		assert.False(t, ok, "input %q", invalid)
	}
}

func TestCodesForMethodReturnsCopy(t *testing.T) {
	t.Parallel()

	codes := CodesForMethod(MethodLaser)
	assert.Equal(t, []string{"Q", "R"}, codes)

	codes[0] = "X"
	assert.Equal(t, []string{"Q", "R"}, CodesForMethod(MethodLaser))
}
