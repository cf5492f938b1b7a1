package tech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFunctions(t *testing.T) {
	lf, err := ParseLayerFunction("METAL3")
	require.NoError(t, err)
	assert.Equal(t, "METAL3", lf.String())
	assert.True(t, lf.IsMetal())

	af, err := ParseArcFunction("POLY1")
	require.NoError(t, err)
	assert.Equal(t, "POLY1", af.String())

	nf, err := ParseNodeFunction("TRANMOS")
	require.NoError(t, err)
	assert.True(t, nf.IsTransistor())

	ps, err := ParsePolyStyle("CLOSED")
	require.NoError(t, err)
	assert.Equal(t, Closed, ps)

	o, err := ParseOutline("PAT_S")
	require.NoError(t, err)
	assert.Equal(t, "PAT_S", o.String())
	assert.NotEqual(t, NoOutline, o)
}

func TestParseUnknownName(t *testing.T) {
	_, err := ParseLayerFunction("METAL99")
	var unknown *UnknownNameError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "METAL99", unknown.Name)

	_, err = ParseOutline("")
	assert.Error(t, err)
}

func TestExtraFunction(t *testing.T) {
	tests := []struct {
		in   string
		want ExtraFunction
		out  string
	}{
		{"p-type", ExtraPType, "p-type"},
		{"depletion_heavy", ExtraDepletion | ExtraHeavy, "depletion_heavy"},
		{"enhancement_light", ExtraEnhancement | ExtraLight, "enhancement_light"},
		{"heavy_depletion", ExtraDepletion | ExtraHeavy, "depletion_heavy"},
		{"thick", ExtraThick, "thick"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseExtraFunction(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.out, got.String())
		})
	}

	_, err := ParseExtraFunction("depletion_bogus")
	assert.Error(t, err)
	assert.Equal(t, "", ExtraFunction(0).String())
}
