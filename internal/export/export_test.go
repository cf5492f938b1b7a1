package export

import (
	"bytes"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/testutil"
)

func TestSummarize(t *testing.T) {
	s := Summarize(testutil.Technology(t))

	assert.Equal(t, "mini", s.Name)
	assert.Equal(t, models.MetalRange{Min: 1, Max: 2, Default: 2}, s.Metals)
	require.Len(t, s.Layers, 3)
	assert.Equal(t, models.LayerSummary{Name: "Metal-1", Function: "METAL1", CIF: "CMF", PureNode: "Metal-1-Node"}, s.Layers[0])
	require.Len(t, s.Arcs, 1)
	assert.Equal(t, []string{"Metal-1"}, s.Arcs[0].Layers)
	assert.Equal(t, "Metal-1-Pin", s.Arcs[0].Pin)
	require.Len(t, s.Nodes, 2)
	assert.Equal(t, []string{"m1m2"}, s.Nodes[1].Ports)
	require.NotNil(t, s.Menu)
	assert.Equal(t, models.MenuSummary{Columns: 1, Rows: 2, Boxes: 2}, *s.Menu)
	require.Len(t, s.RuleSets, 1)
	assert.Equal(t, []string{"width"}, s.RuleSets[0].LayerRules)
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", FormatJSON, false},
		{"json", FormatJSON, false},
		{"MSGPACK", FormatMsgpack, false},
		{"cbor", FormatCBOR, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMarshal(t *testing.T) {
	s := Summarize(testutil.Technology(t))

	t.Run("json", func(t *testing.T) {
		data, err := Marshal(FormatJSON, s)
		require.NoError(t, err)
		var back models.TechnologySummary
		require.NoError(t, json.Unmarshal(data, &back))
		assert.Equal(t, s.Name, back.Name)
		assert.Equal(t, s.Nodes, back.Nodes)
	})

	t.Run("msgpack", func(t *testing.T) {
		data, err := Marshal(FormatMsgpack, s)
		require.NoError(t, err)
		var back models.TechnologySummary
		require.NoError(t, msgpack.Unmarshal(data, &back))
		assert.Equal(t, s.Layers, back.Layers)
	})

	t.Run("cbor is deterministic", func(t *testing.T) {
		a, err := Marshal(FormatCBOR, s)
		require.NoError(t, err)
		b, err := Marshal(FormatCBOR, Summarize(testutil.Technology(t)))
		require.NoError(t, err)
		assert.True(t, bytes.Equal(a, b))

		var back models.TechnologySummary
		require.NoError(t, cbor.Unmarshal(a, &back))
		assert.Equal(t, s.Arcs, back.Arcs)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := Marshal("yaml", s)
		assert.Error(t, err)
	})
}
