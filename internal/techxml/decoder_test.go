package techxml

import (
	"bytes"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imr/Electric8/internal/distance"
	"github.com/imr/Electric8/internal/keyword"
	"github.com/imr/Electric8/internal/schema"
	"github.com/imr/Electric8/internal/tech"
)

func decodeFixture(t *testing.T) *tech.Technology {
	t.Helper()
	tc, err := DecodeFile("testdata/demo.xml")
	require.NoError(t, err)
	return tc
}

// doc wraps body in a technology element with the required header fields.
func doc(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<technology name="t" xmlns="http://electric.sun.com/Technology"
    xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <numMetals min="1" max="1" default="1"/>
    <scale value="100.0" relevant="false"/>
    <defaultFoundry value="NONE"/>
    <minResistance value="0.0"/>
    <minCapacitance value="0.0"/>
` + body + `
</technology>
`
}

func TestHandlersCoverEveryKeyword(t *testing.T) {
	for _, k := range keyword.All() {
		assert.True(t, handlers[k].defined(), "no handler for <%s>", k)
	}
}

func TestDecode_Header(t *testing.T) {
	tc := decodeFixture(t)

	assert.Equal(t, "demo", tc.Name)
	assert.Equal(t, "com.example.technology.Demo", tc.ClassName)
	assert.Equal(t, "Demo", tc.ShortName)
	assert.Equal(t, "Demo CMOS & friends", tc.Description)
	assert.Equal(t, 2, tc.MinMetals)
	assert.Equal(t, 2, tc.MaxMetals)
	assert.Equal(t, 2, tc.DefaultMetals)
	assert.Equal(t, 200.0, tc.Scale)
	assert.True(t, tc.ScaleRelevant)
	assert.Equal(t, "GENERIC", tc.DefaultFoundry)
	assert.Equal(t, 1.0, tc.MinResistance)
	assert.Equal(t, 0.1, tc.MinCapacitance)
}

func TestDecode_Layers(t *testing.T) {
	tc := decodeFixture(t)

	layers := tc.Layers()
	require.Len(t, layers, 6)
	names := make([]string, len(layers))
	for i, l := range layers {
		names[i] = l.Name()
	}
	assert.Equal(t, []string{"Metal-1", "Metal-2", "Polysilicon-1", "P-Active", "Transistor-Poly", "Via1"}, names)

	m1 := tc.FindLayer("Metal-1")
	require.NotNil(t, m1)
	assert.Equal(t, tech.LayerFunction(1), m1.Function)
	assert.Equal(t, "METAL1", m1.Function.String())
	assert.Equal(t, "CMF", m1.CIF)
	assert.Equal(t, "metal1", m1.Skill)
	assert.Equal(t, 0.06, m1.Resistance)
	assert.Equal(t, 0.07, m1.Capacitance)
	require.NotNil(t, m1.PureLayerNode)
	assert.Equal(t, "Metal-1-Node", m1.PureLayerNode.Name)
	assert.Equal(t, "Metal-1-Pure", m1.PureLayerNode.OldName)
	assert.Equal(t, tech.Filled, m1.PureLayerNode.Style)
	assert.Equal(t, []string{"Metal-1"}, m1.PureLayerNode.PortArcs)

	m2 := tc.FindLayer("Metal-2")
	require.NotNil(t, m2.PureLayerNode)
	assert.Equal(t, tech.Closed, m2.PureLayerNode.Style)
	assert.False(t, m2.HasParasitics())

	assert.Equal(t, tech.ExtraPType, tc.FindLayer("P-Active").Extra)
	assert.Equal(t, tech.ExtraConnectsMetal, tc.FindLayer("Via1").Extra)
}

func TestDecode_Arcs(t *testing.T) {
	tc := decodeFixture(t)

	require.Len(t, tc.Arcs, 3)
	m1 := tc.FindArc("Metal-1")
	require.NotNil(t, m1)
	assert.Equal(t, "Metal-1-Old", m1.OldName)
	assert.True(t, m1.Wipable)
	assert.False(t, m1.Curvable)
	assert.True(t, m1.Extended)
	assert.True(t, m1.FixedAngle)
	assert.Equal(t, 90, m1.AngleIncrement)
	assert.Equal(t, 400.0, m1.AntennaRatio)

	require.Len(t, m1.Layers, 1)
	ext := m1.Layers[0].Extend
	assert.Equal(t, 0.5, ext.Constant())
	require.Len(t, ext.Terms(), 1)
	assert.Equal(t, "M1.W", ext.Terms()[0].Name())
	w, err := ext.Lambda(distance.MapContext{"M1.W": 3})
	require.NoError(t, err)
	assert.Equal(t, 3.5, w)

	require.NotNil(t, m1.Pin)
	assert.Equal(t, "Metal-1-Pin", m1.Pin.Name)
	assert.Equal(t, -2.0, m1.Pin.ElibSize)

	poly := tc.FindArc("Polysilicon-1")
	assert.True(t, poly.Layers[0].Extend.IsEmpty())
	assert.Nil(t, poly.Pin)
}

func TestDecode_Nodes(t *testing.T) {
	tc := decodeFixture(t)
	require.Len(t, tc.Nodes, 3)

	t.Run("contact", func(t *testing.T) {
		con := tc.FindNode("Metal-1-Metal-2-Con")
		require.NotNil(t, con)
		assert.True(t, con.Square)
		assert.Equal(t, 5.0, con.DefaultWidth.Constant())
		assert.Equal(t, &tech.Rect{LX: -2.5, HX: 2.5, LY: -2.5, HY: 2.5}, con.NodeBase)
		require.Len(t, con.Layers, 3)

		m1 := con.Layers[0]
		assert.Equal(t, tech.RepBox, m1.Representation)
		assert.True(t, m1.InLayers)
		assert.True(t, m1.InElectricalLayers)
		assert.Equal(t, -1.0, m1.LX.K)
		assert.Equal(t, 1.0, m1.HX.K)
		assert.Equal(t, -0.5, m1.LX.Constant())
		assert.Equal(t, 0.5, m1.HY.Constant())

		// A box with no lambdaBox keeps default coefficients and zero offsets.
		m2 := con.Layers[1]
		assert.Equal(t, -1.0, m2.LY.K)
		assert.Equal(t, 1.0, m2.HY.K)
		assert.True(t, m2.LX.IsEmpty())

		via := con.Layers[2]
		assert.Equal(t, tech.RepMultiCutBox, via.Representation)
		assert.Equal(t, "V1.S", via.SizeRule)
		assert.Equal(t, "V1.SP", via.SepRule)
		assert.Equal(t, "V1.SP2D", via.SepRule2D)
		assert.Equal(t, tech.Closed, via.Style)

		require.Len(t, con.Ports, 1)
		p := con.Ports[0]
		assert.Equal(t, 0, p.Angle)
		assert.Equal(t, 180, p.Range)
		assert.Equal(t, []string{"Metal-1", "Metal-2"}, p.PortArcs)
		assert.Equal(t, 1.0, p.LX.Constant())

		require.NotNil(t, con.SizeRule)
		assert.Equal(t, "V1.S", con.SizeRule.Rule)
	})

	t.Run("serpentine transistor", func(t *testing.T) {
		tr := tc.FindNode("P-Transistor")
		require.NotNil(t, tr)
		assert.Equal(t, "PTran", tr.OldName)
		assert.True(t, tr.ShrinkArcs)
		assert.True(t, tr.LowVt)
		assert.True(t, tr.Function.IsTransistor())
		assert.Equal(t, &tech.Point{X: 0.5, Y: 1.0}, tr.DiskOffset)
		assert.Equal(t, tech.SpecialSerpTrans, tr.SpecialType)
		assert.Equal(t, []float64{0.0625, 1, 1, 2, 0.5, 0.5}, tr.SpecialValues)

		active := tr.Layers[0]
		assert.Equal(t, 1, active.PortNum)
		assert.Equal(t, 4.0, active.LWidth)
		assert.Equal(t, -0.5, active.LY.K)
		assert.Equal(t, -1.0, active.LX.K)

		gate := tr.Layers[1]
		assert.False(t, gate.InLayers)
		assert.True(t, gate.InElectricalLayers)

		poly := tr.Layers[2]
		assert.True(t, poly.InLayers)
		assert.False(t, poly.InElectricalLayers)

		assert.Equal(t, -1.0, tr.Ports[0].HX.K)
		assert.Contains(t, tr.SpiceTemplate, "PMOS")
	})

	t.Run("polygonal", func(t *testing.T) {
		pad := tc.FindNode("Metal-1-Pad")
		require.NotNil(t, pad)
		assert.Equal(t, tech.SpecialPolygonal, pad.SpecialType)
		require.Len(t, pad.Layers, 1)
		assert.Equal(t, tech.RepPoints, pad.Layers[0].Representation)
		assert.Equal(t, []tech.TechPoint{{XM: -1, YM: -1}, {XM: 1, YM: 1}}, pad.Layers[0].TechPoints)
	})
}

func TestDecode_DisplayStyle(t *testing.T) {
	tc := decodeFixture(t)

	require.Len(t, tc.DisplayStyles, 1)
	ds := tc.DisplayStyles[0]
	assert.Equal(t, "Electric", ds.Name)
	assert.Equal(t, []tech.Color{{R: 96, G: 209, B: 255}, {R: 255, G: 155, B: 192}}, ds.Transparent)

	m1 := ds.FindLayerStyle("Metal-1")
	require.NotNil(t, m1)
	g := m1.Graphics
	assert.Equal(t, 1, g.Transparent)
	assert.Equal(t, tech.Color{R: 96, G: 209, B: 255}, g.Color)
	assert.False(t, g.PatternedOnDisplay)
	assert.True(t, g.PatternedOnPrinter)
	assert.Equal(t, uint16(0x8888), g.Pattern[0])
	assert.Equal(t, uint16(0), g.Pattern[1])
	assert.Equal(t, uint16(0x2222), g.Pattern[2])
	assert.Equal(t, uint16(0xFFFF), g.Pattern[15])
	assert.Equal(t, "PAT_S", g.Outline.String())
	assert.Equal(t, 0.8, g.Opacity)
	assert.True(t, g.Foreground)
	assert.Equal(t, "NONE", m1.Mode3D)
	assert.Equal(t, 0.2, m1.Factor3D)

	// Graphics do not carry over from the previous layer.
	m2 := ds.FindLayerStyle("Metal-2")
	assert.Equal(t, tech.NoOutline, m2.Graphics.Outline)
	assert.Equal(t, [tech.PatternRows]uint16{}, m2.Graphics.Pattern)
	assert.Empty(t, m2.Mode3D)

	via := ds.FindLayerStyle("Via1")
	assert.Equal(t, 0, via.Graphics.Transparent)
	assert.Equal(t, tech.Color{R: 180, G: 130}, via.Graphics.Color)
	assert.False(t, via.Graphics.Foreground)
}

func TestDecode_MenuPalette(t *testing.T) {
	tc := decodeFixture(t)

	p := tc.MenuPalette
	require.NotNil(t, p)
	assert.Equal(t, 2, p.NumColumns)
	require.Len(t, p.Boxes, 4)
	assert.Equal(t, 2, p.Rows())

	require.Len(t, p.Boxes[0], 1)
	assert.Same(t, tc.FindArc("Metal-1"), p.Boxes[0][0])

	require.Len(t, p.Boxes[1], 2)
	assert.Same(t, tc.FindNode("Metal-1-Metal-2-Con"), p.Boxes[1][0])
	inst, ok := p.Boxes[1][1].(*tech.MenuNodeInst)
	require.True(t, ok)
	assert.Equal(t, "P-Transistor", inst.ProtoName)
	assert.Equal(t, "TRA4PMOS", inst.Function.String())
	assert.Equal(t, 900, inst.Rotation)
	assert.Equal(t, "4P", inst.Text)
	assert.Equal(t, 4.5, inst.FontSize)

	assert.Equal(t, tech.MenuBox{tech.MenuCell{CellName: "padframe"}, tech.MenuText("Pure")}, p.Boxes[2])
	assert.Empty(t, p.Boxes[3])
}

func TestDecode_RuleSetsAndFoundries(t *testing.T) {
	tc := decodeFixture(t)

	rs := tc.FindRuleSet("common")
	require.NotNil(t, rs)
	require.Len(t, rs.LayerRules(), 2)

	width := rs.FindLayerRule("width")
	require.NotNil(t, width)
	m1, err := width.Find("Metal-1").Lambda(distance.MapContext{"M1.W": 3})
	require.NoError(t, err)
	assert.Equal(t, 3.0, m1)
	assert.Equal(t, 2.0, width.Find("Polysilicon-1").Constant())

	sp := rs.FindLayerRule("spacing").Find("Via1")
	require.Len(t, sp.Terms(), 1)
	term := sp.Terms()[0]
	assert.Equal(t, "Via1", term.Layer())
	assert.Equal(t, "Metal-1", term.Layer2())
	assert.Equal(t, 0.5, term.K())

	require.Len(t, tc.Foundries, 1)
	f := tc.Foundries[0]
	assert.Equal(t, "GENERIC", f.Name)
	assert.Equal(t, []tech.GDSMapping{{Layer: "Metal-1", GDS: "49"}, {Layer: "Via1", GDS: "50, 0"}}, f.LayerGDS)
	require.Len(t, f.Rules, 2)
	assert.Equal(t, "LayerRule", f.Rules[0].Kind)
	v, ok := f.Rules[1].Get("layerNames")
	assert.True(t, ok)
	assert.Equal(t, "{Metal-1,Metal-1}", v)

	require.Len(t, tc.SpiceHeaders, 1)
	assert.Equal(t, 1, tc.SpiceHeaders[0].Level)
	assert.Len(t, tc.SpiceHeaders[0].Lines, 2)
}

func TestDecode_RuleSetNameAlias(t *testing.T) {
	tc, err := Decode(strings.NewReader(doc(`
    <layer name="M" fun="METAL1"/>
    <ruleSet ruleName="legacy">
        <layerRule ruleName="w"><layer name="M"><lambda>1.0</lambda></layer></layerRule>
    </ruleSet>`)), "alias.xml")
	require.NoError(t, err)
	assert.NotNil(t, tc.FindRuleSet("legacy"))
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		check func(t *testing.T, err error)
	}{
		{
			name:  "unknown layer function",
			input: doc(`    <layer name="M" fun="METAL99"/>`),
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
				assert.Equal(t, "bad.xml", sve.File)
				assert.Equal(t, 9, sve.Line)
				assert.Contains(t, sve.Msg, "METAL99")
			},
		},
		{
			name:  "unknown element",
			input: doc(`    <bogus/>`),
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
				assert.Equal(t, 9, sve.Line)
			},
		},
		{
			name:  "malformed xml",
			input: doc(`    <layer name="M" fun="METAL1">`),
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
			},
		},
		{
			name: "duplicate layer",
			input: doc(`    <layer name="M" fun="METAL1"/>
    <layer name="M" fun="METAL2"/>`),
			check: func(t *testing.T, err error) {
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				assert.Equal(t, 10, de.Line)
				var dup *tech.DuplicateDefinitionError
				require.ErrorAs(t, err, &dup)
				assert.Equal(t, "M", dup.Name)
			},
		},
		{
			name: "unresolved menu arc",
			input: doc(`    <menuPalette numColumns="1">
        <menuBox><menuArc>Nowhere</menuArc></menuBox>
    </menuPalette>`),
			check: func(t *testing.T, err error) {
				var de *DecodeError
				require.ErrorAs(t, err, &de)
				var missing *tech.MissingResolutionError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, "arc", missing.Kind)
				assert.Equal(t, "Nowhere", missing.Name)
			},
		},
		{
			name: "unresolved arc layer",
			input: doc(`    <arcProto name="A" fun="METAL1">
        <extended>true</extended>
        <fixedAngle>true</fixedAngle>
        <angleIncrement>90</angleIncrement>
        <arcLayer layer="Missing" style="FILLED"/>
    </arcProto>`),
			check: func(t *testing.T, err error) {
				var missing *tech.MissingResolutionError
				require.ErrorAs(t, err, &missing)
				assert.Equal(t, "layer", missing.Kind)
				assert.Equal(t, "Missing", missing.Name)
			},
		},
		{
			name: "ragged palette",
			input: doc(`    <menuPalette numColumns="2">
        <menuBox/><menuBox/><menuBox/>
    </menuPalette>`),
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
				assert.Contains(t, sve.Msg, "menuPalette")
			},
		},
		{
			name: "short pattern",
			input: doc(`    <layer name="M" fun="METAL1"/>
    <displayStyle name="S">
        <layer name="M">
            <opaqueColor r="1" g="2" b="3"/>
            <pattern>XXXXXXXXXXXXXXXX</pattern>
        </layer>
    </displayStyle>`),
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
				assert.Contains(t, sve.Msg, "pattern rows")
			},
		},
		{
			name:  "no technology",
			input: `<?xml version="1.0"?>`,
			check: func(t *testing.T, err error) {
				var sve *SchemaValidationError
				require.ErrorAs(t, err, &sve)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := Decode(strings.NewReader(tt.input), "bad.xml")
			require.Error(t, err)
			assert.Nil(t, tc)
			tt.check(t, err)
		})
	}
}

func TestDecode_WithoutSchema(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	cache := schema.NewCache(fstest.MapFS{}, "technology.schema.yaml", logger)

	// Grammar-only violations pass when the grammar is unavailable.
	input := doc(`    <layer name="M" fun="METAL1" color="red"/>`)

	_, err := Decode(strings.NewReader(input), "x.xml")
	require.Error(t, err)

	tc, err := Decode(strings.NewReader(input), "x.xml", WithSchemaCache(cache), WithLogger(logger))
	require.NoError(t, err)
	assert.NotNil(t, tc.FindLayer("M"))

	tc, err = Decode(strings.NewReader(input), "x.xml", WithSchemaCache(cache))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(logs.String(), "technology schema unavailable"))
	assert.True(t, errors.Is(cache.Err(), fs.ErrNotExist))
}

func TestDecode_WithoutValidation(t *testing.T) {
	input := doc(`    <layer name="M" fun="METAL1" color="red"/>`)
	tc, err := Decode(strings.NewReader(input), "x.xml", WithoutValidation(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)
	assert.Equal(t, "t", tc.Name)
}
