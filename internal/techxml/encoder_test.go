package techxml

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imr/Electric8/internal/tech"
)

var fixedClock = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }

func encode(t *testing.T, tc *tech.Technology) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, NewEncoder(Pretty).WithClock(fixedClock).EncodeTechnology(&buf, tc))
	return buf.String()
}

func TestFormatDouble(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0.0"},
		{3, "3.0"},
		{-2.5, "-2.5"},
		{0.1, "0.1"},
		{0.001, "0.001"},
		{1e-4, "1.0E-4"},
		{1.5e-5, "1.5E-5"},
		{9999999, "9999999.0"},
		{1e7, "1.0E7"},
		{-1.25e10, "-1.25E10"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatDouble(tt.in))
			v, err := parseFloat(tt.want)
			require.NoError(t, err)
			assert.Equal(t, tt.in, v)
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	first := decodeFixture(t)
	out := encode(t, first)

	second, err := Decode(strings.NewReader(out), "encoded.xml")
	require.NoError(t, err, out)

	// Canonical output is a fixed point.
	assert.Equal(t, out, encode(t, second))

	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Description, second.Description)
	assert.Equal(t, len(first.Layers()), len(second.Layers()))
	assert.Equal(t, first.FindArc("Metal-1").Layers[0].Extend, second.FindArc("Metal-1").Layers[0].Extend)
	assert.Equal(t, first.FindNode("P-Transistor").Layers, second.FindNode("P-Transistor").Layers)
	assert.Equal(t, first.FindNode("Metal-1-Metal-2-Con").Ports, second.FindNode("Metal-1-Metal-2-Con").Ports)
	assert.Equal(t, first.DisplayStyles[0].FindLayerStyle("Metal-1"), second.DisplayStyles[0].FindLayerStyle("Metal-1"))
	assert.Equal(t, first.Foundries, second.Foundries)
	assert.Equal(t, first.SpiceHeaders, second.SpiceHeaders)

	require.NotNil(t, second.MenuPalette)
	assert.Same(t, second.FindArc("Metal-1"), second.MenuPalette.Boxes[0][0])
	assert.Equal(t, first.MenuPalette.Boxes[1][1], second.MenuPalette.Boxes[1][1])
	assert.Equal(t, first.MenuPalette.Boxes[2], second.MenuPalette.Boxes[2])

	rs1, rs2 := first.FindRuleSet("common"), second.FindRuleSet("common")
	require.NotNil(t, rs2)
	for _, lr := range rs1.LayerRules() {
		other := rs2.FindLayerRule(lr.Name())
		require.NotNil(t, other)
		for _, e := range lr.Entries() {
			assert.Equal(t, &e.Distance, other.Find(e.Layer), "%s/%s", lr.Name(), e.Layer)
		}
	}
}

func TestEncode_Layout(t *testing.T) {
	out := encode(t, decodeFixture(t))

	assert.True(t, strings.HasPrefix(out, "<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n\n<!--\n"))
	assert.Contains(t, out, " * demo technology description\n")
	assert.Contains(t, out, " * Copyright (c) 2024 ")
	assert.Contains(t, out, "<technology name=\"demo\" class=\"com.example.technology.Demo\"\n"+
		"     xmlns=\"http://electric.sun.com/Technology\"\n")
	assert.Contains(t, out, "    <description>Demo CMOS &amp; friends</description>\n")
	assert.Contains(t, out, "    <scale value=\"200.0\" relevant=\"true\"/>\n")

	// Default box coefficients are omitted; lambdaBox is always written.
	assert.Contains(t, out, "        <nodeLayer layer=\"Metal-2\" style=\"FILLED\">\n"+
		"            <box>\n"+
		"                <lambdaBox klx=\"0.0\" khx=\"0.0\" kly=\"0.0\" khy=\"0.0\"/>\n"+
		"            </box>\n")
	assert.Contains(t, out, "<box khx=\"-1.0\">")
	assert.Contains(t, out, "<serpbox kly=\"-0.5\" khy=\"0.5\" lWidth=\"4.0\"")

	// Only the layer that is not in both lists carries the electrical flag.
	assert.Contains(t, out, "<nodeLayer layer=\"Transistor-Poly\" style=\"FILLED\" electrical=\"true\">")
	assert.Contains(t, out, "<nodeLayer layer=\"Polysilicon-1\" style=\"FILLED\" electrical=\"false\">")
	assert.Contains(t, out, "<nodeLayer layer=\"P-Active\" style=\"FILLED\" portNum=\"1\">")

	// Layer rule entries are aligned on the longest layer name.
	assert.Contains(t, out, "            <layer name=\"Metal-1\">      <rule ruleName=\"M1.W\"/></layer>\n")
	assert.Contains(t, out, "            <layer name=\"Polysilicon-1\"><lambda>2.0</lambda></layer>\n")
	assert.Contains(t, out, "<layer name=\"Via1\"><rule ruleName=\"V1.SP\" layer=\"Via1\" layer2=\"Metal-1\" k=\"0.5\"/><lambda>1.0</lambda></layer>")

	assert.Contains(t, out, "            <pattern>X   X   X   X   </pattern>\n")
	assert.Contains(t, out, "    <ruleSet name=\"common\">\n")
	assert.Contains(t, out, "        <menuBox/>\n")
	assert.Contains(t, out, "<menuNodeInst protoName=\"P-Transistor\" function=\"TRA4PMOS\" rotation=\"900\">")
	assert.True(t, strings.HasSuffix(out, "</technology>\n"))
}

func TestEncode_BoxWithRuleTermsFails(t *testing.T) {
	tc := tech.New()
	tc.Name = "t"
	_, err := tc.NewLayer("M")
	require.NoError(t, err)
	nl := &tech.NodeLayer{Layer: "M", InLayers: true, InElectricalLayers: true, Representation: tech.RepBox}
	nl.LX.K, nl.HX.K, nl.LY.K, nl.HY.K = -1, 1, -1, 1
	nl.LX.AddRule("M.W", "", "", 1)
	tc.Nodes = append(tc.Nodes, &tech.PrimitiveNode{Name: "N", Layers: []*tech.NodeLayer{nl}})

	var buf bytes.Buffer
	err = NewEncoder(Pretty).EncodeTechnology(&buf, tc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "N")
}

func TestEncode_NilTechnology(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, NewEncoder(Pretty).EncodeTechnology(&buf, nil))
}

func TestEncode_FlatDocumentRejected(t *testing.T) {
	var buf bytes.Buffer
	err := NewEncoder(Flat).EncodeTechnology(&buf, decodeFixture(t))
	assert.ErrorIs(t, err, ErrFlatDocument)
	assert.Zero(t, buf.Len())
}

func TestMenuPaletteString(t *testing.T) {
	tc := decodeFixture(t)

	s, err := MenuPaletteString(tc.MenuPalette)
	require.NoError(t, err)
	assert.NotContains(t, s, "\n")
	assert.True(t, strings.HasPrefix(s, `<menuPalette numColumns="2"><menuBox><menuArc>Metal-1</menuArc></menuBox>`))
	assert.Contains(t, s, `<menuBox/>`)

	p, err := DecodeMenuPalette(s, tc.Nodes, tc.Arcs)
	require.NoError(t, err)
	assert.Equal(t, 2, p.NumColumns)
	require.Len(t, p.Boxes, 4)

	// Resolved entries are the caller's objects, not copies.
	assert.Same(t, tc.FindArc("Metal-1"), p.Boxes[0][0])
	assert.Same(t, tc.FindNode("Metal-1-Metal-2-Con"), p.Boxes[1][0])
	assert.Equal(t, tc.MenuPalette.Boxes[2], p.Boxes[2])

	again, err := MenuPaletteString(p)
	require.NoError(t, err)
	assert.Equal(t, s, again)
}

func TestMenuPaletteString_NoEscaping(t *testing.T) {
	p := &tech.MenuPalette{NumColumns: 1, Boxes: []tech.MenuBox{{tech.MenuText("a<b")}}}

	flat, err := MenuPaletteString(p)
	require.NoError(t, err)
	assert.Equal(t, `<menuPalette numColumns="1"><menuBox><menuText>a<b</menuText></menuBox></menuPalette>`, flat)

	var buf bytes.Buffer
	require.NoError(t, NewEncoder(Pretty).EncodeMenuPalette(&buf, p))
	assert.Contains(t, buf.String(), "<menuText>a&lt;b</menuText>")
}

func TestMenuPaletteString_BlankEntry(t *testing.T) {
	p := &tech.MenuPalette{NumColumns: 1, Boxes: []tech.MenuBox{{tech.MenuText("")}}}

	flat, err := MenuPaletteString(p)
	require.NoError(t, err)
	assert.Equal(t, `<menuPalette numColumns="1"><menuBox><menuText/></menuBox></menuPalette>`, flat)

	again, err := DecodeMenuPalette(flat, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, p, again)

	_, err = MenuPaletteString(&tech.MenuPalette{NumColumns: 1, Boxes: []tech.MenuBox{{nil}}})
	assert.Error(t, err)
}

func TestMenuPaletteString_Nil(t *testing.T) {
	s, err := MenuPaletteString(nil)
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestDecodeMenuPalette(t *testing.T) {
	arc := &tech.ArcProto{Name: "Metal-1"}
	node := &tech.PrimitiveNode{Name: "Pin"}

	t.Run("bare boxes form one column", func(t *testing.T) {
		p, err := DecodeMenuPalette(`<menuBox><menuArc>Metal-1</menuArc></menuBox><menuBox><menuNode>Pin</menuNode></menuBox>`,
			[]*tech.PrimitiveNode{node}, []*tech.ArcProto{arc})
		require.NoError(t, err)
		assert.Equal(t, 1, p.NumColumns)
		require.Len(t, p.Boxes, 2)
		assert.Same(t, arc, p.Boxes[0][0])
		assert.Same(t, node, p.Boxes[1][0])
	})

	t.Run("empty fragment", func(t *testing.T) {
		p, err := DecodeMenuPalette("", nil, nil)
		require.NoError(t, err)
		assert.Equal(t, &tech.MenuPalette{NumColumns: 1}, p)
	})

	t.Run("empty text", func(t *testing.T) {
		p, err := DecodeMenuPalette(`<menuBox><menuText></menuText></menuBox>`, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, tech.MenuBox{tech.MenuText("")}, p.Boxes[0])
	})

	t.Run("non-menu elements are rejected", func(t *testing.T) {
		_, err := DecodeMenuPalette(`<layer name="M1" fun="METAL1"/><arcProto name="A" fun="METAL1"/><menuBox/>`, nil, nil)
		var sve *SchemaValidationError
		require.ErrorAs(t, err, &sve)
		assert.Contains(t, sve.Msg, "<layer>")
		assert.Equal(t, fragmentName, sve.File)

		_, err = DecodeMenuPalette(`<menuBox><lambda>1.0</lambda></menuBox>`, nil, nil)
		require.ErrorAs(t, err, &sve)
	})

	t.Run("unknown node", func(t *testing.T) {
		_, err := DecodeMenuPalette(`<menuBox><menuNode>Nope</menuNode></menuBox>`, []*tech.PrimitiveNode{node}, nil)
		var missing *tech.MissingResolutionError
		require.ErrorAs(t, err, &missing)
		assert.Equal(t, "node", missing.Kind)
	})

	t.Run("caller lists are not modified", func(t *testing.T) {
		arcs := []*tech.ArcProto{arc}
		_, err := DecodeMenuPalette(`<menuBox><menuArc>Metal-1</menuArc></menuBox>`, nil, arcs)
		require.NoError(t, err)
		assert.Len(t, arcs, 1)
	})
}
