package tech

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLayerDuplicate(t *testing.T) {
	tech := New()

	first, err := tech.NewLayer("M1")
	require.NoError(t, err)
	first.Function = LayerFunction(1)

	_, err = tech.NewLayer("M1")
	require.Error(t, err)
	var dup *DuplicateDefinitionError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "M1", dup.Name)

	// The first layer is untouched.
	assert.Same(t, first, tech.FindLayer("M1"))
	assert.Len(t, tech.Layers(), 1)
}

func TestZeroTechnologyIsUsable(t *testing.T) {
	var tech Technology
	_, err := tech.NewLayer("Poly")
	require.NoError(t, err)
	_, err = tech.NewRuleSet("common")
	require.NoError(t, err)
	assert.NotNil(t, tech.FindLayer("Poly"))
	assert.NotNil(t, tech.FindRuleSet("common"))
}

func TestLayersKeepInsertionOrder(t *testing.T) {
	tech := New()
	for _, name := range []string{"Metal-2", "Metal-1", "Poly"} {
		_, err := tech.NewLayer(name)
		require.NoError(t, err)
	}
	var got []string
	for _, l := range tech.Layers() {
		got = append(got, l.Name())
	}
	assert.Equal(t, []string{"Metal-2", "Metal-1", "Poly"}, got)
}

func TestRuleSetDuplicates(t *testing.T) {
	tech := New()
	rs, err := tech.NewRuleSet("common")
	require.NoError(t, err)

	_, err = tech.NewRuleSet("common")
	assert.Error(t, err)

	lr, err := rs.NewLayerRule("width")
	require.NoError(t, err)
	_, err = rs.NewLayerRule("width")
	assert.Error(t, err)

	d, err := lr.Add("Metal-1")
	require.NoError(t, err)
	d.AddLambda(3)

	_, err = lr.Add("Metal-1")
	var dup *DuplicateDefinitionError
	require.True(t, errors.As(err, &dup))

	require.NotNil(t, lr.Find("Metal-1"))
	assert.Equal(t, 3.0, lr.Find("Metal-1").Constant())
}

func TestFindArcAndNode(t *testing.T) {
	tech := New()
	a := &ArcProto{Name: "Metal-1"}
	n := &PrimitiveNode{Name: "Metal-1-Pin"}
	tech.Arcs = append(tech.Arcs, a)
	tech.Nodes = append(tech.Nodes, n)

	assert.Same(t, a, tech.FindArc("Metal-1"))
	assert.Same(t, n, tech.FindNode("Metal-1-Pin"))
	assert.Nil(t, tech.FindArc("Poly"))
	assert.Nil(t, tech.FindNode("Poly-Pin"))
}

func TestDisplayStyleLayerOnce(t *testing.T) {
	ds := &DisplayStyle{Name: "Electric"}
	_, err := ds.NewLayerStyle("Metal-1")
	require.NoError(t, err)
	_, err = ds.NewLayerStyle("Metal-1")
	assert.Error(t, err)
}

func TestSetTransparentGrowsPalette(t *testing.T) {
	ds := &DisplayStyle{}
	ds.SetTransparent(3, Color{R: 1, G: 2, B: 3})
	assert.Len(t, ds.Transparent, 3)

	c, ok := ds.TransparentColor(3)
	require.True(t, ok)
	assert.Equal(t, Color{R: 1, G: 2, B: 3}, c)

	_, ok = ds.TransparentColor(0)
	assert.False(t, ok)
}

func TestResolve(t *testing.T) {
	build := func() *Technology {
		tech := New()
		_, _ = tech.NewLayer("Metal-1")
		arc := &ArcProto{Name: "Metal-1"}
		arc.Layers = append(arc.Layers, &ArcLayer{Layer: "Metal-1"})
		tech.Arcs = append(tech.Arcs, arc)
		node := &PrimitiveNode{Name: "Metal-1-Pin"}
		node.Layers = append(node.Layers, &NodeLayer{Layer: "Metal-1"})
		node.Ports = append(node.Ports, &PrimitivePort{Name: "metal-1", PortArcs: []string{"Metal-1"}})
		tech.Nodes = append(tech.Nodes, node)
		return tech
	}

	tests := []struct {
		name    string
		mutate  func(*Technology)
		kind    string
		missing string
	}{
		{"complete", func(*Technology) {}, "", ""},
		{"arc layer", func(tech *Technology) {
			tech.Arcs[0].Layers[0].Layer = "Metal-9"
		}, "layer", "Metal-9"},
		{"node layer", func(tech *Technology) {
			tech.Nodes[0].Layers[0].Layer = "Poly"
		}, "layer", "Poly"},
		{"port arc", func(tech *Technology) {
			tech.Nodes[0].Ports[0].PortArcs = []string{"Poly"}
		}, "arc", "Poly"},
		{"rule layer", func(tech *Technology) {
			tech.Nodes[0].DefaultWidth.AddRule("W", "Via", "", 1)
		}, "layer", "Via"},
		{"display style", func(tech *Technology) {
			ds := &DisplayStyle{Name: "Electric"}
			_, _ = ds.NewLayerStyle("Active")
			tech.DisplayStyles = append(tech.DisplayStyles, ds)
		}, "layer", "Active"},
		{"rule set", func(tech *Technology) {
			rs, _ := tech.NewRuleSet("common")
			lr, _ := rs.NewLayerRule("size")
			_, _ = lr.Add("Well")
		}, "layer", "Well"},
		{"foundry", func(tech *Technology) {
			f := &Foundry{Name: "MOSIS"}
			f.SetGDS("Pad", "26")
			tech.Foundries = append(tech.Foundries, f)
		}, "layer", "Pad"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tech := build()
			tt.mutate(tech)
			err := tech.Resolve()
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			var missing *MissingResolutionError
			require.True(t, errors.As(err, &missing), "got %v", err)
			assert.Equal(t, tt.kind, missing.Kind)
			assert.Equal(t, tt.missing, missing.Name)
		})
	}
}

func TestFoundrySetGDSReplaces(t *testing.T) {
	f := &Foundry{}
	f.SetGDS("Metal-1", "49")
	f.SetGDS("Poly", "46")
	f.SetGDS("Metal-1", "49,0")
	assert.Equal(t, []GDSMapping{{"Metal-1", "49,0"}, {"Poly", "46"}}, f.LayerGDS)
}

func TestMenuPaletteGrid(t *testing.T) {
	p := &MenuPalette{NumColumns: 2, Boxes: make([]MenuBox, 4)}
	assert.True(t, p.IsGrid())
	assert.Equal(t, 2, p.Rows())

	p.Boxes = append(p.Boxes, MenuBox{MenuText("x")})
	assert.False(t, p.IsGrid())
	assert.Equal(t, 3, p.Rows())
}
