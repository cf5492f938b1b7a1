package techxml

import (
	"github.com/imr/Electric8/internal/distance"
	"github.com/imr/Electric8/internal/tech"
)

// scope is the builder context opened by an element. Only the elements
// that own a model object open a scope; every handler works on the
// innermost open scope.
type scope interface {
	scopeName() string
}

type techScope struct{ t *tech.Technology }

type layerScope struct{ layer *tech.Layer }

type pureLayerNodeScope struct{ node *tech.PureLayerNode }

type arcScope struct{ arc *tech.ArcProto }

type arcLayerScope struct{ layer *tech.ArcLayer }

type arcPinScope struct{ pin *tech.ArcPin }

type nodeScope struct {
	node         *tech.PrimitiveNode
	specialIndex int
}

type nodeLayerScope struct{ layer *tech.NodeLayer }

type portScope struct{ port *tech.PrimitivePort }

// distanceScope is opened by elements whose whole content is a Distance:
// defaultWidth, defaultHeight and a layer entry of a layerRule.
type distanceScope struct{ d *distance.Distance }

type spiceHeaderScope struct{ header *tech.SpiceHeader }

type displayStyleScope struct{ style *tech.DisplayStyle }

type styleLayerScope struct {
	style        *tech.DisplayStyle
	layer        *tech.LayerDisplayStyle
	patternIndex int
}

type transparentLayerScope struct {
	style *tech.DisplayStyle
	index int
	color tech.Color
}

type ruleSetScope struct{ rules *tech.RuleSet }

type layerRuleScope struct{ rule *tech.LayerRule }

type foundryScope struct{ foundry *tech.Foundry }

type paletteScope struct{ palette *tech.MenuPalette }

type menuBoxScope struct {
	palette *tech.MenuPalette
	index   int
}

type menuNodeInstScope struct {
	box  *menuBoxScope
	inst *tech.MenuNodeInst
}

func (*techScope) scopeName() string             { return "technology" }
func (*layerScope) scopeName() string            { return "layer" }
func (*pureLayerNodeScope) scopeName() string    { return "pureLayerNode" }
func (*arcScope) scopeName() string              { return "arcProto" }
func (*arcLayerScope) scopeName() string         { return "arcLayer" }
func (*arcPinScope) scopeName() string           { return "arcPin" }
func (*nodeScope) scopeName() string             { return "primitiveNode" }
func (*nodeLayerScope) scopeName() string        { return "nodeLayer" }
func (*portScope) scopeName() string             { return "primitivePort" }
func (*distanceScope) scopeName() string         { return "distance" }
func (*spiceHeaderScope) scopeName() string      { return "spiceHeader" }
func (*displayStyleScope) scopeName() string     { return "displayStyle" }
func (*styleLayerScope) scopeName() string       { return "displayStyle layer" }
func (*transparentLayerScope) scopeName() string { return "transparentLayer" }
func (*ruleSetScope) scopeName() string          { return "ruleSet" }
func (*layerRuleScope) scopeName() string        { return "layerRule" }
func (*foundryScope) scopeName() string          { return "Foundry" }
func (*paletteScope) scopeName() string          { return "menuPalette" }
func (*menuBoxScope) scopeName() string          { return "menuBox" }
func (*menuNodeInstScope) scopeName() string     { return "menuNodeInst" }

func (s *menuBoxScope) add(item tech.MenuItem) {
	s.palette.Boxes[s.index] = append(s.palette.Boxes[s.index], item)
}
