// Package tech is the in-memory model of a fabrication technology: mask
// layers, arc and node prototypes, rule sets, display styles, foundries and
// the editor menu palette.
//
// Layers are owned by the Technology and referenced elsewhere by name.
// Names are resolved with Resolve once a Technology is fully built.
package tech

import (
	"github.com/imr/Electric8/internal/distance"
)

// Technology is the root of the model.
type Technology struct {
	Name        string
	ClassName   string
	ShortName   string
	Description string

	MinMetals     int
	MaxMetals     int
	DefaultMetals int

	Scale         float64
	ScaleRelevant bool

	DefaultFoundry string
	MinResistance  float64
	MinCapacitance float64

	Arcs          []*ArcProto
	Nodes         []*PrimitiveNode
	SpiceHeaders  []*SpiceHeader
	DisplayStyles []*DisplayStyle
	MenuPalette   *MenuPalette
	Foundries     []*Foundry

	layers     []*Layer
	layerIndex map[string]*Layer

	ruleSets     []*RuleSet
	ruleSetIndex map[string]*RuleSet
}

// New returns an empty Technology.
func New() *Technology {
	return &Technology{
		layerIndex:   make(map[string]*Layer),
		ruleSetIndex: make(map[string]*RuleSet),
	}
}

// NewLayer defines a layer. A second definition of the same name fails and
// leaves the first layer in place.
func (t *Technology) NewLayer(name string) (*Layer, error) {
	if t.layerIndex == nil {
		t.layerIndex = make(map[string]*Layer)
	}
	if _, exists := t.layerIndex[name]; exists {
		return nil, &DuplicateDefinitionError{Kind: "Layer", Name: name}
	}
	l := &Layer{name: name}
	t.layers = append(t.layers, l)
	t.layerIndex[name] = l
	return l, nil
}

// Layers returns the layers in definition order.
func (t *Technology) Layers() []*Layer {
	out := make([]*Layer, len(t.layers))
	copy(out, t.layers)
	return out
}

// FindLayer returns the named layer or nil.
func (t *Technology) FindLayer(name string) *Layer {
	return t.layerIndex[name]
}

// NewRuleSet defines a rule set.
func (t *Technology) NewRuleSet(name string) (*RuleSet, error) {
	if t.ruleSetIndex == nil {
		t.ruleSetIndex = make(map[string]*RuleSet)
	}
	if _, exists := t.ruleSetIndex[name]; exists {
		return nil, &DuplicateDefinitionError{Kind: "RuleSet", Name: name}
	}
	rs := &RuleSet{name: name, index: make(map[string]*LayerRule)}
	t.ruleSets = append(t.ruleSets, rs)
	t.ruleSetIndex[name] = rs
	return rs, nil
}

// RuleSets returns the rule sets in definition order.
func (t *Technology) RuleSets() []*RuleSet {
	out := make([]*RuleSet, len(t.ruleSets))
	copy(out, t.ruleSets)
	return out
}

// FindRuleSet returns the named rule set or nil.
func (t *Technology) FindRuleSet(name string) *RuleSet {
	return t.ruleSetIndex[name]
}

// FindArc returns the first arc prototype with the given name, or nil.
func (t *Technology) FindArc(name string) *ArcProto {
	for _, a := range t.Arcs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// FindNode returns the first primitive node with the given name, or nil.
func (t *Technology) FindNode(name string) *PrimitiveNode {
	for _, n := range t.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// Layer is a mask layer. Its name is its identity and never changes.
type Layer struct {
	name string

	Function        LayerFunction
	Extra           ExtraFunction
	CIF             string
	Skill           string
	Resistance      float64
	Capacitance     float64
	EdgeCapacitance float64
	PureLayerNode   *PureLayerNode
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// HasParasitics reports whether any parasitic value is set.
func (l *Layer) HasParasitics() bool {
	return l.Resistance != 0 || l.Capacitance != 0 || l.EdgeCapacitance != 0
}

// PureLayerNode is the implicit node made of a single layer.
type PureLayerNode struct {
	Name     string
	OldName  string
	Style    PolyStyle
	Port     string
	PortArcs []string
}

// ArcProto is a wire prototype.
type ArcProto struct {
	Name     string
	OldName  string
	Function ArcFunction

	Wipable           bool
	Curvable          bool
	Special           bool
	NotUsed           bool
	SkipSizeInPalette bool
	Extended          bool
	FixedAngle        bool

	AngleIncrement  int
	AntennaRatio    float64
	ElibWidthOffset float64

	Layers []*ArcLayer
	Pin    *ArcPin
}

// ArcLayer is one layer of an arc, extended by a Distance.
type ArcLayer struct {
	Layer  string
	Extend distance.Distance
	Style  PolyStyle
}

// ArcPin is the pin node generated for an arc.
type ArcPin struct {
	Name     string
	PortName string
	ElibSize float64
	PortArcs []string
}

// Point is a position in lambda units.
type Point struct {
	X, Y float64
}

// Rect is a rectangle in lambda units.
type Rect struct {
	LX, HX, LY, HY float64
}

// PrimitiveNode is a device or contact prototype.
type PrimitiveNode struct {
	Name    string
	OldName string

	ShrinkArcs        bool
	Square            bool
	CanBeZeroSize     bool
	Wipes             bool
	Lockable          bool
	EdgeSelect        bool
	SkipSizeInPalette bool
	NotUsed           bool
	LowVt             bool
	HighVt            bool
	NativeBit         bool
	Od18              bool
	Od25              bool
	Od33              bool

	Function      NodeFunction
	DiskOffset    *Point
	DefaultWidth  distance.Distance
	DefaultHeight distance.Distance
	NodeBase      *Rect
	Layers        []*NodeLayer
	Ports         []*PrimitivePort

	SpecialType   SpecialType
	SpecialValues []float64

	SizeRule      *NodeSizeRule
	SpiceTemplate string
}

// SerpentineValueCount is the number of special values of a serpentine
// transistor.
const SerpentineValueCount = 6

// TechPoint is a point relative to the node: multiplier times the node
// half-size plus a constant, on each axis.
type TechPoint struct {
	XM, XA float64
	YM, YA float64
}

// NodeLayer is one layer of a primitive node.
type NodeLayer struct {
	Layer              string
	Style              PolyStyle
	PortNum            int
	InLayers           bool
	InElectricalLayers bool
	Representation     Representation

	LX, HX, LY, HY distance.Distance

	TechPoints []TechPoint

	SizeRule  string
	SepRule   string
	SepRule2D string

	LWidth, RWidth   float64
	TExtent, BExtent float64
}

// Edges returns pointers to the four box edges in lx, hx, ly, hy order.
func (nl *NodeLayer) Edges() [4]*distance.Distance {
	return [4]*distance.Distance{&nl.LX, &nl.HX, &nl.LY, &nl.HY}
}

// NodeSizeRule is the minimum size of a node and the rule that sets it.
type NodeSizeRule struct {
	Width  float64
	Height float64
	Rule   string
}

// PrimitivePort is a connection point of a primitive node.
type PrimitivePort struct {
	Name     string
	Angle    int
	Range    int
	Topology int

	LX, HX, LY, HY distance.Distance

	PortArcs []string
}

// Edges returns pointers to the four box edges in lx, hx, ly, hy order.
func (p *PrimitivePort) Edges() [4]*distance.Distance {
	return [4]*distance.Distance{&p.LX, &p.HX, &p.LY, &p.HY}
}

// SpiceHeader is a block of SPICE deck lines for one simulation level.
type SpiceHeader struct {
	Level int
	Lines []string
}

// Foundry carries vendor-specific layer mappings and design rules.
type Foundry struct {
	Name     string
	LayerGDS []GDSMapping
	Rules    []DRCTemplate
}

// GDSMapping maps a layer to its GDS layer string.
type GDSMapping struct {
	Layer string
	GDS   string
}

// SetGDS maps layer to gds, replacing an earlier mapping of the same layer
// in place.
func (f *Foundry) SetGDS(layer, gds string) {
	for i := range f.LayerGDS {
		if f.LayerGDS[i].Layer == layer {
			f.LayerGDS[i].GDS = gds
			return
		}
	}
	f.LayerGDS = append(f.LayerGDS, GDSMapping{Layer: layer, GDS: gds})
}

// DRCTemplate is a vendor design-rule record. Kind is the element tag
// (LayerRule, LayersRule, NodeLayersRule or NodeRule); attributes are kept
// verbatim in document order.
type DRCTemplate struct {
	Kind  string
	Attrs []Attr
}

// Attr is a name/value pair.
type Attr struct {
	Name  string
	Value string
}

// Get returns the value of the named attribute.
func (d DRCTemplate) Get(name string) (string, bool) {
	for _, a := range d.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}
