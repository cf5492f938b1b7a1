// Package keyword holds the closed set of element tags understood by the
// technology document codec.
package keyword

import "fmt"

// Keyword identifies one element tag of the technology document grammar.
type Keyword int

const (
	Technology Keyword = iota
	ShortName
	Description
	NumMetals
	Scale
	DefaultFoundry
	MinResistance
	MinCapacitance
	Layer
	Display3D
	CifLayer
	SkillLayer
	Parasitics
	PureLayerNode

	ArcProto
	OldName
	Wipable
	Curvable
	Special
	NotUsed
	SkipSizeInPalette
	Extended
	FixedAngle
	AngleIncrement
	AntennaRatio
	ElibWidthOffset
	ArcLayer
	ArcPin

	PrimitiveNode
	ShrinkArcs
	Square
	CanBeZeroSize
	Wipes
	Lockable
	EdgeSelect
	LowVt
	HighVt
	NativeBit
	Od18
	Od25
	Od33
	DiskOffset
	DefaultWidth
	DefaultHeight
	NodeBase
	NodeLayer
	Box
	MultiCutBox
	SerpBox
	LambdaBox
	Points
	TechPoint
	PrimitivePort
	PortAngle
	PortTopology
	PortArc
	Polygonal
	SerpTrans
	SpecialValue
	MinSizeRule
	SpiceTemplate
	SpiceHeader
	SpiceLine

	DisplayStyle
	TransparentLayer
	R
	G
	B
	TransparentColor
	OpaqueColor
	PatternedOnDisplay
	PatternedOnPrinter
	Pattern
	Outlined
	Opacity
	Foreground

	MenuPalette
	MenuBox
	MenuArc
	MenuNode
	MenuCell
	MenuText
	MenuNodeInst
	MenuNodeText
	Lambda
	Rule

	RuleSet
	LayerRule
	Foundry
	LayerGds
	DRCLayerRule
	DRCLayersRule
	DRCNodeLayersRule
	DRCNodeRule

	// Count is the number of keywords; it is not a keyword itself.
	Count
)

type entry struct {
	tag     string
	hasText bool
}

var table = [Count]entry{
	Technology:     {"technology", false},
	ShortName:      {"shortName", true},
	Description:    {"description", true},
	NumMetals:      {"numMetals", false},
	Scale:          {"scale", false},
	DefaultFoundry: {"defaultFoundry", false},
	MinResistance:  {"minResistance", false},
	MinCapacitance: {"minCapacitance", false},
	Layer:          {"layer", false},
	Display3D:      {"display3D", false},
	CifLayer:       {"cifLayer", false},
	SkillLayer:     {"skillLayer", false},
	Parasitics:     {"parasitics", false},
	PureLayerNode:  {"pureLayerNode", false},

	ArcProto:          {"arcProto", false},
	OldName:           {"oldName", true},
	Wipable:           {"wipable", false},
	Curvable:          {"curvable", false},
	Special:           {"special", false},
	NotUsed:           {"notUsed", false},
	SkipSizeInPalette: {"skipSizeInPalette", false},
	Extended:          {"extended", true},
	FixedAngle:        {"fixedAngle", true},
	AngleIncrement:    {"angleIncrement", true},
	AntennaRatio:      {"antennaRatio", true},
	ElibWidthOffset:   {"elibWidthOffset", true},
	ArcLayer:          {"arcLayer", false},
	ArcPin:            {"arcPin", false},

	PrimitiveNode: {"primitiveNode", false},
	ShrinkArcs:    {"shrinkArcs", false},
	Square:        {"square", false},
	CanBeZeroSize: {"canBeZeroSize", false},
	Wipes:         {"wipes", false},
	Lockable:      {"lockable", false},
	EdgeSelect:    {"edgeSelect", false},
	LowVt:         {"lowVt", false},
	HighVt:        {"highVt", false},
	NativeBit:     {"nativeBit", false},
	Od18:          {"od18", false},
	Od25:          {"od25", false},
	Od33:          {"od33", false},
	DiskOffset:    {"diskOffset", false},
	DefaultWidth:  {"defaultWidth", false},
	DefaultHeight: {"defaultHeight", false},
	NodeBase:      {"nodeBase", false},
	NodeLayer:     {"nodeLayer", false},
	Box:           {"box", false},
	MultiCutBox:   {"multicutbox", false},
	SerpBox:       {"serpbox", false},
	LambdaBox:     {"lambdaBox", false},
	Points:        {"points", false},
	TechPoint:     {"techPoint", false},
	PrimitivePort: {"primitivePort", false},
	PortAngle:     {"portAngle", false},
	PortTopology:  {"portTopology", true},
	PortArc:       {"portArc", true},
	Polygonal:     {"polygonal", false},
	SerpTrans:     {"serpTrans", false},
	SpecialValue:  {"specialValue", true},
	MinSizeRule:   {"minSizeRule", false},
	SpiceTemplate: {"spiceTemplate", false},
	SpiceHeader:   {"spiceHeader", false},
	SpiceLine:     {"spiceLine", false},

	DisplayStyle:       {"displayStyle", false},
	TransparentLayer:   {"transparentLayer", false},
	R:                  {"r", true},
	G:                  {"g", true},
	B:                  {"b", true},
	TransparentColor:   {"transparentColor", false},
	OpaqueColor:        {"opaqueColor", false},
	PatternedOnDisplay: {"patternedOnDisplay", true},
	PatternedOnPrinter: {"patternedOnPrinter", true},
	Pattern:            {"pattern", true},
	Outlined:           {"outlined", true},
	Opacity:            {"opacity", true},
	Foreground:         {"foreground", true},

	MenuPalette:  {"menuPalette", false},
	MenuBox:      {"menuBox", false},
	MenuArc:      {"menuArc", true},
	MenuNode:     {"menuNode", true},
	MenuCell:     {"menuCell", false},
	MenuText:     {"menuText", true},
	MenuNodeInst: {"menuNodeInst", false},
	MenuNodeText: {"menuNodeText", false},
	Lambda:       {"lambda", true},
	Rule:         {"rule", false},

	RuleSet:           {"ruleSet", false},
	LayerRule:         {"layerRule", false},
	Foundry:           {"Foundry", false},
	LayerGds:          {"layerGds", false},
	DRCLayerRule:      {"LayerRule", false},
	DRCLayersRule:     {"LayersRule", false},
	DRCNodeLayersRule: {"NodeLayersRule", false},
	DRCNodeRule:       {"NodeRule", false},
}

var byTag = func() map[string]Keyword {
	m := make(map[string]Keyword, Count)
	for k := Keyword(0); k < Count; k++ {
		m[table[k].tag] = k
	}
	return m
}()

// UnknownError reports a tag outside the closed keyword set.
type UnknownError struct {
	Tag string
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("unknown keyword <%s>", e.Tag)
}

// Lookup resolves an element tag. hasText reports whether the element
// carries character data that is only interpreted at its close tag.
func Lookup(tag string) (k Keyword, hasText bool, err error) {
	k, ok := byTag[tag]
	if !ok {
		return 0, false, &UnknownError{Tag: tag}
	}
	return k, table[k].hasText, nil
}

// String returns the element tag of k.
func (k Keyword) String() string {
	if k < 0 || k >= Count {
		return fmt.Sprintf("Keyword(%d)", int(k))
	}
	return table[k].tag
}

// HasText reports whether k is a text-bearing element.
func (k Keyword) HasText() bool {
	return k >= 0 && k < Count && table[k].hasText
}

// IsDRCTemplate reports whether k is one of the foundry design-rule
// template elements.
func (k Keyword) IsDRCTemplate() bool {
	switch k {
	case DRCLayerRule, DRCLayersRule, DRCNodeLayersRule, DRCNodeRule:
		return true
	}
	return false
}

// All returns every keyword in declaration order.
func All() []Keyword {
	ks := make([]Keyword, Count)
	for i := range ks {
		ks[i] = Keyword(i)
	}
	return ks
}
