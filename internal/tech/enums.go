package tech

import (
	"fmt"
	"strings"
)

// UnknownNameError is returned when an enumerated attribute value is not a
// member of its fixed domain.
type UnknownNameError struct {
	Kind string
	Name string
}

func (e *UnknownNameError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// nameTable maps the members of one closed domain to their index.
type nameTable struct {
	kind  string
	names []string
	index map[string]int
}

func newNameTable(kind string, groups ...[]string) *nameTable {
	t := &nameTable{kind: kind, index: make(map[string]int)}
	for _, g := range groups {
		for _, n := range g {
			t.index[n] = len(t.names)
			t.names = append(t.names, n)
		}
	}
	return t
}

func (t *nameTable) parse(s string) (int, error) {
	i, ok := t.index[s]
	if !ok {
		return 0, &UnknownNameError{Kind: t.kind, Name: s}
	}
	return i, nil
}

func (t *nameTable) name(i int) string {
	if i < 0 || i >= len(t.names) {
		return fmt.Sprintf("%s(%d)", t.kind, i)
	}
	return t.names[i]
}

func numbered(prefix string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("%s%d", prefix, i+1)
	}
	return out
}

func list(names ...string) []string { return names }

// LayerFunction is the fabrication role of a mask layer.
type LayerFunction int

var layerFunctions = newNameTable("layer function",
	list("UNKNOWN"),
	numbered("METAL", 12),
	numbered("POLY", 3),
	list("GATE", "DIFF", "DIFFP", "DIFFN", "IMPLANT", "IMPLANTP", "IMPLANTN"),
	numbered("CONTACT", 12),
	list("PLUG", "OVERGLASS", "RESISTOR", "CAP", "TRANSISTOR", "EMITTER", "BASE", "COLLECTOR",
		"SUBSTRATE", "WELL", "WELLP", "WELLN", "GUARD", "ISOLATION", "BUS", "ART", "CONTROL", "TILENOT"),
	numbered("DMYMETAL", 12),
	numbered("DMYPOLY", 3),
	list("DMYDIFF"),
	numbered("DEXCLMETAL", 12),
	numbered("DEXCLPOLY", 3),
	list("DEXCLDIFF"),
)

// ParseLayerFunction resolves a layer function name such as "METAL1".
func ParseLayerFunction(s string) (LayerFunction, error) {
	i, err := layerFunctions.parse(s)
	return LayerFunction(i), err
}

func (f LayerFunction) String() string { return layerFunctions.name(int(f)) }

// IsMetal reports whether f is a routing metal layer.
func (f LayerFunction) IsMetal() bool { return strings.HasPrefix(f.String(), "METAL") }

// ExtraFunction is a set of layer modifier flags.
type ExtraFunction uint32

const (
	ExtraPType ExtraFunction = 1 << iota
	ExtraNType
	ExtraDepletion
	ExtraEnhancement
	ExtraLight
	ExtraHeavy
	ExtraPseudo
	ExtraNonElectrical
	ExtraConnectsMetal
	ExtraConnectsPoly
	ExtraConnectsDiff
	ExtraHighLVT
	ExtraInsideTransistor
	ExtraThick
	ExtraCarbonNanotube
)

var extraFunctionNames = []struct {
	flag ExtraFunction
	name string
}{
	{ExtraPType, "p-type"},
	{ExtraNType, "n-type"},
	{ExtraDepletion, "depletion"},
	{ExtraEnhancement, "enhancement"},
	{ExtraLight, "light"},
	{ExtraHeavy, "heavy"},
	{ExtraPseudo, "pseudo"},
	{ExtraNonElectrical, "nonelectrical"},
	{ExtraConnectsMetal, "connects-metal"},
	{ExtraConnectsPoly, "connects-poly"},
	{ExtraConnectsDiff, "connects-diff"},
	{ExtraHighLVT, "high-lvt"},
	{ExtraInsideTransistor, "inside-transistor"},
	{ExtraThick, "thick"},
	{ExtraCarbonNanotube, "carb-nano"},
}

// ParseExtraFunction resolves an extraFun attribute. Combined values join
// flag names with "_", e.g. "depletion_heavy".
func ParseExtraFunction(s string) (ExtraFunction, error) {
	var out ExtraFunction
	for _, part := range strings.Split(s, "_") {
		found := false
		for _, e := range extraFunctionNames {
			if e.name == part {
				out |= e.flag
				found = true
				break
			}
		}
		if !found {
			return 0, &UnknownNameError{Kind: "extra layer function", Name: s}
		}
	}
	return out, nil
}

// String returns the combined attribute form. Depletion and enhancement
// come first, as in "enhancement_light".
func (x ExtraFunction) String() string {
	if x == 0 {
		return ""
	}
	const deplEnh = ExtraDepletion | ExtraEnhancement
	var parts []string
	for _, pass := range []ExtraFunction{x & deplEnh, x &^ deplEnh} {
		for _, e := range extraFunctionNames {
			if pass&e.flag != 0 {
				parts = append(parts, e.name)
			}
		}
	}
	return strings.Join(parts, "_")
}

// ArcFunction is the electrical role of an arc prototype.
type ArcFunction int

var arcFunctions = newNameTable("arc function",
	list("UNKNOWN"),
	numbered("METAL", 12),
	numbered("POLY", 3),
	list("DIFF", "DIFFP", "DIFFN", "DIFFS", "DIFFW", "WELL", "BUS", "UNROUTED", "NONELEC"),
)

// ParseArcFunction resolves an arc function name.
func ParseArcFunction(s string) (ArcFunction, error) {
	i, err := arcFunctions.parse(s)
	return ArcFunction(i), err
}

func (f ArcFunction) String() string { return arcFunctions.name(int(f)) }

// NodeFunction is the role of a primitive node.
type NodeFunction int

var nodeFunctions = newNameTable("node function",
	list("UNKNOWN", "PIN", "CONTACT", "NODE", "CONNECT",
		"TRANMOS", "TRADMOS", "TRAPMOS", "TRANMOSD", "TRAPMOSD", "TRANMOSHV", "TRAPMOSHV",
		"TRANMOSVTH", "TRAPMOSVTH", "TRANMOSVTL", "TRAPMOSVTL", "TRANMOSNT", "TRAPMOSNT",
		"TRANMOSCN", "TRAPMOSCN", "TRANPN", "TRAPNP", "TRANJFET", "TRAPJFET", "TRADMES", "TRAEMES",
		"TRANSREF", "TRANS",
		"TRA4NMOS", "TRA4DMOS", "TRA4PMOS", "TRA4NPN", "TRA4PNP", "TRA4NJFET", "TRA4PJFET",
		"TRA4DMES", "TRA4EMES", "TRANS4",
		"RESIST", "PRESIST", "WRESIST", "CAPAC", "ECAPAC", "DIODE", "DIODEZ", "INDUCT", "METER",
		"BASE", "EMIT", "COLLECT", "BUFFER", "GATEAND", "GATEOR", "GATEXOR",
		"FLIPFLOPRSMS", "FLIPFLOPRSP", "FLIPFLOPRSN", "FLIPFLOPJKMS", "FLIPFLOPJKP", "FLIPFLOPJKN",
		"FLIPFLOPDMS", "FLIPFLOPDP", "FLIPFLOPDN", "FLIPFLOPTMS", "FLIPFLOPTP", "FLIPFLOPTN",
		"MUX", "CONPOWER", "CONGROUND", "SOURCE", "SUBSTRATE", "WELL", "ART", "ARRAY", "ALIGN",
		"CCVS", "CCCS", "VCVS", "VCCS", "TLINE"),
)

// ParseNodeFunction resolves a node function name.
func ParseNodeFunction(s string) (NodeFunction, error) {
	i, err := nodeFunctions.parse(s)
	return NodeFunction(i), err
}

func (f NodeFunction) String() string { return nodeFunctions.name(int(f)) }

// IsTransistor reports whether f is one of the transistor functions.
func (f NodeFunction) IsTransistor() bool { return strings.HasPrefix(f.String(), "TRA") }

// PolyStyle is the fill style of a layer shape.
type PolyStyle int

const (
	Filled PolyStyle = iota
	Closed
)

var polyStyles = newNameTable("poly style",
	list("FILLED", "CLOSED", "OPENED", "OPENEDT1", "OPENEDT2", "OPENEDT3", "VECTORS",
		"CIRCLE", "THICKCIRCLE", "DISC", "CIRCLEARC", "THICKCIRCLEARC",
		"TEXTCENT", "TEXTTOP", "TEXTBOT", "TEXTLEFT", "TEXTRIGHT",
		"TEXTTOPLEFT", "TEXTBOTLEFT", "TEXTTOPRIGHT", "TEXTBOTRIGHT", "TEXTBOX",
		"CROSS", "BIGCROSS"),
)

// ParsePolyStyle resolves a style name such as "FILLED".
func ParsePolyStyle(s string) (PolyStyle, error) {
	i, err := polyStyles.parse(s)
	return PolyStyle(i), err
}

func (s PolyStyle) String() string { return polyStyles.name(int(s)) }

// Outline is the outline pattern of a patterned layer. The zero value
// means no outline was given.
type Outline int

const NoOutline Outline = 0

var outlines = newNameTable("outline",
	list("", "NOPAT", "PAT_S", "PAT_T1", "PAT_T2", "PAT_T3",
		"PAT_D1", "PAT_D2", "PAT_D3", "PAT_D4", "PAT_D5", "PAT_TH1", "PAT_TH2", "PAT_TH3"),
)

// ParseOutline resolves an outline name such as "PAT_S".
func ParseOutline(s string) (Outline, error) {
	if s == "" {
		return 0, &UnknownNameError{Kind: "outline", Name: s}
	}
	i, err := outlines.parse(s)
	return Outline(i), err
}

func (o Outline) String() string { return outlines.name(int(o)) }

// Representation selects how a node layer's geometry is described.
type Representation int

const (
	RepPoints Representation = iota
	RepBox
	RepMultiCutBox
)

func (r Representation) String() string {
	switch r {
	case RepPoints:
		return "points"
	case RepBox:
		return "box"
	case RepMultiCutBox:
		return "multicutbox"
	}
	return fmt.Sprintf("Representation(%d)", int(r))
}

// SpecialType marks nodes with non-rectangular behavior.
type SpecialType int

const (
	SpecialNone SpecialType = iota
	SpecialSerpTrans
	SpecialPolygonal
)

func (s SpecialType) String() string {
	switch s {
	case SpecialNone:
		return "none"
	case SpecialSerpTrans:
		return "serpTrans"
	case SpecialPolygonal:
		return "polygonal"
	}
	return fmt.Sprintf("SpecialType(%d)", int(s))
}
