package techxml

import (
	"strconv"
	"strings"

	"github.com/imr/Electric8/internal/distance"
	"github.com/imr/Electric8/internal/keyword"
	"github.com/imr/Electric8/internal/tech"
)

// handler is the decoder action for one keyword. open runs at the start
// tag and may return the scope the element opens; close runs at the end
// tag with the element's own scope and, for text-bearing keywords, its
// character data.
type handler struct {
	open  func(d *decoder, a *attrReader) (scope, error)
	close func(d *decoder, s scope, text string) error
}

func (h handler) defined() bool { return h.open != nil || h.close != nil }

var handlers = [keyword.Count]handler{
	keyword.Technology:     {open: openTechnology, close: closeTechnology},
	keyword.ShortName:      {close: closeShortName},
	keyword.Description:    {close: closeDescription},
	keyword.NumMetals:      {open: openNumMetals},
	keyword.Scale:          {open: openScale},
	keyword.DefaultFoundry: {open: openDefaultFoundry},
	keyword.MinResistance:  {open: openMinResistance},
	keyword.MinCapacitance: {open: openMinCapacitance},
	keyword.Layer:          {open: openLayer, close: closeLayer},
	keyword.Display3D:      {open: openDisplay3D},
	keyword.CifLayer:       {open: openCifLayer},
	keyword.SkillLayer:     {open: openSkillLayer},
	keyword.Parasitics:     {open: openParasitics},
	keyword.PureLayerNode:  {open: openPureLayerNode},

	keyword.ArcProto:          {open: openArcProto, close: closeArcProto},
	keyword.OldName:           {close: closeOldName},
	keyword.Wipable:           {open: arcFlag(func(a *tech.ArcProto) { a.Wipable = true })},
	keyword.Curvable:          {open: arcFlag(func(a *tech.ArcProto) { a.Curvable = true })},
	keyword.Special:           {open: arcFlag(func(a *tech.ArcProto) { a.Special = true })},
	keyword.NotUsed:           {open: openNotUsed},
	keyword.SkipSizeInPalette: {open: openSkipSizeInPalette},
	keyword.Extended:          {close: arcText(func(a *tech.ArcProto, text string) error { return parseInto(text, parseBool, &a.Extended) })},
	keyword.FixedAngle:        {close: arcText(func(a *tech.ArcProto, text string) error { return parseInto(text, parseBool, &a.FixedAngle) })},
	keyword.AngleIncrement:    {close: arcText(func(a *tech.ArcProto, text string) error { return parseInto(text, parseInt, &a.AngleIncrement) })},
	keyword.AntennaRatio:      {close: arcText(func(a *tech.ArcProto, text string) error { return parseInto(text, parseFloat, &a.AntennaRatio) })},
	keyword.ElibWidthOffset:   {close: arcText(func(a *tech.ArcProto, text string) error { return parseInto(text, parseFloat, &a.ElibWidthOffset) })},
	keyword.ArcLayer:          {open: openArcLayer},
	keyword.ArcPin:            {open: openArcPin},

	keyword.PrimitiveNode: {open: openPrimitiveNode, close: closePrimitiveNode},
	keyword.ShrinkArcs:    {open: nodeFlag(func(n *tech.PrimitiveNode) { n.ShrinkArcs = true })},
	keyword.Square:        {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Square = true })},
	keyword.CanBeZeroSize: {open: nodeFlag(func(n *tech.PrimitiveNode) { n.CanBeZeroSize = true })},
	keyword.Wipes:         {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Wipes = true })},
	keyword.Lockable:      {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Lockable = true })},
	keyword.EdgeSelect:    {open: nodeFlag(func(n *tech.PrimitiveNode) { n.EdgeSelect = true })},
	keyword.LowVt:         {open: nodeFlag(func(n *tech.PrimitiveNode) { n.LowVt = true })},
	keyword.HighVt:        {open: nodeFlag(func(n *tech.PrimitiveNode) { n.HighVt = true })},
	keyword.NativeBit:     {open: nodeFlag(func(n *tech.PrimitiveNode) { n.NativeBit = true })},
	keyword.Od18:          {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Od18 = true })},
	keyword.Od25:          {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Od25 = true })},
	keyword.Od33:          {open: nodeFlag(func(n *tech.PrimitiveNode) { n.Od33 = true })},
	keyword.DiskOffset:    {open: openDiskOffset},
	keyword.DefaultWidth:  {open: openDefaultWidth},
	keyword.DefaultHeight: {open: openDefaultHeight},
	keyword.NodeBase:      {open: openNodeBase},
	keyword.NodeLayer:     {open: openNodeLayer, close: closeNodeLayer},
	keyword.Box:           {open: openBox},
	keyword.MultiCutBox:   {open: openMultiCutBox},
	keyword.SerpBox:       {open: openSerpBox},
	keyword.LambdaBox:     {open: openLambdaBox},
	keyword.Points:        {open: openPoints},
	keyword.TechPoint:     {open: openTechPoint},
	keyword.PrimitivePort: {open: openPrimitivePort, close: closePrimitivePort},
	keyword.PortAngle:     {open: openPortAngle},
	keyword.PortTopology:  {close: closePortTopology},
	keyword.PortArc:       {close: closePortArc},
	keyword.Polygonal:     {open: nodeFlag(func(n *tech.PrimitiveNode) { n.SpecialType = tech.SpecialPolygonal })},
	keyword.SerpTrans:     {open: openSerpTrans},
	keyword.SpecialValue:  {close: closeSpecialValue},
	keyword.MinSizeRule:   {open: openMinSizeRule},
	keyword.SpiceTemplate: {open: openSpiceTemplate},
	keyword.SpiceHeader:   {open: openSpiceHeader},
	keyword.SpiceLine:     {open: openSpiceLine},

	keyword.DisplayStyle:     {open: openDisplayStyle},
	keyword.TransparentLayer: {open: openTransparentLayer, close: closeTransparentLayer},
	keyword.R:                {close: rgbText(func(c *tech.Color) *int { return &c.R })},
	keyword.G:                {close: rgbText(func(c *tech.Color) *int { return &c.G })},
	keyword.B:                {close: rgbText(func(c *tech.Color) *int { return &c.B })},
	keyword.TransparentColor: {open: openTransparentColor},
	keyword.OpaqueColor:      {open: openOpaqueColor},
	keyword.PatternedOnDisplay: {close: styleText(func(s *styleLayerScope, text string) error {
		return parseInto(text, parseBool, &s.layer.Graphics.PatternedOnDisplay)
	})},
	keyword.PatternedOnPrinter: {close: styleText(func(s *styleLayerScope, text string) error {
		return parseInto(text, parseBool, &s.layer.Graphics.PatternedOnPrinter)
	})},
	keyword.Pattern:  {close: closePattern},
	keyword.Outlined: {close: closeOutlined},
	keyword.Opacity: {close: styleText(func(s *styleLayerScope, text string) error {
		return parseInto(text, parseFloat, &s.layer.Graphics.Opacity)
	})},
	keyword.Foreground: {close: styleText(func(s *styleLayerScope, text string) error {
		return parseInto(text, parseBool, &s.layer.Graphics.Foreground)
	})},

	keyword.MenuPalette:  {open: openMenuPalette, close: closeMenuPalette},
	keyword.MenuBox:      {open: openMenuBox},
	keyword.MenuArc:      {close: closeMenuArc},
	keyword.MenuNode:     {close: closeMenuNode},
	keyword.MenuCell:     {open: openMenuCell},
	keyword.MenuText:     {close: closeMenuText},
	keyword.MenuNodeInst: {open: openMenuNodeInst, close: closeMenuNodeInst},
	keyword.MenuNodeText: {open: openMenuNodeText},
	keyword.Lambda:       {close: closeLambda},
	keyword.Rule:         {open: openRule},

	keyword.RuleSet:           {open: openRuleSet},
	keyword.LayerRule:         {open: openLayerRule},
	keyword.Foundry:           {open: openFoundry},
	keyword.LayerGds:          {open: openLayerGds},
	keyword.DRCLayerRule:      {open: drcTemplate(keyword.DRCLayerRule)},
	keyword.DRCLayersRule:     {open: drcTemplate(keyword.DRCLayersRule)},
	keyword.DRCNodeLayersRule: {open: drcTemplate(keyword.DRCNodeLayersRule)},
	keyword.DRCNodeRule:       {open: drcTemplate(keyword.DRCNodeRule)},
}

// within returns the innermost scope when it has type S.
func within[S scope](d *decoder, k keyword.Keyword) (S, error) {
	s, ok := d.innermost().(S)
	if !ok {
		var zero S
		return zero, d.misplaced(k, d.innermost())
	}
	return s, nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseInto[T any](text string, parse func(string) (T, error), dst *T) error {
	v, err := parse(text)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// textError positions a character data parse failure.
func (d *decoder) textError(k keyword.Keyword, text string, err error) error {
	if err == nil {
		return nil
	}
	return d.schemaErrorf("element <%s>: %q is not a valid value: %v", k, text, err)
}

// technology

func openTechnology(d *decoder, a *attrReader) (scope, error) {
	if d.fragment || len(d.stack) != 0 || d.tech != nil {
		return nil, d.misplaced(keyword.Technology, d.innermost())
	}
	t := tech.New()
	t.Name = a.str("name")
	t.ClassName, _ = a.opt("class")
	d.tech = t
	return &techScope{t: t}, nil
}

func closeTechnology(d *decoder, _ scope, _ string) error {
	if err := d.tech.Resolve(); err != nil {
		return d.modelError(err)
	}
	return nil
}

func closeShortName(d *decoder, _ scope, text string) error {
	s, err := within[*techScope](d, keyword.ShortName)
	if err != nil {
		return err
	}
	s.t.ShortName = text
	return nil
}

func closeDescription(d *decoder, _ scope, text string) error {
	s, err := within[*techScope](d, keyword.Description)
	if err != nil {
		return err
	}
	s.t.Description = text
	return nil
}

func openNumMetals(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.NumMetals)
	if err != nil {
		return nil, err
	}
	s.t.MinMetals = a.integer("min")
	s.t.MaxMetals = a.integer("max")
	s.t.DefaultMetals = a.integer("default")
	return nil, nil
}

func openScale(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.Scale)
	if err != nil {
		return nil, err
	}
	s.t.Scale = a.float("value")
	s.t.ScaleRelevant = a.boolOr("relevant", false)
	return nil, nil
}

func openDefaultFoundry(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.DefaultFoundry)
	if err != nil {
		return nil, err
	}
	s.t.DefaultFoundry = a.str("value")
	return nil, nil
}

func openMinResistance(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.MinResistance)
	if err != nil {
		return nil, err
	}
	s.t.MinResistance = a.float("value")
	return nil, nil
}

func openMinCapacitance(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.MinCapacitance)
	if err != nil {
		return nil, err
	}
	s.t.MinCapacitance = a.float("value")
	return nil, nil
}

// layers

// openLayer dispatches on the innermost of technology, display style and
// layer rule: a layer definition, a layer's display style, or a layer's
// entry in a layer rule.
func openLayer(d *decoder, a *attrReader) (scope, error) {
	switch s := d.innermost().(type) {
	case *techScope:
		name := a.str("name")
		fun := enumAttr(a, "fun", tech.ParseLayerFunction)
		var extra tech.ExtraFunction
		if v, ok := a.opt("extraFun"); ok {
			x, err := tech.ParseExtraFunction(v)
			if err != nil {
				return nil, d.modelError(err)
			}
			extra = x
		}
		if a.err != nil {
			return nil, a.err
		}
		l, err := s.t.NewLayer(name)
		if err != nil {
			return nil, d.modelError(err)
		}
		l.Function = fun
		l.Extra = extra
		return &layerScope{layer: l}, nil

	case *displayStyleScope:
		name := a.str("name")
		if a.err != nil {
			return nil, a.err
		}
		lds, err := s.style.NewLayerStyle(name)
		if err != nil {
			return nil, d.modelError(err)
		}
		return &styleLayerScope{style: s.style, layer: lds}, nil

	case *layerRuleScope:
		name := a.str("name")
		if a.err != nil {
			return nil, a.err
		}
		dist, err := s.rule.Add(name)
		if err != nil {
			return nil, d.modelError(err)
		}
		return &distanceScope{d: dist}, nil
	}
	return nil, d.misplaced(keyword.Layer, d.innermost())
}

func closeLayer(d *decoder, s scope, _ string) error {
	if sl, ok := s.(*styleLayerScope); ok {
		if sl.patternIndex != 0 && sl.patternIndex != tech.PatternRows {
			return d.schemaErrorf("layer %q of displayStyle %q has %d pattern rows, want %d",
				sl.layer.Layer, sl.style.Name, sl.patternIndex, tech.PatternRows)
		}
	}
	return nil
}

func openCifLayer(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*layerScope](d, keyword.CifLayer)
	if err != nil {
		return nil, err
	}
	s.layer.CIF = a.str("cif")
	return nil, nil
}

func openSkillLayer(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*layerScope](d, keyword.SkillLayer)
	if err != nil {
		return nil, err
	}
	s.layer.Skill = a.str("skill")
	return nil, nil
}

func openParasitics(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*layerScope](d, keyword.Parasitics)
	if err != nil {
		return nil, err
	}
	s.layer.Resistance = a.float("resistance")
	s.layer.Capacitance = a.float("capacitance")
	s.layer.EdgeCapacitance = a.float("edgeCapacitance")
	return nil, nil
}

func openPureLayerNode(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*layerScope](d, keyword.PureLayerNode)
	if err != nil {
		return nil, err
	}
	pln := &tech.PureLayerNode{Name: a.str("name"), Port: a.str("port"), Style: tech.Filled}
	if v, ok := a.opt("style"); ok {
		style, err := tech.ParsePolyStyle(v)
		if err != nil {
			return nil, d.modelError(err)
		}
		pln.Style = style
	}
	s.layer.PureLayerNode = pln
	return &pureLayerNodeScope{node: pln}, nil
}

func closeOldName(d *decoder, _ scope, text string) error {
	switch s := d.innermost().(type) {
	case *pureLayerNodeScope:
		s.node.OldName = text
	case *arcScope:
		s.arc.OldName = text
	case *nodeScope:
		s.node.OldName = text
	default:
		return d.misplaced(keyword.OldName, s)
	}
	return nil
}

// arcs

func openArcProto(d *decoder, a *attrReader) (scope, error) {
	if _, err := within[*techScope](d, keyword.ArcProto); err != nil {
		return nil, err
	}
	arc := &tech.ArcProto{Name: a.str("name")}
	arc.Function = enumAttr(a, "fun", tech.ParseArcFunction)
	return &arcScope{arc: arc}, nil
}

func closeArcProto(d *decoder, s scope, _ string) error {
	d.tech.Arcs = append(d.tech.Arcs, s.(*arcScope).arc)
	return nil
}

func arcFlag(set func(*tech.ArcProto)) func(*decoder, *attrReader) (scope, error) {
	return func(d *decoder, a *attrReader) (scope, error) {
		s, ok := d.innermost().(*arcScope)
		if !ok {
			return nil, d.misplaced(keywordOf(a), d.innermost())
		}
		set(s.arc)
		return nil, nil
	}
}

func arcText(set func(*tech.ArcProto, string) error) func(*decoder, scope, string) error {
	return func(d *decoder, _ scope, text string) error {
		s, ok := d.innermost().(*arcScope)
		if !ok {
			return d.schemaErrorf("element is only allowed in <arcProto>")
		}
		if err := set(s.arc, text); err != nil {
			return d.schemaErrorf("arcProto %q: %q is not a valid value: %v", s.arc.Name, text, err)
		}
		return nil
	}
}

func openNotUsed(d *decoder, _ *attrReader) (scope, error) {
	switch s := d.innermost().(type) {
	case *arcScope:
		s.arc.NotUsed = true
	case *nodeScope:
		s.node.NotUsed = true
	default:
		return nil, d.misplaced(keyword.NotUsed, s)
	}
	return nil, nil
}

func openSkipSizeInPalette(d *decoder, _ *attrReader) (scope, error) {
	switch s := d.innermost().(type) {
	case *arcScope:
		s.arc.SkipSizeInPalette = true
	case *nodeScope:
		s.node.SkipSizeInPalette = true
	default:
		return nil, d.misplaced(keyword.SkipSizeInPalette, s)
	}
	return nil, nil
}

func openArcLayer(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*arcScope](d, keyword.ArcLayer)
	if err != nil {
		return nil, err
	}
	al := &tech.ArcLayer{Layer: a.str("layer")}
	al.Style = enumAttr(a, "style", tech.ParsePolyStyle)
	s.arc.Layers = append(s.arc.Layers, al)
	return &arcLayerScope{layer: al}, nil
}

func openArcPin(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*arcScope](d, keyword.ArcPin)
	if err != nil {
		return nil, err
	}
	pin := &tech.ArcPin{
		Name:     a.str("name"),
		PortName: a.str("port"),
		ElibSize: a.float("elibSize"),
	}
	s.arc.Pin = pin
	return &arcPinScope{pin: pin}, nil
}

// nodes

func openPrimitiveNode(d *decoder, a *attrReader) (scope, error) {
	if _, err := within[*techScope](d, keyword.PrimitiveNode); err != nil {
		return nil, err
	}
	node := &tech.PrimitiveNode{Name: a.str("name")}
	node.Function = enumAttr(a, "fun", tech.ParseNodeFunction)
	return &nodeScope{node: node}, nil
}

func closePrimitiveNode(d *decoder, s scope, _ string) error {
	d.tech.Nodes = append(d.tech.Nodes, s.(*nodeScope).node)
	return nil
}

func nodeFlag(set func(*tech.PrimitiveNode)) func(*decoder, *attrReader) (scope, error) {
	return func(d *decoder, a *attrReader) (scope, error) {
		s, ok := d.innermost().(*nodeScope)
		if !ok {
			return nil, d.misplaced(keywordOf(a), d.innermost())
		}
		set(s.node)
		return nil, nil
	}
}

func openDiskOffset(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.DiskOffset)
	if err != nil {
		return nil, err
	}
	s.node.DiskOffset = &tech.Point{X: a.float("x"), Y: a.float("y")}
	return nil, nil
}

func openDefaultWidth(d *decoder, _ *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.DefaultWidth)
	if err != nil {
		return nil, err
	}
	return &distanceScope{d: &s.node.DefaultWidth}, nil
}

func openDefaultHeight(d *decoder, _ *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.DefaultHeight)
	if err != nil {
		return nil, err
	}
	return &distanceScope{d: &s.node.DefaultHeight}, nil
}

func openNodeBase(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.NodeBase)
	if err != nil {
		return nil, err
	}
	s.node.NodeBase = &tech.Rect{
		LX: a.float("lx"),
		HX: a.float("hx"),
		LY: a.float("ly"),
		HY: a.float("hy"),
	}
	return nil, nil
}

func openNodeLayer(d *decoder, a *attrReader) (scope, error) {
	if _, err := within[*nodeScope](d, keyword.NodeLayer); err != nil {
		return nil, err
	}
	nl := &tech.NodeLayer{
		Layer:   a.str("layer"),
		PortNum: a.integerOr("portNum", 0),
	}
	nl.Style = enumAttr(a, "style", tech.ParsePolyStyle)
	if _, ok := a.opt("electrical"); ok {
		if a.boolOr("electrical", false) {
			nl.InElectricalLayers = true
		} else {
			nl.InLayers = true
		}
	} else {
		nl.InLayers = true
		nl.InElectricalLayers = true
	}
	return &nodeLayerScope{layer: nl}, nil
}

func closeNodeLayer(d *decoder, s scope, _ string) error {
	ns, err := within[*nodeScope](d, keyword.NodeLayer)
	if err != nil {
		return err
	}
	ns.node.Layers = append(ns.node.Layers, s.(*nodeLayerScope).layer)
	return nil
}

// boxCoefficients reads klx/khx/kly/khy, defaulting to -1/1/-1/1.
func boxCoefficients(a *attrReader, edges [4]*distance.Distance) {
	edges[0].K = a.floatOr("klx", -1)
	edges[1].K = a.floatOr("khx", 1)
	edges[2].K = a.floatOr("kly", -1)
	edges[3].K = a.floatOr("khy", 1)
}

func openBox(d *decoder, a *attrReader) (scope, error) {
	switch s := d.innermost().(type) {
	case *nodeLayerScope:
		s.layer.Representation = tech.RepBox
		boxCoefficients(a, s.layer.Edges())
	case *portScope:
		boxCoefficients(a, s.port.Edges())
	default:
		return nil, d.misplaced(keyword.Box, s)
	}
	return nil, nil
}

func openMultiCutBox(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeLayerScope](d, keyword.MultiCutBox)
	if err != nil {
		return nil, err
	}
	nl := s.layer
	nl.Representation = tech.RepMultiCutBox
	boxCoefficients(a, nl.Edges())
	nl.SizeRule = a.str("sizeRule")
	nl.SepRule = a.str("sepRule")
	nl.SepRule2D, _ = a.opt("sepRule2D")
	return nil, nil
}

func openSerpBox(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeLayerScope](d, keyword.SerpBox)
	if err != nil {
		return nil, err
	}
	nl := s.layer
	nl.Representation = tech.RepBox
	boxCoefficients(a, nl.Edges())
	nl.LWidth = a.float("lWidth")
	nl.RWidth = a.float("rWidth")
	nl.TExtent = a.float("tExtent")
	nl.BExtent = a.float("bExtent")
	return nil, nil
}

func openLambdaBox(d *decoder, a *attrReader) (scope, error) {
	var edges [4]*distance.Distance
	switch s := d.innermost().(type) {
	case *nodeLayerScope:
		edges = s.layer.Edges()
	case *portScope:
		edges = s.port.Edges()
	default:
		return nil, d.misplaced(keyword.LambdaBox, s)
	}
	values := [4]float64{a.float("klx"), a.float("khx"), a.float("kly"), a.float("khy")}
	if a.err != nil {
		return nil, a.err
	}
	for i, e := range edges {
		e.AddLambda(values[i])
	}
	return nil, nil
}

func openPoints(d *decoder, _ *attrReader) (scope, error) {
	s, err := within[*nodeLayerScope](d, keyword.Points)
	if err != nil {
		return nil, err
	}
	s.layer.Representation = tech.RepPoints
	return nil, nil
}

func openTechPoint(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeLayerScope](d, keyword.TechPoint)
	if err != nil {
		return nil, err
	}
	s.layer.TechPoints = append(s.layer.TechPoints, tech.TechPoint{
		XM: a.float("xm"),
		XA: a.float("xa"),
		YM: a.float("ym"),
		YA: a.float("ya"),
	})
	return nil, nil
}

func openPrimitivePort(d *decoder, a *attrReader) (scope, error) {
	if _, err := within[*nodeScope](d, keyword.PrimitivePort); err != nil {
		return nil, err
	}
	return &portScope{port: &tech.PrimitivePort{Name: a.str("name")}}, nil
}

func closePrimitivePort(d *decoder, s scope, _ string) error {
	ns, err := within[*nodeScope](d, keyword.PrimitivePort)
	if err != nil {
		return err
	}
	ns.node.Ports = append(ns.node.Ports, s.(*portScope).port)
	return nil
}

func openPortAngle(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*portScope](d, keyword.PortAngle)
	if err != nil {
		return nil, err
	}
	s.port.Angle = a.integer("primary")
	s.port.Range = a.integer("range")
	return nil, nil
}

func closePortTopology(d *decoder, _ scope, text string) error {
	s, err := within[*portScope](d, keyword.PortTopology)
	if err != nil {
		return err
	}
	return d.textError(keyword.PortTopology, text, parseInto(text, parseInt, &s.port.Topology))
}

func closePortArc(d *decoder, _ scope, text string) error {
	switch s := d.innermost().(type) {
	case *pureLayerNodeScope:
		s.node.PortArcs = append(s.node.PortArcs, text)
	case *arcPinScope:
		s.pin.PortArcs = append(s.pin.PortArcs, text)
	case *portScope:
		s.port.PortArcs = append(s.port.PortArcs, text)
	default:
		return d.misplaced(keyword.PortArc, s)
	}
	return nil
}

func openSerpTrans(d *decoder, _ *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.SerpTrans)
	if err != nil {
		return nil, err
	}
	s.node.SpecialType = tech.SpecialSerpTrans
	s.node.SpecialValues = make([]float64, tech.SerpentineValueCount)
	s.specialIndex = 0
	return nil, nil
}

func closeSpecialValue(d *decoder, _ scope, text string) error {
	s, err := within[*nodeScope](d, keyword.SpecialValue)
	if err != nil {
		return err
	}
	if s.specialIndex >= len(s.node.SpecialValues) {
		return d.schemaErrorf("primitiveNode %q has more than %d special values", s.node.Name, len(s.node.SpecialValues))
	}
	if err := parseInto(text, parseFloat, &s.node.SpecialValues[s.specialIndex]); err != nil {
		return d.textError(keyword.SpecialValue, text, err)
	}
	s.specialIndex++
	return nil
}

func openMinSizeRule(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.MinSizeRule)
	if err != nil {
		return nil, err
	}
	s.node.SizeRule = &tech.NodeSizeRule{
		Width:  a.float("width"),
		Height: a.float("height"),
		Rule:   a.str("rule"),
	}
	return nil, nil
}

func openSpiceTemplate(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*nodeScope](d, keyword.SpiceTemplate)
	if err != nil {
		return nil, err
	}
	s.node.SpiceTemplate = a.str("value")
	return nil, nil
}

func openSpiceHeader(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.SpiceHeader)
	if err != nil {
		return nil, err
	}
	h := &tech.SpiceHeader{Level: a.integer("level")}
	s.t.SpiceHeaders = append(s.t.SpiceHeaders, h)
	return &spiceHeaderScope{header: h}, nil
}

func openSpiceLine(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*spiceHeaderScope](d, keyword.SpiceLine)
	if err != nil {
		return nil, err
	}
	s.header.Lines = append(s.header.Lines, a.str("line"))
	return nil, nil
}

// display styles

func openDisplayStyle(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.DisplayStyle)
	if err != nil {
		return nil, err
	}
	ds := &tech.DisplayStyle{Name: a.str("name")}
	s.t.DisplayStyles = append(s.t.DisplayStyles, ds)
	return &displayStyleScope{style: ds}, nil
}

func openTransparentLayer(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*displayStyleScope](d, keyword.TransparentLayer)
	if err != nil {
		return nil, err
	}
	index := a.integer("transparent")
	if a.err == nil && index < 1 {
		a.fail("transparentLayer index %d must be positive", index)
	}
	return &transparentLayerScope{style: s.style, index: index}, nil
}

func closeTransparentLayer(_ *decoder, s scope, _ string) error {
	tl := s.(*transparentLayerScope)
	tl.style.SetTransparent(tl.index, tl.color)
	return nil
}

func rgbText(component func(*tech.Color) *int) func(*decoder, scope, string) error {
	return func(d *decoder, _ scope, text string) error {
		s, ok := d.innermost().(*transparentLayerScope)
		if !ok {
			return d.schemaErrorf("color component is only allowed in <transparentLayer>")
		}
		v, err := parseInt(text)
		if err != nil {
			return d.schemaErrorf("color component %q is not a valid value for 'integer'", text)
		}
		*component(&s.color) = v
		return nil
	}
}

func openTransparentColor(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*styleLayerScope](d, keyword.TransparentColor)
	if err != nil {
		return nil, err
	}
	index := a.integer("transparent")
	if a.err != nil {
		return nil, a.err
	}
	g := &s.layer.Graphics
	g.Transparent = index
	if index > 0 {
		c, ok := s.style.TransparentColor(index)
		if !ok {
			return nil, d.schemaErrorf("transparent color %d is not defined in displayStyle %q", index, s.style.Name)
		}
		g.Color = c
	}
	return nil, nil
}

func openOpaqueColor(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*styleLayerScope](d, keyword.OpaqueColor)
	if err != nil {
		return nil, err
	}
	s.layer.Graphics.Color = tech.Color{R: a.integer("r"), G: a.integer("g"), B: a.integer("b")}
	return nil, nil
}

func styleText(set func(*styleLayerScope, string) error) func(*decoder, scope, string) error {
	return func(d *decoder, _ scope, text string) error {
		s, ok := d.innermost().(*styleLayerScope)
		if !ok {
			return d.schemaErrorf("element is only allowed in a displayStyle <layer>")
		}
		if err := set(s, text); err != nil {
			return d.schemaErrorf("layer %q: %q is not a valid value: %v", s.layer.Layer, text, err)
		}
		return nil
	}
}

// closePattern sets bit j of the row for every non-space character at
// position len-j-1, so the first character is the most significant bit.
func closePattern(d *decoder, _ scope, text string) error {
	s, err := within[*styleLayerScope](d, keyword.Pattern)
	if err != nil {
		return err
	}
	if s.patternIndex >= tech.PatternRows {
		return d.schemaErrorf("layer %q has more than %d pattern rows", s.layer.Layer, tech.PatternRows)
	}
	var row uint16
	for j := 0; j < len(text) && j < 16; j++ {
		if text[len(text)-j-1] != ' ' {
			row |= 1 << j
		}
	}
	s.layer.Graphics.Pattern[s.patternIndex] = row
	s.patternIndex++
	return nil
}

func closeOutlined(d *decoder, _ scope, text string) error {
	s, err := within[*styleLayerScope](d, keyword.Outlined)
	if err != nil {
		return err
	}
	o, err := tech.ParseOutline(strings.TrimSpace(text))
	if err != nil {
		return d.modelError(err)
	}
	s.layer.Graphics.Outline = o
	return nil
}

func openDisplay3D(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*styleLayerScope](d, keyword.Display3D)
	if err != nil {
		return nil, err
	}
	s.layer.Mode3D = a.str("mode")
	s.layer.Factor3D = a.float("factor")
	return nil, nil
}

// menu palette

func openMenuPalette(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.MenuPalette)
	if err != nil {
		return nil, err
	}
	p := &tech.MenuPalette{NumColumns: a.integer("numColumns")}
	if a.err == nil && p.NumColumns < 1 {
		a.fail("menuPalette numColumns %d must be positive", p.NumColumns)
	}
	s.t.MenuPalette = p
	return &paletteScope{palette: p}, nil
}

func closeMenuPalette(d *decoder, s scope, _ string) error {
	p := s.(*paletteScope).palette
	if !p.IsGrid() {
		return d.schemaErrorf("menuPalette has %d boxes, which is not a whole number of %d-column rows",
			len(p.Boxes), p.NumColumns)
	}
	return nil
}

func openMenuBox(d *decoder, _ *attrReader) (scope, error) {
	var p *tech.MenuPalette
	switch s := d.innermost().(type) {
	case *paletteScope:
		p = s.palette
	case *techScope:
		// A bare menuBox in a fragment belongs to an implicit
		// one-column palette.
		if !d.fragment {
			return nil, d.misplaced(keyword.MenuBox, s)
		}
		if s.t.MenuPalette == nil {
			s.t.MenuPalette = &tech.MenuPalette{NumColumns: 1}
		}
		p = s.t.MenuPalette
	default:
		return nil, d.misplaced(keyword.MenuBox, s)
	}
	p.Boxes = append(p.Boxes, nil)
	return &menuBoxScope{palette: p, index: len(p.Boxes) - 1}, nil
}

func closeMenuArc(d *decoder, _ scope, text string) error {
	s, err := within[*menuBoxScope](d, keyword.MenuArc)
	if err != nil {
		return err
	}
	arc := d.tech.FindArc(text)
	if arc == nil {
		return d.modelError(&tech.MissingResolutionError{Kind: "arc", Name: text, Where: "menuBox"})
	}
	s.add(arc)
	return nil
}

func closeMenuNode(d *decoder, _ scope, text string) error {
	s, err := within[*menuBoxScope](d, keyword.MenuNode)
	if err != nil {
		return err
	}
	node := d.tech.FindNode(text)
	if node == nil {
		return d.modelError(&tech.MissingResolutionError{Kind: "node", Name: text, Where: "menuBox"})
	}
	s.add(node)
	return nil
}

func closeMenuText(d *decoder, _ scope, text string) error {
	s, err := within[*menuBoxScope](d, keyword.MenuText)
	if err != nil {
		return err
	}
	s.add(tech.MenuText(text))
	return nil
}

func openMenuCell(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*menuBoxScope](d, keyword.MenuCell)
	if err != nil {
		return nil, err
	}
	name := a.str("cellName")
	if a.err != nil {
		return nil, a.err
	}
	s.add(tech.MenuCell{CellName: name})
	return nil, nil
}

func openMenuNodeInst(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*menuBoxScope](d, keyword.MenuNodeInst)
	if err != nil {
		return nil, err
	}
	inst := &tech.MenuNodeInst{
		ProtoName: a.str("protoName"),
		Rotation:  a.integerOr("rotation", 0),
	}
	inst.Function = enumAttr(a, "function", tech.ParseNodeFunction)
	return &menuNodeInstScope{box: s, inst: inst}, nil
}

func closeMenuNodeInst(_ *decoder, s scope, _ string) error {
	ms := s.(*menuNodeInstScope)
	ms.box.add(ms.inst)
	return nil
}

func openMenuNodeText(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*menuNodeInstScope](d, keyword.MenuNodeText)
	if err != nil {
		return nil, err
	}
	s.inst.Text = a.str("text")
	s.inst.FontSize = a.float("size")
	return nil, nil
}

// distances

// currentDistance returns the Distance filled by rule and lambda elements.
func (d *decoder) currentDistance(k keyword.Keyword) (*distance.Distance, error) {
	switch s := d.innermost().(type) {
	case *arcLayerScope:
		return &s.layer.Extend, nil
	case *distanceScope:
		return s.d, nil
	default:
		return nil, d.misplaced(k, s)
	}
}

func closeLambda(d *decoder, _ scope, text string) error {
	dist, err := d.currentDistance(keyword.Lambda)
	if err != nil {
		return err
	}
	v, err := parseFloat(text)
	if err != nil {
		return d.textError(keyword.Lambda, text, err)
	}
	dist.AddLambda(v)
	return nil
}

func openRule(d *decoder, a *attrReader) (scope, error) {
	dist, err := d.currentDistance(keyword.Rule)
	if err != nil {
		return nil, err
	}
	name := a.str("ruleName")
	layer, _ := a.opt("layer")
	var layer2 string
	if layer != "" {
		layer2, _ = a.opt("layer2")
	}
	k := a.floatOr("k", 1)
	if a.err != nil {
		return nil, a.err
	}
	dist.AddRule(name, layer, layer2, k)
	return nil, nil
}

// rule sets

func openRuleSet(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.RuleSet)
	if err != nil {
		return nil, err
	}
	name, ok := a.opt("name")
	if !ok {
		name, ok = a.opt("ruleName")
	}
	if !ok {
		return nil, d.schemaErrorf("attribute %q must appear on element <ruleSet>", "name")
	}
	rs, err := s.t.NewRuleSet(name)
	if err != nil {
		return nil, d.modelError(err)
	}
	return &ruleSetScope{rules: rs}, nil
}

func openLayerRule(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*ruleSetScope](d, keyword.LayerRule)
	if err != nil {
		return nil, err
	}
	name := a.str("ruleName")
	if a.err != nil {
		return nil, a.err
	}
	lr, err := s.rules.NewLayerRule(name)
	if err != nil {
		return nil, d.modelError(err)
	}
	return &layerRuleScope{rule: lr}, nil
}

// foundries

func openFoundry(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*techScope](d, keyword.Foundry)
	if err != nil {
		return nil, err
	}
	f := &tech.Foundry{Name: a.str("name")}
	s.t.Foundries = append(s.t.Foundries, f)
	return &foundryScope{foundry: f}, nil
}

func openLayerGds(d *decoder, a *attrReader) (scope, error) {
	s, err := within[*foundryScope](d, keyword.LayerGds)
	if err != nil {
		return nil, err
	}
	layer, gds := a.str("layer"), a.str("gds")
	if a.err != nil {
		return nil, a.err
	}
	s.foundry.SetGDS(layer, gds)
	return nil, nil
}

func drcTemplate(k keyword.Keyword) func(*decoder, *attrReader) (scope, error) {
	return func(d *decoder, a *attrReader) (scope, error) {
		s, err := within[*foundryScope](d, k)
		if err != nil {
			return nil, err
		}
		s.foundry.Rules = append(s.foundry.Rules, tech.DRCTemplate{Kind: k.String(), Attrs: a.all()})
		return nil, nil
	}
}

// keywordOf returns the keyword of the element being opened.
func keywordOf(a *attrReader) keyword.Keyword {
	k, _, _ := keyword.Lookup(a.el.Name.Local)
	return k
}
