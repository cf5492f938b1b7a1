package techxml

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/imr/Electric8/internal/distance"
	"github.com/imr/Electric8/internal/keyword"
	"github.com/imr/Electric8/internal/tech"
)

// schemaLocation is written on the root element of every document.
const schemaLocation = Namespace + " ../../technology/xml/TechnologyParam.xsd"

// Mode selects the output layout.
type Mode int

const (
	// Pretty writes an indented document with escaped character data.
	Pretty Mode = iota
	// Flat writes a menu palette on a single line without indentation, for
	// embedding as a string value. Character data is written as is, so
	// names containing markup characters produce malformed output.
	Flat
)

// ErrFlatDocument is returned when a full document is encoded in Flat mode.
// Flat output does not escape character data and is limited to menu
// palettes.
var ErrFlatDocument = errors.New("flat mode writes menu palettes only")

func (m Mode) String() string {
	switch m {
	case Pretty:
		return "pretty"
	case Flat:
		return "flat"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Encoder writes technology documents.
type Encoder struct {
	mode Mode
	now  func() time.Time
}

// NewEncoder returns an Encoder in the given mode.
func NewEncoder(mode Mode) *Encoder {
	return &Encoder{mode: mode, now: time.Now}
}

// WithClock returns a copy of e that stamps documents using now.
func (e *Encoder) WithClock(now func() time.Time) *Encoder {
	c := *e
	c.now = now
	return &c
}

// Mode returns the output layout of e.
func (e *Encoder) Mode() Mode { return e.mode }

// EncodeTechnology writes t as a full pretty document starting with the
// XML declaration and a banner. It returns ErrFlatDocument in Flat mode.
// Writing fails if a node or port edge carries rule terms, since boxes are
// written in lambda only.
func (e *Encoder) EncodeTechnology(w io.Writer, t *tech.Technology) error {
	if t == nil {
		return fmt.Errorf("technology is nil")
	}
	if e.mode == Flat {
		return ErrFlatDocument
	}
	out := newWriter(w, false)
	e.writeHeader(out, t)
	writeTechnology(out, t)
	return out.flush()
}

// EncodeMenuPalette writes p as a standalone <menuPalette> element. A nil
// palette writes nothing.
func (e *Encoder) EncodeMenuPalette(w io.Writer, p *tech.MenuPalette) error {
	out := newWriter(w, e.mode == Flat)
	writeMenuPalette(out, p)
	return out.flush()
}

// MenuPaletteString returns the flat markup of p, suitable for
// DecodeMenuPalette.
func MenuPaletteString(p *tech.MenuPalette) (string, error) {
	var sb strings.Builder
	if err := NewEncoder(Flat).EncodeMenuPalette(&sb, p); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (e *Encoder) writeHeader(w *writer, t *tech.Technology) {
	now := time.Now
	if e.now != nil {
		now = e.now
	}

	w.checkIndent()
	w.print("<?xml")
	w.a("version", "1.0")
	w.a("encoding", "UTF-8")
	w.print("?>")
	w.l()
	w.l()

	w.print("<!--")
	w.l()
	for _, line := range []string{
		" *",
		" * Electric(tm) VLSI Design System",
		" *",
		" * File: " + t.Name + ".xml",
		" * " + t.Name + " technology description",
		" * Generated automatically from a library",
		" *",
		fmt.Sprintf(" * Copyright (c) %d Static Free Software", now().Year()),
		" */",
	} {
		w.pl(line)
	}
	w.print("-->")
	w.l()
	w.l()
}

func writeTechnology(w *writer, t *tech.Technology) {
	w.b(keyword.Technology)
	w.a("name", t.Name)
	w.aOpt("class", t.ClassName)
	w.l()
	w.a("xmlns", Namespace)
	w.l()
	w.a("xmlns:xsi", "http://www.w3.org/2001/XMLSchema-instance")
	w.l()
	w.a("xsi:schemaLocation", schemaLocation)
	w.cl()
	w.l()

	if t.ShortName != "" {
		w.bcpel(keyword.ShortName, t.ShortName)
	}
	if t.Description != "" {
		w.bcpel(keyword.Description, t.Description)
	}
	w.b(keyword.NumMetals)
	w.ai("min", t.MinMetals)
	w.ai("max", t.MaxMetals)
	w.ai("default", t.DefaultMetals)
	w.el()
	w.b(keyword.Scale)
	w.af("value", t.Scale)
	w.ab("relevant", t.ScaleRelevant)
	w.el()
	w.b(keyword.DefaultFoundry)
	w.a("value", t.DefaultFoundry)
	w.el()
	w.b(keyword.MinResistance)
	w.af("value", t.MinResistance)
	w.el()
	w.b(keyword.MinCapacitance)
	w.af("value", t.MinCapacitance)
	w.el()
	w.l()

	w.comment("**************************************** LAYERS ****************************************")
	for _, l := range t.Layers() {
		writeLayer(w, l)
	}

	w.comment("******************** ARCS ********************")
	for _, a := range t.Arcs {
		writeArc(w, a)
		w.l()
	}

	w.comment("******************** NODES ********************")
	for _, n := range t.Nodes {
		writeNode(w, n)
		w.l()
	}

	for _, h := range t.SpiceHeaders {
		writeSpiceHeader(w, h)
	}
	for _, ds := range t.DisplayStyles {
		writeDisplayStyle(w, ds)
	}
	writeMenuPalette(w, t.MenuPalette)
	for _, rs := range t.RuleSets() {
		writeRuleSet(w, rs)
	}
	for _, f := range t.Foundries {
		writeFoundry(w, f)
	}

	w.endl(keyword.Technology)
}

func writeLayer(w *writer, l *tech.Layer) {
	w.b(keyword.Layer)
	w.a("name", l.Name())
	w.a("fun", l.Function.String())
	if l.Extra != 0 {
		w.a("extraFun", l.Extra.String())
	}
	w.cl()

	if l.CIF != "" {
		w.b(keyword.CifLayer)
		w.a("cif", l.CIF)
		w.el()
	}
	if l.Skill != "" {
		w.b(keyword.SkillLayer)
		w.a("skill", l.Skill)
		w.el()
	}
	if l.HasParasitics() {
		w.b(keyword.Parasitics)
		w.af("resistance", l.Resistance)
		w.af("capacitance", l.Capacitance)
		w.af("edgeCapacitance", l.EdgeCapacitance)
		w.el()
	}
	if pln := l.PureLayerNode; pln != nil {
		w.b(keyword.PureLayerNode)
		w.a("name", pln.Name)
		if pln.Style != tech.Filled {
			w.a("style", pln.Style.String())
		}
		w.a("port", pln.Port)
		if pln.OldName == "" && len(pln.PortArcs) == 0 {
			w.el()
		} else {
			w.cl()
			if pln.OldName != "" {
				w.bcpel(keyword.OldName, pln.OldName)
			}
			writePortArcs(w, pln.PortArcs)
			w.endl(keyword.PureLayerNode)
		}
	}

	w.endl(keyword.Layer)
	w.l()
}

func writePortArcs(w *writer, arcs []string) {
	for _, a := range arcs {
		w.bcpel(keyword.PortArc, a)
	}
}

func writeArc(w *writer, a *tech.ArcProto) {
	w.b(keyword.ArcProto)
	w.a("name", a.Name)
	w.a("fun", a.Function.String())
	w.cl()
	if a.OldName != "" {
		w.bcpel(keyword.OldName, a.OldName)
	}

	for _, f := range []struct {
		set bool
		k   keyword.Keyword
	}{
		{a.Wipable, keyword.Wipable},
		{a.Curvable, keyword.Curvable},
		{a.Special, keyword.Special},
		{a.NotUsed, keyword.NotUsed},
		{a.SkipSizeInPalette, keyword.SkipSizeInPalette},
	} {
		if f.set {
			w.bel(f.k)
		}
	}

	w.bcpel(keyword.Extended, formatBool(a.Extended))
	w.bcpel(keyword.FixedAngle, formatBool(a.FixedAngle))
	w.bcpel(keyword.AngleIncrement, formatInt(a.AngleIncrement))
	if a.AntennaRatio != 0 {
		w.bcpel(keyword.AntennaRatio, formatDouble(a.AntennaRatio))
	}
	if a.ElibWidthOffset != 0 {
		w.bcpel(keyword.ElibWidthOffset, formatDouble(a.ElibWidthOffset))
	}

	for _, al := range a.Layers {
		w.b(keyword.ArcLayer)
		w.a("layer", al.Layer)
		w.a("style", al.Style.String())
		if al.Extend.IsEmpty() {
			w.el()
			continue
		}
		w.cl()
		writeDistance(w, &al.Extend, true)
		w.endl(keyword.ArcLayer)
	}

	if pin := a.Pin; pin != nil {
		w.b(keyword.ArcPin)
		w.a("name", pin.Name)
		w.a("port", pin.PortName)
		w.af("elibSize", pin.ElibSize)
		if len(pin.PortArcs) == 0 {
			w.el()
		} else {
			w.cl()
			writePortArcs(w, pin.PortArcs)
			w.endl(keyword.ArcPin)
		}
	}

	w.endl(keyword.ArcProto)
}

// writeDistance writes the rule terms then the lambda constant. Single
// line distances are used inside layer rules.
func writeDistance(w *writer, d *distance.Distance, multiLine bool) {
	for _, r := range d.Terms() {
		w.b(keyword.Rule)
		w.a("ruleName", r.Name())
		if r.Layer() != "" {
			w.a("layer", r.Layer())
			if r.Layer2() != "" {
				w.a("layer2", r.Layer2())
			}
		}
		if r.K() != 1 {
			w.af("k", r.K())
		}
		w.e()
		if multiLine {
			w.l()
		}
	}
	if c := d.Constant(); c != 0 {
		w.bcpe(keyword.Lambda, formatDouble(c))
		if multiLine {
			w.l()
		}
	}
}

func writeNode(w *writer, n *tech.PrimitiveNode) {
	w.b(keyword.PrimitiveNode)
	w.a("name", n.Name)
	w.a("fun", n.Function.String())
	w.cl()
	if n.OldName != "" {
		w.bcpel(keyword.OldName, n.OldName)
	}

	for _, f := range []struct {
		set bool
		k   keyword.Keyword
	}{
		{n.ShrinkArcs, keyword.ShrinkArcs},
		{n.Square, keyword.Square},
		{n.CanBeZeroSize, keyword.CanBeZeroSize},
		{n.Wipes, keyword.Wipes},
		{n.Lockable, keyword.Lockable},
		{n.EdgeSelect, keyword.EdgeSelect},
		{n.SkipSizeInPalette, keyword.SkipSizeInPalette},
		{n.NotUsed, keyword.NotUsed},
		{n.LowVt, keyword.LowVt},
		{n.HighVt, keyword.HighVt},
		{n.NativeBit, keyword.NativeBit},
		{n.Od18, keyword.Od18},
		{n.Od25, keyword.Od25},
		{n.Od33, keyword.Od33},
	} {
		if f.set {
			w.bel(f.k)
		}
	}

	if p := n.DiskOffset; p != nil {
		w.b(keyword.DiskOffset)
		w.af("x", p.X)
		w.af("y", p.Y)
		w.el()
	}
	writeNodeSize(w, keyword.DefaultWidth, &n.DefaultWidth)
	writeNodeSize(w, keyword.DefaultHeight, &n.DefaultHeight)
	if r := n.NodeBase; r != nil {
		w.b(keyword.NodeBase)
		w.af("lx", r.LX)
		w.af("hx", r.HX)
		w.af("ly", r.LY)
		w.af("hy", r.HY)
		w.el()
	}

	for _, nl := range n.Layers {
		writeNodeLayer(w, n, nl)
	}
	for _, p := range n.Ports {
		writePort(w, n, p)
	}

	switch n.SpecialType {
	case tech.SpecialPolygonal:
		w.bel(keyword.Polygonal)
	case tech.SpecialSerpTrans:
		w.bcl(keyword.SerpTrans)
		for _, v := range n.SpecialValues {
			w.bcpel(keyword.SpecialValue, formatDouble(v))
		}
		w.endl(keyword.SerpTrans)
	}

	if r := n.SizeRule; r != nil {
		w.b(keyword.MinSizeRule)
		w.af("width", r.Width)
		w.af("height", r.Height)
		w.a("rule", r.Rule)
		w.el()
	}
	if n.SpiceTemplate != "" {
		w.b(keyword.SpiceTemplate)
		w.a("value", n.SpiceTemplate)
		w.el()
	}

	w.endl(keyword.PrimitiveNode)
}

func writeNodeSize(w *writer, k keyword.Keyword, d *distance.Distance) {
	if d.IsEmpty() {
		return
	}
	w.bcl(k)
	writeDistance(w, d, true)
	w.endl(k)
}

func writeNodeLayer(w *writer, n *tech.PrimitiveNode, nl *tech.NodeLayer) {
	w.b(keyword.NodeLayer)
	w.a("layer", nl.Layer)
	w.a("style", nl.Style.String())
	if nl.PortNum != 0 {
		w.ai("portNum", nl.PortNum)
	}
	if !(nl.InLayers && nl.InElectricalLayers) {
		w.ab("electrical", nl.InElectricalLayers)
	}
	w.cl()

	edges := nl.Edges()
	switch nl.Representation {
	case tech.RepBox:
		if n.SpecialType == tech.SpecialSerpTrans {
			writeBox(w, keyword.SerpBox, edges)
			w.af("lWidth", nl.LWidth)
			w.af("rWidth", nl.RWidth)
			w.af("tExtent", nl.TExtent)
			w.af("bExtent", nl.BExtent)
			w.cl()
			writeLambdaBox(w, edges, n.Name)
			w.endl(keyword.SerpBox)
		} else {
			writeBox(w, keyword.Box, edges)
			w.cl()
			writeLambdaBox(w, edges, n.Name)
			w.endl(keyword.Box)
		}
	case tech.RepPoints:
		w.bel(keyword.Points)
	case tech.RepMultiCutBox:
		writeBox(w, keyword.MultiCutBox, edges)
		w.a("sizeRule", nl.SizeRule)
		w.a("sepRule", nl.SepRule)
		w.aOpt("sepRule2D", nl.SepRule2D)
		if edgesEmpty(edges) {
			w.el()
		} else {
			w.cl()
			writeLambdaBox(w, edges, n.Name)
			w.endl(keyword.MultiCutBox)
		}
	}

	for _, tp := range nl.TechPoints {
		w.b(keyword.TechPoint)
		w.af("xm", tp.XM)
		w.af("xa", tp.XA)
		w.af("ym", tp.YM)
		w.af("ya", tp.YA)
		w.el()
	}

	w.endl(keyword.NodeLayer)
}

func writePort(w *writer, n *tech.PrimitiveNode, p *tech.PrimitivePort) {
	w.b(keyword.PrimitivePort)
	w.a("name", p.Name)
	w.cl()

	w.b(keyword.PortAngle)
	w.ai("primary", p.Angle)
	w.ai("range", p.Range)
	w.el()
	w.bcpel(keyword.PortTopology, formatInt(p.Topology))

	edges := p.Edges()
	writeBox(w, keyword.Box, edges)
	w.cl()
	writeLambdaBox(w, edges, n.Name+"."+p.Name)
	w.endl(keyword.Box)

	writePortArcs(w, p.PortArcs)
	w.endl(keyword.PrimitivePort)
}

// writeBox opens a box element, writing only the coefficients that differ
// from -1, 1, -1, 1.
func writeBox(w *writer, k keyword.Keyword, edges [4]*distance.Distance) {
	w.b(k)
	if edges[0].K != -1 {
		w.af("klx", edges[0].K)
	}
	if edges[1].K != 1 {
		w.af("khx", edges[1].K)
	}
	if edges[2].K != -1 {
		w.af("kly", edges[2].K)
	}
	if edges[3].K != 1 {
		w.af("khy", edges[3].K)
	}
}

func writeLambdaBox(w *writer, edges [4]*distance.Distance, owner string) {
	var v [4]float64
	for i, e := range edges {
		x, err := e.Lambda(distance.Empty)
		if err != nil {
			w.fail(fmt.Errorf("box of %s cannot be written in lambda: %w", owner, err))
			return
		}
		v[i] = x
	}
	w.b(keyword.LambdaBox)
	w.af("klx", v[0])
	w.af("khx", v[1])
	w.af("kly", v[2])
	w.af("khy", v[3])
	w.el()
}

func edgesEmpty(edges [4]*distance.Distance) bool {
	for _, e := range edges {
		if !e.IsEmpty() {
			return false
		}
	}
	return true
}

func writeSpiceHeader(w *writer, h *tech.SpiceHeader) {
	w.b(keyword.SpiceHeader)
	w.ai("level", h.Level)
	w.cl()
	for _, line := range h.Lines {
		w.b(keyword.SpiceLine)
		w.a("line", line)
		w.el()
	}
	w.endl(keyword.SpiceHeader)
	w.l()
}

func writeDisplayStyle(w *writer, ds *tech.DisplayStyle) {
	w.b(keyword.DisplayStyle)
	w.a("name", ds.Name)
	w.cl()

	if len(ds.Transparent) > 0 {
		w.comment("Transparent layers")
		for i, c := range ds.Transparent {
			w.b(keyword.TransparentLayer)
			w.ai("transparent", i+1)
			w.cl()
			w.bcpel(keyword.R, formatInt(c.R))
			w.bcpel(keyword.G, formatInt(c.G))
			w.bcpel(keyword.B, formatInt(c.B))
			w.endl(keyword.TransparentLayer)
		}
		w.l()
	}

	for _, ls := range ds.LayerStyles() {
		writeLayerStyle(w, ls)
	}

	w.endl(keyword.DisplayStyle)
	w.l()
}

func writeLayerStyle(w *writer, ls *tech.LayerDisplayStyle) {
	g := &ls.Graphics
	w.b(keyword.Layer)
	w.a("name", ls.Layer)
	w.cl()

	if g.Transparent > 0 {
		w.b(keyword.TransparentColor)
		w.ai("transparent", g.Transparent)
		w.el()
	} else {
		w.b(keyword.OpaqueColor)
		w.ai("r", g.Color.R)
		w.ai("g", g.Color.G)
		w.ai("b", g.Color.B)
		w.el()
	}

	w.bcpel(keyword.PatternedOnDisplay, formatBool(g.PatternedOnDisplay))
	w.bcpel(keyword.PatternedOnPrinter, formatBool(g.PatternedOnPrinter))
	for _, row := range g.Pattern {
		w.bcpel(keyword.Pattern, patternRow(row))
	}
	if g.Outline != tech.NoOutline {
		w.bcpel(keyword.Outlined, g.Outline.String())
	}
	w.bcpel(keyword.Opacity, formatDouble(g.Opacity))
	w.bcpel(keyword.Foreground, formatBool(g.Foreground))

	if ls.Mode3D != "" {
		w.b(keyword.Display3D)
		w.a("mode", ls.Mode3D)
		w.af("factor", ls.Factor3D)
		w.el()
	}

	w.endl(keyword.Layer)
}

// patternRow renders a pattern row with the most significant bit first.
func patternRow(row uint16) string {
	var b [16]byte
	for k := range b {
		if row&(1<<(15-k)) != 0 {
			b[k] = 'X'
		} else {
			b[k] = ' '
		}
	}
	return string(b[:])
}

func writeMenuPalette(w *writer, p *tech.MenuPalette) {
	if p == nil {
		return
	}
	w.b(keyword.MenuPalette)
	w.ai("numColumns", p.NumColumns)
	w.cl()
	for i, box := range p.Boxes {
		if p.NumColumns > 0 && i%p.NumColumns == 0 {
			w.l()
		}
		writeMenuBox(w, box)
	}
	w.l()
	w.endl(keyword.MenuPalette)
	w.l()
}

func writeMenuBox(w *writer, box tech.MenuBox) {
	w.b(keyword.MenuBox)
	if len(box) == 0 {
		w.el()
		return
	}
	w.cl()
	for _, item := range box {
		switch it := item.(type) {
		case *tech.ArcProto:
			w.bcpel(keyword.MenuArc, it.Name)
		case *tech.PrimitiveNode:
			w.bcpel(keyword.MenuNode, it.Name)
		case tech.MenuCell:
			w.b(keyword.MenuCell)
			w.a("cellName", it.CellName)
			w.el()
		case *tech.MenuNodeInst:
			w.b(keyword.MenuNodeInst)
			w.a("protoName", it.ProtoName)
			w.a("function", it.Function.String())
			if it.Rotation != 0 {
				w.ai("rotation", it.Rotation)
			}
			if it.Text == "" {
				w.el()
				continue
			}
			w.cl()
			w.b(keyword.MenuNodeText)
			w.a("text", it.Text)
			w.af("size", it.FontSize)
			w.el()
			w.endl(keyword.MenuNodeInst)
		case tech.MenuText:
			if it == "" {
				w.bel(keyword.MenuText)
			} else {
				w.bcpel(keyword.MenuText, string(it))
			}
		default:
			w.fail(fmt.Errorf("unsupported menu item %T", item))
		}
	}
	w.endl(keyword.MenuBox)
}

func writeRuleSet(w *writer, rs *tech.RuleSet) {
	w.b(keyword.RuleSet)
	w.a("name", rs.Name())
	w.cl()
	for _, lr := range rs.LayerRules() {
		writeLayerRule(w, lr)
	}
	w.endl(keyword.RuleSet)
	w.l()
}

// writeLayerRule writes one line per layer with the distances aligned.
func writeLayerRule(w *writer, lr *tech.LayerRule) {
	entries := lr.Entries()
	w.b(keyword.LayerRule)
	w.a("ruleName", lr.Name())
	if len(entries) == 0 {
		w.el()
		return
	}
	width := 0
	for _, e := range entries {
		width = max(width, len(e.Layer))
	}
	w.cl()
	for _, e := range entries {
		w.b(keyword.Layer)
		w.a("name", e.Layer)
		w.c()
		if !w.flat {
			w.s(width - len(e.Layer))
		}
		writeDistance(w, &e.Distance, false)
		w.endl(keyword.Layer)
	}
	w.endl(keyword.LayerRule)
}

func writeFoundry(w *writer, f *tech.Foundry) {
	w.b(keyword.Foundry)
	w.a("name", f.Name)
	w.cl()
	w.l()
	for _, m := range f.LayerGDS {
		w.b(keyword.LayerGds)
		w.a("layer", m.Layer)
		w.a("gds", m.GDS)
		w.el()
	}
	w.l()
	for _, r := range f.Rules {
		w.checkIndent()
		w.print("<" + r.Kind)
		w.indent += indentWidth
		for _, attr := range r.Attrs {
			w.a(attr.Name, attr.Value)
		}
		w.el()
	}
	w.endl(keyword.Foundry)
}
