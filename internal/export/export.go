// Package export flattens decoded technologies into transport summaries
// and serialises them.
package export

import (
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/tech"
)

// Format is a serialisation format for summaries.
type Format string

const (
	FormatJSON    Format = "json"
	FormatMsgpack Format = "msgpack"
	FormatCBOR    Format = "cbor"
)

// ContentType returns the MIME type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatMsgpack:
		return "application/x-msgpack"
	case FormatCBOR:
		return "application/cbor"
	default:
		return "application/json"
	}
}

// ParseFormat accepts a format name, case-insensitively. The empty string
// selects JSON.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case "":
		return FormatJSON, nil
	case FormatJSON, FormatMsgpack, FormatCBOR:
		return f, nil
	}
	return "", fmt.Errorf("unknown export format %q", s)
}

// cborMode uses core deterministic encoding so equal summaries produce
// identical bytes.
var cborMode cbor.EncMode

func init() {
	var err error
	cborMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("export: CBOR encoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v in the given format.
func Marshal(format Format, v any) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		return json.Marshal(v)
	case FormatMsgpack:
		return msgpack.Marshal(v)
	case FormatCBOR:
		return cborMode.Marshal(v)
	}
	return nil, fmt.Errorf("unknown export format %q", format)
}

// Summarize describes t for transport.
func Summarize(t *tech.Technology) *models.TechnologySummary {
	s := &models.TechnologySummary{
		Name:        t.Name,
		ClassName:   t.ClassName,
		ShortName:   t.ShortName,
		Description: t.Description,
		Metals: models.MetalRange{
			Min:     t.MinMetals,
			Max:     t.MaxMetals,
			Default: t.DefaultMetals,
		},
		Scale:          t.Scale,
		DefaultFoundry: t.DefaultFoundry,
		Layers:         make([]models.LayerSummary, 0, len(t.Layers())),
		Arcs:           make([]models.ArcSummary, 0, len(t.Arcs)),
		Nodes:          make([]models.NodeSummary, 0, len(t.Nodes)),
	}

	for _, l := range t.Layers() {
		ls := models.LayerSummary{
			Name:     l.Name(),
			Function: l.Function.String(),
			Extra:    l.Extra.String(),
			CIF:      l.CIF,
		}
		if l.PureLayerNode != nil {
			ls.PureNode = l.PureLayerNode.Name
		}
		s.Layers = append(s.Layers, ls)
	}

	for _, a := range t.Arcs {
		as := models.ArcSummary{Name: a.Name, Function: a.Function.String(), Layers: make([]string, 0, len(a.Layers))}
		for _, al := range a.Layers {
			as.Layers = append(as.Layers, al.Layer)
		}
		if a.Pin != nil {
			as.Pin = a.Pin.Name
		}
		s.Arcs = append(s.Arcs, as)
	}

	for _, n := range t.Nodes {
		ns := models.NodeSummary{
			Name:     n.Name,
			Function: n.Function.String(),
			Layers:   make([]string, 0, len(n.Layers)),
			Ports:    make([]string, 0, len(n.Ports)),
		}
		for _, nl := range n.Layers {
			ns.Layers = append(ns.Layers, nl.Layer)
		}
		for _, p := range n.Ports {
			ns.Ports = append(ns.Ports, p.Name)
		}
		if n.SpecialType != tech.SpecialNone {
			ns.Special = n.SpecialType.String()
		}
		s.Nodes = append(s.Nodes, ns)
	}

	for _, ds := range t.DisplayStyles {
		s.DisplayStyles = append(s.DisplayStyles, ds.Name)
	}
	for _, rs := range t.RuleSets() {
		info := models.RuleSetInfo{Name: rs.Name(), LayerRules: make([]string, 0)}
		for _, lr := range rs.LayerRules() {
			info.LayerRules = append(info.LayerRules, lr.Name())
		}
		s.RuleSets = append(s.RuleSets, info)
	}
	for _, f := range t.Foundries {
		s.Foundries = append(s.Foundries, models.FoundryInfo{Name: f.Name, GDSLayers: len(f.LayerGDS), Rules: len(f.Rules)})
	}
	if p := t.MenuPalette; p != nil {
		s.Menu = &models.MenuSummary{Columns: p.NumColumns, Rows: p.Rows(), Boxes: len(p.Boxes)}
	}

	return s
}
