package techxml

import (
	"strings"

	"github.com/imr/Electric8/internal/keyword"
	"github.com/imr/Electric8/internal/tech"
)

// fragmentName identifies a menu fragment in error positions.
const fragmentName = "menu palette"

// menuKeyword reports whether k may appear in a menu fragment.
func menuKeyword(k keyword.Keyword) bool {
	switch k {
	case keyword.MenuPalette, keyword.MenuBox, keyword.MenuArc, keyword.MenuNode,
		keyword.MenuCell, keyword.MenuText, keyword.MenuNodeInst, keyword.MenuNodeText:
		return true
	}
	return false
}

// DecodeMenuPalette reads flat menu markup, as produced by
// MenuPaletteString, resolving arc and node names against the supplied
// lists. Resolved entries are the very objects from those lists. The
// fragment is either a <menuPalette> element or a sequence of <menuBox>
// elements, which form a one-column palette. Elements outside the menu
// vocabulary are rejected. No grammar validation is done and failures are
// returned to the caller unchanged.
func DecodeMenuPalette(fragment string, nodes []*tech.PrimitiveNode, arcs []*tech.ArcProto) (*tech.MenuPalette, error) {
	scratch := tech.New()
	scratch.Arcs = append([]*tech.ArcProto(nil), arcs...)
	scratch.Nodes = append([]*tech.PrimitiveNode(nil), nodes...)

	d := newDecoder(strings.NewReader(fragment), fragmentName)
	d.fragment = true
	d.tech = scratch
	d.stack = append(d.stack, frame{key: keyword.Technology, scope: &techScope{t: scratch}})
	d.base = len(d.stack)

	if err := d.run(); err != nil {
		return nil, err
	}
	if scratch.MenuPalette == nil {
		return &tech.MenuPalette{NumColumns: 1}, nil
	}
	return scratch.MenuPalette, nil
}
