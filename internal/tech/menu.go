package tech

// MenuPalette is the component menu: boxes laid out row by row in
// NumColumns columns.
type MenuPalette struct {
	NumColumns int
	Boxes      []MenuBox
}

// MenuBox is the ordered content of one palette cell.
type MenuBox []MenuItem

// MenuItem is one entry of a MenuBox. The implementations are *ArcProto,
// *PrimitiveNode, MenuCell, *MenuNodeInst and MenuText. A nil item is not
// allowed.
type MenuItem interface {
	menuItem()
}

// MenuCell loads the named library cell.
type MenuCell struct {
	CellName string
}

// MenuNodeInst is a configured instance of a primitive node.
type MenuNodeInst struct {
	ProtoName string
	Function  NodeFunction
	// Text is empty when the instance carries no label.
	Text     string
	FontSize float64
	Rotation int
}

// MenuText is a free text entry. The empty MenuText is the blank entry.
type MenuText string

func (*ArcProto) menuItem()      {}
func (*PrimitiveNode) menuItem() {}
func (MenuCell) menuItem()       {}
func (*MenuNodeInst) menuItem()  {}
func (MenuText) menuItem()       {}

// Rows returns the number of palette rows.
func (p *MenuPalette) Rows() int {
	if p.NumColumns <= 0 {
		return 0
	}
	return (len(p.Boxes) + p.NumColumns - 1) / p.NumColumns
}

// IsGrid reports whether the box count fills a whole number of rows.
func (p *MenuPalette) IsGrid() bool {
	return p.NumColumns > 0 && len(p.Boxes)%p.NumColumns == 0
}
