package tech

// Color is an RGB triple with components in 0..255.
type Color struct {
	R, G, B int
}

// PatternRows is the height of a stipple pattern.
const PatternRows = 16

// Graphics describes how one layer is drawn.
type Graphics struct {
	// Transparent is a 1-based index into the display style palette;
	// 0 means the layer is opaque and drawn with Color.
	Transparent        int
	Color              Color
	PatternedOnDisplay bool
	PatternedOnPrinter bool
	// Pattern rows; bit 15 is the leftmost column.
	Pattern    [PatternRows]uint16
	Outline    Outline
	Opacity    float64
	Foreground bool
}

// DisplayStyle is a named set of per-layer graphics plus a palette of
// transparent colors.
type DisplayStyle struct {
	Name        string
	Transparent []Color

	styles []*LayerDisplayStyle
}

// LayerDisplayStyle is the appearance of one layer within a DisplayStyle.
type LayerDisplayStyle struct {
	Layer    string
	Graphics Graphics
	// Mode3D is empty when no 3D hint was given.
	Mode3D   string
	Factor3D float64
}

// NewLayerStyle adds the style entry for layer. Each layer appears at most
// once per display style.
func (ds *DisplayStyle) NewLayerStyle(layer string) (*LayerDisplayStyle, error) {
	for _, s := range ds.styles {
		if s.Layer == layer {
			return nil, &DuplicateDefinitionError{Kind: "layer", Name: layer + " in displayStyle " + ds.Name}
		}
	}
	s := &LayerDisplayStyle{Layer: layer}
	ds.styles = append(ds.styles, s)
	return s, nil
}

// LayerStyles returns the per-layer entries in definition order.
func (ds *DisplayStyle) LayerStyles() []*LayerDisplayStyle {
	out := make([]*LayerDisplayStyle, len(ds.styles))
	copy(out, ds.styles)
	return out
}

// FindLayerStyle returns the entry for layer, or nil.
func (ds *DisplayStyle) FindLayerStyle(layer string) *LayerDisplayStyle {
	for _, s := range ds.styles {
		if s.Layer == layer {
			return s
		}
	}
	return nil
}

// SetTransparent stores palette entry index (1-based), growing the palette
// as needed.
func (ds *DisplayStyle) SetTransparent(index int, c Color) {
	for len(ds.Transparent) < index {
		ds.Transparent = append(ds.Transparent, Color{})
	}
	ds.Transparent[index-1] = c
}

// TransparentColor returns palette entry index (1-based).
func (ds *DisplayStyle) TransparentColor(index int) (Color, bool) {
	if index < 1 || index > len(ds.Transparent) {
		return Color{}, false
	}
	return ds.Transparent[index-1], true
}
