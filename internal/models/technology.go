// Package models contains the transport types shared by the HTTP API, the
// export encoders and the CLI.
package models

// TechnologySummary is a flat description of a decoded technology.
type TechnologySummary struct {
	Name           string         `json:"name" msgpack:"name" cbor:"name"`
	ClassName      string         `json:"className,omitempty" msgpack:"className,omitempty" cbor:"className,omitempty"`
	ShortName      string         `json:"shortName,omitempty" msgpack:"shortName,omitempty" cbor:"shortName,omitempty"`
	Description    string         `json:"description,omitempty" msgpack:"description,omitempty" cbor:"description,omitempty"`
	Metals         MetalRange     `json:"metals" msgpack:"metals" cbor:"metals"`
	Scale          float64        `json:"scale" msgpack:"scale" cbor:"scale"`
	DefaultFoundry string         `json:"defaultFoundry" msgpack:"defaultFoundry" cbor:"defaultFoundry"`
	Layers         []LayerSummary `json:"layers" msgpack:"layers" cbor:"layers"`
	Arcs           []ArcSummary   `json:"arcs" msgpack:"arcs" cbor:"arcs"`
	Nodes          []NodeSummary  `json:"nodes" msgpack:"nodes" cbor:"nodes"`
	DisplayStyles  []string       `json:"displayStyles,omitempty" msgpack:"displayStyles,omitempty" cbor:"displayStyles,omitempty"`
	RuleSets       []RuleSetInfo  `json:"ruleSets,omitempty" msgpack:"ruleSets,omitempty" cbor:"ruleSets,omitempty"`
	Foundries      []FoundryInfo  `json:"foundries,omitempty" msgpack:"foundries,omitempty" cbor:"foundries,omitempty"`
	Menu           *MenuSummary   `json:"menu,omitempty" msgpack:"menu,omitempty" cbor:"menu,omitempty"`
}

// MetalRange is the supported and default number of metal layers.
type MetalRange struct {
	Min     int `json:"min" msgpack:"min" cbor:"min"`
	Max     int `json:"max" msgpack:"max" cbor:"max"`
	Default int `json:"default" msgpack:"default" cbor:"default"`
}

// LayerSummary describes one mask layer.
type LayerSummary struct {
	Name     string `json:"name" msgpack:"name" cbor:"name"`
	Function string `json:"function" msgpack:"function" cbor:"function"`
	Extra    string `json:"extra,omitempty" msgpack:"extra,omitempty" cbor:"extra,omitempty"`
	CIF      string `json:"cif,omitempty" msgpack:"cif,omitempty" cbor:"cif,omitempty"`
	PureNode string `json:"pureNode,omitempty" msgpack:"pureNode,omitempty" cbor:"pureNode,omitempty"`
}

// ArcSummary describes one arc prototype.
type ArcSummary struct {
	Name     string   `json:"name" msgpack:"name" cbor:"name"`
	Function string   `json:"function" msgpack:"function" cbor:"function"`
	Layers   []string `json:"layers" msgpack:"layers" cbor:"layers"`
	Pin      string   `json:"pin,omitempty" msgpack:"pin,omitempty" cbor:"pin,omitempty"`
}

// NodeSummary describes one primitive node.
type NodeSummary struct {
	Name     string   `json:"name" msgpack:"name" cbor:"name"`
	Function string   `json:"function" msgpack:"function" cbor:"function"`
	Layers   []string `json:"layers" msgpack:"layers" cbor:"layers"`
	Ports    []string `json:"ports" msgpack:"ports" cbor:"ports"`
	Special  string   `json:"special,omitempty" msgpack:"special,omitempty" cbor:"special,omitempty"`
}

// RuleSetInfo names a rule set and its layer rules.
type RuleSetInfo struct {
	Name       string   `json:"name" msgpack:"name" cbor:"name"`
	LayerRules []string `json:"layerRules" msgpack:"layerRules" cbor:"layerRules"`
}

// FoundryInfo summarises one foundry.
type FoundryInfo struct {
	Name      string `json:"name" msgpack:"name" cbor:"name"`
	GDSLayers int    `json:"gdsLayers" msgpack:"gdsLayers" cbor:"gdsLayers"`
	Rules     int    `json:"rules" msgpack:"rules" cbor:"rules"`
}

// MenuSummary is the shape of the component menu.
type MenuSummary struct {
	Columns int `json:"columns" msgpack:"columns" cbor:"columns"`
	Rows    int `json:"rows" msgpack:"rows" cbor:"rows"`
	Boxes   int `json:"boxes" msgpack:"boxes" cbor:"boxes"`
}

// CatalogEntry is one hit of a catalog query.
type CatalogEntry struct {
	FileID     string `json:"fileId"`
	Technology string `json:"technology"`
	Kind       string `json:"kind"` // "layer", "arc" or "node"
	Name       string `json:"name"`
	Function   string `json:"function"`
}

// CatalogStats counts the indexed objects.
type CatalogStats struct {
	Technologies int `json:"technologies"`
	Layers       int `json:"layers"`
	Arcs         int `json:"arcs"`
	Nodes        int `json:"nodes"`
}
