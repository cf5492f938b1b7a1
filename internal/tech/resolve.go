package tech

import (
	"fmt"

	"github.com/imr/Electric8/internal/distance"
)

// Resolve checks that every layer and arc name referenced inside t is
// defined in t. It returns the first *MissingResolutionError found, walking
// the model in document order.
func (t *Technology) Resolve() error {
	r := resolver{t: t}

	for _, l := range t.layers {
		if pln := l.PureLayerNode; pln != nil {
			r.arcs(pln.PortArcs, fmt.Sprintf("pureLayerNode %q", pln.Name))
		}
	}
	for _, a := range t.Arcs {
		where := fmt.Sprintf("arcProto %q", a.Name)
		for _, al := range a.Layers {
			r.layer(al.Layer, where)
			r.distance(&al.Extend, where)
		}
		if a.Pin != nil {
			r.arcs(a.Pin.PortArcs, where)
		}
	}
	for _, n := range t.Nodes {
		where := fmt.Sprintf("primitiveNode %q", n.Name)
		r.distance(&n.DefaultWidth, where)
		r.distance(&n.DefaultHeight, where)
		for _, nl := range n.Layers {
			r.layer(nl.Layer, where)
			for _, d := range nl.Edges() {
				r.distance(d, where)
			}
		}
		for _, p := range n.Ports {
			for _, d := range p.Edges() {
				r.distance(d, where)
			}
			r.arcs(p.PortArcs, fmt.Sprintf("primitivePort %q of %s", p.Name, where))
		}
	}
	for _, ds := range t.DisplayStyles {
		for _, s := range ds.styles {
			r.layer(s.Layer, fmt.Sprintf("displayStyle %q", ds.Name))
		}
	}
	for _, rs := range t.ruleSets {
		for _, lr := range rs.rules {
			where := fmt.Sprintf("layerRule %q", lr.name)
			for _, e := range lr.entries {
				r.layer(e.Layer, where)
				r.distance(&e.Distance, where)
			}
		}
	}
	for _, f := range t.Foundries {
		for _, m := range f.LayerGDS {
			r.layer(m.Layer, fmt.Sprintf("Foundry %q", f.Name))
		}
	}
	return r.err
}

type resolver struct {
	t   *Technology
	err error
}

func (r *resolver) layer(name, where string) {
	if r.err != nil {
		return
	}
	if r.t.FindLayer(name) == nil {
		r.err = &MissingResolutionError{Kind: "layer", Name: name, Where: where}
	}
}

func (r *resolver) distance(d *distance.Distance, where string) {
	for _, name := range d.Layers() {
		r.layer(name, where)
	}
}

func (r *resolver) arcs(names []string, where string) {
	for _, name := range names {
		if r.err != nil {
			return
		}
		if r.t.FindArc(name) == nil {
			r.err = &MissingResolutionError{Kind: "arc", Name: name, Where: where}
		}
	}
}
