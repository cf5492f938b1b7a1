// Package distance implements derived geometric quantities: a constant
// lambda offset plus named design-rule terms that are resolved by an
// external Context at evaluation time.
package distance

import (
	"errors"
	"fmt"
)

// Context resolves design-rule names to numeric values.
type Context interface {
	Rule(name string) (float64, error)
}

// ContextFunc adapts a function to the Context interface.
type ContextFunc func(name string) (float64, error)

// Rule calls f(name).
func (f ContextFunc) Rule(name string) (float64, error) {
	return f(name)
}

// MapContext resolves rules from a fixed map.
type MapContext map[string]float64

// Rule returns the value stored under name.
func (m MapContext) Rule(name string) (float64, error) {
	v, ok := m[name]
	if !ok {
		return 0, fmt.Errorf("rule %q: %w", name, ErrNoRules)
	}
	return v, nil
}

// ErrNoRules is returned by Empty for every lookup.
var ErrNoRules = errors.New("no design rules available")

// Empty is a Context that fails every lookup. Evaluating a Distance against
// it only succeeds when the Distance has no rule terms.
var Empty Context = ContextFunc(func(name string) (float64, error) {
	return 0, fmt.Errorf("rule %q: %w", name, ErrNoRules)
})

// Rule is one immutable term of a Distance: the value of a named rule,
// optionally qualified by one or two layer names, scaled by a coefficient.
type Rule struct {
	name   string
	layer  string
	layer2 string
	k      float64
}

// NewRule builds a rule term. layer2 is dropped when layer is empty.
func NewRule(name, layer, layer2 string, k float64) Rule {
	if layer == "" {
		layer2 = ""
	}
	return Rule{name: name, layer: layer, layer2: layer2, k: k}
}

// Name returns the rule name.
func (r Rule) Name() string { return r.name }

// Layer returns the first qualifying layer name, or "".
func (r Rule) Layer() string { return r.layer }

// Layer2 returns the second qualifying layer name, or "".
func (r Rule) Layer2() string { return r.layer2 }

// K returns the coefficient.
func (r Rule) K() float64 { return r.k }

func (r Rule) lambda(ctx Context) (float64, error) {
	v, err := ctx.Rule(r.name)
	if err != nil {
		return 0, err
	}
	return v * r.k, nil
}

// Distance is a constant plus an ordered list of rule terms. K is the
// edge coefficient used when the distance describes one side of a box.
type Distance struct {
	K      float64
	lambda float64
	terms  []Rule
}

// AddLambda adds v to the constant part.
func (d *Distance) AddLambda(v float64) {
	d.lambda += v
}

// AddRule appends a term. Term order only matters for re-emission.
func (d *Distance) AddRule(name, layer, layer2 string, k float64) {
	d.terms = append(d.terms, NewRule(name, layer, layer2, k))
}

// Constant returns the summed lambda contributions.
func (d *Distance) Constant() float64 {
	return d.lambda
}

// Terms returns a copy of the rule terms in insertion order.
func (d *Distance) Terms() []Rule {
	if len(d.terms) == 0 {
		return nil
	}
	out := make([]Rule, len(d.terms))
	copy(out, d.terms)
	return out
}

// Lambda evaluates the distance: constant + sum(ctx.Rule(name) * k).
func (d *Distance) Lambda(ctx Context) (float64, error) {
	value := d.lambda
	for _, term := range d.terms {
		v, err := term.lambda(ctx)
		if err != nil {
			return 0, err
		}
		value += v
	}
	return value, nil
}

// IsEmpty reports whether the distance has a zero constant and no terms.
func (d *Distance) IsEmpty() bool {
	return d.lambda == 0 && len(d.terms) == 0
}

// Clone returns an independent deep copy.
func (d *Distance) Clone() *Distance {
	c := &Distance{K: d.K, lambda: d.lambda}
	if len(d.terms) > 0 {
		c.terms = make([]Rule, len(d.terms))
		copy(c.terms, d.terms)
	}
	return c
}

// Layers returns every layer name referenced by the terms.
func (d *Distance) Layers() []string {
	var names []string
	for _, term := range d.terms {
		if term.layer != "" {
			names = append(names, term.layer)
		}
		if term.layer2 != "" {
			names = append(names, term.layer2)
		}
	}
	return names
}
