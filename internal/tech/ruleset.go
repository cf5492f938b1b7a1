package tech

import "github.com/imr/Electric8/internal/distance"

// RuleSet groups layer rules: each maps a rule name to per-layer sizing
// Distances.
type RuleSet struct {
	name  string
	rules []*LayerRule
	index map[string]*LayerRule
}

// Name returns the rule set name.
func (rs *RuleSet) Name() string { return rs.name }

// NewLayerRule defines a layer rule within the set.
func (rs *RuleSet) NewLayerRule(ruleName string) (*LayerRule, error) {
	if rs.index == nil {
		rs.index = make(map[string]*LayerRule)
	}
	if _, exists := rs.index[ruleName]; exists {
		return nil, &DuplicateDefinitionError{Kind: "LayerRule", Name: ruleName}
	}
	lr := &LayerRule{name: ruleName}
	rs.rules = append(rs.rules, lr)
	rs.index[ruleName] = lr
	return lr, nil
}

// LayerRules returns the rules in definition order.
func (rs *RuleSet) LayerRules() []*LayerRule {
	out := make([]*LayerRule, len(rs.rules))
	copy(out, rs.rules)
	return out
}

// FindLayerRule returns the named rule or nil.
func (rs *RuleSet) FindLayerRule(ruleName string) *LayerRule {
	return rs.index[ruleName]
}

// LayerRule maps layers to Distances under one rule name.
type LayerRule struct {
	name    string
	entries []*LayerSize
}

// LayerSize is one layer entry of a LayerRule.
type LayerSize struct {
	Layer    string
	Distance distance.Distance
}

// Name returns the rule name.
func (lr *LayerRule) Name() string { return lr.name }

// Add starts the entry for layer and returns its Distance for filling.
// A layer may appear only once per rule.
func (lr *LayerRule) Add(layer string) (*distance.Distance, error) {
	for _, e := range lr.entries {
		if e.Layer == layer {
			return nil, &DuplicateDefinitionError{Kind: "layer", Name: layer + " in LayerRule " + lr.name}
		}
	}
	e := &LayerSize{Layer: layer}
	lr.entries = append(lr.entries, e)
	return &e.Distance, nil
}

// Entries returns the layer entries in definition order.
func (lr *LayerRule) Entries() []*LayerSize {
	out := make([]*LayerSize, len(lr.entries))
	copy(out, lr.entries)
	return out
}

// Find returns the Distance for layer, or nil.
func (lr *LayerRule) Find(layer string) *distance.Distance {
	for _, e := range lr.entries {
		if e.Layer == layer {
			return &e.Distance
		}
	}
	return nil
}
