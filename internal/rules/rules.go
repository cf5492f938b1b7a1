// Package rules loads design-rule value tables and evaluates technology
// distances against them.
package rules

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/imr/Electric8/internal/distance"
	"github.com/imr/Electric8/internal/models"
	"github.com/imr/Electric8/internal/tech"
)

// UnknownRuleError is returned when a distance names a rule the table does
// not define.
type UnknownRuleError struct {
	Table string
	Rule  string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("rule %q is not defined in table %q", e.Rule, e.Table)
}

// Unwrap lets callers match distance.ErrNoRules.
func (e *UnknownRuleError) Unwrap() error { return distance.ErrNoRules }

// Table resolves rule names to lambda values. It implements
// distance.Context.
type Table struct {
	Name   string
	values map[string]float64
}

var _ distance.Context = (*Table)(nil)

// NewTable returns a table over a copy of values.
func NewTable(name string, values map[string]float64) *Table {
	t := &Table{Name: name, values: make(map[string]float64, len(values))}
	for k, v := range values {
		t.values[k] = v
	}
	return t
}

// Rule returns the value of the named rule.
func (t *Table) Rule(name string) (float64, error) {
	v, ok := t.values[name]
	if !ok {
		return 0, &UnknownRuleError{Table: t.Name, Rule: name}
	}
	return v, nil
}

// Len returns the number of rules.
func (t *Table) Len() int { return len(t.values) }

// Names returns the rule names in sorted order.
func (t *Table) Names() []string {
	names := make([]string, 0, len(t.values))
	for k := range t.values {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ParseRules parses a YAML rule table file.
func ParseRules(filePath string) (*Table, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ParseRulesFromReader(file)
}

// ParseRulesFromReader parses a rule table from an io.Reader.
func ParseRulesFromReader(r io.Reader) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var doc models.RuleTable
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing rule table: %w", err)
	}
	if doc.Name == "" {
		doc.Name = "rules"
	}

	return NewTable(doc.Name, doc.Rules), nil
}

// EvaluateNodeSizes computes the default width and height of every node.
// A node whose size cannot be resolved is reported with its error instead
// of failing the whole evaluation.
func EvaluateNodeSizes(t *tech.Technology, ctx distance.Context) []models.NodeSize {
	sizes := make([]models.NodeSize, 0, len(t.Nodes))
	for _, n := range t.Nodes {
		size := models.NodeSize{Node: n.Name}
		w, err := n.DefaultWidth.Lambda(ctx)
		if err == nil {
			var h float64
			h, err = n.DefaultHeight.Lambda(ctx)
			size.Height = h
		}
		size.Width = w
		if err != nil {
			size.Width, size.Height = 0, 0
			size.Error = err.Error()
		}
		sizes = append(sizes, size)
	}
	return sizes
}

// EvaluateRuleSet computes the value of every layer entry of every layer
// rule in rs, in definition order.
func EvaluateRuleSet(rs *tech.RuleSet, ctx distance.Context) []models.RuleValue {
	var values []models.RuleValue
	for _, lr := range rs.LayerRules() {
		for _, e := range lr.Entries() {
			v := models.RuleValue{RuleSet: rs.Name(), Rule: lr.Name(), Layer: e.Layer}
			x, err := e.Distance.Lambda(ctx)
			if err != nil {
				v.Error = err.Error()
			} else {
				v.Value = x
			}
			values = append(values, v)
		}
	}
	return values
}

// Evaluate resolves every node size of t and the layer rules of its rule
// sets against table. A non-empty ruleSet restricts the rule values to
// that set.
func Evaluate(t *tech.Technology, table *Table, ruleSet string) (*models.Evaluation, error) {
	sets := t.RuleSets()
	if ruleSet != "" {
		rs := t.FindRuleSet(ruleSet)
		if rs == nil {
			return nil, fmt.Errorf("rule set %q not found in technology %q", ruleSet, t.Name)
		}
		sets = []*tech.RuleSet{rs}
	}

	ev := &models.Evaluation{
		Technology: t.Name,
		Rules:      table.Name,
		Nodes:      EvaluateNodeSizes(t, table),
	}
	for _, rs := range sets {
		ev.RuleValues = append(ev.RuleValues, EvaluateRuleSet(rs, table)...)
	}
	return ev, nil
}
