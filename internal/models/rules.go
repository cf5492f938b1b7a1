package models

// RuleTable is the YAML form of a set of design-rule values, keyed by rule
// name and expressed in lambda.
type RuleTable struct {
	Name  string             `json:"name" yaml:"name"`
	Rules map[string]float64 `json:"rules" yaml:"rules"`
}

// RulesInfo contains metadata about an uploaded rule table.
type RulesInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	UploadedAt string `json:"uploadedAt"`
	RulesCount int    `json:"rulesCount"`
}

// NodeSize is the evaluated default size of a primitive node.
type NodeSize struct {
	Node   string  `json:"node" msgpack:"node" cbor:"node"`
	Width  float64 `json:"width" msgpack:"width" cbor:"width"`
	Height float64 `json:"height" msgpack:"height" cbor:"height"`
	Error  string  `json:"error,omitempty" msgpack:"error,omitempty" cbor:"error,omitempty"`
}

// RuleValue is the evaluated value of one layer in a layer rule.
type RuleValue struct {
	RuleSet string  `json:"ruleSet" msgpack:"ruleSet" cbor:"ruleSet"`
	Rule    string  `json:"rule" msgpack:"rule" cbor:"rule"`
	Layer   string  `json:"layer" msgpack:"layer" cbor:"layer"`
	Value   float64 `json:"value" msgpack:"value" cbor:"value"`
	Error   string  `json:"error,omitempty" msgpack:"error,omitempty" cbor:"error,omitempty"`
}

// Evaluation is the result of resolving a technology against a rule table.
type Evaluation struct {
	Technology string      `json:"technology" msgpack:"technology" cbor:"technology"`
	Rules      string      `json:"rules" msgpack:"rules" cbor:"rules"`
	Nodes      []NodeSize  `json:"nodes" msgpack:"nodes" cbor:"nodes"`
	RuleValues []RuleValue `json:"ruleValues,omitempty" msgpack:"ruleValues,omitempty" cbor:"ruleValues,omitempty"`
}
