package tech

import "fmt"

// DuplicateDefinitionError reports a second definition of a uniquely named
// entity: a layer, a rule set, a layer rule, a layer within one layer rule
// or a layer within one display style.
type DuplicateDefinitionError struct {
	Kind string
	Name string
}

func (e *DuplicateDefinitionError) Error() string {
	return fmt.Sprintf("duplicate %s %s", e.Kind, e.Name)
}

// MissingResolutionError reports a name reference that does not resolve
// within its technology.
type MissingResolutionError struct {
	Kind string // "layer", "arc" or "node"
	Name string
	// Where describes the referring element, e.g. `arcProto "Metal-1"`.
	Where string
}

func (e *MissingResolutionError) Error() string {
	if e.Where == "" {
		return fmt.Sprintf("unresolved %s %q", e.Kind, e.Name)
	}
	return fmt.Sprintf("unresolved %s %q in %s", e.Kind, e.Name, e.Where)
}
