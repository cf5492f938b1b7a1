// Package schema compiles the technology document grammar and validates
// token streams against it.
//
// The grammar is a YAML resource describing, for every element type, its
// allowed attributes, required attributes, allowed children and the lexical
// type of its character data. Element types are named independently of
// element tags so that one tag may have a different content model under
// different parents.
package schema

import (
	"embed"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed technology.schema.yaml
var resources embed.FS

// ResourceName is the name of the embedded grammar.
const ResourceName = "technology.schema.yaml"

// Lexical types of attribute values and character data.
const (
	TypeString  = "string"
	TypeInt     = "int"
	TypeDouble  = "double"
	TypeBoolean = "boolean"
	TypePattern = "pattern"
)

// Schema is a compiled grammar.
type Schema struct {
	Namespace string
	Root      string

	types map[string]*ElementType
}

// ElementType is the content model of one element type.
type ElementType struct {
	Name          string
	Attributes    map[string]string
	Required      []string
	AnyAttributes bool
	// Children maps an allowed child tag to its element type.
	Children map[string]*ElementType
	// Text is the lexical type of the character data, or "" when only
	// whitespace is allowed.
	Text string
}

type document struct {
	Namespace string             `yaml:"namespace"`
	Root      string             `yaml:"root"`
	Types     map[string]typeDoc `yaml:"types"`
}

type typeDoc struct {
	Attributes    map[string]string `yaml:"attributes"`
	Required      []string          `yaml:"required"`
	AnyAttributes bool              `yaml:"anyAttributes"`
	Children      map[string]string `yaml:"children"`
	Text          string            `yaml:"text"`
}

var lexicalTypes = map[string]bool{
	TypeString:  true,
	TypeInt:     true,
	TypeDouble:  true,
	TypeBoolean: true,
	TypePattern: true,
}

// Compile parses and checks a YAML grammar.
func Compile(data []byte) (*Schema, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	if doc.Root == "" {
		return nil, fmt.Errorf("schema has no root element")
	}

	s := &Schema{
		Namespace: doc.Namespace,
		Root:      doc.Root,
		types:     make(map[string]*ElementType, len(doc.Types)),
	}
	for name, td := range doc.Types {
		s.types[name] = &ElementType{
			Name:          name,
			Attributes:    td.Attributes,
			Required:      td.Required,
			AnyAttributes: td.AnyAttributes,
			Children:      make(map[string]*ElementType, len(td.Children)),
			Text:          td.Text,
		}
	}

	// Link children and check references in a stable order so errors are
	// reproducible.
	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		td := doc.Types[name]
		et := s.types[name]
		if td.Text != "" && !lexicalTypes[td.Text] {
			return nil, fmt.Errorf("type %s: unknown text type %q", name, td.Text)
		}
		for attr, typ := range td.Attributes {
			if !lexicalTypes[typ] {
				return nil, fmt.Errorf("type %s: attribute %s has unknown type %q", name, attr, typ)
			}
		}
		for _, req := range td.Required {
			if _, ok := td.Attributes[req]; !ok {
				return nil, fmt.Errorf("type %s: required attribute %s is not declared", name, req)
			}
		}
		for tag, typeName := range td.Children {
			if typeName == "" {
				typeName = tag
			}
			child, ok := s.types[typeName]
			if !ok {
				return nil, fmt.Errorf("type %s: child %s refers to undefined type %q", name, tag, typeName)
			}
			et.Children[tag] = child
		}
	}

	if _, ok := s.types[s.Root]; !ok {
		return nil, fmt.Errorf("root type %q is not defined", s.Root)
	}
	return s, nil
}

// Type returns the named element type or nil.
func (s *Schema) Type(name string) *ElementType {
	return s.types[name]
}

// RootType returns the type of the document element.
func (s *Schema) RootType() *ElementType {
	return s.types[s.Root]
}

// Tags returns every element tag reachable from the root, sorted.
func (s *Schema) Tags() []string {
	seen := map[string]bool{s.Root: true}
	visited := map[*ElementType]bool{}
	var walk func(et *ElementType)
	walk = func(et *ElementType) {
		if visited[et] {
			return
		}
		visited[et] = true
		for tag, child := range et.Children {
			seen[tag] = true
			walk(child)
		}
	}
	walk(s.RootType())

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// checkLexical reports whether value is a valid lexical form of typ.
func checkLexical(typ, value string) error {
	v := strings.TrimSpace(value)
	switch typ {
	case TypeString:
		return nil
	case TypeInt:
		if !isInt(v) {
			return fmt.Errorf("%q is not a valid value for 'integer'", value)
		}
	case TypeDouble:
		if !isDouble(v) {
			return fmt.Errorf("%q is not a valid value for 'double'", value)
		}
	case TypeBoolean:
		switch v {
		case "true", "false", "1", "0":
		default:
			return fmt.Errorf("%q is not a valid value for 'boolean'", value)
		}
	case TypePattern:
		if len(value) != 16 {
			return fmt.Errorf("pattern row %q must be 16 characters long", value)
		}
	}
	return nil
}
