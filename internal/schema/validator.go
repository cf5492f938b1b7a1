package schema

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
)

// XSINamespace is the XML Schema instance namespace; its attributes are
// accepted on any element.
const XSINamespace = "http://www.w3.org/2001/XMLSchema-instance"

// Violation is a grammar violation at a position in the input.
type Violation struct {
	Line   int
	Column int
	Msg    string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%d:%d: %s", v.Line, v.Column, v.Msg)
}

// Position reports the current input position of the token stream.
type Position interface {
	InputPos() (line, column int)
}

// Validator checks one token stream. It is not safe for concurrent use;
// create one per document.
type Validator struct {
	schema *Schema
	pos    Position
	stack  []*vframe
	done   bool
}

type vframe struct {
	tag  string
	typ  *ElementType
	text strings.Builder
}

// NewValidator returns a validator reading positions from pos, usually the
// *xml.Decoder producing the tokens.
func (s *Schema) NewValidator(pos Position) *Validator {
	return &Validator{schema: s, pos: pos}
}

func (v *Validator) violation(format string, args ...any) error {
	var line, col int
	if v.pos != nil {
		line, col = v.pos.InputPos()
	}
	return &Violation{Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

// Start validates a start element and its attributes.
func (v *Validator) Start(el xml.StartElement) error {
	if el.Name.Space != v.schema.Namespace {
		return v.violation("element %q is not in namespace %q", el.Name.Local, v.schema.Namespace)
	}

	var typ *ElementType
	if len(v.stack) == 0 {
		if v.done {
			return v.violation("content is not allowed after the document element")
		}
		if el.Name.Local != v.schema.Root {
			return v.violation("cannot find the declaration of element %q", el.Name.Local)
		}
		typ = v.schema.RootType()
	} else {
		parent := v.stack[len(v.stack)-1]
		child, ok := parent.typ.Children[el.Name.Local]
		if !ok {
			return v.violation("invalid content was found starting with element %q in <%s>", el.Name.Local, parent.tag)
		}
		typ = child
	}

	seen := make(map[string]bool, len(el.Attr))
	for _, a := range el.Attr {
		if isNamespaceAttr(a.Name) {
			continue
		}
		if typ.AnyAttributes {
			continue
		}
		lexical, ok := typ.Attributes[a.Name.Local]
		if !ok || (a.Name.Space != "" && a.Name.Space != v.schema.Namespace) {
			return v.violation("attribute %q is not allowed to appear in element %q", a.Name.Local, el.Name.Local)
		}
		if err := checkLexical(lexical, a.Value); err != nil {
			return v.violation("attribute %q of element %q: %v", a.Name.Local, el.Name.Local, err)
		}
		seen[a.Name.Local] = true
	}
	for _, req := range typ.Required {
		if !seen[req] {
			return v.violation("attribute %q must appear on element %q", req, el.Name.Local)
		}
	}

	v.stack = append(v.stack, &vframe{tag: el.Name.Local, typ: typ})
	return nil
}

// CharData accumulates character data of the innermost element.
func (v *Validator) CharData(data []byte) error {
	if len(v.stack) == 0 {
		if strings.TrimSpace(string(data)) != "" {
			return v.violation("content is not allowed outside the document element")
		}
		return nil
	}
	top := v.stack[len(v.stack)-1]
	top.text.Write(data)
	if top.typ.Text == "" && strings.TrimSpace(top.text.String()) != "" {
		return v.violation("element %q must have no character content", top.tag)
	}
	return nil
}

// End validates the character data of the closing element.
func (v *Validator) End(el xml.EndElement) error {
	if len(v.stack) == 0 {
		return v.violation("unexpected end of element %q", el.Name.Local)
	}
	top := v.stack[len(v.stack)-1]
	v.stack = v.stack[:len(v.stack)-1]
	if len(v.stack) == 0 {
		v.done = true
	}
	if top.typ.Text != "" {
		if err := checkLexical(top.typ.Text, top.text.String()); err != nil {
			return v.violation("element %q: %v", top.tag, err)
		}
	}
	return nil
}

// Finish reports an incomplete document.
func (v *Validator) Finish() error {
	if !v.done {
		return v.violation("document element %q is missing or not closed", v.schema.Root)
	}
	return nil
}

func isNamespaceAttr(name xml.Name) bool {
	return name.Space == "xmlns" || (name.Space == "" && name.Local == "xmlns") || name.Space == XSINamespace
}

func isInt(s string) bool {
	_, err := strconv.ParseInt(s, 10, 64)
	return err == nil
}

func isDouble(s string) bool {
	switch s {
	case "INF", "-INF", "NaN":
		return true
	}
	_, err := strconv.ParseFloat(s, 64)
	return err == nil
}
