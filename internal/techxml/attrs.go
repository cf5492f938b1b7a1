package techxml

import (
	"encoding/xml"
	"strconv"
	"strings"

	"github.com/imr/Electric8/internal/schema"
	"github.com/imr/Electric8/internal/tech"
)

// attrReader reads the attributes of one start element. The first failure
// is kept in err and later reads return zero values.
type attrReader struct {
	d   *decoder
	el  xml.StartElement
	err error
}

func (a *attrReader) lookup(name string) (string, bool) {
	for _, attr := range a.el.Attr {
		if attr.Name.Local == name && attr.Name.Space != "xmlns" && attr.Name.Space != schema.XSINamespace {
			return attr.Value, true
		}
	}
	return "", false
}

func (a *attrReader) fail(format string, args ...any) {
	if a.err == nil {
		a.err = a.d.schemaErrorf(format, args...)
	}
}

// Err returns the first failure.
func (a *attrReader) Err() error { return a.err }

// str returns a required string attribute.
func (a *attrReader) str(name string) string {
	v, ok := a.lookup(name)
	if !ok {
		a.fail("attribute %q must appear on element <%s>", name, a.el.Name.Local)
	}
	return v
}

// opt returns an optional string attribute.
func (a *attrReader) opt(name string) (string, bool) {
	return a.lookup(name)
}

func (a *attrReader) float(name string) float64 {
	v := a.str(name)
	if a.err != nil {
		return 0
	}
	return a.parseFloat(name, v)
}

func (a *attrReader) floatOr(name string, def float64) float64 {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	return a.parseFloat(name, v)
}

func (a *attrReader) parseFloat(name, v string) float64 {
	f, err := parseFloat(v)
	if err != nil {
		a.fail("attribute %q of element <%s>: %q is not a valid value for 'double'", name, a.el.Name.Local, v)
	}
	return f
}

func (a *attrReader) integer(name string) int {
	v := a.str(name)
	if a.err != nil {
		return 0
	}
	return a.parseInt(name, v)
}

func (a *attrReader) integerOr(name string, def int) int {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	return a.parseInt(name, v)
}

func (a *attrReader) parseInt(name, v string) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		a.fail("attribute %q of element <%s>: %q is not a valid value for 'integer'", name, a.el.Name.Local, v)
	}
	return i
}

func (a *attrReader) boolOr(name string, def bool) bool {
	v, ok := a.lookup(name)
	if !ok {
		return def
	}
	b, err := parseBool(v)
	if err != nil {
		a.fail("attribute %q of element <%s>: %q is not a valid value for 'boolean'", name, a.el.Name.Local, v)
	}
	return b
}

// enum resolves a required attribute through parse. Unknown names become
// positioned grammar errors.
func enumAttr[T any](a *attrReader, name string, parse func(string) (T, error)) T {
	var zero T
	v := a.str(name)
	if a.err != nil {
		return zero
	}
	out, err := parse(v)
	if err != nil && a.err == nil {
		a.err = a.d.modelError(err)
	}
	return out
}

// all returns every non-namespace attribute in document order.
func (a *attrReader) all() []tech.Attr {
	out := make([]tech.Attr, 0, len(a.el.Attr))
	for _, attr := range a.el.Attr {
		if attr.Name.Space == "xmlns" || (attr.Name.Space == "" && attr.Name.Local == "xmlns") || attr.Name.Space == schema.XSINamespace {
			continue
		}
		out = append(out, tech.Attr{Name: attr.Name.Local, Value: attr.Value})
	}
	return out
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, strconv.ErrSyntax
}
