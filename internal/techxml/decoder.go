// Package techxml reads and writes technology description documents.
//
// The decoder is a single pass over encoding/xml tokens. Every element
// pushes a frame; elements that own a model object also open a scope, and
// each element handler acts on the innermost open scope. Attribute-only
// elements act when they open, text-bearing elements when they close.
package techxml

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/imr/Electric8/internal/keyword"
	"github.com/imr/Electric8/internal/schema"
	"github.com/imr/Electric8/internal/tech"
)

// Namespace is the target namespace of technology documents.
const Namespace = "http://electric.sun.com/Technology"

type options struct {
	cache    *schema.Cache
	validate bool
	logger   *slog.Logger
}

// Option configures Decode.
type Option func(*options)

// WithSchemaCache validates against the grammar held by c instead of the
// process-wide embedded one.
func WithSchemaCache(c *schema.Cache) Option {
	return func(o *options) { o.cache = c }
}

// WithoutValidation skips grammar validation.
func WithoutValidation() Option {
	return func(o *options) { o.validate = false }
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option) options {
	o := options{cache: schema.Default(), validate: true, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Decode reads a full technology document. name identifies the input in
// error positions. The document is validated against the cached grammar
// when it is available. On failure no partial Technology is returned.
func Decode(r io.Reader, name string, opts ...Option) (*tech.Technology, error) {
	o := buildOptions(opts)

	d := newDecoder(r, name)
	if o.validate {
		if s, ok := o.cache.Get(); ok {
			d.validator = s.NewValidator(d.xd)
		}
	}

	if err := d.run(); err != nil {
		return nil, err
	}
	if d.tech == nil {
		return nil, d.schemaErrorf("document has no <technology> element")
	}
	o.logger.Debug("decoded technology", "file", name, "technology", d.tech.Name,
		"layers", len(d.tech.Layers()), "arcs", len(d.tech.Arcs), "nodes", len(d.tech.Nodes))
	return d.tech, nil
}

// DecodeFile reads the technology document at path.
func DecodeFile(path string, opts ...Option) (*tech.Technology, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open technology file: %w", err)
	}
	defer f.Close()
	return Decode(f, path, opts...)
}

type frame struct {
	key   keyword.Keyword
	scope scope
}

type decoder struct {
	file      string
	xd        *xml.Decoder
	validator *schema.Validator

	tech     *tech.Technology
	fragment bool
	// base is the number of frames pushed before the first token.
	base int

	stack      []frame
	text       strings.Builder
	collecting bool
}

func newDecoder(r io.Reader, name string) *decoder {
	return &decoder{file: name, xd: xml.NewDecoder(r)}
}

func (d *decoder) run() error {
	for {
		tok, err := d.xd.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return d.syntaxError(err)
		}

		switch tok := tok.(type) {
		case xml.StartElement:
			if d.validator != nil {
				if err := d.validator.Start(tok); err != nil {
					return d.schemaError(err)
				}
			}
			if err := d.start(tok); err != nil {
				return err
			}
		case xml.EndElement:
			if d.validator != nil {
				if err := d.validator.End(tok); err != nil {
					return d.schemaError(err)
				}
			}
			if err := d.end(); err != nil {
				return err
			}
		case xml.CharData:
			if d.validator != nil {
				if err := d.validator.CharData(tok); err != nil {
					return d.schemaError(err)
				}
			}
			if d.collecting {
				d.text.Write(tok)
			}
		}
	}
	if d.validator != nil {
		if err := d.validator.Finish(); err != nil {
			return d.schemaError(err)
		}
	}
	if len(d.stack) != d.base {
		return d.schemaErrorf("unexpected end of document inside <%s>", d.stack[len(d.stack)-1].key)
	}
	return nil
}

func (d *decoder) start(el xml.StartElement) error {
	if d.collecting {
		return d.schemaErrorf("element <%s> is not allowed inside <%s>", el.Name.Local, d.stack[len(d.stack)-1].key)
	}
	k, hasText, err := keyword.Lookup(el.Name.Local)
	if err != nil {
		return d.modelError(err)
	}
	if d.fragment && !menuKeyword(k) {
		return d.schemaErrorf("element <%s> is not allowed in a menu fragment", k)
	}

	var s scope
	if h := handlers[k]; h.open != nil {
		a := &attrReader{d: d, el: el}
		s, err = h.open(d, a)
		if err == nil {
			err = a.err
		}
		if err != nil {
			return err
		}
	}
	d.stack = append(d.stack, frame{key: k, scope: s})
	if hasText {
		d.text.Reset()
		d.collecting = true
	}
	return nil
}

func (d *decoder) end() error {
	f := d.stack[len(d.stack)-1]
	d.stack = d.stack[:len(d.stack)-1]

	var text string
	if d.collecting {
		text = d.text.String()
		d.collecting = false
	}
	if h := handlers[f.key]; h.close != nil {
		return h.close(d, f.scope, text)
	}
	return nil
}

// innermost returns the innermost open scope, or nil.
func (d *decoder) innermost() scope {
	for i := len(d.stack) - 1; i >= 0; i-- {
		if s := d.stack[i].scope; s != nil {
			return s
		}
	}
	return nil
}

// misplaced reports an element whose innermost scope cannot hold it.
func (d *decoder) misplaced(k keyword.Keyword, s scope) error {
	if s == nil {
		return d.schemaErrorf("element <%s> is not allowed at the document level", k)
	}
	return d.schemaErrorf("element <%s> is not allowed in <%s>", k, s.scopeName())
}

func (d *decoder) pos() (int, int) {
	return d.xd.InputPos()
}

func (d *decoder) schemaErrorf(format string, args ...any) error {
	line, col := d.pos()
	return &SchemaValidationError{File: d.file, Line: line, Column: col, Msg: fmt.Sprintf(format, args...)}
}

func (d *decoder) schemaError(err error) error {
	var v *schema.Violation
	if errors.As(err, &v) {
		return &SchemaValidationError{File: d.file, Line: v.Line, Column: v.Column, Msg: v.Msg, Err: err}
	}
	line, col := d.pos()
	return &SchemaValidationError{File: d.file, Line: line, Column: col, Msg: err.Error(), Err: err}
}

func (d *decoder) syntaxError(err error) error {
	line, col := d.pos()
	var se *xml.SyntaxError
	if errors.As(err, &se) {
		return &SchemaValidationError{File: d.file, Line: se.Line, Column: col, Msg: se.Msg, Err: err}
	}
	return &SchemaValidationError{File: d.file, Line: line, Column: col, Msg: err.Error(), Err: err}
}

// modelError positions an error raised by the model. Unknown enumeration
// names are grammar errors; everything else is a DecodeError.
func (d *decoder) modelError(err error) error {
	line, col := d.pos()
	var unknown *tech.UnknownNameError
	if errors.As(err, &unknown) {
		return &SchemaValidationError{File: d.file, Line: line, Column: col, Msg: err.Error(), Err: err}
	}
	return &DecodeError{File: d.file, Line: line, Column: col, Err: err}
}
