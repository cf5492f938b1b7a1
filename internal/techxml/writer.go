package techxml

import (
	"bufio"
	"io"
	"strings"

	"github.com/imr/Electric8/internal/keyword"
)

const indentWidth = 4

var escaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	"&", "&amp;",
	"'", "&apos;",
	`"`, "&quot;",
)

// writer emits one document. Pretty output indents nested elements by
// indentWidth and escapes character data; flat output has no newlines, no
// indentation and writes text unescaped. The first write error is kept
// and later writes are dropped.
type writer struct {
	out  *bufio.Writer
	flat bool

	indent        int
	indentEmitted bool
	err           error
}

func newWriter(w io.Writer, flat bool) *writer {
	return &writer{out: bufio.NewWriter(w), flat: flat}
}

func (w *writer) print(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.out.WriteString(s)
}

func (w *writer) fail(err error) {
	if w.err == nil {
		w.err = err
	}
}

func (w *writer) flush() error {
	if w.err != nil {
		return w.err
	}
	return w.out.Flush()
}

// checkIndent writes the pending indentation once per line.
func (w *writer) checkIndent() {
	if w.flat {
		w.indentEmitted = true
		return
	}
	if w.indentEmitted {
		return
	}
	w.s(w.indent)
	w.indentEmitted = true
}

// s writes n spaces.
func (w *writer) s(n int) {
	if n > 0 {
		w.print(strings.Repeat(" ", n))
	}
}

// l ends the line.
func (w *writer) l() {
	if !w.flat {
		w.print("\n")
	}
	w.indentEmitted = false
}

// p writes text, escaped in pretty mode only.
func (w *writer) p(s string) {
	if w.flat {
		w.print(s)
		return
	}
	w.print(escaper.Replace(s))
}

// pl writes a line of text.
func (w *writer) pl(s string) {
	w.checkIndent()
	w.p(s)
	w.l()
}

// b begins a start tag.
func (w *writer) b(k keyword.Keyword) {
	w.checkIndent()
	w.print("<")
	w.print(k.String())
	w.indent += indentWidth
}

// a writes an attribute.
func (w *writer) a(name, value string) {
	w.checkIndent()
	w.print(" " + name + `="`)
	w.p(value)
	w.print(`"`)
}

// aOpt writes an attribute unless value is empty.
func (w *writer) aOpt(name, value string) {
	if value != "" {
		w.a(name, value)
	}
}

func (w *writer) af(name string, v float64) { w.a(name, formatDouble(v)) }

func (w *writer) ai(name string, v int) { w.a(name, formatInt(v)) }

func (w *writer) ab(name string, v bool) { w.a(name, formatBool(v)) }

// c closes a start tag.
func (w *writer) c() {
	w.print(">")
}

// cl closes a start tag and ends the line.
func (w *writer) cl() {
	w.c()
	w.l()
}

// e closes an empty element.
func (w *writer) e() {
	w.print("/>")
	w.indent -= indentWidth
}

// el closes an empty element and ends the line.
func (w *writer) el() {
	w.e()
	w.l()
}

// end writes the end tag of k.
func (w *writer) end(k keyword.Keyword) {
	w.indent -= indentWidth
	w.checkIndent()
	w.print("</")
	w.print(k.String())
	w.print(">")
}

// endl writes the end tag of k and ends the line.
func (w *writer) endl(k keyword.Keyword) {
	w.end(k)
	w.l()
}

// bcpe writes a one-line text element.
func (w *writer) bcpe(k keyword.Keyword, text string) {
	w.b(k)
	w.c()
	w.p(text)
	w.end(k)
}

// bcpel writes a one-line text element and ends the line.
func (w *writer) bcpel(k keyword.Keyword, text string) {
	w.bcpe(k, text)
	w.l()
}

// bcl writes a start tag without attributes and ends the line.
func (w *writer) bcl(k keyword.Keyword) {
	w.b(k)
	w.cl()
}

// bel writes an empty element without attributes and ends the line.
func (w *writer) bel(k keyword.Keyword) {
	w.b(k)
	w.el()
}

func (w *writer) comment(s string) {
	w.checkIndent()
	w.print("<!-- ")
	w.p(s)
	w.print(" -->")
	w.l()
}
