package helpers

import (
	"io"
	"strings"

	"github.com/a-h/templ"
)

// Writer accumulates markup and remembers the first write error.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter wraps w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Raw writes trusted markup as-is.
func (w *Writer) Raw(parts ...string) {
	for _, part := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, part)
	}
}

// Text writes escaped text content.
func (w *Writer) Text(s string) {
	w.Raw(templ.EscapeString(s))
}

// Attr writes ` name="value"` with the value escaped.
func (w *Writer) Attr(name, value string) {
	w.Raw(" ", name, `="`, templ.EscapeString(value), `"`)
}

// URLAttr writes an href/action style attribute, dropping unsafe schemes.
func (w *Writer) URLAttr(name, value string) {
	w.Attr(name, string(templ.URL(value)))
}

// Flag writes a boolean attribute when on is true.
func (w *Writer) Flag(name string, on bool) {
	if on {
		w.Raw(" ", name)
	}
}

// Err returns the first write error.
func (w *Writer) Err() error {
	return w.err
}

// ClassNames joins the non-empty class names.
func ClassNames(names ...string) string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return strings.Join(out, " ")
}
