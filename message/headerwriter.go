package message

import (
	"fmt"
	"strings"
)

// HeaderWriter helps create headers, folding to the next line when it would
// become too large. The line ending is nl, "\r\n" if empty.
type HeaderWriter struct {
	b        *strings.Builder
	nl       string
	lineLen  int
	nonfirst bool
}

// Addf formats the string and calls Add.
func (w *HeaderWriter) Addf(separator string, format string, args ...any) {
	w.Add(separator, fmt.Sprintf(format, args...))
}

// Add adds texts, each separated by separator. Individual elements in text are
// not wrapped. When folding, a whitespace separator becomes the leading
// whitespace of the continuation line, so unfolding restores the value.
func (w *HeaderWriter) Add(separator string, texts ...string) {
	if w.b == nil {
		w.b = &strings.Builder{}
	}
	if w.nl == "" {
		w.nl = "\r\n"
	}
	for _, text := range texts {
		n := len(text)
		if w.nonfirst && w.lineLen > 1 && w.lineLen+len(separator)+n > 78 {
			cont := separator
			if strings.TrimLeft(cont, " \t") != "" || cont == "" {
				w.b.WriteString(separator)
				cont = " "
			}
			w.b.WriteString(w.nl + cont)
			w.lineLen = len(cont)
		} else if w.nonfirst && separator != "" {
			w.b.WriteString(separator)
			w.lineLen += len(separator)
		}
		w.b.WriteString(text)
		w.lineLen += len(text)
		w.nonfirst = true
	}
}

// Newline starts a new line.
func (w *HeaderWriter) Newline() {
	w.b.WriteString(w.nl + "\t")
	w.lineLen = 1
	w.nonfirst = true
}

// String returns the header in string form, ending with the line ending.
func (w *HeaderWriter) String() string {
	if w.b == nil {
		return ""
	}
	return w.b.String() + w.nl
}
