package message

import (
	"bytes"
	"strings"
)

// FieldType determines how a header value is encoded when set.
type FieldType int

const (
	Unstructured FieldType = iota // Free text, RFC 2047 encoded when non-ASCII.
	Structured                    // Tokens, ids, dates, parameters.
	AddressList                   // Addresses, normalized when set.
)

// Mode selects how header values are returned.
type Mode int

const (
	Raw     Mode = iota // As found in the message, unfolded.
	Decoded             // RFC 2047 decoded, with unicode domains for addresses.
)

var fieldTypes = map[string]FieldType{
	"from":                        AddressList,
	"sender":                      AddressList,
	"reply-to":                    AddressList,
	"to":                          AddressList,
	"cc":                          AddressList,
	"bcc":                         AddressList,
	"resent-from":                 AddressList,
	"resent-sender":               AddressList,
	"resent-to":                   AddressList,
	"resent-cc":                   AddressList,
	"resent-bcc":                  AddressList,
	"mail-followup-to":            AddressList,
	"mail-reply-to":               AddressList,
	"disposition-notification-to": AddressList,
	"x-kmail-recipients":          AddressList,

	"message-id":                       Structured,
	"resent-message-id":                Structured,
	"in-reply-to":                      Structured,
	"references":                       Structured,
	"date":                             Structured,
	"resent-date":                      Structured,
	"mime-version":                     Structured,
	"content-type":                     Structured,
	"content-transfer-encoding":        Structured,
	"content-disposition":              Structured,
	"content-id":                       Structured,
	"return-path":                      Structured,
	"received":                         Structured,
	"list-post":                        Structured,
	"disposition-notification-options": Structured,
	"original-recipient":               Structured,
}

// FieldTypeOf returns the type for a header field name, Unstructured for
// unknown names.
func FieldTypeOf(name string) FieldType {
	return fieldTypes[strings.ToLower(name)]
}

// Field is a single header field.
type Field struct {
	Name  string // As it appeared. Empty for lines that aren't header fields, they are kept verbatim.
	Value string // Unfolded, without surrounding whitespace, still encoded.

	raw []byte // Original bytes including line ending(s). Nil for fields that were set.
}

// Header is an ordered list of header fields. Multiple fields with the same
// name are kept in order.
type Header struct {
	Fields []Field
}

func (h *Header) index(name string) int {
	for i, f := range h.Fields {
		if f.Name != "" && strings.EqualFold(f.Name, name) {
			return i
		}
	}
	return -1
}

// Get returns the value of the first field named name, or the empty string.
func (h *Header) Get(name string) string {
	if i := h.index(name); i >= 0 {
		return h.Fields[i].Value
	}
	return ""
}

// Has returns whether a field named name is present.
func (h *Header) Has(name string) bool {
	return h.index(name) >= 0
}

// Values returns the values of all fields named name, in order.
func (h *Header) Values(name string) []string {
	var l []string
	for _, f := range h.Fields {
		if f.Name != "" && strings.EqualFold(f.Name, name) {
			l = append(l, f.Value)
		}
	}
	return l
}

// Set replaces the value of the first field named name, or adds a field at
// the end. An empty value removes all fields named name.
func (h *Header) Set(name, value string) {
	if value == "" {
		h.RemoveAll(name)
		return
	}
	if i := h.index(name); i >= 0 {
		h.Fields[i] = Field{Name: h.Fields[i].Name, Value: value}
		return
	}
	h.Fields = append(h.Fields, Field{Name: name, Value: value})
}

// Replace sets the first field named name like Set, and removes any later
// fields with that name.
func (h *Header) Replace(name, value string) {
	i := h.index(name)
	h.Set(name, value)
	if i < 0 || value == "" {
		return
	}
	l := h.Fields[:i+1]
	for _, f := range h.Fields[i+1:] {
		if f.Name == "" || !strings.EqualFold(f.Name, name) {
			l = append(l, f)
		}
	}
	h.Fields = l
}

// Add adds a field at the end.
func (h *Header) Add(name, value string) {
	h.Fields = append(h.Fields, Field{Name: name, Value: value})
}

// Prepend adds a field at the top.
func (h *Header) Prepend(name, value string) {
	h.Fields = append([]Field{{Name: name, Value: value}}, h.Fields...)
}

// Remove removes the first field named name.
func (h *Header) Remove(name string) {
	if i := h.index(name); i >= 0 {
		h.Fields = append(h.Fields[:i:i], h.Fields[i+1:]...)
	}
}

// RemoveAll removes all fields named name.
func (h *Header) RemoveAll(name string) {
	l := h.Fields[:0]
	for _, f := range h.Fields {
		if f.Name == "" || !strings.EqualFold(f.Name, name) {
			l = append(l, f)
		}
	}
	h.Fields = l
}

// Clone returns a copy that can be modified independently.
func (h Header) Clone() Header {
	return Header{append([]Field(nil), h.Fields...)}
}

// parseHeader parses the header at the start of buf. It returns the header,
// the separating empty line (nil if absent) and the remaining body. Parsing
// never fails, lines that are not header fields are kept as nameless fields.
func parseHeader(buf []byte) (h Header, sep []byte, body []byte) {
	o := 0
	for o < len(buf) {
		e := bytes.IndexByte(buf[o:], '\n')
		if e < 0 {
			e = len(buf)
		} else {
			e += o + 1
		}
		line := buf[o:e]
		if bytes.Equal(line, []byte("\r\n")) || bytes.Equal(line, []byte("\n")) {
			return h, line, buf[e:]
		}
		o = e

		if (line[0] == ' ' || line[0] == '\t') && len(h.Fields) > 0 && h.Fields[len(h.Fields)-1].Name != "" {
			f := &h.Fields[len(h.Fields)-1]
			f.raw = buf[o-len(f.raw)-len(line) : o]
			f.Value = unfold(f.raw[len(f.Name)+1:])
			continue
		}
		if name, ok := fieldName(line); ok {
			h.Fields = append(h.Fields, Field{Name: name, Value: unfold(line[len(name)+1:]), raw: line})
			continue
		}
		h.Fields = append(h.Fields, Field{raw: line})
	}
	return h, nil, nil
}

// fieldName returns the field name of a header line, up to the colon.
func fieldName(line []byte) (string, bool) {
	for i, c := range line {
		if c == ':' {
			return string(line[:i]), i > 0
		}
		// ../rfc/5322:1689
		if c <= ' ' || c >= 0x7f {
			return "", false
		}
	}
	return "", false
}

// unfold removes the line endings of a folded value and trims surrounding
// whitespace.
func unfold(v []byte) string {
	s := string(v)
	s = strings.ReplaceAll(s, "\r\n", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

// write writes the header fields. Fields from the original message are written
// as they were, others are folded with nl as line ending.
func (h *Header) write(b *bytes.Buffer, nl string) {
	for _, f := range h.Fields {
		if b.Len() > 0 && b.Bytes()[b.Len()-1] != '\n' {
			b.WriteString(nl)
		}
		if f.raw != nil {
			b.Write(f.raw)
			continue
		}
		if len(f.Name)+2+len(f.Value) <= 78 {
			b.WriteString(f.Name + ": " + f.Value + nl)
			continue
		}
		w := &HeaderWriter{nl: nl}
		w.Add(" ", f.Name+":")
		w.Add(" ", strings.Split(f.Value, " ")...)
		b.WriteString(w.String())
	}
	if b.Len() > 0 && b.Bytes()[b.Len()-1] != '\n' {
		b.WriteString(nl)
	}
}

// String returns the header as text, with nl line endings for set fields.
func (h *Header) String(nl string) string {
	var b bytes.Buffer
	h.write(&b, nl)
	return b.String()
}
