package message

import (
	"strings"
)

// BodyPart describes a part of a message. Parts returned by Message.BodyPart
// refer to their position in the message. Parts that are added with
// AddBodyPart are described by the fields, from which the header is
// generated.
type BodyPart struct {
	Type    string // Lower-case, e.g. "text". Empty for parts added with only Header set.
	Subtype string // Lower-case, e.g. "plain".
	Charset string
	CTE     CTE

	Disposition        string // "inline" or "attachment", or empty.
	Name               string // Decoded Content-Type name parameter.
	Filename           string // Decoded Content-Disposition filename parameter.
	Params             []Param
	ContentID          string
	ContentDescription string

	Header Header // Header of the part. For added parts, fields not generated from the fields above.
	Body   []byte // Encoded with CTE.

	PartID string // Dotted position, e.g. "1.2". Empty for parts not in a message.

	node  int
	valid bool
}

// bodyPart returns the description of node i.
func (m *Message) bodyPart(i int) BodyPart {
	n := &m.nodes[i]
	t, st := m.nodeType(i)
	_, params := ParseMediaType(n.header.Get("Content-Type"))
	bp := BodyPart{
		Type:               t,
		Subtype:            st,
		Charset:            nodeCharset(n),
		CTE:                ParseCTE(n.header.Get("Content-Transfer-Encoding")),
		ContentID:          n.header.Get("Content-Id"),
		ContentDescription: decodeHeaderValue(n.header.Get("Content-Description"), nodeCharset(n)),
		Header:             n.header.Clone(),
		Body:               m.nodeBody(i),
		PartID:             m.partID(i),
		node:               i,
		valid:              true,
	}
	bp.Name, _ = ParamValue(params, "name")
	for _, p := range params {
		switch k := strings.ToLower(p.Name); {
		case k == "charset", k == "boundary", k == "name", strings.HasPrefix(k, "name*"):
		default:
			bp.Params = append(bp.Params, p)
		}
	}
	disp, dparams := ParseMediaType(n.header.Get("Content-Disposition"))
	bp.Disposition = disp
	bp.Filename, _ = ParamValue(dparams, "filename")
	return bp
}

// MediaType returns the type and subtype, e.g. "text/plain".
func (bp BodyPart) MediaType() string {
	return bp.Type + "/" + bp.Subtype
}

// FileName returns the filename, falling back to the name parameter.
func (bp BodyPart) FileName() string {
	if bp.Filename != "" {
		return bp.Filename
	}
	return bp.Name
}

// Decoded returns the body with transfer encoding removed.
func (bp BodyPart) Decoded() []byte {
	return decodeBody(bp.Body, bp.CTE)
}

// Text returns the decoded body converted to utf-8.
func (bp BodyPart) Text() string {
	return DecodeCharset(bp.Charset, bp.Decoded())
}

// SetBodyEncoded sets the body to buf encoded with the CTE of the part.
func (bp *BodyPart) SetBodyEncoded(buf []byte) {
	bp.Body = encodeBody(buf, bp.CTE, "\r\n")
}

// SetBodyAndGuessCTE chooses a transfer encoding for buf and sets the
// encoded body. The allowed encodings are returned, the first is used.
func (bp *BodyPart) SetBodyAndGuessCTE(buf []byte, allow8Bit, willBeSigned bool) []CTE {
	l := AllowedCTEs(buf, allow8Bit, willBeSigned)
	bp.CTE = l[0]
	bp.SetBodyEncoded(buf)
	return l
}

// TextBodyPart returns a text part for text, with the first of the preferred
// charsets that can represent it, utf-8 if none can. Line endings are
// normalized to CRLF.
func TextBodyPart(subtype, text string, prefs []string, allow8Bit bool) BodyPart {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\n", "\r\n")
	cs := AutoDetectCharset("", prefs, text)
	buf, ok := EncodeCharset(cs, text)
	if cs == "" || !ok {
		cs, buf = "utf-8", []byte(text)
	}
	bp := BodyPart{Type: "text", Subtype: subtype, Charset: cs}
	bp.SetBodyAndGuessCTE(buf, allow8Bit, false)
	return bp
}
