package message

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
)

// Composer helps compose header-like text, such as the machine-readable part
// of a disposition notification. Operations that fail call panic, which
// should be caught with recover(), checking for ErrCompose.
type Composer struct {
	nl string
	b  bytes.Buffer
}

// NewComposer returns a composer that ends lines with nl.
func NewComposer(nl string) *Composer {
	if nl == "" {
		nl = "\r\n"
	}
	return &Composer{nl: nl}
}

// Write implements io.Writer.
func (c *Composer) Write(buf []byte) (int, error) {
	return c.b.Write(buf)
}

// Checkf checks err, panicing with sentinel error value.
func (c *Composer) Checkf(err error, format string, args ...any) {
	if err != nil {
		panic(fmt.Errorf("%w: %w: %v", ErrCompose, err, fmt.Sprintf(format, args...)))
	}
}

// Header writes a header field, folded if needed. The value must not contain
// line endings.
func (c *Composer) Header(k, v string) {
	if strings.ContainsAny(v, "\r\n") {
		c.Checkf(fmt.Errorf("line ending in value"), "header %q", k)
	}
	w := &HeaderWriter{nl: c.nl}
	w.Add(" ", k+":")
	w.Add(" ", strings.Split(v, " ")...)
	c.b.WriteString(w.String())
}

// Line writes an empty line.
func (c *Composer) Line() {
	c.b.WriteString(c.nl)
}

// Bytes returns the composed text.
func (c *Composer) Bytes() []byte {
	return c.b.Bytes()
}

// SetAutomaticFields sets MIME-Version. If isMulti is set or the message has
// more than one body part, the message becomes a multipart/mixed with a new
// boundary, the existing body becoming its first part.
func (m *Message) SetAutomaticFields(isMulti bool) {
	m.SetHeaderField("MIME-Version", "1.0", Structured, false)
	if !isMulti && m.NumBodyParts() <= 1 {
		return
	}
	if m.nodes[0].kind != kindMultipart {
		m.makeMultipart(0)
	}
	params := setParam(nil, "boundary", newBoundary())
	m.nodes[0].header.Set("Content-Type", FormatMediaType("multipart/mixed", params))
	m.nodes[0].boundaryStale = false
	m.touch(0)
}

// makeMultipart turns leaf or message node i into a multipart. A non-empty
// body, with its content headers, becomes the first part. A multipart
// Content-Type is kept, others are replaced by multipart/mixed.
func (m *Message) makeMultipart(i int) {
	n := &m.nodes[i]
	var first *node
	if len(bytes.TrimSpace(n.body)) > 0 || n.kind == kindMessage {
		first = &node{kind: n.kind, embedded: n.embedded, body: n.body, embeddedDirty: n.embeddedDirty}
		for _, k := range []string{"Content-Type", "Content-Transfer-Encoding", "Content-Disposition", "Content-Description", "Content-Id"} {
			if v := n.header.Get(k); v != "" {
				first.header.Fields = append(first.header.Fields, Field{Name: k, Value: v})
			}
		}
	}
	mt, params := ParseMediaType(n.header.Get("Content-Type"))
	if !strings.HasPrefix(mt, "multipart/") {
		mt, params = "multipart/mixed", nil
		n.header.Set("Content-Type", FormatMediaType(mt, params))
	}
	for _, k := range []string{"Content-Transfer-Encoding", "Content-Disposition", "Content-Description", "Content-Id"} {
		n.header.RemoveAll(k)
	}
	n.kind = kindMultipart
	n.body = nil
	n.embedded = -1
	n.children = nil
	n.boundaryStale = true
	if first != nil {
		ci := m.addNode(i)
		first.parent = i
		m.nodes[ci] = *first
		if first.kind == kindMessage {
			m.nodes[first.embedded].parent = ci
		}
		m.nodes[i].children = []int{ci}
	}
	m.touch(i)
}

// partHeader returns the header for an added part: the fields of bp.Header,
// with content fields generated from bp if bp.Type is set.
//
// Names and filenames that are not ASCII are added in RFC 2047 form, for
// compatibility, and in RFC 2231 form, unless the configuration requires RFC
// 2047 only.
func (m *Message) partHeader(bp BodyPart) Header {
	h := bp.Header.Clone()
	if bp.Type == "" {
		return h
	}
	for _, k := range []string{"Content-Type", "Content-Transfer-Encoding", "Content-Disposition", "Content-Description", "Content-Id"} {
		h.RemoveAll(k)
	}

	cs := bp.Charset
	if cs == "" {
		cs = AutoDetectCharset("", m.conf.PreferredCharsets, bp.Name+bp.Filename+bp.ContentDescription)
		if cs == "" {
			cs = "utf-8"
		}
	}
	subtype := bp.Subtype
	if subtype == "" {
		subtype = "plain"
	}
	mt := strings.ToLower(bp.Type + "/" + subtype)

	var params []Param
	if bp.Charset != "" {
		params = append(params, Param{"charset", bp.Charset})
	}
	params = append(params, nameParams("name", bp.Name, cs, m.conf.RFC2047Only)...)
	for _, p := range bp.Params {
		if isASCII(p.Value) || strings.HasSuffix(p.Name, "*") {
			params = append(params, p)
		} else {
			params = append(params, Param{p.Name + "*", encode2231(p.Value, cs)})
		}
	}
	h.Add("Content-Type", FormatMediaType(mt, params))
	if bp.Type != "multipart" {
		h.Add("Content-Transfer-Encoding", bp.CTE.String())
	}
	if bp.Disposition != "" || bp.Filename != "" {
		disp := bp.Disposition
		if disp == "" {
			disp = "attachment"
		}
		h.Add("Content-Disposition", FormatMediaType(disp, nameParams("filename", bp.Filename, cs, m.conf.RFC2047Only)))
	}
	if bp.ContentDescription != "" {
		d := bp.ContentDescription
		if s, err := encodeWords(d, cs); err == nil {
			d = s
		}
		h.Add("Content-Description", d)
	}
	if bp.ContentID != "" {
		h.Add("Content-Id", bp.ContentID)
	}
	return h
}

// partBody returns the body of bp with the line endings of the message. Parts
// are encoded with CRLF, binary bodies are left alone.
func (m *Message) partBody(bp BodyPart) []byte {
	if m.nl == "\r\n" || bp.CTE == CTEBinary {
		return bp.Body
	}
	if bp.CTE != CTEBase64 && bp.CTE != CTEQuotedPrintable && bp.Type != "text" {
		return bp.Body
	}
	return bytes.ReplaceAll(bp.Body, []byte("\r\n"), []byte(m.nl))
}

// AddBodyPart adds a part at the end of the message. A message that isn't a
// multipart is turned into one first, see SetAutomaticFields. Multipart and
// message/rfc822 bodies are parsed into parts.
func (m *Message) AddBodyPart(bp BodyPart) {
	m.addBodyPart(0, bp)
}

func (m *Message) addBodyPart(parent int, bp BodyPart) int {
	if m.nodes[parent].kind != kindMultipart {
		m.makeMultipart(parent)
	}
	ci := m.addNode(parent)
	m.nodes[ci].header = m.partHeader(bp)
	m.nodes[parent].children = append(m.nodes[parent].children, ci)
	m.nodes[parent].boundaryStale = true
	m.setNodeBody(ci, m.partBody(bp))
	m.log.Debug("added body part", slog.String("mediatype", bp.MediaType()), slog.Int("size", len(bp.Body)))
	return ci
}

// DeleteBodyPart replaces part i with an empty placeholder, keeping the
// numbering of parts intact. The placeholder keeps the header of the part,
// with a description mentioning the deletion and an attachment disposition.
func (m *Message) DeleteBodyPart(i int) error {
	l := m.walk()
	if i < 0 || i >= len(l) {
		return ErrNotFound
	}
	ni := l[i]
	bp := m.bodyPart(ni)

	comment := "This attachment has been deleted."
	if name := bp.FileName(); name != "" {
		comment = fmt.Sprintf("The attachment '%s' has been deleted.", name)
	}
	n := &m.nodes[ni]
	desc := comment
	if s, err := encodeWords(comment, "utf-8"); err == nil {
		desc = s
	}
	n.header.Set("Content-Description", desc)
	disp := n.header.Get("Content-Disposition")
	if strings.HasPrefix(strings.ToLower(disp), "inline") {
		n.header.Set("Content-Disposition", "attachment"+disp[len("inline"):])
	} else if disp == "" {
		n.header.Set("Content-Disposition", "attachment")
	}
	n.kind = kindLeaf
	n.children = nil
	n.embedded = -1
	n.body = []byte{}
	m.touch(ni)
	m.log.Debug("deleted body part", slog.String("partid", bp.PartID))
	return nil
}

// DeleteBodyParts removes all parts of a multipart message.
func (m *Message) DeleteBodyParts() {
	n := &m.nodes[0]
	if n.kind != kindMultipart {
		return
	}
	n.children = nil
	n.boundaryStale = true
	m.touch(0)
}

// RemoveBodyPart removes part i from its multipart, renumbering the parts
// after it. Unlike DeleteBodyPart, no placeholder remains.
func (m *Message) RemoveBodyPart(i int) error {
	l := m.walk()
	if i < 0 || i >= len(l) {
		return ErrNotFound
	}
	ni := l[i]
	p := m.nodes[ni].parent
	var children []int
	for _, c := range m.nodes[p].children {
		if c != ni {
			children = append(children, c)
		}
	}
	m.nodes[p].children = children
	m.nodes[p].boundaryStale = true
	m.touch(p)
	return nil
}

// ReplaceBodyPart replaces the header and body of part i with bp. The header
// is generated as for AddBodyPart.
func (m *Message) ReplaceBodyPart(i int, bp BodyPart) error {
	l := m.walk()
	if i < 0 || i >= len(l) {
		return ErrNotFound
	}
	ni := l[i]
	m.nodes[ni].header = m.partHeader(bp)
	m.nodes[ni].sep = nil
	m.setNodeBody(ni, m.partBody(bp))
	return nil
}
