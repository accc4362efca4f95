// Package message implements an in-memory model of internet mail messages
// (RFC 5322 and MIME): parsing, modifying and serializing messages, choosing
// transfer encodings and charsets, and computing threading metadata.
//
// A Message keeps the bytes of parts that were not modified, so parsing and
// serializing an unmodified message returns the original bytes.
package message

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/mjl-/mimeengine/mlog"
)

var (
	ErrCharset  = errors.New("text not representable in charset")
	ErrCompose  = errors.New("compose")
	ErrNotFound = errors.New("part not found")
)

type nodeKind int

const (
	kindLeaf      nodeKind = iota // Has a body.
	kindMultipart                 // Has children.
	kindMessage                   // Wraps an embedded message, message/rfc822.
)

// node is a message or part, stored in the arena of a Message. Nodes refer to
// each other by index. Node 0 is the message itself.
type node struct {
	kind     nodeKind
	parent   int   // -1 for the root.
	children []int // For kindMultipart.
	embedded int   // For kindMessage, -1 otherwise.

	header Header
	sep    []byte // Empty line after header, nil if absent.
	body   []byte // Encoded body of leafs and message wrappers.

	preamble []byte // For multiparts, bytes before the first delimiter.
	epilogue []byte // For multiparts, bytes after "--boundary--". Nil if there was no closing delimiter.

	boundaryStale bool // Children changed, a new boundary is generated on assembly.
	embeddedDirty bool // Embedded message changed, body must be regenerated.

	// Canonical bytes, nil if the node or one of its descendants changed.
	cache  []byte
	hdrLen int // Length of header and separator in cache.
}

// Message is a mail message with its parts.
//
// Modifications through the methods of Message and its parts invalidate the
// cached bytes of the changed part and its ancestors. Bytes and String
// assemble those parts again. A Message is not safe for concurrent use.
type Message struct {
	conf  *Config
	log   mlog.Log
	nodes []node
	nl    string // Line ending for generated lines, detected when parsing.

	Serial    uint64 // Opaque id assigned by storage.
	CursorPos int    // Opaque position for user interfaces.

	EncryptionState EncryptionState
	SignatureState  SignatureState
	MDNSentState    MDNSentState

	// Whether the full message is present. Storage may hold just the header
	// until the remainder is fetched, see EnsureComplete.
	Complete bool
}

// New returns an empty message. Use InitHeader to fill in the header for an
// identity.
func New(conf *Config) *Message {
	if conf == nil {
		conf = DefaultConfig()
	}
	m := &Message{
		conf:            conf,
		log:             mlog.New("message", conf.Log),
		nl:              "\r\n",
		EncryptionState: EncryptionUnknown,
		SignatureState:  SignatureUnknown,
		MDNSentState:    MDNStateUnknown,
		Complete:        true,
	}
	m.nodes = []node{{kind: kindLeaf, parent: -1, embedded: -1}}
	return m
}

// Config returns the configuration the message was created with.
func (m *Message) Config() *Config {
	return m.conf
}

// Newline returns the line ending used for generated lines, "\r\n" or "\n".
func (m *Message) Newline() string {
	return m.nl
}

// touch marks node i and its ancestors as changed.
func (m *Message) touch(i int) {
	for ; i >= 0; i = m.nodes[i].parent {
		m.nodes[i].cache = nil
		if p := m.nodes[i].parent; p >= 0 && m.nodes[p].kind == kindMessage && m.nodes[p].embedded == i {
			m.nodes[p].embeddedDirty = true
		}
	}
}

// NeedsAssembly returns whether the message changed since it was last parsed
// or serialized.
func (m *Message) NeedsAssembly() bool {
	return m.nodes[0].cache == nil
}

// Bytes returns the message in wire form, assembling changed parts.
func (m *Message) Bytes() []byte {
	return m.assemble(0)
}

// String returns the message in wire form, see Bytes.
func (m *Message) String() string {
	return string(m.Bytes())
}

// HeaderAsString returns the header of the message, ending with a line ending
// but without the separating empty line.
func (m *Message) HeaderAsString() string {
	return m.nodes[0].header.String(m.nl)
}

// Header returns a copy of the message header.
func (m *Message) Header() Header {
	return m.nodes[0].header.Clone()
}

// HeaderField returns the value of the first field named name. In Decoded
// mode, encoded-words are decoded and address domains are returned in
// unicode. A missing field results in an empty string.
func (m *Message) HeaderField(name string, mode Mode) string {
	v := m.nodes[0].header.Get(name)
	if mode == Raw || v == "" {
		return v
	}
	return m.decodeValue(name, v)
}

// HeaderFields returns the values of all fields named name, in order.
func (m *Message) HeaderFields(name string, mode Mode) []string {
	l := m.nodes[0].header.Values(name)
	if mode == Decoded {
		for i, v := range l {
			l[i] = m.decodeValue(name, v)
		}
	}
	return l
}

// RawHeaderFields returns the raw values of all fields named name.
func (m *Message) RawHeaderFields(name string) []string {
	return m.HeaderFields(name, Raw)
}

func (m *Message) decodeValue(name, v string) string {
	cs := m.Charset()
	if FieldTypeOf(name) == AddressList {
		return decodeAddressList(v, cs)
	}
	return decodeHeaderValue(v, cs)
}

// SetHeaderField sets a header field, replacing the first field with that
// name, or adding it to the end. For address lists, later fields with that
// name are removed. With prepend, a field is added at the top
// instead, as is done for trace and resent fields. An empty value removes all
// fields with that name.
//
// Address lists are normalized: domains are IDNA-encoded and display names
// encoded. Non-ASCII unstructured values are encoded in the first preferred
// charset that can represent them.
func (m *Message) SetHeaderField(name, value string, typ FieldType, prepend bool) {
	m.setNodeHeaderField(0, name, value, typ, prepend)
}

func (m *Message) setNodeHeaderField(i int, name, value string, typ FieldType, prepend bool) {
	h := &m.nodes[i].header
	defer m.touch(i)
	if value == "" {
		h.RemoveAll(name)
		return
	}
	value = m.encodeValue(value, typ)
	if prepend {
		h.Prepend(name, value)
	} else if typ == AddressList {
		// Address lists are read from all fields, later fields would be joined
		// into the new value.
		h.Replace(name, value)
	} else {
		h.Set(name, value)
	}
}

func (m *Message) encodeValue(value string, typ FieldType) string {
	switch typ {
	case AddressList:
		return normalizeAddressList(value, m.charsetFor(value))
	case Unstructured:
		if isASCII(value) {
			return value
		}
		s, err := encodeWords(value, m.charsetFor(value))
		if err != nil {
			m.log.Debugx("encoding header value, using utf-8", err)
			s, _ = encodeWords(value, "utf-8")
		}
		return s
	}
	return value
}

// AddHeaderField adds a field at the end, keeping existing fields with the
// same name.
func (m *Message) AddHeaderField(name, value string, typ FieldType) {
	if value == "" {
		return
	}
	m.nodes[0].header.Add(name, m.encodeValue(value, typ))
	m.touch(0)
}

// RemoveHeaderField removes the first field named name.
func (m *Message) RemoveHeaderField(name string) {
	if m.nodes[0].header.Has(name) {
		m.nodes[0].header.Remove(name)
		m.touch(0)
	}
}

// RemoveHeaderFields removes all fields named name.
func (m *Message) RemoveHeaderFields(name string) {
	if m.nodes[0].header.Has(name) {
		m.nodes[0].header.RemoveAll(name)
		m.touch(0)
	}
}

// addressField returns all fields named name joined. Messages with multiple
// To or Cc fields violate RFC 5322, but are seen in practice.
func (m *Message) addressField(name string) string {
	return strings.Join(m.HeaderFields(name, Decoded), ", ")
}

// From returns the decoded From header.
func (m *Message) From() string { return m.HeaderField("From", Decoded) }

// To returns the decoded To headers, joined.
func (m *Message) To() string { return m.addressField("To") }

// Cc returns the decoded Cc headers, joined.
func (m *Message) Cc() string { return m.addressField("Cc") }

func (m *Message) Bcc() string     { return m.HeaderField("Bcc", Decoded) }
func (m *Message) ReplyTo() string { return m.HeaderField("Reply-To", Decoded) }
func (m *Message) Subject() string { return m.HeaderField("Subject", Decoded) }

func (m *Message) SetFrom(v string)    { m.SetHeaderField("From", v, AddressList, false) }
func (m *Message) SetTo(v string)      { m.SetHeaderField("To", v, AddressList, false) }
func (m *Message) SetCc(v string)      { m.SetHeaderField("Cc", v, AddressList, false) }
func (m *Message) SetBcc(v string)     { m.SetHeaderField("Bcc", v, AddressList, false) }
func (m *Message) SetReplyTo(v string) { m.SetHeaderField("Reply-To", v, AddressList, false) }
func (m *Message) SetSubject(v string) { m.SetHeaderField("Subject", v, Unstructured, false) }

// FromAddrs returns the parsed From addresses.
func (m *Message) FromAddrs() []Address {
	return ParseAddressList(m.From())
}

// Date returns the parsed Date header, the zero time if absent or invalid.
func (m *Message) Date() time.Time {
	t, err := mail.ParseDate(m.HeaderField("Date", Raw))
	if err != nil {
		return time.Time{}
	}
	return t
}

// SetDate sets the Date header.
func (m *Message) SetDate(t time.Time) {
	m.SetHeaderField("Date", FormatDate(t), Structured, false)
}

// SetDateToday sets the Date header to the current time.
func (m *Message) SetDateToday() {
	m.SetDate(time.Now())
}

// FormatDate formats t for use in Date headers.
func FormatDate(t time.Time) string {
	// ../rfc/5322:787
	return t.Format("Mon, 02 Jan 2006 15:04:05 -0700")
}

// MsgID returns the Message-Id, including angle brackets. Text around the
// message-id, such as a comment, is removed.
func (m *Message) MsgID() string {
	return trimMsgID(m.HeaderField("Message-Id", Raw))
}

// SetMsgID sets the Message-Id. Angle brackets are added if missing.
func (m *Message) SetMsgID(id string) {
	if id != "" && !strings.HasPrefix(id, "<") {
		id = "<" + id + ">"
	}
	m.SetHeaderField("Message-Id", id, Structured, false)
}

// References returns the raw References header.
func (m *Message) References() string {
	return m.HeaderField("References", Raw)
}

// Charset returns the lower-cased charset parameter of the Content-Type, or
// the empty string.
func (m *Message) Charset() string {
	return nodeCharset(&m.nodes[0])
}

func nodeCharset(n *node) string {
	_, params := ParseMediaType(n.header.Get("Content-Type"))
	cs, _ := ParamValue(params, "charset")
	return strings.ToLower(cs)
}

// SetCharset sets the charset parameter of the Content-Type, adding a
// text/plain Content-Type if absent. The body is not converted.
func (m *Message) SetCharset(cs string) {
	m.setNodeParam(0, "charset", cs)
}

func (m *Message) setNodeParam(i int, name, value string) {
	n := &m.nodes[i]
	mt, params := ParseMediaType(n.header.Get("Content-Type"))
	if mt == "" {
		mt = "text/plain"
	}
	params = setParam(params, name, value)
	n.header.Set("Content-Type", FormatMediaType(mt, params))
	m.touch(i)
}

// Type returns the lower-cased media type of the message, e.g. "text/plain".
func (m *Message) Type() string {
	t, s := m.nodeType(0)
	return t + "/" + s
}

// nodeType returns the type and subtype of node i, with the defaults of RFC
// 2045 and RFC 2046 for missing and invalid values.
func (m *Message) nodeType(i int) (string, string) {
	mt, _ := ParseMediaType(m.nodes[i].header.Get("Content-Type"))
	t, s, ok := strings.Cut(mt, "/")
	if ok && t != "" && s != "" {
		return t, s
	}
	// ../rfc/2046:1681
	if p := m.nodes[i].parent; p >= 0 && m.nodes[p].kind == kindMultipart {
		if _, ps := m.nodeType(p); ps == "digest" {
			return "message", "rfc822"
		}
	}
	return "text", "plain"
}

// Cte returns the transfer encoding of the message body.
func (m *Message) Cte() CTE {
	return ParseCTE(m.nodes[0].header.Get("Content-Transfer-Encoding"))
}

// SetCte changes the transfer encoding of the message, encoding the body
// again.
func (m *Message) SetCte(cte CTE) {
	m.setNodeCte(0, cte)
}

func (m *Message) setNodeCte(i int, cte CTE) {
	n := &m.nodes[i]
	if n.kind == kindLeaf {
		decoded := decodeBody(n.body, ParseCTE(n.header.Get("Content-Transfer-Encoding")))
		n.body = encodeBody(decoded, cte, m.nl)
	}
	n.header.Set("Content-Transfer-Encoding", cte.String())
	m.touch(i)
}

// Body returns the encoded body of the message, everything after the header.
func (m *Message) Body() []byte {
	return m.nodeBody(0)
}

// BodyDecoded returns the body with transfer encoding removed.
func (m *Message) BodyDecoded() []byte {
	return decodeBody(m.Body(), m.Cte())
}

// SetBody sets the body, which must already be encoded with the transfer
// encoding of the message. For multipart messages, the parts are parsed
// from the new body.
func (m *Message) SetBody(buf []byte) {
	m.setNodeBody(0, buf)
}

// SetBodyEncoded encodes buf with the transfer encoding of the message and
// sets it as body.
func (m *Message) SetBodyEncoded(buf []byte) {
	m.SetBody(encodeBody(buf, m.Cte(), m.nl))
}

// SetBodyAndGuessCTE chooses the transfer encoding for buf, sets it and the
// encoded body. The allowed encodings are returned, the first is used.
func (m *Message) SetBodyAndGuessCTE(buf []byte, allow8Bit, willBeSigned bool) []CTE {
	l := AllowedCTEs(buf, allow8Bit, willBeSigned)
	m.nodes[0].header.Set("Content-Transfer-Encoding", l[0].String())
	m.SetBody(encodeBody(buf, l[0], m.nl))
	return l
}

// SetBodyText sets a text body, with line endings of the message. The charset
// is chosen from the preferred charsets and the transfer encoding from the
// contents.
func (m *Message) SetBodyText(text string, allow8Bit bool) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if m.nl != "\n" {
		text = strings.ReplaceAll(text, "\n", m.nl)
	}
	cs := m.charsetFor(text)
	buf, ok := EncodeCharset(cs, text)
	if !ok {
		cs, buf = "utf-8", []byte(text)
	}
	m.SetCharset(cs)
	m.SetBodyAndGuessCTE(buf, allow8Bit, false)
}

// BodyText returns the body decoded into utf-8 text, for text parts.
func (m *Message) BodyText() string {
	return DecodeCharset(m.Charset(), m.BodyDecoded())
}
