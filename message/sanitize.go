package message

import (
	"strconv"
	"strings"
)

// Header fields for local bookkeeping, never sent.
var privateHeaderFields = []string{
	"Status",
	"X-Status",
	"X-KMail-EncryptionState",
	"X-KMail-SignatureState",
	"X-KMail-Redirect-From",
	"X-KMail-Link-Message",
	"X-KMail-Link-Type",
	"X-KMail-Markup",
}

// RemovePrivateHeaderFields removes the header fields used for local
// bookkeeping.
func (m *Message) RemovePrivateHeaderFields() {
	for _, k := range privateHeaderFields {
		m.RemoveHeaderFields(k)
	}
}

// SanitizeHeaders removes all header fields except content fields and those
// in whitelist, e.g. before the message is forwarded inline.
func (m *Message) SanitizeHeaders(whitelist ...string) {
	h := &m.nodes[0].header
	var l []Field
	for _, f := range h.Fields {
		keep := strings.Contains(strings.ToLower(f.Name), "ontent")
		for _, w := range whitelist {
			keep = keep || strings.EqualFold(f.Name, w)
		}
		if keep {
			l = append(l, f)
		}
	}
	h.Fields = l
	m.touch(0)
}

// CleanupHeader removes fields with an empty value.
func (m *Message) CleanupHeader() {
	h := &m.nodes[0].header
	var l []Field
	for _, f := range h.Fields {
		if f.Name == "" || strings.TrimSpace(f.Value) != "" {
			l = append(l, f)
		}
	}
	if len(l) != len(h.Fields) {
		h.Fields = l
		m.touch(0)
	}
}

// AsSendableString returns the message without private header fields and
// without Bcc, the form in which it is sent or attached. The message itself is
// not modified.
func (m *Message) AsSendableString() []byte {
	c := m.Clone()
	c.RemovePrivateHeaderFields()
	c.RemoveHeaderFields("Bcc")
	return c.Bytes()
}

// HeaderAsSendableString returns the header like AsSendableString.
func (m *Message) HeaderAsSendableString() string {
	c := m.Clone()
	c.RemovePrivateHeaderFields()
	c.RemoveHeaderFields("Bcc")
	return c.HeaderAsString()
}

// Clone returns a copy of the message that can be modified independently.
func (m *Message) Clone() *Message {
	c := *m
	c.nodes = make([]node, len(m.nodes))
	for i, n := range m.nodes {
		n.header = n.header.Clone()
		n.children = append([]int(nil), n.children...)
		c.nodes[i] = n
	}
	return &c
}

// Link types for derived messages, see Link.
const (
	LinkReplied   = "reply"
	LinkForwarded = "forward"
)

// Link records that this message was derived from orig, so storage can mark
// orig as replied to or forwarded once this message is sent.
func (m *Message) Link(orig *Message, typ string) {
	if orig == nil || orig.Serial == 0 {
		return
	}
	m.AddHeaderField("X-KMail-Link-Message", strconv.FormatUint(orig.Serial, 10), Structured)
	m.AddHeaderField("X-KMail-Link-Type", typ, Structured)
}

// Links returns the serials and link types recorded with Link.
func (m *Message) Links() (serials []uint64, types []string) {
	msgs := m.HeaderFields("X-KMail-Link-Message", Raw)
	typs := m.HeaderFields("X-KMail-Link-Type", Raw)
	for i, s := range msgs {
		v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
		if err != nil || i >= len(typs) {
			continue
		}
		serials = append(serials, v)
		types = append(types, typs[i])
	}
	return
}
