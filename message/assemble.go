package message

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
)

// assemble returns the canonical bytes of node i, first assembling changed
// descendants, deepest first. Unchanged nodes keep their bytes.
func (m *Message) assemble(root int) []byte {
	if c := m.nodes[root].cache; c != nil {
		return c
	}

	type item struct {
		node     int
		expanded bool
	}
	stack := []item{{root, false}}
	for len(stack) > 0 {
		it := &stack[len(stack)-1]
		n := &m.nodes[it.node]
		if n.cache != nil {
			stack = stack[:len(stack)-1]
			continue
		}
		if !it.expanded {
			it.expanded = true
			switch n.kind {
			case kindMultipart:
				for j := len(n.children) - 1; j >= 0; j-- {
					if c := n.children[j]; m.nodes[c].cache == nil {
						stack = append(stack, item{c, false})
					}
				}
			case kindMessage:
				if m.nodes[n.embedded].cache == nil {
					stack = append(stack, item{n.embedded, false})
				}
			}
			continue
		}
		i := it.node
		stack = stack[:len(stack)-1]
		m.assembleNode(i)
	}
	return m.nodes[root].cache
}

// assembleNode sets the cache of node i, whose children must be assembled.
func (m *Message) assembleNode(i int) {
	n := &m.nodes[i]
	var body []byte
	switch n.kind {
	case kindMessage:
		if n.embeddedDirty {
			cte := ParseCTE(n.header.Get("Content-Transfer-Encoding"))
			n.body = encodeBody(m.nodes[n.embedded].cache, cte, m.nl)
			n.embeddedDirty = false
		}
		body = n.body
	case kindMultipart:
		body = m.multipartBody(i)
	default:
		body = n.body
	}

	var b bytes.Buffer
	n.header.write(&b, m.nl)
	if n.sep != nil {
		b.Write(n.sep)
	} else {
		b.WriteString(m.nl)
	}
	n.hdrLen = b.Len()
	b.Write(body)
	n.cache = b.Bytes()
}

// multipartBody returns the body of multipart node i from its assembled
// children. A new boundary is generated if the children changed structurally,
// or if the current boundary occurs in the content.
func (m *Message) multipartBody(i int) []byte {
	n := &m.nodes[i]
	_, params := ParseMediaType(n.header.Get("Content-Type"))
	boundary, _ := ParamValue(params, "boundary")
	if n.boundaryStale || boundary == "" || m.boundaryCollides(i, boundary) {
		for {
			boundary = newBoundary()
			if !m.boundaryCollides(i, boundary) {
				break
			}
		}
		m.setBoundary(i, boundary)
		n.boundaryStale = false
	}

	var b bytes.Buffer
	b.Write(n.preamble)
	for _, c := range n.children {
		b.WriteString("--" + boundary + m.nl)
		b.Write(m.nodes[c].cache)
		b.WriteString(m.nl)
	}
	b.WriteString("--" + boundary + "--")
	if n.epilogue != nil {
		b.Write(n.epilogue)
	} else {
		b.WriteString(m.nl)
	}
	return b.Bytes()
}

func (m *Message) boundaryCollides(i int, boundary string) bool {
	n := &m.nodes[i]
	delim := []byte("--" + boundary)
	if bytes.Contains(n.preamble, delim) || bytes.Contains(n.epilogue, delim) {
		return true
	}
	for _, c := range n.children {
		if bytes.Contains(m.nodes[c].cache, delim) {
			return true
		}
	}
	return false
}

// setBoundary sets the boundary parameter of node i, making its Content-Type
// multipart/mixed if it isn't a multipart. The node is not marked as changed.
func (m *Message) setBoundary(i int, boundary string) {
	h := &m.nodes[i].header
	mt, params := ParseMediaType(h.Get("Content-Type"))
	if !strings.HasPrefix(mt, "multipart/") {
		mt, params = "multipart/mixed", nil
	}
	params = setParam(params, "boundary", boundary)
	h.Set("Content-Type", FormatMediaType(mt, params))
}

// newBoundary returns a random boundary.
func newBoundary() string {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	return "Boundary-00=_" + base64.RawURLEncoding.EncodeToString(buf)
}

// nodeBody returns the encoded body of node i, assembling it if needed.
func (m *Message) nodeBody(i int) []byte {
	buf := m.assemble(i)
	return buf[m.nodes[i].hdrLen:]
}

// setNodeBody replaces the body of node i. The body is parsed for the parts
// of multiparts and embedded messages.
func (m *Message) setNodeBody(i int, buf []byte) {
	buf = append([]byte{}, buf...)
	work, _ := m.setContent(i, buf)
	m.parseWork(work)
	m.touch(i)
}
