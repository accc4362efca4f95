package message

import (
	"bytes"
	"log/slog"

	"github.com/mjl-/mimeengine/metrics"
)

// Parse parses buf as a message. Parsing never fails: content that cannot be
// interpreted is kept as is. Multiparts without delimiter lines are treated
// as single parts, lines in the header that are not header fields are kept
// verbatim.
//
// Messages nested as message/rfc822 and multipart parts nested in multiparts
// are parsed without recursion, so deeply nested input does not exhaust the
// stack.
func Parse(conf *Config, buf []byte) *Message {
	m := New(conf)
	buf = append([]byte{}, buf...)
	m.nl = detectNewline(buf)
	malformed := m.parseWork([]parseWork{{0, buf}})
	if malformed > 0 {
		m.log.Debug("parsed malformed message", slog.Int("malformations", malformed), slog.Int("size", len(buf)))
		metrics.ParseInc("malformed")
	} else {
		metrics.ParseInc("ok")
	}
	return m
}

// detectNewline returns the line ending of the first line, "\r\n" if there
// is no line.
func detectNewline(buf []byte) string {
	i := bytes.IndexByte(buf, '\n')
	if i > 0 && buf[i-1] == '\r' || i < 0 {
		return "\r\n"
	}
	return "\n"
}

type parseWork struct {
	node int
	buf  []byte // Header and body of node.
}

// parseWork parses the nodes on the stack, and all nodes found inside them.
// It returns the number of tolerated malformations.
func (m *Message) parseWork(stack []parseWork) (malformed int) {
	for len(stack) > 0 {
		w := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := &m.nodes[w.node]
		h, sep, body := parseHeader(w.buf)
		n.header = h
		n.sep = sep
		n.cache = w.buf
		n.hdrLen = len(w.buf) - len(body)
		if sep == nil {
			malformed++
		}
		work, bad := m.setContent(w.node, body)
		if bad {
			malformed++
		}
		// Reversed, so parts are parsed in order.
		for i := len(work) - 1; i >= 0; i-- {
			stack = append(stack, work[i])
		}
	}
	return malformed
}

// setContent sets body as content of node i, whose header must already be
// present. For multiparts the children are created, for message/rfc822 the
// embedded message. The returned work must be parsed by the caller.
func (m *Message) setContent(i int, body []byte) (work []parseWork, malformed bool) {
	n := &m.nodes[i]
	n.kind = kindLeaf
	n.children = nil
	n.embedded = -1
	n.body = body
	n.preamble = nil
	n.epilogue = nil
	n.boundaryStale = false
	n.embeddedDirty = false

	t, st := m.nodeType(i)
	switch {
	case t == "multipart":
		_, params := ParseMediaType(n.header.Get("Content-Type"))
		boundary, _ := ParamValue(params, "boundary")
		if boundary == "" {
			m.log.Debug("multipart without boundary, treating as single part", slog.String("subtype", st))
			return nil, true
		}
		preamble, parts, epilogue, ok := splitMultipart(body, boundary)
		if !ok {
			m.log.Debug("multipart without parts, treating as single part", slog.String("boundary", boundary))
			return nil, true
		}
		n.kind = kindMultipart
		n.body = nil
		n.preamble = preamble
		n.epilogue = epilogue
		for _, p := range parts {
			ci := m.addNode(i)
			m.nodes[i].children = append(m.nodes[i].children, ci)
			work = append(work, parseWork{ci, p})
		}
		return work, epilogue == nil

	case t == "message" && (st == "rfc822" || st == "global"):
		embedded := decodeBody(body, ParseCTE(n.header.Get("Content-Transfer-Encoding")))
		if len(bytes.TrimSpace(embedded)) == 0 {
			return nil, false
		}
		ci := m.addNode(i)
		m.nodes[i].kind = kindMessage
		m.nodes[i].embedded = ci
		return []parseWork{{ci, embedded}}, false
	}
	return nil, false
}

// addNode adds an empty node to the arena and returns its index.
func (m *Message) addNode(parent int) int {
	m.nodes = append(m.nodes, node{kind: kindLeaf, parent: parent, embedded: -1})
	return len(m.nodes) - 1
}

// splitMultipart splits a multipart body at the delimiter lines of boundary.
// The line ending before a delimiter belongs to the delimiter. The preamble
// includes that line ending, the epilogue starts directly after the closing
// "--boundary--". If no closing delimiter is present, the last part extends to
// the end and epilogue is nil.
func splitMultipart(body []byte, boundary string) (preamble []byte, parts [][]byte, epilogue []byte, ok bool) {
	bound := []byte("--" + boundary)
	partStart := -1
	for o := 0; o < len(body); {
		next := len(body)
		if e := bytes.IndexByte(body[o:], '\n'); e >= 0 {
			next = o + e + 1
		}
		match, end := checkBound(body[o:next], bound)
		if match {
			if partStart < 0 {
				preamble = body[:o]
			} else {
				parts = append(parts, body[partStart:trimLineEnd(body, partStart, o)])
			}
			if end {
				return preamble, parts, body[o+len(bound)+2:], len(parts) > 0
			}
			partStart = next
		}
		o = next
	}
	if partStart < 0 {
		return nil, nil, nil, false
	}
	parts = append(parts, body[partStart:])
	return preamble, parts, nil, true
}

// trimLineEnd returns the end of the part that starts at start and is
// followed by a delimiter line at o.
func trimLineEnd(body []byte, start, o int) int {
	if o > start && body[o-1] == '\n' {
		o--
		if o > start && body[o-1] == '\r' {
			o--
		}
	}
	return o
}

// checkBound returns whether line is a delimiter line for bound, and
// whether it is the closing delimiter.
func checkBound(line, bound []byte) (bool, bool) {
	if !bytes.HasPrefix(line, bound) {
		return false, false
	}
	line = line[len(bound):]
	if bytes.HasPrefix(line, []byte("--")) {
		return true, true
	}
	if len(line) == 0 {
		return true, false
	}
	c := line[0]
	switch c {
	case ' ', '\t', '\r', '\n':
		return true, false
	}
	return false, false
}
