package message

import (
	"strconv"
	"strings"
)

// nextSibling returns the node after i in its parent multipart, or -1.
func (m *Message) nextSibling(i int) int {
	p := m.nodes[i].parent
	if p < 0 || m.nodes[p].kind != kindMultipart {
		return -1
	}
	l := m.nodes[p].children
	for j, c := range l {
		if c == i && j+1 < len(l) {
			return l[j+1]
		}
	}
	return -1
}

func (m *Message) firstChild(i int) int {
	if n := &m.nodes[i]; n.kind == kindMultipart && len(n.children) > 0 {
		return n.children[0]
	}
	return -1
}

// walk returns the body parts in order of traversal. It starts at the first
// part of the top-level multipart; a message that isn't a multipart has no
// body parts.
//
// Multiparts are entered through an explicit stack of ancestors. Each part
// that isn't an entered multipart is visited. After visiting, ancestors are
// popped while the current node is the last in its parent. A message/rfc822
// part whose message is a multipart with parts is then entered, its parts
// replacing the remaining siblings of the part. Otherwise, traversal continues
// with the next sibling.
func (m *Message) walk() []int {
	var parts []int
	var stack []int
	cur := m.firstChild(0)
	for cur >= 0 {
		for cur >= 0 && m.firstChild(cur) >= 0 {
			stack = append(stack, cur)
			cur = m.firstChild(cur)
		}
		parts = append(parts, cur)
		for m.nextSibling(cur) < 0 && len(stack) > 0 {
			cur = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
		}
		if n := &m.nodes[cur]; n.kind == kindMessage && m.firstChild(n.embedded) >= 0 {
			cur = m.firstChild(n.embedded)
		} else {
			cur = m.nextSibling(cur)
		}
	}
	return parts
}

// NumBodyParts returns the number of body parts, see BodyPart.
func (m *Message) NumBodyParts() int {
	return len(m.walk())
}

// BodyPart returns the body part with index i in traversal order. Parts
// inside multiparts and inside multipart messages attached as message/rfc822
// are included, the multiparts themselves are not. The bool is false if there
// is no such part.
func (m *Message) BodyPart(i int) (BodyPart, bool) {
	l := m.walk()
	if i < 0 || i >= len(l) {
		return BodyPart{}, false
	}
	return m.bodyPart(l[i]), true
}

// BodyParts returns all body parts in traversal order.
func (m *Message) BodyParts() []BodyPart {
	var r []BodyPart
	for _, i := range m.walk() {
		r = append(r, m.bodyPart(i))
	}
	return r
}

// FindPartID returns the part with the dotted part id, such as "2.1".
func (m *Message) FindPartID(id string) (BodyPart, bool) {
	for _, i := range m.walk() {
		if m.partID(i) == id {
			return m.bodyPart(i), true
		}
	}
	return BodyPart{}, false
}

// FindPart returns the index of the first part with the media type, or -1.
// An empty subtype matches any subtype.
func (m *Message) FindPart(typ, subtype string) int {
	for j, i := range m.walk() {
		t, st := m.nodeType(i)
		if strings.EqualFold(t, typ) && (subtype == "" || strings.EqualFold(st, subtype)) {
			return j
		}
	}
	return -1
}

// PartNumber returns the index of a part returned by BodyPart, or -1 if the
// part is no longer present.
func (m *Message) PartNumber(bp BodyPart) int {
	if !bp.valid {
		return -1
	}
	for j, i := range m.walk() {
		if i == bp.node {
			return j
		}
	}
	return -1
}

// partID returns the dotted path of node i, like IMAP part specifiers. A
// message/rfc822 part and the message it holds share the same path.
func (m *Message) partID(i int) string {
	var l []string
	for ; i >= 0; i = m.nodes[i].parent {
		p := m.nodes[i].parent
		if p < 0 || m.nodes[p].kind != kindMultipart {
			continue
		}
		for j, c := range m.nodes[p].children {
			if c == i {
				l = append(l, strconv.Itoa(j+1))
				break
			}
		}
	}
	for a, b := 0, len(l)-1; a < b; a, b = a+1, b-1 {
		l[a], l[b] = l[b], l[a]
	}
	return strings.Join(l, ".")
}
