package message

import (
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Any text inside these html elements (recursively) is ignored.
var ignoreAtoms = atomMap(
	atom.Dialog,
	atom.Head,
	atom.Map,
	atom.Math,
	atom.Script,
	atom.Style,
	atom.Svg,
	atom.Template,
)

// Inline elements don't force newlines at beginning & end of text in this element.
var inlineAtoms = atomMap(
	atom.A,
	atom.Abbr,
	atom.B,
	atom.Bdi,
	atom.Bdo,
	atom.Br, // Writes its own newline.
	atom.Cite,
	atom.Code,
	atom.Data,
	atom.Dfn,
	atom.Em,
	atom.I,
	atom.Kbd,
	atom.Mark,
	atom.Q,
	atom.S,
	atom.Samp,
	atom.Small,
	atom.Span,
	atom.Strong,
	atom.Sub,
	atom.Sup,
	atom.Time,
	atom.U,
	atom.Var,
	atom.Wbr,

	// We treat these specially, inserting a space after them instead of a newline.
	atom.Td,
	atom.Th,
)

func atomMap(l ...atom.Atom) map[atom.Atom]bool {
	m := map[atom.Atom]bool{}
	for _, a := range l {
		m[a] = true
	}
	return m
}

var regexpSpace = regexp.MustCompile(`[ \t]+`)                                                    // Replaced with single space.
var regexpNewline = regexp.MustCompile(`\n\n\n+`)                                                 // Replaced with two newlines.
var regexpZeroWidth = regexp.MustCompile("[\u00a0\u200b\u200c\u200d][\u00a0\u200b\u200c\u200d]+") // Removed, combinations don't make sense, generated.

// HTMLToText returns the text of an html document, for quoting html messages
// in replies and forwards. Blockquotes are turned into "> " quoted lines.
//
// The document is walked with an explicit stack, for deeply nested input.
func HTMLToText(s string) (string, error) {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return "", fmt.Errorf("parsing html: %v", err)
	}

	var b strings.Builder
	var ignoring, quoteLevel int
	var inlines []bool

	ends := func() bool {
		return strings.HasSuffix(b.String(), "\n\n")
	}

	type item struct {
		n    *html.Node
		exit bool
	}
	stack := []item{{doc, false}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n := it.n

		if it.exit {
			if n.DataAtom == atom.Blockquote {
				quoteLevel--
			}
			if ignoreAtoms[n.DataAtom] {
				ignoring--
			}
			inline := inlines[len(inlines)-1]
			inlines = inlines[:len(inlines)-1]
			if n.DataAtom == atom.Td || n.DataAtom == atom.Th {
				if !strings.HasSuffix(b.String(), " ") {
					b.WriteString(" ")
				}
			} else if !inline && !ends() {
				b.WriteString("\n")
			}
			continue
		}

		switch n.Type {
		case html.ElementNode:
			if ignoreAtoms[n.DataAtom] {
				ignoring++
			}
			if n.DataAtom == atom.Blockquote {
				quoteLevel++
			}
			inlines = append(inlines, inlineAtoms[n.DataAtom])
			if n.DataAtom == atom.Br {
				b.WriteString("\n")
			}
			stack = append(stack, item{n, true})

		case html.TextNode:
			if ignoring > 0 {
				continue
			}
			t := strings.ReplaceAll(n.Data, "\r", "")
			t = strings.ReplaceAll(t, "\t", " ")
			t = regexpSpace.ReplaceAllString(t, " ")
			t = regexpZeroWidth.ReplaceAllString(t, "")
			inline := len(inlines) > 0 && inlines[len(inlines)-1]
			if strings.TrimSpace(t) == "" && !inline {
				continue
			}
			if quoteLevel > 0 {
				q := strings.Repeat("> ", quoteLevel)
				var sb strings.Builder
				for _, line := range strings.SplitAfter(t, "\n") {
					if line != "" {
						sb.WriteString(q + line)
					}
				}
				t = sb.String()
			}
			b.WriteString(t)
			continue
		}
		// Ignored: CommentNode, DoctypeNode, RawNode. DocumentNode only has children.

		var children []*html.Node
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			children = append(children, c)
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, item{children[i], false})
		}
	}

	text := regexpNewline.ReplaceAllString(b.String(), "\n\n")
	var lines []string
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		lines = append(lines, strings.TrimRight(line, " "))
	}
	return strings.Join(lines, "\n"), nil
}
