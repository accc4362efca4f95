package message

import (
	"mime"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/mjl-/mimeengine/smtp"
)

// Address is an entry of an address list header.
type Address struct {
	Name string       // Display name, decoded.
	Addr smtp.Address // Zero if the entry could not be parsed, e.g. a group.
	Raw  string       // The entry as found, for entries that could not be parsed.
}

// Email returns the address with ASCII domain, or the raw entry if it could
// not be parsed.
func (a Address) Email() string {
	if a.Addr.IsZero() {
		return a.Raw
	}
	return a.Addr.Pack(false)
}

// String returns the address for display, with unicode domain and decoded
// name.
func (a Address) String() string {
	if a.Addr.IsZero() {
		return a.Raw
	}
	return formatAddress(a.Name, a.Addr.String(), "", false)
}

// Header returns the address as it goes into a header, with ASCII domain and
// the name encoded in charset cs if needed.
func (a Address) Header(cs string) string {
	if a.Addr.IsZero() {
		return a.Raw
	}
	return formatAddress(a.Name, a.Addr.Pack(false), cs, true)
}

// Equal returns whether both entries refer to the same address. Entries that
// could not be parsed are compared case-insensitively on their raw form.
func (a Address) Equal(o Address) bool {
	if a.Addr.IsZero() || o.Addr.IsZero() {
		return strings.EqualFold(a.Email(), o.Email())
	}
	return a.Addr.Equal(o.Addr)
}

// ParseAddressList parses an address list header value. Parsing is
// lenient: entries that cannot be parsed are returned with only Raw set.
func ParseAddressList(s string) []Address {
	var r []Address
	for _, e := range splitAddressList(s) {
		r = append(r, parseAddress(e))
	}
	return r
}

func parseAddress(s string) Address {
	parser := mail.AddressParser{WordDecoder: &wordDecoder}
	if a, err := parser.Parse(s); err == nil {
		if addr, err := smtp.ParseNetMailAddress(a.Address); err == nil {
			return Address{Name: a.Name, Addr: addr}
		}
	}

	// Try harder, net/mail rejects many forms found in the wild.
	name, email := s, s
	if i := strings.LastIndex(s, "<"); i >= 0 {
		if j := strings.Index(s[i:], ">"); j > 0 {
			name = strings.TrimSpace(s[:i])
			email = strings.TrimSpace(s[i+1 : i+j])
		}
	} else {
		name = ""
	}
	if len(name) >= 2 && name[0] == '"' && name[len(name)-1] == '"' {
		name = strings.ReplaceAll(name[1:len(name)-1], `\"`, `"`)
	}
	addr, err := smtp.ParseNetMailAddress(email)
	if err != nil {
		return Address{Raw: strings.TrimSpace(s)}
	}
	return Address{Name: decodeHeaderValue(name, "utf-8"), Addr: addr}
}

// splitAddressList splits at commas outside quoted strings, comments and
// angle brackets. Empty entries are skipped.
func splitAddressList(s string) []string {
	var l []string
	var quoted, escaped, angle bool
	var comment int
	start := 0
	for i, c := range s {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && (quoted || comment > 0):
			escaped = true
		case c == '"' && comment == 0:
			quoted = !quoted
		case quoted:
		case c == '(':
			comment++
		case c == ')' && comment > 0:
			comment--
		case comment > 0:
		case c == '<':
			angle = true
		case c == '>':
			angle = false
		case c == ',' && !angle:
			if e := strings.TrimSpace(s[start:i]); e != "" {
				l = append(l, e)
			}
			start = i + 1
		}
	}
	if e := strings.TrimSpace(s[start:]); e != "" {
		l = append(l, e)
	}
	return l
}

// formatAddress returns "name <email>", quoting the name if needed. If
// encode is set, a non-ASCII name is RFC 2047 encoded in charset cs.
func formatAddress(name, email, cs string, encode bool) string {
	if name == "" {
		return email
	}
	const specials = `()<>[]:;@\,."`
	if encode && !isASCII(name) {
		if cs == "" {
			cs = "utf-8"
		}
		buf, ok := EncodeCharset(cs, name)
		if !ok {
			cs, buf = "utf-8", []byte(name)
		}
		if strings.ContainsAny(name, specials) {
			name = mime.BEncoding.Encode(cs, string(buf))
		} else if s, err := encodeWords(name, cs); err == nil {
			name = s
		}
	} else if strings.ContainsAny(name, specials) || strings.TrimSpace(name) != name {
		name = `"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name) + `"`
	}
	return name + " <" + email + ">"
}

// FormatAddressList returns the header form of the addresses, with ASCII
// domains and names encoded in charset cs.
func FormatAddressList(l []Address, cs string) string {
	var r []string
	for _, a := range l {
		if s := a.Header(cs); s != "" {
			r = append(r, s)
		}
	}
	return strings.Join(r, ", ")
}

// normalizeAddressList returns the address list value with IDNA-encoded
// domains and RFC 2047 encoded names.
func normalizeAddressList(v, cs string) string {
	return FormatAddressList(ParseAddressList(v), cs)
}

// decodeAddressList returns the address list value for display.
func decodeAddressList(v, cs string) string {
	if !utf8.ValidString(v) {
		v = DecodeCharset(cs, []byte(v))
	}
	var r []string
	for _, a := range ParseAddressList(v) {
		if a.Addr.IsZero() {
			r = append(r, a.Raw)
		} else {
			r = append(r, a.String())
		}
	}
	return strings.Join(r, ", ")
}

// StripAddress returns the addresses in l that are not equal to a.
func StripAddress(a Address, l []Address) []Address {
	var r []Address
	for _, e := range l {
		if !e.Equal(a) {
			r = append(r, e)
		}
	}
	return r
}

// ContainsAddress returns whether l contains an address equal to a.
func ContainsAddress(a Address, l []Address) bool {
	for _, e := range l {
		if e.Equal(a) {
			return true
		}
	}
	return false
}
