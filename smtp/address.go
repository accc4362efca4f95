// Package smtp has the email address type used for comparing and normalizing
// addresses found in message headers.
package smtp

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/mjl-/mimeengine/dns"
)

var ErrBadAddress = errors.New("invalid email address")

// Localpart is the part of an address before the "@", unquoted and unescaped.
// It can be empty when it came from a quoted string.
type Localpart string

// String returns the localpart as it is written in an address, as dot-atom when
// possible, as quoted-string otherwise. ../rfc/5322:1187
func (lp Localpart) String() string {
	if isDotAtom(string(lp)) {
		return string(lp)
	}
	var b strings.Builder
	b.WriteByte('"')
	for _, c := range lp {
		if c == '"' || c == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	b.WriteByte('"')
	return b.String()
}

func isDotAtom(s string) bool {
	if s == "" {
		return false
	}
	for _, atom := range strings.Split(s, ".") {
		if atom == "" {
			return false
		}
		for _, c := range atom {
			if !isAtext(c) {
				return false
			}
		}
	}
	return true
}

// ../rfc/5322:679 with utf-8 from ../rfc/6532:176
func isAtext(c rune) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c > 0x7f || strings.ContainsRune("!#$%&'*+-/=?^_`{|}~", c)
}

// Address is a parsed email address.
type Address struct {
	Localpart Localpart
	Domain    dns.Domain
}

func (a Address) IsZero() bool {
	return a == Address{}
}

// Pack returns the address as it is written in a header. With utf8 false, the
// domain is in its ASCII form. A non-ASCII localpart is returned as is.
func (a Address) Pack(utf8 bool) string {
	if a.IsZero() {
		return ""
	}
	return a.Localpart.String() + "@" + a.Domain.XName(utf8)
}

// String returns the address with unicode domain, for display.
func (a Address) String() string {
	return a.Pack(true)
}

// Equal compares the localparts case-insensitively and the ASCII domains.
func (a Address) Equal(o Address) bool {
	return strings.EqualFold(string(a.Localpart), string(o.Localpart)) && a.Domain.ASCII == o.Domain.ASCII
}

// ParseAddress parses an address of the form localpart@domain, as found in
// angle brackets in headers. UTF-8 is allowed. Errors wrap ErrBadAddress.
func ParseAddress(s string) (Address, error) {
	return parseAddress(s, dns.ParseDomain)
}

// ParseNetMailAddress is like ParseAddress, but parses the domain leniently,
// for addresses returned by net/mail. Message headers often have domains with
// underscores.
func ParseNetMailAddress(s string) (Address, error) {
	return parseAddress(s, dns.ParseDomainLax)
}

func parseAddress(s string, parseDomain func(string) (dns.Domain, error)) (Address, error) {
	lp, rest, err := parseLocalpart(s)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	rest, ok := strings.CutPrefix(rest, "@")
	if !ok {
		return Address{}, fmt.Errorf("%w: expected @ after localpart", ErrBadAddress)
	}
	d, err := parseDomain(rest)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %v", ErrBadAddress, err)
	}
	return Address{lp, d}, nil
}

// parseLocalpart parses a dot-atom or quoted-string at the start of s and
// returns the remainder. ../rfc/5321:2316
func parseLocalpart(s string) (Localpart, string, error) {
	var lp, rest string
	if strings.HasPrefix(s, `"`) {
		var b strings.Builder
		var esc bool
		i := 1
	Quoted:
		for {
			if i >= len(s) {
				return "", "", errors.New("unterminated quoted string")
			}
			c, size := utf8.DecodeRuneInString(s[i:])
			if c == utf8.RuneError && size == 1 {
				return "", "", errors.New("invalid utf-8 in quoted string")
			}
			i += size
			switch {
			case esc:
				if c < ' ' || c >= 0x7f {
					return "", "", fmt.Errorf("bad escaped character %q", c)
				}
				b.WriteRune(c)
				esc = false
			case c == '\\':
				esc = true
			case c == '"':
				break Quoted
			case c >= ' ' && c != 0x7f:
				b.WriteRune(c)
			default:
				return "", "", fmt.Errorf("control character %q in quoted string", c)
			}
		}
		lp, rest = b.String(), s[i:]
	} else {
		end := strings.IndexFunc(s, func(c rune) bool { return c != '.' && !isAtext(c) })
		if end < 0 {
			end = len(s)
		}
		lp, rest = s[:end], s[end:]
		if !isDotAtom(lp) {
			return "", "", fmt.Errorf("invalid localpart %q", lp)
		}
	}
	// Generated addresses in the wild exceed the 64 octet limit.
	if len(lp) > 128 {
		return "", "", errors.New("localpart longer than 128 octets")
	}
	return Localpart(lp), rest, nil
}
