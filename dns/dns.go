// Package dns parses domain names of email addresses, with internationalized
// (IDNA) domains converted between their unicode and ASCII forms.
package dns

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/idna"
)

var (
	errTrailingDot = errors.New("dns name has trailing dot")
	errEmpty       = errors.New("empty dns name")
	errIDNA        = errors.New("idna")
)

// Domain is a lower-case domain name. Headers of outgoing messages get the
// ASCII form, display uses the unicode form.
type Domain struct {
	ASCII   string // With A-labels (xn--...) for IDNA names.
	Unicode string // With U-labels, empty for ASCII-only names.
}

// XName returns the unicode name if utf8 is set and the domain has one, the
// ASCII name otherwise.
func (d Domain) XName(utf8 bool) string {
	if utf8 && d.Unicode != "" {
		return d.Unicode
	}
	return d.ASCII
}

func (d Domain) IsZero() bool {
	return d == Domain{}
}

// ParseDomain parses a domain name given in either ASCII or unicode form,
// using the IDNA lookup profile.
func ParseDomain(s string) (Domain, error) {
	switch {
	case s == "":
		return Domain{}, errEmpty
	case strings.HasSuffix(s, "."):
		return Domain{}, errTrailingDot
	}
	ascii, err := idna.Lookup.ToASCII(s)
	if err != nil {
		return Domain{}, fmt.Errorf("%w: to ascii: %v", errIDNA, err)
	}
	d := Domain{ASCII: ascii}
	if unicode, err := idna.Lookup.ToUnicode(s); err != nil {
		return Domain{}, fmt.Errorf("%w: to unicode: %v", errIDNA, err)
	} else if unicode != ascii {
		d.Unicode = unicode
	}
	return d, nil
}

// ParseDomainLax is like ParseDomain, but accepts ASCII names that the lookup
// profile rejects, e.g. with underscores. They are common in headers.
func ParseDomainLax(s string) (Domain, error) {
	d, err := ParseDomain(s)
	if err == nil || !errors.Is(err, errIDNA) {
		return d, err
	}
	if strings.ContainsFunc(s, func(c rune) bool {
		return c >= 0x80 || c <= ' ' || strings.ContainsRune("@<>", c)
	}) {
		return Domain{}, err
	}
	return Domain{ASCII: strings.ToLower(s)}, nil
}
