package message

import (
	cryptorand "crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/mjl-/mimeengine/dns"
	"github.com/mjl-/mimeengine/smtp"
)

var errBadMessageID = errors.New("not a message-id")

// MessageIDCanonical returns the message-id s in the form used to match
// messages in a thread: without angle brackets, lower case, with the localpart
// unquoted where possible. Text after the closing bracket, such as a comment,
// is ignored. Ids without brackets are an error. Many ids are not of the form
// localpart@domain: they are returned as is with the bool set. ../rfc/5322:1383
func MessageIDCanonical(s string) (string, bool, error) {
	v, ok := strings.CutPrefix(strings.TrimSpace(s), "<")
	if !ok {
		return "", false, fmt.Errorf("%w: missing <", errBadMessageID)
	}
	v, rest, ok := strings.Cut(v, ">")
	if !ok || rest != "" && rest[0] != ' ' {
		return "", false, fmt.Errorf("%w: missing >", errBadMessageID)
	} else if v == "" {
		return "", false, fmt.Errorf("%w: empty message-id", errBadMessageID)
	}
	v = strings.ToLower(v)
	addr, err := smtp.ParseAddress(v)
	if err != nil {
		return v, true, nil
	}
	// Keep the domain as written, unicode or not.
	dom := v[strings.LastIndexByte(v, '@')+1:]
	return addr.Localpart.String() + "@" + dom, false, nil
}

// GenerateMessageID returns a new random message-id with angle brackets, for
// the domain of addr, or for hostname if addr has no valid domain.
func GenerateMessageID(addr, hostname string) string {
	host := hostname
	if _, dom, ok := strings.Cut(addr, "@"); ok {
		dom = strings.TrimRight(strings.TrimSpace(dom), ">")
		if d, err := dns.ParseDomainLax(dom); err == nil {
			host = d.ASCII
		}
	}
	if host == "" {
		host = "localhost"
	}
	buf := make([]byte, 16)
	cryptorand.Read(buf)
	return "<" + base64.RawURLEncoding.EncodeToString(buf) + "@" + host + ">"
}
