package message

import (
	"strconv"
	"strings"
)

// Identity is a sending identity of the user: a name and address, and
// settings applied to messages sent as this identity.
type Identity struct {
	UOID         uint32 // Unique id, referenced from X-KMail-Identity.
	Name         string // Name of the identity itself, not shown in messages.
	FullName     string
	Email        string
	ReplyTo      string
	Bcc          string
	Organization string
	Transport    string
	Default      bool
}

// FullEmailAddr returns the name and address in header form, or just the
// address if there is no name.
func (id Identity) FullEmailAddr() string {
	if id.Email == "" {
		return ""
	}
	if id.FullName == "" {
		return id.Email
	}
	return formatAddress(id.FullName, id.Email, "utf-8", true)
}

// Identities resolves identities and tells whether an address belongs to the
// user.
type Identities interface {
	IdentityForUOIDOrDefault(uoid uint32) Identity
	IsMyAddress(addr string) bool
}

// IdentityUOID returns the identity the message was composed with or
// received for, from the X-KMail-Identity header. Zero means the default.
func (m *Message) IdentityUOID() uint32 {
	s := strings.TrimSpace(m.HeaderField("X-KMail-Identity", Raw))
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint32(v)
}

// ApplyIdentity sets the headers determined by the identity.
func (m *Message) ApplyIdentity(id Identity) {
	m.SetFrom(id.FullEmailAddr())
	m.SetReplyTo(id.ReplyTo)
	m.SetBcc(id.Bcc)
	m.SetHeaderField("Organization", id.Organization, Unstructured, false)
	if id.Default {
		m.RemoveHeaderField("X-KMail-Identity")
	} else {
		m.SetHeaderField("X-KMail-Identity", strconv.FormatUint(uint64(id.UOID), 10), Structured, false)
	}
	m.SetHeaderField("X-KMail-Transport", id.Transport, Unstructured, false)
}

// InitHeader initializes the header of a new message for the identity.
func (m *Message) InitHeader(id Identity) {
	m.ApplyIdentity(id)
	m.SetTo("")
	m.SetSubject("")
	m.SetDateToday()
	m.SetHeaderField("User-Agent", m.conf.UserAgent, Unstructured, false)
	m.SetHeaderField("Content-Type", "text/plain", Structured, false)
}

// InitFromMessage initializes the header of a message derived from orig,
// with the identity orig was received for. If idHeaders is false, only the
// identity reference is set.
func (m *Message) InitFromMessage(ids Identities, orig *Message, idHeaders bool) {
	uoid := orig.IdentityUOID()
	if idHeaders {
		m.InitHeader(ids.IdentityForUOIDOrDefault(uoid))
	} else {
		m.SetHeaderField("X-KMail-Identity", strconv.FormatUint(uint64(uoid), 10), Structured, false)
	}
	if t := orig.HeaderField("X-KMail-Transport", Raw); t != "" {
		m.SetHeaderField("X-KMail-Transport", t, Unstructured, false)
	}
}
