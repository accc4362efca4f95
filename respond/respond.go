// Package respond creates messages derived from existing messages: replies,
// forwards, redirects and digests.
//
// Bodies of replies and forwards are filled in by a Templater. QuoteTemplater
// is used when none is configured.
package respond

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/mlog"
)

var (
	ErrIncomplete  = errors.New("message is not complete")
	ErrNoMessages  = errors.New("no messages")
	ErrNoRecipient = errors.New("no recipient")
)

// Strategy selects the recipients of a reply.
type Strategy int

const (
	// Smart replies to Mail-Followup-To, Reply-To, the mailing list or the
	// author, whichever is present first.
	Smart Strategy = iota

	// Author replies to the author only, never to a mailing list.
	Author

	// List replies to the mailing list, falling back to Reply-To.
	List

	// All replies to the author or list, with all other recipients in Cc.
	All

	// None leaves the recipients for the caller to set.
	None
)

func (s Strategy) String() string {
	switch s {
	case Smart:
		return "smart"
	case Author:
		return "author"
	case List:
		return "list"
	case All:
		return "all"
	case None:
		return "none"
	}
	return "unknown"
}

// ParseStrategy parses the name returned by Strategy.String.
func ParseStrategy(s string) (Strategy, bool) {
	for _, st := range []Strategy{Smart, Author, List, All, None} {
		if strings.EqualFold(s, st.String()) {
			return st, true
		}
	}
	return Smart, false
}

// Engine creates derived messages. Conf and Identities are required.
type Engine struct {
	Conf       *message.Config
	Identities message.Identities
	Templater  Templater // If nil, QuoteTemplater is used.

	log mlog.Log
}

// NewEngine returns an engine. If tmpl is nil, a QuoteTemplater is used.
func NewEngine(conf *message.Config, ids message.Identities, tmpl Templater) *Engine {
	if conf == nil {
		conf = message.DefaultConfig()
	}
	if tmpl == nil {
		tmpl = QuoteTemplater{}
	}
	return &Engine{
		Conf:       conf,
		Identities: ids,
		Templater:  tmpl,
		log:        mlog.New("respond", conf.Log),
	}
}

func (e *Engine) templater() Templater {
	if e.Templater == nil {
		return QuoteTemplater{}
	}
	return e.Templater
}

// newFrom returns a new message with the header initialized for the identity
// orig was received for.
func (e *Engine) newFrom(orig *message.Message) *message.Message {
	m := message.New(e.Conf)
	m.InitFromMessage(e.Identities, orig, true)
	return m
}

// identity returns the identity for orig.
func (e *Engine) identity(orig *message.Message) message.Identity {
	return e.Identities.IdentityForUOIDOrDefault(orig.IdentityUOID())
}

// stripMyAddresses returns l without the addresses of the user.
func (e *Engine) stripMyAddresses(l []message.Address) []message.Address {
	var r []message.Address
	for _, a := range l {
		if a.Addr.IsZero() || !e.Identities.IsMyAddress(a.Email()) {
			r = append(r, a)
		} else {
			e.log.Debug("removing own address from recipients", slog.String("address", a.Email()))
		}
	}
	return r
}
