package config

import (
	"log/slog"

	"github.com/mjl-/mimeengine/dns"
	"github.com/mjl-/mimeengine/mdn"
	"github.com/mjl-/mimeengine/message"
)

// Static is the parsed form of the mimeengine.conf configuration file.
type Static struct {
	DataDir          string            `sconf:"optional" sconf-doc:"NOTE: This config file is in 'sconf' format. Indent with tabs. Comments must be on their own line, they don't end a line. Do not escape or quote strings. Details: https://pkg.go.dev/github.com/mjl-/sconf.\n\n\nDirectory where the message store is kept. If this is a relative path, it is relative to the directory of mimeengine.conf. Default: data."`
	LogLevel         string            `sconf:"optional" sconf-doc:"Default log level, one of: error, info, debug, trace. Default: error."`
	PackageLogLevels map[string]string `sconf:"optional" sconf-doc:"Overrides of log level per package (e.g. message, respond, mdn, store)."`
	Hostname         string            `sconf:"optional" sconf-doc:"Hostname for generated Message-IDs of messages without sender address, and for the Reporting-UA field of disposition notifications. Default: localhost."`
	HostnameDomain   dns.Domain        `sconf:"-" json:"-"` // Parsed form of hostname.
	UserAgent        string            `sconf:"optional" sconf-doc:"Value of the User-Agent header in new messages. Default: mimeengine."`

	PreferredCharsets []string `sconf:"optional" sconf-doc:"Charsets to try in order when encoding non-ASCII text. If none can represent the text, utf-8 is used. Default: us-ascii, iso-8859-1, utf-8."`
	RFC2047Only       bool     `sconf:"optional" sconf-doc:"Encode non-ASCII attachment names only with RFC 2047 encoded-words, not also with RFC 2231 parameters. For recipients with mail software that doesn't understand RFC 2231."`

	Prefixes struct {
		Reply             []string `sconf:"optional" sconf-doc:"Regular expressions for reply subject prefixes, matched case-insensitively. Default: Re\\s*:, Re\\[\\d+\\]:, Re\\d+:."`
		Forward           []string `sconf:"optional" sconf-doc:"Regular expressions for forward subject prefixes. Default: Fwd:, FW:."`
		KeepReplyPrefix   bool     `sconf:"optional" sconf-doc:"Keep a recognized reply prefix instead of replacing it with Re:."`
		KeepForwardPrefix bool     `sconf:"optional" sconf-doc:"Keep a recognized forward prefix instead of replacing it with Fwd:."`
	} `sconf:"optional" sconf-doc:"Subject prefixes for replies and forwards."`

	QuotePrefix               string   `sconf:"optional" sconf-doc:"Prefix for quoted lines in replies. Default: \"> \"."`
	StripWhenInlineForwarding []string `sconf:"optional" sconf-doc:"Media types of parts removed when forwarding inline, e.g. application/pgp-signature."`

	MDN struct {
		Policy       string `sconf:"optional" sconf-doc:"Reaction to requests for disposition notifications: ignore, ask, deny or send. Default: ignore."`
		QuoteMessage string `sconf:"optional" sconf-doc:"What to include of the original message in notifications: nothing, full or headers. Default: nothing."`
	} `sconf:"optional" sconf-doc:"Message disposition notifications (read receipts)."`

	Identities     map[string]Identity `sconf-doc:"Identities messages are composed with. The key is the name of the identity. Exactly one identity must be the default."`
	ExtraAddresses []string            `sconf:"optional" sconf-doc:"Additional addresses of the user. Like identity addresses, they are left out of reply recipients."`

	// Parsed log levels, from LogLevel and PackageLogLevels.
	Log map[string]slog.Level `sconf:"-" json:"-"`
}

// Identity is a sender identity.
type Identity struct {
	UOID         uint32 `sconf-doc:"Unique number, referenced by X-KMail-Identity header fields of stored messages."`
	FullName     string `sconf:"optional" sconf-doc:"Display name in the From header."`
	Email        string `sconf-doc:"Email address."`
	ReplyTo      string `sconf:"optional" sconf-doc:"Reply-To header for messages with this identity."`
	Bcc          string `sconf:"optional" sconf-doc:"Addresses to always send a blind copy to."`
	Organization string `sconf:"optional"`
	Transport    string `sconf:"optional" sconf-doc:"Name of transport to send messages with, set in X-KMail-Transport."`
	Default      bool   `sconf:"optional"`
}

// Config is a loaded configuration, with the forms used by the packages. It
// implements message.Identities.
type Config struct {
	Static

	Message *message.Config
	MDN     mdn.Config

	identities   []message.Identity // Sorted by UOID.
	ownAddresses map[string]bool    // Lower case.
}

var _ message.Identities = (*Config)(nil)
