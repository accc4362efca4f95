package message

import (
	"log/slog"
	"regexp"
	"strings"
)

// Config holds the settings that influence parsing, composing and deriving
// messages. A Config is created once, typically from a configuration file,
// and passed to every message. It must not be changed while in use.
type Config struct {
	// Charsets tried in order when encoding non-ASCII text. The charset of
	// the message itself is tried first. If none can represent the text,
	// utf-8 is used.
	PreferredCharsets []string

	// Regular expressions matching subject prefixes, case-insensitive, e.g.
	// `Re\s*:`.
	ReplyPrefixes   []string
	ForwardPrefixes []string

	// Whether recognized prefixes are replaced by the canonical "Re:" and
	// "Fwd:" prefix.
	ReplaceReplyPrefix   bool
	ReplaceForwardPrefix bool

	// Only use RFC 2047 encoded-words for non-ASCII name and filename
	// parameters, for compatibility with software that doesn't understand
	// RFC 2231.
	RFC2047Only bool

	// MIME types of parts removed when forwarding inline, e.g.
	// "application/pgp-signature".
	StripWhenInlineForwarding []string

	// Value of X-KMail-QuotePrefix in replies.
	QuotePrefix string

	// Hostname used in generated Message-IDs when no address is available.
	Hostname string

	// Value of the User-Agent header for new messages.
	UserAgent string

	// Logger for diagnostics. If nil, the default mlog handler is used.
	Log *slog.Logger
}

// DefaultConfig returns a configuration with the traditional defaults.
func DefaultConfig() *Config {
	return &Config{
		PreferredCharsets:    []string{"us-ascii", "iso-8859-1", "utf-8"},
		ReplyPrefixes:        []string{`Re\s*:`, `Re\[\d+\]:`, `Re\d+:`},
		ForwardPrefixes:      []string{`Fwd:`, `FW:`},
		ReplaceReplyPrefix:   true,
		ReplaceForwardPrefix: true,
		QuotePrefix:          "> ",
		Hostname:             "localhost",
		UserAgent:            "mimeengine",
	}
}

// prefixRegexp compiles the combined regular expression matching any number of
// the prefixes (and whitespace) at the start of a subject.
func prefixRegexp(prefixes []string) *regexp.Regexp {
	if len(prefixes) == 0 {
		return nil
	}
	s := `(?i)^(?:\s+|(?:` + strings.Join(prefixes, `)|(?:`) + `))+\s*`
	rx, err := regexp.Compile(s)
	if err != nil {
		return nil
	}
	return rx
}
