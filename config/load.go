package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mjl-/sconf"

	"github.com/mjl-/mimeengine/dns"
	"github.com/mjl-/mimeengine/mdn"
	"github.com/mjl-/mimeengine/message"
	"github.com/mjl-/mimeengine/mlog"
	"github.com/mjl-/mimeengine/smtp"
)

// ParseFile parses the configuration file at path p, and prepares it for use.
// A relative DataDir is made relative to the directory of p.
func ParseFile(p string) (*Config, []error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, []error{fmt.Errorf("open config file: %v", err)}
	}
	defer f.Close()
	c, errs := Parse(f)
	if len(errs) > 0 {
		return nil, errs
	}
	if !filepath.IsAbs(c.DataDir) {
		c.DataDir = filepath.Join(filepath.Dir(p), c.DataDir)
	}
	return c, nil
}

// Parse parses a configuration, checks it and fills in defaults. All problems
// found are returned.
func Parse(r io.Reader) (*Config, []error) {
	c := &Config{}
	if err := sconf.Parse(r, &c.Static); err != nil {
		return nil, []error{fmt.Errorf("parsing config: %v", err)}
	}
	if errs := c.prepare(); len(errs) > 0 {
		return nil, errs
	}
	return c, nil
}

func (c *Config) prepare() (errs []error) {
	addErrorf := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	s := &c.Static
	if s.DataDir == "" {
		s.DataDir = "data"
	}

	if s.LogLevel == "" {
		s.LogLevel = "error"
	}
	if level, ok := mlog.Levels[s.LogLevel]; ok {
		s.Log = map[string]slog.Level{"": level}
	} else {
		addErrorf("invalid log level %q", s.LogLevel)
	}
	for pkg, v := range s.PackageLogLevels {
		if level, ok := mlog.Levels[v]; ok && s.Log != nil {
			s.Log[pkg] = level
		} else {
			addErrorf("invalid package log level %q", v)
		}
	}

	if s.Hostname == "" {
		s.Hostname = "localhost"
	}
	if d, err := dns.ParseDomain(s.Hostname); err != nil {
		addErrorf("parsing hostname %q: %v", s.Hostname, err)
	} else {
		s.HostnameDomain = d
	}

	mc := message.DefaultConfig()
	mc.Hostname = s.HostnameDomain.ASCII
	if s.UserAgent != "" {
		mc.UserAgent = s.UserAgent
	}
	for _, cs := range s.PreferredCharsets {
		if _, ok := message.EncodeCharset(cs, ""); !ok {
			addErrorf("unknown charset %q in preferred charsets", cs)
		}
	}
	if len(s.PreferredCharsets) > 0 {
		mc.PreferredCharsets = s.PreferredCharsets
	}
	mc.RFC2047Only = s.RFC2047Only
	checkRegexps := func(what string, l []string) {
		for _, e := range l {
			if _, err := regexp.Compile(e); err != nil {
				addErrorf("parsing %s prefix %q: %v", what, e, err)
			}
		}
	}
	checkRegexps("reply", s.Prefixes.Reply)
	checkRegexps("forward", s.Prefixes.Forward)
	if len(s.Prefixes.Reply) > 0 {
		mc.ReplyPrefixes = s.Prefixes.Reply
	}
	if len(s.Prefixes.Forward) > 0 {
		mc.ForwardPrefixes = s.Prefixes.Forward
	}
	mc.ReplaceReplyPrefix = !s.Prefixes.KeepReplyPrefix
	mc.ReplaceForwardPrefix = !s.Prefixes.KeepForwardPrefix
	if s.QuotePrefix != "" {
		mc.QuotePrefix = s.QuotePrefix
	}
	for _, mt := range s.StripWhenInlineForwarding {
		if t, st, ok := strings.Cut(mt, "/"); !ok || t == "" || st == "" {
			addErrorf("invalid media type %q in strip when inline forwarding", mt)
		}
	}
	mc.StripWhenInlineForwarding = s.StripWhenInlineForwarding
	c.Message = mc

	c.MDN = mdn.Config{ReportingUA: s.HostnameDomain.ASCII}
	if s.MDN.Policy != "" {
		if p, ok := mdn.ParsePolicy(s.MDN.Policy); ok {
			c.MDN.Policy = p
		} else {
			addErrorf("unknown mdn policy %q", s.MDN.Policy)
		}
	}
	switch strings.ToLower(s.MDN.QuoteMessage) {
	case "", "nothing":
		c.MDN.QuoteMessage = mdn.QuoteNothing
	case "full":
		c.MDN.QuoteMessage = mdn.QuoteFull
	case "headers":
		c.MDN.QuoteMessage = mdn.QuoteHeaders
	default:
		addErrorf("unknown mdn quote message %q", s.MDN.QuoteMessage)
	}

	c.ownAddresses = map[string]bool{}
	addOwn := func(what, addr string) {
		a, err := smtp.ParseAddress(addr)
		if err != nil {
			addErrorf("parsing %s address %q: %v", what, addr, err)
			return
		}
		c.ownAddresses[strings.ToLower(a.Pack(false))] = true
	}
	uoids := map[uint32]string{}
	var ndefault int
	for name, id := range s.Identities {
		if id.UOID == 0 {
			addErrorf("identity %q: uoid must be non-zero", name)
		} else if other, ok := uoids[id.UOID]; ok {
			addErrorf("identity %q: uoid %d also used by identity %q", name, id.UOID, other)
		}
		uoids[id.UOID] = name
		if id.Default {
			ndefault++
		}
		addOwn("identity "+name, id.Email)
		c.identities = append(c.identities, message.Identity{
			UOID:         id.UOID,
			Name:         name,
			FullName:     id.FullName,
			Email:        id.Email,
			ReplyTo:      id.ReplyTo,
			Bcc:          id.Bcc,
			Organization: id.Organization,
			Transport:    id.Transport,
			Default:      id.Default,
		})
	}
	if ndefault != 1 {
		addErrorf("need exactly one default identity, found %d", ndefault)
	}
	sort.Slice(c.identities, func(i, j int) bool {
		return c.identities[i].UOID < c.identities[j].UOID
	})
	for _, addr := range s.ExtraAddresses {
		addOwn("extra", addr)
	}
	return errs
}

// Identities returns the configured identities, ordered by UOID.
func (c *Config) Identities() []message.Identity {
	return append([]message.Identity(nil), c.identities...)
}

// IdentityForUOIDOrDefault returns the identity with uoid, or the default
// identity if there is no such identity.
func (c *Config) IdentityForUOIDOrDefault(uoid uint32) message.Identity {
	var def message.Identity
	for _, id := range c.identities {
		if id.UOID == uoid && uoid != 0 {
			return id
		}
		if id.Default {
			def = id
		}
	}
	return def
}

// IsMyAddress returns whether addr is an address of an identity or one of
// the extra addresses. Comparison is case-insensitive.
func (c *Config) IsMyAddress(addr string) bool {
	a, err := smtp.ParseAddress(addr)
	if err != nil {
		return c.ownAddresses[strings.ToLower(addr)]
	}
	return c.ownAddresses[strings.ToLower(a.Pack(false))]
}
