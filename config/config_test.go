package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mjl-/mimeengine/mdn"
)

func tcompare(t *testing.T, got, exp any) {
	t.Helper()
	if !reflect.DeepEqual(got, exp) {
		t.Fatalf("got %v, expected %v", got, exp)
	}
}

const fullConf = `DataDir: /var/lib/mimeengine
LogLevel: info
PackageLogLevels:
	mdn: debug
Hostname: mox.example
PreferredCharsets:
	- us-ascii
	- iso-8859-15
	- utf-8
Prefixes:
	Reply:
		- Re\s*:
		- AW:
	KeepForwardPrefix: true
QuotePrefix: |
StripWhenInlineForwarding:
	- application/pgp-signature
MDN:
	Policy: ask
	QuoteMessage: headers
Identities:
	default:
		UOID: 1
		FullName: Mjl
		Email: mjl@mox.example
		Default: true
	work:
		UOID: 2
		FullName: Mjl at work
		Email: Mjl@Work.example
		Transport: smtp-work
ExtraAddresses:
	- mjl@old.example
`

func TestParse(t *testing.T) {
	c, errs := Parse(strings.NewReader(fullConf))
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}

	tcompare(t, c.Log, map[string]slog.Level{"": slog.LevelInfo, "mdn": slog.LevelDebug})
	tcompare(t, c.Message.Hostname, "mox.example")
	tcompare(t, c.Message.PreferredCharsets, []string{"us-ascii", "iso-8859-15", "utf-8"})
	tcompare(t, c.Message.ReplyPrefixes, []string{`Re\s*:`, "AW:"})
	tcompare(t, c.Message.ForwardPrefixes, []string{"Fwd:", "FW:"})
	tcompare(t, c.Message.ReplaceReplyPrefix, true)
	tcompare(t, c.Message.ReplaceForwardPrefix, false)
	tcompare(t, c.Message.QuotePrefix, "|")
	tcompare(t, c.Message.StripWhenInlineForwarding, []string{"application/pgp-signature"})
	tcompare(t, c.MDN, mdn.Config{Policy: mdn.Ask, QuoteMessage: mdn.QuoteHeaders, ReportingUA: "mox.example"})

	tcompare(t, len(c.Identities()), 2)
	tcompare(t, c.IdentityForUOIDOrDefault(2).Transport, "smtp-work")
	tcompare(t, c.IdentityForUOIDOrDefault(2).Name, "work")
	tcompare(t, c.IdentityForUOIDOrDefault(0).Email, "mjl@mox.example")
	tcompare(t, c.IdentityForUOIDOrDefault(99).Email, "mjl@mox.example")

	tcompare(t, c.IsMyAddress("MJL@mox.example"), true)
	tcompare(t, c.IsMyAddress("mjl@work.example"), true)
	tcompare(t, c.IsMyAddress("mjl@old.example"), true)
	tcompare(t, c.IsMyAddress("other@mox.example"), false)
	tcompare(t, c.IsMyAddress("not an address"), false)
}

func TestParseDefaults(t *testing.T) {
	const minimal = `Identities:
	default:
		UOID: 1
		Email: mjl@mox.example
		Default: true
`
	c, errs := Parse(strings.NewReader(minimal))
	if len(errs) > 0 {
		t.Fatalf("parse: %v", errs)
	}
	tcompare(t, c.DataDir, "data")
	tcompare(t, c.Message.Hostname, "localhost")
	tcompare(t, c.Message.QuotePrefix, "> ")
	tcompare(t, c.Message.UserAgent, "mimeengine")
	tcompare(t, c.MDN.Policy, mdn.Ignore)
	tcompare(t, c.IdentityForUOIDOrDefault(1).FullEmailAddr(), "mjl@mox.example")

	dir := t.TempDir()
	p := filepath.Join(dir, "mimeengine.conf")
	err := os.WriteFile(p, []byte(minimal), 0o600)
	if err != nil {
		t.Fatalf("write config: %v", err)
	}
	c, errs = ParseFile(p)
	if len(errs) > 0 {
		t.Fatalf("parse file: %v", errs)
	}
	tcompare(t, c.DataDir, filepath.Join(dir, "data"))
}

func TestParseErrors(t *testing.T) {
	const bad = `LogLevel: loud
Hostname: bad_host.example
PreferredCharsets:
	- klingon
Prefixes:
	Reply:
		- (
StripWhenInlineForwarding:
	- application
MDN:
	Policy: maybe
	QuoteMessage: some
Identities:
	a:
		UOID: 1
		Email: a@mox.example
	b:
		UOID: 1
		Email: not an address
`
	_, errs := Parse(strings.NewReader(bad))
	var l []string
	for _, err := range errs {
		l = append(l, err.Error())
	}
	s := strings.Join(l, "\n")
	for _, exp := range []string{
		`invalid log level "loud"`,
		`parsing hostname "bad_host.example"`,
		`unknown charset "klingon"`,
		`parsing reply prefix "("`,
		`invalid media type "application"`,
		`unknown mdn policy "maybe"`,
		`unknown mdn quote message "some"`,
		`also used by identity`,
		`parsing identity b address "not an address"`,
		`need exactly one default identity, found 0`,
	} {
		if !strings.Contains(s, exp) {
			t.Fatalf("missing error %q in:\n%s", exp, s)
		}
	}

	_, errs = Parse(strings.NewReader("Bogus: x\n"))
	tcompare(t, len(errs), 1)
}
