/*
Package config holds the configuration file definitions.

The configuration file, mimeengine.conf, is read once at startup. It holds
the preferences used when composing messages, the identities of the user,
and the policy for message disposition notifications.

# sconf

The config file is in "sconf" format. Properties of sconf files:

  - Indentation with tabs only.
  - "#" as first non-whitespace character makes the line a comment. Lines with a
    value cannot also have a comment.
  - Values don't have syntax indicating their type. For example, strings are
    not quoted/escaped and can never span multiple lines.
  - Fields that are optional can be left out completely. But the value of an
    optional field may itself have required fields.

See https://pkg.go.dev/github.com/mjl-/sconf for details.

# Example

A minimal configuration:

	Hostname: mox.example
	Identities:
		default:
			UOID: 1
			FullName: Mjl
			Email: mjl@mox.example
			Default: true

A configuration with all sections:

	DataDir: data
	LogLevel: info
	PackageLogLevels:
		mdn: debug
	Hostname: mox.example
	UserAgent: mimeengine
	PreferredCharsets:
		- us-ascii
		- iso-8859-15
		- utf-8
	RFC2047Only: false
	Prefixes:
		Reply:
			- Re\s*:
			- AW:
		Forward:
			- Fwd:
			- WG:
		KeepReplyPrefix: false
		KeepForwardPrefix: false
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
			Email: mjl@work.example
			Organization: Work
			Transport: smtp-work
	ExtraAddresses:
		- mjl@old.example

Run "mimeengine config describe" for a full description of all fields.
*/
package config
