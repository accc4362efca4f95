package message

import (
	"testing"
)

func TestParseAddressList(t *testing.T) {
	l := ParseAddressList(`=?iso-8859-2?Q?Krist=FDna?= <k@example.com>, mjl@mox.example, "Doe, John" <john@bücher.example>, undisclosed-recipients:;`)
	tcompare(t, len(l), 4)
	tcompare(t, l[0].Name, "Kristýna")
	tcompare(t, l[0].Email(), "k@example.com")
	tcompare(t, l[1].Name, "")
	tcompare(t, l[1].String(), "mjl@mox.example")
	tcompare(t, l[2].Name, "Doe, John")
	tcompare(t, l[2].Email(), "john@xn--bcher-kva.example")
	tcompare(t, l[2].String(), `"Doe, John" <john@bücher.example>`)
	tcompare(t, l[3].Addr.IsZero(), true)
	tcompare(t, l[3].Raw, "undisclosed-recipients:;")

	tcompare(t, FormatAddressList(l[:3], "iso-8859-2"), `=?iso-8859-2?q?Krist=FDna?= <k@example.com>, mjl@mox.example, "Doe, John" <john@xn--bcher-kva.example>`)

	// Forms net/mail rejects.
	l = ParseAddressList("Some Name <some_name@host_with_underscore.example>")
	tcompare(t, len(l), 1)
	tcompare(t, l[0].Name, "Some Name")
	tcompare(t, l[0].Email(), "some_name@host_with_underscore.example")

	tcompare(t, len(ParseAddressList(" , ")), 0)
}

func TestStripAddress(t *testing.T) {
	l := ParseAddressList("a@mox.example, Other <B@Mox.Example>, c@mox.example")
	me := ParseAddressList("b@mox.example")[0]
	tcompare(t, ContainsAddress(me, l), true)
	r := StripAddress(me, l)
	tcompare(t, len(r), 2)
	tcompare(t, r[0].Email(), "a@mox.example")
	tcompare(t, r[1].Email(), "c@mox.example")
	tcompare(t, ContainsAddress(me, r), false)
}
