package message

import (
	"testing"
)

func msgWithHeader(h string) *Message {
	return Parse(nil, []byte(h+"\r\nbody\r\n"))
}

func TestSubjectHashes(t *testing.T) {
	re := msgWithHeader("Subject: Re: Budget\r\n")
	plain := msgWithHeader("Subject: Budget\r\n")
	fwd := msgWithHeader("Subject: RE: Fwd: re: Budget\r\n")

	if re.SubjectMD5() == plain.SubjectMD5() {
		t.Fatalf("subject hashes of prefixed and plain subject are equal")
	}
	tcompare(t, re.StrippedSubjectMD5(), plain.StrippedSubjectMD5())
	tcompare(t, fwd.StrippedSubjectMD5(), plain.StrippedSubjectMD5())
	tcompare(t, re.SubjectIsPrefixed(), true)
	tcompare(t, plain.SubjectIsPrefixed(), false)
	tcompare(t, len(plain.SubjectMD5()), 22)

	empty := msgWithHeader("X: y\r\n")
	tcompare(t, empty.SubjectMD5(), "")
	tcompare(t, empty.MsgIDMD5(), "")
}

func TestPrefixes(t *testing.T) {
	check := func(subject, expReply, expFwd string) {
		t.Helper()
		m := msgWithHeader("Subject: " + subject + "\r\n")
		tcompare(t, m.ReplySubject(), expReply)
		tcompare(t, m.ForwardSubject(), expFwd)
	}

	check("Budget", "Re: Budget", "Fwd: Budget")
	check("Re: Budget", "Re: Budget", "Fwd: Re: Budget")
	check("RE: re[2]: Budget", "Re: Budget", "Fwd: RE: re[2]: Budget")
	check("Fwd: Budget", "Re: Fwd: Budget", "Fwd: Budget")
	check("FW: Budget", "Re: FW: Budget", "Fwd: Budget")

	conf := DefaultConfig()
	conf.ReplaceReplyPrefix = false
	m := Parse(conf, []byte("Subject: re: Budget\r\n\r\n"))
	tcompare(t, m.ReplySubject(), "re: Budget")
	tcompare(t, m.StripOffPrefixes("Re: Fwd:  Budget "), "Budget")

	tcompare(t, ReplacePrefixes("x", nil, true, "Re:"), "Re: x")
}

func TestThreadIDs(t *testing.T) {
	m := msgWithHeader("Message-Id: <a@x> (comment)\r\nIn-Reply-To: <b@x>\r\nReferences: <z@x> <y@x> <b@x>\r\n")
	tcompare(t, m.MsgID(), "<a@x>")
	tcompare(t, m.MsgIDMD5(), base64EncodedMD5("<a@x>"))
	tcompare(t, m.ReplyToID(), "<b@x>")
	tcompare(t, m.ReplyToIDMD5(), base64EncodedMD5("<b@x>"))
	tcompare(t, m.ReplyToAuxIDMD5(), base64EncodedMD5("<y@x>"))

	// In-Reply-To with a phrase instead of a message-id.
	m = msgWithHeader("In-Reply-To: \"message from x\"\r\nReferences: <z@x> <y@x>\r\n")
	tcompare(t, m.ReplyToID(), "<y@x>")
	tcompare(t, m.ReplyToAuxIDMD5(), base64EncodedMD5("<z@x>"))

	m = msgWithHeader("References: <z@x>\r\n")
	tcompare(t, m.ReplyToAuxIDMD5(), base64EncodedMD5("<z@x>"))
	tcompare(t, msgWithHeader("X: y\r\n").ReplyToAuxIDMD5(), "")
}
