package message

import (
	"crypto/md5"
	"encoding/base64"
	"regexp"
	"strings"
)

// base64EncodedMD5 returns the MD5 hash of the trimmed string, base64-encoded
// without padding. Blank strings result in an empty string, so absent
// headers never match each other.
func base64EncodedMD5(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	sum := md5.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])[:22]
}

// SubjectMD5 returns the hash of the decoded subject.
func (m *Message) SubjectMD5() string {
	return base64EncodedMD5(m.Subject())
}

// StrippedSubjectMD5 returns the hash of the subject without reply and
// forward prefixes. Replies in a thread have the same stripped hash.
func (m *Message) StrippedSubjectMD5() string {
	return base64EncodedMD5(m.StripOffPrefixes(m.Subject()))
}

// SubjectIsPrefixed returns whether the subject has a reply or forward
// prefix.
func (m *Message) SubjectIsPrefixed() bool {
	return m.SubjectMD5() != m.StrippedSubjectMD5()
}

// MsgIDMD5 returns the hash of the Message-Id.
func (m *Message) MsgIDMD5() string {
	return base64EncodedMD5(m.MsgID())
}

// ReplyToIDMD5 returns the hash of the id of the message this message replies
// to, see ReplyToID.
func (m *Message) ReplyToIDMD5() string {
	return base64EncodedMD5(m.ReplyToID())
}

// ReplyToAuxIDMD5 returns the hash of the second to last id in References, the
// parent of the parent. It is used to find a thread when the direct parent is
// not present.
func (m *Message) ReplyToAuxIDMD5() string {
	ids := ReferencedIDs(m.References())
	switch len(ids) {
	case 0:
		return ""
	case 1:
		return base64EncodedMD5(ids[0])
	}
	return base64EncodedMD5(ids[len(ids)-2])
}

// trimMsgID returns the message-id in s with angle brackets, dropping text
// around it.
func trimMsgID(s string) string {
	if i := strings.Index(s, ">"); i >= 0 {
		s = s[:i+1]
	}
	if i := strings.LastIndex(s, "<"); i >= 0 {
		s = s[i:]
	}
	return strings.TrimSpace(s)
}

// ReplyToID returns the message-id from In-Reply-To. If absent or not a
// message-id (some clients put a quoted phrase in there), the last id from
// References is returned.
func (m *Message) ReplyToID() string {
	id := trimMsgID(m.HeaderField("In-Reply-To", Raw))
	if id != "" && !strings.Contains(id, `"`) && strings.HasPrefix(id, "<") {
		return id
	}
	ids := ReferencedIDs(m.References())
	if len(ids) == 0 {
		return ""
	}
	return ids[len(ids)-1]
}

// GetRefStr returns the References value for a reply to m: the first and
// last id of its References (only once if they are the same), followed by its
// Message-Id. Without References, it is just the Message-Id.
func (m *Message) GetRefStr() string {
	msgID := m.MsgID()
	ids := ReferencedIDs(m.References())
	if len(ids) == 0 {
		return msgID
	}
	l := []string{ids[0]}
	if last := ids[len(ids)-1]; last != ids[0] {
		l = append(l, last)
	}
	if msgID != "" {
		l = append(l, msgID)
	}
	return strings.Join(l, " ")
}

// StripOffPrefixes returns subject without leading reply and forward
// prefixes, e.g. "Re: Fwd: Re: x" becomes "x".
func (m *Message) StripOffPrefixes(subject string) string {
	rx := prefixRegexp(append(append([]string{}, m.conf.ReplyPrefixes...), m.conf.ForwardPrefixes...))
	if rx != nil {
		if loc := rx.FindStringIndex(subject); loc != nil {
			subject = subject[loc[1]:]
		}
	}
	return strings.TrimSpace(subject)
}

// ReplacePrefixes returns str with a recognized prefix replaced by newPrefix
// if replace is set, or left intact otherwise. If no prefix is recognized,
// newPrefix is added, so prefixes never accumulate.
func ReplacePrefixes(str string, rx *regexp.Regexp, replace bool, newPrefix string) string {
	if rx != nil {
		if loc := rx.FindStringIndex(str); loc != nil {
			if !replace {
				return str
			}
			return newPrefix + " " + str[loc[1]:]
		}
	}
	return newPrefix + " " + str
}

// ReplySubject returns the subject for a reply to m.
func (m *Message) ReplySubject() string {
	return ReplacePrefixes(m.Subject(), prefixRegexp(m.conf.ReplyPrefixes), m.conf.ReplaceReplyPrefix, "Re:")
}

// ForwardSubject returns the subject for a forward of m.
func (m *Message) ForwardSubject() string {
	return ReplacePrefixes(m.Subject(), prefixRegexp(m.conf.ForwardPrefixes), m.conf.ReplaceForwardPrefix, "Fwd:")
}
