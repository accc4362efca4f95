package message

import (
	"errors"
	"fmt"
	"mime"
	"net/url"
	"sort"
	"strconv"
	"strings"
)

var ErrParamEncoding = errors.New("bad header parameter encoding")

// Param is a parameter of a Content-Type or Content-Disposition header.
type Param struct {
	Name  string // Attribute, possibly with RFC 2231 "*" and section suffix.
	Value string // Value as it appears, without quotes. Encoded for extended parameters.
}

// ParseMediaType parses a Content-Type or Content-Disposition value into
// its lower-cased value and parameters, in order. Parsing is lenient,
// malformed parameters are skipped.
func ParseMediaType(v string) (string, []Param) {
	var params []Param
	parts := splitParams(v)
	if len(parts) == 0 {
		return "", nil
	}
	mt := strings.ToLower(strings.TrimSpace(parts[0]))
	for _, p := range parts[1:] {
		k, val, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		val = strings.TrimSpace(val)
		if len(val) >= 2 && val[0] == '"' && val[len(val)-1] == '"' {
			val = unquote(val[1 : len(val)-1])
		}
		params = append(params, Param{k, val})
	}
	return mt, params
}

// splitParams splits at semicolons outside quoted strings.
func splitParams(v string) []string {
	var l []string
	var quoted, escaped bool
	start := 0
	for i, c := range v {
		switch {
		case escaped:
			escaped = false
		case c == '\\' && quoted:
			escaped = true
		case c == '"':
			quoted = !quoted
		case c == ';' && !quoted:
			l = append(l, v[start:i])
			start = i + 1
		}
	}
	if s := strings.TrimSpace(v[start:]); s != "" || len(l) == 0 {
		l = append(l, v[start:])
	}
	return l
}

func unquote(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// FormatMediaType formats a value with parameters. Parameter values are
// quoted when needed.
func FormatMediaType(mt string, params []Param) string {
	var b strings.Builder
	b.WriteString(mt)
	for _, p := range params {
		b.WriteString("; ")
		b.WriteString(p.Name)
		b.WriteByte('=')
		if strings.HasSuffix(p.Name, "*") || isToken(p.Value) {
			b.WriteString(p.Value)
		} else {
			b.WriteString(`"` + strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(p.Value) + `"`)
		}
	}
	return b.String()
}

// isToken returns whether s can be a parameter value without quoting.
func isToken(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		// ../rfc/2045:663
		if c <= ' ' || c >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?=`, c) {
			return false
		}
	}
	return true
}

// ParamValue returns the decoded value of parameter name. RFC 2231 extended
// and continued values take precedence. Plain values are RFC 2047 decoded if
// they look encoded, as is common for the "name" and "filename" parameters.
func ParamValue(params []Param, name string) (string, error) {
	name = strings.ToLower(name)
	var plain string
	var havePlain bool
	sections := map[int]Param{}
	for _, p := range params {
		k := strings.ToLower(p.Name)
		if k == name {
			plain, havePlain = p.Value, true
			continue
		}
		if !strings.HasPrefix(k, name+"*") {
			continue
		}
		rest := k[len(name)+1:]
		if rest == "" {
			sections[0] = Param{"*", p.Value}
			continue
		}
		ext := strings.HasSuffix(rest, "*")
		n, err := strconv.Atoi(strings.TrimSuffix(rest, "*"))
		if err != nil {
			continue
		}
		if ext {
			sections[n] = Param{"*", p.Value}
		} else {
			sections[n] = Param{"", p.Value}
		}
	}
	if len(sections) > 0 {
		s, err := decode2231(sections)
		if err == nil {
			return s, nil
		}
		if !havePlain {
			return s, err
		}
	}
	if !havePlain {
		return "", nil
	}
	return tryDecodeParam(plain)
}

// decode2231 joins the sections of an RFC 2231 value. Sections whose name
// ended in "*" are percent-encoded, the first holds the charset.
func decode2231(sections map[int]Param) (string, error) {
	var keys []int
	for k := range sections {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	var cs string
	var buf []byte
	for i, k := range keys {
		p := sections[k]
		v := p.Value
		if p.Name != "*" {
			buf = append(buf, v...)
			continue
		}
		if i == 0 {
			// ../rfc/2231:227 charset'language'value
			t := strings.SplitN(v, "'", 3)
			if len(t) != 3 {
				return "", fmt.Errorf("%w: missing charset/language in extended parameter", ErrParamEncoding)
			}
			cs, v = t[0], t[2]
		}
		s, err := url.PathUnescape(v)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrParamEncoding, err)
		}
		buf = append(buf, s...)
	}
	if cs == "" {
		cs = "us-ascii"
	}
	return DecodeCharset(cs, buf), nil
}

// Attempt q/b-word-decode name, coming from Content-Type "name" field or
// Content-Disposition "filename" field.
//
// RFC 2231 specifies an encoding for non-ascii values in mime header
// parameters. But it appears common practice to instead just q/b-word encode
// the values. We'll look for Q/B-word encoding markers ("=?"-prefix or
// "?="-suffix) and try to decode if present.
func tryDecodeParam(name string) (string, error) {
	if name == "" || !strings.HasPrefix(name, "=?") && !strings.HasSuffix(name, "?=") {
		return name, nil
	}
	s, err := wordDecoder.DecodeHeader(name)
	if err != nil {
		return name, fmt.Errorf("%w: q/b-word decoding mime parameter: %v", ErrParamEncoding, err)
	}
	return s, nil
}

// encode2231 returns the RFC 2231 extended value for s in charset cs.
func encode2231(s, cs string) string {
	buf, ok := EncodeCharset(cs, s)
	if !ok {
		cs, buf = "utf-8", []byte(s)
	}
	var b strings.Builder
	b.WriteString(cs + "''")
	for _, c := range buf {
		// ../rfc/2231:283 attribute-char
		if c > ' ' && c < 0x7f && !strings.ContainsRune(`*'%()<>@,;:\"/[]?=`, rune(c)) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02X", c)
		}
	}
	return b.String()
}

// nameParams returns the parameters for a name or filename value. An ASCII
// name is a plain parameter. Otherwise the RFC 2047 encoded form is used for
// compatibility, followed by the RFC 2231 form unless rfc2047Only is set.
func nameParams(attr, s, cs string, rfc2047Only bool) []Param {
	if s == "" {
		return nil
	}
	if isASCII(s) {
		return []Param{{attr, s}}
	}
	buf, ok := EncodeCharset(cs, s)
	if !ok {
		cs, buf = "utf-8", []byte(s)
	}
	l := []Param{{attr, mime.QEncoding.Encode(cs, string(buf))}}
	if !rfc2047Only {
		l = append(l, Param{attr + "*", encode2231(s, cs)})
	}
	return l
}

// setParam returns params with name set to value, replacing existing
// (including RFC 2231 forms) parameters of that name.
func setParam(params []Param, name, value string) []Param {
	var r []Param
	done := false
	for _, p := range params {
		k := strings.ToLower(p.Name)
		if k == strings.ToLower(name) || strings.HasPrefix(k, strings.ToLower(name)+"*") {
			if !done && value != "" {
				r = append(r, Param{name, value})
				done = true
			}
			continue
		}
		r = append(r, p)
	}
	if !done && value != "" {
		r = append(r, Param{name, value})
	}
	return r
}
