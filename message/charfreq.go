package message

import (
	"strings"
)

// CTE is a content-transfer-encoding.
type CTE int

const (
	CTE7Bit CTE = iota
	CTE8Bit
	CTEQuotedPrintable
	CTEBase64
	CTEBinary
)

func (c CTE) String() string {
	switch c {
	case CTE8Bit:
		return "8bit"
	case CTEQuotedPrintable:
		return "quoted-printable"
	case CTEBase64:
		return "base64"
	case CTEBinary:
		return "binary"
	}
	return "7bit"
}

// ParseCTE parses a Content-Transfer-Encoding value. Unknown and empty
// values are 7bit, which leaves the body as is.
func ParseCTE(s string) CTE {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "8bit":
		return CTE8Bit
	case "quoted-printable":
		return CTEQuotedPrintable
	case "base64":
		return CTEBase64
	case "binary":
		return CTEBinary
	}
	return CTE7Bit
}

// Longest line allowed for 7bit and 8bit encodings, excluding line ending.
// ../rfc/5322:534 allows 998, we leave room for the transport.
const maxLineLength = 988

// CharFreq holds the byte statistics of a buffer, for choosing its transfer
// encoding.
type CharFreq struct {
	Total     int
	NUL       int
	CTL       int // Control characters, other than CR, LF and TAB.
	CR        int
	LF        int
	CRLF      int
	EightBit  int
	Printable int // Printable ASCII, including whitespace.
	LineMax   int

	TrailingWhitespace bool // A line ends with space or tab.
	LeadingFrom        bool // A line starts with "From ".
}

// FreqType classifies a buffer.
type FreqType int

const (
	SevenBitText FreqType = iota
	EightBitText
	SevenBitData
	EightBitData
	Binary
)

// AnalyzeCharFreq scans buf once and returns its statistics.
func AnalyzeCharFreq(buf []byte) CharFreq {
	cf := CharFreq{Total: len(buf)}
	lineLen := 0
	lineStart := 0
	for i, c := range buf {
		switch {
		case c == '\n':
			cf.LF++
			if i > 0 && buf[i-1] == '\r' {
				cf.CRLF++
				lineLen--
			}
			cf.Printable++
			if lineLen > cf.LineMax {
				cf.LineMax = lineLen
			}
			end := i
			if i > 0 && buf[i-1] == '\r' {
				end--
			}
			if end > lineStart && (buf[end-1] == ' ' || buf[end-1] == '\t') {
				cf.TrailingWhitespace = true
			}
			if strings.HasPrefix(string(buf[lineStart:end]), "From ") {
				cf.LeadingFrom = true
			}
			lineLen = 0
			lineStart = i + 1
			continue
		case c == '\r':
			cf.CR++
			cf.Printable++
		case c == 0:
			cf.NUL++
		case c >= 0x80:
			cf.EightBit++
		case c == '\t' || c >= ' ' && c < 0x7f:
			cf.Printable++
		default:
			cf.CTL++
		}
		lineLen++
	}
	if lineLen > cf.LineMax {
		cf.LineMax = lineLen
	}
	if lineStart < len(buf) {
		last := buf[lineStart:]
		if c := last[len(last)-1]; c == ' ' || c == '\t' {
			cf.TrailingWhitespace = true
		}
		if strings.HasPrefix(string(last), "From ") {
			cf.LeadingFrom = true
		}
	}
	return cf
}

// PrintableRatio is the fraction of printable bytes.
func (cf CharFreq) PrintableRatio() float64 {
	if cf.Total == 0 {
		return 1
	}
	return float64(cf.Printable) / float64(cf.Total)
}

// ControlCodesRatio is the fraction of control bytes.
func (cf CharFreq) ControlCodesRatio() float64 {
	if cf.Total == 0 {
		return 0
	}
	return float64(cf.CTL) / float64(cf.Total)
}

// Type classifies the buffer. Bare carriage returns, long lines and many
// control characters make text into data.
func (cf CharFreq) Type() FreqType {
	if cf.NUL > 0 {
		return Binary
	}
	data := cf.LineMax > maxLineLength || cf.CR != cf.CRLF || cf.ControlCodesRatio() > 0.2
	switch {
	case cf.EightBit > 0 && data:
		return EightBitData
	case cf.EightBit > 0:
		return EightBitText
	case data:
		return SevenBitData
	}
	return SevenBitText
}

// AllowedCTEs returns the transfer encodings suitable for buf, preferred
// first.
//
// Pure 7-bit text only needs 7bit. 8-bit text can be sent as 8bit if allowed
// and the part will not be signed. Otherwise quoted-printable and base64 are
// allowed, quoted-printable first if it has less overhead, which it has if
// more than 5/6 of the bytes are printable. Lines starting with "From ", and
// trailing whitespace in signed parts, rule out 7bit and 8bit: transports may
// change those.
func AllowedCTEs(buf []byte, allow8Bit, willBeSigned bool) []CTE {
	cf := AnalyzeCharFreq(buf)
	return cf.AllowedCTEs(allow8Bit, willBeSigned)
}

// AllowedCTEs is like the function of the same name, for an analyzed buffer.
func (cf CharFreq) AllowedCTEs(allow8Bit, willBeSigned bool) []CTE {
	// base64 is about 4n/3, qp about p + 3(n-p), so qp is smaller iff p > 5n/6.
	encoded := []CTE{CTEBase64, CTEQuotedPrintable}
	if cf.PrintableRatio() > 5.0/6.0 {
		encoded = []CTE{CTEQuotedPrintable, CTEBase64}
	}

	risky := cf.LeadingFrom || willBeSigned && cf.TrailingWhitespace
	switch cf.Type() {
	case SevenBitText:
		if !risky {
			return []CTE{CTE7Bit}
		}
	case EightBitText:
		if allow8Bit && !willBeSigned && !risky {
			return append([]CTE{CTE8Bit}, encoded...)
		}
	case EightBitData, Binary:
		return []CTE{CTEBase64, CTEQuotedPrintable}
	}
	return encoded
}
