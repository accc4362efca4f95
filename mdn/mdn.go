// Package mdn generates message disposition notifications, see RFC 2298.
//
// A notification is sent at most once per message. The decision whether to
// send one follows the configured policy, and escalates to asking the user
// when the request is suspicious, e.g. when the notification would go to an
// address other than the Return-Path.
package mdn

import (
	"errors"
	"strings"

	"github.com/mjl-/mimeengine/message"
)

var ErrIncomplete = errors.New("message is not complete")

// Policy is the configured or user-chosen reaction to a notification
// request.
type Policy int

const (
	Ignore Policy = iota // Don't send, and don't ask again.
	Ask                  // Ask the user.
	Deny                 // Send a notification with disposition "denied".
	Send                 // Send the notification.
)

func (p Policy) String() string {
	switch p {
	case Ignore:
		return "ignore"
	case Ask:
		return "ask"
	case Deny:
		return "deny"
	case Send:
		return "send"
	}
	return "unknown"
}

// ParsePolicy parses the name returned by Policy.String.
func ParsePolicy(s string) (Policy, bool) {
	for _, p := range []Policy{Ignore, Ask, Deny, Send} {
		if strings.EqualFold(s, p.String()) {
			return p, true
		}
	}
	return Ignore, false
}

// State is the outcome of Create.
type State int

const (
	NotRequested    State = iota // No Disposition-Notification-To.
	Ignored                      // Not sent, sent-state set to ignore.
	PendingDecision              // The user must be asked but that isn't allowed now. Sent-state unchanged.
	Denied                       // Notification with disposition denied.
	Sent                         // Notification with the requested disposition.
	AlreadySent                  // An earlier call already decided.
)

func (s State) String() string {
	switch s {
	case NotRequested:
		return "notrequested"
	case Ignored:
		return "ignored"
	case PendingDecision:
		return "pending"
	case Denied:
		return "denied"
	case Sent:
		return "sent"
	case AlreadySent:
		return "alreadysent"
	}
	return "unknown"
}

// DispositionType is what happened to the message. ../rfc/2298:463
type DispositionType string

const (
	DispositionDisplayed  DispositionType = "displayed"
	DispositionDeleted    DispositionType = "deleted"
	DispositionDispatched DispositionType = "dispatched"
	DispositionProcessed  DispositionType = "processed"
	DispositionDenied     DispositionType = "denied"
	DispositionFailed     DispositionType = "failed"
)

// sentState returns the sent-state recorded on the original message.
func (d DispositionType) sentState() message.MDNSentState {
	switch d {
	case DispositionDisplayed:
		return message.MDNDisplayed
	case DispositionDeleted:
		return message.MDNDeleted
	case DispositionDispatched:
		return message.MDNDispatched
	case DispositionProcessed:
		return message.MDNProcessed
	case DispositionDenied:
		return message.MDNDenied
	case DispositionFailed:
		return message.MDNFailed
	}
	return message.MDNStateUnknown
}

// ActionMode is whether the disposition was caused by the user.
type ActionMode string

const (
	ManualAction    ActionMode = "manual-action"
	AutomaticAction ActionMode = "automatic-action"
)

// SendingMode is whether the user confirmed sending the notification.
type SendingMode string

const (
	SentManually      SendingMode = "MDN-sent-manually"
	SentAutomatically SendingMode = "MDN-sent-automatically"
)

// Modifier qualifies the disposition type.
type Modifier string

const (
	ModifierError             Modifier = "error"
	ModifierWarning           Modifier = "warning"
	ModifierSuperseded        Modifier = "superseded"
	ModifierExpired           Modifier = "expired"
	ModifierMailboxTerminated Modifier = "mailbox-terminated"
)

// Reason describes why the user is asked.
type Reason string

const (
	ReasonNormalAsk          Reason = "mdnNormalAsk"
	ReasonUnknownOption      Reason = "mdnUnknownOption"
	ReasonMultipleAddresses  Reason = "mdnMultipleAddressesInReceiptTo"
	ReasonReturnPathEmpty    Reason = "mdnReturnPathEmpty"
	ReasonReturnPathMismatch Reason = "mdnReturnPathNotInReceiptTo"
)

// Asker asks the user how to react to a notification request. Returning Ask
// leaves the decision pending.
type Asker interface {
	AskMDN(reason Reason) Policy
}

// What to include of the original message as third part.
const (
	QuoteNothing = 0
	QuoteFull    = 1
	QuoteHeaders = 2
)

// Config is the notification configuration.
type Config struct {
	Policy       Policy
	QuoteMessage int    // QuoteNothing, QuoteFull or QuoteHeaders.
	ReportingUA  string // Host name in the Reporting-UA field. If empty, the hostname of the message configuration is used.
}
