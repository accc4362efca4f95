package message

// EncryptionState is the encryption status of a message, as determined by
// an external cryptography backend.
type EncryptionState byte

const (
	EncryptionUnknown     EncryptionState = ' '
	NotEncrypted          EncryptionState = 'N'
	PartiallyEncrypted    EncryptionState = 'P'
	FullyEncrypted        EncryptionState = 'F'
	EncryptionProblematic EncryptionState = 'X'
)

// SignatureState is the signature status of a message.
type SignatureState byte

const (
	SignatureUnknown     SignatureState = ' '
	NotSigned            SignatureState = 'N'
	PartiallySigned      SignatureState = 'P'
	FullySigned          SignatureState = 'F'
	SignatureProblematic SignatureState = 'X'
)

// MDNSentState records whether and how a disposition notification was sent
// for a message. At most one notification is sent per message.
type MDNSentState byte

const (
	MDNStateUnknown MDNSentState = ' '
	MDNNone         MDNSentState = 'N'
	MDNIgnore       MDNSentState = 'I'
	MDNDisplayed    MDNSentState = 'R'
	MDNDeleted      MDNSentState = 'D'
	MDNDispatched   MDNSentState = 'F'
	MDNProcessed    MDNSentState = 'P'
	MDNDenied       MDNSentState = 'X'
	MDNFailed       MDNSentState = 'E'
)

// Sent returns whether a previous decision makes another notification
// inappropriate.
func (s MDNSentState) Sent() bool {
	return s != MDNStateUnknown && s != MDNNone && s != 0
}

func (s MDNSentState) String() string {
	switch s {
	case MDNNone:
		return "none"
	case MDNIgnore:
		return "ignore"
	case MDNDisplayed:
		return "displayed"
	case MDNDeleted:
		return "deleted"
	case MDNDispatched:
		return "dispatched"
	case MDNProcessed:
		return "processed"
	case MDNDenied:
		return "denied"
	case MDNFailed:
		return "failed"
	}
	return "unknown"
}

// ParseMDNSentState is the inverse of MDNSentState.String.
func ParseMDNSentState(s string) MDNSentState {
	for _, st := range []MDNSentState{MDNNone, MDNIgnore, MDNDisplayed, MDNDeleted, MDNDispatched, MDNProcessed, MDNDenied, MDNFailed} {
		if st.String() == s {
			return st
		}
	}
	return MDNStateUnknown
}
