package message

import (
	"strings"
)

var wspRemover = strings.NewReplacer(" ", "", "\t", "", "\r", "", "\n", "")

// ReferencedIDs returns the message-ids in a References or In-Reply-To
// value, in order, with angle brackets. Text that isn't a message-id is
// skipped, as are truncated ids.
func ReferencedIDs(refs string) []string {
	var ids []string
	for {
		refs = strings.TrimLeft(refs, " \t\r\n")
		if refs == "" {
			return ids
		}
		if refs[0] != '<' {
			// Skip the word.
			i := strings.IndexAny(refs, " >")
			if i < 0 {
				return ids
			}
			refs = refs[i+1:]
			continue
		}
		refs = refs[1:]
		i := strings.IndexAny(refs, "<>")
		if i < 0 {
			return ids
		}
		if refs[i] == '<' {
			// Truncated, the next id starts here.
			refs = refs[i:]
			continue
		}
		// Mail software folds long References in the middle of ids.
		if id := wspRemover.Replace(refs[:i]); id != "" {
			ids = append(ids, "<"+id+">")
		}
		refs = refs[i+1:]
	}
}
