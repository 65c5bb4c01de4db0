package payment

import "strings"

var (
	acceptReplies = map[string]bool{"YES": true, "Y": true, "YA": true, "IYA": true, "OK": true}
	rejectReplies = map[string]bool{"NO": true, "N": true, "TIDAK": true, "GAK": true, "NGGAK": true}
)

// ParseConfirmationReply reads a chat answer to a pending confirmation.
// ok is false when the text is neither a yes nor a no.
func ParseConfirmationReply(text string) (accept bool, ok bool) {
	word := strings.ToUpper(strings.Trim(strings.TrimSpace(text), ".!"))
	switch {
	case acceptReplies[word]:
		return true, true
	case rejectReplies[word]:
		return false, true
	default:
		return false, false
	}
}
