package presence

import "fmt"

// TypingUsers extracts the usernames currently typing from a presence
// snapshot, excluding the local user.
func TypingUsers(snapshot []Record, self string) []string {
	var out []string
	for _, rec := range snapshot {
		if rec.Typing && rec.Username != self {
			out = append(out, rec.Username)
		}
	}
	return out
}

// TypingText renders the typing indicator for the given other typists.
// Zero names means no indicator.
func TypingText(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return fmt.Sprintf("%s is typing", names[0])
	case 2:
		return fmt.Sprintf("%s and %s are typing", names[0], names[1])
	default:
		return fmt.Sprintf("%d people are typing", len(names))
	}
}
