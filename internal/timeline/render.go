package timeline

import (
	"time"

	"github.com/sohbat-app/chat-service/internal/models"
)

// Rendered wraps a message with derived presentation hints. Nothing here is
// stored; it is recomputed from the ordered list.
type Rendered struct {
	*models.Message
	// ShowDivider marks the first message of a new calendar day.
	ShowDivider  bool
	DividerLabel string
	// ShowHeader marks where the author's name and avatar are shown:
	// after a divider or whenever the author changes.
	ShowHeader bool
}

// Annotate derives date dividers and author grouping for an ascending-ordered
// list. A divider appears exactly where the calendar date differs from the
// previous message's date; consecutive messages by the same author within one
// day share a header. now anchors the Today/Yesterday labels.
func Annotate(msgs []*models.Message, now time.Time) []Rendered {
	out := make([]Rendered, 0, len(msgs))

	var lastDay string
	var lastUserID string
	for _, m := range msgs {
		day := m.CreatedAt.Format("2006-01-02")
		divider := day != lastDay
		r := Rendered{
			Message:     m,
			ShowDivider: divider,
			ShowHeader:  divider || m.UserID != lastUserID,
		}
		if divider {
			r.DividerLabel = DividerLabel(m.CreatedAt, now)
		}
		lastDay = day
		lastUserID = m.UserID
		out = append(out, r)
	}

	return out
}

// DividerLabel renders a calendar date relative to now.
func DividerLabel(at, now time.Time) string {
	day := at.Format("2006-01-02")
	switch day {
	case now.Format("2006-01-02"):
		return "Today"
	case now.AddDate(0, 0, -1).Format("2006-01-02"):
		return "Yesterday"
	default:
		return at.Format("2 January 2006")
	}
}
