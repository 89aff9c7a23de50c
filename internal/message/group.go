package message

import (
	"time"

	"chatter-client/internal/api"
)

type Day struct {
	Date  time.Time
	Items []Item
}

type Item struct {
	api.Message
	Own        bool
	ShowAvatar bool
}

// Group buckets messages by calendar date in loc. Inside a bucket only the
// first message of a run from the same non-viewer sender shows an avatar.
// messages is expected in display order.
func Group(messages []api.Message, viewerID string, loc *time.Location) []Day {
	if loc == nil {
		loc = time.Local
	}
	var days []Day
	for _, m := range messages {
		y, mo, d := m.CreatedAt.In(loc).Date()
		date := time.Date(y, mo, d, 0, 0, 0, 0, loc)
		if len(days) == 0 || !days[len(days)-1].Date.Equal(date) {
			days = append(days, Day{Date: date})
		}
		day := &days[len(days)-1]

		own := m.SenderID == viewerID
		first := len(day.Items) == 0 || day.Items[len(day.Items)-1].SenderID != m.SenderID
		day.Items = append(day.Items, Item{Message: m, Own: own, ShowAvatar: !own && first})
	}
	return days
}

// DayLabel names a bucket relative to now: "Today", "Yesterday" or the
// weekday and date.
func DayLabel(date, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)
	y, m, d = date.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)

	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	return day.Format("Monday, 2 January")
}
