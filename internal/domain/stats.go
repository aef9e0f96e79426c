package domain

import "time"

// Stats are the capture counters kept in the stats bucket.
type Stats struct {
	TotalBookmarks     int    `json:"totalBookmarks"`
	TodayBookmarks     int    `json:"todayBookmarks"`
	LastBookmarkDate   string `json:"lastBookmarkDate,omitempty"`
	TotalAttempts      int    `json:"totalAttempts"`
	SuccessfulAttempts int    `json:"successfulAttempts"`
	SuccessRate        int    `json:"successRate"`
}

// DefaultStats is what an empty bucket reads as.
func DefaultStats() Stats {
	return Stats{SuccessRate: 100}
}

// Record counts one capture attempt made at now.
func (s Stats) Record(success bool, now time.Time) Stats {
	out := s
	today := now.Format("2006-01-02")

	out.TotalBookmarks++
	if out.LastBookmarkDate != today {
		out.TodayBookmarks = 1
	} else {
		out.TodayBookmarks++
	}
	out.LastBookmarkDate = today

	out.TotalAttempts++
	if success {
		out.SuccessfulAttempts++
	}
	out.SuccessRate = (out.SuccessfulAttempts*100 + out.TotalAttempts/2) / out.TotalAttempts
	return out
}

// Preferences are UI preferences kept in the preferences bucket.
type Preferences struct {
	Theme         string   `json:"theme"`
	Language      string   `json:"language"`
	Notifications bool     `json:"notifications"`
	AutoFill      bool     `json:"autoFill"`
	QuickSave     bool     `json:"quickSave"`
	DefaultTags   []string `json:"defaultTags"`
}

// DefaultPreferences is what an empty bucket reads as.
func DefaultPreferences() Preferences {
	return Preferences{
		Theme:         "light",
		Language:      "zh-CN",
		Notifications: true,
		AutoFill:      true,
		QuickSave:     false,
		DefaultTags:   []string{},
	}
}
