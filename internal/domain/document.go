package domain

import "time"

// Document is a saved PDF in a user's library.
type Document struct {
	ID             string
	UserID         int64
	TelegramFileID string
	SourceURL      string
	Title          string
	ReadingMinutes float64
	Tags           []string
	Analysis       AnalysisResult
	Provider       string
	CreatedAt      time.Time
}

// HasTag reports whether the document carries tag (case-insensitive).
func (d Document) HasTag(tag string) bool {
	key := NormalizeTag(tag)
	if key == "" {
		return false
	}
	for _, t := range d.Tags {
		if NormalizeTag(t) == key {
			return true
		}
	}
	return false
}

// User is a Telegram account known to the bot.
type User struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// LibraryStats summarizes a user's library.
type LibraryStats struct {
	Documents    int
	TotalMinutes float64
	Exports      int
	TopTags      []TagCount
}

// TagCount pairs a tag with the number of documents carrying it.
type TagCount struct {
	Tag   string
	Count int
}
