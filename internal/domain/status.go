package domain

import "time"

// Status is the projection of a post that is stored in a ledger. Account is always in its
// normalized "user@host" form.
type Status struct {
	Account            string    `json:"account"`
	ID                 int64     `json:"id"`
	URL                string    `json:"url"`
	CreatedAt          time.Time `json:"created_at"`
	SpoilerText        string    `json:"spoiler_text"`
	Content            string    `json:"content"`
	InReplyToAccountID string    `json:"in_reply_to_account_id,omitempty"`
	Tags               []string  `json:"tags"`
	Mentions           []string  `json:"mentions"`
	ReblogsCount       int       `json:"reblogs_count"`
	FavouritesCount    int       `json:"favourites_count"`
	RepliesCount       int       `json:"replies_count"`
	Language           string    `json:"language"`
	MediaDescriptions  []string  `json:"media_descriptions"`
	Fetched            time.Time `json:"fetched"`
}

// RemoteStatus is a status as listed on an account's timeline. When Reblog is set, the timeline entry
// is a reblog and Reblog holds the reblogged post.
type RemoteStatus struct {
	Status
	Reblog *Status `json:"reblog,omitempty"`
}

func (s RemoteStatus) IsReblog() bool {
	return s.Reblog != nil
}

// IDFromTime converts a point in time into the time-ordered status id space used by Mastodon, so that
// listing from the returned id yields the statuses created after t.
func IDFromTime(t time.Time) int64 {
	return (t.Unix() << 16) * 1000
}
