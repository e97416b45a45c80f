package domain

import "time"

// Profile is the part of a remote account record the harvester keeps. The counters are the ones
// reported by the account's home server and may lag behind the actual collections.
type Profile struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Acct           string    `json:"acct"`
	DisplayName    string    `json:"display_name"`
	Note           string    `json:"note"`
	URL            string    `json:"url"`
	Bot            bool      `json:"bot"`
	Locked         bool      `json:"locked"`
	CreatedAt      time.Time `json:"created_at"`
	FollowersCount int       `json:"followers_count"`
	FollowingCount int       `json:"following_count"`
	StatusesCount  int       `json:"statuses_count"`
}

type RelationKind uint8

const (
	Following RelationKind = iota
	Followers
)

func (k RelationKind) String() string {
	switch k {
	case Following:
		return "following"
	case Followers:
		return "followers"
	default:
		return "unknown"
	}
}

// RelationSet is a snapshot of the accounts followed by, or following, Owner. A nil *RelationSet means
// the list could not be retrieved, which is not the same as an empty list.
type RelationSet struct {
	Owner       AccountID    `json:"owner"`
	Kind        RelationKind `json:"kind"`
	Accounts    []AccountID  `json:"accounts"`
	RetrievedAt time.Time    `json:"retrieved_at"`
}

func (r *RelationSet) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Accounts)
}
