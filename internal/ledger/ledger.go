// Package ledger holds the accumulated statuses of a single account. A Ledger only ever grows: entries
// are appended once per id and never rewritten, so a cached ledger can be extended with newer statuses
// without fetching the older ones again.
package ledger

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var ErrLedgerMismatch = errors.New("ledgers belong to different accounts")

const (
	unsetMax int64 = 0
	unsetMin int64 = math.MaxInt64
)

// Entry is a stored status together with the id it had on the owner's timeline. For reblogs the
// timeline id is the one of the reblog, while Status is the reblogged post.
type Entry struct {
	TimelineID int64         `json:"timeline_id"`
	Status     domain.Status `json:"status"`
}

type Ledger struct {
	Account domain.AccountID `json:"account"`
	// MaxID and MinID are the greatest and least timeline ids among all entries, posts and reblogs
	// alike. An empty ledger has MaxID 0 and MinID math.MaxInt64.
	MaxID   int64   `json:"max_id"`
	MinID   int64   `json:"min_id"`
	Posts   []Entry `json:"posts"`
	Reblogs []Entry `json:"reblogs"`

	postIDs   map[int64]struct{}
	reblogIDs map[int64]struct{}
}

func New(account domain.AccountID) *Ledger {
	return &Ledger{
		Account: account,
		MaxID:   unsetMax,
		MinID:   unsetMin,
	}
}

// FromStatuses builds a ledger from a page of timeline entries.
func FromStatuses(account domain.AccountID, statuses []domain.RemoteStatus) *Ledger {
	l := New(account)
	for _, s := range statuses {
		l.Append(s)
	}
	return l
}

// Append adds a timeline entry, keeping each table ordered by timeline id. Reblogs are stored as the
// reblogged post in the reblogs table. An entry whose status id is already present in its table is
// skipped; it reports whether the entry was added.
func (l *Ledger) Append(s domain.RemoteStatus) bool {
	l.MinID = min(l.MinID, s.ID)
	l.MaxID = max(l.MaxID, s.ID)

	if s.IsReblog() {
		return l.add(&l.Reblogs, l.reblogIndex(), Entry{TimelineID: s.ID, Status: *s.Reblog})
	}
	return l.add(&l.Posts, l.postIndex(), Entry{TimelineID: s.ID, Status: s.Status})
}

func (l *Ledger) add(table *[]Entry, index map[int64]struct{}, e Entry) bool {
	if _, ok := index[e.Status.ID]; ok {
		return false
	}
	index[e.Status.ID] = struct{}{}
	t := *table
	i := sort.Search(len(t), func(i int) bool { return t[i].TimelineID > e.TimelineID })
	t = append(t, Entry{})
	copy(t[i+1:], t[i:])
	t[i] = e
	*table = t
	return true
}

func (l *Ledger) postIndex() map[int64]struct{} {
	if l.postIDs == nil {
		l.postIDs = buildIndex(l.Posts)
	}
	return l.postIDs
}

func (l *Ledger) reblogIndex() map[int64]struct{} {
	if l.reblogIDs == nil {
		l.reblogIDs = buildIndex(l.Reblogs)
	}
	return l.reblogIDs
}

func buildIndex(entries []Entry) map[int64]struct{} {
	index := make(map[int64]struct{}, len(entries))
	for _, e := range entries {
		index[e.Status.ID] = struct{}{}
	}
	return index
}

func (l *Ledger) Size() int {
	return l.NrPosts() + l.NrReblogs()
}

func (l *Ledger) NrPosts() int {
	return len(l.Posts)
}

func (l *Ledger) NrReblogs() int {
	return len(l.Reblogs)
}

func (l *Ledger) Empty() bool {
	return l.Size() == 0
}

// Merge returns a new ledger holding the entries of a and those of b not already in a. Both ledgers
// must belong to the same account.
func Merge(a, b *Ledger) (*Ledger, error) {
	if a.Account != b.Account {
		return nil, fmt.Errorf("%w: cannot merge data for %s and %s", ErrLedgerMismatch, a.Account, b.Account)
	}

	merged := New(a.Account)
	merged.MaxID = max(a.MaxID, b.MaxID)
	merged.MinID = min(a.MinID, b.MinID)
	for _, table := range [][]Entry{a.Posts, b.Posts} {
		for _, e := range table {
			merged.add(&merged.Posts, merged.postIndex(), e)
		}
	}
	for _, table := range [][]Entry{a.Reblogs, b.Reblogs} {
		for _, e := range table {
			merged.add(&merged.Reblogs, merged.reblogIndex(), e)
		}
	}
	return merged, nil
}
