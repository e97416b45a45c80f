package harvest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/cache"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/ledger"
	"github.com/sidereusnuntius/fedicache/internal/mocks"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/storage"
	"github.com/sidereusnuntius/fedicache/internal/storage/memstore"
	"go.uber.org/mock/gomock"
)

var ctx = context.Background()
var alice = domain.NewAccount("alice", "good.example")
var clock = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newCollector(t *testing.T, store storage.EntityStore, limit int) (*TimelineCollector, *mocks.MockSource) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	profiles := cache.NewProfileCache(store, source, zerolog.Nop())
	c := NewTimelineCollector(store, source, profiles, limit, zerolog.Nop())
	c.now = func() time.Time { return clock }
	return c, source
}

func statuses(ids ...int64) []domain.RemoteStatus {
	s := make([]domain.RemoteStatus, 0, len(ids))
	for _, id := range ids {
		s = append(s, domain.RemoteStatus{Status: domain.Status{Account: alice.String(), ID: id}})
	}
	return s
}

func page(ids ...int64) *remote.StatusPage {
	return &remote.StatusPage{Account: alice, Statuses: statuses(ids...)}
}

func timelineIDs(l *ledger.Ledger) []int64 {
	var ids []int64
	for _, e := range l.Posts {
		ids = append(ids, e.TimelineID)
	}
	return ids
}

func TestCollectEndToEnd(t *testing.T) {
	store := memstore.New()
	c, source := newCollector(t, store, 40)

	first := page(12, 11, 10)
	gomock.InOrder(
		source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 3}, nil),
		source.EXPECT().ListStatuses(gomock.Any(), alice, int64(0), 40).Return(first, nil),
		source.EXPECT().NextPage(gomock.Any(), first).Return(&remote.StatusPage{Account: alice}, nil),
		source.EXPECT().PreviousPage(gomock.Any(), first).Return(nil, nil),
	)

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Size() != 3 || l.MaxID != 12 || l.MinID != 10 {
		t.Errorf("unexpected ledger: size %d, max %d, min %d", l.Size(), l.MaxID, l.MinID)
	}
	for _, e := range l.Posts {
		if !e.Status.Fetched.Equal(clock) {
			t.Errorf("status %d has fetch time %s", e.Status.ID, e.Status.Fetched)
		}
	}

	stored, err := c.Cached(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{10, 11, 12}, timelineIDs(stored)); diff != "" {
		t.Error(diff)
	}
}

func TestCollectReturnsCachedLedger(t *testing.T) {
	store := memstore.New()
	c, _ := newCollector(t, store, 40)
	storage.SaveJSON(ctx, store, storage.StatusesKey(alice), ledger.FromStatuses(alice, statuses(1, 2)))

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Size() != 2 {
		t.Errorf("expected the cached ledger, got size %d", l.Size())
	}
}

func TestCollectLowerBound(t *testing.T) {
	cases := []struct {
		name   string
		cached []int64
		opts   CollectOptions
		minID  int64
	}{
		{"after cached", []int64{90, 100}, CollectOptions{ForceRefresh: true}, 101},
		{"age limit", nil, CollectOptions{AgeLimit: 24 * time.Hour}, domain.IDFromTime(clock.Add(-24 * time.Hour))},
		{"cached is newer than age limit", []int64{domain.IDFromTime(clock)}, CollectOptions{ForceRefresh: true, AgeLimit: time.Hour}, domain.IDFromTime(clock) + 1},
		{"discarded", []int64{90, 100}, CollectOptions{DiscardCache: true}, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			store := memstore.New()
			if c.cached != nil {
				storage.SaveJSON(ctx, store, storage.StatusesKey(alice), ledger.FromStatuses(alice, statuses(c.cached...)))
			}
			collector, source := newCollector(t, store, 40)
			source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 1}, nil)
			source.EXPECT().ListStatuses(gomock.Any(), alice, c.minID, 40).Return(&remote.StatusPage{Account: alice}, nil)

			if _, err := collector.Collect(ctx, alice, c.opts); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCollectNothingNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockEntityStore(ctrl)
	c, source := newCollector(t, store, 40)

	cached, err := json.Marshal(ledger.FromStatuses(alice, statuses(5, 6)))
	if err != nil {
		t.Fatal(err)
	}

	store.EXPECT().Load(gomock.Any(), storage.StatusesKey(alice)).Return(cached, nil)
	store.EXPECT().Save(gomock.Any(), storage.ProfileKey(alice), gomock.Any()).Return(nil)
	store.EXPECT().Save(gomock.Any(), storage.StatusesKey(alice), gomock.Any()).Times(0)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 2}, nil)
	source.EXPECT().ListStatuses(gomock.Any(), alice, int64(7), 40).Return(&remote.StatusPage{Account: alice}, nil)

	l, err := c.Collect(ctx, alice, CollectOptions{ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	got, err := json.Marshal(l)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(cached, got) {
		t.Errorf("ledger changed:\n%s\n%s", cached, got)
	}
}

func TestCollectKnownStatuses(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockEntityStore(ctrl)
	c, source := newCollector(t, store, 40)

	cached, err := json.Marshal(ledger.FromStatuses(alice, statuses(5, 6)))
	if err != nil {
		t.Fatal(err)
	}

	// The server ignores min_id and sends back what is already cached.
	first := page(6, 5)
	store.EXPECT().Load(gomock.Any(), storage.StatusesKey(alice)).Return(cached, nil)
	store.EXPECT().Save(gomock.Any(), storage.ProfileKey(alice), gomock.Any()).Return(nil)
	store.EXPECT().Save(gomock.Any(), storage.StatusesKey(alice), gomock.Any()).Times(0)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 2}, nil)
	source.EXPECT().ListStatuses(gomock.Any(), alice, int64(7), 40).Return(first, nil)
	source.EXPECT().NextPage(gomock.Any(), first).Return(nil, nil)
	source.EXPECT().PreviousPage(gomock.Any(), first).Return(nil, nil)

	l, err := c.Collect(ctx, alice, CollectOptions{ForceRefresh: true})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{5, 6}, timelineIDs(l)); diff != "" {
		t.Error(diff)
	}
}

func TestCollectNoStatuses(t *testing.T) {
	store := memstore.New()
	c, source := newCollector(t, store, 40)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{}, nil)

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !l.Empty() {
		t.Errorf("expected an empty ledger, got size %d", l.Size())
	}
	if _, err = c.Cached(ctx, alice); !errors.Is(err, storage.ErrNotExist) {
		t.Errorf("an empty ledger was stored: %v", err)
	}
}

func TestCollectListingFailure(t *testing.T) {
	store := memstore.New()
	storage.SaveJSON(ctx, store, storage.StatusesKey(alice), ledger.FromStatuses(alice, statuses(3)))
	c, source := newCollector(t, store, 40)

	cause := remote.NewFetchError("statuses", alice, remote.ErrTimeout)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 2}, nil)
	source.EXPECT().ListStatuses(gomock.Any(), alice, int64(4), 40).Return(nil, cause)

	l, err := c.Collect(ctx, alice, CollectOptions{ForceRefresh: true})
	if !errors.Is(err, remote.ErrTimeout) {
		t.Errorf("expected a timeout, got %v", err)
	}
	if l == nil || l.Size() != 1 {
		t.Errorf("expected the loaded ledger to be returned, got %+v", l)
	}
}

func TestCollectProfileFailure(t *testing.T) {
	c, source := newCollector(t, memstore.New(), 40)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{}, remote.ErrNotFound)

	if _, err := c.Collect(ctx, alice, CollectOptions{}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestCollectCorruptCache(t *testing.T) {
	store := memstore.New()
	store.Save(ctx, storage.StatusesKey(alice), []byte("[1, 2"))
	c, source := newCollector(t, store, 40)

	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 1}, nil)
	source.EXPECT().ListStatuses(gomock.Any(), alice, int64(0), 40).Return(page(1), nil)
	source.EXPECT().NextPage(gomock.Any(), gomock.Any()).Return(nil, nil)
	source.EXPECT().PreviousPage(gomock.Any(), gomock.Any()).Return(nil, nil)

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if l.Size() != 1 {
		t.Errorf("expected one status, got %d", l.Size())
	}
}

// The limit is not lowered when paging switches to older statuses, so the
// collector may return more statuses than it was asked for.
func TestCollectOvershoot(t *testing.T) {
	c, source := newCollector(t, memstore.New(), 3)

	first := page(11, 10)
	older := page(9, 8)
	gomock.InOrder(
		source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 10}, nil),
		source.EXPECT().ListStatuses(gomock.Any(), alice, int64(0), 3).Return(first, nil),
		source.EXPECT().NextPage(gomock.Any(), first).Return(nil, nil),
		source.EXPECT().PreviousPage(gomock.Any(), first).Return(older, nil),
	)

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int64{8, 9, 10, 11}, timelineIDs(l)); diff != "" {
		t.Error(diff)
	}
}

func TestCollectReblogs(t *testing.T) {
	c, source := newCollector(t, memstore.New(), 2)

	boosted := domain.Status{Account: "carol@far.example", ID: 3}
	first := &remote.StatusPage{Account: alice, Statuses: []domain.RemoteStatus{
		{Status: domain.Status{Account: alice.String(), ID: 21}, Reblog: &boosted},
		{Status: domain.Status{Account: alice.String(), ID: 20}},
	}}
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{StatusesCount: 2}, nil)
	source.EXPECT().ListStatuses(gomock.Any(), alice, int64(0), 2).Return(first, nil)

	l, err := c.Collect(ctx, alice, CollectOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if l.NrPosts() != 1 || l.NrReblogs() != 1 || l.MaxID != 21 {
		t.Fatalf("unexpected ledger %+v", l)
	}
	r := l.Reblogs[0]
	if r.TimelineID != 21 || r.Status.Account != "carol@far.example" || !r.Status.Fetched.Equal(clock) {
		t.Errorf("unexpected reblog entry %+v", r)
	}
	if !boosted.Fetched.IsZero() {
		t.Error("the listed status was modified")
	}
}

func newExpander(t *testing.T, skip []string) (*NeighborhoodExpander, *mocks.MockSource) {
	ctrl := gomock.NewController(t)
	source := mocks.NewMockSource(ctrl)
	store := memstore.New()
	profiles := cache.NewProfileCache(store, source, zerolog.Nop())
	relations := cache.NewRelationCache(store, source, profiles, zerolog.Nop())
	return NewNeighborhoodExpander(relations, skip, 2, zerolog.Nop()), source
}

func expectFollowing(source *mocks.MockSource, account domain.AccountID, accts ...string) {
	p := &remote.AccountPage{Account: account}
	listed := make([]remote.Listed, 0, len(accts))
	for _, a := range accts {
		listed = append(listed, remote.Listed{Acct: a})
	}
	source.EXPECT().ListFollowing(gomock.Any(), account).Return(p, nil)
	source.EXPECT().FetchAll(gomock.Any(), p).Return(listed, nil)
}

func TestExpand(t *testing.T) {
	e, source := newExpander(t, []string{"Spam.example"})

	seed := domain.NewAccount("root", "home.example")
	bob := domain.NewAccount("bob", "good.example")
	carol := domain.NewAccount("carol", "far.example")

	source.EXPECT().LookupProfile(gomock.Any(), gomock.Any()).Return(domain.Profile{}, nil).AnyTimes()
	expectFollowing(source, seed, "alice@good.example", "bob@good.example", "spammer@spam.example", "carol@far.example")
	expectFollowing(source, alice, "dave@x.example", "erin")
	expectFollowing(source, bob)
	source.EXPECT().ListFollowing(gomock.Any(), carol).Return(nil, remote.NewFetchError("following", carol, remote.ErrNotFound))

	n, err := e.Expand(ctx, seed, false)
	if err != nil {
		t.Fatal(err)
	}
	if n.Seed.Len() != 4 {
		t.Errorf("expected 4 follows in the seed, got %d", n.Seed.Len())
	}
	if len(n.Follows) != 2 {
		t.Fatalf("expected alice and bob only, got %v", n.Follows)
	}
	if _, ok := n.Follows[domain.NewAccount("spammer", "spam.example")]; ok {
		t.Error("excluded host was expanded")
	}

	expected := []domain.AccountID{domain.NewAccount("dave", "x.example"), domain.NewAccount("erin", "good.example")}
	if diff := cmp.Diff(expected, n.Follows[alice].Accounts); diff != "" {
		t.Error(diff)
	}
	if set := n.Follows[bob]; set.Accounts == nil || set.Len() != 0 {
		t.Errorf("expected an empty list for bob, got %+v", set)
	}

	oldest := n.Seed.RetrievedAt
	for _, set := range n.Follows {
		if set.RetrievedAt.Before(oldest) {
			oldest = set.RetrievedAt
		}
	}
	if !n.OldestRetrievedAt.Equal(oldest) {
		t.Errorf("expected oldest retrieval %s, got %s", oldest, n.OldestRetrievedAt)
	}
}

func TestExpandSeedUnavailable(t *testing.T) {
	e, source := newExpander(t, nil)
	source.EXPECT().LookupProfile(gomock.Any(), alice).Return(domain.Profile{}, nil)
	source.EXPECT().ListFollowing(gomock.Any(), alice).Return(nil, remote.NewFetchError("following", alice, remote.ErrTimeout))

	n, err := e.Expand(ctx, alice, false)
	if !errors.Is(err, ErrSeedUnavailable) || n != nil {
		t.Errorf("expected ErrSeedUnavailable, got %v, %v", n, err)
	}
}
