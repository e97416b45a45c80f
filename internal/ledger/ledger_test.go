package ledger

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var alice = domain.NewAccount("alice", "good.example")

var ignoreIndex = cmp.Options{
	cmpopts.IgnoreUnexported(Ledger{}),
	cmpopts.EquateEmpty(),
}

func post(id int64) domain.RemoteStatus {
	return domain.RemoteStatus{
		Status: domain.Status{
			Account: alice.String(),
			ID:      id,
			Content: "post",
		},
	}
}

func reblog(id, inner int64) domain.RemoteStatus {
	return domain.RemoteStatus{
		Status: domain.Status{
			Account: alice.String(),
			ID:      id,
		},
		Reblog: &domain.Status{
			Account: "bob@other.example",
			ID:      inner,
			Content: "reblogged",
		},
	}
}

func TestAppendIdempotent(t *testing.T) {
	once := New(alice)
	once.Append(post(10))

	twice := New(alice)
	if !twice.Append(post(10)) {
		t.Error("first append reported a duplicate")
	}
	if twice.Append(post(10)) {
		t.Error("second append was not reported as a duplicate")
	}

	if twice.Size() != 1 {
		t.Errorf("expected size 1, got %d", twice.Size())
	}
	if diff := cmp.Diff(once, twice, ignoreIndex); diff != "" {
		t.Error(diff)
	}
}

func TestAppendWatermarks(t *testing.T) {
	l := New(alice)
	if l.MaxID != 0 || l.MinID != unsetMin {
		t.Fatalf("unexpected sentinels: max=%d min=%d", l.MaxID, l.MinID)
	}

	for _, id := range []int64{12, 10, 11} {
		l.Append(post(id))
	}
	if l.MaxID != 12 || l.MinID != 10 {
		t.Errorf("expected max=12 min=10, got max=%d min=%d", l.MaxID, l.MinID)
	}

	var ids []int64
	for _, e := range l.Posts {
		ids = append(ids, e.TimelineID)
	}
	if diff := cmp.Diff([]int64{10, 11, 12}, ids); diff != "" {
		t.Errorf("posts are not ordered by id: %s", diff)
	}
}

func TestReblogRouting(t *testing.T) {
	l := New(alice)
	l.Append(reblog(20, 5))

	if l.NrPosts() != 0 {
		t.Errorf("reblog ended up in the posts table")
	}
	if l.NrReblogs() != 1 {
		t.Fatalf("expected 1 reblog, got %d", l.NrReblogs())
	}

	e := l.Reblogs[0]
	if e.Status.ID != 5 || e.Status.Account != "bob@other.example" {
		t.Errorf("reblogs table holds %+v instead of the inner post", e.Status)
	}
	if e.TimelineID != 20 || l.MaxID != 20 || l.MinID != 20 {
		t.Errorf("watermarks must follow the timeline id: entry=%d max=%d min=%d", e.TimelineID, l.MaxID, l.MinID)
	}
}

func TestMergeIdentity(t *testing.T) {
	l := New(alice)
	l.Append(post(3))
	l.Append(reblog(4, 1))
	l.Append(post(7))

	merged, err := Merge(l, New(alice))
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(l, merged, ignoreIndex); diff != "" {
		t.Error(diff)
	}
}

func TestMergeWatermarks(t *testing.T) {
	cases := []struct {
		name string
		a    []int64
		b    []int64
	}{
		{"disjoint", []int64{1, 2}, []int64{5, 9}},
		{"interleaved", []int64{1, 8}, []int64{3, 4}},
		{"overlapping", []int64{2, 3, 4}, []int64{3, 4, 5}},
		{"one empty", nil, []int64{6}},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			a, b := New(alice), New(alice)
			for _, id := range c.a {
				a.Append(post(id))
			}
			for _, id := range c.b {
				b.Append(post(id))
			}

			for _, pair := range [][2]*Ledger{{a, b}, {b, a}} {
				merged, err := Merge(pair[0], pair[1])
				if err != nil {
					t.Fatal(err)
				}
				if merged.MaxID != max(a.MaxID, b.MaxID) {
					t.Errorf("expected max %d, got %d", max(a.MaxID, b.MaxID), merged.MaxID)
				}
				if merged.MinID != min(a.MinID, b.MinID) {
					t.Errorf("expected min %d, got %d", min(a.MinID, b.MinID), merged.MinID)
				}
			}
		})
	}
}

func TestMergeSkipsDuplicates(t *testing.T) {
	a, b := New(alice), New(alice)
	a.Append(post(1))
	a.Append(post(2))
	b.Append(post(2))
	b.Append(post(3))

	merged, err := Merge(b, a)
	if err != nil {
		t.Fatal(err)
	}
	if merged.Size() != 3 {
		t.Errorf("expected 3 entries, got %d", merged.Size())
	}
	if merged.Append(post(3)) {
		t.Error("merged ledger accepted an id it already holds")
	}
}

func TestMergeMismatch(t *testing.T) {
	other := New(domain.NewAccount("bob", "good.example"))
	_, err := Merge(New(alice), other)
	if !errors.Is(err, ErrLedgerMismatch) {
		t.Errorf("expected ErrLedgerMismatch, got %v", err)
	}
}
