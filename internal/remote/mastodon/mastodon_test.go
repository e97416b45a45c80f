package mastodon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/sidereusnuntius/fedicache/internal/client"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/remote"
)

var ctx = context.Background()

const aliceJSON = `{"id": "1", "username": "alice", "acct": "alice", "display_name": "Alice",
	"url": "https://good.example/@alice", "created_at": "2020-01-01T00:00:00.000Z",
	"followers_count": 10, "following_count": 3, "statuses_count": 3}`

func server(t *testing.T) (*Backend, domain.AccountID) {
	r := chi.NewRouter()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	u, _ := url.Parse(srv.URL)
	base := srv.URL + "/api/v1/accounts/1"

	r.Get("/api/v1/accounts/lookup", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("acct") != "alice" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(aliceJSON))
	})
	r.Get("/api/v1/accounts/1/following", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max_id") == "2" {
			w.Write([]byte(`[{"id": "4", "acct": "dave@x.example"}]`))
			return
		}
		if r.URL.Query().Get("limit") != "80" {
			t.Errorf("unexpected page size %q", r.URL.Query().Get("limit"))
		}
		w.Header().Set("Link", fmt.Sprintf(`<%s/following?max_id=2>; rel="next"`, base))
		w.Write([]byte(`[{"id": "2", "acct": "bob", "username": "bob"}, {"id": "3", "acct": "carol@far.example"}]`))
	})
	r.Get("/api/v1/accounts/1/statuses", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("min_id") != "5" || q.Get("limit") != "2" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		w.Header().Set("Link", fmt.Sprintf(`<%[1]s/statuses?max_id=11>; rel="next", <%[1]s/statuses?min_id=12>; rel="prev"`, base))
		w.Write([]byte(`[
			{"id": "12", "created_at": "2024-03-01T12:00:00.000Z", "content": "<p>hi</p>", "language": "en",
			 "uri": "https://good.example/users/alice/statuses/12", "url": "https://good.example/@alice/12",
			 "account": {"id": "1", "acct": "alice"},
			 "tags": [{"name": "go"}], "mentions": [{"acct": "bob"}],
			 "media_attachments": [{"description": "a cat"}, {"description": null}]},
			{"id": "11", "created_at": "2024-03-01T11:00:00.000Z", "content": "",
			 "account": {"id": "1", "acct": "alice"},
			 "reblog": {"id": "7", "created_at": "2024-02-01T00:00:00.000Z", "content": "<p>boosted</p>",
			            "account": {"id": "3", "acct": "carol@far.example"}}}
		]`))
	})

	c, err := client.New(&http.Client{}, nil, nil, client.Options{})
	if err != nil {
		t.Fatal(err)
	}
	b := New(c)
	b.Scheme = "http"
	return b, domain.NewAccount("alice", u.Host)
}

func TestParseLink(t *testing.T) {
	cases := []struct {
		name   string
		header string
		next   string
		prev   string
	}{
		{"empty", "", "", ""},
		{"both", `<https://a.example/n>; rel="next", <https://a.example/p>; rel="prev"`, "https://a.example/n", "https://a.example/p"},
		{"previous spelled out", `<https://a.example/p>; rel="previous"`, "", "https://a.example/p"},
		{"unquoted", `<https://a.example/n>; rel=next`, "https://a.example/n", ""},
		{"other relations", `<https://a.example/x>; rel="self"`, "", ""},
		{"several relations", `<https://a.example/p>; rel="prev first"`, "", "https://a.example/p"},
		{"parameters", `<https://a.example/n>; title="older"; rel="next"`, "https://a.example/n", ""},
		{"malformed", `https://a.example/n; rel="next"`, "", ""},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next, prev := parseLink(c.header)
			if next != c.next || prev != c.prev {
				t.Errorf("expected (%q, %q), got (%q, %q)", c.next, c.prev, next, prev)
			}
		})
	}
}

func TestLookupProfile(t *testing.T) {
	b, alice := server(t)

	p, err := b.LookupProfile(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if p.Acct != alice.String() {
		t.Errorf("acct was not made absolute: %s", p.Acct)
	}
	if p.StatusesCount != 3 || p.FollowersCount != 10 {
		t.Errorf("unexpected counters %+v", p)
	}
}

func TestLookupNotFound(t *testing.T) {
	b, alice := server(t)
	nobody := domain.NewAccount("nobody", alice.Host)

	_, err := b.LookupProfile(ctx, nobody)
	if !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var fe *remote.FetchError
	if !errors.As(err, &fe) || fe.Account != nobody {
		t.Errorf("expected a FetchError for %s, got %v", nobody, err)
	}
}

func TestFetchAllFollowing(t *testing.T) {
	b, alice := server(t)

	page, err := b.ListFollowing(ctx, alice)
	if err != nil {
		t.Fatal(err)
	}
	if page.Next == "" {
		t.Fatal("first page has no next link")
	}

	all, err := b.FetchAll(ctx, page)
	if err != nil {
		t.Fatal(err)
	}

	var accts []string
	for _, l := range all {
		accts = append(accts, l.Acct)
	}
	if diff := cmp.Diff([]string{"bob", "carol@far.example", "dave@x.example"}, accts); diff != "" {
		t.Error(diff)
	}
	if p := all[0].Profile; p == nil || p.Acct != "bob@"+alice.Host {
		t.Errorf("embedded profile was not normalized: %+v", p)
	}
}

func TestListStatuses(t *testing.T) {
	b, alice := server(t)

	page, err := b.ListStatuses(ctx, alice, 5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(page.Statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(page.Statuses))
	}

	post := page.Statuses[0]
	if post.IsReblog() || post.ID != 12 || post.Account != alice.String() {
		t.Errorf("unexpected post %+v", post)
	}
	if diff := cmp.Diff([]string{"bob@" + alice.Host}, post.Mentions); diff != "" {
		t.Error(diff)
	}
	if diff := cmp.Diff([]string{"a cat"}, post.MediaDescriptions); diff != "" {
		t.Error(diff)
	}
	if post.URL != "https://good.example/@alice/12" || post.Language != "en" {
		t.Errorf("unexpected url or language: %s %s", post.URL, post.Language)
	}

	reblog := page.Statuses[1]
	if !reblog.IsReblog() || reblog.ID != 11 {
		t.Fatalf("expected reblog 11, got %+v", reblog)
	}
	if reblog.Reblog.ID != 7 || reblog.Reblog.Account != "carol@far.example" {
		t.Errorf("unexpected reblogged post %+v", reblog.Reblog)
	}

	older, _ := url.Parse(page.Older)
	newer, _ := url.Parse(page.Newer)
	if older.Query().Get("max_id") != "11" || newer.Query().Get("min_id") != "12" {
		t.Errorf("unexpected links older=%s newer=%s", page.Older, page.Newer)
	}
}

func TestPageWithoutLinks(t *testing.T) {
	b, alice := server(t)
	page := &remote.StatusPage{Account: alice}

	next, err := b.NextPage(ctx, page)
	if err != nil || next != nil {
		t.Errorf("expected no page, got %v, %v", next, err)
	}
	prev, err := b.PreviousPage(ctx, nil)
	if err != nil || prev != nil {
		t.Errorf("expected no page, got %v, %v", prev, err)
	}
}
