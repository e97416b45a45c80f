package conversions

import (
	"context"
	"crypto/rsa"
	_ "embed"
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"code.superseriousbusiness.org/activity/streams"
	"code.superseriousbusiness.org/activity/streams/vocab"
	"github.com/google/go-cmp/cmp"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/utils"
)

//go:embed testdata/outbox_page.json
var outboxPage []byte

//go:embed testdata/actor.json
var actorDoc []byte

func toType(t *testing.T, data []byte) vocab.Type {
	var props map[string]any
	if err := json.Unmarshal(data, &props); err != nil {
		t.Fatal(err)
	}
	obj, err := streams.ToType(context.Background(), props)
	if err != nil {
		t.Fatal("unexpected error:", err)
	}
	return obj
}

func toURL(u string) *url.URL {
	url, _ := url.Parse(u)
	return url
}

func sameURL(a, b *url.URL) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

func toTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func TestConvertOutboxPage(t *testing.T) {
	page, err := ConvertCollection(toType(t, outboxPage))
	if err != nil {
		t.Fatal(err)
	}

	if page.Next == nil || page.Next.Query().Get("max_id") != "110000000000000001" {
		t.Errorf("unexpected next link %v", page.Next)
	}
	if page.Prev == nil || page.Prev.Query().Get("min_id") != "110000000000000002" {
		t.Errorf("unexpected prev link %v", page.Prev)
	}
	if len(page.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(page.Items))
	}

	cases := []struct {
		name      string
		expected  domain.RemoteStatus
		reblogged *url.URL
	}{
		{
			"announce",
			domain.RemoteStatus{Status: domain.Status{
				Account:   "alice@good.example",
				ID:        110000000000000002,
				URL:       "https://good.example/users/alice/statuses/110000000000000002/activity",
				CreatedAt: toTime("2024-03-01T12:00:00Z"),
			}},
			toURL("https://other.example/users/bob/statuses/109999999999999999"),
		},
		{
			"create",
			domain.RemoteStatus{Status: domain.Status{
				Account:           "alice@good.example",
				ID:                110000000000000001,
				URL:               "https://good.example/@alice/110000000000000001",
				CreatedAt:         toTime("2024-03-01T11:00:00Z"),
				SpoilerText:       "cw",
				Content:           "<p>hello @bob</p>",
				Language:          "en",
				Mentions:          []string{"bob@other.example"},
				MediaDescriptions: []string{"a cat"},
				RepliesCount:      2,
			}},
			nil,
		},
	}

	for i, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e, err := ConvertActivity(page.Items[i].Object)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(c.expected, e.Status); diff != "" {
				t.Error(diff)
			}
			if !sameURL(c.reblogged, e.Reblogged) {
				t.Errorf("expected reblogged %v, got %v", c.reblogged, e.Reblogged)
			}
		})
	}
}

func TestActorToProfile(t *testing.T) {
	actor := toType(t, actorDoc)

	p, err := ActorToProfile(actor)
	if err != nil {
		t.Fatal(err)
	}
	expected := domain.Profile{
		ID:          "https://Good.Example/users/alice",
		Username:    "alice",
		Acct:        "alice@good.example",
		DisplayName: "Alice",
		Note:        "<p>about me</p>",
		URL:         "https://good.example/@alice",
		CreatedAt:   toTime("2020-01-01T00:00:00Z"),
	}
	if diff := cmp.Diff(expected, p); diff != "" {
		t.Error(diff)
	}

	following, followers, outbox := ActorCollections(actor)
	for name, got := range map[string]*url.URL{"following": following, "followers": followers, "outbox": outbox} {
		if got == nil || got.String() != "https://good.example/users/alice/"+name {
			t.Errorf("unexpected %s collection %v", name, got)
		}
	}
}

func TestServiceActorKey(t *testing.T) {
	pub, _, err := utils.GenerateKeysPem(1024)
	if err != nil {
		t.Fatal(err)
	}
	id := toURL("https://harvester.example/actor")

	props, err := streams.Serialize(ServiceActor(id, "harvester", pub))
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(props)
	if err != nil {
		t.Fatal(err)
	}
	actor := toType(t, data)

	key, err := PublicKey(actor)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := key.(*rsa.PublicKey); !ok {
		t.Errorf("expected an RSA key, got %T", key)
	}

	p, err := ActorToProfile(actor)
	if err != nil {
		t.Fatal(err)
	}
	if !p.Bot || p.Acct != "harvester@harvester.example" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestStatusID(t *testing.T) {
	published := toTime("2024-03-01T11:00:00Z")
	cases := []struct {
		name   string
		iri    string
		expect int64
	}{
		{"numeric id", "https://good.example/users/alice/statuses/110000000000000001", 110000000000000001},
		{"activity suffix", "https://good.example/users/alice/statuses/110000000000000001/activity", 110000000000000001},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := StatusID(toURL(c.iri), published); got != c.expect {
				t.Errorf("expected %d, got %d", c.expect, got)
			}
		})
	}

	a := StatusID(toURL("https://other.example/notes/abc"), published)
	b := StatusID(toURL("https://other.example/notes/abc"), published.Add(time.Second))
	if a >= b {
		t.Errorf("derived ids do not follow publication time: %d >= %d", a, b)
	}
	if a>>16 != published.UnixMilli() {
		t.Errorf("derived id %d does not carry the publication time", a)
	}

	for _, undated := range []time.Time{{}, time.Unix(-1, 0)} {
		id := StatusID(toURL("https://other.example/notes/abc"), undated)
		if id < 0 || id >= 1<<16 || id >= a {
			t.Errorf("undated status got id %d", id)
		}
	}
}

func TestAcctFromIRI(t *testing.T) {
	cases := map[string]string{
		"https://good.example/users/alice": "alice@good.example",
		"https://Good.Example/@bob":        "bob@good.example",
		"https://good.example/u/carol/":    "carol@good.example",
		"https://good.example/":            "",
	}
	for iri, expect := range cases {
		if got := AcctFromIRI(toURL(iri)); got != expect {
			t.Errorf("%s: expected %q, got %q", iri, expect, got)
		}
	}
}
