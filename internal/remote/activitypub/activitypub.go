// Package activitypub reads accounts from their ActivityPub actor and collections, for servers that
// do not implement the Mastodon client API.
package activitypub

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"code.superseriousbusiness.org/activity/streams/vocab"
	"github.com/rs/zerolog/log"
	"github.com/sidereusnuntius/fedicache/internal/conversions"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/sidereusnuntius/fedicache/internal/wellknown"
)

type Client interface {
	wellknown.JSONGetter
	Get(ctx context.Context, iri *url.URL) (vocab.Type, error)
}

type collections struct {
	following *url.URL
	followers *url.URL
	outbox    *url.URL
}

type Backend struct {
	client Client
	// Scheme is used for webfinger lookups; it is "https" unless changed.
	Scheme string

	actorsMutex sync.Mutex
	actors      map[domain.AccountID]collections
}

func New(client Client) *Backend {
	return &Backend{
		client: client,
		Scheme: "https",
		actors: make(map[domain.AccountID]collections),
	}
}

var _ remote.Source = (*Backend)(nil)

func (b *Backend) LookupProfile(ctx context.Context, account domain.AccountID) (domain.Profile, error) {
	p, err := b.lookupProfile(ctx, account)
	return p, remote.NewFetchError("lookup", account, err)
}

func (b *Backend) lookupProfile(ctx context.Context, account domain.AccountID) (p domain.Profile, err error) {
	iri, err := wellknown.Resolve(ctx, b.client, b.Scheme, account)
	if err != nil {
		return
	}
	actor, err := b.client.Get(ctx, iri)
	if err != nil {
		return
	}
	if p, err = conversions.ActorToProfile(actor); err != nil {
		return
	}
	p.Acct = account.String()

	var c collections
	c.following, c.followers, c.outbox = conversions.ActorCollections(actor)
	b.actorsMutex.Lock()
	b.actors[account] = c
	b.actorsMutex.Unlock()

	p.FollowingCount = b.totalItems(ctx, c.following)
	p.FollowersCount = b.totalItems(ctx, c.followers)
	p.StatusesCount = b.totalItems(ctx, c.outbox)
	return
}

// totalItems returns the size of a collection, or 0 when it is unknown.
func (b *Backend) totalItems(ctx context.Context, iri *url.URL) int {
	if iri == nil {
		return 0
	}
	t, err := b.client.Get(ctx, iri)
	if err != nil {
		log.Debug().Err(err).Str("collection", iri.String()).Msg("collection size unavailable")
		return 0
	}
	return max(conversions.TotalItems(t), 0)
}

func (b *Backend) collections(ctx context.Context, account domain.AccountID) (collections, error) {
	b.actorsMutex.Lock()
	c, ok := b.actors[account]
	b.actorsMutex.Unlock()
	if ok {
		return c, nil
	}

	if _, err := b.lookupProfile(ctx, account); err != nil {
		return collections{}, err
	}
	b.actorsMutex.Lock()
	defer b.actorsMutex.Unlock()
	return b.actors[account], nil
}

func (b *Backend) ListFollowing(ctx context.Context, account domain.AccountID) (*remote.AccountPage, error) {
	c, err := b.collections(ctx, account)
	if err != nil {
		return nil, remote.NewFetchError("following", account, err)
	}
	page, err := b.firstAccountPage(ctx, account, c.following)
	return page, remote.NewFetchError("following", account, err)
}

func (b *Backend) ListFollowers(ctx context.Context, account domain.AccountID) (*remote.AccountPage, error) {
	c, err := b.collections(ctx, account)
	if err != nil {
		return nil, remote.NewFetchError("followers", account, err)
	}
	page, err := b.firstAccountPage(ctx, account, c.followers)
	return page, remote.NewFetchError("followers", account, err)
}

func (b *Backend) firstAccountPage(ctx context.Context, account domain.AccountID, iri *url.URL) (*remote.AccountPage, error) {
	if iri == nil {
		return nil, fmt.Errorf("%w: collection is not published", remote.ErrUnsupported)
	}
	page, err := b.firstPage(ctx, iri)
	if err != nil {
		return nil, err
	}
	return accountPage(account, page), nil
}

// firstPage fetches a collection and returns its first page. A collection that carries its items
// directly is its own first page.
func (b *Backend) firstPage(ctx context.Context, iri *url.URL) (*conversions.Collection, error) {
	c, err := b.page(ctx, iri)
	if err != nil {
		return nil, err
	}
	switch {
	case c.FirstPage != nil:
		return c.FirstPage, nil
	case c.First != nil:
		return b.page(ctx, c.First)
	default:
		return c, nil
	}
}

func (b *Backend) page(ctx context.Context, iri *url.URL) (*conversions.Collection, error) {
	t, err := b.client.Get(ctx, iri)
	if err != nil {
		return nil, err
	}
	return conversions.ConvertCollection(t)
}

func accountPage(account domain.AccountID, c *conversions.Collection) *remote.AccountPage {
	page := &remote.AccountPage{Account: account, Next: linkString(c.Next), Prev: linkString(c.Prev)}
	for _, item := range c.Items {
		var listed remote.Listed
		if item.Object != nil {
			if p, err := conversions.ActorToProfile(item.Object); err == nil {
				listed = remote.Listed{Acct: p.Acct, Profile: &p}
			}
		}
		if listed.Acct == "" && item.IRI != nil {
			listed.Acct = conversions.AcctFromIRI(item.IRI)
		}
		if listed.Acct != "" {
			page.Accounts = append(page.Accounts, listed)
		}
	}
	return page
}

func linkString(u *url.URL) string {
	if u == nil {
		return ""
	}
	return u.String()
}

func (b *Backend) FetchAll(ctx context.Context, page *remote.AccountPage) ([]remote.Listed, error) {
	if page == nil {
		return nil, nil
	}

	all := append([]remote.Listed(nil), page.Accounts...)
	seen := map[string]struct{}{}
	for page.Next != "" {
		if _, ok := seen[page.Next]; ok {
			break
		}
		seen[page.Next] = struct{}{}

		u, err := url.Parse(page.Next)
		if err != nil {
			return all, remote.NewFetchError("page", page.Account, err)
		}
		c, err := b.page(ctx, u)
		if err != nil {
			return all, remote.NewFetchError("page", page.Account, err)
		}
		next := accountPage(page.Account, c)
		if len(next.Accounts) == 0 {
			break
		}
		all = append(all, next.Accounts...)
		page = next
	}
	return all, nil
}

// ListStatuses reads the account's outbox. Outboxes are not sized by the client, so limit is
// ignored.
func (b *Backend) ListStatuses(ctx context.Context, account domain.AccountID, minID int64, limit int) (*remote.StatusPage, error) {
	c, err := b.collections(ctx, account)
	if err != nil {
		return nil, remote.NewFetchError("statuses", account, err)
	}
	if c.outbox == nil {
		return nil, remote.NewFetchError("statuses", account, fmt.Errorf("%w: outbox is not published", remote.ErrUnsupported))
	}

	u := *c.outbox
	query := u.Query()
	query.Set("page", "true")
	if minID > 0 {
		query.Set("min_id", strconv.FormatInt(minID, 10))
	}
	u.RawQuery = query.Encode()

	first, err := b.firstPage(ctx, &u)
	if err != nil {
		return nil, remote.NewFetchError("statuses", account, err)
	}
	return b.statusPage(ctx, account, first), nil
}

func (b *Backend) NextPage(ctx context.Context, page *remote.StatusPage) (*remote.StatusPage, error) {
	if page == nil {
		return nil, nil
	}
	return b.follow(ctx, page.Account, page.Newer)
}

func (b *Backend) PreviousPage(ctx context.Context, page *remote.StatusPage) (*remote.StatusPage, error) {
	if page == nil {
		return nil, nil
	}
	return b.follow(ctx, page.Account, page.Older)
}

func (b *Backend) follow(ctx context.Context, account domain.AccountID, link string) (*remote.StatusPage, error) {
	if link == "" {
		return nil, nil
	}
	u, err := url.Parse(link)
	if err != nil {
		return nil, remote.NewFetchError("page", account, err)
	}
	c, err := b.page(ctx, u)
	if err != nil {
		return nil, remote.NewFetchError("page", account, err)
	}
	return b.statusPage(ctx, account, c), nil
}

// statusPage converts the activities of an outbox page. Activities other than posts and reblogs, and
// reblogs whose post cannot be dereferenced, are left out.
func (b *Backend) statusPage(ctx context.Context, account domain.AccountID, c *conversions.Collection) *remote.StatusPage {
	// Outboxes are ordered newest first, so prev leads to newer activities.
	page := &remote.StatusPage{Account: account, Newer: linkString(c.Prev), Older: linkString(c.Next)}
	for _, item := range c.Items {
		if item.Object == nil {
			continue
		}
		e, err := conversions.ConvertActivity(item.Object)
		if err != nil {
			if !errors.Is(err, errors.ErrUnsupported) {
				log.Debug().Err(err).Str("account", account.String()).Msg("skipping outbox item")
			}
			continue
		}

		if e.Reblogged != nil {
			obj, err := b.client.Get(ctx, e.Reblogged)
			if err != nil {
				log.Debug().Err(err).Str("object", e.Reblogged.String()).Msg("reblogged post unavailable")
				continue
			}
			reblogged, err := conversions.ConvertObject(obj)
			if err != nil {
				log.Debug().Err(err).Str("object", e.Reblogged.String()).Msg("reblogged post unavailable")
				continue
			}
			e.Status.Reblog = &reblogged
		}
		page.Statuses = append(page.Statuses, e.Status)
	}
	return page
}
