// Package mastodon reads accounts through the Mastodon client API, which most fediverse servers
// implement.
package mastodon

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/remote"
	"github.com/tomnomnom/linkheader"
)

const (
	accountsPageSize = 80
	accept           = "application/json"
)

type JSONGetter interface {
	GetJSON(ctx context.Context, iri *url.URL, accept string, v any) (http.Header, error)
}

type Backend struct {
	client JSONGetter
	// Scheme is used to build the API urls; it is "https" unless changed.
	Scheme string

	idsMutex sync.Mutex
	ids      map[domain.AccountID]string
}

func New(client JSONGetter) *Backend {
	return &Backend{
		client: client,
		Scheme: "https",
		ids:    make(map[domain.AccountID]string),
	}
}

var _ remote.Source = (*Backend)(nil)

func (b *Backend) endpoint(host, path string, query url.Values) *url.URL {
	return &url.URL{
		Scheme:   b.Scheme,
		Host:     host,
		Path:     path,
		RawQuery: query.Encode(),
	}
}

func (b *Backend) LookupProfile(ctx context.Context, account domain.AccountID) (domain.Profile, error) {
	var a apiAccount
	u := b.endpoint(account.Host, "/api/v1/accounts/lookup", url.Values{"acct": {account.User}})
	if _, err := b.client.GetJSON(ctx, u, accept, &a); err != nil {
		return domain.Profile{}, remote.NewFetchError("lookup", account, err)
	}

	b.idsMutex.Lock()
	b.ids[account] = a.ID
	b.idsMutex.Unlock()

	return a.profile(account.Host), nil
}

// accountID returns the server-local id of account, looking it up if it is not known yet.
func (b *Backend) accountID(ctx context.Context, account domain.AccountID) (string, error) {
	b.idsMutex.Lock()
	id, ok := b.ids[account]
	b.idsMutex.Unlock()
	if ok {
		return id, nil
	}

	if _, err := b.LookupProfile(ctx, account); err != nil {
		return "", err
	}
	b.idsMutex.Lock()
	defer b.idsMutex.Unlock()
	return b.ids[account], nil
}

func (b *Backend) ListFollowing(ctx context.Context, account domain.AccountID) (*remote.AccountPage, error) {
	return b.listAccounts(ctx, account, "following")
}

func (b *Backend) ListFollowers(ctx context.Context, account domain.AccountID) (*remote.AccountPage, error) {
	return b.listAccounts(ctx, account, "followers")
}

func (b *Backend) listAccounts(ctx context.Context, account domain.AccountID, relation string) (*remote.AccountPage, error) {
	id, err := b.accountID(ctx, account)
	if err != nil {
		return nil, err
	}

	u := b.endpoint(account.Host, "/api/v1/accounts/"+url.PathEscape(id)+"/"+relation,
		url.Values{"limit": {strconv.Itoa(accountsPageSize)}})
	page, err := b.accountPage(ctx, account, u)
	if err != nil {
		return nil, remote.NewFetchError(relation, account, err)
	}
	return page, nil
}

func (b *Backend) accountPage(ctx context.Context, account domain.AccountID, u *url.URL) (*remote.AccountPage, error) {
	var accounts []apiAccount
	header, err := b.client.GetJSON(ctx, u, accept, &accounts)
	if err != nil {
		return nil, err
	}

	page := &remote.AccountPage{Account: account, Accounts: make([]remote.Listed, 0, len(accounts))}
	page.Next, page.Prev = parseLink(header.Get("Link"))
	for _, a := range accounts {
		p := a.profile(account.Host)
		page.Accounts = append(page.Accounts, remote.Listed{Acct: a.Acct, Profile: &p})
	}
	return page, nil
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
		next, err := b.accountPage(ctx, page.Account, u)
		if err != nil {
			return all, remote.NewFetchError("page", page.Account, err)
		}
		if len(next.Accounts) == 0 {
			break
		}
		all = append(all, next.Accounts...)
		page = next
	}
	return all, nil
}

func (b *Backend) ListStatuses(ctx context.Context, account domain.AccountID, minID int64, limit int) (*remote.StatusPage, error) {
	id, err := b.accountID(ctx, account)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	if minID > 0 {
		query.Set("min_id", strconv.FormatInt(minID, 10))
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	page, err := b.statusPage(ctx, account, b.endpoint(account.Host, "/api/v1/accounts/"+url.PathEscape(id)+"/statuses", query))
	if err != nil {
		return nil, remote.NewFetchError("statuses", account, err)
	}
	return page, nil
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

	page, err := b.statusPage(ctx, account, u)
	if err != nil {
		return nil, remote.NewFetchError("page", account, err)
	}
	return page, nil
}

func (b *Backend) statusPage(ctx context.Context, account domain.AccountID, u *url.URL) (*remote.StatusPage, error) {
	var statuses []apiStatus
	header, err := b.client.GetJSON(ctx, u, accept, &statuses)
	if err != nil {
		return nil, err
	}

	page := &remote.StatusPage{Account: account, Statuses: make([]domain.RemoteStatus, 0, len(statuses))}
	// next carries max_id and leads to older statuses, prev carries min_id.
	page.Older, page.Newer = parseLink(header.Get("Link"))
	for _, s := range statuses {
		rs, err := s.remoteStatus(account.Host)
		if err != nil {
			return nil, err
		}
		page.Statuses = append(page.Statuses, rs)
	}
	return page, nil
}

// parseLink extracts the next and prev targets of a Link header.
func parseLink(header string) (next, prev string) {
	for _, link := range linkheader.Parse(header) {
		if link.URL == "" {
			continue
		}
		for _, rel := range strings.Fields(link.Rel) {
			switch strings.ToLower(rel) {
			case "next":
				next = link.URL
			case "prev", "previous":
				prev = link.URL
			}
		}
	}
	return
}

type apiAccount struct {
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

// profile converts the account. Acct is made absolute using host, the server that returned it.
func (a apiAccount) profile(host string) domain.Profile {
	acct := a.Acct
	if id, err := domain.ParseAccountRelative(a.Acct, host); err == nil {
		acct = id.String()
	}
	return domain.Profile{
		ID:             a.ID,
		Username:       a.Username,
		Acct:           acct,
		DisplayName:    a.DisplayName,
		Note:           a.Note,
		URL:            a.URL,
		Bot:            a.Bot,
		Locked:         a.Locked,
		CreatedAt:      a.CreatedAt,
		FollowersCount: a.FollowersCount,
		FollowingCount: a.FollowingCount,
		StatusesCount:  a.StatusesCount,
	}
}

type apiStatus struct {
	ID                 string     `json:"id"`
	CreatedAt          time.Time  `json:"created_at"`
	InReplyToAccountID *string    `json:"in_reply_to_account_id"`
	SpoilerText        string     `json:"spoiler_text"`
	Language           *string    `json:"language"`
	URL                *string    `json:"url"`
	URI                string     `json:"uri"`
	RepliesCount       int        `json:"replies_count"`
	ReblogsCount       int        `json:"reblogs_count"`
	FavouritesCount    int        `json:"favourites_count"`
	Content            string     `json:"content"`
	Reblog             *apiStatus `json:"reblog"`
	Account            apiAccount `json:"account"`
	MediaAttachments   []struct {
		Description *string `json:"description"`
	} `json:"media_attachments"`
	Mentions []struct {
		Acct string `json:"acct"`
	} `json:"mentions"`
	Tags []struct {
		Name string `json:"name"`
	} `json:"tags"`
}

func (s apiStatus) status(host string) (domain.Status, error) {
	id, err := strconv.ParseInt(s.ID, 10, 64)
	if err != nil {
		return domain.Status{}, fmt.Errorf("status id %q: %w", s.ID, err)
	}

	st := domain.Status{
		Account:         s.Account.profile(host).Acct,
		ID:              id,
		URL:             s.URI,
		CreatedAt:       s.CreatedAt,
		SpoilerText:     s.SpoilerText,
		Content:         s.Content,
		ReblogsCount:    s.ReblogsCount,
		FavouritesCount: s.FavouritesCount,
		RepliesCount:    s.RepliesCount,
	}
	if s.URL != nil {
		st.URL = *s.URL
	}
	if s.InReplyToAccountID != nil {
		st.InReplyToAccountID = *s.InReplyToAccountID
	}
	if s.Language != nil {
		st.Language = *s.Language
	}
	for _, t := range s.Tags {
		st.Tags = append(st.Tags, t.Name)
	}
	for _, m := range s.Mentions {
		acct := m.Acct
		if a, err := domain.ParseAccountRelative(m.Acct, host); err == nil {
			acct = a.String()
		}
		st.Mentions = append(st.Mentions, acct)
	}
	for _, m := range s.MediaAttachments {
		if m.Description != nil && *m.Description != "" {
			st.MediaDescriptions = append(st.MediaDescriptions, *m.Description)
		}
	}
	return st, nil
}

func (s apiStatus) remoteStatus(host string) (domain.RemoteStatus, error) {
	st, err := s.status(host)
	if err != nil {
		return domain.RemoteStatus{}, err
	}

	rs := domain.RemoteStatus{Status: st}
	if s.Reblog != nil {
		inner, err := s.Reblog.status(host)
		if err != nil {
			return domain.RemoteStatus{}, err
		}
		rs.Reblog = &inner
	}
	return rs, nil
}
