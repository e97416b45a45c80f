// Package remote describes what the harvester needs from a federated server. Implementations live in
// the subpackages; the harvester only depends on Source.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var (
	ErrTimeout     = errors.New("remote call timed out")
	ErrNotFound    = errors.New("remote entity not found")
	ErrUnsupported = errors.New("not supported by the remote server")
)

// Listed is one entry of a following or followers listing. Acct is given as the server wrote it, which
// for accounts local to that server is the bare username. Profile is the account summary embedded in
// the listing, if the server provides one.
type Listed struct {
	Acct    string
	Profile *domain.Profile
}

// AccountPage is one page of a following or followers listing of Account.
type AccountPage struct {
	Account  domain.AccountID
	Accounts []Listed
	Next     string
	Prev     string
}

// StatusPage is one page of Account's timeline, newest first. Newer and Older link to the adjacent
// pages. Servers name these links differently: for Mastodon and ActivityStreams collections "next"
// leads to older statuses and "prev" to newer ones.
type StatusPage struct {
	Account  domain.AccountID
	Statuses []domain.RemoteStatus
	Newer    string
	Older    string
}

func (p *StatusPage) Empty() bool {
	return p == nil || len(p.Statuses) == 0
}

//go:generate mockgen -destination=../mocks/source.go -package=mocks . Source

type Source interface {
	LookupProfile(ctx context.Context, account domain.AccountID) (domain.Profile, error)
	// ListFollowing returns the first page of the accounts followed by account.
	ListFollowing(ctx context.Context, account domain.AccountID) (*AccountPage, error)
	// ListFollowers returns the first page of the accounts following account.
	ListFollowers(ctx context.Context, account domain.AccountID) (*AccountPage, error)
	// ListStatuses returns the first page of account's statuses with an id greater than minID.
	ListStatuses(ctx context.Context, account domain.AccountID, minID int64, limit int) (*StatusPage, error)
	// FetchAll walks the listing from page on and returns every entry of it, page included.
	FetchAll(ctx context.Context, page *AccountPage) ([]Listed, error)
	// NextPage returns the page of statuses newer than page. It returns nil, or an empty page, when
	// there is none.
	NextPage(ctx context.Context, page *StatusPage) (*StatusPage, error)
	// PreviousPage returns the page of statuses older than page. It returns nil, or an empty page,
	// when there is none.
	PreviousPage(ctx context.Context, page *StatusPage) (*StatusPage, error)
}

// FetchError reports a failed remote call. errors.Is(err, ErrTimeout) holds when the call ran out of
// time.
type FetchError struct {
	Op      string
	Account domain.AccountID
	Err     error
}

func NewFetchError(op string, account domain.AccountID, err error) error {
	if err == nil {
		return nil
	}
	var fe *FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &FetchError{Op: op, Account: account, Err: err}
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Op, e.Account, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrTimeout && e.Timeout()
}

func (e *FetchError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) || errors.Is(e.Err, ErrTimeout) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}
