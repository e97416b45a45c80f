package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidAccount = errors.New("invalid account identifier")

// AccountID identifies an account on a remote server. It is comparable and is used as the cache key
// for every entity the harvester stores.
type AccountID struct {
	User string
	Host string
}

func NewAccount(user, host string) AccountID {
	return AccountID{
		User: strings.TrimSpace(user),
		Host: strings.ToLower(strings.TrimSpace(host)),
	}
}

// ParseAccount parses "user@host" or "@user@host".
func ParseAccount(s string) (AccountID, error) {
	user, host, ok := strings.Cut(strings.TrimPrefix(strings.TrimSpace(s), "@"), "@")
	if !ok || user == "" || host == "" || strings.Contains(host, "@") {
		return AccountID{}, fmt.Errorf("%w: %q", ErrInvalidAccount, s)
	}
	return NewAccount(user, host), nil
}

// ParseAccountRelative parses an acct string as returned by a server. Accounts local to that server
// are listed by their bare username, in which case the host is the one given.
func ParseAccountRelative(s, host string) (AccountID, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "@")
	if s != "" && !strings.Contains(s, "@") {
		if host == "" {
			return AccountID{}, fmt.Errorf("%w: %q has no host", ErrInvalidAccount, s)
		}
		return NewAccount(s, host), nil
	}
	return ParseAccount(s)
}

func (a AccountID) String() string {
	return a.User + "@" + a.Host
}

func (a AccountID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AccountID) UnmarshalText(text []byte) error {
	id, err := ParseAccount(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}
