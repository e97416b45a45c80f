package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sidereusnuntius/fedicache/internal/domain"
)

var alice = domain.NewAccount("alice", "good.example")

func TestFetchErrorTimeout(t *testing.T) {
	cases := []struct {
		name    string
		err     error
		timeout bool
	}{
		{"deadline", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), true},
		{"not found", ErrNotFound, false},
		{"other", errors.New("boom"), false},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := NewFetchError("lookup", alice, c.err)
			if got := errors.Is(err, ErrTimeout); got != c.timeout {
				t.Errorf("expected errors.Is(err, ErrTimeout) == %v", c.timeout)
			}
			var fe *FetchError
			if !errors.As(err, &fe) {
				t.Fatalf("expected a *FetchError, got %T", err)
			}
			if !errors.Is(err, c.err) {
				t.Error("cause is not reachable through Unwrap")
			}
		})
	}
}

func TestNewFetchErrorKeepsExisting(t *testing.T) {
	inner := NewFetchError("statuses", alice, ErrNotFound)
	outer := NewFetchError("collect", alice, inner)
	if outer != inner {
		t.Error("an existing FetchError was wrapped again")
	}
	if NewFetchError("noop", alice, nil) != nil {
		t.Error("nil cause produced an error")
	}
}
