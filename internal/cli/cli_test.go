package cli

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sidereusnuntius/fedicache/internal/config"
	"github.com/sidereusnuntius/fedicache/internal/domain"
	"github.com/sidereusnuntius/fedicache/internal/storage"
	"github.com/sidereusnuntius/fedicache/internal/storage/memstore"
	"github.com/sidereusnuntius/fedicache/internal/utils"
)

func run(t *testing.T, args ...string) (string, error) {
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestKeygen(t *testing.T) {
	file := filepath.Join(t.TempDir(), "key.pem")

	out, err := run(t, "keygen", file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "PUBLIC KEY") {
		t.Errorf("public key was not printed: %s", out)
	}

	_, pub, err := utils.LoadPrivateKey(file)
	if err != nil {
		t.Fatal(err)
	}
	if pub != out {
		t.Error("printed public key does not match the stored private key")
	}
}

func TestInvalidAccount(t *testing.T) {
	_, err := run(t, "--store", "memory", "profile", "alice")
	if !errors.Is(err, domain.ErrInvalidAccount) {
		t.Errorf("expected ErrInvalidAccount, got %v", err)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	_, err := run(t, "--store", "tape", "profile", "alice@good.example")
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewApp(t *testing.T) {
	file := filepath.Join(t.TempDir(), "key.pem")
	if _, err := run(t, "keygen", file); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.ReadConfig(config.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store = config.MemoryStore
	cfg.Backend = config.ActivityPub
	cfg.KeyFile = file
	cfg.ActorURL = "https://harvester.example/users/fedicache"

	a, err := NewApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()

	if _, ok := a.Store.(*memstore.MemStore); !ok {
		t.Errorf("expected a memory store, got %T", a.Store)
	}
	if a.Actor == nil || a.Actor.Account != domain.NewAccount("fedicache", "harvester.example") {
		t.Errorf("unexpected signing actor %+v", a.Actor)
	}
}

func TestFileStoreApp(t *testing.T) {
	cfg, err := config.ReadConfig(config.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.CacheDir = t.TempDir()

	a, err := NewApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close()
	if a.Actor != nil {
		t.Error("requests should not be signed without a key")
	}
}

func TestForget(t *testing.T) {
	dir := t.TempDir()
	cfg, err := config.ReadConfig(config.New(), "")
	if err != nil {
		t.Fatal(err)
	}
	cfg.CacheDir = dir
	a, err := NewApp(cfg, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	alice := domain.NewAccount("alice", "good.example")
	if err = storage.SaveJSON(context.Background(), a.Store, storage.StatusesKey(alice), struct{}{}); err != nil {
		t.Fatal(err)
	}
	a.Close()

	t.Setenv("FEDICACHE_CACHE_DIR", dir)
	out, err := run(t, "forget", "alice@good.example")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"statuses"`) {
		t.Errorf("unexpected output %s", out)
	}
}
