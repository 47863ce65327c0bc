package main

import (
	"context"
	"testing"

	"tweetloom/internal/logging"
	"tweetloom/internal/secrets"
	"tweetloom/internal/testsupport"
)

func TestBuildDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Twitter.AccessToken = "tok"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	d, err := buildDaemon(context.Background(), cfg, st, logging.NewNop())
	if err != nil {
		t.Fatalf("buildDaemon: %v", err)
	}
	if d == nil {
		t.Fatal("expected a daemon")
	}
	if d.Running() {
		t.Fatal("daemon must not run before Start")
	}
}

func TestBuildPublisherRequiresCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := buildPublisher(context.Background(), cfg, st); err == nil {
		t.Fatal("expected an error without any access token")
	}
}

func TestBuildPublisherPrefersStoredCredentials(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Secrets.Passphrase = "test-pass"
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	st := testsupport.MustOpenStore(t, cfg)

	box, err := secrets.NewBox(cfg.Secrets.Passphrase)
	if err != nil {
		t.Fatalf("NewBox: %v", err)
	}
	sealed, err := box.Seal([]byte("user-tok"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := st.UpsertUser(context.Background(), "alice", sealed); err != nil {
		t.Fatalf("UpsertUser: %v", err)
	}

	publisher, err := buildPublisher(context.Background(), cfg, st)
	if err != nil {
		t.Fatalf("buildPublisher: %v", err)
	}
	if publisher == nil {
		t.Fatal("expected a publisher")
	}
}
