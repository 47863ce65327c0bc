package main

import (
	"testing"
)

func isolateEnv(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("YOUTUBE_API_KEY", "test")
	t.Setenv("OPENAI_API_KEY", "test")
}

func TestRootShowsHelpWithoutArgs(t *testing.T) {
	isolateEnv(t)

	out, _, err := runCLI(t, nil, "", "")
	if err != nil {
		t.Fatalf("root command: %v", err)
	}
	requireContains(t, out, "Tweetloom CLI")
	requireContains(t, out, "Available Commands")
}

func TestUnknownCommandFails(t *testing.T) {
	isolateEnv(t)

	_, _, err := runCLI(t, []string{"definitely-not-a-command"}, "", "")
	if err == nil {
		t.Fatal("expected an error for an unknown command")
	}
}
