package testsupport

import (
	"context"
	"testing"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedChannel creates an active channel for tests using the provided store.
func SeedChannel(t testing.TB, st *store.Store, externalID, title string) *store.Channel {
	t.Helper()

	channel, err := st.AddChannel(context.Background(), externalID, title)
	if err != nil {
		t.Fatalf("store.AddChannel: %v", err)
	}
	return channel
}

// SeedVideo inserts a discovered video for tests and returns the stored row.
func SeedVideo(t testing.TB, st *store.Store, channelID int64, externalID, title string) *store.Video {
	t.Helper()

	published := time.Now().UTC().Add(-time.Hour)
	if _, err := st.InsertDiscovered(context.Background(), channelID, externalID, title, "https://www.youtube.com/watch?v="+externalID, &published); err != nil {
		t.Fatalf("store.InsertDiscovered: %v", err)
	}
	video, err := st.VideoByExternalID(context.Background(), channelID, externalID)
	if err != nil {
		t.Fatalf("store.VideoByExternalID: %v", err)
	}
	if video == nil {
		t.Fatalf("seeded video %s not found", externalID)
	}
	return video
}

// SeedTranscribedVideo inserts a video already carrying a transcript.
func SeedTranscribedVideo(t testing.TB, st *store.Store, channelID int64, externalID, title, transcript string) *store.Video {
	t.Helper()

	video := SeedVideo(t, st, channelID, externalID, title)
	ctx := context.Background()
	if ok, err := st.ClaimTranscribing(ctx, video.ID, 3); err != nil || !ok {
		t.Fatalf("claim seeded video: ok=%v err=%v", ok, err)
	}
	if ok, err := st.MarkTranscribed(ctx, video.ID, transcript); err != nil || !ok {
		t.Fatalf("mark seeded video transcribed: ok=%v err=%v", ok, err)
	}
	refreshed, err := st.VideoByID(ctx, video.ID)
	if err != nil {
		t.Fatalf("reload seeded video: %v", err)
	}
	return refreshed
}
