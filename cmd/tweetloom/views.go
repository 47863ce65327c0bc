package main

import "time"

// Wire views mirror the daemon API payloads.

type runSummaryView struct {
	Mode       string `json:"mode"`
	Discovered int    `json:"discovered"`
	Processed  int    `json:"processed"`
	Succeeded  int    `json:"succeeded"`
	Failed     int    `json:"failed"`
}

type channelView struct {
	ChannelID string     `json:"channel_id"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	Watermark *time.Time `json:"watermark,omitempty"`
}

type videoView struct {
	VideoID       string     `json:"video_id"`
	Title         string     `json:"title"`
	Status        string     `json:"status"`
	Attempts      int        `json:"attempts"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	PublishedAt   *time.Time `json:"published_at,omitempty"`
	TranscribedAt *time.Time `json:"transcribed_at,omitempty"`
}

type healthView struct {
	Videos       int
	Discovered   int
	Transcribing int
	Transcribed  int
	VideosFailed int
	Generations  int
	Pending      int
	Generated    int
	GensFailed   int
	Tweets       int
	Drafts       int
	Published    int
	TweetsFailed int
	ActiveChans  int
	TrackedChans int
}

type statusView struct {
	Running      bool       `json:"running"`
	DBPath       string     `json:"db_path"`
	LockFilePath string     `json:"lock_file_path"`
	Health       healthView `json:"health"`
}
