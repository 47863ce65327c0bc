package store

import "time"

// VideoStatus represents the lifecycle of a discovered video.
type VideoStatus string

const (
	VideoDiscovered   VideoStatus = "discovered"
	VideoTranscribing VideoStatus = "transcribing"
	VideoTranscribed  VideoStatus = "transcribed"
	VideoFailed       VideoStatus = "failed"
)

// GenerationStatus represents the lifecycle of a tweet generation.
type GenerationStatus string

const (
	GenerationPending   GenerationStatus = "pending"
	GenerationGenerated GenerationStatus = "generated"
	GenerationFailed    GenerationStatus = "failed"
)

// TweetStatus represents the lifecycle of a composed tweet.
type TweetStatus string

const (
	TweetDraft     TweetStatus = "draft"
	TweetPublished TweetStatus = "published"
	TweetFailed    TweetStatus = "failed"
)

var videoStatusSet = map[VideoStatus]struct{}{
	VideoDiscovered:   {},
	VideoTranscribing: {},
	VideoTranscribed:  {},
	VideoFailed:       {},
}

// ParseVideoStatus validates a raw status string.
func ParseVideoStatus(value string) (VideoStatus, bool) {
	status := VideoStatus(value)
	_, ok := videoStatusSet[status]
	return status, ok
}

var generationStatusSet = map[GenerationStatus]struct{}{
	GenerationPending:   {},
	GenerationGenerated: {},
	GenerationFailed:    {},
}

// ParseGenerationStatus validates a raw generation status string.
func ParseGenerationStatus(value string) (GenerationStatus, bool) {
	status := GenerationStatus(value)
	_, ok := generationStatusSet[status]
	return status, ok
}

// Channel is a tracked YouTube channel.
type Channel struct {
	ID         int64
	ExternalID string
	Title      string
	Active     bool
	Watermark  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Video is a discovered channel video persisted in SQLite.
type Video struct {
	ID                int64
	ChannelID         int64
	ExternalID        string
	Title             string
	URL               string
	Status            VideoStatus
	Transcript        string
	ErrorMessage      string
	AttemptCount      int
	SourcePublishedAt *time.Time
	DiscoveredAt      time.Time
	TranscribedAt     *time.Time
	LastHeartbeat     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// TweetGeneration is one attempt batch at turning a transcript into tweet text.
type TweetGeneration struct {
	ID            int64
	VideoID       int64
	Status        GenerationStatus
	Prompt        string
	Model         string
	ErrorMessage  string
	AttemptCount  int
	LastHeartbeat *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Tweet is a composed tweet draft or its published record.
type Tweet struct {
	ID           int64
	GenerationID int64
	VideoID      int64
	Position     int
	Text         string
	Status       TweetStatus
	ExternalID   string
	ErrorMessage string
	PublishedAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// User holds sealed publishing credentials for a Twitter account.
type User struct {
	ID          int64
	Handle      string
	Credentials []byte
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HealthSummary describes aggregated counts per key lifecycle states.
type HealthSummary struct {
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

// DatabaseHealth captures diagnostic information about the database file.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    string
	IntegrityCheck   bool
	TotalVideos      int
	Error            string
}
