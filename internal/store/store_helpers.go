package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

const channelColumns = "id, external_id, title, active, watermark, created_at, updated_at"

const videoColumns = "id, channel_id, external_id, title, url, status, transcript, error_message, attempt_count, source_published_at, discovered_at, transcribed_at, last_heartbeat, created_at, updated_at"

const generationColumns = "id, video_id, status, prompt, model, error_message, attempt_count, last_heartbeat, created_at, updated_at"

const tweetColumns = "id, tweet_generation_id, video_id, position, text, status, external_id, error_message, published_at, created_at, updated_at"

type rowScanner interface{ Scan(dest ...any) error }

func scanChannel(scanner rowScanner) (*Channel, error) {
	var (
		id           int64
		externalID   string
		title        sql.NullString
		active       sql.NullInt64
		watermarkRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(&id, &externalID, &title, &active, &watermarkRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	channel := &Channel{
		ID:         id,
		ExternalID: externalID,
		Title:      title.String,
	}
	if active.Valid {
		channel.Active = active.Int64 != 0
	}
	if watermarkRaw.Valid {
		if watermark, err := parseTimeString(watermarkRaw.String); err == nil {
			channel.Watermark = &watermark
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		channel.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		channel.UpdatedAt = updated
	}
	return channel, nil
}

func scanVideo(scanner rowScanner) (*Video, error) {
	var (
		id             int64
		channelID      int64
		externalID     string
		title          sql.NullString
		url            sql.NullString
		statusStr      string
		transcript     sql.NullString
		errorMessage   sql.NullString
		attemptCount   sql.NullInt64
		publishedRaw   sql.NullString
		discoveredRaw  sql.NullString
		transcribedRaw sql.NullString
		heartbeatRaw   sql.NullString
		createdRaw     sql.NullString
		updatedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&channelID,
		&externalID,
		&title,
		&url,
		&statusStr,
		&transcript,
		&errorMessage,
		&attemptCount,
		&publishedRaw,
		&discoveredRaw,
		&transcribedRaw,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	video := &Video{
		ID:           id,
		ChannelID:    channelID,
		ExternalID:   externalID,
		Title:        title.String,
		URL:          url.String,
		Status:       VideoStatus(statusStr),
		Transcript:   transcript.String,
		ErrorMessage: errorMessage.String,
		AttemptCount: int(attemptCount.Int64),
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			video.SourcePublishedAt = &published
		}
	}
	if discovered, err := parseTimeString(discoveredRaw.String); err == nil {
		video.DiscoveredAt = discovered
	}
	if transcribedRaw.Valid {
		if transcribed, err := parseTimeString(transcribedRaw.String); err == nil {
			video.TranscribedAt = &transcribed
		}
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			video.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		video.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		video.UpdatedAt = updated
	}
	return video, nil
}

func scanGeneration(scanner rowScanner) (*TweetGeneration, error) {
	var (
		id           int64
		videoID      int64
		statusStr    string
		prompt       sql.NullString
		model        sql.NullString
		errorMessage sql.NullString
		attemptCount sql.NullInt64
		heartbeatRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&videoID,
		&statusStr,
		&prompt,
		&model,
		&errorMessage,
		&attemptCount,
		&heartbeatRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	generation := &TweetGeneration{
		ID:           id,
		VideoID:      videoID,
		Status:       GenerationStatus(statusStr),
		Prompt:       prompt.String,
		Model:        model.String,
		ErrorMessage: errorMessage.String,
		AttemptCount: int(attemptCount.Int64),
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			generation.LastHeartbeat = &heartbeat
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		generation.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		generation.UpdatedAt = updated
	}
	return generation, nil
}

func scanTweet(scanner rowScanner) (*Tweet, error) {
	var (
		id           int64
		generationID int64
		videoID      int64
		position     sql.NullInt64
		text         string
		statusStr    string
		externalID   sql.NullString
		errorMessage sql.NullString
		publishedRaw sql.NullString
		createdRaw   sql.NullString
		updatedRaw   sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&generationID,
		&videoID,
		&position,
		&text,
		&statusStr,
		&externalID,
		&errorMessage,
		&publishedRaw,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	tweet := &Tweet{
		ID:           id,
		GenerationID: generationID,
		VideoID:      videoID,
		Position:     int(position.Int64),
		Text:         text,
		Status:       TweetStatus(statusStr),
		ExternalID:   externalID.String,
		ErrorMessage: errorMessage.String,
	}
	if publishedRaw.Valid {
		if published, err := parseTimeString(publishedRaw.String); err == nil {
			tweet.PublishedAt = &published
		}
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		tweet.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		tweet.UpdatedAt = updated
	}
	return tweet, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return time.Time{}, fmt.Errorf("empty time value")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if parsed, err := time.Parse(layout, trimmed); err == nil {
			return parsed.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", value)
}

func makePlaceholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
