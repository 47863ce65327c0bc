package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/daemon"
	"tweetloom/internal/ingestion"
	"tweetloom/internal/pipeline"
	"tweetloom/internal/prompt"
	"tweetloom/internal/publishing"
	"tweetloom/internal/secrets"
	"tweetloom/internal/services/openai"
	"tweetloom/internal/services/transcript"
	"tweetloom/internal/services/twitter"
	"tweetloom/internal/services/youtube"
	"tweetloom/internal/store"
)

func buildDaemon(ctx context.Context, cfg *config.Config, st *store.Store, logger *slog.Logger) (*daemon.Daemon, error) {
	source, err := youtube.NewClient(ctx, youtube.Config{
		APIKey:         cfg.YouTube.APIKey,
		BaseURL:        cfg.YouTube.BaseURL,
		TimeoutSeconds: cfg.YouTube.TimeoutSeconds,
	})
	if err != nil {
		return nil, err
	}

	transcriber := transcript.NewClient(transcript.Config{
		BaseURL:        cfg.Transcription.BaseURL,
		APIKey:         cfg.Transcription.APIKey,
		Language:       cfg.Transcription.Language,
		TimeoutSeconds: cfg.Transcription.TimeoutSeconds,
	})

	generator := openai.NewClient(openai.Config{
		APIKey:         cfg.OpenAI.APIKey,
		BaseURL:        cfg.OpenAI.BaseURL,
		Model:          cfg.OpenAI.Model,
		Temperature:    cfg.OpenAI.Temperature,
		TimeoutSeconds: cfg.OpenAI.TimeoutSeconds,
	})

	publisher, err := buildPublisher(ctx, cfg, st)
	if err != nil {
		return nil, err
	}

	templates := prompt.NewLoader(cfg.Paths.PromptsDir)
	if _, err := templates.WriteDefault("default"); err != nil {
		return nil, err
	}

	ingest := ingestion.New(cfg, st, source, transcriber, logger)
	publish := publishing.New(cfg, st, generator, publisher, templates, logger)
	runner := pipeline.NewRunner(ingest, publish, logger)
	recovery := pipeline.NewRecovery(st, time.Duration(cfg.Scheduler.HeartbeatTimeout)*time.Second, logger)
	scheduler := pipeline.NewScheduler(cfg, st, runner, recovery, logger)

	return daemon.New(cfg, st, logger, runner, scheduler)
}

// buildPublisher prefers a stored per-user credential over the config token.
func buildPublisher(ctx context.Context, cfg *config.Config, st *store.Store) (*twitter.Client, error) {
	token := cfg.Twitter.AccessToken

	if cfg.Secrets.Passphrase != "" {
		box, err := secrets.NewBox(cfg.Secrets.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("open credential vault: %w", err)
		}
		handles, err := st.Users(ctx)
		if err != nil {
			return nil, err
		}
		if len(handles) > 0 {
			user, err := st.UserByHandle(ctx, handles[0])
			if err != nil {
				return nil, err
			}
			if user != nil {
				plain, err := box.Open(user.Credentials)
				if err != nil {
					return nil, fmt.Errorf("unseal credentials for %s: %w", user.Handle, err)
				}
				token = string(plain)
			}
		}
	}

	return twitter.NewClient(twitter.Config{
		BaseURL:        cfg.Twitter.BaseURL,
		AccessToken:    token,
		TimeoutSeconds: cfg.Twitter.TimeoutSeconds,
	})
}
