package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tweetloom/internal/config"
	"tweetloom/internal/logging"
	"tweetloom/internal/services"
	"tweetloom/internal/store"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) (*apiServer, error) {
	bind := strings.TrimSpace(cfg.Paths.APIBind)
	if bind == "" {
		return nil, nil
	}

	srv := &apiServer{
		bind:   bind,
		logger: logging.NewComponentLogger(logger, "api"),
		daemon: d,
	}

	token := strings.TrimSpace(cfg.Paths.APIToken)
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", authMiddleware(token, srv.handleStatus))
	mux.HandleFunc("/api/pipeline/run", authMiddleware(token, srv.handlePipelineRun))
	mux.HandleFunc("/api/channels", authMiddleware(token, srv.handleChannels))
	mux.HandleFunc("/api/channels/", authMiddleware(token, srv.handleChannelItem))
	mux.HandleFunc("/api/videos", authMiddleware(token, srv.handleVideos))
	srv.handler = mux

	return srv, nil
}

func (s *apiServer) start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	// A fresh http.Server per start; a shut-down server refuses to serve again.
	server := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	s.server = server

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s == nil {
		return
	}
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s == nil || s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	s.writeJSON(w, http.StatusOK, s.daemon.Status(r.Context()))
}

type pipelineRunRequest struct {
	ChannelID string `json:"channel_id"`
	Mode      string `json:"mode"`
	Limit     int    `json:"limit"`
}

func (s *apiServer) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req pipelineRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ChannelID) == "" {
		s.writeError(w, http.StatusBadRequest, "channel_id is required")
		return
	}

	summary, err := s.daemon.RunPipeline(r.Context(), req.ChannelID, req.Mode, req.Limit)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, summary)
}

type channelView struct {
	ChannelID string     `json:"channel_id"`
	Title     string     `json:"title"`
	Active    bool       `json:"active"`
	Watermark *time.Time `json:"watermark,omitempty"`
}

func (s *apiServer) handleChannels(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		channels, err := s.daemon.store.Channels(r.Context(), false)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		views := make([]channelView, 0, len(channels))
		for _, channel := range channels {
			views = append(views, channelView{
				ChannelID: channel.ExternalID,
				Title:     channel.Title,
				Active:    channel.Active,
				Watermark: channel.Watermark,
			})
		}
		s.writeJSON(w, http.StatusOK, views)
	case http.MethodPost:
		var req struct {
			ChannelID string `json:"channel_id"`
			Title     string `json:"title"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.ChannelID) == "" {
			s.writeError(w, http.StatusBadRequest, "channel_id is required")
			return
		}
		channel, err := s.daemon.store.AddChannel(r.Context(), req.ChannelID, req.Title)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		s.writeJSON(w, http.StatusCreated, channelView{
			ChannelID: channel.ExternalID,
			Title:     channel.Title,
			Active:    channel.Active,
			Watermark: channel.Watermark,
		})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleChannelItem toggles tracking: POST /api/channels/{id} {"active": bool}.
func (s *apiServer) handleChannelItem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	externalID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/channels/"), "/")
	if externalID == "" {
		s.writeError(w, http.StatusBadRequest, "channel id missing from path")
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	updated, err := s.daemon.store.SetChannelActive(r.Context(), externalID, req.Active)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !updated {
		s.writeError(w, http.StatusNotFound, "channel not tracked")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"channel_id": externalID, "active": req.Active})
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

func (s *apiServer) handleVideos(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	channelRef := strings.TrimSpace(r.URL.Query().Get("channel"))
	if channelRef == "" {
		s.writeError(w, http.StatusBadRequest, "channel query parameter is required")
		return
	}
	channel, err := s.daemon.store.ChannelByExternalID(r.Context(), channelRef)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if channel == nil {
		s.writeError(w, http.StatusNotFound, "channel not tracked")
		return
	}

	var statuses []store.VideoStatus
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := store.ParseVideoStatus(raw)
		if !ok {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		statuses = append(statuses, status)
	}

	videos, err := s.daemon.store.ListVideos(r.Context(), channel.ID, statuses...)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	views := make([]videoView, 0, len(videos))
	for _, video := range videos {
		views = append(views, videoView{
			VideoID:       video.ExternalID,
			Title:         video.Title,
			Status:        string(video.Status),
			Attempts:      video.AttemptCount,
			ErrorMessage:  video.ErrorMessage,
			PublishedAt:   video.SourcePublishedAt,
			TranscribedAt: video.TranscribedAt,
		})
	}
	s.writeJSON(w, http.StatusOK, views)
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConfiguration):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode api response failed", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
