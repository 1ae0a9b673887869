// Package backendsim is an in-memory stand-in for the video analysis
// service. It speaks the same JSON API and is used by the demo command and
// by end-to-end tests.
package backendsim

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/logging"
)

type Options struct {
	// ProcessingPolls is the number of status reads answered with
	// "processing" before a video completes.
	ProcessingPolls int
	// FailIDs lists video ids whose processing ends in "failed".
	FailIDs []string
	// Summarize builds the summary of a completed video.
	Summarize func(videoID string) string
	// Reply builds the chat answer for a message.
	Reply func(videoID, summary, message string) string
}

type video struct {
	id        string
	title     string
	summary   string
	status    model.RemoteStatus
	polls     int
	createdAt time.Time
}

type Server struct {
	opts   Options
	fail   map[string]bool
	log    *zerolog.Logger
	router chi.Router

	mu     sync.Mutex
	videos map[string]*video
}

func New(opts Options, logger *zerolog.Logger) *Server {
	if opts.Summarize == nil {
		opts.Summarize = func(id string) string { return "Summary of video " + id + "." }
	}
	if opts.Reply == nil {
		opts.Reply = func(_, summary, msg string) string {
			return fmt.Sprintf("You asked %q. %s", msg, summary)
		}
	}
	s := &Server{
		opts:   opts,
		fail:   make(map[string]bool, len(opts.FailIDs)),
		log:    logging.Component(logger, "backendsim"),
		videos: make(map[string]*video),
	}
	for _, id := range opts.FailIDs {
		s.fail[id] = true
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})
	r.Post("/process-video", s.processVideo)
	r.Get("/video-status/{id}", s.videoStatus)
	r.Get("/list-videos", s.listVideos)
	r.Put("/update-video-title/{id}", s.updateTitle)
	r.Delete("/delete-video/{id}", s.deleteVideo)
	r.Post("/start-chat", s.startChat)
	return r
}

type errorReply struct {
	HTTPStatusCode int    `json:"-"`
	Detail         string `json:"detail"`
}

func (e *errorReply) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func detail(code int, msg string) render.Renderer {
	return &errorReply{HTTPStatusCode: code, Detail: msg}
}

type statusReply struct {
	Status        string `json:"status"`
	VideoID       string `json:"video_id"`
	Folder        string `json:"folder,omitempty"`
	Title         string `json:"title,omitempty"`
	Summary       string `json:"summary,omitempty"`
	AutoGenerated bool   `json:"auto_generated"`
}

func (statusReply) Render(http.ResponseWriter, *http.Request) error { return nil }

type videoItem struct {
	VideoID             string `json:"video_id"`
	Folder              string `json:"folder"`
	Status              string `json:"status"`
	TranscriptAvailable bool   `json:"transcript_available"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	AutoGenerated       bool   `json:"auto_generated"`
}

func (s *Server) processVideo(w http.ResponseWriter, r *http.Request) {
	var in struct {
		URL string `json:"url"`
	}
	if err := render.DecodeJSON(r.Body, &in); err != nil {
		_ = render.Render(w, r, detail(http.StatusUnprocessableEntity, "malformed request body"))
		return
	}
	id, ok := model.ExtractVideoID(in.URL)
	if !ok {
		_ = render.Render(w, r, detail(http.StatusBadRequest, "Invalid YouTube URL"))
		return
	}

	s.mu.Lock()
	if v, exists := s.videos[id]; !exists || v.status == model.RemoteFailed {
		s.videos[id] = &video{id: id, status: model.RemoteProcessing, createdAt: time.Now()}
	}
	s.mu.Unlock()

	s.log.Debug().Str("video_id", id).Msg("processing started")
	render.JSON(w, r, map[string]string{"video_id": id, "message": "Processing started"})
}

func (s *Server) videoStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	v, ok := s.videos[id]
	if !ok {
		s.mu.Unlock()
		_ = render.Render(w, r, statusReply{Status: string(model.RemoteNotFound), VideoID: id})
		return
	}
	s.advance(v)
	reply := statusReply{Status: string(v.status), VideoID: v.id}
	if v.status == model.RemoteCompleted {
		reply.Folder = "videos/" + v.id
		reply.Title = v.title
		reply.Summary = v.summary
		reply.AutoGenerated = true
	}
	s.mu.Unlock()
	_ = render.Render(w, r, reply)
}

// advance moves a processing video along. Callers hold s.mu.
func (s *Server) advance(v *video) {
	if v.status != model.RemoteProcessing {
		return
	}
	v.polls++
	if v.polls <= s.opts.ProcessingPolls {
		return
	}
	if s.fail[v.id] {
		v.status = model.RemoteFailed
		return
	}
	v.status = model.RemoteCompleted
	v.summary = s.opts.Summarize(v.id)
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	items := make([]videoItem, 0, len(s.videos))
	order := make([]*video, 0, len(s.videos))
	for _, v := range s.videos {
		order = append(order, v)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].createdAt.After(order[j].createdAt) })
	for _, v := range order {
		items = append(items, videoItem{
			VideoID:             v.id,
			Folder:              "videos/" + v.id,
			Status:              string(v.status),
			TranscriptAvailable: v.status == model.RemoteCompleted,
			Title:               v.title,
			Summary:             v.summary,
			AutoGenerated:       true,
		})
	}
	s.mu.Unlock()
	render.JSON(w, r, map[string]any{"videos": items})
}

func (s *Server) updateTitle(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var in struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	}
	if err := render.DecodeJSON(r.Body, &in); err != nil || strings.TrimSpace(in.Title) == "" {
		_ = render.Render(w, r, detail(http.StatusBadRequest, "Title is required"))
		return
	}
	title := strings.TrimSpace(in.Title)
	s.mu.Lock()
	v, ok := s.videos[id]
	if ok {
		v.title = title
	}
	s.mu.Unlock()
	if !ok {
		_ = render.Render(w, r, detail(http.StatusNotFound, "Video not found"))
		return
	}
	render.JSON(w, r, map[string]string{"message": "Title updated", "title": title})
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.videos[id]
	delete(s.videos, id)
	s.mu.Unlock()
	if !ok {
		_ = render.Render(w, r, detail(http.StatusNotFound, "Video not found"))
		return
	}
	render.JSON(w, r, map[string]string{"message": "Video deleted"})
}

func (s *Server) startChat(w http.ResponseWriter, r *http.Request) {
	var in struct {
		VideoID string `json:"videoId"`
		Message string `json:"message"`
	}
	if err := render.DecodeJSON(r.Body, &in); err != nil || in.VideoID == "" || in.Message == "" {
		_ = render.Render(w, r, detail(http.StatusBadRequest, "videoId and message are required"))
		return
	}
	s.mu.Lock()
	v, ok := s.videos[in.VideoID]
	var summary string
	ready := ok && v.status == model.RemoteCompleted
	if ready {
		summary = v.summary
	}
	s.mu.Unlock()
	switch {
	case !ok:
		_ = render.Render(w, r, detail(http.StatusNotFound, "Video not found"))
	case !ready:
		_ = render.Render(w, r, detail(http.StatusBadRequest, "Transcript not available yet"))
	default:
		render.JSON(w, r, map[string]string{"message": s.opts.Reply(in.VideoID, summary, in.Message)})
	}
}
