package web

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
)

var validate = validator.New()

// ---- requests ----

type submitRequest struct {
	URL string `json:"url" validate:"required,url"`
}

func (q *submitRequest) Bind(*http.Request) error { return validate.Struct(q) }

type renameRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

func (q *renameRequest) Bind(*http.Request) error { return validate.Struct(q) }

type turnRequest struct {
	Message string `json:"message" validate:"required,max=4000"`
}

func (q *turnRequest) Bind(*http.Request) error { return validate.Struct(q) }

// bind decodes and validates a JSON body. Every failure is an input error.
func bind(r *http.Request, v render.Binder) error {
	if err := render.Bind(r, v); err != nil {
		var verr validator.ValidationErrors
		if errors.As(err, &verr) && len(verr) > 0 {
			return fmt.Errorf("%w: field %s failed %q", domain.ErrInvalidInput, verr[0].Field(), verr[0].Tag())
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// ---- responses ----

type resultResponse struct {
	VideoID       string `json:"video_id"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	Folder        string `json:"folder,omitempty"`
	AutoGenerated bool   `json:"auto_generated"`
	Thumbnail     string `json:"thumbnail"`
}

type jobResponse struct {
	ID          string          `json:"id"`
	URL         string          `json:"url,omitempty"`
	State       model.JobState  `json:"state"`
	Polls       int             `json:"polls"`
	Error       string          `json:"error,omitempty"`
	Result      *resultResponse `json:"result,omitempty"`
	SubmittedAt time.Time       `json:"submitted_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func newJobResponse(j model.Job) jobResponse {
	out := jobResponse{
		ID:          j.ID,
		URL:         j.Payload,
		State:       j.State,
		Polls:       j.Polls,
		Error:       j.Error,
		SubmittedAt: j.SubmittedAt,
		UpdatedAt:   j.UpdatedAt,
	}
	if res := j.Result; res != nil {
		out.Result = &resultResponse{
			VideoID:       res.VideoID,
			Title:         res.Title,
			Summary:       res.Summary,
			Folder:        res.Folder,
			AutoGenerated: res.AutoGenerated,
			Thumbnail:     model.ThumbnailURL(res.VideoID),
		}
	}
	return out
}

type videoResponse struct {
	ID                  string             `json:"id"`
	Title               string             `json:"title"`
	Summary             string             `json:"summary,omitempty"`
	Status              model.RemoteStatus `json:"status"`
	TranscriptAvailable bool               `json:"transcript_available"`
	AutoGenerated       bool               `json:"auto_generated"`
	Thumbnail           string             `json:"thumbnail"`
}

type turnResponse struct {
	ID        string         `json:"id"`
	Role      model.ChatRole `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
}

type sessionResponse struct {
	ID        string         `json:"id"`
	JobID     string         `json:"job_id"`
	Turns     []turnResponse `json:"turns"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// newSessionResponse keeps the last n turns; n <= 0 keeps all of them.
func newSessionResponse(s *model.ChatSession, n int) sessionResponse {
	turns := s.RecentTurns(n)
	out := sessionResponse{
		ID:        s.ID,
		JobID:     s.JobID,
		Turns:     make([]turnResponse, 0, len(turns)),
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
	for _, t := range turns {
		out.Turns = append(out.Turns, turnResponse{ID: t.ID, Role: t.Role, Content: t.Content, Timestamp: t.Timestamp})
	}
	return out
}

// ---- handlers ----

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	backend := "down"
	if s.dash.BackendHealthy(r.Context()) {
		backend = "up"
	}
	render.JSON(w, r, map[string]string{"status": "ok", "backend": backend})
}

func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	job, err := s.dash.SubmitVideo(r.Context(), req.URL)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/jobs/"+job.ID)
	render.Status(r, http.StatusAccepted)
	render.JSON(w, r, newJobResponse(job))
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.dash.JobSnapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, newJobResponse(job))
}

func (s *Server) cancelJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.dash.CancelJob(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, newJobResponse(job))
}

func (s *Server) listVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := s.dash.Library(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]videoResponse, 0, len(videos))
	for _, v := range videos {
		out = append(out, videoResponse{
			ID:                  v.ID,
			Title:               v.DisplayTitle(),
			Summary:             v.Summary,
			Status:              v.Status,
			TranscriptAvailable: v.TranscriptAvailable,
			AutoGenerated:       v.AutoGenerated,
			Thumbnail:           v.Thumbnail(),
		})
	}
	render.JSON(w, r, map[string]any{"videos": out})
}

func (s *Server) renameVideo(w http.ResponseWriter, r *http.Request) {
	var req renameRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	title, err := s.dash.RenameVideo(r.Context(), id, req.Title)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, map[string]string{"id": id, "title": title})
}

func (s *Server) deleteVideo(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.DeleteVideo(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) openChat(w http.ResponseWriter, r *http.Request) {
	session, err := s.dash.OpenChat(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/chats/"+session.ID)
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, newSessionResponse(session, 0))
}

// getChat accepts ?last=N to return only the most recent turns.
func (s *Server) getChat(w http.ResponseWriter, r *http.Request) {
	last := 0
	if v := r.URL.Query().Get("last"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, r, fmt.Errorf("%w: last must be a positive number", domain.ErrInvalidInput))
			return
		}
		last = n
	}
	session, err := s.dash.GetChat(r.Context(), chi.URLParam(r, "sid"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, newSessionResponse(session, last))
}

func (s *Server) listChats(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.dash.ListChats(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, newSessionResponse(sess, 0))
	}
	render.JSON(w, r, map[string]any{"chats": out})
}

func (s *Server) endChat(w http.ResponseWriter, r *http.Request) {
	if err := s.dash.EndChat(r.Context(), chi.URLParam(r, "sid")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sendTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := bind(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	session, err := s.dash.SendChat(r.Context(), chi.URLParam(r, "sid"), req.Message)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, newSessionResponse(session, 0))
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	recent, _ := strconv.Atoi(r.URL.Query().Get("recent"))
	if recent < 0 || recent > 200 {
		s.fail(w, r, fmt.Errorf("%w: recent must be between 0 and 200", domain.ErrInvalidInput))
		return
	}
	st, err := s.dash.JobStats(r.Context(), recent)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	render.JSON(w, r, st)
}
