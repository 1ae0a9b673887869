package web

import (
	"errors"
	"net/http"

	"github.com/go-chi/render"

	"vidiwise/internal/application"
	"vidiwise/internal/domain"
)

type errResponse struct {
	HTTPStatusCode int    `json:"-"`
	Kind           string `json:"kind"`
	Message        string `json:"error"`
}

func (e *errResponse) Render(w http.ResponseWriter, r *http.Request) error {
	render.Status(r, e.HTTPStatusCode)
	return nil
}

func errorReply(code int, kind, msg string) *errResponse {
	return &errResponse{HTTPStatusCode: code, Kind: kind, Message: msg}
}

// classify maps an error to its HTTP status and a stable kind string.
// Backend not-found answers win over the remote operation that carried them.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotReady):
		return http.StatusConflict, "not_ready"
	case errors.Is(err, domain.ErrAlreadyInFlight):
		return http.StatusConflict, "already_in_flight"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSubmission):
		return http.StatusBadGateway, "submission"
	case errors.Is(err, domain.ErrChatRequest):
		return http.StatusBadGateway, "chat_request"
	case errors.Is(err, domain.ErrPoll):
		return http.StatusBadGateway, "poll"
	case errors.Is(err, domain.ErrBackendUnavailable), errors.Is(err, domain.ErrBackendRejected):
		return http.StatusBadGateway, "backend"
	case errors.Is(err, application.ErrChatUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, kind := classify(err)
	msg := domain.Cause(err)
	if code == http.StatusInternalServerError {
		s.logger(r).Error().Err(err).Msg("request failed")
		msg = "internal error"
	}
	_ = render.Render(w, r, errorReply(code, kind, msg))
}
