package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/domain/ports/adapter"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/metrics"
)

// Compile-time assurance this adapter satisfies the port
var _ adapter.VideoBackend = (*HTTPBackend)(nil)

// HTTPBackend implements adapter.VideoBackend against the video analysis
// service's JSON API. Failed requests come back as *domain.RemoteError:
// transport failures carry ErrBackendUnavailable, non-2xx answers carry the
// backend's "detail" message as Cause.
type HTTPBackend struct {
	base   string
	client *http.Client
	creds  adapter.CredentialProvider
	log    *zerolog.Logger
}

func NewHTTPBackend(base string, timeout time.Duration, creds adapter.CredentialProvider, logger *zerolog.Logger) (*HTTPBackend, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid backend url %q", base)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBackend{
		base:   strings.TrimRight(u.String(), "/"),
		client: &http.Client{Timeout: timeout},
		creds:  creds,
		log:    logging.Component(logger, "backend"),
	}, nil
}

type videoStatusDTO struct {
	VideoID       string `json:"video_id"`
	Status        string `json:"status"`
	Folder        string `json:"folder"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
	AutoGenerated bool   `json:"auto_generated"`
}

type videoDTO struct {
	VideoID             string `json:"video_id"`
	Folder              string `json:"folder"`
	Status              string `json:"status"`
	TranscriptAvailable bool   `json:"transcript_available"`
	Title               string `json:"title"`
	Summary             string `json:"summary"`
	AutoGenerated       bool   `json:"auto_generated"`
}

func (b *HTTPBackend) ProcessVideo(ctx context.Context, videoURL string) (string, error) {
	in := struct {
		URL string `json:"url"`
	}{URL: videoURL}
	var out struct {
		VideoID string `json:"video_id"`
		Message string `json:"message"`
	}
	if err := b.do(ctx, "process_video", http.MethodPost, "/process-video", in, &out); err != nil {
		return "", err
	}
	return out.VideoID, nil
}

func (b *HTTPBackend) VideoStatus(ctx context.Context, jobID string) (adapter.StatusReport, error) {
	var out videoStatusDTO
	if err := b.do(ctx, "video_status", http.MethodGet, "/video-status/"+url.PathEscape(jobID), nil, &out); err != nil {
		return adapter.StatusReport{}, err
	}
	return adapter.StatusReport{
		VideoID:       out.VideoID,
		Status:        model.RemoteStatus(out.Status),
		Title:         out.Title,
		Summary:       out.Summary,
		Folder:        out.Folder,
		AutoGenerated: out.AutoGenerated,
	}, nil
}

func (b *HTTPBackend) ListVideos(ctx context.Context) ([]model.Video, error) {
	var out struct {
		Videos []videoDTO `json:"videos"`
	}
	if err := b.do(ctx, "list_videos", http.MethodGet, "/list-videos", nil, &out); err != nil {
		return nil, err
	}
	videos := make([]model.Video, 0, len(out.Videos))
	for _, v := range out.Videos {
		videos = append(videos, model.Video{
			ID:                  v.VideoID,
			Title:               v.Title,
			Summary:             v.Summary,
			Folder:              v.Folder,
			Status:              model.RemoteStatus(v.Status),
			TranscriptAvailable: v.TranscriptAvailable,
			AutoGenerated:       v.AutoGenerated,
		})
	}
	return videos, nil
}

func (b *HTTPBackend) UpdateVideoTitle(ctx context.Context, jobID, title string) (string, error) {
	in := struct {
		VideoID string `json:"videoId"`
		Title   string `json:"title"`
	}{VideoID: jobID, Title: title}
	var out struct {
		Message string `json:"message"`
		Title   string `json:"title"`
	}
	if err := b.do(ctx, "update_title", http.MethodPut, "/update-video-title/"+url.PathEscape(jobID), in, &out); err != nil {
		return "", err
	}
	if out.Title == "" {
		return title, nil
	}
	return out.Title, nil
}

func (b *HTTPBackend) DeleteVideo(ctx context.Context, jobID string) error {
	return b.do(ctx, "delete_video", http.MethodDelete, "/delete-video/"+url.PathEscape(jobID), nil, nil)
}

func (b *HTTPBackend) Chat(ctx context.Context, jobID, message string) (string, error) {
	in := struct {
		VideoID string `json:"videoId"`
		Message string `json:"message"`
	}{VideoID: jobID, Message: message}
	var out struct {
		Message string `json:"message"`
	}
	if err := b.do(ctx, "chat", http.MethodPost, "/start-chat", in, &out); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Health reports whether GET /health answers 2xx.
func (b *HTTPBackend) Health(ctx context.Context) bool {
	return b.do(ctx, "health", http.MethodGet, "/health", nil, nil) == nil
}

func (b *HTTPBackend) do(ctx context.Context, op, method, path string, in, out any) error {
	defer logging.TraceDuration(b.log, "HTTPBackend."+op)()
	start := time.Now()
	err := b.roundTrip(ctx, method, path, in, out)
	metrics.ObserveBackendCall(op, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		logging.With(ctx, b.log).Debug().Err(err).Str("op", op).Msg("backend call failed")
	}
	return err
}

func (b *HTTPBackend) roundTrip(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, b.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := logging.TraceID(ctx)
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)
	if b.creds != nil {
		cred, err := b.creds.Credential(ctx)
		if err != nil {
			return fmt.Errorf("resolve credential: %w", err)
		}
		if cred != "" {
			req.Header.Set("Authorization", "Bearer "+cred)
		}
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &domain.RemoteError{Kind: domain.ErrBackendUnavailable, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		kind := domain.ErrBackendRejected
		if resp.StatusCode == http.StatusNotFound {
			kind = domain.ErrNotFound
		}
		return &domain.RemoteError{Kind: kind, Status: resp.StatusCode, Cause: readDetail(resp)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &domain.RemoteError{Kind: domain.ErrBackendRejected, Status: resp.StatusCode, Cause: "malformed response body", Err: err}
	}
	return nil
}

// readDetail extracts the error message of a failed response. The backend
// sends {"detail": "..."}; validation failures send a list of {"msg": "..."}.
func readDetail(resp *http.Response) string {
	fallback := fmt.Sprintf("http %d %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return fallback
	}
	var env struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Detail) == 0 {
		return fallback
	}
	var s string
	if err := json.Unmarshal(env.Detail, &s); err == nil && s != "" {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(env.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return fallback
}
