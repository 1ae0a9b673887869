package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/logging"
)

type staticCreds string

func (s staticCreds) Credential(context.Context) (string, error) { return string(s), nil }

func newTestBackend(t *testing.T, h http.Handler) *HTTPBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	b, err := NewHTTPBackend(srv.URL+"/", time.Second, staticCreds("tok"), nil)
	if err != nil {
		t.Fatalf("NewHTTPBackend: %v", err)
	}
	return b
}

func TestNewHTTPBackendRejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "not a url", "/relative"} {
		if _, err := NewHTTPBackend(u, 0, nil, nil); err == nil {
			t.Errorf("NewHTTPBackend(%q) succeeded", u)
		}
	}
}

func TestProcessVideo(t *testing.T) {
	var gotAuth, gotReqID, gotURL string
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/process-video" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		gotReqID = r.Header.Get("X-Request-ID")
		var in struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		gotURL = in.URL
		_, _ = w.Write([]byte(`{"video_id":"abc123","message":"Processing started"}`))
	}))

	ctx := logging.WithTraceID(context.Background(), "trace-1")
	id, err := b.ProcessVideo(ctx, "https://youtu.be/abc123")
	if err != nil {
		t.Fatalf("ProcessVideo: %v", err)
	}
	if id != "abc123" {
		t.Errorf("id = %q", id)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotReqID != "trace-1" {
		t.Errorf("X-Request-ID = %q", gotReqID)
	}
	if gotURL != "https://youtu.be/abc123" {
		t.Errorf("url = %q", gotURL)
	}
}

func TestVideoStatus(t *testing.T) {
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/video-status/abc123" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"completed","video_id":"abc123","folder":"f","title":"T","summary":"S","auto_generated":true}`))
	}))
	rep, err := b.VideoStatus(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("VideoStatus: %v", err)
	}
	if rep.Status != model.RemoteCompleted || rep.Summary != "S" || rep.Title != "T" || !rep.AutoGenerated {
		t.Errorf("report = %+v", rep)
	}
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		name      string
		status    int
		body      string
		wantKind  error
		wantCause string
	}{
		{"string detail", 400, `{"detail":"Invalid YouTube URL"}`, domain.ErrBackendRejected, "Invalid YouTube URL"},
		{"list detail", 422, `{"detail":[{"msg":"field required"},{"msg":"bad url"}]}`, domain.ErrBackendRejected, "field required; bad url"},
		{"not found", 404, `{"detail":"Video not found"}`, domain.ErrNotFound, "Video not found"},
		{"no body", 500, ``, domain.ErrBackendRejected, "http 500 Internal Server Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			_, err := b.ProcessVideo(context.Background(), "https://youtu.be/x")
			if !errors.Is(err, tc.wantKind) {
				t.Fatalf("err = %v, want kind %v", err, tc.wantKind)
			}
			var re *domain.RemoteError
			if !errors.As(err, &re) {
				t.Fatalf("err is %T", err)
			}
			if re.Status != tc.status || re.Cause != tc.wantCause {
				t.Errorf("status=%d cause=%q", re.Status, re.Cause)
			}
		})
	}
}

func TestTransportFailureIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	b, err := NewHTTPBackend(srv.URL, 200*time.Millisecond, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	_, err = b.VideoStatus(context.Background(), "abc")
	if !errors.Is(err, domain.ErrBackendUnavailable) {
		t.Fatalf("err = %v", err)
	}
	var re *domain.RemoteError
	if !errors.As(err, &re) || !re.Temporary() {
		t.Errorf("transport failure should be temporary: %v", err)
	}
	if b.Health(context.Background()) {
		t.Error("closed server reported healthy")
	}
}

func TestListRenameDeleteChat(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/list-videos", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"videos":[{"video_id":"a","status":"completed","transcript_available":true,"title":"A"}]}`))
	})
	mux.HandleFunc("/update-video-title/a", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			VideoID string `json:"videoId"`
			Title   string `json:"title"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		_, _ = w.Write([]byte(`{"message":"ok","title":"` + strings.ToUpper(in.Title) + `"}`))
	})
	var deleted atomic.Bool
	mux.HandleFunc("/delete-video/a", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			deleted.Store(true)
		}
	})
	mux.HandleFunc("/start-chat", func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			VideoID string `json:"videoId"`
			Message string `json:"message"`
		}
		_ = json.NewDecoder(r.Body).Decode(&in)
		_, _ = w.Write([]byte(`{"message":"re: ` + in.Message + ` (` + in.VideoID + `)"}`))
	})
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {})
	b := newTestBackend(t, mux)
	ctx := context.Background()

	videos, err := b.ListVideos(ctx)
	if err != nil || len(videos) != 1 || videos[0].ID != "a" || !videos[0].TranscriptAvailable {
		t.Fatalf("ListVideos = %+v, %v", videos, err)
	}
	title, err := b.UpdateVideoTitle(ctx, "a", "new")
	if err != nil || title != "NEW" {
		t.Errorf("UpdateVideoTitle = %q, %v", title, err)
	}
	if err := b.DeleteVideo(ctx, "a"); err != nil || !deleted.Load() {
		t.Errorf("DeleteVideo err=%v deleted=%v", err, deleted.Load())
	}
	reply, err := b.Chat(ctx, "a", "hi")
	if err != nil || reply != "re: hi (a)" {
		t.Errorf("Chat = %q, %v", reply, err)
	}
	if !b.Health(ctx) {
		t.Error("Health = false")
	}
}

func TestLimitedBackendCapsConcurrency(t *testing.T) {
	var cur, peak atomic.Int32
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := cur.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		cur.Add(-1)
		_, _ = w.Write([]byte(`{"status":"processing"}`))
	}))
	lim := NewLimitedBackend(b, 2)
	done := make(chan struct{})
	for i := 0; i < 6; i++ {
		go func() {
			_, _ = lim.VideoStatus(context.Background(), "x")
			done <- struct{}{}
		}()
	}
	for i := 0; i < 6; i++ {
		<-done
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d", peak.Load())
	}
}

func TestLimitedBackendHonoursContext(t *testing.T) {
	block := make(chan struct{})
	b := newTestBackend(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer close(block)
	lim := NewLimitedBackend(b, 1)
	go func() { _, _ = lim.VideoStatus(context.Background(), "x") }()
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := lim.VideoStatus(ctx, "y"); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v", err)
	}
}
