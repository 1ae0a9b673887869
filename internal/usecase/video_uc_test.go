package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
)

func TestVideoList(t *testing.T) {
	b := newScriptedBackend()
	b.videos = []model.Video{
		{ID: "abc123", Title: "Talk", Status: model.RemoteCompleted, TranscriptAvailable: true},
		{ID: "def456", Status: model.RemoteProcessing},
	}
	uc := NewVideoUseCase(b, nil, nil)

	videos, err := uc.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("got %d videos", len(videos))
	}
	if videos[0].Title != "Talk" || videos[1].Title != "Video def456" {
		t.Errorf("titles = %q, %q", videos[0].Title, videos[1].Title)
	}
}

func TestVideoRename(t *testing.T) {
	b := newScriptedBackend()
	b.videos = []model.Video{{ID: "abc123"}}
	uc := NewVideoUseCase(b, nil, nil)
	ctx := context.Background()

	got, err := uc.Rename(ctx, "abc123", "  New title ")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	if got != "New title" {
		t.Errorf("title = %q", got)
	}
	if _, err := uc.Rename(ctx, "abc123", "   "); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("blank title err = %v", err)
	}
	if _, err := uc.Rename(ctx, "nope", "x"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("unknown video err = %v", err)
	}
}

func TestVideoDeleteCancelsTrackedJob(t *testing.T) {
	b := newScriptedBackend(processing())
	b.videos = []model.Video{{ID: "abc123"}}
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	c := newTestClient(t, b, cfg)
	if _, err := c.Submit(context.Background(), "https://youtu.be/abc123"); err != nil {
		t.Fatal(err)
	}
	uc := NewVideoUseCase(b, c, nil)

	if err := uc.Delete(context.Background(), "abc123"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Job("abc123"); ok {
		t.Error("deleted job is still tracked")
	}
	if len(b.videos) != 0 {
		t.Error("video not deleted on the backend")
	}
	if err := uc.Delete(context.Background(), ""); !errors.Is(err, domain.ErrInvalidInput) {
		t.Errorf("empty id err = %v", err)
	}
}

func TestVideoDeleteFailureKeepsJobRunning(t *testing.T) {
	b := newScriptedBackend(processing())
	cfg := testConfig()
	cfg.PollInterval = time.Hour
	c := newTestClient(t, b, cfg)
	if _, err := c.Submit(context.Background(), "https://youtu.be/abc123"); err != nil {
		t.Fatal(err)
	}
	uc := NewVideoUseCase(b, c, nil)

	// the backend has no folder for a video still processing and answers 404
	if err := uc.Delete(context.Background(), "abc123"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Delete err = %v, want not found", err)
	}
	snap, ok := c.Job("abc123")
	if !ok || snap.State.IsTerminal() {
		t.Errorf("job after failed delete = %+v (tracked %v)", snap, ok)
	}
}

func TestVideoHealth(t *testing.T) {
	uc := NewVideoUseCase(newScriptedBackend(), nil, nil)
	if !uc.Health(context.Background()) {
		t.Error("expected healthy backend")
	}
}
