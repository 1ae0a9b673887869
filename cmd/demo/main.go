// Command demo runs a full submit, poll and chat cycle against an in-process
// backend simulator. It needs no external services.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"net/http"
	"time"

	"vidiwise/internal/application"
	"vidiwise/internal/config"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/infra/adapters/backend"
	tele "vidiwise/internal/infra/adapters/telegram"
	"vidiwise/internal/infra/backendsim"
	"vidiwise/internal/infra/i18n"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/memstore"
	"vidiwise/internal/infra/worker"
	"vidiwise/internal/usecase"
)

func main() {
	videoURL := flag.String("url", "https://www.youtube.com/watch?v=dQw4w9WgXcQ", "YouTube url to submit")
	polls := flag.Int("polls", 3, "status reads before the simulated video completes")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	logger := logging.New(config.LogConfig{Level: "info", Format: "console"}, true)

	// 1. Backend simulator on a free local port
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	sim := &http.Server{Handler: backendsim.New(backendsim.Options{ProcessingPolls: *polls}, logger), ReadHeaderTimeout: time.Second}
	go func() { _ = sim.Serve(ln) }()
	defer sim.Close()

	// 2. Client stack
	b, err := backend.NewHTTPBackend("http://"+ln.Addr().String(), 5*time.Second, nil, logger)
	if err != nil {
		log.Fatalf("backend: %v", err)
	}
	jobs := usecase.NewJobClient(b, usecase.JobClientConfig{PollInterval: 200 * time.Millisecond, Timeout: 30 * time.Second}, logger)

	pool := worker.NewPool(2, logger)
	pool.Start(ctx)
	defer pool.Stop()
	notifier := usecase.NewNotificationUseCase(tele.NewNoopBotAdapter(logger), nil, i18n.Default(), 1, logger)

	facade := application.NewDashboardFacade(jobs, usecase.NewVideoUseCase(b, jobs, logger), logger)
	facade.Chat = usecase.NewChatUseCase(jobs, memstore.NewChatSessions(), nil, logger)
	facade.Stats = usecase.NewStatsUseCase(jobs, nil, logger)
	facade.Sink = worker.NewJobSink(pool, nil, nil, notifier, logger)
	defer facade.Close()

	// 3. Submit and wait
	job, err := facade.SubmitVideo(ctx, *videoURL)
	if err != nil {
		log.Fatalf("submit: %v", err)
	}
	done := make(chan model.Job, 1)
	sub, err := jobs.Subscribe(&job, usecase.JobHandlers{
		OnProgress: func(u model.JobStatusUpdate) { log.Printf("job %s: %s", u.JobID, u.Status) },
		OnComplete: func(j model.Job) { done <- j },
		OnFailed:   func(j model.Job, err error) { done <- j },
		OnTimeout:  func(j model.Job, err error) { done <- j },
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	select {
	case job = <-done:
	case <-ctx.Done():
		log.Fatalf("gave up waiting: %v", ctx.Err())
	}
	log.Printf("job %s finished as %s", job.ID, job.State)
	if job.State != model.JobCompleted {
		return
	}
	log.Printf("summary: %s", job.Result.Summary)

	// 4. Chat about the result
	session, err := facade.OpenChat(ctx, job.ID)
	if err != nil {
		log.Fatalf("open chat: %v", err)
	}
	for _, q := range []string{"What is the video about?", "Give me one takeaway."} {
		session, err = facade.SendChat(ctx, session.ID, q)
		if err != nil {
			log.Fatalf("chat: %v", err)
		}
		last, _ := session.LastTurn()
		log.Printf("Q: %s\nA: %s", q, last.Content)
	}

	// 5. Library and stats
	videos, err := facade.Library(ctx)
	if err != nil {
		log.Fatalf("library: %v", err)
	}
	for _, v := range videos {
		log.Printf("library: %s %q [%s]", v.ID, v.DisplayTitle(), v.Status)
	}
	st, _ := facade.JobStats(ctx, 0)
	log.Printf("tracked jobs by state: %v", st.Tracked)
}
