package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidiwise/internal/application"
	"vidiwise/internal/config"
	"vidiwise/internal/infra/adapters/backend"
	"vidiwise/internal/infra/adapters/credentials"
	"vidiwise/internal/infra/logging"
	"vidiwise/internal/infra/memstore"
	"vidiwise/internal/usecase"
)

type GlobalOptions struct {
	BackendURL   string
	Token        string
	Timeout      time.Duration
	PollInterval time.Duration
	LogLevel     string
}

func DefaultGlobalOptions() GlobalOptions {
	o := GlobalOptions{
		BackendURL:   "http://localhost:8000",
		Token:        os.Getenv("VIDIWISE_TOKEN"),
		Timeout:      usecase.DefaultJobTimeout,
		PollInterval: usecase.DefaultPollInterval,
		LogLevel:     "warn",
	}
	if u := os.Getenv("VIDIWISE_BACKEND_URL"); u != "" {
		o.BackendURL = u
	}
	return o
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.BackendURL, "backend-url", "u", o.BackendURL, "Address of the video backend (env VIDIWISE_BACKEND_URL)")
	fs.StringVar(&o.Token, "token", o.Token, "Bearer token sent to the backend (env VIDIWISE_TOKEN)")
	fs.DurationVar(&o.Timeout, "timeout", o.Timeout, "Give up on a job this long after submission")
	fs.DurationVar(&o.PollInterval, "poll-interval", o.PollInterval, "Pause between status polls")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level written to stderr")
}

func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	if o.BackendURL == "" {
		return errors.New("--backend-url is required")
	}
	if o.Timeout <= 0 || o.PollInterval <= 0 {
		return errors.New("--timeout and --poll-interval must be positive")
	}
	return nil
}

func (o *GlobalOptions) logger(w io.Writer) *zerolog.Logger {
	return logging.NewWithWriter(w, config.LogConfig{Level: o.LogLevel, Format: "console"}, false)
}

// Facade builds a dashboard that talks to the backend directly. Chat sessions
// live only as long as the command. Callers Close it.
func (o *GlobalOptions) Facade(stderr io.Writer) (*application.DashboardFacade, error) {
	log := o.logger(stderr)
	b, err := backend.NewHTTPBackend(o.BackendURL, 30*time.Second, credentials.StaticToken(o.Token), log)
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	jobs := usecase.NewJobClient(b, usecase.JobClientConfig{
		PollInterval:     o.PollInterval,
		ChatPollInterval: o.PollInterval,
		Timeout:          o.Timeout,
	}, log)
	f := application.NewDashboardFacade(jobs, usecase.NewVideoUseCase(b, jobs, log), log)
	f.Chat = usecase.NewChatUseCase(jobs, memstore.NewChatSessions(), nil, log)
	f.Retry = usecase.RetryPolicy{MaxAttempts: 3, Backoff: 500 * time.Millisecond}
	return f, nil
}

// runner is the Complete, Validate, Run sequence every command follows.
type runner interface {
	Complete(cmd *cobra.Command, args []string) error
	Validate(args []string) error
	Run(cmd *cobra.Command, args []string) error
}

func runE(o runner) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := o.Complete(cmd, args); err != nil {
			return err
		}
		if err := o.Validate(args); err != nil {
			return err
		}
		return o.Run(cmd, args)
	}
}
