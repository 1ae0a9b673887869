package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidiwise/internal/application"
	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
	"vidiwise/internal/usecase"
)

type SubmitOptions struct {
	*GlobalOptions
	Wait bool
}

func NewCmdSubmit(g *GlobalOptions) *cobra.Command {
	o := &SubmitOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "submit URL",
		Short: "Submit a YouTube video for processing.",
		Args:  cobra.ExactArgs(1),
		RunE:  runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *SubmitOptions) Bind(fs *pflag.FlagSet) {
	fs.BoolVarP(&o.Wait, "wait", "w", false, "Wait for the job to finish and print its result")
}

func (o *SubmitOptions) Validate(args []string) error {
	if err := o.GlobalOptions.Validate(args); err != nil {
		return err
	}
	if _, ok := model.ExtractVideoID(args[0]); !ok {
		return fmt.Errorf("%w: %q is not a YouTube video url", domain.ErrInvalidInput, args[0])
	}
	return nil
}

func (o *SubmitOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	job, err := f.SubmitVideo(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "submitted %s\n", job.ID)
	if !o.Wait {
		return nil
	}
	return waitJob(cmd.Context(), f, job, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// waitJob follows job until it is terminal. Interrupting the wait cancels it.
func waitJob(ctx context.Context, f *application.DashboardFacade, job model.Job, out, errOut io.Writer) error {
	done := make(chan model.Job, 1)
	var cause error
	sub, err := f.Jobs.Subscribe(&job, usecase.JobHandlers{
		OnProgress: func(u model.JobStatusUpdate) {
			fmt.Fprintf(errOut, "  %s %s (%s)\n", u.JobID, u.Status, u.ObservedAt.Format(time.TimeOnly))
		},
		OnError:    func(err error) { fmt.Fprintf(errOut, "  poll error: %s\n", domain.Cause(err)) },
		OnComplete: func(j model.Job) { done <- j },
		OnFailed: func(j model.Job, err error) {
			cause = err
			done <- j
		},
		OnTimeout: func(j model.Job, err error) {
			cause = err
			done <- j
		},
	})
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	select {
	case j := <-done:
		printJob(out, j)
		if j.State != model.JobCompleted {
			return fmt.Errorf("job %s %s: %v", j.ID, j.State, cause)
		}
		return nil
	case <-ctx.Done():
		_, _ = f.CancelJob(context.Background(), job.ID)
		return ctx.Err()
	}
}

func printJob(w io.Writer, j model.Job) {
	fmt.Fprintf(w, "id:        %s\n", j.ID)
	fmt.Fprintf(w, "state:     %s\n", j.State)
	if j.Error != "" {
		fmt.Fprintf(w, "error:     %s\n", j.Error)
	}
	if r := j.Result; r != nil {
		if r.Title != "" {
			fmt.Fprintf(w, "title:     %s\n", r.Title)
		}
		fmt.Fprintf(w, "thumbnail: %s\n", model.ThumbnailURL(r.VideoID))
		if r.Summary != "" {
			fmt.Fprintf(w, "summary:\n%s\n", r.Summary)
		}
	}
}
