package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type StatusOptions struct {
	*GlobalOptions
	Wait bool
}

func NewCmdStatus(g *GlobalOptions) *cobra.Command {
	o := &StatusOptions{GlobalOptions: g}
	cmd := &cobra.Command{
		Use:   "status ID",
		Short: "Show the processing state of a video.",
		Args:  cobra.ExactArgs(1),
		RunE:  runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *StatusOptions) Bind(fs *pflag.FlagSet) {
	fs.BoolVarP(&o.Wait, "wait", "w", false, "Wait until the video is processed")
}

func (o *StatusOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	job, err := f.AttachJob(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if o.Wait && !job.State.IsTerminal() {
		return waitJob(cmd.Context(), f, job, cmd.OutOrStdout(), cmd.ErrOrStderr())
	}
	printJob(cmd.OutOrStdout(), job)
	return nil
}
