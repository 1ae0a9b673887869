package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

type DeleteOptions struct {
	*GlobalOptions
}

func NewCmdDelete(g *GlobalOptions) *cobra.Command {
	o := &DeleteOptions{GlobalOptions: g}
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a video and its transcript from the backend.",
		Args:  cobra.ExactArgs(1),
		RunE:  runE(o),
	}
}

func (o *DeleteOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.DeleteVideo(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
