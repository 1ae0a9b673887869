package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

type ListOptions struct {
	*GlobalOptions
}

func NewCmdList(g *GlobalOptions) *cobra.Command {
	o := &ListOptions{GlobalOptions: g}
	return &cobra.Command{
		Use:   "list",
		Short: "List the videos in the backend library.",
		Args:  cobra.NoArgs,
		RunE:  runE(o),
	}
}

func (o *ListOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	videos, err := f.Library(cmd.Context())
	if err != nil {
		return err
	}
	if len(videos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no videos")
		return nil
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tTRANSCRIPT\tTITLE")
	for _, v := range videos {
		transcript := "no"
		if v.TranscriptAvailable {
			transcript = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.ID, v.Status, transcript, v.DisplayTitle())
	}
	return tw.Flush()
}
