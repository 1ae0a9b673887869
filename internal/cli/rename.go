package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type RenameOptions struct {
	*GlobalOptions
}

func NewCmdRename(g *GlobalOptions) *cobra.Command {
	o := &RenameOptions{GlobalOptions: g}
	return &cobra.Command{
		Use:   "rename ID TITLE...",
		Short: "Change the title of a video.",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runE(o),
	}
}

func (o *RenameOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	title, err := f.RenameVideo(cmd.Context(), args[0], strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s renamed to %q\n", args[0], title)
	return nil
}
