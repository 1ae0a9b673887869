package cli

import (
	"github.com/spf13/cobra"
)

// NewRootCommand assembles the vidiwise command tree. Global flags are
// persistent so they may appear before or after the subcommand.
func NewRootCommand() *cobra.Command {
	g := DefaultGlobalOptions()
	cmd := &cobra.Command{
		Use:           "vidiwise [flags] COMMAND",
		Short:         "vidiwise submits YouTube videos for analysis and chats about the results.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	g.Bind(cmd.PersistentFlags())

	cmd.AddCommand(NewCmdSubmit(&g))
	cmd.AddCommand(NewCmdStatus(&g))
	cmd.AddCommand(NewCmdList(&g))
	cmd.AddCommand(NewCmdRename(&g))
	cmd.AddCommand(NewCmdDelete(&g))
	cmd.AddCommand(NewCmdChat(&g))
	cmd.AddCommand(NewCmdHealth(&g))
	cmd.AddCommand(NewCmdToken())
	cmd.AddCommand(NewCmdVersion())
	return cmd
}
