package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"vidiwise/internal/domain"
	"vidiwise/internal/domain/model"
)

type ChatOptions struct {
	*GlobalOptions
}

func NewCmdChat(g *GlobalOptions) *cobra.Command {
	o := &ChatOptions{GlobalOptions: g}
	return &cobra.Command{
		Use:   "chat ID",
		Short: "Ask questions about a processed video. Reads one message per line from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE:  runE(o),
	}
}

func (o *ChatOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	ctx := cmd.Context()
	out, errOut := cmd.OutOrStdout(), cmd.ErrOrStderr()
	session, err := f.OpenChat(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(errOut, "chatting about %s; /quit or end of input stops\n", args[0])

	in := bufio.NewScanner(cmd.InOrStdin())
	for in.Scan() {
		msg := strings.TrimSpace(in.Text())
		if msg == "" {
			continue
		}
		if msg == "/quit" {
			break
		}
		s, err := f.SendChat(ctx, session.ID, msg)
		switch {
		case errors.Is(err, domain.ErrChatRequest):
			fmt.Fprintf(errOut, "error: %s\n", domain.Cause(err))
			continue
		case err != nil:
			return err
		}
		if last, ok := s.LastTurn(); ok && last.Role == model.RoleAssistant {
			fmt.Fprintln(out, last.Content)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return in.Err()
}
