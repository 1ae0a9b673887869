package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

type HealthOptions struct {
	*GlobalOptions
}

func NewCmdHealth(g *GlobalOptions) *cobra.Command {
	o := &HealthOptions{GlobalOptions: g}
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the video backend answers.",
		Args:  cobra.NoArgs,
		RunE:  runE(o),
	}
}

func (o *HealthOptions) Run(cmd *cobra.Command, args []string) error {
	f, err := o.Facade(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer f.Close()

	if !f.BackendHealthy(cmd.Context()) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s is down\n", o.BackendURL)
		return errors.New("backend unavailable")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is up\n", o.BackendURL)
	return nil
}
