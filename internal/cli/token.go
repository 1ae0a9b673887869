package cli

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"vidiwise/internal/infra/web"
)

// TokenOptions mint gateway bearer tokens. They do not need a backend.
type TokenOptions struct {
	Secret  string
	Issuer  string
	Subject string
	TTL     time.Duration
}

func DefaultTokenOptions() *TokenOptions {
	return &TokenOptions{
		Secret: os.Getenv("VIDIWISE_GATEWAY_SECRET"),
		Issuer: "vidiwise",
		TTL:    24 * time.Hour,
	}
}

func NewCmdToken() *cobra.Command {
	o := DefaultTokenOptions()
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the gateway API.",
		Args:  cobra.NoArgs,
		RunE:  runE(o),
	}
	o.Bind(cmd.Flags())
	return cmd
}

func (o *TokenOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVar(&o.Secret, "secret", o.Secret, "Gateway signing secret (env VIDIWISE_GATEWAY_SECRET)")
	fs.StringVar(&o.Issuer, "issuer", o.Issuer, "Token issuer, must match auth.issuer")
	fs.StringVar(&o.Subject, "subject", o.Subject, "Caller name; rate limits are kept per subject")
	fs.DurationVar(&o.TTL, "ttl", o.TTL, "Token lifetime")
}

func (o *TokenOptions) Complete(cmd *cobra.Command, args []string) error { return nil }

func (o *TokenOptions) Validate(args []string) error {
	if o.Subject == "" {
		return errors.New("--subject is required")
	}
	return nil
}

func (o *TokenOptions) Run(cmd *cobra.Command, args []string) error {
	auth, err := web.NewAuthManager(o.Secret, o.Issuer, o.TTL)
	if err != nil {
		return err
	}
	tok, err := auth.Mint(o.Subject)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
