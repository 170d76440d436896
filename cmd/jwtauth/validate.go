package main

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/bwplotka/jwtauth"
)

// decisionJSON is printed by validate command.
type decisionJSON struct {
	Accepted    bool           `json:"accepted"`
	Reason      string         `json:"reason,omitempty"`
	Error       string         `json:"error,omitempty"`
	Subject     string         `json:"sub,omitempty"`
	Permissions []string       `json:"permissions,omitempty"`
	Claims      jwtauth.Claims `json:"claims,omitempty"`
}

func newValidateCmd(g *globalFlags) *cobra.Command {
	var (
		configPath string
		token      string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Verify token signature and validate its claims against config policy",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			defer func() { _ = logger.Sync() }()

			b, err := os.ReadFile(configPath)
			if err != nil {
				return errors.Wrap(err, "read config")
			}
			cfg, err := jwtauth.ConfigFromYaml(b)
			if err != nil {
				return err
			}
			p, err := jwtauth.NewProviderFromConfig(cmd.Context(), cfg, jwtauth.WithLogger(logger))
			if err != nil {
				return err
			}

			out := decisionJSON{}
			user, err := p.Authenticate(cmd.Context(), strings.TrimSpace(token))
			switch {
			case err == nil:
				out.Accepted = true
				out.Subject = user.Subject()
				out.Permissions = user.Permissions.List()
				out.Claims = user.Claims
			default:
				if reason, ok := jwtauth.RejectionReason(err); ok {
					out.Reason = reason.String()
				}
				out.Error = err.Error()
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			if !out.Accepted {
				return errors.New("token not accepted")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to YAML provider config")
	cmd.Flags().StringVar(&token, "token", "", "raw JWT")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}
