package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bwplotka/jwtauth"
)

func newSignCmd(g *globalFlags) *cobra.Command {
	var (
		jwkPath             string
		claimsPath          string
		permissionsClaimKey string
		opts                jwtauth.SignOptions
	)
	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign claims with private or symmetric JWK",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := g.logger()
			defer func() { _ = logger.Sync() }()

			b, err := os.ReadFile(jwkPath)
			if err != nil {
				return errors.Wrap(err, "read jwk")
			}
			keys, err := jwtauth.ParseJWKs(b)
			if err != nil {
				return err
			}
			signer, err := jwtauth.NewSigner(keys[0], permissionsClaimKey, nil)
			if err != nil {
				return err
			}

			claims := jwtauth.Claims{}
			if claimsPath != "" {
				b, err := os.ReadFile(claimsPath)
				if err != nil {
					return errors.Wrap(err, "read claims")
				}
				if claims, err = jwtauth.ParseClaims(b); err != nil {
					return err
				}
			}

			token, err := signer.Sign(claims, opts)
			if err != nil {
				return err
			}
			logger.Debug("token signed", zap.String("kid", keys[0].KeyID), zap.Int("claims", len(claims)))
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&jwkPath, "jwk", "", "path to JSON Web Key used for signing")
	cmd.Flags().StringVar(&claimsPath, "claims", "", "path to JSON object with claims")
	cmd.Flags().StringVar(&permissionsClaimKey, "permissions-claim-key", jwtauth.DefaultPermissionsClaimKey, "claim (or / delimited path) for permissions")
	cmd.Flags().StringVar(&opts.Issuer, "iss", "", "issuer")
	cmd.Flags().StringVar(&opts.Subject, "sub", "", "subject")
	cmd.Flags().StringSliceVar(&opts.Audience, "aud", nil, "audience")
	cmd.Flags().DurationVar(&opts.ExpiresIn, "expires-in", time.Hour, "token lifetime")
	cmd.Flags().BoolVar(&opts.GenerateID, "jti", false, "generate random token ID")
	cmd.Flags().StringSliceVar(&opts.Permissions, "permission", nil, "permission to grant, repeatable")
	_ = cmd.MarkFlagRequired("jwk")
	return cmd
}
