package cli

import (
	"fmt"
	"time"

	"liaison/internal/config"
	"liaison/internal/services/scoring"
	"liaison/internal/transport/auth"

	"github.com/spf13/cobra"
)

var policyFile string

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Validate and print the effective scoring policy",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path := policyFile
		if path == "" {
			path = config.Load().PolicyPath
		}
		p, err := scoring.LoadPolicy(path)
		if err != nil {
			return err
		}
		out, err := p.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

var tokenTTL time.Duration

var tokenCmd = &cobra.Command{
	Use:   "token <party-id>",
	Short: "Issue a bearer token for a party (development and operators)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s := config.Load()
		v, err := auth.NewVerifier(s.JWTSecret, s.JWTIssuer)
		if err != nil {
			return err
		}
		tok, err := v.Issue(args[0], tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	policyCmd.Flags().StringVar(&policyFile, "file", "", "policy YAML (default SCORE_POLICY_PATH)")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
}
