package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"quizbook-service/internal/auth"
	"quizbook-service/internal/config"
	"quizbook-service/internal/domain"
)

// NewTokenCmd issues a signed token with the configured secret, for local use
// and operator scripts.
func NewTokenCmd(configPath *string) *cobra.Command {
	var (
		identity domain.Identity
		role     string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth secret not configured")
			}
			if role != auth.RoleTaker && role != auth.RoleOperator {
				return fmt.Errorf("unknown role %q", role)
			}
			svc := auth.NewAuthService(cfg.Auth.Secret, cfg.Auth.Issuer, config.TTLDuration(cfg.Auth.TokenTTL, 0))
			token, err := svc.Issue(identity, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&identity.UserID, "user", "", "user id (required)")
	cmd.Flags().StringVar(&identity.DisplayName, "name", "", "display name")
	cmd.Flags().StringVar(&identity.Email, "email", "", "email address")
	cmd.Flags().StringVar(&role, "role", auth.RoleTaker, "role: taker or operator")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
