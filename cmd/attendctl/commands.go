package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Brownie44l1/attendance/internal/app"
	"github.com/Brownie44l1/attendance/internal/auth"
	"github.com/Brownie44l1/attendance/internal/db"
	"github.com/Brownie44l1/attendance/internal/models"
	"github.com/Brownie44l1/attendance/internal/repository"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				if err := db.Migrate(cmd.Context(), a.Pool); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			})
		},
	}
}

func setWebhookCmd() *cobra.Command {
	var orgID string
	cmd := &cobra.Command{
		Use:   "set-webhook",
		Short: "Point an organization's bot at this service",
		Long: `Registers {PUBLIC_BASE_URL}/api/v1/telegram/webhook/<org> with the
messaging platform, using WEBHOOK_SECRET as the secret token when set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orgID == "" {
				return errors.New("--org is required")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				org, err := a.Employees.GetOrganization(cmd.Context(), orgID)
				if err != nil {
					return fmt.Errorf("organization %s: %w", orgID, err)
				}
				gw, err := a.Provider.ForOrganization(org)
				if err != nil {
					return err
				}
				url := WebhookURL(a.Config.PublicBaseURL, org.ID)
				if err := gw.SetWebhook(cmd.Context(), url, a.Config.WebhookSecret); err != nil {
					return fmt.Errorf("setWebhook failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "webhook set to %s\n", url)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	return cmd
}

func inspectSessionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect-session <token>",
		Short: "Show the state of a verification session, including consumed and expired ones",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				s, err := a.Sessions.GetByToken(cmd.Context(), args[0])
				if err != nil {
					if errors.Is(err, repository.ErrNotFound) {
						return fmt.Errorf("no session with token %s", args[0])
					}
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), DescribeSession(s, time.Now().UTC()))
				return nil
			})
		},
	}
}

// DescribeSession renders a session for operators.
func DescribeSession(s *models.VerificationSession, now time.Time) string {
	state := "live"
	switch {
	case s.CompletedAt != nil:
		state = "completed " + s.CompletedAt.UTC().Format(time.RFC3339)
	case !now.Before(s.ExpiresAt):
		state = "expired"
	case s.BiometricVerifiedAt != nil:
		state = "verified, awaiting completion"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "token:        %s\n", s.Token)
	fmt.Fprintf(&b, "purpose:      %s\n", s.Purpose)
	if s.RequestKind != "" {
		fmt.Fprintf(&b, "request:      %s (level %d)\n", s.RequestKind, s.RequiredLevel)
	}
	fmt.Fprintf(&b, "employee:     %s\n", s.EmployeeID)
	fmt.Fprintf(&b, "organization: %s\n", s.OrganizationID)
	fmt.Fprintf(&b, "expires:      %s\n", s.ExpiresAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "state:        %s\n", state)
	return b.String()
}

func purgeCodesCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge-codes",
		Short: "Delete expired and used one-time codes",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				cutoff := time.Now().UTC().Add(-olderThan)
				expired, err := a.OTPs.DeleteExpiredOTPs(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				used, err := a.OTPs.DeleteUsedOTPs(cmd.Context(), cutoff)
				if err != nil {
					return err
				}
				a.Log.WithFields(logrus.Fields{
					"expired": expired,
					"used":    used,
					"cutoff":  cutoff.Format(time.RFC3339),
				}).Info("one-time codes purged")
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "only delete codes older than this")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, orgID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a dashboard token for the session admin API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" || orgID == "" {
				return errors.New("--user and --org are required")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			token, expiresIn, err := auth.GenerateJWT(userID, orgID, role, cfg.JWTSecret)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires in %ds\n", expiresIn)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "operator id")
	cmd.Flags().StringVar(&orgID, "org", "", "organization id")
	cmd.Flags().StringVar(&role, "role", "admin", "operator role")
	return cmd
}

// WebhookURL is the per-organization update endpoint.
func WebhookURL(base, orgID string) string {
	return base + "/api/v1/telegram/webhook/" + orgID
}
